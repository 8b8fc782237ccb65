package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/craftandcart/storefront-backend/internal/orders"
	"github.com/craftandcart/storefront-backend/internal/payments"
	"github.com/craftandcart/storefront-backend/internal/products"
	"github.com/craftandcart/storefront-backend/pkg/config"
	"github.com/craftandcart/storefront-backend/pkg/db/models"
	"github.com/craftandcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftandcart/storefront-backend/pkg/errors"
	"github.com/craftandcart/storefront-backend/pkg/logger"
	pkgstripe "github.com/craftandcart/storefront-backend/pkg/stripe"
	"github.com/craftandcart/storefront-backend/pkg/types"
)

// Gateway is the payment-intent surface checkout needs from the processor.
type Gateway interface {
	CreateIntent(ctx context.Context, params pkgstripe.IntentParams) (*pkgstripe.Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*pkgstripe.Intent, error)
}

// Line is one requested order line. Quantities are taken as submitted and
// validated against the catalog, never clamped.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// Input is the checkout request after transport-level validation.
type Input struct {
	Items           []Line
	ShippingAddress types.Address
}

// Result is what the storefront needs to confirm the payment client-side.
type Result struct {
	ClientSecret    string          `json:"clientSecret"`
	PaymentIntentID string          `json:"paymentIntentId"`
	OrderID         string          `json:"orderId"`
	OrderNumber     string          `json:"orderNumber"`
	Amount          decimal.Decimal `json:"amount"`
}

// Service turns a submitted item list into a pending order plus a payment
// intent. The order is persisted before the gateway call; a gateway failure
// leaves a pending/pending order behind, which the reconciler never
// promotes. The live cart is untouched here; the reconciler clears it once
// payment succeeds.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, email string, input Input) (*Result, error)
	RetrieveIntent(ctx context.Context, intentID string) (*pkgstripe.Intent, error)
}

type service struct {
	products products.Repository
	orders   orders.Repository
	payments payments.Repository
	gateway  Gateway
	tx       orders.TxRunner
	cfg      config.CheckoutConfig
	logg     *logger.Logger
}

func NewService(
	prods products.Repository,
	ords orders.Repository,
	pays payments.Repository,
	gateway Gateway,
	tx orders.TxRunner,
	cfg config.CheckoutConfig,
	logg *logger.Logger,
) Service {
	return &service{
		products: prods,
		orders:   ords,
		payments: pays,
		gateway:  gateway,
		tx:       tx,
		cfg:      cfg,
		logg:     logg,
	}
}

func (s *service) Execute(ctx context.Context, userID uuid.UUID, email string, input Input) (*Result, error) {
	input.ShippingAddress = input.ShippingAddress.Normalize()

	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "items are required")
	}

	// Validate every submitted line against the live catalog. Quantities
	// above the available stock are rejected outright, never clamped.
	lines := make([]models.OrderItem, 0, len(input.Items))
	subtotal := decimal.Zero
	for _, item := range input.Items {
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		product, perr := s.products.FindByID(ctx, item.ProductID)
		if perr != nil {
			return nil, perr
		}
		if product.Stock < item.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
				WithDetails(map[string]any{
					"product_id": product.ID.String(),
					"requested":  item.Quantity,
					"available":  product.Stock,
				})
		}

		var image *string
		if len(product.Images) > 0 {
			first := product.Images[0]
			image = &first
		}
		lines = append(lines, models.OrderItem{
			ID:        uuid.New(),
			ProductID: product.ID,
			Title:     product.Title,
			Price:     product.Price,
			Quantity:  item.Quantity,
			Image:     image,
		})
		subtotal = subtotal.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	tax := subtotal.Mul(s.cfg.TaxRateDecimal()).Round(2)
	shipping := s.shippingFor(subtotal)
	total := subtotal.Add(tax).Add(shipping)

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		OrderNumber:     newOrderNumber(),
		Items:           lines,
		ShippingAddress: input.ShippingAddress,
		Subtotal:        subtotal,
		Tax:             tax,
		ShippingCost:    shipping,
		Total:           total,
		PaymentStatus:   enums.PaymentStatusPending,
		OrderStatus:     enums.OrderStatusPending,
		// Placeholder until the gateway hands back a real intent id; the
		// reconciler never matches on placeholder refs.
		PaymentIntentID: "pending_" + uuid.NewString(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	intent, err := s.gateway.CreateIntent(ctx, pkgstripe.IntentParams{
		AmountMinor: total.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency:    s.cfg.Currency,
		Description: fmt.Sprintf("Order %s", order.OrderNumber),
		Metadata: map[string]string{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
			"user_id":      userID.String(),
			"email":        email,
		},
	})
	if err != nil {
		// The pending order stays behind on purpose; without a bound intent
		// no webhook will ever promote it.
		s.logg.Error(ctx, "payment intent creation failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	ctx = s.logg.WithIntentID(ctx, intent.ID)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if berr := s.orders.WithTx(tx).BindPaymentIntent(ctx, order.ID, intent.ID); berr != nil {
			return berr
		}
		record := &models.PaymentRecord{
			ID:                    uuid.New(),
			OrderID:               order.ID,
			StripePaymentIntentID: intent.ID,
			Amount:                total,
			Currency:              s.cfg.Currency,
			Status:                enums.PaymentRecordStatusPending,
		}
		return s.payments.WithTx(tx).Create(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(ctx, "checkout created payment intent")

	return &Result{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		OrderID:         order.ID.String(),
		OrderNumber:     order.OrderNumber,
		Amount:          total,
	}, nil
}

func (s *service) RetrieveIntent(ctx context.Context, intentID string) (*pkgstripe.Intent, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	intent, err := s.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent")
	}
	return intent, nil
}

func (s *service) shippingFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(s.cfg.FreeShippingThresholdDecimal()) {
		return decimal.Zero
	}
	return s.cfg.FlatShippingFeeDecimal()
}

// newOrderNumber yields a customer-facing reference like ORD-20260122-4F9A2C.
func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}
