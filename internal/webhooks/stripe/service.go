package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/craftandcart/storefront-backend/internal/cart"
	"github.com/craftandcart/storefront-backend/internal/inventory"
	"github.com/craftandcart/storefront-backend/internal/orders"
	"github.com/craftandcart/storefront-backend/internal/payments"
	pkgerrors "github.com/craftandcart/storefront-backend/pkg/errors"
	"github.com/craftandcart/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	OrderRepo         orders.Repository
	PaymentRepo       payments.Repository
	CartRepo          cart.Repository
	Ledger            inventory.Ledger
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service reconciles gateway webhook events into order state. Deliveries
// are at-least-once and can arrive out of order, so every transition here
// is conditional on the current state and losing a transition is success.
type Service struct {
	orderRepo   orders.Repository
	paymentRepo payments.Repository
	cartRepo    cart.Repository
	ledger      inventory.Ledger
	txRunner    txRunner
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.OrderRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order repo required")
	}
	if params.PaymentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment repo required")
	}
	if params.CartRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		orderRepo:   params.OrderRepo,
		paymentRepo: params.PaymentRepo,
		cartRepo:    params.CartRepo,
		ledger:      params.Ledger,
		txRunner:    params.TransactionRunner,
		logg:        params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
	default:
		// Unknown kinds are acknowledged so Stripe stops resending them.
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
	}

	ctx = s.logg.WithIntentID(ctx, intent.ID)
	ctx = s.logg.WithField(ctx, "event_id", event.ID)
	ctx = s.logg.WithField(ctx, "event_type", string(event.Type))

	orderID, ok := orderIDFromMetadata(intent.Metadata)
	if !ok {
		s.logg.Warn(ctx, "payment intent event without usable order metadata")
		return nil
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if pkgErr := pkgerrors.As(err); pkgErr != nil && pkgErr.Code() == pkgerrors.CodeNotFound {
			s.logg.Warn(ctx, "payment intent event for unknown order")
			return nil
		}
		return err
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		return s.handleSucceeded(ctx, order.ID, order.UserID, event.ID, &intent)
	case stripe.EventTypePaymentIntentPaymentFailed:
		return s.handleFailed(ctx, order.ID, event.ID, &intent)
	case stripe.EventTypePaymentIntentCanceled:
		return s.handleCanceled(ctx, order.ID, event.ID, &intent)
	}
	return nil
}

func (s *Service) handleSucceeded(ctx context.Context, orderID, userID uuid.UUID, eventID string, intent *stripe.PaymentIntent) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)

		won, err := orderRepo.MarkPaid(ctx, orderID)
		if err != nil {
			return err
		}
		if !won {
			s.logg.Info(ctx, "order already settled, ignoring success event")
			return nil
		}

		claimed, err := orderRepo.ClaimStockAdjustment(ctx, orderID)
		if err != nil {
			return err
		}
		if claimed {
			order, ferr := orderRepo.FindByID(ctx, orderID)
			if ferr != nil {
				return ferr
			}
			if derr := s.ledger.Decrement(ctx, tx, inventory.FromOrderItems(order.Items)); derr != nil {
				return derr
			}
		}

		if cerr := s.cartRepo.WithTx(tx).Clear(ctx, userID); cerr != nil {
			return cerr
		}

		settled, perr := s.paymentRepo.WithTx(tx).MarkSucceeded(ctx,
			intent.ID, methodFromIntent(intent), receiptFromIntent(intent), eventID)
		if perr != nil {
			return perr
		}
		if !settled {
			s.logg.Info(ctx, "payment record already settled")
		}

		s.logg.Info(ctx, "order confirmed after payment success")
		return nil
	})
}

func (s *Service) handleFailed(ctx context.Context, orderID uuid.UUID, eventID string, intent *stripe.PaymentIntent) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		won, err := s.orderRepo.WithTx(tx).MarkPaymentFailed(ctx, orderID)
		if err != nil {
			return err
		}
		if !won {
			s.logg.Info(ctx, "order already settled, ignoring failure event")
			return nil
		}

		if _, perr := s.paymentRepo.WithTx(tx).MarkFailed(ctx,
			intent.ID, failureMessage(intent), eventID); perr != nil {
			return perr
		}

		s.logg.Info(ctx, "order payment marked failed")
		return nil
	})
}

func (s *Service) handleCanceled(ctx context.Context, orderID uuid.UUID, eventID string, intent *stripe.PaymentIntent) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		won, err := s.orderRepo.WithTx(tx).MarkCanceledByGateway(ctx, orderID)
		if err != nil {
			return err
		}
		if !won {
			s.logg.Info(ctx, "order already settled, ignoring cancel event")
			return nil
		}

		if _, perr := s.paymentRepo.WithTx(tx).MarkCanceled(ctx, intent.ID, eventID); perr != nil {
			return perr
		}

		s.logg.Info(ctx, "order cancelled after intent cancellation")
		return nil
	})
}

func orderIDFromMetadata(metadata map[string]string) (uuid.UUID, bool) {
	raw, ok := metadata["order_id"]
	if !ok || raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func methodFromIntent(intent *stripe.PaymentIntent) *string {
	if intent.PaymentMethod == nil || intent.PaymentMethod.ID == "" {
		return nil
	}
	id := intent.PaymentMethod.ID
	return &id
}

func receiptFromIntent(intent *stripe.PaymentIntent) *string {
	if intent.LatestCharge == nil || intent.LatestCharge.ReceiptURL == "" {
		return nil
	}
	url := intent.LatestCharge.ReceiptURL
	return &url
}

func failureMessage(intent *stripe.PaymentIntent) *string {
	if intent.LastPaymentError == nil || intent.LastPaymentError.Msg == "" {
		return nil
	}
	msg := intent.LastPaymentError.Msg
	return &msg
}
