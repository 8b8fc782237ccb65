package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/craftandcart/storefront-backend/internal/cart"
	"github.com/craftandcart/storefront-backend/internal/inventory"
	"github.com/craftandcart/storefront-backend/internal/orders"
	"github.com/craftandcart/storefront-backend/internal/payments"
	"github.com/craftandcart/storefront-backend/pkg/db/models"
	"github.com/craftandcart/storefront-backend/pkg/enums"
	"github.com/craftandcart/storefront-backend/pkg/logger"
	"github.com/craftandcart/storefront-backend/pkg/types"
)

func setupWebhookTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT,
  category TEXT NOT NULL,
  price NUMERIC NOT NULL,
  stock INTEGER NOT NULL,
  images TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  order_number TEXT NOT NULL UNIQUE,
  shipping_address TEXT,
  subtotal NUMERIC NOT NULL,
  tax NUMERIC NOT NULL,
  shipping_cost NUMERIC NOT NULL,
  total NUMERIC NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  order_status TEXT NOT NULL DEFAULT 'pending',
  payment_intent_id TEXT NOT NULL,
  stock_adjusted INTEGER NOT NULL DEFAULT 0,
  tracking_number TEXT,
  notes TEXT,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  title TEXT NOT NULL,
  price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  image TEXT,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS payment_records (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  stripe_payment_intent_id TEXT NOT NULL UNIQUE,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT,
  error_message TEXT,
  receipt_url TEXT,
  last_event_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type sqliteTxRunner struct {
	db *gorm.DB
}

func (r *sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type webhookFixture struct {
	svc *Service
	db  *gorm.DB
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	db := setupWebhookTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	svc, err := NewService(ServiceParams{
		OrderRepo:         orders.NewRepository(db),
		PaymentRepo:       payments.NewRepository(db),
		CartRepo:          cart.NewRepository(db),
		Ledger:            inventory.NewLedger(logg),
		TransactionRunner: &sqliteTxRunner{db: db},
		Logger:            logg,
	})
	require.NoError(t, err)
	return &webhookFixture{svc: svc, db: db}
}

type seededOrder struct {
	order   *models.Order
	product *models.Product
}

func seedPendingOrder(t *testing.T, db *gorm.DB, stock, quantity int) seededOrder {
	t.Helper()

	product := &models.Product{
		ID:       uuid.New(),
		Title:    "Ceramic Mug",
		Category: "kitchen",
		Price:    decimal.NewFromInt(300),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, db.Create(product).Error)

	userID := uuid.New()
	intentID := "pi_" + uuid.NewString()[:8]

	subtotal := product.Price.Mul(decimal.NewFromInt(int64(quantity)))
	tax := subtotal.Mul(decimal.NewFromFloat(0.18)).Round(2)
	order := &models.Order{
		ID:          uuid.New(),
		UserID:      userID,
		OrderNumber: "ORD-TEST-" + uuid.NewString()[:8],
		ShippingAddress: types.Address{
			FullName:   "Asha Rao",
			Line1:      "14 MG Road",
			City:       "Bengaluru",
			State:      "KA",
			PostalCode: "560001",
			Country:    "IN",
		},
		Subtotal:        subtotal,
		Tax:             tax,
		ShippingCost:    decimal.Zero,
		Total:           subtotal.Add(tax),
		PaymentStatus:   enums.PaymentStatusPending,
		OrderStatus:     enums.OrderStatusPending,
		PaymentIntentID: intentID,
		Items: []models.OrderItem{
			{
				ID:        uuid.New(),
				ProductID: product.ID,
				Title:     product.Title,
				Price:     product.Price,
				Quantity:  quantity,
			},
		},
	}
	require.NoError(t, db.Create(order).Error)

	crt := &models.Cart{ID: uuid.New(), UserID: userID}
	require.NoError(t, db.Create(crt).Error)
	require.NoError(t, db.Create(&models.CartItem{
		ID:        uuid.New(),
		CartID:    crt.ID,
		ProductID: product.ID,
		Quantity:  quantity,
		Price:     product.Price,
	}).Error)

	require.NoError(t, db.Create(&models.PaymentRecord{
		ID:                    uuid.New(),
		OrderID:               order.ID,
		StripePaymentIntentID: intentID,
		Amount:                order.Total,
		Currency:              "inr",
		Status:                enums.PaymentRecordStatusPending,
	}).Error)

	return seededOrder{order: order, product: product}
}

func intentEvent(t *testing.T, eventType stripe.EventType, intentID string, orderID uuid.UUID, extra map[string]any) *stripe.Event {
	t.Helper()

	payload := map[string]any{
		"id":       intentID,
		"object":   "payment_intent",
		"metadata": map[string]string{"order_id": orderID.String()},
	}
	for k, v := range extra {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	return &stripe.Event{
		ID:   "evt_" + uuid.NewString()[:8],
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleSucceededConfirmsOrder(t *testing.T) {
	fx := newWebhookFixture(t)
	ctx := context.Background()

	seeded := seedPendingOrder(t, fx.db, 5, 2)
	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded,
		seeded.order.PaymentIntentID, seeded.order.ID, nil)

	require.NoError(t, fx.svc.HandleEvent(ctx, event))

	var order models.Order
	require.NoError(t, fx.db.First(&order, "id = ?", seeded.order.ID).Error)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, enums.OrderStatusConfirmed, order.OrderStatus)
	assert.True(t, order.StockAdjusted)

	var product models.Product
	require.NoError(t, fx.db.First(&product, "id = ?", seeded.product.ID).Error)
	assert.Equal(t, 3, product.Stock)

	var cartItems int64
	require.NoError(t, fx.db.Model(&models.CartItem{}).Count(&cartItems).Error)
	assert.Zero(t, cartItems)

	var record models.PaymentRecord
	require.NoError(t, fx.db.First(&record, "stripe_payment_intent_id = ?", seeded.order.PaymentIntentID).Error)
	assert.Equal(t, enums.PaymentRecordStatusSucceeded, record.Status)
	require.NotNil(t, record.LastEventID)
	assert.Equal(t, event.ID, *record.LastEventID)
}

func TestHandleSucceededReplayDecrementsOnce(t *testing.T) {
	fx := newWebhookFixture(t)
	ctx := context.Background()

	seeded := seedPendingOrder(t, fx.db, 5, 2)
	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded,
		seeded.order.PaymentIntentID, seeded.order.ID, nil)

	require.NoError(t, fx.svc.HandleEvent(ctx, event))
	require.NoError(t, fx.svc.HandleEvent(ctx, event))

	replay := intentEvent(t, stripe.EventTypePaymentIntentSucceeded,
		seeded.order.PaymentIntentID, seeded.order.ID, nil)
	require.NoError(t, fx.svc.HandleEvent(ctx, replay))

	var product models.Product
	require.NoError(t, fx.db.First(&product, "id = ?", seeded.product.ID).Error)
	assert.Equal(t, 3, product.Stock)
}

func TestHandleSucceededAfterAdminCancelIsNoOp(t *testing.T) {
	fx := newWebhookFixture(t)
	ctx := context.Background()

	seeded := seedPendingOrder(t, fx.db, 5, 2)

	// Admin cancelled the order before the payment settled; cancellation of
	// an unpaid order does not restore stock.
	require.NoError(t, fx.db.Model(&models.Order{}).
		Where("id = ?", seeded.order.ID).
		Updates(map[string]any{
			"order_status": enums.OrderStatusCancelled,
			"cancelled_at": time.Now().UTC(),
		}).Error)

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded,
		seeded.order.PaymentIntentID, seeded.order.ID, nil)
	require.NoError(t, fx.svc.HandleEvent(ctx, event))

	var order models.Order
	require.NoError(t, fx.db.First(&order, "id = ?", seeded.order.ID).Error)
	assert.Equal(t, enums.OrderStatusCancelled, order.OrderStatus)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.False(t, order.StockAdjusted)

	var product models.Product
	require.NoError(t, fx.db.First(&product, "id = ?", seeded.product.ID).Error)
	assert.Equal(t, 5, product.Stock)

	var cartItems int64
	require.NoError(t, fx.db.Model(&models.CartItem{}).Count(&cartItems).Error)
	assert.Equal(t, int64(1), cartItems)
}

func TestHandleFailedMarksPaymentOnly(t *testing.T) {
	fx := newWebhookFixture(t)
	ctx := context.Background()

	seeded := seedPendingOrder(t, fx.db, 5, 2)
	event := intentEvent(t, stripe.EventTypePaymentIntentPaymentFailed,
		seeded.order.PaymentIntentID, seeded.order.ID, map[string]any{
			"last_payment_error": map[string]any{"message": "card declined"},
		})

	require.NoError(t, fx.svc.HandleEvent(ctx, event))

	var order models.Order
	require.NoError(t, fx.db.First(&order, "id = ?", seeded.order.ID).Error)
	assert.Equal(t, enums.PaymentStatusFailed, order.PaymentStatus)
	assert.Equal(t, enums.OrderStatusPending, order.OrderStatus)
	assert.False(t, order.StockAdjusted)

	var product models.Product
	require.NoError(t, fx.db.First(&product, "id = ?", seeded.product.ID).Error)
	assert.Equal(t, 5, product.Stock)

	var record models.PaymentRecord
	require.NoError(t, fx.db.First(&record, "stripe_payment_intent_id = ?", seeded.order.PaymentIntentID).Error)
	assert.Equal(t, enums.PaymentRecordStatusFailed, record.Status)
	require.NotNil(t, record.ErrorMessage)
	assert.Equal(t, "card declined", *record.ErrorMessage)
}

func TestHandleFailedAfterSuccessDoesNotRegress(t *testing.T) {
	fx := newWebhookFixture(t)
	ctx := context.Background()

	seeded := seedPendingOrder(t, fx.db, 5, 2)

	success := intentEvent(t, stripe.EventTypePaymentIntentSucceeded,
		seeded.order.PaymentIntentID, seeded.order.ID, nil)
	require.NoError(t, fx.svc.HandleEvent(ctx, success))

	late := intentEvent(t, stripe.EventTypePaymentIntentPaymentFailed,
		seeded.order.PaymentIntentID, seeded.order.ID, nil)
	require.NoError(t, fx.svc.HandleEvent(ctx, late))

	var order models.Order
	require.NoError(t, fx.db.First(&order, "id = ?", seeded.order.ID).Error)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, enums.OrderStatusConfirmed, order.OrderStatus)

	var product models.Product
	require.NoError(t, fx.db.First(&product, "id = ?", seeded.product.ID).Error)
	assert.Equal(t, 3, product.Stock)
}

func TestHandleCanceledCancelsPendingOrder(t *testing.T) {
	fx := newWebhookFixture(t)
	ctx := context.Background()

	seeded := seedPendingOrder(t, fx.db, 5, 2)
	event := intentEvent(t, stripe.EventTypePaymentIntentCanceled,
		seeded.order.PaymentIntentID, seeded.order.ID, nil)

	require.NoError(t, fx.svc.HandleEvent(ctx, event))

	var order models.Order
	require.NoError(t, fx.db.First(&order, "id = ?", seeded.order.ID).Error)
	assert.Equal(t, enums.PaymentStatusFailed, order.PaymentStatus)
	assert.Equal(t, enums.OrderStatusCancelled, order.OrderStatus)
	assert.NotNil(t, order.CancelledAt)

	// Stock was never decremented, so cancellation must not restock.
	var product models.Product
	require.NoError(t, fx.db.First(&product, "id = ?", seeded.product.ID).Error)
	assert.Equal(t, 5, product.Stock)
}

func TestHandleUnknownOrderIsNoOp(t *testing.T) {
	fx := newWebhookFixture(t)
	ctx := context.Background()

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, "pi_ghost", uuid.New(), nil)
	require.NoError(t, fx.svc.HandleEvent(ctx, event))

	var count int64
	require.NoError(t, fx.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandleMissingMetadataIsNoOp(t *testing.T) {
	fx := newWebhookFixture(t)
	ctx := context.Background()

	raw, err := json.Marshal(map[string]any{"id": "pi_nometa", "object": "payment_intent"})
	require.NoError(t, err)
	event := &stripe.Event{
		ID:   "evt_nometa",
		Type: stripe.EventTypePaymentIntentSucceeded,
		Data: &stripe.EventData{Raw: raw},
	}

	require.NoError(t, fx.svc.HandleEvent(ctx, event))
}

func TestHandleUnknownEventTypeIsAcknowledged(t *testing.T) {
	fx := newWebhookFixture(t)

	event := &stripe.Event{
		ID:   "evt_other",
		Type: stripe.EventType("charge.refunded"),
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	require.NoError(t, fx.svc.HandleEvent(context.Background(), event))
}

func TestHandleNilEventRejected(t *testing.T) {
	fx := newWebhookFixture(t)

	require.Error(t, fx.svc.HandleEvent(context.Background(), nil))
	require.Error(t, fx.svc.HandleEvent(context.Background(), &stripe.Event{ID: "evt_empty"}))
}
