package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftandcart/storefront-backend/pkg/db/models"
	"github.com/craftandcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftandcart/storefront-backend/pkg/errors"
	"github.com/craftandcart/storefront-backend/pkg/pagination"
)

// Repository persists the order aggregate. Every state-changing method is
// a single conditional UPDATE guarded on the current state; callers learn
// whether they won the transition from the boolean result and must treat
// false as "someone else already moved it", not as an error.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error)
	FindByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, int64, error)

	BindPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error

	// MarkPaid moves pending/pending to paid/confirmed.
	MarkPaid(ctx context.Context, orderID uuid.UUID) (bool, error)
	// MarkPaymentFailed moves payment_status pending to failed. The order
	// status is left alone so the customer can retry payment.
	MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) (bool, error)
	// MarkCanceledByGateway moves a pending/pending order to
	// cancelled/failed when the gateway reports the intent canceled.
	MarkCanceledByGateway(ctx context.Context, orderID uuid.UUID) (bool, error)

	// UpdateOrderStatus applies an already-validated fulfilment transition,
	// guarded on the current status so concurrent admins cannot double-apply.
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, fields map[string]any) (bool, error)

	// ClaimStockAdjustment flips stock_adjusted false -> true. Exactly one
	// caller wins the claim; only the winner touches inventory.
	ClaimStockAdjustment(ctx context.Context, orderID uuid.UUID) (bool, error)
	// ReleaseStockAdjustment flips it back after stock has been restored.
	ReleaseStockAdjustment(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
				WithDetails(map[string]any{"order_id": id.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}

func (r *repository) FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_intent_id = ?", intentID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
				WithDetails(map[string]any{"payment_intent_id": intentID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by intent")
	}
	return &order, nil
}

func (r *repository) FindByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders")
	}

	var list []models.Order
	err := base.
		Preload("Items").
		Order("created_at DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&list).Error
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, total, nil
}

func (r *repository) BindPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("payment_intent_id", intentID).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind payment intent")
	}
	return nil
}

func (r *repository) MarkPaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ? AND order_status = ?",
			orderID, enums.PaymentStatusPending, enums.OrderStatusPending).
		Updates(map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"order_status":   enums.OrderStatusConfirmed,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "mark order paid")
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, enums.PaymentStatusPending).
		Updates(map[string]any{
			"payment_status": enums.PaymentStatusFailed,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "mark payment failed")
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkCanceledByGateway(ctx context.Context, orderID uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ? AND order_status = ?",
			orderID, enums.PaymentStatusPending, enums.OrderStatusPending).
		Updates(map[string]any{
			"payment_status": enums.PaymentStatusFailed,
			"order_status":   enums.OrderStatusCancelled,
			"cancelled_at":   now,
			"updated_at":     now,
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "cancel order")
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, fields map[string]any) (bool, error) {
	updates := map[string]any{
		"order_status": to,
		"updated_at":   time.Now().UTC(),
	}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND order_status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update order status")
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ClaimStockAdjustment(ctx context.Context, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND stock_adjusted = ?", orderID, false).
		UpdateColumn("stock_adjusted", true)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "claim stock adjustment")
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ReleaseStockAdjustment(ctx context.Context, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND stock_adjusted = ?", orderID, true).
		UpdateColumn("stock_adjusted", false)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock adjustment")
	}
	return res.RowsAffected > 0, nil
}
