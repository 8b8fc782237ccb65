package payments

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/craftandcart/storefront-backend/pkg/db"
	"github.com/craftandcart/storefront-backend/pkg/db/models"
	"github.com/craftandcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftandcart/storefront-backend/pkg/errors"
)

// Repository persists payment records, one per gateway intent. The mark
// methods are conditional on the record still being pending so replayed
// and out-of-order gateway events settle each record at most once.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, record *models.PaymentRecord) error
	FindByIntent(ctx context.Context, intentID string) (*models.PaymentRecord, error)

	MarkSucceeded(ctx context.Context, intentID string, method, receiptURL *string, eventID string) (bool, error)
	MarkFailed(ctx context.Context, intentID string, errorMessage *string, eventID string) (bool, error)
	MarkCanceled(ctx context.Context, intentID string, eventID string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.PaymentRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment record already exists").
				WithDetails(map[string]any{"payment_intent_id": record.StripePaymentIntentID})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment record")
	}
	return nil
}

func (r *repository) FindByIntent(ctx context.Context, intentID string) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("stripe_payment_intent_id = ?", intentID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment record not found").
				WithDetails(map[string]any{"payment_intent_id": intentID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment record")
	}
	return &record, nil
}

func (r *repository) MarkSucceeded(ctx context.Context, intentID string, method, receiptURL *string, eventID string) (bool, error) {
	updates := map[string]any{
		"status":        enums.PaymentRecordStatusSucceeded,
		"last_event_id": eventID,
		"updated_at":    time.Now().UTC(),
	}
	if method != nil {
		updates["payment_method"] = *method
	}
	if receiptURL != nil {
		updates["receipt_url"] = *receiptURL
	}
	return r.settle(ctx, intentID, updates, "mark payment succeeded")
}

func (r *repository) MarkFailed(ctx context.Context, intentID string, errorMessage *string, eventID string) (bool, error) {
	updates := map[string]any{
		"status":        enums.PaymentRecordStatusFailed,
		"last_event_id": eventID,
		"updated_at":    time.Now().UTC(),
	}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}
	return r.settle(ctx, intentID, updates, "mark payment failed")
}

func (r *repository) MarkCanceled(ctx context.Context, intentID string, eventID string) (bool, error) {
	updates := map[string]any{
		"status":        enums.PaymentRecordStatusCanceled,
		"last_event_id": eventID,
		"updated_at":    time.Now().UTC(),
	}
	return r.settle(ctx, intentID, updates, "mark payment canceled")
}

func (r *repository) settle(ctx context.Context, intentID string, updates map[string]any, action string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("stripe_payment_intent_id = ? AND status = ?", intentID, enums.PaymentRecordStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, action)
	}
	return res.RowsAffected > 0, nil
}
