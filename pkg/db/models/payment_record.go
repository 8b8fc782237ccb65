package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/craftandcart/storefront-backend/pkg/enums"
)

// PaymentRecord is the local mirror of one external payment intent's
// lifecycle. The intent id is globally unique, so a retried webhook for
// the same intent updates this record instead of duplicating it.
// LastEventID records the most recent gateway event applied to the
// record and doubles as a dedupe marker for replay diagnostics.
type PaymentRecord struct {
	ID                    uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderID               uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;index"`
	StripePaymentIntentID string                    `gorm:"column:stripe_payment_intent_id;not null;uniqueIndex"`
	Amount                decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency              string                    `gorm:"column:currency;not null"`
	Status                enums.PaymentRecordStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentMethod         *string                   `gorm:"column:payment_method"`
	ErrorMessage          *string                   `gorm:"column:error_message"`
	ReceiptURL            *string                   `gorm:"column:receipt_url"`
	LastEventID           *string                   `gorm:"column:last_event_id"`
	CreatedAt             time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
