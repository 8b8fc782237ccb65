package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftandcart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/craftandcart/storefront-backend/pkg/errors"
	"github.com/craftandcart/storefront-backend/pkg/logger"
)

// Adjustment is one product/quantity pair taken from an order's line items.
type Adjustment struct {
	ProductID uuid.UUID
	Quantity  int
}

// Ledger owns per-product stock arithmetic. Every mutation is a single
// conditional UPDATE executed inside the caller's transaction, so two
// notifications racing on the same product can never lose an update.
// Callers gate Decrement/Restore on the order's stock_adjusted claim,
// which is what makes the adjustment exactly-once per order.
type Ledger interface {
	Decrement(ctx context.Context, tx *gorm.DB, items []Adjustment) error
	Restore(ctx context.Context, tx *gorm.DB, items []Adjustment) error
}

type ledger struct {
	logg *logger.Logger
}

// NewLedger builds the default inventory ledger.
func NewLedger(logg *logger.Logger) Ledger {
	return &ledger{logg: logg}
}

// Decrement subtracts each ordered quantity, flooring at zero. Payment has
// already been captured when this runs, so an oversold line is logged and
// clamped rather than failing the reconciliation.
func (l *ledger) Decrement(ctx context.Context, tx *gorm.DB, items []Adjustment) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock decrement")
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
		}
		if res.RowsAffected == 0 {
			// Not enough stock left (or product deleted). Clamp to zero.
			clamp := tx.WithContext(ctx).
				Model(&models.Product{}).
				Where("id = ?", item.ProductID).
				UpdateColumn("stock", 0)
			if clamp.Error != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, clamp.Error, "clamp stock")
			}
			if l.logg != nil {
				l.logg.Warn(ctx, fmt.Sprintf("oversold product %s: wanted %d, stock clamped to 0", item.ProductID, item.Quantity))
			}
		}
	}
	return nil
}

// Restore adds each quantity back after a paid order is cancelled.
func (l *ledger) Restore(ctx context.Context, tx *gorm.DB, items []Adjustment) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock restore")
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", item.ProductID).
			UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore stock")
		}
		if res.RowsAffected == 0 && l.logg != nil {
			l.logg.Warn(ctx, fmt.Sprintf("stock restore skipped: product %s no longer exists", item.ProductID))
		}
	}
	return nil
}

// FromOrderItems maps an order's snapshot lines into ledger adjustments.
func FromOrderItems(items []models.OrderItem) []Adjustment {
	out := make([]Adjustment, 0, len(items))
	for _, item := range items {
		out = append(out, Adjustment{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}
