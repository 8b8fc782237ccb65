package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftandcart/storefront-backend/internal/inventory"
	"github.com/craftandcart/storefront-backend/pkg/db/models"
	"github.com/craftandcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftandcart/storefront-backend/pkg/errors"
	"github.com/craftandcart/storefront-backend/pkg/logger"
	"github.com/craftandcart/storefront-backend/pkg/pagination"
)

// TxRunner runs fn inside a database transaction, committing on nil and
// rolling back otherwise.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StatusUpdate carries the admin-requested fulfilment change.
type StatusUpdate struct {
	Status         enums.OrderStatus
	TrackingNumber *string
	Notes          *string
}

// Service covers customer reads and the admin fulfilment transitions.
type Service interface {
	Get(ctx context.Context, userID, orderID uuid.UUID, isAdmin bool) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, *pagination.Page, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, update StatusUpdate) (*models.Order, error)
}

type service struct {
	orders Repository
	ledger inventory.Ledger
	tx     TxRunner
	logg   *logger.Logger
}

func NewService(orders Repository, ledger inventory.Ledger, tx TxRunner, logg *logger.Logger) Service {
	return &service{orders: orders, ledger: ledger, tx: tx, logg: logg}
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID, isAdmin bool) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// Ownership check reports not-found, not forbidden, so order IDs are
	// not probeable.
	if !isAdmin && order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"order_id": orderID.String()})
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, *pagination.Page, error) {
	params = pagination.Normalize(params, pagination.DefaultLimit)
	list, total, err := s.orders.FindByUser(ctx, userID, params)
	if err != nil {
		return nil, nil, err
	}
	page := pagination.NewPage(params, total)
	return list, &page, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, update StatusUpdate) (*models.Order, error) {
	if !update.Status.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": string(update.Status)})
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	from := order.OrderStatus
	to := update.Status
	if !enums.CanTransitionOrderStatus(from, to) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").
			WithDetails(map[string]any{"from": string(from), "to": string(to)})
	}

	fields := map[string]any{}
	if update.TrackingNumber != nil {
		fields["tracking_number"] = *update.TrackingNumber
	}
	if update.Notes != nil {
		fields["notes"] = *update.Notes
	}
	now := time.Now().UTC()
	switch to {
	case enums.OrderStatusDelivered:
		fields["delivered_at"] = now
	case enums.OrderStatusCancelled:
		fields["cancelled_at"] = now
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)

		won, uerr := repo.UpdateOrderStatus(ctx, orderID, from, to, fields)
		if uerr != nil {
			return uerr
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order was updated concurrently").
				WithDetails(map[string]any{"order_id": orderID.String()})
		}

		// Cancelling a paid order hands the reserved units back. The claim
		// flag makes the restore happen at most once even if two cancels race.
		if to == enums.OrderStatusCancelled && order.PaymentStatus == enums.PaymentStatusPaid {
			released, rerr := repo.ReleaseStockAdjustment(ctx, orderID)
			if rerr != nil {
				return rerr
			}
			if released {
				if lerr := s.ledger.Restore(ctx, tx, inventory.FromOrderItems(order.Items)); lerr != nil {
					return lerr
				}
				s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "restored stock for cancelled order")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.orders.FindByID(ctx, orderID)
}
