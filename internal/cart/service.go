package cart

import (
	"context"

	"github.com/google/uuid"

	"github.com/craftandcart/storefront-backend/internal/products"
	"github.com/craftandcart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/craftandcart/storefront-backend/pkg/errors"
)

// Service exposes the live cart to the API layer. Prices are snapshotted
// from the catalog at add time; checkout revalidates against the catalog
// anyway, so a stale snapshot only affects what the cart displays.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	carts    Repository
	products products.Repository
}

func NewService(carts Repository, prods products.Repository) Service {
	return &service{carts: carts, products: prods}
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return s.carts.FindByUser(ctx, userID)
}

func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Stock < quantity {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithDetails(map[string]any{
				"product_id": product.ID.String(),
				"requested":  quantity,
				"available":  product.Stock,
			})
	}

	item := models.CartItem{
		ProductID: product.ID,
		Quantity:  quantity,
		Price:     product.Price,
	}
	return s.carts.UpsertItem(ctx, userID, item)
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error) {
	if err := s.carts.RemoveItem(ctx, userID, productID); err != nil {
		return nil, err
	}
	return s.carts.FindByUser(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.carts.Clear(ctx, userID)
}
