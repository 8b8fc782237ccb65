package cart

import (
	"github.com/shopspring/decimal"

	"github.com/craftandcart/storefront-backend/pkg/db/models"
)

type CartItemDTO struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type CartDTO struct {
	Items    []CartItemDTO   `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

func ToDTO(crt *models.Cart) CartDTO {
	items := make([]CartItemDTO, 0, len(crt.Items))
	subtotal := decimal.Zero
	for _, item := range crt.Items {
		items = append(items, CartItemDTO{
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return CartDTO{Items: items, Subtotal: subtotal}
}
