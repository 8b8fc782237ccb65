package products

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/craftandcart/storefront-backend/pkg/db/models"
)

type ProductDTO struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description *string         `json:"description,omitempty"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Images      []string        `json:"images"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func ToDTO(product *models.Product) ProductDTO {
	images := product.Images
	if images == nil {
		images = []string{}
	}
	return ProductDTO{
		ID:          product.ID.String(),
		Title:       product.Title,
		Description: product.Description,
		Category:    product.Category,
		Price:       product.Price,
		Stock:       product.Stock,
		Images:      images,
		CreatedAt:   product.CreatedAt,
	}
}

func ToDTOList(list []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(list))
	for i := range list {
		out = append(out, ToDTO(&list[i]))
	}
	return out
}
