package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/craftandcart/storefront-backend/pkg/db/models"
	"github.com/craftandcart/storefront-backend/pkg/types"
)

type OrderItemDTO struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Image     *string         `json:"image,omitempty"`
}

type OrderDTO struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	Items           []OrderItemDTO  `json:"items"`
	ShippingAddress types.Address   `json:"shippingAddress"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	Total           decimal.Decimal `json:"total"`
	PaymentStatus   string          `json:"paymentStatus"`
	OrderStatus     string          `json:"orderStatus"`
	TrackingNumber  *string         `json:"trackingNumber,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time      `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func ToDTO(order *models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDTO{
			ProductID: item.ProductID.String(),
			Title:     item.Title,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}
	return OrderDTO{
		ID:              order.ID.String(),
		OrderNumber:     order.OrderNumber,
		Items:           items,
		ShippingAddress: order.ShippingAddress,
		Subtotal:        order.Subtotal,
		Tax:             order.Tax,
		ShippingCost:    order.ShippingCost,
		Total:           order.Total,
		PaymentStatus:   string(order.PaymentStatus),
		OrderStatus:     string(order.OrderStatus),
		TrackingNumber:  order.TrackingNumber,
		Notes:           order.Notes,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
	}
}

func ToDTOList(list []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(list))
	for i := range list {
		out = append(out, ToDTO(&list[i]))
	}
	return out
}
