package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/comanda/internal/entity"
)

// OrderItemResponse is one order line as exposed via transport layers.
type OrderItemResponse struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Note        string          `json:"note,omitempty"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID              int64               `json:"id"`
	TableID         int64               `json:"table_id"`
	UserID          int64               `json:"user_id"`
	TabID           *int64              `json:"tab_id,omitempty"`
	Status          string              `json:"status"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	Surcharge       decimal.Decimal     `json:"surcharge"`
	Discount        decimal.Decimal     `json:"discount"`
	Total           decimal.Decimal     `json:"total"`
	Note            string              `json:"note,omitempty"`
	SurchargeReason string              `json:"surcharge_reason,omitempty"`
	DiscountReason  string              `json:"discount_reason,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	ClosedAt        *time.Time          `json:"closed_at,omitempty"`
	Items           []OrderItemResponse `json:"items"`
}

// NewOrderResponse maps an order entity onto its transport shape.
func NewOrderResponse(order *entity.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal(),
			Note:        item.Note,
		})
	}
	return OrderResponse{
		ID:              order.ID,
		TableID:         order.TableID,
		UserID:          order.UserID,
		TabID:           order.TabID,
		Status:          string(order.Status),
		Subtotal:        order.Subtotal,
		Surcharge:       order.Surcharge,
		Discount:        order.Discount,
		Total:           order.Total,
		Note:            order.Note,
		SurchargeReason: order.SurchargeReason,
		DiscountReason:  order.DiscountReason,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
		ClosedAt:        order.ClosedAt,
		Items:           items,
	}
}

// NewOrderResponses maps a slice of orders.
func NewOrderResponses(orders []*entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, NewOrderResponse(order))
	}
	return out
}
