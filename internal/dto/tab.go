package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/comanda/internal/entity"
)

// TabResponse represents a tab as exposed via transport layers.
type TabResponse struct {
	ID       int64           `json:"id"`
	TableID  int64           `json:"table_id"`
	Code     string          `json:"code"`
	Status   string          `json:"status"`
	Total    decimal.Decimal `json:"total"`
	OpenedAt time.Time       `json:"opened_at"`
	ClosedAt *time.Time      `json:"closed_at,omitempty"`
	Orders   []OrderResponse `json:"orders,omitempty"`
}

// NewTabResponse maps a tab entity onto its transport shape.
func NewTabResponse(tab *entity.Tab) TabResponse {
	return TabResponse{
		ID:       tab.ID,
		TableID:  tab.TableID,
		Code:     tab.Code,
		Status:   string(tab.Status),
		Total:    tab.Total(),
		OpenedAt: tab.OpenedAt,
		ClosedAt: tab.ClosedAt,
		Orders:   NewOrderResponses(tab.Orders),
	}
}

// NewTabResponses maps a slice of tabs.
func NewTabResponses(tabs []*entity.Tab) []TabResponse {
	out := make([]TabResponse, 0, len(tabs))
	for _, tab := range tabs {
		out = append(out, NewTabResponse(tab))
	}
	return out
}
