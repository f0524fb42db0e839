package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Tab groups orders under one running bill for a table visit. Orders are held
// by reference; the tab never owns them.
type Tab struct {
	bun.BaseModel `bun:"table:tabs,alias:tab"`

	ID       int64     `bun:",pk,autoincrement" json:"id"`
	TableID  int64     `bun:"table_id,notnull" json:"table_id"`
	Code     string    `bun:"code,unique,notnull" json:"code"`
	Status   TabStatus `bun:"status,notnull" json:"status"`
	OpenedAt time.Time `bun:"opened_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"opened_at"`
	ClosedAt *time.Time `bun:"closed_at" json:"closed_at,omitempty"`

	Orders []*Order `bun:"rel:has-many,join:id=tab_id" json:"orders,omitempty"`
}

// Total sums the totals of the tab's CLOSED member orders.
func (t *Tab) Total() decimal.Decimal {
	total := decimal.Zero
	for _, o := range t.Orders {
		if o.Status == OrderClosed {
			total = total.Add(o.Total)
		}
	}
	return total
}

// HasActiveOrders reports whether any member order is still non-terminal.
func (t *Tab) HasActiveOrders() bool {
	for _, o := range t.Orders {
		if !o.Status.Terminal() {
			return true
		}
	}
	return false
}
