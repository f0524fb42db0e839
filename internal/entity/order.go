package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/comanda/pkg/errorbank"
)

// Order is a single customer check against one table. It owns its items and
// its monetary totals; every item or adjustment mutation goes through the
// methods below so totals are re-derived in one place.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID      int64  `bun:",pk,autoincrement" json:"id"`
	TableID int64  `bun:"table_id,notnull" json:"table_id"`
	UserID  int64  `bun:"user_id,notnull" json:"user_id"`
	TabID   *int64 `bun:"tab_id" json:"tab_id,omitempty"`

	Status OrderStatus `bun:"status,notnull" json:"status"`

	Subtotal  decimal.Decimal `bun:"subtotal,type:numeric(10,2),notnull" json:"subtotal"`
	Surcharge decimal.Decimal `bun:"surcharge,type:numeric(10,2),notnull" json:"surcharge"`
	Discount  decimal.Decimal `bun:"discount,type:numeric(10,2),notnull" json:"discount"`
	Total     decimal.Decimal `bun:"total,type:numeric(10,2),notnull" json:"total"`

	Note            string `bun:"note" json:"note,omitempty"`
	SurchargeReason string `bun:"surcharge_reason" json:"surcharge_reason,omitempty"`
	DiscountReason  string `bun:"discount_reason" json:"discount_reason,omitempty"`

	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero" json:"updated_at"`
	ClosedAt  *time.Time `bun:"closed_at" json:"closed_at,omitempty"`

	Items []*OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
}

// Recalculate re-derives subtotal and total from the current items and
// adjustments. It is a full re-derivation, not a delta, so calling it twice
// without an intervening mutation yields identical values.
func (o *Order) Recalculate() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	o.Subtotal = subtotal
	o.Total = subtotal.Add(o.Surcharge).Sub(o.Discount)
}

// AddItem appends an item and recomputes totals.
func (o *Order) AddItem(item *OrderItem) {
	item.OrderID = o.ID
	o.Items = append(o.Items, item)
	o.Recalculate()
}

// RemoveItem drops the item with the given id and recomputes totals. It
// returns the removed item, or nil when the item does not belong to the order.
func (o *Order) RemoveItem(itemID int64) *OrderItem {
	for idx, item := range o.Items {
		if item.ID == itemID {
			o.Items = append(o.Items[:idx], o.Items[idx+1:]...)
			o.Recalculate()
			return item
		}
	}
	return nil
}

// Item returns the item with the given id, or nil.
func (o *Order) Item(itemID int64) *OrderItem {
	for _, item := range o.Items {
		if item.ID == itemID {
			return item
		}
	}
	return nil
}

// ApplySurcharge replaces the current surcharge. Re-applying overwrites the
// previous value rather than accumulating.
func (o *Order) ApplySurcharge(amount decimal.Decimal, justification string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errorbank.InvalidArgument("surcharge must be greater than zero",
			errorbank.WithDetail("amount", amount.String()))
	}
	o.Surcharge = amount
	o.SurchargeReason = justification
	o.Recalculate()
	return nil
}

// ApplyDiscount replaces the current discount. The amount may not exceed
// subtotal plus surcharge; the boundary itself is allowed.
func (o *Order) ApplyDiscount(amount decimal.Decimal, justification string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errorbank.InvalidArgument("discount must be greater than zero",
			errorbank.WithDetail("amount", amount.String()))
	}
	if max := o.Subtotal.Add(o.Surcharge); amount.GreaterThan(max) {
		return errorbank.InvalidArgument("discount exceeds subtotal plus surcharge",
			errorbank.WithDetail("amount", amount.String()),
			errorbank.WithDetail("max", max.String()),
		)
	}
	o.Discount = amount
	o.DiscountReason = justification
	o.Recalculate()
	return nil
}

// Close marks the order CLOSED and stamps the close time.
func (o *Order) Close(now time.Time) {
	o.Status = OrderClosed
	o.ClosedAt = &now
	o.UpdatedAt = now
}

// Reopen returns a CLOSED order to OPEN, clearing the close stamp and
// appending the mandatory reason to the note.
func (o *Order) Reopen(reason string, now time.Time) {
	o.Status = OrderOpen
	o.ClosedAt = nil
	o.UpdatedAt = now
	o.appendNote("REOPENED: " + reason)
}

// Cancel marks the order CANCELLED, appending the reason to the note rather
// than overwriting it.
func (o *Order) Cancel(reason string, now time.Time) {
	o.Status = OrderCancelled
	o.UpdatedAt = now
	o.appendNote("CANCELLED: " + reason)
}

func (o *Order) appendNote(suffix string) {
	if o.Note != "" {
		o.Note += " | "
	}
	o.Note += suffix
}
