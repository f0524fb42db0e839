package entity

import (
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// OrderItem is a single line of an order. Product name and unit price are
// copied from the catalog at add time and never re-read afterwards, so later
// catalog price changes do not affect existing orders.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID          int64           `bun:",pk,autoincrement" json:"id"`
	OrderID     int64           `bun:"order_id,notnull" json:"order_id"`
	ProductID   int64           `bun:"product_id,notnull" json:"product_id"`
	ProductName string          `bun:"product_name,notnull" json:"product_name"`
	Quantity    int             `bun:"quantity,notnull" json:"quantity"`
	UnitPrice   decimal.Decimal `bun:"unit_price,type:numeric(10,2),notnull" json:"unit_price"`
	Note        string          `bun:"note" json:"note,omitempty"`
}

// LineTotal is unit price times quantity.
func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
