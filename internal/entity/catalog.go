package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Category groups products for menu display and kitchen routing.
type Category struct {
	bun.BaseModel `bun:"table:categories"`

	ID   int64  `bun:",pk,autoincrement" json:"id"`
	Name string `bun:"name,unique,notnull" json:"name"`
}

// Product is a catalog entry. The order engine reads it exactly once, at
// item-add time, to freeze name and price into the order item.
type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID         int64           `bun:",pk,autoincrement" json:"id"`
	CategoryID int64           `bun:"category_id,notnull" json:"category_id"`
	Name       string          `bun:"name,notnull" json:"name"`
	Price      decimal.Decimal `bun:"price,type:numeric(10,2),notnull" json:"price"`
	Active     bool            `bun:"active,notnull" json:"active"`
	CreatedAt  time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`

	Category *Category `bun:"rel:belongs-to,join:category_id=id" json:"category,omitempty"`
}

// NeedsPreparation reports whether the kitchen should be alerted when this
// product lands on an order. Drinks and desserts skip the kitchen queue.
func (p *Product) NeedsPreparation() bool {
	if p.Category == nil {
		return true
	}
	name := strings.ToLower(p.Category.Name)
	return !strings.Contains(name, "drink") && !strings.Contains(name, "dessert")
}

// User is an operator identity, attached to orders for audit display.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        int64     `bun:",pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Login     string    `bun:"login,unique,notnull" json:"login"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}
