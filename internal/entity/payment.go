package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Payment records money taken against a closed order. Exactly one APPROVED
// payment is expected per settled order in the normal path.
type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:p"`

	ID      int64 `bun:",pk,autoincrement" json:"id"`
	OrderID int64 `bun:"order_id,notnull" json:"order_id"`

	Method PaymentMethod   `bun:"method,notnull" json:"method"`
	Amount decimal.Decimal `bun:"amount,type:numeric(10,2),notnull" json:"amount"`
	Status PaymentStatus   `bun:"status,notnull" json:"status"`

	// TransactionCode is system generated and globally unique.
	TransactionCode string `bun:"transaction_code,unique,notnull" json:"transaction_code"`

	Note string `bun:"note" json:"note,omitempty"`

	// Optional card metadata.
	Installments   int    `bun:"installments" json:"installments,omitempty"`
	CardBrand      string `bun:"card_brand" json:"card_brand,omitempty"`
	CardLastDigits string `bun:"card_last_digits" json:"card_last_digits,omitempty"`

	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	ConfirmedAt *time.Time `bun:"confirmed_at" json:"confirmed_at,omitempty"`
}
