package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Table represents a physical seating unit. Occupancy is owned here and
// mutated only through the table registry; orders and tabs reference the
// table by id, never by embedded object graph.
type Table struct {
	bun.BaseModel `bun:"table:tables,alias:t"`

	ID        int64       `bun:",pk,autoincrement" json:"id"`
	Number    int         `bun:"number,unique,notnull" json:"number"`
	Status    TableStatus `bun:"status,notnull" json:"status"`
	Note      string      `bun:"note" json:"note,omitempty"`
	CreatedAt time.Time   `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time   `bun:"updated_at,nullzero" json:"updated_at"`
}
