package dto

import (
	"time"

	"github.com/Additional-Code/comanda/internal/entity"
)

// TableResponse represents a table as exposed via transport layers.
type TableResponse struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTableResponse maps a table entity onto its transport shape.
func NewTableResponse(table *entity.Table) TableResponse {
	return TableResponse{
		ID:        table.ID,
		Number:    table.Number,
		Status:    string(table.Status),
		Note:      table.Note,
		CreatedAt: table.CreatedAt,
		UpdatedAt: table.UpdatedAt,
	}
}

// NewTableResponses maps a slice of tables.
func NewTableResponses(tables []*entity.Table) []TableResponse {
	out := make([]TableResponse, 0, len(tables))
	for _, table := range tables {
		out = append(out, NewTableResponse(table))
	}
	return out
}
