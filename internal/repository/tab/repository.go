package tab

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/comanda/internal/database"
	"github.com/Additional-Code/comanda/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/comanda/repository/tab")

// ErrNotFound is returned when a tab is missing.
var ErrNotFound = errors.New("tab not found")

// Repository encapsulates read/write access for tabs.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new tab.
func (r *Repository) Create(ctx context.Context, db bun.IDB, tab *entity.Tab) error {
	if tab == nil {
		return errors.New("nil tab")
	}
	ctx, span := repoTracer.Start(ctx, "TabRepository.Create", trace.WithAttributes(attribute.Int64("tab.table_id", tab.TableID)))
	defer span.End()

	_, err := db.NewInsert().Model(tab).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a tab with its member orders.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Tab, error) {
	ctx, span := repoTracer.Start(ctx, "TabRepository.GetByID", trace.WithAttributes(attribute.Int64("tab.id", id)))
	defer span.End()

	t := new(entity.Tab)
	err := r.reader.NewSelect().Model(t).Relation("Orders").Where("tab.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return t, nil
}

// Get fetches a tab, without relations, within the transaction scope.
func (r *Repository) Get(ctx context.Context, db bun.IDB, id int64) (*entity.Tab, error) {
	t := new(entity.Tab)
	err := db.NewSelect().Model(t).Where("tab.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetByCode fetches a tab by its printed code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*entity.Tab, error) {
	t := new(entity.Tab)
	err := r.reader.NewSelect().Model(t).Relation("Orders").Where("tab.code = ?", code).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Update persists the full tab row.
func (r *Repository) Update(ctx context.Context, db bun.IDB, tab *entity.Tab) error {
	if tab == nil {
		return errors.New("nil tab")
	}
	_, err := db.NewUpdate().Model(tab).WherePK().Exec(ctx)
	return err
}

// List returns all tabs newest first.
func (r *Repository) List(ctx context.Context) ([]*entity.Tab, error) {
	var tabs []*entity.Tab
	err := r.reader.NewSelect().Model(&tabs).Order("tab.opened_at DESC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tabs, nil
}

// ListByStatus returns tabs in the given status.
func (r *Repository) ListByStatus(ctx context.Context, status entity.TabStatus) ([]*entity.Tab, error) {
	var tabs []*entity.Tab
	err := r.reader.NewSelect().Model(&tabs).
		Where("tab.status = ?", status).
		Order("tab.opened_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tabs, nil
}

// ListByTable returns every tab opened at a table, newest first.
func (r *Repository) ListByTable(ctx context.Context, tableID int64) ([]*entity.Tab, error) {
	var tabs []*entity.Tab
	err := r.reader.NewSelect().Model(&tabs).
		Where("tab.table_id = ?", tableID).
		Order("tab.opened_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tabs, nil
}

// OpenExistsForTable reports whether the table still has an OPEN tab,
// optionally excluding one tab id. The exclusion lets a closing tab ask
// "any open tab besides me" before freeing the table.
func (r *Repository) OpenExistsForTable(ctx context.Context, db bun.IDB, tableID, excludeTabID int64) (bool, error) {
	q := db.NewSelect().
		Model((*entity.Tab)(nil)).
		Where("table_id = ?", tableID).
		Where("status = ?", entity.TabOpen)
	if excludeTabID > 0 {
		q = q.Where("id != ?", excludeTabID)
	}
	return q.Exists(ctx)
}
