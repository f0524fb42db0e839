package table

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

var repoTracer = otel.Tracer("github.com/Additional-Code/comanda/repository/table")

// ErrNotFound is returned when a table is missing.
var ErrNotFound = errors.New("table not found")

// Repository encapsulates read/write access for tables.
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

// Create persists a new table using the write connection.
func (r *Repository) Create(ctx context.Context, table *entity.Table) error {
	if table == nil {
		return errors.New("nil table")
	}
	ctx, span := repoTracer.Start(ctx, "TableRepository.Create", trace.WithAttributes(attribute.Int("table.number", table.Number)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(table).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a table by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Table, error) {
	ctx, span := repoTracer.Start(ctx, "TableRepository.GetByID", trace.WithAttributes(attribute.Int64("table.id", id)))
	defer span.End()

	table := new(entity.Table)
	err := r.reader.NewSelect().Model(table).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return table, nil
}

// Get fetches a table within the given transaction scope.
func (r *Repository) Get(ctx context.Context, db bun.IDB, id int64) (*entity.Table, error) {
	table := new(entity.Table)
	err := db.NewSelect().Model(table).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return table, nil
}

// GetByNumber fetches a table by its display number.
func (r *Repository) GetByNumber(ctx context.Context, number int) (*entity.Table, error) {
	table := new(entity.Table)
	err := r.reader.NewSelect().Model(table).Where("number = ?", number).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return table, nil
}

// ExistsByNumber reports whether any table carries the given number.
func (r *Repository) ExistsByNumber(ctx context.Context, number int) (bool, error) {
	return r.reader.NewSelect().Model((*entity.Table)(nil)).Where("number = ?", number).Exists(ctx)
}

// List returns all tables ordered by number.
func (r *Repository) List(ctx context.Context) ([]*entity.Table, error) {
	ctx, span := repoTracer.Start(ctx, "TableRepository.List")
	defer span.End()

	var tables []*entity.Table
	err := r.reader.NewSelect().Model(&tables).Order("number ASC").Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return tables, nil
}

// ListByStatus returns tables in the given occupancy status.
func (r *Repository) ListByStatus(ctx context.Context, status entity.TableStatus) ([]*entity.Table, error) {
	var tables []*entity.Table
	err := r.reader.NewSelect().Model(&tables).Where("status = ?", status).Order("number ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// Update persists the full table row.
func (r *Repository) Update(ctx context.Context, db bun.IDB, table *entity.Table) error {
	if table == nil {
		return errors.New("nil table")
	}
	_, err := db.NewUpdate().Model(table).WherePK().Exec(ctx)
	return err
}

// ClaimFree flips a FREE table to OCCUPIED, guarded on the current status so
// only one of two racing claims wins. Returns false when the table was not
// FREE at the moment of the update.
func (r *Repository) ClaimFree(ctx context.Context, db bun.IDB, id int64) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "TableRepository.ClaimFree", trace.WithAttributes(attribute.Int64("table.id", id)))
	defer span.End()

	res, err := db.NewUpdate().
		Model((*entity.Table)(nil)).
		Set("status = ?", entity.TableOccupied).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", id).
		Where("status = ?", entity.TableFree).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "guarded update failed")
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// SetStatus updates the occupancy status unconditionally.
func (r *Repository) SetStatus(ctx context.Context, db bun.IDB, id int64, status entity.TableStatus) error {
	res, err := db.NewUpdate().
		Model((*entity.Table)(nil)).
		Set("status = ?", status).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a table row.
func (r *Repository) Delete(ctx context.Context, db bun.IDB, id int64) error {
	res, err := db.NewDelete().Model((*entity.Table)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
