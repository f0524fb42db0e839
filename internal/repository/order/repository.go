package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/comanda/internal/database"
	"github.com/Additional-Code/comanda/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/comanda/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// ErrItemNotFound is returned when an order item is missing.
var ErrItemNotFound = errors.New("order item not found")

// Repository encapsulates read/write access for orders and their items.
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

// Create persists a new order and its items in one pass.
func (r *Repository) Create(ctx context.Context, db bun.IDB, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.Int64("order.table_id", order.TableID)))
	defer span.End()

	if _, err := db.NewInsert().Model(order).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	for _, item := range order.Items {
		item.OrderID = order.ID
		if _, err := db.NewInsert().Model(item).Exec(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "item insert failed")
			return err
		}
	}
	return nil
}

// GetByID fetches an order with its items using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Relation("Items").Where("o.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// Get fetches an order with its items within the given transaction scope.
func (r *Repository) Get(ctx context.Context, db bun.IDB, id int64) (*entity.Order, error) {
	order := new(entity.Order)
	err := db.NewSelect().Model(order).Relation("Items").Where("o.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Update persists the full order row. Items are written separately.
func (r *Repository) Update(ctx context.Context, db bun.IDB, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	_, err := db.NewUpdate().Model(order).WherePK().Exec(ctx)
	return err
}

// UpdateStatusGuard moves an order from one status to another, guarded on the
// current status so concurrent transitions resolve to exactly one winner.
// Returns false when the order was no longer in the expected status.
func (r *Repository) UpdateStatusGuard(ctx context.Context, db bun.IDB, id int64, from, to entity.OrderStatus) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatusGuard", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.from", string(from)),
		attribute.String("order.to", string(to)),
	))
	defer span.End()

	res, err := db.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("status = ?", to).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", id).
		Where("status = ?", from).
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

// CreateItem persists a new order item.
func (r *Repository) CreateItem(ctx context.Context, db bun.IDB, item *entity.OrderItem) error {
	if item == nil {
		return errors.New("nil order item")
	}
	_, err := db.NewInsert().Model(item).Exec(ctx)
	return err
}

// UpdateItem persists the full item row.
func (r *Repository) UpdateItem(ctx context.Context, db bun.IDB, item *entity.OrderItem) error {
	if item == nil {
		return errors.New("nil order item")
	}
	_, err := db.NewUpdate().Model(item).WherePK().Exec(ctx)
	return err
}

// DeleteItem removes a single order item.
func (r *Repository) DeleteItem(ctx context.Context, db bun.IDB, itemID int64) error {
	res, err := db.NewDelete().Model((*entity.OrderItem)(nil)).Where("id = ?", itemID).Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Delete removes an order and its items.
func (r *Repository) Delete(ctx context.Context, db bun.IDB, id int64) error {
	if _, err := db.NewDelete().Model((*entity.OrderItem)(nil)).Where("order_id = ?", id).Exec(ctx); err != nil {
		return err
	}
	res, err := db.NewDelete().Model((*entity.Order)(nil)).Where("id = ?", id).Exec(ctx)
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

// List returns all orders newest first.
func (r *Repository) List(ctx context.Context) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	var orders []*entity.Order
	err := r.reader.NewSelect().Model(&orders).Relation("Items").Order("o.created_at DESC").Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// ListByStatus returns orders in the given status, oldest first so the
// kitchen works the queue in arrival order.
func (r *Repository) ListByStatus(ctx context.Context, status entity.OrderStatus) ([]*entity.Order, error) {
	var orders []*entity.Order
	err := r.reader.NewSelect().Model(&orders).Relation("Items").
		Where("o.status = ?", status).
		Order("o.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListByStatuses returns orders whose status is any of the given set.
func (r *Repository) ListByStatuses(ctx context.Context, statuses []entity.OrderStatus) ([]*entity.Order, error) {
	var orders []*entity.Order
	err := r.reader.NewSelect().Model(&orders).Relation("Items").
		Where("o.status IN (?)", bun.In(statuses)).
		Order("o.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListByTable returns every order ever taken at a table, newest first.
func (r *Repository) ListByTable(ctx context.Context, tableID int64) ([]*entity.Order, error) {
	var orders []*entity.Order
	err := r.reader.NewSelect().Model(&orders).Relation("Items").
		Where("o.table_id = ?", tableID).
		Order("o.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListByPeriod returns orders created within [from, to).
func (r *Repository) ListByPeriod(ctx context.Context, from, to time.Time) ([]*entity.Order, error) {
	var orders []*entity.Order
	err := r.reader.NewSelect().Model(&orders).Relation("Items").
		Where("o.created_at >= ?", from).
		Where("o.created_at < ?", to).
		Order("o.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ActiveExistsForTable reports whether the table has any non-terminal order.
func (r *Repository) ActiveExistsForTable(ctx context.Context, db bun.IDB, tableID int64) (bool, error) {
	return db.NewSelect().
		Model((*entity.Order)(nil)).
		Where("table_id = ?", tableID).
		Where("status NOT IN (?)", bun.In([]entity.OrderStatus{entity.OrderClosed, entity.OrderCancelled})).
		Exists(ctx)
}

// ListByTab returns the member orders of a tab within the transaction scope.
func (r *Repository) ListByTab(ctx context.Context, db bun.IDB, tabID int64) ([]*entity.Order, error) {
	var orders []*entity.Order
	err := db.NewSelect().Model(&orders).
		Where("tab_id = ?", tabID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// CountByStatus returns how many orders sit in each status.
func (r *Repository) CountByStatus(ctx context.Context) (map[entity.OrderStatus]int, error) {
	var rows []struct {
		Status entity.OrderStatus `bun:"status"`
		Count  int                `bun:"count"`
	}
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		ColumnExpr("status").
		ColumnExpr("count(*) AS count").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	counts := make(map[entity.OrderStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
