package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/comanda/internal/database"
	"github.com/Additional-Code/comanda/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/comanda/repository/payment")

// ErrNotFound is returned when a payment is missing.
var ErrNotFound = errors.New("payment not found")

// Repository encapsulates read/write access for payments.
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

// Create persists a new payment.
func (r *Repository) Create(ctx context.Context, db bun.IDB, payment *entity.Payment) error {
	if payment == nil {
		return errors.New("nil payment")
	}
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.Create", trace.WithAttributes(attribute.Int64("payment.order_id", payment.OrderID)))
	defer span.End()

	_, err := db.NewInsert().Model(payment).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a payment by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Payment, error) {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.GetByID", trace.WithAttributes(attribute.Int64("payment.id", id)))
	defer span.End()

	payment := new(entity.Payment)
	err := r.reader.NewSelect().Model(payment).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return payment, nil
}

// Get fetches a payment within the transaction scope.
func (r *Repository) Get(ctx context.Context, db bun.IDB, id int64) (*entity.Payment, error) {
	payment := new(entity.Payment)
	err := db.NewSelect().Model(payment).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// GetByTransactionCode fetches a payment by its transaction code.
func (r *Repository) GetByTransactionCode(ctx context.Context, code string) (*entity.Payment, error) {
	payment := new(entity.Payment)
	err := r.reader.NewSelect().Model(payment).Where("transaction_code = ?", code).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// Update persists the full payment row.
func (r *Repository) Update(ctx context.Context, db bun.IDB, payment *entity.Payment) error {
	if payment == nil {
		return errors.New("nil payment")
	}
	_, err := db.NewUpdate().Model(payment).WherePK().Exec(ctx)
	return err
}

// Delete removes a payment row.
func (r *Repository) Delete(ctx context.Context, db bun.IDB, id int64) error {
	res, err := db.NewDelete().Model((*entity.Payment)(nil)).Where("id = ?", id).Exec(ctx)
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

// ListByOrder returns the payments recorded against an order.
func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]*entity.Payment, error) {
	var payments []*entity.Payment
	err := r.reader.NewSelect().Model(&payments).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// ListByStatus returns payments in the given status, newest first.
func (r *Repository) ListByStatus(ctx context.Context, status entity.PaymentStatus) ([]*entity.Payment, error) {
	var payments []*entity.Payment
	err := r.reader.NewSelect().Model(&payments).
		Where("status = ?", status).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// ListByMethod returns payments taken with the given method, newest first.
func (r *Repository) ListByMethod(ctx context.Context, method entity.PaymentMethod) ([]*entity.Payment, error) {
	var payments []*entity.Payment
	err := r.reader.NewSelect().Model(&payments).
		Where("method = ?", method).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// ListByPeriod returns payments created within [from, to), oldest first.
func (r *Repository) ListByPeriod(ctx context.Context, from, to time.Time) ([]*entity.Payment, error) {
	var payments []*entity.Payment
	err := r.reader.NewSelect().Model(&payments).
		Where("created_at >= ?", from).
		Where("created_at < ?", to).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// ApprovedExistsForOrder reports whether the order already has an APPROVED
// payment.
func (r *Repository) ApprovedExistsForOrder(ctx context.Context, db bun.IDB, orderID int64) (bool, error) {
	return db.NewSelect().
		Model((*entity.Payment)(nil)).
		Where("order_id = ?", orderID).
		Where("status = ?", entity.PaymentApproved).
		Exists(ctx)
}

// SumApprovedByPeriod totals APPROVED payments confirmed within [from, to).
func (r *Repository) SumApprovedByPeriod(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.SumApprovedByPeriod")
	defer span.End()

	var raw sql.NullString
	err := r.reader.NewSelect().
		Model((*entity.Payment)(nil)).
		ColumnExpr("sum(amount)").
		Where("status = ?", entity.PaymentApproved).
		Where("confirmed_at >= ?", from).
		Where("confirmed_at < ?", to).
		Scan(ctx, &raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return decimal.Zero, err
	}
	if !raw.Valid {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw.String)
}
