package table

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/comanda/internal/database"
	"github.com/Additional-Code/comanda/internal/entity"
	"github.com/Additional-Code/comanda/internal/notifier"
	orderrepo "github.com/Additional-Code/comanda/internal/repository/order"
	tabrepo "github.com/Additional-Code/comanda/internal/repository/tab"
	tablerepo "github.com/Additional-Code/comanda/internal/repository/table"
	userrepo "github.com/Additional-Code/comanda/internal/repository/user"
	"github.com/Additional-Code/comanda/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/comanda/service/table")

// Service is the table registry. It owns occupancy; no other service writes
// table status except through the guarded claim and the idle release.
type Service struct {
	conns    *database.Connections
	tables   *tablerepo.Repository
	orders   *orderrepo.Repository
	tabs     *tabrepo.Repository
	users    *userrepo.Repository
	notifier *notifier.Notifier
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Connections *database.Connections
	Tables      *tablerepo.Repository
	Orders      *orderrepo.Repository
	Tabs        *tabrepo.Repository
	Users       *userrepo.Repository
	Notifier    *notifier.Notifier
	Logger      *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		conns:    p.Connections,
		tables:   p.Tables,
		orders:   p.Orders,
		tabs:     p.Tabs,
		users:    p.Users,
		notifier: p.Notifier,
		logger:   p.Logger,
	}
}

// Create registers a new table with a unique display number, starting FREE.
func (s *Service) Create(ctx context.Context, actorID int64, number int, note string) (*entity.Table, error) {
	ctx, span := serviceTracer.Start(ctx, "TableService.Create", trace.WithAttributes(attribute.Int("table.number", number)))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	if number <= 0 {
		return nil, errorbank.InvalidArgument("table number must be greater than zero",
			errorbank.WithDetail("number", number))
	}

	exists, err := s.tables.ExistsByNumber(ctx, number)
	if err != nil {
		return nil, errorbank.Internal("failed to check table number", errorbank.WithCause(err))
	}
	if exists {
		return nil, errorbank.Conflict("table number already registered",
			errorbank.WithDetail("number", number))
	}

	now := time.Now().UTC()
	table := &entity.Table{
		Number:    number,
		Status:    entity.TableFree,
		Note:      note,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tables.Create(ctx, table); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, errorbank.Internal("failed to create table", errorbank.WithCause(err))
	}

	s.notifier.Publish(ctx, notifier.TableUpdated, table)
	return table, nil
}

// Get retrieves a table by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Table, error) {
	table, err := s.tables.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, tablerepo.ErrNotFound) {
			return nil, errorbank.NotFound("table not found", errorbank.WithDetail("id", id))
		}
		return nil, errorbank.Internal("failed to load table", errorbank.WithCause(err))
	}
	return table, nil
}

// GetByNumber retrieves a table by its display number.
func (s *Service) GetByNumber(ctx context.Context, number int) (*entity.Table, error) {
	table, err := s.tables.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, tablerepo.ErrNotFound) {
			return nil, errorbank.NotFound("table not found", errorbank.WithDetail("number", number))
		}
		return nil, errorbank.Internal("failed to load table", errorbank.WithCause(err))
	}
	return table, nil
}

// List returns all tables ordered by number.
func (s *Service) List(ctx context.Context) ([]*entity.Table, error) {
	tables, err := s.tables.List(ctx)
	if err != nil {
		return nil, errorbank.Internal("failed to list tables", errorbank.WithCause(err))
	}
	return tables, nil
}

// ListByStatus returns tables in one occupancy status.
func (s *Service) ListByStatus(ctx context.Context, status entity.TableStatus) ([]*entity.Table, error) {
	if !validTableStatus(status) {
		return nil, errorbank.InvalidArgument("unknown table status",
			errorbank.WithDetail("status", string(status)))
	}
	tables, err := s.tables.ListByStatus(ctx, status)
	if err != nil {
		return nil, errorbank.Internal("failed to list tables", errorbank.WithCause(err))
	}
	return tables, nil
}

// SetStatus sets the occupancy status directly. Freeing a table that still
// has live orders or an open tab is rejected; the lifecycle services free
// tables themselves when the last claim ends.
func (s *Service) SetStatus(ctx context.Context, actorID, id int64, status entity.TableStatus) (*entity.Table, error) {
	ctx, span := serviceTracer.Start(ctx, "TableService.SetStatus", trace.WithAttributes(
		attribute.Int64("table.id", id),
		attribute.String("table.status", string(status)),
	))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	if !validTableStatus(status) {
		return nil, errorbank.InvalidArgument("unknown table status",
			errorbank.WithDetail("status", string(status)))
	}

	var table *entity.Table
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		table, err = s.tables.Get(ctx, tx, id)
		if errors.Is(err, tablerepo.ErrNotFound) {
			return errorbank.NotFound("table not found", errorbank.WithDetail("id", id))
		}
		if err != nil {
			return errorbank.Internal("failed to load table", errorbank.WithCause(err))
		}
		if status == entity.TableFree {
			if err := s.requireIdle(ctx, tx, id); err != nil {
				return err
			}
		}
		table.Status = status
		table.UpdatedAt = time.Now().UTC()
		return s.tables.Update(ctx, tx, table)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "set status failed")
		return nil, err
	}

	s.notifier.Publish(ctx, notifier.TableUpdated, table)
	return table, nil
}

// Delete removes a table that has no live orders and no open tab.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.requireActor(ctx, actorID); err != nil {
		return err
	}

	return s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.tables.Get(ctx, tx, id); err != nil {
			if errors.Is(err, tablerepo.ErrNotFound) {
				return errorbank.NotFound("table not found", errorbank.WithDetail("id", id))
			}
			return errorbank.Internal("failed to load table", errorbank.WithCause(err))
		}
		if err := s.requireIdle(ctx, tx, id); err != nil {
			return err
		}
		if err := s.tables.Delete(ctx, tx, id); err != nil {
			return errorbank.Internal("failed to delete table", errorbank.WithCause(err))
		}
		return nil
	})
}

// requireIdle rejects when the table still backs a live order or an open tab.
func (s *Service) requireIdle(ctx context.Context, tx bun.Tx, tableID int64) error {
	active, err := s.orders.ActiveExistsForTable(ctx, tx, tableID)
	if err != nil {
		return errorbank.Internal("failed to check table orders", errorbank.WithCause(err))
	}
	if active {
		return errorbank.InvalidState("table has an active order",
			errorbank.WithDetail("table_id", tableID))
	}
	open, err := s.tabs.OpenExistsForTable(ctx, tx, tableID, 0)
	if err != nil {
		return errorbank.Internal("failed to check table tabs", errorbank.WithCause(err))
	}
	if open {
		return errorbank.InvalidState("table has an open tab",
			errorbank.WithDetail("table_id", tableID))
	}
	return nil
}

func (s *Service) requireActor(ctx context.Context, actorID int64) error {
	if actorID <= 0 {
		return errorbank.InvalidArgument("acting user is required")
	}
	exists, err := s.users.Exists(ctx, actorID)
	if err != nil {
		return errorbank.Internal("failed to verify acting user", errorbank.WithCause(err))
	}
	if !exists {
		return errorbank.NotFound("user not found", errorbank.WithDetail("id", actorID))
	}
	return nil
}

func validTableStatus(status entity.TableStatus) bool {
	switch status {
	case entity.TableFree, entity.TableOccupied, entity.TableReserved:
		return true
	}
	return false
}
