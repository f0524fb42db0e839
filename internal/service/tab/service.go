package tab

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

var serviceTracer = otel.Tracer("github.com/Additional-Code/comanda/service/tab")

// Service groups orders under tabs for a table visit. A tab holds the table
// OCCUPIED for as long as it is open; member orders ride that claim.
type Service struct {
	conns    *database.Connections
	tabs     *tabrepo.Repository
	orders   *orderrepo.Repository
	tables   *tablerepo.Repository
	users    *userrepo.Repository
	notifier *notifier.Notifier
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Connections *database.Connections
	Tabs        *tabrepo.Repository
	Orders      *orderrepo.Repository
	Tables      *tablerepo.Repository
	Users       *userrepo.Repository
	Notifier    *notifier.Notifier
	Logger      *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		conns:    p.Connections,
		tabs:     p.Tabs,
		orders:   p.Orders,
		tables:   p.Tables,
		users:    p.Users,
		notifier: p.Notifier,
		logger:   p.Logger,
	}
}

// Open starts a new tab on a FREE table, claiming it atomically. A table
// holds at most one OPEN tab at a time; any non-FREE table rejects the tab.
func (s *Service) Open(ctx context.Context, actorID, tableID int64) (*entity.Tab, error) {
	ctx, span := serviceTracer.Start(ctx, "TabService.Open", trace.WithAttributes(attribute.Int64("table.id", tableID)))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}

	tab := &entity.Tab{
		TableID:  tableID,
		Code:     newTabCode(),
		Status:   entity.TabOpen,
		OpenedAt: time.Now().UTC(),
	}

	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		claimed, err := s.tables.ClaimFree(ctx, tx, tableID)
		if err != nil {
			return errorbank.Internal("failed to claim table", errorbank.WithCause(err))
		}
		if !claimed {
			table, err := s.tables.Get(ctx, tx, tableID)
			if errors.Is(err, tablerepo.ErrNotFound) {
				return errorbank.NotFound("table not found", errorbank.WithDetail("id", tableID))
			}
			if err != nil {
				return errorbank.Internal("failed to load table", errorbank.WithCause(err))
			}
			return errorbank.InvalidState("table is not free",
				errorbank.WithDetail("number", table.Number),
				errorbank.WithDetail("status", string(table.Status)))
		}
		open, err := s.tabs.OpenExistsForTable(ctx, tx, tableID, 0)
		if err != nil {
			return errorbank.Internal("failed to check table tabs", errorbank.WithCause(err))
		}
		if open {
			return errorbank.InvalidState("table already has an open tab",
				errorbank.WithDetail("table_id", tableID))
		}
		if err := s.tabs.Create(ctx, tx, tab); err != nil {
			return errorbank.Internal("failed to create tab", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return nil, err
	}

	s.notifier.Publish(ctx, notifier.TabOpened, tab)
	return tab, nil
}

// Get retrieves a tab with its member orders.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Tab, error) {
	tab, err := s.tabs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, tabrepo.ErrNotFound) {
			return nil, errorbank.NotFound("tab not found", errorbank.WithDetail("id", id))
		}
		return nil, errorbank.Internal("failed to load tab", errorbank.WithCause(err))
	}
	return tab, nil
}

// GetByCode retrieves a tab by its printed code.
func (s *Service) GetByCode(ctx context.Context, code string) (*entity.Tab, error) {
	tab, err := s.tabs.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, tabrepo.ErrNotFound) {
			return nil, errorbank.NotFound("tab not found", errorbank.WithDetail("code", code))
		}
		return nil, errorbank.Internal("failed to load tab", errorbank.WithCause(err))
	}
	return tab, nil
}

// List returns all tabs.
func (s *Service) List(ctx context.Context) ([]*entity.Tab, error) {
	tabs, err := s.tabs.List(ctx)
	if err != nil {
		return nil, errorbank.Internal("failed to list tabs", errorbank.WithCause(err))
	}
	return tabs, nil
}

// ListByStatus returns tabs in one status.
func (s *Service) ListByStatus(ctx context.Context, status entity.TabStatus) ([]*entity.Tab, error) {
	tabs, err := s.tabs.ListByStatus(ctx, status)
	if err != nil {
		return nil, errorbank.Internal("failed to list tabs", errorbank.WithCause(err))
	}
	return tabs, nil
}

// ListByTable returns every tab opened at a table.
func (s *Service) ListByTable(ctx context.Context, tableID int64) ([]*entity.Tab, error) {
	tabs, err := s.tabs.ListByTable(ctx, tableID)
	if err != nil {
		return nil, errorbank.Internal("failed to list tabs", errorbank.WithCause(err))
	}
	return tabs, nil
}

// AttachOrder puts an existing order onto an open tab. The order must be
// non-terminal and sit at the tab's table.
func (s *Service) AttachOrder(ctx context.Context, actorID, tabID, orderID int64) error {
	ctx, span := serviceTracer.Start(ctx, "TabService.AttachOrder", trace.WithAttributes(
		attribute.Int64("tab.id", tabID),
		attribute.Int64("order.id", orderID),
	))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return err
	}

	return s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		tab, err := s.getOpen(ctx, tx, tabID)
		if err != nil {
			return err
		}
		order, err := s.getOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return errorbank.InvalidState("order status is final",
				errorbank.WithDetail("status", string(order.Status)))
		}
		if order.TableID != tab.TableID {
			return errorbank.InvalidArgument("order table does not match tab table",
				errorbank.WithDetail("order_table", order.TableID),
				errorbank.WithDetail("tab_table", tab.TableID))
		}
		if order.TabID != nil && *order.TabID != tabID {
			return errorbank.Conflict("order already belongs to another tab",
				errorbank.WithDetail("tab_id", *order.TabID))
		}
		order.TabID = &tab.ID
		order.UpdatedAt = time.Now().UTC()
		if err := s.orders.Update(ctx, tx, order); err != nil {
			return errorbank.Internal("failed to attach order", errorbank.WithCause(err))
		}
		return nil
	})
}

// DetachOrder removes an order from an open tab without touching the order
// lifecycle.
func (s *Service) DetachOrder(ctx context.Context, actorID, tabID, orderID int64) error {
	if err := s.requireActor(ctx, actorID); err != nil {
		return err
	}

	return s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.getOpen(ctx, tx, tabID); err != nil {
			return err
		}
		order, err := s.getOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.TabID == nil || *order.TabID != tabID {
			return errorbank.NotFound("order is not on this tab",
				errorbank.WithDetail("tab_id", tabID),
				errorbank.WithDetail("order_id", orderID))
		}
		order.TabID = nil
		order.UpdatedAt = time.Now().UTC()
		if err := s.orders.Update(ctx, tx, order); err != nil {
			return errorbank.Internal("failed to detach order", errorbank.WithCause(err))
		}
		return nil
	})
}

// Close settles a tab. Every member order must already be terminal. The
// table goes FREE only when no other open tab still sits on it.
func (s *Service) Close(ctx context.Context, actorID, tabID int64) (*entity.Tab, error) {
	ctx, span := serviceTracer.Start(ctx, "TabService.Close", trace.WithAttributes(attribute.Int64("tab.id", tabID)))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}

	var tab *entity.Tab
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		tab, err = s.getOpen(ctx, tx, tabID)
		if err != nil {
			return err
		}
		members, err := s.orders.ListByTab(ctx, tx, tabID)
		if err != nil {
			return errorbank.Internal("failed to load tab orders", errorbank.WithCause(err))
		}
		for _, member := range members {
			if !member.Status.Terminal() {
				return errorbank.InvalidState("tab has an unsettled order",
					errorbank.WithDetail("order_id", member.ID),
					errorbank.WithDetail("status", string(member.Status)))
			}
		}
		now := time.Now().UTC()
		tab.Status = entity.TabClosed
		tab.ClosedAt = &now
		tab.Orders = members
		if err := s.tabs.Update(ctx, tx, tab); err != nil {
			return errorbank.Internal("failed to close tab", errorbank.WithCause(err))
		}
		return s.releaseTableIfIdle(ctx, tx, tab.TableID, tabID)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "close failed")
		return nil, err
	}

	s.notifier.Publish(ctx, notifier.TabClosed, tab)
	return tab, nil
}

// Cancel voids a tab, force-cancelling any member order that is still live.
func (s *Service) Cancel(ctx context.Context, actorID, tabID int64, reason string) (*entity.Tab, error) {
	ctx, span := serviceTracer.Start(ctx, "TabService.Cancel", trace.WithAttributes(attribute.Int64("tab.id", tabID)))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, errorbank.InvalidArgument("cancellation reason is required")
	}

	var tab *entity.Tab
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		tab, err = s.getOpen(ctx, tx, tabID)
		if err != nil {
			return err
		}
		members, err := s.orders.ListByTab(ctx, tx, tabID)
		if err != nil {
			return errorbank.Internal("failed to load tab orders", errorbank.WithCause(err))
		}
		now := time.Now().UTC()
		for _, member := range members {
			if member.Status.Terminal() {
				continue
			}
			member.Cancel(reason, now)
			if err := s.orders.Update(ctx, tx, member); err != nil {
				return errorbank.Internal("failed to cancel tab order", errorbank.WithCause(err))
			}
		}
		tab.Status = entity.TabCancelled
		tab.ClosedAt = &now
		tab.Orders = members
		if err := s.tabs.Update(ctx, tx, tab); err != nil {
			return errorbank.Internal("failed to cancel tab", errorbank.WithCause(err))
		}
		return s.releaseTableIfIdle(ctx, tx, tab.TableID, tabID)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		return nil, err
	}

	s.notifier.Publish(ctx, notifier.TabCancelled, tab)
	return tab, nil
}

// Total sums the totals of the tab's settled member orders. The amount is
// derived from the CLOSED members at read time and never stored on the tab,
// so it stays correct as orders settle or get cancelled.
func (s *Service) Total(ctx context.Context, tabID int64) (decimal.Decimal, error) {
	tab, err := s.Get(ctx, tabID)
	if err != nil {
		return decimal.Zero, err
	}
	return tab.Total(), nil
}

func (s *Service) getOpen(ctx context.Context, tx bun.Tx, tabID int64) (*entity.Tab, error) {
	tab, err := s.tabs.Get(ctx, tx, tabID)
	if errors.Is(err, tabrepo.ErrNotFound) {
		return nil, errorbank.NotFound("tab not found", errorbank.WithDetail("id", tabID))
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load tab", errorbank.WithCause(err))
	}
	if tab.Status != entity.TabOpen {
		return nil, errorbank.InvalidState("tab is not open",
			errorbank.WithDetail("status", string(tab.Status)))
	}
	return tab, nil
}

func (s *Service) getOrder(ctx context.Context, tx bun.Tx, orderID int64) (*entity.Order, error) {
	order, err := s.orders.Get(ctx, tx, orderID)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found", errorbank.WithDetail("id", orderID))
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

// releaseTableIfIdle frees the table when neither another open tab nor a
// live standalone order still holds it.
func (s *Service) releaseTableIfIdle(ctx context.Context, tx bun.Tx, tableID, closingTabID int64) error {
	open, err := s.tabs.OpenExistsForTable(ctx, tx, tableID, closingTabID)
	if err != nil {
		return errorbank.Internal("failed to check table tabs", errorbank.WithCause(err))
	}
	if open {
		return nil
	}
	active, err := s.orders.ActiveExistsForTable(ctx, tx, tableID)
	if err != nil {
		return errorbank.Internal("failed to check table orders", errorbank.WithCause(err))
	}
	if active {
		return nil
	}
	if err := s.tables.SetStatus(ctx, tx, tableID, entity.TableFree); err != nil {
		return errorbank.Internal("failed to free table", errorbank.WithCause(err))
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

// newTabCode mints a printable tab code: "CMD" plus eight uppercase hex
// characters.
func newTabCode() string {
	id := uuid.New()
	return "CMD" + strings.ToUpper(hex.EncodeToString(id[:])[:8])
}
