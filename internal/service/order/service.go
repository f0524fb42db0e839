package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/comanda/internal/cache"
	"github.com/Additional-Code/comanda/internal/config"
	"github.com/Additional-Code/comanda/internal/database"
	"github.com/Additional-Code/comanda/internal/entity"
	"github.com/Additional-Code/comanda/internal/notifier"
	catalogrepo "github.com/Additional-Code/comanda/internal/repository/catalog"
	orderrepo "github.com/Additional-Code/comanda/internal/repository/order"
	tabrepo "github.com/Additional-Code/comanda/internal/repository/tab"
	tablerepo "github.com/Additional-Code/comanda/internal/repository/table"
	userrepo "github.com/Additional-Code/comanda/internal/repository/user"
	"github.com/Additional-Code/comanda/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/comanda/service/order")

// Service owns the order lifecycle up to, but not including, settlement.
// Closing and payment live in the settlement service.
type Service struct {
	conns    *database.Connections
	orders   *orderrepo.Repository
	tables   *tablerepo.Repository
	tabs     *tabrepo.Repository
	catalog  *catalogrepo.Repository
	users    *userrepo.Repository
	cache    cache.Store
	cacheTTL time.Duration
	notifier *notifier.Notifier
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Connections *database.Connections
	Orders      *orderrepo.Repository
	Tables      *tablerepo.Repository
	Tabs        *tabrepo.Repository
	Catalog     *catalogrepo.Repository
	Users       *userrepo.Repository
	Cache       cache.Store
	Config      config.Config
	Notifier    *notifier.Notifier
	Logger      *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		conns:    p.Connections,
		orders:   p.Orders,
		tables:   p.Tables,
		tabs:     p.Tabs,
		catalog:  p.Catalog,
		users:    p.Users,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		notifier: p.Notifier,
		logger:   p.Logger,
	}
}

// ItemInput describes one line to add to an order. Name and price are frozen
// from the catalog at add time, never taken from the caller.
type ItemInput struct {
	ProductID int64
	Quantity  int
	Note      string
}

// CreateInput describes a new order.
type CreateInput struct {
	TableID int64
	TabID   *int64
	Note    string
	Items   []ItemInput
}

// Create opens a new order for the acting user. A standalone order claims a
// FREE table atomically; an order attached to an OPEN tab rides the tab's
// existing claim on the table.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(
		attribute.Int64("actor.id", actorID),
		attribute.Int64("table.id", in.TableID),
	))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, errorbank.InvalidArgument("order requires at least one item")
	}

	now := time.Now().UTC()
	order := &entity.Order{
		TableID:   in.TableID,
		UserID:    actorID,
		TabID:     in.TabID,
		Status:    entity.OrderOpen,
		Note:      in.Note,
		Subtotal:  decimal.Zero,
		Surcharge: decimal.Zero,
		Discount:  decimal.Zero,
		Total:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var needsPreparation bool
	for _, itemIn := range in.Items {
		item, prep, err := s.freezeItem(ctx, itemIn)
		if err != nil {
			return nil, err
		}
		needsPreparation = needsPreparation || prep
		order.AddItem(item)
	}

	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if in.TabID != nil {
			tab, err := s.tabs.Get(ctx, tx, *in.TabID)
			if err != nil {
				if errors.Is(err, tabrepo.ErrNotFound) {
					return errorbank.NotFound("tab not found", errorbank.WithDetail("id", *in.TabID))
				}
				return errorbank.Internal("failed to load tab", errorbank.WithCause(err))
			}
			if tab.Status != entity.TabOpen {
				return errorbank.InvalidState("tab is not open",
					errorbank.WithDetail("status", string(tab.Status)))
			}
			if tab.TableID != in.TableID {
				return errorbank.InvalidArgument("order table does not match tab table",
					errorbank.WithDetail("order_table", in.TableID),
					errorbank.WithDetail("tab_table", tab.TableID))
			}
		} else {
			claimed, err := s.tables.ClaimFree(ctx, tx, in.TableID)
			if err != nil {
				return errorbank.Internal("failed to claim table", errorbank.WithCause(err))
			}
			if !claimed {
				table, err := s.tables.Get(ctx, tx, in.TableID)
				if errors.Is(err, tablerepo.ErrNotFound) {
					return errorbank.NotFound("table not found", errorbank.WithDetail("id", in.TableID))
				}
				if err != nil {
					return errorbank.Internal("failed to load table", errorbank.WithCause(err))
				}
				return errorbank.InvalidState("table is not free",
					errorbank.WithDetail("table", table.Number),
					errorbank.WithDetail("status", string(table.Status)))
			}
		}

		if err := s.orders.Create(ctx, tx, order); err != nil {
			return errorbank.Internal("failed to create order", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}

	s.storeInCache(ctx, order)
	s.notifier.Publish(ctx, notifier.OrderCreated, order)
	if needsPreparation {
		s.notifier.Publish(ctx, notifier.KitchenAlert, order)
	}
	return order, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found", errorbank.WithDetail("id", id))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	s.storeInCache(ctx, order)
	return order, nil
}

// AddItem freezes a catalog product onto an OPEN order and recomputes totals.
func (s *Service) AddItem(ctx context.Context, actorID, orderID int64, in ItemInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.AddItem", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("product.id", in.ProductID),
	))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}

	item, needsPreparation, err := s.freezeItem(ctx, in)
	if err != nil {
		return nil, err
	}

	var order *entity.Order
	err = s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		order, err = s.getOpenForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		order.AddItem(item)
		if err := s.orders.CreateItem(ctx, tx, item); err != nil {
			return errorbank.Internal("failed to add item", errorbank.WithCause(err))
		}
		order.UpdatedAt = time.Now().UTC()
		if err := s.orders.Update(ctx, tx, order); err != nil {
			return errorbank.Internal("failed to update order totals", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "add item failed")
		return nil, err
	}

	s.invalidateCache(ctx, orderID)
	s.notifier.Publish(ctx, notifier.ItemAdded, order)
	if needsPreparation {
		s.notifier.Publish(ctx, notifier.KitchenAlert, order)
	}
	return order, nil
}

// RemoveItem drops an item from an OPEN order and recomputes totals.
func (s *Service) RemoveItem(ctx context.Context, actorID, orderID, itemID int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.RemoveItem", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("item.id", itemID),
	))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}

	var order *entity.Order
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		order, err = s.getOpenForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		removed := order.RemoveItem(itemID)
		if removed == nil {
			return errorbank.NotFound("order item not found",
				errorbank.WithDetail("order", orderID),
				errorbank.WithDetail("item", itemID))
		}
		if err := s.orders.DeleteItem(ctx, tx, itemID); err != nil {
			return errorbank.Internal("failed to remove item", errorbank.WithCause(err))
		}
		order.UpdatedAt = time.Now().UTC()
		if err := s.orders.Update(ctx, tx, order); err != nil {
			return errorbank.Internal("failed to update order totals", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "remove item failed")
		return nil, err
	}

	s.invalidateCache(ctx, orderID)
	s.notifier.Publish(ctx, notifier.ItemRemoved, order)
	return order, nil
}

// UpdateItemQuantity changes the quantity of an existing line on an OPEN
// order. The frozen unit price is untouched.
func (s *Service) UpdateItemQuantity(ctx context.Context, actorID, orderID, itemID int64, quantity int) (*entity.Order, error) {
	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, errorbank.InvalidArgument("quantity must be greater than zero",
			errorbank.WithDetail("quantity", quantity))
	}

	var order *entity.Order
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		order, err = s.getOpenForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		item := order.Item(itemID)
		if item == nil {
			return errorbank.NotFound("order item not found",
				errorbank.WithDetail("order", orderID),
				errorbank.WithDetail("item", itemID))
		}
		item.Quantity = quantity
		order.Recalculate()
		if err := s.orders.UpdateItem(ctx, tx, item); err != nil {
			return errorbank.Internal("failed to update item", errorbank.WithCause(err))
		}
		order.UpdatedAt = time.Now().UTC()
		if err := s.orders.Update(ctx, tx, order); err != nil {
			return errorbank.Internal("failed to update order totals", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, orderID)
	s.notifier.Publish(ctx, notifier.OrderUpdated, order)
	return order, nil
}

// ApplySurcharge sets the surcharge on a non-terminal order. A second call
// replaces the first rather than stacking.
func (s *Service) ApplySurcharge(ctx context.Context, actorID, orderID int64, amount decimal.Decimal, justification string) (*entity.Order, error) {
	return s.applyAdjustment(ctx, actorID, orderID, func(order *entity.Order) error {
		return order.ApplySurcharge(amount, justification)
	})
}

// ApplyDiscount sets the discount on a non-terminal order, bounded by
// subtotal plus surcharge. A second call replaces the first.
func (s *Service) ApplyDiscount(ctx context.Context, actorID, orderID int64, amount decimal.Decimal, justification string) (*entity.Order, error) {
	return s.applyAdjustment(ctx, actorID, orderID, func(order *entity.Order) error {
		return order.ApplyDiscount(amount, justification)
	})
}

func (s *Service) applyAdjustment(ctx context.Context, actorID, orderID int64, apply func(*entity.Order) error) (*entity.Order, error) {
	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}

	var order *entity.Order
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		order, err = s.getForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return errorbank.InvalidState("order status is final",
				errorbank.WithDetail("status", string(order.Status)))
		}
		if err := apply(order); err != nil {
			return err
		}
		order.UpdatedAt = time.Now().UTC()
		if err := s.orders.Update(ctx, tx, order); err != nil {
			return errorbank.Internal("failed to update order", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, orderID)
	s.notifier.Publish(ctx, notifier.OrderUpdated, order)
	return order, nil
}

// UpdateNote replaces the free-form note on a non-terminal order.
func (s *Service) UpdateNote(ctx context.Context, actorID, orderID int64, note string) (*entity.Order, error) {
	return s.applyAdjustment(ctx, actorID, orderID, func(order *entity.Order) error {
		order.Note = note
		return nil
	})
}

// MoveToPreparation advances an OPEN order to IN_PREPARATION.
func (s *Service) MoveToPreparation(ctx context.Context, actorID, orderID int64) (*entity.Order, error) {
	return s.advance(ctx, actorID, orderID, entity.OrderOpen, entity.OrderInPreparation)
}

// MarkReady advances an IN_PREPARATION order to READY.
func (s *Service) MarkReady(ctx context.Context, actorID, orderID int64) (*entity.Order, error) {
	return s.advance(ctx, actorID, orderID, entity.OrderInPreparation, entity.OrderReady)
}

// MarkDelivered advances a READY order to DELIVERED.
func (s *Service) MarkDelivered(ctx context.Context, actorID, orderID int64) (*entity.Order, error) {
	return s.advance(ctx, actorID, orderID, entity.OrderReady, entity.OrderDelivered)
}

// advance performs one guarded state-machine step. The guard on the expected
// status means two racing transitions resolve to exactly one winner.
func (s *Service) advance(ctx context.Context, actorID, orderID int64, from, to entity.OrderStatus) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Advance", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("order.to", string(to)),
	))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}

	var order *entity.Order
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		moved, err := s.orders.UpdateStatusGuard(ctx, tx, orderID, from, to)
		if err != nil {
			return errorbank.Internal("failed to advance order", errorbank.WithCause(err))
		}
		if !moved {
			current, err := s.orders.Get(ctx, tx, orderID)
			if errors.Is(err, orderrepo.ErrNotFound) {
				return errorbank.NotFound("order not found", errorbank.WithDetail("id", orderID))
			}
			if err != nil {
				return errorbank.Internal("failed to load order", errorbank.WithCause(err))
			}
			return errorbank.InvalidState("order is not in the expected status",
				errorbank.WithDetail("current", string(current.Status)),
				errorbank.WithDetail("expected", string(from)))
		}
		order, err = s.orders.Get(ctx, tx, orderID)
		if err != nil {
			return errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "advance failed")
		return nil, err
	}

	s.invalidateCache(ctx, orderID)
	s.notifier.Publish(ctx, notifier.OrderUpdated, order)
	return order, nil
}

// Cancel voids a non-terminal order, appending the mandatory reason to the
// note. The table is freed when nothing else holds it.
func (s *Service) Cancel(ctx context.Context, actorID, orderID int64, reason string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Cancel", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, errorbank.InvalidArgument("cancellation reason is required")
	}

	var order *entity.Order
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		order, err = s.getForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := entity.ValidateTransition(order.Status, entity.OrderCancelled); err != nil {
			return err
		}
		order.Cancel(reason, time.Now().UTC())
		if err := s.orders.Update(ctx, tx, order); err != nil {
			return errorbank.Internal("failed to cancel order", errorbank.WithCause(err))
		}
		return s.releaseTableIfIdle(ctx, tx, order.TableID)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		return nil, err
	}

	s.invalidateCache(ctx, orderID)
	s.notifier.Publish(ctx, notifier.OrderCancelled, order)
	return order, nil
}

// Reopen returns a CLOSED order to OPEN. The table must still be FREE; the
// reopened order re-claims it.
func (s *Service) Reopen(ctx context.Context, actorID, orderID int64, reason string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Reopen", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, errorbank.InvalidArgument("reopen reason is required")
	}

	var order *entity.Order
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		order, err = s.getForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != entity.OrderClosed {
			return errorbank.InvalidState("only closed orders can be reopened",
				errorbank.WithDetail("status", string(order.Status)))
		}
		claimed, err := s.tables.ClaimFree(ctx, tx, order.TableID)
		if err != nil {
			return errorbank.Internal("failed to claim table", errorbank.WithCause(err))
		}
		if !claimed {
			return errorbank.InvalidState("table is no longer free",
				errorbank.WithDetail("table_id", order.TableID))
		}
		order.Reopen(reason, time.Now().UTC())
		if err := s.orders.Update(ctx, tx, order); err != nil {
			return errorbank.Internal("failed to reopen order", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reopen failed")
		return nil, err
	}

	s.invalidateCache(ctx, orderID)
	s.notifier.Publish(ctx, notifier.OrderUpdated, order)
	return order, nil
}

// Delete removes an order that never left OPEN. Anything further along the
// lifecycle must be cancelled instead, so the audit trail survives.
func (s *Service) Delete(ctx context.Context, actorID, orderID int64) error {
	if err := s.requireActor(ctx, actorID); err != nil {
		return err
	}

	var tableID int64
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		order, err := s.getForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != entity.OrderOpen {
			return errorbank.InvalidState("only open orders can be deleted",
				errorbank.WithDetail("status", string(order.Status)))
		}
		tableID = order.TableID
		if err := s.orders.Delete(ctx, tx, orderID); err != nil {
			return errorbank.Internal("failed to delete order", errorbank.WithCause(err))
		}
		return s.releaseTableIfIdle(ctx, tx, tableID)
	})
	if err != nil {
		return err
	}

	s.invalidateCache(ctx, orderID)
	return nil
}

// List returns all orders.
func (s *Service) List(ctx context.Context) ([]*entity.Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// ListByStatus returns orders in a single status.
func (s *Service) ListByStatus(ctx context.Context, status entity.OrderStatus) ([]*entity.Order, error) {
	orders, err := s.orders.ListByStatus(ctx, status)
	if err != nil {
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// ListActive returns orders that have not reached a terminal status.
func (s *Service) ListActive(ctx context.Context) ([]*entity.Order, error) {
	orders, err := s.orders.ListByStatuses(ctx, []entity.OrderStatus{
		entity.OrderOpen, entity.OrderInPreparation, entity.OrderReady, entity.OrderDelivered,
	})
	if err != nil {
		return nil, errorbank.Internal("failed to list active orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// ListKitchen returns the kitchen queue: orders being prepared or waiting for
// pickup, oldest first.
func (s *Service) ListKitchen(ctx context.Context) ([]*entity.Order, error) {
	orders, err := s.orders.ListByStatuses(ctx, []entity.OrderStatus{
		entity.OrderInPreparation, entity.OrderReady,
	})
	if err != nil {
		return nil, errorbank.Internal("failed to list kitchen orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// ListByTable returns every order taken at a table.
func (s *Service) ListByTable(ctx context.Context, tableID int64) ([]*entity.Order, error) {
	orders, err := s.orders.ListByTable(ctx, tableID)
	if err != nil {
		return nil, errorbank.Internal("failed to list table orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// ListByPeriod returns orders created within [from, to).
func (s *Service) ListByPeriod(ctx context.Context, from, to time.Time) ([]*entity.Order, error) {
	if !to.After(from) {
		return nil, errorbank.InvalidArgument("period end must be after period start")
	}
	orders, err := s.orders.ListByPeriod(ctx, from, to)
	if err != nil {
		return nil, errorbank.Internal("failed to list orders by period", errorbank.WithCause(err))
	}
	return orders, nil
}

// Statistics summarizes order counts per status plus sales volume for a
// period. Sales counts CLOSED orders only.
type Statistics struct {
	CountByStatus map[entity.OrderStatus]int `json:"count_by_status"`
	SalesTotal    decimal.Decimal            `json:"sales_total"`
	OrdersClosed  int                        `json:"orders_closed"`
	From          time.Time                  `json:"from"`
	To            time.Time                  `json:"to"`
}

// StatisticsForPeriod computes counts and sales for [from, to).
func (s *Service) StatisticsForPeriod(ctx context.Context, from, to time.Time) (*Statistics, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.StatisticsForPeriod")
	defer span.End()

	if !to.After(from) {
		return nil, errorbank.InvalidArgument("period end must be after period start")
	}

	counts, err := s.orders.CountByStatus(ctx)
	if err != nil {
		return nil, errorbank.Internal("failed to count orders", errorbank.WithCause(err))
	}

	orders, err := s.orders.ListByPeriod(ctx, from, to)
	if err != nil {
		return nil, errorbank.Internal("failed to list orders by period", errorbank.WithCause(err))
	}

	stats := &Statistics{
		CountByStatus: counts,
		SalesTotal:    decimal.Zero,
		From:          from,
		To:            to,
	}
	for _, order := range orders {
		if order.Status == entity.OrderClosed {
			stats.SalesTotal = stats.SalesTotal.Add(order.Total)
			stats.OrdersClosed++
		}
	}
	return stats, nil
}

// DailySummary computes statistics for one calendar day in UTC.
func (s *Service) DailySummary(ctx context.Context, day time.Time) (*Statistics, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return s.StatisticsForPeriod(ctx, from, from.Add(24*time.Hour))
}

// freezeItem resolves a catalog product and copies its name and price into a
// new order item. The second return reports whether the kitchen cares.
func (s *Service) freezeItem(ctx context.Context, in ItemInput) (*entity.OrderItem, bool, error) {
	if in.Quantity <= 0 {
		return nil, false, errorbank.InvalidArgument("quantity must be greater than zero",
			errorbank.WithDetail("quantity", in.Quantity))
	}
	product, err := s.catalog.GetProduct(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, catalogrepo.ErrProductNotFound) {
			return nil, false, errorbank.NotFound("product not found", errorbank.WithDetail("id", in.ProductID))
		}
		return nil, false, errorbank.Internal("failed to load product", errorbank.WithCause(err))
	}
	if !product.Active {
		return nil, false, errorbank.InvalidState("product is inactive",
			errorbank.WithDetail("product", product.Name))
	}
	item := &entity.OrderItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    in.Quantity,
		UnitPrice:   product.Price,
		Note:        in.Note,
	}
	return item, product.NeedsPreparation(), nil
}

// getForUpdate loads an order with items inside the transaction, translating
// the repository miss into the service error vocabulary.
func (s *Service) getForUpdate(ctx context.Context, tx bun.Tx, orderID int64) (*entity.Order, error) {
	order, err := s.orders.Get(ctx, tx, orderID)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found", errorbank.WithDetail("id", orderID))
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

// getOpenForUpdate is getForUpdate plus the OPEN-only rule for item edits.
func (s *Service) getOpenForUpdate(ctx context.Context, tx bun.Tx, orderID int64) (*entity.Order, error) {
	order, err := s.getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderOpen {
		return nil, errorbank.InvalidState("items can only change while the order is open",
			errorbank.WithDetail("status", string(order.Status)))
	}
	return order, nil
}

// releaseTableIfIdle frees the table when no non-terminal order and no open
// tab still hold it.
func (s *Service) releaseTableIfIdle(ctx context.Context, tx bun.Tx, tableID int64) error {
	active, err := s.orders.ActiveExistsForTable(ctx, tx, tableID)
	if err != nil {
		return errorbank.Internal("failed to check table orders", errorbank.WithCause(err))
	}
	if active {
		return nil
	}
	open, err := s.tabs.OpenExistsForTable(ctx, tx, tableID, 0)
	if err != nil {
		return errorbank.Internal("failed to check table tabs", errorbank.WithCause(err))
	}
	if open {
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

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) {
	if s.cache == nil || order == nil {
		return
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		s.logger.Warn("orders cache marshal failed", zap.Int64("id", order.ID), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
}

func (s *Service) invalidateCache(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("orders cache invalidate failed", zap.Int64("id", id), zap.Error(err))
	}
}
