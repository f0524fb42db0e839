package tab

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	"github.com/Additional-Code/comanda/internal/config"
	"github.com/Additional-Code/comanda/internal/database"
	"github.com/Additional-Code/comanda/internal/entity"
	"github.com/Additional-Code/comanda/internal/messaging"
	"github.com/Additional-Code/comanda/internal/notifier"
	orderrepo "github.com/Additional-Code/comanda/internal/repository/order"
	tabrepo "github.com/Additional-Code/comanda/internal/repository/tab"
	tablerepo "github.com/Additional-Code/comanda/internal/repository/table"
	userrepo "github.com/Additional-Code/comanda/internal/repository/user"
	"github.com/Additional-Code/comanda/pkg/errorbank"
)

type fixture struct {
	svc    *Service
	conns  *database.Connections
	orders *orderrepo.Repository
	tables *tablerepo.Repository
	tabs   *tabrepo.Repository

	actorID int64
	tableID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	sqldb, err := sql.Open("sqlite3", "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	for _, model := range []any{
		(*entity.User)(nil), (*entity.Table)(nil), (*entity.Category)(nil), (*entity.Product)(nil),
		(*entity.Tab)(nil), (*entity.Order)(nil), (*entity.OrderItem)(nil), (*entity.Payment)(nil),
	} {
		_, err := db.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}

	conns := &database.Connections{Writer: db, Reader: db}
	users := userrepo.NewRepository(conns)
	tables := tablerepo.NewRepository(conns)
	orders := orderrepo.NewRepository(conns)
	tabs := tabrepo.NewRepository(conns)

	actor := &entity.User{Name: "Ana Souza", Login: "ana"}
	require.NoError(t, users.Create(ctx, actor))

	table := &entity.Table{Number: 1, Status: entity.TableFree}
	require.NoError(t, tables.Create(ctx, table))

	cfg := config.Config{}
	nop := notifier.New(messaging.NewNoop("test.events"), cfg, zap.NewNop())

	svc := NewService(Params{
		Connections: conns,
		Tabs:        tabs,
		Orders:      orders,
		Tables:      tables,
		Users:       users,
		Notifier:    nop,
		Logger:      zap.NewNop(),
	})

	return &fixture{
		svc:     svc,
		conns:   conns,
		orders:  orders,
		tables:  tables,
		tabs:    tabs,
		actorID: actor.ID,
		tableID: table.ID,
	}
}

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// newMemberOrder seeds an order on the fixture table, optionally already on a
// tab, in the given status.
func (f *fixture) newMemberOrder(t *testing.T, tabID *int64, status entity.OrderStatus, total string) *entity.Order {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	order := &entity.Order{
		TableID:   f.tableID,
		UserID:    f.actorID,
		TabID:     tabID,
		Status:    entity.OrderOpen,
		Subtotal:  decimal.Zero,
		Surcharge: decimal.Zero,
		Discount:  decimal.Zero,
		Total:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	order.AddItem(&entity.OrderItem{ProductID: 1, ProductName: "Item", Quantity: 1, UnitPrice: money(total)})
	require.NoError(t, f.orders.Create(ctx, f.conns.Writer, order))

	if status != entity.OrderOpen {
		order.Status = status
		if status == entity.OrderClosed {
			order.ClosedAt = &now
		}
		require.NoError(t, f.orders.Update(ctx, f.conns.Writer, order))
	}
	return order
}

func (f *fixture) tableStatus(t *testing.T) entity.TableStatus {
	t.Helper()
	table, err := f.tables.GetByID(context.Background(), f.tableID)
	require.NoError(t, err)
	return table.Status
}

func TestOpenClaimsFreeTable(t *testing.T) {
	f := newFixture(t)

	tab, err := f.svc.Open(context.Background(), f.actorID, f.tableID)
	require.NoError(t, err)

	assert.Equal(t, entity.TabOpen, tab.Status)
	assert.True(t, strings.HasPrefix(tab.Code, "CMD"))
	assert.Len(t, tab.Code, 11)
	assert.Equal(t, entity.TableOccupied, f.tableStatus(t))
}

func TestOpenSecondTabOnSameTableRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Open(ctx, f.actorID, f.tableID)
	require.NoError(t, err)

	_, err = f.svc.Open(ctx, f.actorID, f.tableID)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
	assert.Contains(t, err.Error(), "not free")
}

func TestOpenOnNonFreeTableRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, status := range []entity.TableStatus{entity.TableOccupied, entity.TableReserved} {
		require.NoError(t, f.tables.SetStatus(ctx, f.conns.Writer, f.tableID, status))

		_, err := f.svc.Open(ctx, f.actorID, f.tableID)
		require.Error(t, err, "status %s", status)
		assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
		assert.Contains(t, err.Error(), "not free")
	}
}

func TestOpenOnMissingTable(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Open(context.Background(), f.actorID, 9999)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestAttachAndDetachOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tab, err := f.svc.Open(ctx, f.actorID, f.tableID)
	require.NoError(t, err)
	order := f.newMemberOrder(t, nil, entity.OrderOpen, "20.00")

	require.NoError(t, f.svc.AttachOrder(ctx, f.actorID, tab.ID, order.ID))

	reloaded, err := f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.TabID)
	assert.Equal(t, tab.ID, *reloaded.TabID)

	// Another open tab cannot steal the order. Seeded directly because Open
	// refuses a second tab on an occupied table.
	other := &entity.Tab{TableID: f.tableID, Code: "CMDAAAA0001", Status: entity.TabOpen, OpenedAt: time.Now().UTC()}
	require.NoError(t, f.tabs.Create(ctx, f.conns.Writer, other))
	err = f.svc.AttachOrder(ctx, f.actorID, other.ID, order.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindConflict))

	require.NoError(t, f.svc.DetachOrder(ctx, f.actorID, tab.ID, order.ID))
	reloaded, err = f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.TabID)

	err = f.svc.DetachOrder(ctx, f.actorID, tab.ID, order.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestAttachRejectsWrongTableAndTerminalOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tab, err := f.svc.Open(ctx, f.actorID, f.tableID)
	require.NoError(t, err)

	cancelled := f.newMemberOrder(t, nil, entity.OrderCancelled, "10.00")
	err = f.svc.AttachOrder(ctx, f.actorID, tab.ID, cancelled.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))

	otherTable := &entity.Table{Number: 2, Status: entity.TableOccupied}
	require.NoError(t, f.tables.Create(ctx, otherTable))
	stray := &entity.Order{
		TableID: otherTable.ID, UserID: f.actorID, Status: entity.OrderOpen,
		Subtotal: decimal.Zero, Surcharge: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.orders.Create(ctx, f.conns.Writer, stray))

	err = f.svc.AttachOrder(ctx, f.actorID, tab.ID, stray.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidArgument))
}

func TestCloseRequiresSettledMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tab, err := f.svc.Open(ctx, f.actorID, f.tableID)
	require.NoError(t, err)
	order := f.newMemberOrder(t, &tab.ID, entity.OrderOpen, "20.00")

	_, err = f.svc.Close(ctx, f.actorID, tab.ID)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
	assert.Contains(t, err.Error(), "unsettled order")

	order.Status = entity.OrderClosed
	now := time.Now().UTC()
	order.ClosedAt = &now
	require.NoError(t, f.orders.Update(ctx, f.conns.Writer, order))

	closed, err := f.svc.Close(ctx, f.actorID, tab.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TabClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)
	assert.Equal(t, entity.TableFree, f.tableStatus(t))

	_, err = f.svc.Close(ctx, f.actorID, tab.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
}

func TestCloseKeepsTableWhenStandaloneOrderActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tab, err := f.svc.Open(ctx, f.actorID, f.tableID)
	require.NoError(t, err)
	f.newMemberOrder(t, nil, entity.OrderOpen, "12.00")

	_, err = f.svc.Close(ctx, f.actorID, tab.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TableOccupied, f.tableStatus(t))
}

func TestCancelForceCancelsLiveMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tab, err := f.svc.Open(ctx, f.actorID, f.tableID)
	require.NoError(t, err)
	live := f.newMemberOrder(t, &tab.ID, entity.OrderOpen, "20.00")
	settled := f.newMemberOrder(t, &tab.ID, entity.OrderClosed, "15.00")

	_, err = f.svc.Cancel(ctx, f.actorID, tab.ID, "")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidArgument))

	cancelled, err := f.svc.Cancel(ctx, f.actorID, tab.ID, "party left")
	require.NoError(t, err)
	assert.Equal(t, entity.TabCancelled, cancelled.Status)

	reloaded, err := f.orders.GetByID(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCancelled, reloaded.Status)
	assert.Contains(t, reloaded.Note, "CANCELLED: party left")

	untouched, err := f.orders.GetByID(ctx, settled.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderClosed, untouched.Status)

	assert.Equal(t, entity.TableFree, f.tableStatus(t))
}

func TestTotalSumsClosedMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tab, err := f.svc.Open(ctx, f.actorID, f.tableID)
	require.NoError(t, err)
	f.newMemberOrder(t, &tab.ID, entity.OrderClosed, "20.00")
	f.newMemberOrder(t, &tab.ID, entity.OrderClosed, "15.50")
	f.newMemberOrder(t, &tab.ID, entity.OrderCancelled, "99.00")
	f.newMemberOrder(t, &tab.ID, entity.OrderOpen, "10.00")

	total, err := f.svc.Total(ctx, tab.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(money("35.50")), "total = %s", total)
}

func TestGetByCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tab, err := f.svc.Open(ctx, f.actorID, f.tableID)
	require.NoError(t, err)

	found, err := f.svc.GetByCode(ctx, tab.Code)
	require.NoError(t, err)
	assert.Equal(t, tab.ID, found.ID)

	_, err = f.svc.GetByCode(ctx, "CMD00000000")
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}
