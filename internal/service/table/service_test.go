package table

import (
	"context"
	"database/sql"
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
	tabs   *tabrepo.Repository

	actorID int64
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

	cfg := config.Config{}
	nop := notifier.New(messaging.NewNoop("test.events"), cfg, zap.NewNop())

	svc := NewService(Params{
		Connections: conns,
		Tables:      tables,
		Orders:      orders,
		Tabs:        tabs,
		Users:       users,
		Notifier:    nop,
		Logger:      zap.NewNop(),
	})

	return &fixture{svc: svc, conns: conns, orders: orders, tabs: tabs, actorID: actor.ID}
}

func TestCreateRejectsDuplicateNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	table, err := f.svc.Create(ctx, f.actorID, 7, "by the window")
	require.NoError(t, err)
	assert.Equal(t, entity.TableFree, table.Status)
	assert.Equal(t, 7, table.Number)

	_, err = f.svc.Create(ctx, f.actorID, 7, "")
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindConflict))

	_, err = f.svc.Create(ctx, f.actorID, 0, "")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidArgument))
}

func TestGetAndGetByNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	table, err := f.svc.Create(ctx, f.actorID, 3, "")
	require.NoError(t, err)

	byID, err := f.svc.Get(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, table.Number, byID.Number)

	byNumber, err := f.svc.GetByNumber(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, table.ID, byNumber.ID)

	_, err = f.svc.Get(ctx, 9999)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestSetStatusFreeRequiresIdleTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	table, err := f.svc.Create(ctx, f.actorID, 1, "")
	require.NoError(t, err)

	reserved, err := f.svc.SetStatus(ctx, f.actorID, table.ID, entity.TableReserved)
	require.NoError(t, err)
	assert.Equal(t, entity.TableReserved, reserved.Status)

	now := time.Now().UTC()
	order := &entity.Order{
		TableID: table.ID, UserID: f.actorID, Status: entity.OrderOpen,
		Subtotal: decimal.Zero, Surcharge: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, f.orders.Create(ctx, f.conns.Writer, order))

	_, err = f.svc.SetStatus(ctx, f.actorID, table.ID, entity.TableFree)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
	assert.Contains(t, err.Error(), "active order")

	order.Status = entity.OrderCancelled
	require.NoError(t, f.orders.Update(ctx, f.conns.Writer, order))

	freed, err := f.svc.SetStatus(ctx, f.actorID, table.ID, entity.TableFree)
	require.NoError(t, err)
	assert.Equal(t, entity.TableFree, freed.Status)

	_, err = f.svc.SetStatus(ctx, f.actorID, table.ID, entity.TableStatus("BROKEN"))
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidArgument))
}

func TestSetStatusFreeRejectsOpenTab(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	table, err := f.svc.Create(ctx, f.actorID, 1, "")
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, f.actorID, table.ID, entity.TableOccupied)
	require.NoError(t, err)

	tab := &entity.Tab{TableID: table.ID, Code: "CMDTEST0001", Status: entity.TabOpen, OpenedAt: time.Now().UTC()}
	require.NoError(t, f.tabs.Create(ctx, f.conns.Writer, tab))

	_, err = f.svc.SetStatus(ctx, f.actorID, table.ID, entity.TableFree)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
	assert.Contains(t, err.Error(), "open tab")
}

func TestDeleteRequiresIdleTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	table, err := f.svc.Create(ctx, f.actorID, 1, "")
	require.NoError(t, err)

	now := time.Now().UTC()
	order := &entity.Order{
		TableID: table.ID, UserID: f.actorID, Status: entity.OrderOpen,
		Subtotal: decimal.Zero, Surcharge: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, f.orders.Create(ctx, f.conns.Writer, order))

	err = f.svc.Delete(ctx, f.actorID, table.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))

	order.Status = entity.OrderClosed
	require.NoError(t, f.orders.Update(ctx, f.conns.Writer, order))

	require.NoError(t, f.svc.Delete(ctx, f.actorID, table.ID))
	_, err = f.svc.Get(ctx, table.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestListByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.actorID, 1, "")
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, f.actorID, 2, "")
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, f.actorID, second.ID, entity.TableReserved)
	require.NoError(t, err)

	free, err := f.svc.ListByStatus(ctx, entity.TableFree)
	require.NoError(t, err)
	assert.Len(t, free, 1)

	_, err = f.svc.ListByStatus(ctx, entity.TableStatus("BROKEN"))
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidArgument))
}
