package order

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

	"github.com/Additional-Code/comanda/internal/cache"
	"github.com/Additional-Code/comanda/internal/config"
	"github.com/Additional-Code/comanda/internal/database"
	"github.com/Additional-Code/comanda/internal/entity"
	"github.com/Additional-Code/comanda/internal/messaging"
	"github.com/Additional-Code/comanda/internal/notifier"
	catalogrepo "github.com/Additional-Code/comanda/internal/repository/catalog"
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
	mainID  int64
	drinkID int64
	deadID  int64
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
	catalog := catalogrepo.NewRepository(conns)
	orders := orderrepo.NewRepository(conns)
	tabs := tabrepo.NewRepository(conns)

	actor := &entity.User{Name: "Ana Souza", Login: "ana"}
	require.NoError(t, users.Create(ctx, actor))

	table := &entity.Table{Number: 1, Status: entity.TableFree}
	require.NoError(t, tables.Create(ctx, table))

	mains := &entity.Category{Name: "Mains"}
	drinks := &entity.Category{Name: "Drinks"}
	require.NoError(t, catalog.CreateCategory(ctx, mains))
	require.NoError(t, catalog.CreateCategory(ctx, drinks))

	main := &entity.Product{CategoryID: mains.ID, Name: "Moqueca", Price: money("19.50"), Active: true}
	drink := &entity.Product{CategoryID: drinks.ID, Name: "Guarana", Price: money("6.00"), Active: true}
	dead := &entity.Product{CategoryID: mains.ID, Name: "Feijoada", Price: money("35.00"), Active: false}
	require.NoError(t, catalog.CreateProduct(ctx, main))
	require.NoError(t, catalog.CreateProduct(ctx, drink))
	require.NoError(t, catalog.CreateProduct(ctx, dead))

	cfg := config.Config{}
	cfg.Cache.DefaultTTL = time.Minute
	nop := notifier.New(messaging.NewNoop("test.events"), cfg, zap.NewNop())

	svc := NewService(Params{
		Connections: conns,
		Orders:      orders,
		Tables:      tables,
		Tabs:        tabs,
		Catalog:     catalog,
		Users:       users,
		Cache:       cache.NewNoop(),
		Config:      cfg,
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
		mainID:  main.ID,
		drinkID: drink.ID,
		deadID:  dead.ID,
	}
}

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (f *fixture) create(t *testing.T) *entity.Order {
	t.Helper()
	order, err := f.svc.Create(context.Background(), f.actorID, CreateInput{
		TableID: f.tableID,
		Items: []ItemInput{
			{ProductID: f.mainID, Quantity: 1},
			{ProductID: f.drinkID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) tableStatus(t *testing.T, id int64) entity.TableStatus {
	t.Helper()
	table, err := f.tables.GetByID(context.Background(), id)
	require.NoError(t, err)
	return table.Status
}

func TestCreateClaimsFreeTable(t *testing.T) {
	f := newFixture(t)

	order := f.create(t)

	assert.Equal(t, entity.OrderOpen, order.Status)
	assert.True(t, order.Subtotal.Equal(money("25.50")), "subtotal = %s", order.Subtotal)
	assert.True(t, order.Total.Equal(money("25.50")))
	assert.Len(t, order.Items, 2)
	assert.Equal(t, "Moqueca", order.Items[0].ProductName)
	assert.Equal(t, entity.TableOccupied, f.tableStatus(t, f.tableID))
}

func TestCreateOnOccupiedTableLosesRace(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	_, err := f.svc.Create(context.Background(), f.actorID, CreateInput{
		TableID: f.tableID,
		Items:   []ItemInput{{ProductID: f.drinkID, Quantity: 1}},
	})
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))

	orders, err := f.svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.actorID, CreateInput{TableID: f.tableID})
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidArgument))

	_, err = f.svc.Create(ctx, f.actorID, CreateInput{
		TableID: f.tableID,
		Items:   []ItemInput{{ProductID: 9999, Quantity: 1}},
	})
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	_, err = f.svc.Create(ctx, f.actorID, CreateInput{
		TableID: f.tableID,
		Items:   []ItemInput{{ProductID: f.deadID, Quantity: 1}},
	})
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))

	_, err = f.svc.Create(ctx, f.actorID, CreateInput{
		TableID: f.tableID,
		Items:   []ItemInput{{ProductID: f.mainID, Quantity: 0}},
	})
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidArgument))

	_, err = f.svc.Create(ctx, 42, CreateInput{
		TableID: f.tableID,
		Items:   []ItemInput{{ProductID: f.mainID, Quantity: 1}},
	})
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestCreateOnTabRidesTabClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tab := &entity.Tab{TableID: f.tableID, Code: "CMDTEST0001", Status: entity.TabOpen, OpenedAt: time.Now().UTC()}
	require.NoError(t, f.tabs.Create(ctx, f.conns.Writer, tab))
	require.NoError(t, f.tables.SetStatus(ctx, f.conns.Writer, f.tableID, entity.TableOccupied))

	order, err := f.svc.Create(ctx, f.actorID, CreateInput{
		TableID: f.tableID,
		TabID:   &tab.ID,
		Items:   []ItemInput{{ProductID: f.drinkID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.NotNil(t, order.TabID)
	assert.Equal(t, tab.ID, *order.TabID)

	otherTable := &entity.Table{Number: 2, Status: entity.TableFree}
	require.NoError(t, f.tables.Create(ctx, otherTable))

	_, err = f.svc.Create(ctx, f.actorID, CreateInput{
		TableID: otherTable.ID,
		TabID:   &tab.ID,
		Items:   []ItemInput{{ProductID: f.drinkID, Quantity: 1}},
	})
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidArgument))
}

func TestItemEditsAreOpenOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	order, err := f.svc.AddItem(ctx, f.actorID, order.ID, ItemInput{ProductID: f.drinkID, Quantity: 2})
	require.NoError(t, err)
	assert.True(t, order.Subtotal.Equal(money("37.50")))
	assert.Len(t, order.Items, 3)

	order, err = f.svc.UpdateItemQuantity(ctx, f.actorID, order.ID, order.Items[0].ID, 2)
	require.NoError(t, err)
	assert.True(t, order.Subtotal.Equal(money("57.00")))

	order, err = f.svc.RemoveItem(ctx, f.actorID, order.ID, order.Items[2].ID)
	require.NoError(t, err)
	assert.Len(t, order.Items, 2)

	_, err = f.svc.MoveToPreparation(ctx, f.actorID, order.ID)
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, f.actorID, order.ID, ItemInput{ProductID: f.drinkID, Quantity: 1})
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))

	_, err = f.svc.RemoveItem(ctx, f.actorID, order.ID, order.Items[0].ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
}

func TestAdvanceGuardHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	moved, err := f.svc.MoveToPreparation(ctx, f.actorID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderInPreparation, moved.Status)

	_, err = f.svc.MoveToPreparation(ctx, f.actorID, order.ID)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
	details := errorbank.From(err).Details()
	assert.Equal(t, string(entity.OrderInPreparation), details["current"])
	assert.Equal(t, string(entity.OrderOpen), details["expected"])

	ready, err := f.svc.MarkReady(ctx, f.actorID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderReady, ready.Status)

	delivered, err := f.svc.MarkDelivered(ctx, f.actorID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderDelivered, delivered.Status)
}

func TestAdjustmentsReplaceOnLiveOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	order, err := f.svc.ApplySurcharge(ctx, f.actorID, order.ID, money("2.00"), "service fee")
	require.NoError(t, err)
	order, err = f.svc.ApplyDiscount(ctx, f.actorID, order.ID, money("3.00"), "regular customer")
	require.NoError(t, err)
	assert.True(t, order.Total.Equal(money("24.50")))

	order, err = f.svc.ApplyDiscount(ctx, f.actorID, order.ID, money("1.00"), "smaller")
	require.NoError(t, err)
	assert.True(t, order.Discount.Equal(money("1.00")))
	assert.True(t, order.Total.Equal(money("26.50")))
}

func TestUpdateNoteOnLiveOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	order, err := f.svc.UpdateNote(ctx, f.actorID, order.ID, "window seat")
	require.NoError(t, err)
	assert.Equal(t, "window seat", order.Note)

	order, err = f.svc.UpdateNote(ctx, f.actorID, order.ID, "no onions")
	require.NoError(t, err)
	assert.Equal(t, "no onions", order.Note)

	_, err = f.svc.Cancel(ctx, f.actorID, order.ID, "customer left")
	require.NoError(t, err)
	_, err = f.svc.UpdateNote(ctx, f.actorID, order.ID, "too late")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
}

func TestCancelFreesTableAndKeepsAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	_, err := f.svc.Cancel(ctx, f.actorID, order.ID, "")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidArgument))

	cancelled, err := f.svc.Cancel(ctx, f.actorID, order.ID, "customer left")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCancelled, cancelled.Status)
	assert.Contains(t, cancelled.Note, "CANCELLED: customer left")
	assert.Equal(t, entity.TableFree, f.tableStatus(t, f.tableID))

	_, err = f.svc.Cancel(ctx, f.actorID, order.ID, "again")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))

	_, err = f.svc.AddItem(ctx, f.actorID, order.ID, ItemInput{ProductID: f.drinkID, Quantity: 1})
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
}

func TestReopenReclaimsTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	_, err := f.svc.Reopen(ctx, f.actorID, order.ID, "not closed yet")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))

	order.Close(time.Now().UTC())
	require.NoError(t, f.orders.Update(ctx, f.conns.Writer, order))
	require.NoError(t, f.tables.SetStatus(ctx, f.conns.Writer, f.tableID, entity.TableFree))

	reopened, err := f.svc.Reopen(ctx, f.actorID, order.ID, "wrong charge")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderOpen, reopened.Status)
	assert.Nil(t, reopened.ClosedAt)
	assert.Contains(t, reopened.Note, "REOPENED: wrong charge")
	assert.Equal(t, entity.TableOccupied, f.tableStatus(t, f.tableID))
}

func TestReopenFailsWhenTableTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	order.Close(time.Now().UTC())
	require.NoError(t, f.orders.Update(ctx, f.conns.Writer, order))

	// Table is still OCCUPIED by someone else.
	_, err := f.svc.Reopen(ctx, f.actorID, order.ID, "second thoughts")
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
}

func TestDeleteIsOpenOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	_, err := f.svc.MoveToPreparation(ctx, f.actorID, order.ID)
	require.NoError(t, err)
	err = f.svc.Delete(ctx, f.actorID, order.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))

	fresh := func() *entity.Order {
		table := &entity.Table{Number: 99, Status: entity.TableFree}
		require.NoError(t, f.tables.Create(ctx, table))
		order, err := f.svc.Create(ctx, f.actorID, CreateInput{
			TableID: table.ID,
			Items:   []ItemInput{{ProductID: f.drinkID, Quantity: 1}},
		})
		require.NoError(t, err)
		return order
	}()

	require.NoError(t, f.svc.Delete(ctx, f.actorID, fresh.ID))
	_, err = f.svc.Get(ctx, fresh.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
	assert.Equal(t, entity.TableFree, f.tableStatus(t, fresh.TableID))
}

func TestListsAndKitchenQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	_, err := f.svc.MoveToPreparation(ctx, f.actorID, order.ID)
	require.NoError(t, err)

	kitchen, err := f.svc.ListKitchen(ctx)
	require.NoError(t, err)
	require.Len(t, kitchen, 1)
	assert.Equal(t, order.ID, kitchen[0].ID)

	active, err := f.svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	byTable, err := f.svc.ListByTable(ctx, f.tableID)
	require.NoError(t, err)
	assert.Len(t, byTable, 1)
}

func TestStatisticsForPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t)

	order.Close(time.Now().UTC())
	require.NoError(t, f.orders.Update(ctx, f.conns.Writer, order))

	from := time.Now().UTC().Add(-time.Hour)
	to := time.Now().UTC().Add(time.Hour)

	stats, err := f.svc.StatisticsForPeriod(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CountByStatus[entity.OrderClosed])
	assert.Equal(t, 1, stats.OrdersClosed)
	assert.True(t, stats.SalesTotal.Equal(money("25.50")))

	_, err = f.svc.StatisticsForPeriod(ctx, to, from)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidArgument))
}
