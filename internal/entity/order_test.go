package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/comanda/pkg/errorbank"
)

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestOrder() *Order {
	order := &Order{
		ID:        1,
		TableID:   1,
		UserID:    1,
		Status:    OrderOpen,
		Subtotal:  decimal.Zero,
		Surcharge: decimal.Zero,
		Discount:  decimal.Zero,
		Total:     decimal.Zero,
	}
	order.AddItem(&OrderItem{ID: 10, ProductID: 100, ProductName: "Moqueca", Quantity: 1, UnitPrice: money("19.50")})
	order.AddItem(&OrderItem{ID: 11, ProductID: 101, ProductName: "Guarana", Quantity: 1, UnitPrice: money("6.00")})
	return order
}

func TestRecalculateTotals(t *testing.T) {
	order := newTestOrder()

	assert.True(t, order.Subtotal.Equal(money("25.50")), "subtotal = %s", order.Subtotal)
	assert.True(t, order.Total.Equal(money("25.50")))

	require.NoError(t, order.ApplySurcharge(money("2.00"), "service fee"))
	require.NoError(t, order.ApplyDiscount(money("3.00"), "regular customer"))

	assert.True(t, order.Total.Equal(money("24.50")), "total = %s", order.Total)
	assert.True(t, order.Total.Equal(order.Subtotal.Add(order.Surcharge).Sub(order.Discount)))
}

func TestRecalculateIsIdempotent(t *testing.T) {
	order := newTestOrder()
	require.NoError(t, order.ApplySurcharge(money("2.00"), "fee"))

	before := order.Total
	order.Recalculate()
	order.Recalculate()
	assert.True(t, order.Total.Equal(before))
}

func TestLineTotalMultipliesQuantity(t *testing.T) {
	item := &OrderItem{Quantity: 3, UnitPrice: money("7.25")}
	assert.True(t, item.LineTotal().Equal(money("21.75")))
}

func TestAdjustmentsReplaceNotAccumulate(t *testing.T) {
	order := newTestOrder()

	require.NoError(t, order.ApplySurcharge(money("2.00"), "fee"))
	require.NoError(t, order.ApplySurcharge(money("5.00"), "bigger fee"))
	assert.True(t, order.Surcharge.Equal(money("5.00")))
	assert.Equal(t, "bigger fee", order.SurchargeReason)

	require.NoError(t, order.ApplyDiscount(money("3.00"), "promo"))
	require.NoError(t, order.ApplyDiscount(money("1.00"), "smaller promo"))
	assert.True(t, order.Discount.Equal(money("1.00")))
	assert.True(t, order.Total.Equal(money("29.50")))
}

func TestDiscountBoundaryIsInclusive(t *testing.T) {
	order := newTestOrder()
	require.NoError(t, order.ApplySurcharge(money("2.00"), "fee"))

	// Exactly subtotal plus surcharge is allowed; one cent over is not.
	require.NoError(t, order.ApplyDiscount(money("27.50"), "on the house"))
	assert.True(t, order.Total.Equal(decimal.Zero))

	err := order.ApplyDiscount(money("27.51"), "too generous")
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidArgument))

	appErr := errorbank.From(err)
	assert.Equal(t, "27.51", appErr.Details()["amount"])
	assert.Equal(t, "27.5", appErr.Details()["max"])
}

func TestAdjustmentsRejectNonPositiveAmounts(t *testing.T) {
	order := newTestOrder()

	assert.True(t, errorbank.IsKind(order.ApplySurcharge(decimal.Zero, "x"), errorbank.KindInvalidArgument))
	assert.True(t, errorbank.IsKind(order.ApplyDiscount(money("-1.00"), "x"), errorbank.KindInvalidArgument))
}

func TestRemoveItemRecomputesTotals(t *testing.T) {
	order := newTestOrder()

	removed := order.RemoveItem(11)
	require.NotNil(t, removed)
	assert.Equal(t, "Guarana", removed.ProductName)
	assert.True(t, order.Subtotal.Equal(money("19.50")))

	assert.Nil(t, order.RemoveItem(999))
}

func TestCancelAppendsReasonToNote(t *testing.T) {
	order := newTestOrder()
	order.Note = "window seat"

	order.Cancel("customer left", time.Now().UTC())

	assert.Equal(t, OrderCancelled, order.Status)
	assert.Equal(t, "window seat | CANCELLED: customer left", order.Note)
}

func TestReopenClearsCloseStamp(t *testing.T) {
	order := newTestOrder()
	now := time.Now().UTC()
	order.Close(now)
	require.Equal(t, OrderClosed, order.Status)
	require.NotNil(t, order.ClosedAt)

	order.Reopen("wrong table", now.Add(time.Minute))

	assert.Equal(t, OrderOpen, order.Status)
	assert.Nil(t, order.ClosedAt)
	assert.Equal(t, "REOPENED: wrong table", order.Note)
}

func TestValidateTransition(t *testing.T) {
	cases := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		ok   bool
	}{
		{"open to preparation", OrderOpen, OrderInPreparation, true},
		{"preparation to ready", OrderInPreparation, OrderReady, true},
		{"ready to delivered", OrderReady, OrderDelivered, true},
		{"delivered to closed", OrderDelivered, OrderClosed, true},
		{"open to closed", OrderOpen, OrderClosed, true},
		{"open to cancelled", OrderOpen, OrderCancelled, true},
		{"delivered to cancelled", OrderDelivered, OrderCancelled, false},
		{"delivered to ready", OrderDelivered, OrderReady, false},
		{"closed to open", OrderClosed, OrderOpen, false},
		{"cancelled to closed", OrderCancelled, OrderClosed, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTransition(tc.from, tc.to)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
			}
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, OrderClosed.Terminal())
	assert.True(t, OrderCancelled.Terminal())
	assert.False(t, OrderOpen.Terminal())
	assert.False(t, OrderDelivered.Terminal())
}

func TestTabTotalCountsOnlyClosedOrders(t *testing.T) {
	tab := &Tab{
		Orders: []*Order{
			{Status: OrderClosed, Total: money("20.00")},
			{Status: OrderClosed, Total: money("15.50")},
			{Status: OrderCancelled, Total: money("99.00")},
			{Status: OrderOpen, Total: money("10.00")},
		},
	}
	assert.True(t, tab.Total().Equal(money("35.50")))
	assert.True(t, tab.HasActiveOrders())

	tab.Orders = tab.Orders[:3]
	assert.False(t, tab.HasActiveOrders())
}

func TestProductNeedsPreparation(t *testing.T) {
	mains := &Product{Category: &Category{Name: "Mains"}}
	drinks := &Product{Category: &Category{Name: "Drinks"}}
	desserts := &Product{Category: &Category{Name: "Desserts"}}
	unknown := &Product{}

	assert.True(t, mains.NeedsPreparation())
	assert.False(t, drinks.NeedsPreparation())
	assert.False(t, desserts.NeedsPreparation())
	assert.True(t, unknown.NeedsPreparation())
}
