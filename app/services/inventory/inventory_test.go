package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/eshop/app/models"
	"github.com/shashiranjanraj/eshop/app/repositories"
	"github.com/shashiranjanraj/eshop/app/services/inventory"
	"github.com/shashiranjanraj/eshop/pkg/audit"
	"github.com/shashiranjanraj/eshop/pkg/event"
	"github.com/shashiranjanraj/eshop/pkg/testkit"
)

type fixture struct {
	db       *gorm.DB
	adjuster *inventory.Adjuster
	recorder *audit.Memory
	bus      *event.Bus
}

func newFixture(t *testing.T, stock map[string]int) *fixture {
	t.Helper()
	db := testkit.NewDB(t)
	require.NoError(t, db.Create(&models.Product{ID: "p1", Name: "Tričko", PriceCZK: 590, Active: true}).Error)
	for size, n := range stock {
		require.NoError(t, db.Create(&models.SKU{ProductID: "p1", Size: size, Stock: n}).Error)
	}

	rec := audit.NewMemory()
	bus := event.NewBus()
	return &fixture{
		db:       db,
		adjuster: inventory.New(repositories.NewStockRepository(db), rec, bus, 5),
		recorder: rec,
		bus:      bus,
	}
}

func (f *fixture) stock(t *testing.T, size string) int {
	t.Helper()
	var sku models.SKU
	require.NoError(t, f.db.Where("product_id = ? AND size = ?", "p1", size).First(&sku).Error)
	return sku.Stock
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t, map[string]int{"S": 20, "M": 2, "L": 4})

	av := f.adjuster.CheckAvailability(context.Background(), []inventory.Item{
		{ProductID: "p1", Size: "S", Quantity: 1, Name: "Tričko"},
		{ProductID: "p1", Size: "L", Quantity: 1, Name: "Tričko"},
	})
	assert.True(t, av.Available)
	assert.Empty(t, av.Errors)
	assert.Equal(t, []string{"Poslední kusy: Tričko (velikost L), skladem pouze 4"}, av.Warnings)

	av = f.adjuster.CheckAvailability(context.Background(), []inventory.Item{
		{ProductID: "p1", Size: "M", Quantity: 3, Name: "Tričko"},
		{ProductID: "p1", Size: "XXL", Quantity: 1},
	})
	assert.False(t, av.Available)
	assert.Equal(t, []string{
		"Nedostatek zásob pro Tričko (velikost M): požadováno 3, skladem 2",
		"Produkt p1 (velikost XXL) nebyl nalezen",
	}, av.Errors)
	assert.Equal(t, 2, f.stock(t, "M"), "check must not mutate stock")
}

func TestDecreaseInsufficientLeavesStockUnchanged(t *testing.T) {
	f := newFixture(t, map[string]int{"M": 2})

	res := f.adjuster.DecreaseInventory(context.Background(), []inventory.Item{
		{ProductID: "p1", Size: "M", Quantity: 3, Name: "Tee"},
	}, "ES-1")

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Nedostatek zásob")
	assert.Empty(t, res.UpdatedItems)
	assert.Equal(t, 2, f.stock(t, "M"))
	assert.Empty(t, f.recorder.Movements())
}

func TestDecreaseRollsBackWholeBatch(t *testing.T) {
	f := newFixture(t, map[string]int{"S": 10, "M": 1})

	res := f.adjuster.DecreaseInventory(context.Background(), []inventory.Item{
		{ProductID: "p1", Size: "S", Quantity: 4},
		{ProductID: "p1", Size: "M", Quantity: 2},
	}, "ES-2")

	require.False(t, res.Success)
	assert.Equal(t, 10, f.stock(t, "S"), "earlier line must be rolled back")
	assert.Equal(t, 1, f.stock(t, "M"))

	res = f.adjuster.DecreaseInventory(context.Background(), []inventory.Item{
		{ProductID: "p1", Size: "S", Quantity: 1},
		{ProductID: "p1", Size: "XL", Quantity: 1},
	}, "ES-3")
	require.False(t, res.Success)
	assert.Equal(t, "Produkt p1 (velikost XL) nebyl nalezen", res.Error)
	assert.Equal(t, 10, f.stock(t, "S"))
}

func TestDecreaseSuccessRecordsMovements(t *testing.T) {
	f := newFixture(t, map[string]int{"S": 10, "M": 7})

	res := f.adjuster.DecreaseInventory(context.Background(), []inventory.Item{
		{ProductID: "p1", Size: "S", Quantity: 4, Name: "Tee"},
		{ProductID: "p1", Size: "M", Quantity: 1, Name: "Tee"},
	}, "ES-4")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []inventory.UpdatedItem{
		{ProductID: "p1", Size: "S", Name: "Tee", Quantity: 4, Stock: 6},
		{ProductID: "p1", Size: "M", Name: "Tee", Quantity: 1, Stock: 6},
	}, res.UpdatedItems)
	assert.Equal(t, 6, f.stock(t, "S"))

	moves := f.recorder.Movements()
	require.Len(t, moves, 2)
	assert.Equal(t, -4, moves[0].Delta)
	assert.Equal(t, audit.ReasonSale, moves[0].Reason)
	assert.Equal(t, "ES-4", moves[0].Ref)
}

func TestDecreaseCrossingThresholdFiresStockLow(t *testing.T) {
	f := newFixture(t, map[string]int{"M": 7})

	got := make(chan inventory.LowStock, 1)
	f.bus.Listen(event.StockLow, func(_ context.Context, payload any) {
		got <- payload.(inventory.LowStock)
	})

	res := f.adjuster.DecreaseInventory(context.Background(), []inventory.Item{{ProductID: "p1", Size: "M", Quantity: 3}}, "ES-5")
	require.True(t, res.Success)

	select {
	case low := <-got:
		assert.Equal(t, inventory.LowStock{ProductID: "p1", Size: "M", Name: "p1", Stock: 4, Threshold: 5}, low)
	case <-time.After(time.Second):
		t.Fatal("stock.low was not fired")
	}

	// Already below the threshold: no second alert.
	res = f.adjuster.DecreaseInventory(context.Background(), []inventory.Item{{ProductID: "p1", Size: "M", Quantity: 1}}, "ES-6")
	require.True(t, res.Success)
	select {
	case <-got:
		t.Fatal("stock.low fired again below threshold")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBoundDecreaseEmitsOnlyAfterFlush(t *testing.T) {
	f := newFixture(t, map[string]int{"M": 7})
	ctx := context.Background()

	alerts := make(chan inventory.LowStock, 2)
	f.bus.Listen(event.StockLow, func(_ context.Context, payload any) {
		alerts <- payload.(inventory.LowStock)
	})
	items := []inventory.Item{{ProductID: "p1", Size: "M", Quantity: 3}}

	// The outer transaction fails after the decrease: nothing may leak.
	var bound *inventory.Adjuster
	err := f.db.Transaction(func(tx *gorm.DB) error {
		bound = f.adjuster.Bind(tx)
		require.True(t, bound.DecreaseInventory(ctx, items, "ES-7").Success)
		return errors.New("commit failed")
	})
	require.Error(t, err)
	assert.Equal(t, 7, f.stock(t, "M"))
	assert.Empty(t, f.recorder.Movements())

	err = f.db.Transaction(func(tx *gorm.DB) error {
		bound = f.adjuster.Bind(tx)
		require.True(t, bound.DecreaseInventory(ctx, items, "ES-8").Success)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, f.recorder.Movements(), "held back until Flush")

	bound.Flush(ctx)
	bound.Flush(ctx)
	moves := f.recorder.Movements()
	require.Len(t, moves, 1)
	assert.Equal(t, "ES-8", moves[0].Ref)

	select {
	case low := <-alerts:
		assert.Equal(t, 4, low.Stock)
	case <-time.After(time.Second):
		t.Fatal("stock.low was not fired after flush")
	}
	select {
	case <-alerts:
		t.Fatal("rolled back or repeated flush fired an alert")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConcurrentDecrementOfLastUnit(t *testing.T) {
	f := newFixture(t, map[string]int{"M": 1})

	const buyers = 2
	results := make([]inventory.Result, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.adjuster.DecreaseInventory(context.Background(), []inventory.Item{
				{ProductID: "p1", Size: "M", Quantity: 1},
			}, "race")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, r := range results {
		if r.Success {
			wins++
		} else {
			assert.Contains(t, r.Error, "Nedostatek zásob")
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 0, f.stock(t, "M"))
}

func TestIncreaseIsBestEffort(t *testing.T) {
	f := newFixture(t, map[string]int{"S": 1, "M": 0})

	res := f.adjuster.IncreaseInventory(context.Background(), []inventory.Item{
		{ProductID: "p1", Size: "S", Quantity: 2},
		{ProductID: "ghost", Size: "S", Quantity: 5},
		{ProductID: "p1", Size: "M", Quantity: 0},
		{ProductID: "p1", Size: "M", Quantity: 3},
	}, "ES-7")

	assert.True(t, res.Success)
	assert.Equal(t, []inventory.UpdatedItem{
		{ProductID: "p1", Size: "S", Name: "p1", Quantity: 2, Stock: 3},
		{ProductID: "p1", Size: "M", Name: "p1", Quantity: 3, Stock: 3},
	}, res.UpdatedItems)

	moves := f.recorder.Movements()
	require.Len(t, moves, 2)
	assert.Equal(t, audit.ReasonRestock, moves[0].Reason)
}

func TestRollbackRecordsReason(t *testing.T) {
	f := newFixture(t, map[string]int{"S": 0})

	res := f.adjuster.Rollback(context.Background(), []inventory.Item{{ProductID: "p1", Size: "S", Quantity: 1}}, "manual")
	require.True(t, res.Success)
	require.Len(t, f.recorder.Movements(), 1)
	assert.Equal(t, audit.ReasonRollback, f.recorder.Movements()[0].Reason)
}
