package repository

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01moynul/inventory-tracker/internal/database"
	"github.com/01moynul/inventory-tracker/internal/models"
)

// steppingClock returns strictly increasing instants, one millisecond apart.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newTestRepo(t *testing.T, uniqueSKU bool) *ItemRepository {
	t.Helper()
	db, err := database.OpenDB(context.Background(), database.Options{
		Driver:           "sqlite",
		DSN:              filepath.Join(t.TempDir(), "inventory.db"),
		BusyTimeout:      500 * time.Millisecond,
		EnforceUniqueSKU: uniqueSKU,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &steppingClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	return NewItemRepository(db).WithClock(clock.Now)
}

func mustAdd(t *testing.T, repo *ItemRepository, item models.NewItem) int64 {
	t.Helper()
	id, err := repo.Add(context.Background(), item)
	require.NoError(t, err)
	return id
}

func TestAddThenGetBySKU(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	in := models.NewItem{
		Name:         "Blue Mug",
		SKU:          "MUG-001",
		Category:     "Kitchen",
		CostPrice:    4.5,
		SellingPrice: 9.99,
	}
	id := mustAdd(t, repo, in)
	assert.Equal(t, int64(1), id)

	got, err := repo.GetBySKU(ctx, "MUG-001")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, id, got.ID)
	assert.Equal(t, in.Name, got.Name)
	assert.Equal(t, in.SKU, got.SKU)
	assert.Equal(t, in.Category, got.CategoryName())
	assert.Equal(t, in.CostPrice, got.CostPrice)
	assert.Equal(t, in.SellingPrice, got.SellingPrice)
	assert.Equal(t, 0, got.Quantity, "quantity defaults to 0")
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestGetMissingReturnsNil(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	item, err := repo.GetBySKU(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, item)

	item, err = repo.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestAddValidation(t *testing.T) {
	repo := newTestRepo(t, true)

	tests := []struct {
		name  string
		item  models.NewItem
		field string
	}{
		{name: "empty name", item: models.NewItem{SKU: "A"}, field: "name"},
		{name: "blank name", item: models.NewItem{Name: "   ", SKU: "A"}, field: "name"},
		{name: "empty sku", item: models.NewItem{Name: "A"}, field: "sku"},
		{name: "negative cost", item: models.NewItem{Name: "A", SKU: "A", CostPrice: -1}, field: "costPrice"},
		{name: "negative selling", item: models.NewItem{Name: "A", SKU: "A", SellingPrice: -1}, field: "sellingPrice"},
		{name: "negative quantity", item: models.NewItem{Name: "A", SKU: "A", Quantity: -3}, field: "quantity"},
		{name: "quantity over column range", item: models.NewItem{Name: "A", SKU: "A", Quantity: models.MaxQuantity + 1}, field: "quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Add(context.Background(), tt.item)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestDuplicateSKUEnforced(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	mustAdd(t, repo, models.NewItem{Name: "First", SKU: "DUP-1"})
	_, err := repo.Add(ctx, models.NewItem{Name: "Second", SKU: "DUP-1"})
	assert.ErrorIs(t, err, ErrDuplicateSKU)

	items, err := repo.List(ctx, models.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDuplicateSKUAllowedWhenNotEnforced(t *testing.T) {
	repo := newTestRepo(t, false)
	ctx := context.Background()

	first := mustAdd(t, repo, models.NewItem{Name: "First", SKU: "DUP-1"})
	second := mustAdd(t, repo, models.NewItem{Name: "Second", SKU: "DUP-1"})
	assert.NotEqual(t, first, second)

	items, err := repo.List(ctx, models.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestListKeywordIsCaseSensitiveSubstring(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	mustAdd(t, repo, models.NewItem{Name: "Red Pen", SKU: "PEN-R", Category: "Stationery"})
	mustAdd(t, repo, models.NewItem{Name: "Blue pen", SKU: "PEN-B", Category: "Stationery"})
	mustAdd(t, repo, models.NewItem{Name: "Stapler", SKU: "STP-1", Category: "Office"})

	items, err := repo.List(ctx, models.ListFilter{Keyword: "Pen"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Red Pen", items[0].Name)

	items, err = repo.List(ctx, models.ListFilter{Keyword: "PEN-"})
	require.NoError(t, err)
	assert.Len(t, items, 2, "matches on SKU")

	items, err = repo.List(ctx, models.ListFilter{Category: "Office"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "STP-1", items[0].SKU)

	items, err = repo.List(ctx, models.ListFilter{Keyword: "pen", Category: "Stationery"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Blue pen", items[0].Name)

	items, err = repo.List(ctx, models.ListFilter{Keyword: "zzz"})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestUpdate(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	id := mustAdd(t, repo, models.NewItem{Name: "Lamp", SKU: "LMP-1", Category: "Home", CostPrice: 10, SellingPrice: 20, Quantity: 3})
	before, err := repo.GetByID(ctx, id)
	require.NoError(t, err)

	err = repo.Update(ctx, models.ByID(id), models.ItemUpdate{Name: "Desk Lamp", CostPrice: 12, SellingPrice: 25, Quantity: 8})
	require.NoError(t, err)

	after, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", after.Name)
	assert.False(t, after.Category.Valid, "empty category clears it")
	assert.Equal(t, 12.0, after.CostPrice)
	assert.Equal(t, 25.0, after.SellingPrice)
	assert.Equal(t, 8, after.Quantity)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	err = repo.Update(ctx, models.BySKU("LMP-1"), models.ItemUpdate{Name: "Floor Lamp", Category: "Home", Quantity: 1})
	require.NoError(t, err)
	bySKU, err := repo.GetBySKU(ctx, "LMP-1")
	require.NoError(t, err)
	assert.Equal(t, "Floor Lamp", bySKU.Name)
}

func TestUpdateMissingReturnsNotFound(t *testing.T) {
	repo := newTestRepo(t, true)

	err := repo.Update(context.Background(), models.ByID(99), models.ItemUpdate{Name: "Ghost"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.Update(context.Background(), models.ItemKey{}, models.ItemUpdate{Name: "Ghost"})
	assert.True(t, IsValidation(err))
}

func TestIncrementQuantityRoundTrip(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	mustAdd(t, repo, models.NewItem{Name: "Bolt", SKU: "BLT-1", Quantity: 7})

	require.NoError(t, repo.IncrementQuantity(ctx, "BLT-1", 15))
	item, err := repo.GetBySKU(ctx, "BLT-1")
	require.NoError(t, err)
	assert.Equal(t, 22, item.Quantity)

	require.NoError(t, repo.IncrementQuantity(ctx, "BLT-1", -15))
	item, err = repo.GetBySKU(ctx, "BLT-1")
	require.NoError(t, err)
	assert.Equal(t, 7, item.Quantity)
}

func TestIncrementQuantityBelowZero(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	mustAdd(t, repo, models.NewItem{Name: "Nut", SKU: "NUT-1", Quantity: 2})

	err := repo.IncrementQuantity(ctx, "NUT-1", -3)
	assert.True(t, IsValidation(err), "got %v", err)

	item, err := repo.GetBySKU(ctx, "NUT-1")
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity, "quantity untouched")

	require.NoError(t, repo.IncrementQuantity(ctx, "NUT-1", -2))
	assert.ErrorIs(t, repo.IncrementQuantity(ctx, "missing", 1), ErrNotFound)
}

func TestIncrementQuantityAboveMaximum(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	mustAdd(t, repo, models.NewItem{Name: "Washer", SKU: "W-1", Quantity: 10})

	for _, delta := range []int{math.MaxInt64, math.MinInt64, models.MaxQuantity} {
		err := repo.IncrementQuantity(ctx, "W-1", delta)
		assert.True(t, IsValidation(err), "delta %d: got %v", delta, err)
	}

	require.NoError(t, repo.IncrementQuantity(ctx, "W-1", models.MaxQuantity-10))
	err := repo.IncrementQuantity(ctx, "W-1", 1)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, "quantity", ve.Field)

	items, err := repo.List(ctx, models.ListFilter{})
	require.NoError(t, err, "rows stay readable after rejected adjustments")
	require.Len(t, items, 1)
	assert.Equal(t, models.MaxQuantity, items[0].Quantity)
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	id := mustAdd(t, repo, models.NewItem{Name: "A", SKU: "A-1"})
	mustAdd(t, repo, models.NewItem{Name: "B", SKU: "B-1"})

	require.NoError(t, repo.Delete(ctx, models.ByID(id)))
	require.NoError(t, repo.Delete(ctx, models.BySKU("B-1")))
	assert.ErrorIs(t, repo.Delete(ctx, models.ByID(id)), ErrNotFound)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIDsNotReusedAfterDelete(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	mustAdd(t, repo, models.NewItem{Name: "A", SKU: "A-1"})
	second := mustAdd(t, repo, models.NewItem{Name: "B", SKU: "B-1"})
	require.NoError(t, repo.Delete(ctx, models.ByID(second)))

	third := mustAdd(t, repo, models.NewItem{Name: "C", SKU: "C-1"})
	assert.Greater(t, third, second)
}

func TestDeleteAllResetsIdentity(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	for _, sku := range []string{"A", "B", "C"} {
		mustAdd(t, repo, models.NewItem{Name: sku, SKU: sku})
	}
	require.NoError(t, repo.DeleteAll(ctx))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	id := mustAdd(t, repo, models.NewItem{Name: "Fresh", SKU: "F"})
	assert.Equal(t, int64(1), id)
}

func TestLowStock(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	quantities := map[string]int{"Q0": 0, "Q2": 2, "Q4": 4, "Q5": 5, "Q50": 50}
	for sku, q := range quantities {
		mustAdd(t, repo, models.NewItem{Name: sku, SKU: sku, Quantity: q})
	}

	for _, threshold := range []int{-1, 0, 1, 5, 6, 51, 1 << 30} {
		items, err := repo.LowStock(ctx, threshold)
		require.NoError(t, err)

		want := 0
		for _, q := range quantities {
			if q < threshold {
				want++
			}
		}
		assert.Len(t, items, want, "threshold %d", threshold)
		for _, item := range items {
			assert.Less(t, item.Quantity, threshold)
		}
	}
}

func TestDistinctCategories(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	mustAdd(t, repo, models.NewItem{Name: "A", SKU: "A", Category: "Tools"})
	mustAdd(t, repo, models.NewItem{Name: "B", SKU: "B", Category: "Garden"})
	mustAdd(t, repo, models.NewItem{Name: "C", SKU: "C", Category: "Tools"})
	mustAdd(t, repo, models.NewItem{Name: "D", SKU: "D"})

	cats, err := repo.DistinctCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Garden", "Tools"}, cats)
}

func TestRecent(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	for _, sku := range []string{"A", "B", "C", "D"} {
		mustAdd(t, repo, models.NewItem{Name: sku, SKU: sku, Quantity: 1})
	}
	// touching A makes it the most recent
	require.NoError(t, repo.IncrementQuantity(ctx, "A", 1))

	items, err := repo.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"A", "D", "C"}, []string{items[0].SKU, items[1].SKU, items[2].SKU})

	items, err = repo.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAddBatchIsAllOrNothing(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	mustAdd(t, repo, models.NewItem{Name: "Existing", SKU: "X-1"})

	_, err := repo.AddBatch(ctx, []models.NewItem{
		{Name: "New A", SKU: "N-1"},
		{Name: "Clash", SKU: "X-1"},
	})
	var be *BatchError
	require.True(t, errors.As(err, &be), "got %v", err)
	assert.Equal(t, 1, be.Row)
	assert.ErrorIs(t, err, ErrDuplicateSKU)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "nothing from the failed batch committed")

	ids, err := repo.AddBatch(ctx, []models.NewItem{
		{Name: "New A", SKU: "N-1"},
		{Name: "New B", SKU: "N-2"},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	_, err = repo.AddBatch(ctx, []models.NewItem{{Name: "", SKU: "Z"}})
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 0, be.Row)
	assert.True(t, IsValidation(err))
}

func TestCancelledContext(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.List(ctx, models.ListFilter{})
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	repo := newTestRepo(t, true)
	ctx := context.Background()

	empty, err := repo.Summary(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, models.InventorySummary{LowStockBelow: 5}, empty)

	mustAdd(t, repo, models.NewItem{Name: "A", SKU: "A", Category: "X", CostPrice: 2, SellingPrice: 3, Quantity: 4})
	mustAdd(t, repo, models.NewItem{Name: "B", SKU: "B", Category: "X", CostPrice: 1.5, SellingPrice: 2, Quantity: 10})
	mustAdd(t, repo, models.NewItem{Name: "C", SKU: "C", CostPrice: 10, SellingPrice: 10, Quantity: 0})

	sum, err := repo.Summary(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalItems)
	assert.Equal(t, int64(14), sum.TotalUnits)
	assert.InDelta(t, 23.0, sum.CostValuation, 1e-9)
	assert.InDelta(t, 32.0, sum.RetailValue, 1e-9)
	assert.Equal(t, 2, sum.LowStockCount)
	assert.Equal(t, 1, sum.CategoryCount, "NULL categories are not counted")
}
