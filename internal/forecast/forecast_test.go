package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/andresuchdata/eisen-inventory/internal/repository/memory"
	"github.com/andresuchdata/eisen-inventory/internal/sales"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestSafetyStockFormulas(t *testing.T) {
	require.Equal(t, 56.0, SafetyStockBasic(10, 2, 7))
	require.Equal(t, 0.0, SafetyStockBasic(2, 3, 7))
	require.Equal(t, 76.0, SafetyStockAdvanced(10, 2, 9, 7))
	require.Equal(t, 0.0, SafetyStockAdvanced(1, 5, 1, 7))
}

func TestReorderPointRoundsHalfUp(t *testing.T) {
	require.Equal(t, 1, ReorderPoint(0.5, 1, 0))
	require.Equal(t, 3, ReorderPoint(2.5, 1, 0))
	require.Equal(t, 1, ReorderPoint(1, 1, 0.49))
	require.Equal(t, 2, ReorderPoint(1, 1, 0.5))
	require.Equal(t, 2, ReorderPoint(1, 1, 0.51))
	require.Equal(t, 0, ReorderPoint(0, 0, 0))
}

func TestLeadTimes(t *testing.T) {
	avg, max := LeadTimes(nil)
	require.Zero(t, avg)
	require.Zero(t, max)

	avg, max = LeadTimes([]domain.SupplierProduct{
		{LeadTimeDays: ptr(5)},
		{LeadTimeDays: nil},
		{LeadTimeDays: ptr(9)},
	})
	require.Equal(t, 7.0, avg)
	require.Equal(t, 9.0, max)
}

func TestCheapestPreferred(t *testing.T) {
	require.Nil(t, CheapestPreferred([]domain.SupplierProduct{{SupplierID: 1, CostPrice: ptr(1.0)}}))

	best := CheapestPreferred([]domain.SupplierProduct{
		{SupplierID: 1, IsPreferred: true},
		{SupplierID: 3, IsPreferred: true, CostPrice: ptr(3.0)},
		{SupplierID: 2, IsPreferred: true, CostPrice: ptr(3.0), SupplierName: "Two"},
		{SupplierID: 4, IsPreferred: false, CostPrice: ptr(0.5)},
	})
	require.NotNil(t, best)
	require.Equal(t, int64(2), best.SupplierID)
	require.Equal(t, "Two", best.SupplierName)

	onlyUnpriced := CheapestPreferred([]domain.SupplierProduct{{SupplierID: 9, IsPreferred: true}})
	require.Equal(t, int64(9), onlyUnpriced.SupplierID)
	require.Nil(t, onlyUnpriced.CostPrice)
}

func TestSuggestedQuantity(t *testing.T) {
	require.Equal(t, 0, SuggestedQuantity(0, &domain.PreferredSupplier{MinOrderQuantity: ptr(10)}))
	require.Equal(t, 10, SuggestedQuantity(4, &domain.PreferredSupplier{MinOrderQuantity: ptr(10)}))
	require.Equal(t, 12, SuggestedQuantity(12, &domain.PreferredSupplier{MinOrderQuantity: ptr(10)}))
	require.Equal(t, 4, SuggestedQuantity(4, nil))
}

type fixture struct {
	calc    *Calculator
	store   *memory.Store
	history *sales.History
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return now }
	store := memory.NewStore().WithClock(clock)
	history := sales.NewHistory(store).WithClock(clock)
	return &fixture{calc: NewCalculator(history, store), store: store, history: history}
}

func (f *fixture) product(t *testing.T, sku, name string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{SKU: sku, Name: name, CurrentStock: stock, MinimumStockLevel: 5}
	require.NoError(t, f.store.CreateProduct(context.Background(), p))
	return p
}

func (f *fixture) link(t *testing.T, productID int64, name string, link domain.SupplierProduct) {
	t.Helper()
	ctx := context.Background()
	s := &domain.Supplier{Name: name, IsActive: true}
	require.NoError(t, f.store.CreateSupplier(ctx, s))
	link.SupplierID = s.ID
	link.ProductID = productID
	require.NoError(t, f.store.CreateSupplierProduct(ctx, &link))
}

func TestRecommendation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "SKU-1", "Pipes", 40)

	for i := 0; i < 30; i++ {
		_, err := f.history.Record(ctx, p.ID, now.AddDate(0, 0, -i), 2)
		require.NoError(t, err)
	}
	_, err := f.history.Record(ctx, p.ID, now.AddDate(0, 0, -35), 10)
	require.NoError(t, err)

	f.link(t, p.ID, "Expensive", domain.SupplierProduct{IsPreferred: true, CostPrice: ptr(12.0), LeadTimeDays: ptr(5)})
	f.link(t, p.ID, "Cheap", domain.SupplierProduct{IsPreferred: true, CostPrice: ptr(8.0), LeadTimeDays: ptr(9), MinOrderQuantity: ptr(60)})
	f.link(t, p.ID, "Unpreferred", domain.SupplierProduct{CostPrice: ptr(5.0)})

	avg, err := f.calc.AverageDailyUsage(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 2.0, avg)

	max, err := f.calc.MaximumDailySales(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 10.0, max)

	avgLead, maxLead, err := f.calc.LeadTimeStats(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 7.0, avgLead)
	require.Equal(t, 9.0, maxLead)

	basic, err := f.calc.ReorderPoint(ctx, p.ID, false)
	require.NoError(t, err)
	require.Equal(t, 70, basic)

	rec, err := f.calc.Recommendation(ctx, p)
	require.NoError(t, err)
	require.Equal(t, 90, rec.ReorderPoint)
	require.Equal(t, 50, rec.RecommendedOrderQuantity)
	require.Equal(t, 60, rec.SuggestedOrderQuantity)
	require.Equal(t, 56, rec.SafetyStockBasic)
	require.Equal(t, 76, rec.SafetyStockAdvanced)
	require.True(t, rec.NeedsReorder)
	require.NotNil(t, rec.PreferredSupplier)
	require.Equal(t, "Cheap", rec.PreferredSupplier.SupplierName)
	require.Equal(t, 60, *rec.PreferredSupplier.MinOrderQuantity)
}

func TestRecommendationWithoutHistory(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "SKU-1", "Idle", 3)

	rec, err := f.calc.Recommendation(context.Background(), p)
	require.NoError(t, err)
	require.Zero(t, rec.ReorderPoint)
	require.Zero(t, rec.RecommendedOrderQuantity)
	require.False(t, rec.NeedsReorder)
	require.Nil(t, rec.PreferredSupplier)
}

func TestAllRecommendationsOrderedByName(t *testing.T) {
	f := newFixture(t)
	f.product(t, "B", "Zinc", 1)
	f.product(t, "A", "Brass", 1)
	f.product(t, "C", "Copper", 1)

	recs, err := f.calc.AllRecommendations(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, []string{"Brass", "Copper", "Zinc"}, []string{recs[0].ProductName, recs[1].ProductName, recs[2].ProductName})
}
