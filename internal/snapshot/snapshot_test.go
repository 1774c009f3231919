package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/andresuchdata/eisen-inventory/internal/repository/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var now = time.Date(2024, 2, 14, 23, 5, 0, 0, time.UTC)

func setup(t *testing.T) (*Recorder, *memory.Store) {
	t.Helper()
	clock := func() time.Time { return now }
	store := memory.NewStore().WithClock(clock)
	return NewRecorder(store, zerolog.Nop()).WithClock(clock), store
}

func product(t *testing.T, store *memory.Store, sku string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{SKU: sku, Name: sku, CurrentStock: stock}
	require.NoError(t, store.CreateProduct(context.Background(), p))
	return p
}

func TestRecordIsIdempotent(t *testing.T) {
	ctx := context.Background()
	rec, store := setup(t)
	a := product(t, store, "A", 10)
	product(t, store, "B", 4)

	run, err := rec.Record(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, run.Created)
	require.True(t, run.Date.Equal(time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)))

	// A stock change later the same day does not rewrite the snapshot.
	require.NoError(t, store.SetCurrentStock(ctx, a.ID, 99))
	run, err = rec.Record(ctx, time.Time{})
	require.NoError(t, err)
	require.Zero(t, run.Created)

	history, err := rec.History(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, 10, history[0].StockLevel)

	// An explicit date is recorded independently.
	run, err = rec.Record(ctx, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, 2, run.Created)
}

func TestConcurrentRecordWritesOneSnapshotPerProduct(t *testing.T) {
	ctx := context.Background()
	rec, store := setup(t)
	for _, sku := range []string{"A", "B", "C"} {
		product(t, store, sku, 7)
	}

	created := make([]int, 10)
	var g errgroup.Group
	for i := range created {
		g.Go(func() error {
			run, err := rec.Record(ctx, time.Time{})
			if err != nil {
				return err
			}
			created[i] = run.Created
			return nil
		})
	}
	require.NoError(t, g.Wait())

	total := 0
	for _, n := range created {
		total += n
	}
	require.Equal(t, 3, total)

	snapshots, err := store.ListSnapshots(ctx, domain.SnapshotFilter{})
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()
	rec, store := setup(t)
	a := product(t, store, "A", 0)
	b := product(t, store, "B", 0)

	record := func(p *domain.Product, date time.Time, level int) {
		_, err := store.CreateSnapshotIfAbsent(ctx, &domain.ProductStockSnapshot{ProductID: p.ID, Date: date, StockLevel: level})
		require.NoError(t, err)
	}
	record(a, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 10)
	record(a, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 20)
	record(a, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 6)
	record(b, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), 3)

	monthly, err := rec.Aggregate(ctx, AggregateFilter{})
	require.NoError(t, err)
	require.Len(t, monthly, 3)
	require.Equal(t, domain.SnapshotAggregate{Period: "2024-01", ProductID: a.ID, SKU: "A", AvgStock: 15, MinStock: 10, MaxStock: 20, Samples: 2}, monthly[0])
	require.Equal(t, "2024-01", monthly[1].Period)
	require.Equal(t, b.ID, monthly[1].ProductID)
	require.Equal(t, "2024-02", monthly[2].Period)

	yearly, err := rec.Aggregate(ctx, AggregateFilter{ProductID: &a.ID, Period: domain.PeriodYear})
	require.NoError(t, err)
	require.Len(t, yearly, 1)
	require.Equal(t, "2024", yearly[0].Period)
	require.Equal(t, 12.0, yearly[0].AvgStock)
	require.Equal(t, 3, yearly[0].Samples)
}

func TestHistoryKeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	rec, store := setup(t)
	p := product(t, store, "A", 0)
	for d := 1; d <= 5; d++ {
		_, err := store.CreateSnapshotIfAbsent(ctx, &domain.ProductStockSnapshot{
			ProductID: p.ID, Date: time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC), StockLevel: d,
		})
		require.NoError(t, err)
	}

	history, err := rec.History(ctx, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 4, history[0].StockLevel)
	require.Equal(t, 5, history[1].StockLevel)
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	require.Equal(t, domain.PeriodMonth, p)

	p, err = ParsePeriod("year")
	require.NoError(t, err)
	require.Equal(t, domain.PeriodYear, p)

	_, err = ParsePeriod("week")
	require.True(t, domain.IsValidation(err))
}
