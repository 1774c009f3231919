package alert

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

var fixedNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func newEvaluator(t *testing.T) (*Evaluator, *memory.Store) {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	store := memory.NewStore().WithClock(clock)
	return NewEvaluator(store, zerolog.Nop()).WithClock(clock), store
}

func createProduct(t *testing.T, store *memory.Store, sku string, stock, minimum int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		SKU:                     sku,
		Name:                    "Product " + sku,
		CurrentStock:            stock,
		MinimumStockLevel:       minimum,
		ReorderWarningBufferPct: domain.DefaultReorderWarningBufferPct,
	}
	require.NoError(t, store.CreateProduct(context.Background(), p))
	return p
}

func activeAlerts(t *testing.T, store *memory.Store, productID int64) []domain.StockAlert {
	t.Helper()
	alerts, err := store.ListAlerts(context.Background(), domain.AlertFilter{ProductID: &productID, ActiveOnly: true})
	require.NoError(t, err)
	return alerts
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name              string
		current, min, pct int
		want              domain.ReorderStatus
	}{
		{"at minimum is low", 10, 10, 20, domain.StatusLow},
		{"below minimum is low", 3, 10, 20, domain.StatusLow},
		{"at threshold is approaching", 12, 10, 20, domain.StatusApproaching},
		{"just above minimum is approaching", 11, 10, 20, domain.StatusApproaching},
		{"above threshold is ok", 13, 10, 20, domain.StatusOK},
		{"threshold floors", 7, 7, 10, domain.StatusLow},
		{"floor excludes fraction", 8, 7, 10, domain.StatusOK},
		{"zero minimum and zero stock is low", 0, 0, 20, domain.StatusLow},
		{"zero minimum never approaching", 1, 0, 500, domain.StatusOK},
		{"zero buffer", 11, 10, 0, domain.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.current, tc.min, tc.pct))
		})
	}
}

func TestMessage(t *testing.T) {
	require.Equal(t, "Stock below minimum. Current=9, Minimum=10 (Buffer 20%).", Message(domain.StatusLow, 9, 10, 20))
	require.Equal(t, "Stock approaching minimum. Current=12, Minimum=10 (Buffer 20%).", Message(domain.StatusApproaching, 12, 10, 20))
}

func TestEvaluateStockSequence(t *testing.T) {
	ctx := context.Background()
	ev, store := newEvaluator(t)
	p := createProduct(t, store, "SKU-1", 15, 10)

	status, err := ev.Evaluate(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusOK, status)
	require.Empty(t, activeAlerts(t, store, p.ID))

	require.NoError(t, store.SetCurrentStock(ctx, p.ID, 12))
	status, err = ev.Evaluate(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproaching, status)
	alerts := activeAlerts(t, store, p.ID)
	require.Len(t, alerts, 1)
	require.Equal(t, domain.StatusApproaching, alerts[0].Status)
	require.Equal(t, 12, alerts[0].CurrentStockAtTrigger)
	require.Equal(t, 10, alerts[0].MinimumStockLevel)

	require.NoError(t, store.SetCurrentStock(ctx, p.ID, 9))
	status, err = ev.Evaluate(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusLow, status)

	alerts = activeAlerts(t, store, p.ID)
	require.Len(t, alerts, 2)
	statuses := map[domain.ReorderStatus]int{}
	for _, a := range alerts {
		statuses[a.Status]++
	}
	require.Equal(t, 1, statuses[domain.StatusApproaching])
	require.Equal(t, 1, statuses[domain.StatusLow])

	stored, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusLow, stored.ReorderStatus)
	require.NotNil(t, stored.ReorderStatusChangedAt)
	require.True(t, stored.ReorderStatusChangedAt.Equal(fixedNow))
}

func TestEvaluateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ev, store := newEvaluator(t)
	p := createProduct(t, store, "SKU-1", 4, 10)

	for i := 0; i < 3; i++ {
		status, err := ev.Evaluate(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusLow, status)
	}
	require.Len(t, activeAlerts(t, store, p.ID), 1)

	// Moving within the band leaves the existing alert untouched.
	require.NoError(t, store.SetCurrentStock(ctx, p.ID, 2))
	_, err := ev.Evaluate(ctx, p.ID)
	require.NoError(t, err)
	alerts := activeAlerts(t, store, p.ID)
	require.Len(t, alerts, 1)
	require.Equal(t, 4, alerts[0].CurrentStockAtTrigger)
}

func TestConcurrentEvaluateCreatesOneAlert(t *testing.T) {
	ctx := context.Background()
	ev, store := newEvaluator(t)
	p := createProduct(t, store, "SKU-1", 4, 10)

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			_, err := ev.Evaluate(ctx, p.ID)
			return err
		})
	}
	require.NoError(t, g.Wait())

	alerts := activeAlerts(t, store, p.ID)
	require.Len(t, alerts, 1)
	require.Equal(t, domain.StatusLow, alerts[0].Status)
}

func TestEvaluateOKResolvesEveryActiveAlert(t *testing.T) {
	ctx := context.Background()
	ev, store := newEvaluator(t)
	p := createProduct(t, store, "SKU-1", 12, 10)

	_, err := ev.Evaluate(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, store.SetCurrentStock(ctx, p.ID, 5))
	_, err = ev.Evaluate(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, activeAlerts(t, store, p.ID), 2)

	require.NoError(t, store.SetCurrentStock(ctx, p.ID, 50))
	status, err := ev.Evaluate(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusOK, status)
	require.Empty(t, activeAlerts(t, store, p.ID))

	all, err := store.ListAlerts(ctx, domain.AlertFilter{ProductID: &p.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, a := range all {
		require.NotNil(t, a.ResolvedAt)
		require.True(t, a.ResolvedAt.Equal(fixedNow))
	}
}

func TestEvaluateZeroMinimum(t *testing.T) {
	ctx := context.Background()
	ev, store := newEvaluator(t)
	p := createProduct(t, store, "SKU-0", 1, 0)

	status, err := ev.Evaluate(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusOK, status)

	require.NoError(t, store.SetCurrentStock(ctx, p.ID, 0))
	status, err = ev.Evaluate(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusLow, status)
}

func TestEvaluateUnknownProduct(t *testing.T) {
	ev, _ := newEvaluator(t)
	_, err := ev.Evaluate(context.Background(), 404)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ev, store := newEvaluator(t)
	p := createProduct(t, store, "SKU-1", 1, 10)
	_, err := ev.Evaluate(ctx, p.ID)
	require.NoError(t, err)
	alerts := activeAlerts(t, store, p.ID)
	require.Len(t, alerts, 1)

	resolved, err := ev.Resolve(ctx, alerts[0].ID)
	require.NoError(t, err)
	require.False(t, resolved.Active)
	first := *resolved.ResolvedAt

	later := fixedNow.Add(time.Hour)
	ev.WithClock(func() time.Time { return later })
	again, err := ev.Resolve(ctx, alerts[0].ID)
	require.NoError(t, err)
	require.False(t, again.Active)
	require.True(t, again.ResolvedAt.Equal(first))
}

func TestResolveProduct(t *testing.T) {
	ctx := context.Background()
	ev, store := newEvaluator(t)
	p := createProduct(t, store, "SKU-1", 12, 10)
	_, err := ev.Evaluate(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, store.SetCurrentStock(ctx, p.ID, 1))
	_, err = ev.Evaluate(ctx, p.ID)
	require.NoError(t, err)

	n, err := ev.ResolveProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = ev.ResolveProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = ev.ResolveProduct(ctx, 999)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEvaluateAllAndSummarize(t *testing.T) {
	ctx := context.Background()
	ev, store := newEvaluator(t)
	createProduct(t, store, "A", 100, 10)
	createProduct(t, store, "B", 11, 10)
	createProduct(t, store, "C", 0, 5)
	createProduct(t, store, "D", 2, 5)

	results, err := ev.EvaluateAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 4)

	counts := Summarize(results)
	require.Equal(t, 2, counts[domain.StatusLow])
	require.Equal(t, 1, counts[domain.StatusApproaching])
	require.Equal(t, 1, counts[domain.StatusOK])

	// A second sweep raises nothing new.
	_, err = ev.EvaluateAll(ctx)
	require.NoError(t, err)
	alerts, err := ev.Alerts(ctx, domain.AlertFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, alerts, 3)
}
