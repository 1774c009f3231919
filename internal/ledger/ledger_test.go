package ledger

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/alert"
	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/andresuchdata/eisen-inventory/internal/repository/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var day0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	ledger *Ledger
	store  *memory.Store
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: day0}
	clock := func() time.Time { return f.now }
	f.store = memory.NewStore().WithClock(clock)
	evaluator := alert.NewEvaluator(f.store, zerolog.Nop()).WithClock(clock)
	f.ledger = New(f.store, evaluator, zerolog.Nop()).WithClock(clock)
	return f
}

func (f *fixture) product(t *testing.T, sku string, minimum int) *domain.Product {
	t.Helper()
	p := &domain.Product{SKU: sku, Name: sku, MinimumStockLevel: minimum, ReorderWarningBufferPct: 20}
	require.NoError(t, f.store.CreateProduct(context.Background(), p))
	return p
}

func (f *fixture) supplier(t *testing.T, name string) *domain.Supplier {
	t.Helper()
	s := &domain.Supplier{Name: name, IsActive: true}
	require.NoError(t, f.store.CreateSupplier(context.Background(), s))
	return s
}

func (f *fixture) receive(t *testing.T, productID int64, qty int, at time.Time) *domain.InventoryBatch {
	t.Helper()
	b, err := f.ledger.Receive(context.Background(), ReceiveInput{ProductID: productID, Quantity: qty, ReceivedAt: at})
	require.NoError(t, err)
	return b
}

func (f *fixture) stock(t *testing.T, productID int64) (current int, batchSum int) {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	batches, err := f.store.ListBatches(context.Background(), productID)
	require.NoError(t, err)
	for _, b := range batches {
		batchSum += b.Quantity
	}
	return p.CurrentStock, batchSum
}

func batchQuantities(t *testing.T, f *fixture, productID int64) []int {
	t.Helper()
	batches, err := f.store.ListBatches(context.Background(), productID)
	require.NoError(t, err)
	out := make([]int, len(batches))
	for i, b := range batches {
		out[i] = b.Quantity
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestReceiveIncrementsStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "A", 0)

	b := f.receive(t, p.ID, 25, time.Time{})
	require.NotZero(t, b.ID)
	require.True(t, b.ReceivedAt.Equal(day0), "zero received_at defaults to the clock")

	current, sum := f.stock(t, p.ID)
	require.Equal(t, 25, current)
	require.Equal(t, 25, sum)
}

func TestReceiveValidation(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "A", 0)

	_, err := f.ledger.Receive(context.Background(), ReceiveInput{ProductID: p.ID, Quantity: -1})
	require.True(t, domain.IsValidation(err))

	_, err = f.ledger.Receive(context.Background(), ReceiveInput{Quantity: 1})
	require.True(t, domain.IsValidation(err))

	_, err = f.ledger.Receive(context.Background(), ReceiveInput{ProductID: 999, Quantity: 1})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDepleteFIFO(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "A", 0)
	f.receive(t, p.ID, 5, day0.Add(2*time.Hour))
	f.receive(t, p.ID, 10, day0)
	f.receive(t, p.ID, 7, day0.Add(time.Hour))

	ok, err := f.ledger.Deplete(context.Background(), p.ID, 12)
	require.NoError(t, err)
	require.True(t, ok)

	// Oldest (10) drained, middle (7) reduced to 5, newest untouched.
	require.Equal(t, []int{0, 5, 5}, batchQuantities(t, f, p.ID))
	current, sum := f.stock(t, p.ID)
	require.Equal(t, 10, current)
	require.Equal(t, 10, sum)

	// Drained batches stay as rows but are skipped.
	ok, err = f.ledger.Deplete(context.Background(), p.ID, 6)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []int{0, 0, 4}, batchQuantities(t, f, p.ID))
}

func TestDepleteInsufficientIsAtomic(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "A", 0)
	f.receive(t, p.ID, 3, day0)
	f.receive(t, p.ID, 4, day0.Add(time.Hour))

	ok, err := f.ledger.Deplete(context.Background(), p.ID, 8)
	require.NoError(t, err)
	require.False(t, ok)

	require.Equal(t, []int{3, 4}, batchQuantities(t, f, p.ID))
	current, _ := f.stock(t, p.ID)
	require.Equal(t, 7, current)
}

func TestDepleteZeroAndNegative(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "A", 0)

	ok, err := f.ledger.Deplete(context.Background(), p.ID, 0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.ledger.Deplete(context.Background(), p.ID, -2)
	require.False(t, ok)
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestNoDriftAfterRandomSequence(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "A", 10)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		f.now = day0.Add(time.Duration(i) * time.Minute)
		if rng.Intn(2) == 0 {
			f.receive(t, p.ID, rng.Intn(20), time.Time{})
			continue
		}
		before, _ := f.stock(t, p.ID)
		qty := rng.Intn(30)
		ok, err := f.ledger.Deplete(context.Background(), p.ID, qty)
		require.NoError(t, err)
		after, _ := f.stock(t, p.ID)
		if ok {
			require.Equal(t, before-qty, after)
		} else {
			require.Equal(t, before, after)
			require.Greater(t, qty, before)
		}
		current, sum := f.stock(t, p.ID)
		require.Equal(t, sum, current)
	}
}

func TestConcurrentWritersKeepStockAndAlertsConsistent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "A", 40)
	f.receive(t, p.ID, 30, time.Time{})
	evaluator := alert.NewEvaluator(f.store, zerolog.Nop()).WithClock(func() time.Time { return day0 })

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		rng := rand.New(rand.NewSource(int64(w)))
		g.Go(func() error {
			for i := 0; i < 40; i++ {
				var err error
				switch rng.Intn(3) {
				case 0:
					_, err = f.ledger.Receive(ctx, ReceiveInput{ProductID: p.ID, Quantity: 1 + rng.Intn(10)})
				case 1:
					_, err = f.ledger.Deplete(ctx, p.ID, 1+rng.Intn(15))
				default:
					_, err = evaluator.Evaluate(ctx, p.ID)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	current, sum := f.stock(t, p.ID)
	require.Equal(t, sum, current)
	require.GreaterOrEqual(t, current, 0)

	alerts, err := f.store.ListAlerts(ctx, domain.AlertFilter{ProductID: &p.ID, ActiveOnly: true})
	require.NoError(t, err)
	perStatus := map[domain.ReorderStatus]int{}
	for _, a := range alerts {
		perStatus[a.Status]++
	}
	for status, n := range perStatus {
		require.LessOrEqual(t, n, 1, "active %s alerts", status)
	}
	require.Zero(t, perStatus[domain.StatusOK])
}

func TestReceiveCreatesSupplierLink(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "A", 0)
	s := f.supplier(t, "Acme")

	_, err := f.ledger.Receive(context.Background(), ReceiveInput{
		ProductID: p.ID, Quantity: 5, ReceivedAt: day0, SupplierID: &s.ID, UnitCost: ptr(2.5),
	})
	require.NoError(t, err)

	link, err := f.store.GetSupplierProduct(context.Background(), s.ID, p.ID)
	require.NoError(t, err)
	require.True(t, link.IsPreferred)
	require.Equal(t, 2.5, *link.CostPrice)
	require.True(t, link.LastSuppliedAt.Equal(day0))
}

func TestReceiveRefreshesSupplierLink(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "A", 0)
	s := f.supplier(t, "Acme")
	ctx := context.Background()

	_, err := f.ledger.Receive(ctx, ReceiveInput{ProductID: p.ID, Quantity: 5, ReceivedAt: day0, SupplierID: &s.ID, UnitCost: ptr(2.5)})
	require.NoError(t, err)

	// An older receipt with a new cost updates cost but not last_supplied_at.
	older := day0.Add(-48 * time.Hour)
	_, err = f.ledger.Receive(ctx, ReceiveInput{ProductID: p.ID, Quantity: 1, ReceivedAt: older, SupplierID: &s.ID, UnitCost: ptr(3.0)})
	require.NoError(t, err)
	link, err := f.store.GetSupplierProduct(ctx, s.ID, p.ID)
	require.NoError(t, err)
	require.Equal(t, 3.0, *link.CostPrice)
	require.True(t, link.LastSuppliedAt.Equal(day0))

	// A newer receipt without a cost advances the timestamp and keeps the cost.
	newer := day0.Add(24 * time.Hour)
	_, err = f.ledger.Receive(ctx, ReceiveInput{ProductID: p.ID, Quantity: 1, ReceivedAt: newer, SupplierID: &s.ID})
	require.NoError(t, err)
	link, err = f.store.GetSupplierProduct(ctx, s.ID, p.ID)
	require.NoError(t, err)
	require.Equal(t, 3.0, *link.CostPrice)
	require.True(t, link.LastSuppliedAt.Equal(newer))
}

func TestReceiveSurvivesLinkFailure(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "A", 0)
	missingSupplier := int64(777)

	b, err := f.ledger.Receive(context.Background(), ReceiveInput{
		ProductID: p.ID, Quantity: 9, ReceivedAt: day0, SupplierID: &missingSupplier,
	})
	require.NoError(t, err)
	require.NotNil(t, b)

	current, sum := f.stock(t, p.ID)
	require.Equal(t, 9, current)
	require.Equal(t, 9, sum)
}

type failingEvaluator struct{ calls int }

func (e *failingEvaluator) Evaluate(context.Context, int64) (domain.ReorderStatus, error) {
	e.calls++
	return "", errors.New("boom")
}

func TestAlertFailureDoesNotUndoStockChange(t *testing.T) {
	store := memory.NewStore()
	ev := &failingEvaluator{}
	l := New(store, ev, zerolog.Nop())
	p := &domain.Product{SKU: "A", Name: "A"}
	require.NoError(t, store.CreateProduct(context.Background(), p))

	_, err := l.Receive(context.Background(), ReceiveInput{ProductID: p.ID, Quantity: 4})
	require.NoError(t, err)
	ok, err := l.Deplete(context.Background(), p.ID, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, ev.calls)

	stored, err := store.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stored.CurrentStock)
}

func TestStockChangesDriveAlerts(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "A", 10)
	ctx := context.Background()

	f.receive(t, p.ID, 15, day0)
	stored, err := f.store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusOK, stored.ReorderStatus)

	ok, err := f.ledger.Deplete(ctx, p.ID, 6)
	require.NoError(t, err)
	require.True(t, ok)

	stored, err = f.store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusLow, stored.ReorderStatus)

	alerts, err := f.store.ListAlerts(ctx, domain.AlertFilter{ProductID: &p.ID, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, domain.StatusLow, alerts[0].Status)
}

func TestPlanFIFO(t *testing.T) {
	batches := []domain.InventoryBatch{{ID: 1, Quantity: 2}, {ID: 2, Quantity: 0}, {ID: 3, Quantity: 5}}

	draws, ok := planFIFO(batches, 4)
	require.True(t, ok)
	require.Equal(t, []draw{{batchID: 1, remaining: 0, taken: 2}, {batchID: 3, remaining: 3, taken: 2}}, draws)

	_, ok = planFIFO(batches, 8)
	require.False(t, ok)
}
