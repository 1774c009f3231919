// Package snapshot records one stock level per product per day and reports on them.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/rs/zerolog"
)

const DefaultHistoryLimit = 90

// Repository is what the recorder reads and writes.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateSnapshotIfAbsent(ctx context.Context, snapshot *domain.ProductStockSnapshot) (bool, error)
	ListSnapshots(ctx context.Context, filter domain.SnapshotFilter) ([]domain.ProductStockSnapshot, error)
}

type AggregateFilter struct {
	ProductID *int64
	Period    domain.SnapshotPeriod
}

type Recorder struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewRecorder(repo Repository, logger zerolog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (r *Recorder) WithClock(clock func() time.Time) *Recorder {
	if clock != nil {
		r.now = clock
	}
	return r
}

// Record writes today's (or date's) stock level for every product. Products
// that already have a snapshot for the day are left alone, so reruns are safe.
func (r *Recorder) Record(ctx context.Context, date time.Time) (*domain.SnapshotRun, error) {
	if date.IsZero() {
		date = r.now()
	}
	day := domain.Date(date)

	products, err := r.repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	run := &domain.SnapshotRun{Date: day}
	for _, p := range products {
		created, err := r.repo.CreateSnapshotIfAbsent(ctx, &domain.ProductStockSnapshot{
			ProductID:  p.ID,
			Date:       day,
			StockLevel: p.CurrentStock,
		})
		if err != nil {
			return nil, fmt.Errorf("snapshot %s on %s: %w", p.SKU, day.Format(time.DateOnly), err)
		}
		if created {
			run.Created++
		}
	}

	r.logger.Info().
		Str("date", day.Format(time.DateOnly)).
		Int("created", run.Created).
		Int("products", len(products)).
		Msg("stock snapshots recorded")
	return run, nil
}

func periodKey(t time.Time, period domain.SnapshotPeriod) string {
	if period == domain.PeriodYear {
		return t.Format("2006")
	}
	return t.Format("2006-01")
}

// ParsePeriod accepts "month" and "year"; anything else is a validation error.
func ParsePeriod(s string) (domain.SnapshotPeriod, error) {
	switch domain.SnapshotPeriod(s) {
	case "", domain.PeriodMonth:
		return domain.PeriodMonth, nil
	case domain.PeriodYear:
		return domain.PeriodYear, nil
	}
	return "", domain.NewValidationError("period", fmt.Sprintf("unsupported period %q", s))
}

// Aggregate buckets snapshots by month or year and product, ordered by period
// then product.
func (r *Recorder) Aggregate(ctx context.Context, filter AggregateFilter) ([]domain.SnapshotAggregate, error) {
	if filter.Period == "" {
		filter.Period = domain.PeriodMonth
	}

	snaps, err := r.repo.ListSnapshots(ctx, domain.SnapshotFilter{ProductID: filter.ProductID})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	products, err := r.repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	skus := make(map[int64]string, len(products))
	for _, p := range products {
		skus[p.ID] = p.SKU
	}

	type key struct {
		period    string
		productID int64
	}
	type bucket struct {
		sum, min, max, n int
	}
	buckets := map[key]*bucket{}
	for _, s := range snaps {
		k := key{periodKey(s.Date, filter.Period), s.ProductID}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{min: s.StockLevel, max: s.StockLevel}
			buckets[k] = b
		}
		b.sum += s.StockLevel
		b.n++
		if s.StockLevel < b.min {
			b.min = s.StockLevel
		}
		if s.StockLevel > b.max {
			b.max = s.StockLevel
		}
	}

	out := make([]domain.SnapshotAggregate, 0, len(buckets))
	for k, b := range buckets {
		out = append(out, domain.SnapshotAggregate{
			Period:    k.period,
			ProductID: k.productID,
			SKU:       skus[k.productID],
			AvgStock:  float64(b.sum) / float64(b.n),
			MinStock:  b.min,
			MaxStock:  b.max,
			Samples:   b.n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period < out[j].Period
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

// History returns up to limit of the product's most recent snapshots, oldest first.
func (r *Recorder) History(ctx context.Context, productID int64, limit int) ([]domain.ProductStockSnapshot, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	snaps, err := r.repo.ListSnapshots(ctx, domain.SnapshotFilter{ProductID: &productID})
	if err != nil {
		return nil, fmt.Errorf("snapshots for product %d: %w", productID, err)
	}
	if len(snaps) > limit {
		snaps = snaps[len(snaps)-limit:]
	}
	return snaps, nil
}
