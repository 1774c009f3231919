// Package sales reads and fills the per-product daily usage history.
package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/andresuchdata/eisen-inventory/internal/repository"
)

// History is the Sales History Store.
type History struct {
	repo repository.SalesRepository
	now  func() time.Time
}

func NewHistory(repo repository.SalesRepository) *History {
	return &History{repo: repo, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (h *History) WithClock(clock func() time.Time) *History {
	if clock != nil {
		h.now = clock
	}
	return h
}

// Window returns one quantity per calendar day for the last days days, ending
// today and oldest first. Days without a row count as zero demand.
func (h *History) Window(ctx context.Context, productID int64, days int) ([]int, error) {
	if days <= 0 {
		return []int{}, nil
	}

	today := domain.Date(h.now())
	start := today.AddDate(0, 0, -(days - 1))

	rows, err := h.repo.ListDailySales(ctx, productID, start, today)
	if err != nil {
		return nil, fmt.Errorf("daily sales window for product %d: %w", productID, err)
	}

	byDay := make(map[string]int, len(rows))
	for _, row := range rows {
		byDay[row.Date.Format(time.DateOnly)] += row.Quantity
	}

	window := make([]int, days)
	for i := range window {
		window[i] = byDay[start.AddDate(0, 0, i).Format(time.DateOnly)]
	}
	return window, nil
}

// Record stores usage for one day unless that day already has a row.
func (h *History) Record(ctx context.Context, productID int64, date time.Time, quantity int) (bool, error) {
	if quantity < 0 {
		return false, &domain.ValidationError{Field: "quantity", Message: "must not be negative", Err: domain.ErrInvalidQuantity}
	}
	created, err := h.repo.CreateDailySalesIfAbsent(ctx, &domain.ProductDailySales{
		ProductID: productID,
		Date:      domain.Date(date),
		Quantity:  quantity,
	})
	if err != nil {
		return false, fmt.Errorf("record sales for product %d: %w", productID, err)
	}
	return created, nil
}
