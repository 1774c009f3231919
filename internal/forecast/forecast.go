// Package forecast derives usage, safety stock and reorder figures from the
// sales history and supplier lead times.
package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/andresuchdata/eisen-inventory/internal/domain"
)

const (
	DefaultUsageDays    = 30
	DefaultMaxSalesDays = 90
)

// SafetyStockBasic = max(0, (maxDaily - avgDaily) * avgLead)
func SafetyStockBasic(maxDaily, avgDaily, avgLead float64) float64 {
	return math.Max(0, (maxDaily-avgDaily)*avgLead)
}

// SafetyStockAdvanced = max(0, maxDaily*maxLead - avgDaily*avgLead)
func SafetyStockAdvanced(maxDaily, avgDaily, maxLead, avgLead float64) float64 {
	return math.Max(0, maxDaily*maxLead-avgDaily*avgLead)
}

// ReorderPoint = round(avgDaily*avgLead + safetyStock)
func ReorderPoint(avgDaily, avgLead, safetyStock float64) int {
	return round(avgDaily*avgLead + safetyStock)
}

// round is half away from zero. Every input here is non-negative.
func round(v float64) int {
	return int(math.Round(v))
}

func mean(window []int) float64 {
	if len(window) == 0 {
		return 0
	}
	sum := 0
	for _, q := range window {
		sum += q
	}
	return float64(sum) / float64(len(window))
}

func maximum(window []int) float64 {
	if len(window) == 0 {
		return 0
	}
	m := window[0]
	for _, q := range window[1:] {
		if q > m {
			m = q
		}
	}
	return float64(m)
}

// LeadTimes returns the average and maximum over links that carry a lead time.
func LeadTimes(links []domain.SupplierProduct) (avg, max float64) {
	n, sum, top := 0, 0, 0
	for _, l := range links {
		if l.LeadTimeDays == nil {
			continue
		}
		d := *l.LeadTimeDays
		if n == 0 || d > top {
			top = d
		}
		sum += d
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return float64(sum) / float64(n), float64(top)
}

// CheapestPreferred picks the preferred link with the lowest cost. Links without
// a cost sort last and ties go to the lower supplier id.
func CheapestPreferred(links []domain.SupplierProduct) *domain.PreferredSupplier {
	preferred := make([]domain.SupplierProduct, 0, len(links))
	for _, l := range links {
		if l.IsPreferred {
			preferred = append(preferred, l)
		}
	}
	if len(preferred) == 0 {
		return nil
	}

	sort.SliceStable(preferred, func(i, j int) bool {
		a, b := preferred[i], preferred[j]
		switch {
		case a.CostPrice == nil && b.CostPrice == nil:
		case a.CostPrice == nil:
			return false
		case b.CostPrice == nil:
			return true
		case *a.CostPrice != *b.CostPrice:
			return *a.CostPrice < *b.CostPrice
		}
		return a.SupplierID < b.SupplierID
	})

	best := preferred[0]
	return &domain.PreferredSupplier{
		SupplierID:       best.SupplierID,
		SupplierName:     best.SupplierName,
		LeadTimeDays:     best.LeadTimeDays,
		CostPrice:        best.CostPrice,
		MinOrderQuantity: best.MinOrderQuantity,
	}
}

// SuggestedQuantity raises a positive recommendation to the supplier's minimum order.
func SuggestedQuantity(recommended int, supplier *domain.PreferredSupplier) int {
	if recommended <= 0 {
		return 0
	}
	if supplier != nil && supplier.MinOrderQuantity != nil && *supplier.MinOrderQuantity > recommended {
		return *supplier.MinOrderQuantity
	}
	return recommended
}

// SalesWindow supplies the dense daily usage window ending today.
type SalesWindow interface {
	Window(ctx context.Context, productID int64, days int) ([]int, error)
}

// Reader is the read side the calculator needs.
type Reader interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListSupplierProducts(ctx context.Context, productID int64) ([]domain.SupplierProduct, error)
}

type Calculator struct {
	sales SalesWindow
	store Reader
}

func NewCalculator(sales SalesWindow, store Reader) *Calculator {
	return &Calculator{sales: sales, store: store}
}

func (c *Calculator) AverageDailyUsage(ctx context.Context, productID int64, days int) (float64, error) {
	if days <= 0 {
		days = DefaultUsageDays
	}
	window, err := c.sales.Window(ctx, productID, days)
	if err != nil {
		return 0, err
	}
	return mean(window), nil
}

func (c *Calculator) MaximumDailySales(ctx context.Context, productID int64, days int) (float64, error) {
	if days <= 0 {
		days = DefaultMaxSalesDays
	}
	window, err := c.sales.Window(ctx, productID, days)
	if err != nil {
		return 0, err
	}
	return maximum(window), nil
}

func (c *Calculator) LeadTimeStats(ctx context.Context, productID int64) (avg, max float64, err error) {
	links, err := c.store.ListSupplierProducts(ctx, productID)
	if err != nil {
		return 0, 0, fmt.Errorf("supplier links for product %d: %w", productID, err)
	}
	avg, max = LeadTimes(links)
	return avg, max, nil
}

// inputs holds everything one product's figures are derived from.
type inputs struct {
	avgDaily, maxDaily float64
	avgLead, maxLead   float64
	links              []domain.SupplierProduct
}

func (c *Calculator) load(ctx context.Context, productID int64) (*inputs, error) {
	var in inputs
	var err error
	if in.avgDaily, err = c.AverageDailyUsage(ctx, productID, DefaultUsageDays); err != nil {
		return nil, err
	}
	if in.maxDaily, err = c.MaximumDailySales(ctx, productID, DefaultMaxSalesDays); err != nil {
		return nil, err
	}
	if in.links, err = c.store.ListSupplierProducts(ctx, productID); err != nil {
		return nil, fmt.Errorf("supplier links for product %d: %w", productID, err)
	}
	in.avgLead, in.maxLead = LeadTimes(in.links)
	return &in, nil
}

func (in *inputs) safetyBasic() float64 {
	return SafetyStockBasic(in.maxDaily, in.avgDaily, in.avgLead)
}

func (in *inputs) safetyAdvanced() float64 {
	return SafetyStockAdvanced(in.maxDaily, in.avgDaily, in.maxLead, in.avgLead)
}

func (in *inputs) reorderPoint(useAdvanced bool) int {
	safety := in.safetyBasic()
	if useAdvanced {
		safety = in.safetyAdvanced()
	}
	return ReorderPoint(in.avgDaily, in.avgLead, safety)
}

// ReorderPoint uses the advanced safety stock unless useAdvanced is false.
func (c *Calculator) ReorderPoint(ctx context.Context, productID int64, useAdvanced bool) (int, error) {
	in, err := c.load(ctx, productID)
	if err != nil {
		return 0, err
	}
	return in.reorderPoint(useAdvanced), nil
}

func (c *Calculator) Recommendation(ctx context.Context, product *domain.Product) (*domain.ReorderRecommendation, error) {
	in, err := c.load(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("recommendation for %s: %w", product.SKU, err)
	}

	point := in.reorderPoint(true)
	delta := point - product.CurrentStock
	recommended := 0
	if delta > 0 {
		recommended = delta
	}
	supplier := CheapestPreferred(in.links)

	return &domain.ReorderRecommendation{
		ProductID:                product.ID,
		ProductName:              product.Name,
		SKU:                      product.SKU,
		CurrentStock:             product.CurrentStock,
		ReorderPoint:             point,
		RecommendedOrderQuantity: recommended,
		SuggestedOrderQuantity:   SuggestedQuantity(recommended, supplier),
		SafetyStockBasic:         round(in.safetyBasic()),
		SafetyStockAdvanced:      round(in.safetyAdvanced()),
		AverageDailyUsage:        in.avgDaily,
		MaximumDailySales:        in.maxDaily,
		NeedsReorder:             delta > 0,
		PreferredSupplier:        supplier,
	}, nil
}

// AllRecommendations returns one recommendation per product ordered by name.
func (c *Calculator) AllRecommendations(ctx context.Context) ([]domain.ReorderRecommendation, error) {
	products, err := c.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]domain.ReorderRecommendation, 0, len(products))
	for i := range products {
		rec, err := c.Recommendation(ctx, &products[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}
