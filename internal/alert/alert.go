// Package alert classifies product stock against its thresholds and manages the
// lifecycle of stock alerts.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/andresuchdata/eisen-inventory/internal/repository"
	"github.com/rs/zerolog"
)

const defaultListLimit = 50

// Threshold is the top of the approaching band: floor(minimum × (1 + bufferPct/100)).
func Threshold(minimum, bufferPct int) int {
	return minimum * (100 + bufferPct) / 100
}

// Classify evaluates the rules top-down. A product with a zero minimum is never
// APPROACHING.
func Classify(current, minimum, bufferPct int) domain.ReorderStatus {
	if current <= minimum {
		return domain.StatusLow
	}
	if minimum > 0 && current <= Threshold(minimum, bufferPct) {
		return domain.StatusApproaching
	}
	return domain.StatusOK
}

// Message is the text stored on a newly raised alert.
func Message(status domain.ReorderStatus, current, minimum, bufferPct int) string {
	direction := "approaching"
	if status == domain.StatusLow {
		direction = "below"
	}
	return fmt.Sprintf("Stock %s minimum. Current=%d, Minimum=%d (Buffer %d%%).", direction, current, minimum, bufferPct)
}

// Evaluator runs the alert state machine. Each evaluation locks the product row
// so it serializes with ledger mutations of the same product.
type Evaluator struct {
	store  repository.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewEvaluator(store repository.Store, logger zerolog.Logger) *Evaluator {
	return &Evaluator{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (e *Evaluator) WithClock(clock func() time.Time) *Evaluator {
	if clock != nil {
		e.now = clock
	}
	return e
}

// Evaluate classifies the product's current stock and applies the transition effects.
func (e *Evaluator) Evaluate(ctx context.Context, productID int64) (domain.ReorderStatus, error) {
	var status domain.ReorderStatus
	err := e.store.WithTx(ctx, func(ctx context.Context, q repository.Queries) error {
		product, err := e.evaluate(ctx, q, productID)
		if err != nil {
			return err
		}
		status = product.ReorderStatus
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("evaluate product %d: %w", productID, err)
	}
	return status, nil
}

func (e *Evaluator) evaluate(ctx context.Context, q repository.Queries, productID int64) (*domain.Product, error) {
	product, err := q.LockProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	status := Classify(product.CurrentStock, product.MinimumStockLevel, product.ReorderWarningBufferPct)

	if status != product.ReorderStatus {
		if err := q.SetReorderStatus(ctx, product.ID, status, now); err != nil {
			return nil, err
		}
		e.logger.Info().
			Int64("product_id", product.ID).
			Str("sku", product.SKU).
			Str("from", string(product.ReorderStatus)).
			Str("to", string(status)).
			Msg("reorder status changed")
		product.ReorderStatus = status
		product.ReorderStatusChangedAt = &now
	}

	if status == domain.StatusOK {
		resolved, err := q.ResolveActiveAlerts(ctx, product.ID, now)
		if err != nil {
			return nil, err
		}
		if resolved > 0 {
			e.logger.Info().Int64("product_id", product.ID).Int("resolved", resolved).Msg("stock alerts resolved")
		}
		return product, nil
	}

	_, err = q.FindActiveAlert(ctx, product.ID, status)
	if err == nil {
		return product, nil
	}
	if !domain.IsNotFound(err) {
		return nil, err
	}

	alert := &domain.StockAlert{
		ProductID:             product.ID,
		Status:                status,
		Active:                true,
		CreatedAt:             now,
		CurrentStockAtTrigger: product.CurrentStock,
		MinimumStockLevel:     product.MinimumStockLevel,
		Message:               Message(status, product.CurrentStock, product.MinimumStockLevel, product.ReorderWarningBufferPct),
	}
	if err := q.CreateAlert(ctx, alert); err != nil {
		return nil, err
	}
	e.logger.Warn().
		Int64("product_id", product.ID).
		Str("sku", product.SKU).
		Str("status", string(status)).
		Int("current_stock", product.CurrentStock).
		Msg(alert.Message)

	return product, nil
}

// EvaluateAll sweeps every product. A product that fails to evaluate is logged
// and left out of the result.
func (e *Evaluator) EvaluateAll(ctx context.Context) ([]domain.AlertEvaluation, error) {
	products, err := e.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	results := make([]domain.AlertEvaluation, 0, len(products))
	for _, p := range products {
		var evaluated *domain.Product
		err := e.store.WithTx(ctx, func(ctx context.Context, q repository.Queries) error {
			var err error
			evaluated, err = e.evaluate(ctx, q, p.ID)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			e.logger.Warn().Err(err).Int64("product_id", p.ID).Str("sku", p.SKU).Msg("alert evaluation failed")
			continue
		}
		results = append(results, domain.AlertEvaluation{
			ProductID:    evaluated.ID,
			SKU:          evaluated.SKU,
			Status:       evaluated.ReorderStatus,
			CurrentStock: evaluated.CurrentStock,
		})
	}
	return results, nil
}

// Summarize counts results per status. Every status is present in the map.
func Summarize(results []domain.AlertEvaluation) map[domain.ReorderStatus]int {
	counts := map[domain.ReorderStatus]int{
		domain.StatusLow:         0,
		domain.StatusApproaching: 0,
		domain.StatusOK:          0,
	}
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

// Resolve deactivates one alert. Resolving an already resolved alert changes nothing.
func (e *Evaluator) Resolve(ctx context.Context, alertID int64) (*domain.StockAlert, error) {
	var alert *domain.StockAlert
	err := e.store.WithTx(ctx, func(ctx context.Context, q repository.Queries) error {
		if _, err := q.ResolveAlert(ctx, alertID, e.now()); err != nil {
			return err
		}
		var err error
		alert, err = q.GetAlert(ctx, alertID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resolve alert %d: %w", alertID, err)
	}
	return alert, nil
}

// ResolveProduct deactivates every active alert of a product and returns how many changed.
func (e *Evaluator) ResolveProduct(ctx context.Context, productID int64) (int, error) {
	var resolved int
	err := e.store.WithTx(ctx, func(ctx context.Context, q repository.Queries) error {
		if _, err := q.LockProduct(ctx, productID); err != nil {
			return err
		}
		var err error
		resolved, err = q.ResolveActiveAlerts(ctx, productID, e.now())
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("resolve alerts for product %d: %w", productID, err)
	}
	return resolved, nil
}

// Alerts lists alerts, newest first.
func (e *Evaluator) Alerts(ctx context.Context, filter domain.AlertFilter) ([]domain.StockAlert, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	alerts, err := e.store.ListAlerts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}
