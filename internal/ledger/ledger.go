// Package ledger records stock receipts as batches and depletes them oldest first.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/andresuchdata/eisen-inventory/internal/repository"
	"github.com/andresuchdata/eisen-inventory/pkg/validator"
	"github.com/rs/zerolog"
)

// AlertEvaluator re-classifies a product after its stock changed.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, productID int64) (domain.ReorderStatus, error)
}

type ReceiveInput struct {
	ProductID  int64     `json:"product_id" validate:"required,gt=0"`
	Quantity   int       `json:"quantity" validate:"gte=0"`
	ReceivedAt time.Time `json:"received_at"`
	SupplierID *int64    `json:"supplier_id,omitempty" validate:"omitempty,gt=0"`
	UnitCost   *float64  `json:"unit_cost,omitempty" validate:"omitempty,gte=0"`
}

// Ledger owns batch receipts and FIFO depletion. The supplier link refresh and
// the alert evaluation run after the stock change commits, each in its own
// unit of work, and their failures never undo the stock change.
type Ledger struct {
	store  repository.Store
	alerts AlertEvaluator
	logger zerolog.Logger
	now    func() time.Time
}

func New(store repository.Store, alerts AlertEvaluator, logger zerolog.Logger) *Ledger {
	return &Ledger{store: store, alerts: alerts, logger: logger, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	if clock != nil {
		l.now = clock
	}
	return l
}

// Receive stores a new batch and adds its quantity to the product's stock.
func (l *Ledger) Receive(ctx context.Context, in ReceiveInput) (*domain.InventoryBatch, error) {
	if err := validator.Validate(in); err != nil {
		return nil, &domain.ValidationError{Field: "receive", Message: err.Error(), Err: err}
	}
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = l.now()
	}

	batch := &domain.InventoryBatch{
		ProductID:  in.ProductID,
		Quantity:   in.Quantity,
		ReceivedAt: in.ReceivedAt,
		SupplierID: in.SupplierID,
		UnitCost:   in.UnitCost,
	}

	err := l.store.WithTx(ctx, func(ctx context.Context, q repository.Queries) error {
		product, err := q.LockProduct(ctx, in.ProductID)
		if err != nil {
			return err
		}
		if err := q.CreateBatch(ctx, batch); err != nil {
			return err
		}
		return q.SetCurrentStock(ctx, product.ID, product.CurrentStock+in.Quantity)
	})
	if err != nil {
		return nil, fmt.Errorf("receive %d units for product %d: %w", in.Quantity, in.ProductID, err)
	}

	l.logger.Info().
		Int64("product_id", batch.ProductID).
		Int64("batch_id", batch.ID).
		Int("quantity", batch.Quantity).
		Msg("batch received")

	if batch.SupplierID != nil {
		if err := l.linkSupplier(ctx, batch); err != nil {
			l.logger.Warn().Err(err).
				Int64("product_id", batch.ProductID).
				Int64("supplier_id", *batch.SupplierID).
				Msg("supplier link update failed")
		}
	}
	l.reevaluate(ctx, batch.ProductID)

	return batch, nil
}

// linkSupplier creates or refreshes the SupplierProduct for a received batch.
// last_supplied_at only moves forward.
func (l *Ledger) linkSupplier(ctx context.Context, batch *domain.InventoryBatch) error {
	return l.store.WithTx(ctx, func(ctx context.Context, q repository.Queries) error {
		link, err := q.GetSupplierProduct(ctx, *batch.SupplierID, batch.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			receivedAt := batch.ReceivedAt
			return q.CreateSupplierProduct(ctx, &domain.SupplierProduct{
				SupplierID:     *batch.SupplierID,
				ProductID:      batch.ProductID,
				CostPrice:      batch.UnitCost,
				LastSuppliedAt: &receivedAt,
				IsPreferred:    true,
			})
		}
		if err != nil {
			return err
		}

		changed := false
		if batch.UnitCost != nil && (link.CostPrice == nil || *link.CostPrice != *batch.UnitCost) {
			cost := *batch.UnitCost
			link.CostPrice = &cost
			changed = true
		}
		if link.LastSuppliedAt == nil || batch.ReceivedAt.After(*link.LastSuppliedAt) {
			receivedAt := batch.ReceivedAt
			link.LastSuppliedAt = &receivedAt
			changed = true
		}
		if !changed {
			return nil
		}
		return q.UpdateSupplierProduct(ctx, link)
	})
}

// draw is the planned reduction of one batch.
type draw struct {
	batchID   int64
	remaining int
	taken     int
}

// planFIFO walks batches oldest first. ok is false when they cannot cover quantity.
func planFIFO(batches []domain.InventoryBatch, quantity int) (draws []draw, ok bool) {
	need := quantity
	for _, b := range batches {
		if need == 0 {
			break
		}
		if b.Quantity <= 0 {
			continue
		}
		take := b.Quantity
		if take > need {
			take = need
		}
		draws = append(draws, draw{batchID: b.ID, remaining: b.Quantity - take, taken: take})
		need -= take
	}
	return draws, need == 0
}

// Deplete removes quantity from the product's batches, oldest first. It returns
// false without changing anything when the batches cannot cover quantity.
func (l *Ledger) Deplete(ctx context.Context, productID int64, quantity int) (bool, error) {
	if quantity < 0 {
		return false, &domain.ValidationError{Field: "quantity", Message: "must not be negative", Err: domain.ErrInvalidQuantity}
	}
	if quantity == 0 {
		return true, nil
	}

	err := l.store.WithTx(ctx, func(ctx context.Context, q repository.Queries) error {
		product, err := q.LockProduct(ctx, productID)
		if err != nil {
			return err
		}
		batches, err := q.ListAvailableBatches(ctx, productID)
		if err != nil {
			return err
		}

		draws, ok := planFIFO(batches, quantity)
		if !ok {
			return domain.ErrInsufficientStock
		}
		for _, d := range draws {
			if err := q.UpdateBatchQuantity(ctx, d.batchID, d.remaining); err != nil {
				return err
			}
		}

		stock := product.CurrentStock - quantity
		if stock < 0 {
			stock = 0
		}
		return q.SetCurrentStock(ctx, productID, stock)
	})
	if errors.Is(err, domain.ErrInsufficientStock) {
		l.logger.Info().Int64("product_id", productID).Int("quantity", quantity).Msg("depletion refused: insufficient stock")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deplete %d units from product %d: %w", quantity, productID, err)
	}

	l.logger.Info().Int64("product_id", productID).Int("quantity", quantity).Msg("stock depleted")
	l.reevaluate(ctx, productID)

	return true, nil
}

func (l *Ledger) reevaluate(ctx context.Context, productID int64) {
	if l.alerts == nil {
		return
	}
	if _, err := l.alerts.Evaluate(ctx, productID); err != nil {
		l.logger.Warn().Err(err).Int64("product_id", productID).Msg("alert evaluation failed")
	}
}
