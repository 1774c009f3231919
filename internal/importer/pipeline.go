package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"sort"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/andresuchdata/eisen-inventory/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// AlertEvaluator re-classifies a product once its row has been committed.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, productID int64) (domain.ReorderStatus, error)
}

type RowError struct {
	Line    int    `json:"line"`
	SKU     string `json:"sku"`
	Message string `json:"message"`
}

type Result struct {
	RunID     string     `json:"run_id"`
	Mode      Mode       `json:"mode"`
	Created   int        `json:"created"`
	Updated   int        `json:"updated"`
	Skipped   int        `json:"skipped"`
	Failed    int        `json:"failed"`
	RowErrors []RowError `json:"row_errors"`
}

func (r *Result) merge(o *Result) {
	r.Created += o.Created
	r.Updated += o.Updated
	r.Skipped += o.Skipped
	r.Failed += o.Failed
	r.RowErrors = append(r.RowErrors, o.RowErrors...)
}

// Pipeline upserts spreadsheet rows into products and opening batches.
type Pipeline struct {
	store   repository.Store
	alerts  AlertEvaluator
	logger  zerolog.Logger
	now     func() time.Time
	workers int
}

func NewPipeline(store repository.Store, alerts AlertEvaluator, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:   store,
		alerts:  alerts,
		logger:  logger,
		now:     time.Now,
		workers: 1,
	}
}

// WithClock overrides the clock for deterministic tests.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	if clock != nil {
		p.now = clock
	}
	return p
}

// WithWorkers sets how many SKU shards are processed at once.
func (p *Pipeline) WithWorkers(n int) *Pipeline {
	if n < 1 {
		n = 1
	}
	p.workers = n
	return p
}

// ImportFile detects the format from path's extension.
func (p *Pipeline) ImportFile(ctx context.Context, path string, mode Mode) (*Result, error) {
	format, err := FormatFromName(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()
	return p.Import(ctx, f, format, mode)
}

// Import parses the whole source first. Nothing is written when the source is
// structurally invalid. Row failures are counted and do not stop the run.
func (p *Pipeline) Import(ctx context.Context, src io.Reader, format Format, mode Mode) (*Result, error) {
	if format == FormatXLSX {
		var buf bytes.Buffer
		if err := ConvertXLSXToCSV(src, &buf); err != nil {
			return nil, err
		}
		src = &buf
	}
	rows, err := ParseCSV(src)
	if err != nil {
		return nil, err
	}

	result := &Result{RunID: uuid.NewString(), Mode: mode, RowErrors: []RowError{}}
	log := p.logger.With().Str("run_id", result.RunID).Str("mode", string(mode)).Logger()

	if mode == ModeReplaceAll {
		if err := p.store.WithTx(ctx, func(ctx context.Context, q repository.Queries) error {
			return q.PurgeInventory(ctx)
		}); err != nil {
			return nil, fmt.Errorf("purge inventory: %w", err)
		}
		log.Warn().Msg("inventory purged before import")
	}

	shards := p.shard(rows)
	partials := make([]*Result, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		i, shard := i, shard
		partials[i] = &Result{}
		g.Go(func() error {
			for _, row := range shard {
				if err := gctx.Err(); err != nil {
					return err
				}
				p.importRow(gctx, log, row, partials[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("import interrupted: %w", err)
	}

	for _, partial := range partials {
		result.merge(partial)
	}
	sort.SliceStable(result.RowErrors, func(i, j int) bool {
		return result.RowErrors[i].Line < result.RowErrors[j].Line
	})

	log.Info().
		Int("rows", len(rows)).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("import finished")
	return result, nil
}

// shard keeps every row of a SKU in the same shard, in file order.
func (p *Pipeline) shard(rows []Row) [][]Row {
	if p.workers <= 1 {
		return [][]Row{rows}
	}
	shards := make([][]Row, p.workers)
	for _, row := range rows {
		h := fnv.New32a()
		h.Write([]byte(row.SKU))
		idx := int(h.Sum32() % uint32(p.workers))
		shards[idx] = append(shards[idx], row)
	}
	return shards
}

func (p *Pipeline) importRow(ctx context.Context, log zerolog.Logger, row Row, out *Result) {
	if row.SKU == "" {
		out.Skipped++
		return
	}

	var productID int64
	created := false
	err := p.store.WithTx(ctx, func(ctx context.Context, q repository.Queries) error {
		existing, err := q.GetProductBySKU(ctx, row.SKU)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			product := &domain.Product{
				SKU:                     row.SKU,
				Name:                    row.Name,
				MinimumStockLevel:       row.MinimumStockLevel,
				CurrentStock:            row.Stock,
				ReorderWarningBufferPct: domain.DefaultReorderWarningBufferPct,
				ReorderStatus:           domain.StatusOK,
			}
			if err := q.CreateProduct(ctx, product); err != nil {
				return err
			}
			productID = product.ID
			created = true
		case err != nil:
			return err
		default:
			product, err := q.LockProduct(ctx, existing.ID)
			if err != nil {
				return err
			}
			product.Name = row.Name
			product.MinimumStockLevel = row.MinimumStockLevel
			product.CurrentStock = row.Stock
			if err := q.UpdateProductFields(ctx, product); err != nil {
				return err
			}
			productID = product.ID
		}

		if row.Stock <= 0 {
			return nil
		}
		return q.CreateBatch(ctx, &domain.InventoryBatch{
			ProductID:  productID,
			Quantity:   row.Stock,
			ReceivedAt: p.now(),
		})
	})
	if err != nil {
		out.Failed++
		out.RowErrors = append(out.RowErrors, RowError{Line: row.Line, SKU: row.SKU, Message: err.Error()})
		log.Warn().Err(err).Int("line", row.Line).Str("sku", row.SKU).Msg("import row failed")
		return
	}
	if created {
		out.Created++
	} else {
		out.Updated++
	}

	if p.alerts == nil {
		return
	}
	if _, err := p.alerts.Evaluate(ctx, productID); err != nil {
		out.RowErrors = append(out.RowErrors, RowError{Line: row.Line, SKU: row.SKU, Message: "alert evaluation: " + err.Error()})
		log.Warn().Err(err).Str("sku", row.SKU).Msg("alert evaluation failed after import")
	}
}

// restockLabel is what ExportCSV writes so that a re-import derives the same minimum.
func restockLabel(minimum int) string {
	if minimum >= restockMinimum {
		return "NEEDS RESTOCK"
	}
	return "OK"
}

// ExportCSV writes every product under RequiredHeaders.
func (p *Pipeline) ExportCSV(ctx context.Context, w io.Writer) error {
	products, err := p.store.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	return writeInventoryCSV(w, products)
}
