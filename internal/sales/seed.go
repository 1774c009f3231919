package sales

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/andresuchdata/eisen-inventory/internal/ledger"
	"github.com/andresuchdata/eisen-inventory/internal/repository"
	"github.com/rs/zerolog"
)

const DefaultSeedDays = 120

var seedLeadTimes = []int{3, 5, 7, 10, 14}

// Receiver books opening stock so seeded products keep stock equal to their batches.
type Receiver interface {
	Receive(ctx context.Context, in ledger.ReceiveInput) (*domain.InventoryBatch, error)
}

type SeedResult struct {
	SalesRowsCreated int `json:"sales_rows_created"`
	LeadTimesFilled  int `json:"lead_times_filled"`
}

type SupplierSeedResult struct {
	SuppliersCreated int `json:"suppliers_created"`
	LinksCreated     int `json:"links_created"`
}

// Seeder fills demo and test data. It only ever adds rows that are missing.
type Seeder struct {
	store    repository.Store
	receiver Receiver
	logger   zerolog.Logger
	rng      *rand.Rand
	now      func() time.Time
}

func NewSeeder(store repository.Store, receiver Receiver, logger zerolog.Logger) *Seeder {
	return &Seeder{
		store:    store,
		receiver: receiver,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// WithRand makes the generated history reproducible.
func (s *Seeder) WithRand(rng *rand.Rand) *Seeder {
	if rng != nil {
		s.rng = rng
	}
	return s
}

// WithClock overrides the clock for deterministic tests.
func (s *Seeder) WithClock(clock func() time.Time) *Seeder {
	if clock != nil {
		s.now = clock
	}
	return s
}

// SeedSalesHistory generates noisy daily demand with occasional spikes for the
// last days days. Existing rows are kept as they are. Supplier links without a
// lead time get one.
func (s *Seeder) SeedSalesHistory(ctx context.Context, days int) (SeedResult, error) {
	var result SeedResult
	if days <= 0 {
		days = DefaultSeedDays
	}

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return result, fmt.Errorf("list products: %w", err)
	}
	if len(products) == 0 {
		s.logger.Warn().Msg("no products present, nothing to seed")
		return result, nil
	}

	today := domain.Date(s.now())
	for _, p := range products {
		base := 2 + s.rng.Intn(7)
		for i := 0; i < days; i++ {
			qty := int(math.Max(0, s.rng.NormFloat64()*float64(base)*0.3+float64(base)))
			if s.rng.Float64() < 0.05 {
				qty += base * 3
			}
			created, err := s.store.CreateDailySalesIfAbsent(ctx, &domain.ProductDailySales{
				ProductID: p.ID,
				Date:      today.AddDate(0, 0, -i),
				Quantity:  qty,
			})
			if err != nil {
				return result, fmt.Errorf("seed sales for %s: %w", p.SKU, err)
			}
			if created {
				result.SalesRowsCreated++
			}
		}
	}

	links, err := s.store.ListSupplierProductsMissingLeadTime(ctx)
	if err != nil {
		return result, fmt.Errorf("list supplier products: %w", err)
	}
	for _, link := range links {
		lead := seedLeadTimes[s.rng.Intn(len(seedLeadTimes))]
		link.LeadTimeDays = &lead
		if err := s.store.UpdateSupplierProduct(ctx, &link); err != nil {
			return result, fmt.Errorf("fill lead time: %w", err)
		}
		result.LeadTimesFilled++
	}

	s.logger.Info().
		Int("sales_rows_created", result.SalesRowsCreated).
		Int("lead_times_filled", result.LeadTimesFilled).
		Msg("sales history seeded")
	return result, nil
}

var seedSuppliers = []domain.Supplier{
	{Name: "Acme Metals", ContactName: "John Carter", Email: "sales@acmemetals.example", Phone: "+1-555-1000", Notes: "Primary steel supplier", IsActive: true},
	{Name: "Global Plastics Co", ContactName: "Maria Diaz", Email: "orders@globalplastics.example", Phone: "+1-555-2000", Notes: "ABS and Polycarbonate", IsActive: true},
	{Name: "Timber Traders", ContactName: "Liu Wei", Email: "support@timbertraders.example", Phone: "+1-555-3000", Notes: "Seasonal variations in lead time", IsActive: true},
}

const seedLinkedProducts = 5

// SeedSuppliers ensures the demo suppliers exist and links every supplier to
// the first few products. Existing links are left alone.
func (s *Seeder) SeedSuppliers(ctx context.Context) (SupplierSeedResult, error) {
	var result SupplierSeedResult

	err := s.store.WithTx(ctx, func(ctx context.Context, q repository.Queries) error {
		for _, tmpl := range seedSuppliers {
			_, err := q.GetSupplierByName(ctx, tmpl.Name)
			if err == nil {
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			supplier := tmpl
			if err := q.CreateSupplier(ctx, &supplier); err != nil {
				return err
			}
			result.SuppliersCreated++
		}

		products, err := q.ListProducts(ctx)
		if err != nil {
			return err
		}
		if len(products) > seedLinkedProducts {
			products = products[:seedLinkedProducts]
		}
		suppliers, err := q.ListSuppliers(ctx)
		if err != nil {
			return err
		}

		now := s.now()
		for _, supplier := range suppliers {
			for _, p := range products {
				_, err := q.GetSupplierProduct(ctx, supplier.ID, p.ID)
				if err == nil {
					continue
				}
				if !errors.Is(err, domain.ErrNotFound) {
					return err
				}
				cost, lead, moq := 10.0, 7, 10
				lastSupplied := now
				link := &domain.SupplierProduct{
					SupplierID:       supplier.ID,
					ProductID:        p.ID,
					CostPrice:        &cost,
					LeadTimeDays:     &lead,
					MinOrderQuantity: &moq,
					LastSuppliedAt:   &lastSupplied,
					IsPreferred:      true,
					Notes:            "Seed data",
				}
				if err := q.CreateSupplierProduct(ctx, link); err != nil {
					return err
				}
				result.LinksCreated++
			}
		}
		return nil
	})
	if err != nil {
		return SupplierSeedResult{}, fmt.Errorf("seed suppliers: %w", err)
	}

	s.logger.Info().
		Int("suppliers_created", result.SuppliersCreated).
		Int("links_created", result.LinksCreated).
		Msg("suppliers seeded")
	return result, nil
}

type sampleProduct struct {
	sku     string
	name    string
	stock   int
	minimum int
}

var sampleProducts = []sampleProduct{
	{"PROD-001", `Steel Pipes 2"`, 150, 50},
	{"PROD-002", "Copper Wire Spool", 45, 100},
	{"PROD-003", "Aluminum Sheets", 200, 80},
	{"PROD-004", "Brass Fittings Set", 30, 150},
	{"PROD-005", "Stainless Bolts M10", 500, 200},
	{"PROD-006", `PVC Pipes 1"`, 20, 120},
	{"PROD-007", "Rubber Gaskets", 80, 250},
	{"PROD-008", "Metal Brackets", 110, 90},
	{"PROD-009", "Welding Rods", 180, 60},
	{"PROD-010", "Paint Thinner 5L", 65, 40},
}

// SeedSampleProducts creates the demo catalogue. Opening stock is booked as a
// batch through the ledger, which also evaluates alerts.
func (s *Seeder) SeedSampleProducts(ctx context.Context) (int, error) {
	created := 0
	for _, sample := range sampleProducts {
		_, err := s.store.GetProductBySKU(ctx, sample.sku)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return created, fmt.Errorf("lookup %s: %w", sample.sku, err)
		}

		p := &domain.Product{
			SKU:                     sample.sku,
			Name:                    sample.name,
			MinimumStockLevel:       sample.minimum,
			ReorderWarningBufferPct: domain.DefaultReorderWarningBufferPct,
			ReorderStatus:           domain.StatusOK,
		}
		if err := s.store.WithTx(ctx, func(ctx context.Context, q repository.Queries) error {
			return q.CreateProduct(ctx, p)
		}); err != nil {
			return created, fmt.Errorf("create %s: %w", sample.sku, err)
		}
		created++

		if _, err := s.receiver.Receive(ctx, ledger.ReceiveInput{ProductID: p.ID, Quantity: sample.stock}); err != nil {
			return created, fmt.Errorf("opening stock for %s: %w", sample.sku, err)
		}
	}

	s.logger.Info().Int("created", created).Msg("sample products seeded")
	return created, nil
}
