// Package memory is an in-process repository.Store used by tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/andresuchdata/eisen-inventory/internal/repository"
)

type state struct {
	nextID    int64
	products  map[int64]domain.Product
	batches   map[int64]domain.InventoryBatch
	suppliers map[int64]domain.Supplier
	links     map[int64]domain.SupplierProduct
	sales     map[int64]domain.ProductDailySales
	alerts    map[int64]domain.StockAlert
	snapshots map[int64]domain.ProductStockSnapshot
}

func newState() *state {
	return &state{
		products:  map[int64]domain.Product{},
		batches:   map[int64]domain.InventoryBatch{},
		suppliers: map[int64]domain.Supplier{},
		links:     map[int64]domain.SupplierProduct{},
		sales:     map[int64]domain.ProductDailySales{},
		alerts:    map[int64]domain.StockAlert{},
		snapshots: map[int64]domain.ProductStockSnapshot{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.nextID = s.nextID
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.batches {
		c.batches[k] = v
	}
	for k, v := range s.suppliers {
		c.suppliers[k] = v
	}
	for k, v := range s.links {
		c.links[k] = v
	}
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.alerts {
		c.alerts[k] = v
	}
	for k, v := range s.snapshots {
		c.snapshots[k] = v
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store keeps everything in maps. Transactions are serialized and roll back by
// restoring a copy of the state taken when they began. Writes made outside
// WithTx while a transaction is open are lost if that transaction fails.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   *state
	now  func() time.Time
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// WithClock overrides the timestamps stamped on created rows.
func (s *Store) WithClock(clock func() time.Time) *Store {
	if clock != nil {
		s.now = clock
	}
	return s
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, q repository.Queries) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	saved := s.st.clone()
	s.mu.Unlock()

	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.st = saved
		s.mu.Unlock()
		return err
	}
	return nil
}

// Products.

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *Store) LockProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.GetProduct(ctx, id)
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.st.products {
		if p.SKU == sku {
			found := p
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.st.products {
		if p.SKU == product.SKU {
			return domain.NewValidationError("sku", "already exists")
		}
	}
	now := s.now()
	product.ID = s.st.id()
	if product.ReorderStatus == "" {
		product.ReorderStatus = domain.StatusOK
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	s.st.products[product.ID] = *product
	return nil
}

func (s *Store) UpdateProductFields(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[product.ID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Name = product.Name
	p.MinimumStockLevel = product.MinimumStockLevel
	p.CurrentStock = product.CurrentStock
	p.UpdatedAt = s.now()
	s.st.products[p.ID] = p
	*product = p
	return nil
}

func (s *Store) SetCurrentStock(_ context.Context, productID int64, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	p.CurrentStock = stock
	p.UpdatedAt = s.now()
	s.st.products[productID] = p
	return nil
}

func (s *Store) SetReorderStatus(_ context.Context, productID int64, status domain.ReorderStatus, changedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	p.ReorderStatus = status
	p.ReorderStatusChangedAt = &changedAt
	s.st.products[productID] = p
	return nil
}

// Batches.

func (s *Store) CreateBatch(_ context.Context, batch *domain.InventoryBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.products[batch.ProductID]; !ok {
		return domain.ErrUnknownProduct
	}
	batch.ID = s.st.id()
	batch.CreatedAt = s.now()
	s.st.batches[batch.ID] = *batch
	return nil
}

func (s *Store) ListAvailableBatches(ctx context.Context, productID int64) ([]domain.InventoryBatch, error) {
	all, err := s.ListBatches(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, b := range all {
		if b.Quantity > 0 {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) ListBatches(_ context.Context, productID int64) ([]domain.InventoryBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.InventoryBatch
	for _, b := range s.st.batches {
		if b.ProductID == productID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.Before(out[j].ReceivedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateBatchQuantity(_ context.Context, batchID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.st.batches[batchID]
	if !ok {
		return domain.ErrNotFound
	}
	b.Quantity = quantity
	s.st.batches[batchID] = b
	return nil
}

// Suppliers.

func (s *Store) GetSupplier(_ context.Context, id int64) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sup, ok := s.st.suppliers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sup, nil
}

func (s *Store) GetSupplierByName(_ context.Context, name string) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sup := range s.st.suppliers {
		if sup.Name == name {
			found := sup
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Supplier, 0, len(s.st.suppliers))
	for _, sup := range s.st.suppliers {
		out = append(out, sup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier *domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sup := range s.st.suppliers {
		if sup.Name == supplier.Name {
			return domain.NewValidationError("name", "already exists")
		}
	}
	now := s.now()
	supplier.ID = s.st.id()
	supplier.CreatedAt = now
	supplier.UpdatedAt = now
	s.st.suppliers[supplier.ID] = *supplier
	return nil
}

func (s *Store) GetSupplierProduct(_ context.Context, supplierID, productID int64) (*domain.SupplierProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.st.links {
		if l.SupplierID == supplierID && l.ProductID == productID {
			found := s.withSupplierName(l)
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListSupplierProducts(_ context.Context, productID int64) ([]domain.SupplierProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SupplierProduct
	for _, l := range s.st.links {
		if l.ProductID == productID {
			out = append(out, s.withSupplierName(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SupplierID < out[j].SupplierID })
	return out, nil
}

func (s *Store) ListSupplierProductsMissingLeadTime(_ context.Context) ([]domain.SupplierProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SupplierProduct
	for _, l := range s.st.links {
		if l.LeadTimeDays == nil {
			out = append(out, s.withSupplierName(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateSupplierProduct(_ context.Context, link *domain.SupplierProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.products[link.ProductID]; !ok {
		return domain.ErrUnknownProduct
	}
	if _, ok := s.st.suppliers[link.SupplierID]; !ok {
		return domain.ErrNotFound
	}
	for _, l := range s.st.links {
		if l.SupplierID == link.SupplierID && l.ProductID == link.ProductID {
			return domain.NewValidationError("supplier_product", "already exists")
		}
	}
	link.ID = s.st.id()
	s.st.links[link.ID] = *link
	*link = s.withSupplierName(*link)
	return nil
}

func (s *Store) UpdateSupplierProduct(_ context.Context, link *domain.SupplierProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.links[link.ID]; !ok {
		return domain.ErrNotFound
	}
	s.st.links[link.ID] = *link
	return nil
}

func (s *Store) withSupplierName(l domain.SupplierProduct) domain.SupplierProduct {
	if sup, ok := s.st.suppliers[l.SupplierID]; ok {
		l.SupplierName = sup.Name
	}
	return l
}

// Sales.

func (s *Store) ListDailySales(_ context.Context, productID int64, from, to time.Time) ([]domain.ProductDailySales, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, to = domain.Date(from), domain.Date(to)
	var out []domain.ProductDailySales
	for _, row := range s.st.sales {
		if row.ProductID != productID {
			continue
		}
		if row.Date.Before(from) || row.Date.After(to) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) CreateDailySalesIfAbsent(_ context.Context, sales *domain.ProductDailySales) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.products[sales.ProductID]; !ok {
		return false, domain.ErrUnknownProduct
	}
	day := domain.Date(sales.Date)
	for _, row := range s.st.sales {
		if row.ProductID == sales.ProductID && row.Date.Equal(day) {
			return false, nil
		}
	}
	sales.ID = s.st.id()
	sales.Date = day
	s.st.sales[sales.ID] = *sales
	return true, nil
}

// Alerts.

func (s *Store) GetAlert(_ context.Context, id int64) (*domain.StockAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.alerts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (s *Store) FindActiveAlert(_ context.Context, productID int64, status domain.ReorderStatus) (*domain.StockAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.st.alerts {
		if a.ProductID == productID && a.Status == status && a.Active {
			found := a
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListAlerts(_ context.Context, filter domain.AlertFilter) ([]domain.StockAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StockAlert
	for _, a := range s.st.alerts {
		if filter.ProductID != nil && a.ProductID != *filter.ProductID {
			continue
		}
		if filter.ActiveOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) CreateAlert(_ context.Context, alert *domain.StockAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.products[alert.ProductID]; !ok {
		return domain.ErrUnknownProduct
	}
	if alert.Active {
		for _, a := range s.st.alerts {
			if a.ProductID == alert.ProductID && a.Status == alert.Status && a.Active {
				return domain.NewValidationError("status", "active alert already exists")
			}
		}
	}
	alert.ID = s.st.id()
	s.st.alerts[alert.ID] = *alert
	return nil
}

func (s *Store) ResolveAlert(_ context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.alerts[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if !a.Active {
		return false, nil
	}
	a.Active = false
	a.ResolvedAt = &at
	s.st.alerts[id] = a
	return true, nil
}

func (s *Store) ResolveActiveAlerts(_ context.Context, productID int64, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, a := range s.st.alerts {
		if a.ProductID != productID || !a.Active {
			continue
		}
		a.Active = false
		resolvedAt := at
		a.ResolvedAt = &resolvedAt
		s.st.alerts[id] = a
		n++
	}
	return n, nil
}

// Snapshots.

func (s *Store) CreateSnapshotIfAbsent(_ context.Context, snapshot *domain.ProductStockSnapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.products[snapshot.ProductID]; !ok {
		return false, domain.ErrUnknownProduct
	}
	day := domain.Date(snapshot.Date)
	for _, snap := range s.st.snapshots {
		if snap.ProductID == snapshot.ProductID && snap.Date.Equal(day) {
			return false, nil
		}
	}
	snapshot.ID = s.st.id()
	snapshot.Date = day
	snapshot.CreatedAt = s.now()
	s.st.snapshots[snapshot.ID] = *snapshot
	return true, nil
}

func (s *Store) ListSnapshots(_ context.Context, filter domain.SnapshotFilter) ([]domain.ProductStockSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ProductStockSnapshot
	for _, snap := range s.st.snapshots {
		if filter.ProductID != nil && snap.ProductID != *filter.ProductID {
			continue
		}
		if !filter.From.IsZero() && snap.Date.Before(domain.Date(filter.From)) {
			continue
		}
		if !filter.To.IsZero() && snap.Date.After(domain.Date(filter.To)) {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

// Maintenance.

func (s *Store) PurgeInventory(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.sales = map[int64]domain.ProductDailySales{}
	s.st.alerts = map[int64]domain.StockAlert{}
	s.st.snapshots = map[int64]domain.ProductStockSnapshot{}
	s.st.batches = map[int64]domain.InventoryBatch{}
	s.st.links = map[int64]domain.SupplierProduct{}
	s.st.products = map[int64]domain.Product{}
	return nil
}
