package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/domain"
)

// ProductRepository reads and writes products. Lookups return domain.ErrNotFound
// when nothing matches.
type ProductRepository interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	// LockProduct reads the product and holds its row lock until the surrounding
	// transaction ends.
	LockProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	UpdateProductFields(ctx context.Context, product *domain.Product) error
	SetCurrentStock(ctx context.Context, productID int64, stock int) error
	SetReorderStatus(ctx context.Context, productID int64, status domain.ReorderStatus, changedAt time.Time) error
}

type BatchRepository interface {
	CreateBatch(ctx context.Context, batch *domain.InventoryBatch) error
	// ListAvailableBatches returns batches with quantity > 0, oldest first.
	ListAvailableBatches(ctx context.Context, productID int64) ([]domain.InventoryBatch, error)
	ListBatches(ctx context.Context, productID int64) ([]domain.InventoryBatch, error)
	UpdateBatchQuantity(ctx context.Context, batchID int64, quantity int) error
}

type SupplierRepository interface {
	GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error)
	GetSupplierByName(ctx context.Context, name string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier *domain.Supplier) error

	GetSupplierProduct(ctx context.Context, supplierID, productID int64) (*domain.SupplierProduct, error)
	ListSupplierProducts(ctx context.Context, productID int64) ([]domain.SupplierProduct, error)
	ListSupplierProductsMissingLeadTime(ctx context.Context) ([]domain.SupplierProduct, error)
	CreateSupplierProduct(ctx context.Context, link *domain.SupplierProduct) error
	UpdateSupplierProduct(ctx context.Context, link *domain.SupplierProduct) error
}

type SalesRepository interface {
	// ListDailySales returns rows with from <= date <= to, ordered by date.
	ListDailySales(ctx context.Context, productID int64, from, to time.Time) ([]domain.ProductDailySales, error)
	// CreateDailySalesIfAbsent never overwrites an existing (product, date) row.
	CreateDailySalesIfAbsent(ctx context.Context, sales *domain.ProductDailySales) (bool, error)
}

type AlertRepository interface {
	GetAlert(ctx context.Context, id int64) (*domain.StockAlert, error)
	FindActiveAlert(ctx context.Context, productID int64, status domain.ReorderStatus) (*domain.StockAlert, error)
	ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.StockAlert, error)
	CreateAlert(ctx context.Context, alert *domain.StockAlert) error
	// ResolveAlert deactivates one alert. It reports false when the alert was
	// already resolved.
	ResolveAlert(ctx context.Context, id int64, at time.Time) (bool, error)
	ResolveActiveAlerts(ctx context.Context, productID int64, at time.Time) (int, error)
}

type SnapshotRepository interface {
	// CreateSnapshotIfAbsent is atomic on (product, date).
	CreateSnapshotIfAbsent(ctx context.Context, snapshot *domain.ProductStockSnapshot) (bool, error)
	ListSnapshots(ctx context.Context, filter domain.SnapshotFilter) ([]domain.ProductStockSnapshot, error)
}

type MaintenanceRepository interface {
	// PurgeInventory removes sales, alerts, snapshots, batches, supplier links
	// and products. Suppliers are kept.
	PurgeInventory(ctx context.Context) error
}

// Queries is everything a unit of work can do.
type Queries interface {
	ProductRepository
	BatchRepository
	SupplierRepository
	SalesRepository
	AlertRepository
	SnapshotRepository
	MaintenanceRepository
}

// Store runs queries directly or inside a transaction. fn's error rolls the
// transaction back.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error
}
