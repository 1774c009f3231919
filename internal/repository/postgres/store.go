package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/andresuchdata/eisen-inventory/internal/repository"
	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schemaSQL string

// Store is the PostgreSQL implementation of repository.Store.
type Store struct {
	*queries
	db *DB
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *DB) *Store {
	return &Store{queries: &queries{ext: db.DB}, db: db}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, q repository.Queries) error) error {
	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(ctx, &queries{ext: tx})
	})
}

type queries struct {
	ext sqlx.ExtContext
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

const productColumns = `id, sku, name, minimum_stock_level, current_stock, reorder_warning_buffer_pct,
	reorder_status, reorder_status_changed_at, created_at, updated_at`

func (q *queries) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if err := sqlx.GetContext(ctx, q.ext, &p, query, id); err != nil {
		return nil, notFound(err, "product")
	}
	return &p, nil
}

func (q *queries) LockProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, q.ext, &p, query, id); err != nil {
		return nil, notFound(err, "product")
	}
	return &p, nil
}

func (q *queries) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	var p domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE sku = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, q.ext, &p, query, sku); err != nil {
		return nil, notFound(err, "product")
	}
	return &p, nil
}

func (q *queries) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	query := `SELECT ` + productColumns + ` FROM products ORDER BY name, id`
	if err := sqlx.SelectContext(ctx, q.ext, &products, query); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (q *queries) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p.ReorderStatus == "" {
		p.ReorderStatus = domain.StatusOK
	}
	query := `
		INSERT INTO products (sku, name, minimum_stock_level, current_stock, reorder_warning_buffer_pct, reorder_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	row := q.ext.QueryRowxContext(ctx, query,
		p.SKU, p.Name, p.MinimumStockLevel, p.CurrentStock, p.ReorderWarningBufferPct, p.ReorderStatus)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create product %s: %w", p.SKU, err)
	}
	return nil
}

func (q *queries) UpdateProductFields(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, minimum_stock_level = $3, current_stock = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	row := q.ext.QueryRowxContext(ctx, query, p.ID, p.Name, p.MinimumStockLevel, p.CurrentStock)
	if err := row.Scan(&p.UpdatedAt); err != nil {
		return notFound(err, "product")
	}
	return nil
}

func (q *queries) SetCurrentStock(ctx context.Context, productID int64, stock int) error {
	return q.execOne(ctx, "product",
		`UPDATE products SET current_stock = $2, updated_at = NOW() WHERE id = $1`, productID, stock)
}

func (q *queries) SetReorderStatus(ctx context.Context, productID int64, status domain.ReorderStatus, changedAt time.Time) error {
	return q.execOne(ctx, "product",
		`UPDATE products SET reorder_status = $2, reorder_status_changed_at = $3 WHERE id = $1`,
		productID, status, changedAt)
}

func (q *queries) execOne(ctx context.Context, what, query string, args ...any) error {
	res, err := q.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}

// Batches.

const batchColumns = `id, product_id, quantity, received_at, supplier_id, unit_cost, created_at`

func (q *queries) CreateBatch(ctx context.Context, b *domain.InventoryBatch) error {
	query := `
		INSERT INTO inventory_batches (product_id, quantity, received_at, supplier_id, unit_cost)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	row := q.ext.QueryRowxContext(ctx, query, b.ProductID, b.Quantity, b.ReceivedAt, b.SupplierID, b.UnitCost)
	if err := row.Scan(&b.ID, &b.CreatedAt); err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}
	return nil
}

func (q *queries) ListAvailableBatches(ctx context.Context, productID int64) ([]domain.InventoryBatch, error) {
	var batches []domain.InventoryBatch
	query := `
		SELECT ` + batchColumns + `
		FROM inventory_batches
		WHERE product_id = $1 AND quantity > 0
		ORDER BY received_at, id
		FOR UPDATE
	`
	if err := sqlx.SelectContext(ctx, q.ext, &batches, query, productID); err != nil {
		return nil, fmt.Errorf("failed to list available batches: %w", err)
	}
	return batches, nil
}

func (q *queries) ListBatches(ctx context.Context, productID int64) ([]domain.InventoryBatch, error) {
	var batches []domain.InventoryBatch
	query := `SELECT ` + batchColumns + ` FROM inventory_batches WHERE product_id = $1 ORDER BY received_at, id`
	if err := sqlx.SelectContext(ctx, q.ext, &batches, query, productID); err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, nil
}

func (q *queries) UpdateBatchQuantity(ctx context.Context, batchID int64, quantity int) error {
	return q.execOne(ctx, "batch", `UPDATE inventory_batches SET quantity = $2 WHERE id = $1`, batchID, quantity)
}

// Suppliers.

const supplierColumns = `id, name, contact_name, email, phone, address, notes, is_active, created_at, updated_at`

func (q *queries) GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error) {
	var s domain.Supplier
	if err := sqlx.GetContext(ctx, q.ext, &s, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "supplier")
	}
	return &s, nil
}

func (q *queries) GetSupplierByName(ctx context.Context, name string) (*domain.Supplier, error) {
	var s domain.Supplier
	if err := sqlx.GetContext(ctx, q.ext, &s, `SELECT `+supplierColumns+` FROM suppliers WHERE name = $1`, name); err != nil {
		return nil, notFound(err, "supplier")
	}
	return &s, nil
}

func (q *queries) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	var suppliers []domain.Supplier
	if err := sqlx.SelectContext(ctx, q.ext, &suppliers, `SELECT `+supplierColumns+` FROM suppliers ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	return suppliers, nil
}

func (q *queries) CreateSupplier(ctx context.Context, s *domain.Supplier) error {
	query := `
		INSERT INTO suppliers (name, contact_name, email, phone, address, notes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	row := q.ext.QueryRowxContext(ctx, query, s.Name, s.ContactName, s.Email, s.Phone, s.Address, s.Notes, s.IsActive)
	if err := row.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create supplier %s: %w", s.Name, err)
	}
	return nil
}

const supplierProductSelect = `
	SELECT sp.id, sp.supplier_id, s.name AS supplier_name, sp.product_id, sp.cost_price,
		sp.lead_time_days, sp.min_order_quantity, sp.is_preferred, sp.last_supplied_at, sp.notes
	FROM supplier_products sp
	JOIN suppliers s ON s.id = sp.supplier_id
`

func (q *queries) GetSupplierProduct(ctx context.Context, supplierID, productID int64) (*domain.SupplierProduct, error) {
	var link domain.SupplierProduct
	query := supplierProductSelect + ` WHERE sp.supplier_id = $1 AND sp.product_id = $2 FOR UPDATE OF sp`
	if err := sqlx.GetContext(ctx, q.ext, &link, query, supplierID, productID); err != nil {
		return nil, notFound(err, "supplier product")
	}
	return &link, nil
}

func (q *queries) ListSupplierProducts(ctx context.Context, productID int64) ([]domain.SupplierProduct, error) {
	var links []domain.SupplierProduct
	query := supplierProductSelect + ` WHERE sp.product_id = $1 ORDER BY sp.supplier_id`
	if err := sqlx.SelectContext(ctx, q.ext, &links, query, productID); err != nil {
		return nil, fmt.Errorf("failed to list supplier products: %w", err)
	}
	return links, nil
}

func (q *queries) ListSupplierProductsMissingLeadTime(ctx context.Context) ([]domain.SupplierProduct, error) {
	var links []domain.SupplierProduct
	query := supplierProductSelect + ` WHERE sp.lead_time_days IS NULL ORDER BY sp.id`
	if err := sqlx.SelectContext(ctx, q.ext, &links, query); err != nil {
		return nil, fmt.Errorf("failed to list supplier products: %w", err)
	}
	return links, nil
}

func (q *queries) CreateSupplierProduct(ctx context.Context, link *domain.SupplierProduct) error {
	query := `
		INSERT INTO supplier_products
			(supplier_id, product_id, cost_price, lead_time_days, min_order_quantity, is_preferred, last_supplied_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	row := q.ext.QueryRowxContext(ctx, query, link.SupplierID, link.ProductID, link.CostPrice, link.LeadTimeDays,
		link.MinOrderQuantity, link.IsPreferred, link.LastSuppliedAt, link.Notes)
	if err := row.Scan(&link.ID); err != nil {
		return fmt.Errorf("failed to create supplier product: %w", err)
	}
	return nil
}

func (q *queries) UpdateSupplierProduct(ctx context.Context, link *domain.SupplierProduct) error {
	return q.execOne(ctx, "supplier product", `
		UPDATE supplier_products
		SET cost_price = $2, lead_time_days = $3, min_order_quantity = $4, is_preferred = $5,
			last_supplied_at = $6, notes = $7
		WHERE id = $1
	`, link.ID, link.CostPrice, link.LeadTimeDays, link.MinOrderQuantity, link.IsPreferred, link.LastSuppliedAt, link.Notes)
}

// Sales.

func (q *queries) ListDailySales(ctx context.Context, productID int64, from, to time.Time) ([]domain.ProductDailySales, error) {
	var rows []domain.ProductDailySales
	query := `
		SELECT id, product_id, date, quantity
		FROM product_daily_sales
		WHERE product_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`
	if err := sqlx.SelectContext(ctx, q.ext, &rows, query, productID, dateOnly(from), dateOnly(to)); err != nil {
		return nil, fmt.Errorf("failed to list daily sales: %w", err)
	}
	return rows, nil
}

func (q *queries) CreateDailySalesIfAbsent(ctx context.Context, s *domain.ProductDailySales) (bool, error) {
	query := `
		INSERT INTO product_daily_sales (product_id, date, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, date) DO NOTHING
		RETURNING id
	`
	return q.insertIfAbsent(ctx, "daily sales", &s.ID, query, s.ProductID, dateOnly(s.Date), s.Quantity)
}

func (q *queries) insertIfAbsent(ctx context.Context, what string, id *int64, query string, args ...any) (bool, error) {
	err := q.ext.QueryRowxContext(ctx, query, args...).Scan(id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert %s: %w", what, err)
	}
	return true, nil
}

// Alerts.

const alertColumns = `id, product_id, status, active, created_at, resolved_at, current_stock_at_trigger,
	minimum_stock_level, message`

func (q *queries) GetAlert(ctx context.Context, id int64) (*domain.StockAlert, error) {
	var a domain.StockAlert
	if err := sqlx.GetContext(ctx, q.ext, &a, `SELECT `+alertColumns+` FROM stock_alerts WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "alert")
	}
	return &a, nil
}

func (q *queries) FindActiveAlert(ctx context.Context, productID int64, status domain.ReorderStatus) (*domain.StockAlert, error) {
	var a domain.StockAlert
	query := `SELECT ` + alertColumns + ` FROM stock_alerts WHERE product_id = $1 AND status = $2 AND active`
	if err := sqlx.GetContext(ctx, q.ext, &a, query, productID, status); err != nil {
		return nil, notFound(err, "alert")
	}
	return &a, nil
}

func (q *queries) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.StockAlert, error) {
	var (
		where []string
		args  []any
	)
	if filter.ProductID != nil {
		args = append(args, *filter.ProductID)
		where = append(where, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if filter.ActiveOnly {
		where = append(where, "active")
	}

	query := `SELECT ` + alertColumns + ` FROM stock_alerts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var alerts []domain.StockAlert
	if err := sqlx.SelectContext(ctx, q.ext, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

func (q *queries) CreateAlert(ctx context.Context, a *domain.StockAlert) error {
	query := `
		INSERT INTO stock_alerts
			(product_id, status, active, created_at, current_stock_at_trigger, minimum_stock_level, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	row := q.ext.QueryRowxContext(ctx, query, a.ProductID, a.Status, a.Active, a.CreatedAt,
		a.CurrentStockAtTrigger, a.MinimumStockLevel, a.Message)
	if err := row.Scan(&a.ID); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (q *queries) ResolveAlert(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := q.ext.ExecContext(ctx,
		`UPDATE stock_alerts SET active = FALSE, resolved_at = $2 WHERE id = $1 AND active`, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to resolve alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to resolve alert: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	if _, err := q.GetAlert(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (q *queries) ResolveActiveAlerts(ctx context.Context, productID int64, at time.Time) (int, error) {
	res, err := q.ext.ExecContext(ctx,
		`UPDATE stock_alerts SET active = FALSE, resolved_at = $2 WHERE product_id = $1 AND active`, productID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve alerts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to resolve alerts: %w", err)
	}
	return int(n), nil
}

// Snapshots.

func (q *queries) CreateSnapshotIfAbsent(ctx context.Context, s *domain.ProductStockSnapshot) (bool, error) {
	query := `
		INSERT INTO product_stock_snapshots (product_id, date, stock_level)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, date) DO NOTHING
		RETURNING id
	`
	return q.insertIfAbsent(ctx, "snapshot", &s.ID, query, s.ProductID, dateOnly(s.Date), s.StockLevel)
}

func (q *queries) ListSnapshots(ctx context.Context, filter domain.SnapshotFilter) ([]domain.ProductStockSnapshot, error) {
	var (
		where []string
		args  []any
	)
	if filter.ProductID != nil {
		args = append(args, *filter.ProductID)
		where = append(where, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, dateOnly(filter.From))
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, dateOnly(filter.To))
		where = append(where, fmt.Sprintf("date <= $%d", len(args)))
	}

	query := `SELECT id, product_id, date, stock_level, created_at FROM product_stock_snapshots`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, product_id"

	var snapshots []domain.ProductStockSnapshot
	if err := sqlx.SelectContext(ctx, q.ext, &snapshots, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snapshots, nil
}

// Maintenance.

func (q *queries) PurgeInventory(ctx context.Context) error {
	statements := []string{
		`DELETE FROM product_daily_sales`,
		`DELETE FROM stock_alerts`,
		`DELETE FROM product_stock_snapshots`,
		`DELETE FROM inventory_batches`,
		`DELETE FROM supplier_products`,
		`DELETE FROM products`,
	}
	for _, stmt := range statements {
		if _, err := q.ext.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to purge inventory (%s): %w", stmt, err)
		}
	}
	return nil
}

func dateOnly(t time.Time) string {
	return t.Format("2006-01-02")
}
