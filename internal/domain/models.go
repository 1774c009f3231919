package domain

import "time"

// Product is the aggregate root for batches, sales history, alerts and snapshots.
type Product struct {
	ID                      int64         `json:"id" db:"id"`
	SKU                     string        `json:"sku" db:"sku"`
	Name                    string        `json:"name" db:"name"`
	MinimumStockLevel       int           `json:"minimum_stock_level" db:"minimum_stock_level"`
	CurrentStock            int           `json:"current_stock" db:"current_stock"`
	ReorderWarningBufferPct int           `json:"reorder_warning_buffer_pct" db:"reorder_warning_buffer_pct"`
	ReorderStatus           ReorderStatus `json:"reorder_status" db:"reorder_status"`
	ReorderStatusChangedAt  *time.Time    `json:"reorder_status_changed_at,omitempty" db:"reorder_status_changed_at"`
	CreatedAt               time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time     `json:"updated_at" db:"updated_at"`
}

// DefaultReorderWarningBufferPct is applied to products created without an explicit buffer.
const DefaultReorderWarningBufferPct = 20

// InventoryBatch is a discrete stock receipt. Quantity only ever goes down after creation.
type InventoryBatch struct {
	ID         int64     `json:"id" db:"id"`
	ProductID  int64     `json:"product_id" db:"product_id"`
	Quantity   int       `json:"quantity" db:"quantity"`
	ReceivedAt time.Time `json:"received_at" db:"received_at"`
	SupplierID *int64    `json:"supplier_id,omitempty" db:"supplier_id"`
	UnitCost   *float64  `json:"unit_cost,omitempty" db:"unit_cost"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type Supplier struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	ContactName string    `json:"contact_name" db:"contact_name"`
	Email       string    `json:"email" db:"email"`
	Phone       string    `json:"phone" db:"phone"`
	Address     string    `json:"address" db:"address"`
	Notes       string    `json:"notes" db:"notes"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// SupplierProduct carries the commercial terms between one supplier and one product.
type SupplierProduct struct {
	ID               int64      `json:"id" db:"id"`
	SupplierID       int64      `json:"supplier_id" db:"supplier_id"`
	SupplierName     string     `json:"supplier_name" db:"supplier_name"`
	ProductID        int64      `json:"product_id" db:"product_id"`
	CostPrice        *float64   `json:"cost_price,omitempty" db:"cost_price"`
	LeadTimeDays     *int       `json:"lead_time_days,omitempty" db:"lead_time_days"`
	MinOrderQuantity *int       `json:"min_order_quantity,omitempty" db:"min_order_quantity"`
	IsPreferred      bool       `json:"is_preferred" db:"is_preferred"`
	LastSuppliedAt   *time.Time `json:"last_supplied_at,omitempty" db:"last_supplied_at"`
	Notes            string     `json:"notes" db:"notes"`
}

// ProductDailySales is the units consumed for one product on one calendar day.
type ProductDailySales struct {
	ID        int64     `json:"id" db:"id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	Date      time.Time `json:"date" db:"date"`
	Quantity  int       `json:"quantity" db:"quantity"`
}

type StockAlert struct {
	ID                    int64         `json:"id" db:"id"`
	ProductID             int64         `json:"product_id" db:"product_id"`
	Status                ReorderStatus `json:"status" db:"status"`
	Active                bool          `json:"active" db:"active"`
	CreatedAt             time.Time     `json:"created_at" db:"created_at"`
	ResolvedAt            *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	CurrentStockAtTrigger int           `json:"current_stock_at_trigger" db:"current_stock_at_trigger"`
	MinimumStockLevel     int           `json:"minimum_stock_level" db:"minimum_stock_level"`
	Message               string        `json:"message" db:"message"`
}

// ProductStockSnapshot is written once per (product, date).
type ProductStockSnapshot struct {
	ID         int64     `json:"id" db:"id"`
	ProductID  int64     `json:"product_id" db:"product_id"`
	Date       time.Time `json:"date" db:"date"`
	StockLevel int       `json:"stock_level" db:"stock_level"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	ProductID  *int64
	ActiveOnly bool
	Limit      int
}

// SnapshotFilter narrows snapshot listings.
type SnapshotFilter struct {
	ProductID *int64
	From      time.Time
	To        time.Time
}

// Date truncates t to its calendar day in t's location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
