package domain

import "time"

// PreferredSupplier is the cheapest preferred supplier link for a product.
type PreferredSupplier struct {
	SupplierID       int64    `json:"supplier_id"`
	SupplierName     string   `json:"supplier_name"`
	LeadTimeDays     *int     `json:"lead_time_days"`
	CostPrice        *float64 `json:"cost_price"`
	MinOrderQuantity *int     `json:"min_order_quantity"`
}

// ReorderRecommendation bundles the forecast figures for one product.
type ReorderRecommendation struct {
	ProductID                int64              `json:"product_id"`
	ProductName              string             `json:"product_name"`
	SKU                      string             `json:"sku"`
	CurrentStock             int                `json:"current_stock"`
	ReorderPoint             int                `json:"reorder_point"`
	RecommendedOrderQuantity int                `json:"recommended_order_quantity"`
	SuggestedOrderQuantity   int                `json:"suggested_order_quantity"`
	SafetyStockBasic         int                `json:"safety_stock_basic"`
	SafetyStockAdvanced      int                `json:"safety_stock_advanced"`
	AverageDailyUsage        float64            `json:"average_daily_usage"`
	MaximumDailySales        float64            `json:"maximum_daily_sales"`
	NeedsReorder             bool               `json:"needs_reorder"`
	PreferredSupplier        *PreferredSupplier `json:"preferred_supplier"`
}

// AlertEvaluation is the outcome of evaluating one product in a sweep.
type AlertEvaluation struct {
	ProductID    int64         `json:"product_id"`
	SKU          string        `json:"sku"`
	Status       ReorderStatus `json:"status"`
	CurrentStock int           `json:"current_stock"`
}

// SnapshotPeriod selects the bucket size for snapshot aggregates.
type SnapshotPeriod string

const (
	PeriodMonth SnapshotPeriod = "month"
	PeriodYear  SnapshotPeriod = "year"
)

// SnapshotAggregate summarises stock snapshots for one product over one period.
type SnapshotAggregate struct {
	Period    string  `json:"period"`
	ProductID int64   `json:"product_id"`
	SKU       string  `json:"sku"`
	AvgStock  float64 `json:"avg_stock"`
	MinStock  int     `json:"min_stock"`
	MaxStock  int     `json:"max_stock"`
	Samples   int     `json:"samples"`
}

// SnapshotRun is the result of one snapshot recording pass.
type SnapshotRun struct {
	Date    time.Time `json:"date"`
	Created int       `json:"created"`
}
