package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/alert"
	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/andresuchdata/eisen-inventory/internal/ledger"
	"github.com/andresuchdata/eisen-inventory/internal/service"
	"github.com/andresuchdata/eisen-inventory/internal/snapshot"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type InventoryHandler struct {
	service *service.InventoryService
}

func NewInventoryHandler(service *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// bindOptionalJSON binds the request body into dst. An empty body is allowed.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body")
		return false
	}
	return true
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, domain.NewValidationError("date", "must be YYYY-MM-DD")
	}
	return t, nil
}

// Products.

func (h *InventoryHandler) ListProducts(c *gin.Context) {
	products, err := h.service.Products(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to fetch products")
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *InventoryHandler) GetProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	product, err := h.service.Product(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to fetch product")
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *InventoryHandler) ListBatches(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	batches, err := h.service.Batches(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to fetch batches")
		return
	}
	c.JSON(http.StatusOK, batches)
}

// Receive books a new batch for the product in the path.
func (h *InventoryHandler) Receive(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in ledger.ReceiveInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	in.ProductID = id

	batch, err := h.service.Receive(c.Request.Context(), in)
	if err != nil {
		respondError(c, err, "failed to receive stock")
		return
	}
	c.JSON(http.StatusCreated, batch)
}

type depleteRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// Deplete answers 409 when the batches cannot cover the quantity.
func (h *InventoryHandler) Deplete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req depleteRequest
	if !bindRequest(c, &req) {
		return
	}

	depleted, err := h.service.Deplete(c.Request.Context(), id, *req.Quantity)
	if err != nil {
		respondError(c, err, "failed to deplete stock")
		return
	}
	if !depleted {
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient stock", "depleted": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": id, "quantity": *req.Quantity, "depleted": true})
}

type salesRequest struct {
	Date     string `json:"date"`
	Quantity *int   `json:"quantity" validate:"required"`
}

func (h *InventoryHandler) RecordSales(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req salesRequest
	if !bindRequest(c, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		respondError(c, err, "")
		return
	}

	created, err := h.service.RecordSales(c.Request.Context(), id, date, *req.Quantity)
	if err != nil {
		respondError(c, err, "failed to record sales")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"product_id": id, "created": created})
}

// Recommendations.

func (h *InventoryHandler) GetRecommendation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rec, err := h.service.Recommendation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to compute recommendation")
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *InventoryHandler) ListRecommendations(c *gin.Context) {
	recs, err := h.service.Recommendations(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to compute recommendations")
		return
	}
	if c.Query("needs_reorder") == "true" {
		filtered := recs[:0:0]
		for _, rec := range recs {
			if rec.NeedsReorder {
				filtered = append(filtered, rec)
			}
		}
		recs = filtered
	}
	c.JSON(http.StatusOK, recs)
}

// Alerts.

func (h *InventoryHandler) EvaluateProductAlerts(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	status, err := h.service.EvaluateAlerts(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to evaluate alerts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": id, "status": status, "label": status.Label()})
}

func (h *InventoryHandler) ResolveProductAlerts(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resolved, err := h.service.ResolveProductAlerts(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to resolve alerts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": id, "resolved": resolved})
}

func (h *InventoryHandler) EvaluateAllAlerts(c *gin.Context) {
	results, err := h.service.EvaluateAllAlerts(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to evaluate alerts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "summary": alert.Summarize(results)})
}

func (h *InventoryHandler) ResolveAlert(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resolved, err := h.service.ResolveAlert(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to resolve alert")
		return
	}
	c.JSON(http.StatusOK, resolved)
}

// ListAlerts accepts product_id, active and limit query parameters.
func (h *InventoryHandler) ListAlerts(c *gin.Context) {
	productID, ok := parseOptionalID(c, "product_id")
	if !ok {
		return
	}
	filter := domain.AlertFilter{
		ProductID:  productID,
		ActiveOnly: c.Query("active") == "true",
		Limit:      parsePositiveIntWithDefault(c.Query("limit"), 0),
	}

	alerts, err := h.service.Alerts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "failed to fetch alerts")
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// Snapshots.

type snapshotRequest struct {
	Date string `json:"date"`
}

func (h *InventoryHandler) RecordSnapshots(c *gin.Context) {
	var req snapshotRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		respondError(c, err, "")
		return
	}

	run, err := h.service.RecordSnapshots(c.Request.Context(), date)
	if err != nil {
		respondError(c, err, "failed to record snapshots")
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *InventoryHandler) AggregateSnapshots(c *gin.Context) {
	period, err := snapshot.ParsePeriod(c.Query("period"))
	if err != nil {
		respondError(c, err, "")
		return
	}
	productID, ok := parseOptionalID(c, "product_id")
	if !ok {
		return
	}

	aggregates, err := h.service.AggregateSnapshots(c.Request.Context(), snapshot.AggregateFilter{
		ProductID: productID,
		Period:    period,
	})
	if err != nil {
		respondError(c, err, "failed to aggregate snapshots")
		return
	}
	c.JSON(http.StatusOK, aggregates)
}

func (h *InventoryHandler) SnapshotHistory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	limit := parsePositiveIntWithDefault(c.Query("limit"), 0)

	history, err := h.service.SnapshotHistory(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err, "failed to fetch snapshots")
		return
	}
	c.JSON(http.StatusOK, history)
}
