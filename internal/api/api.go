package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/api/handlers"
	"github.com/andresuchdata/eisen-inventory/internal/api/middleware"
	"github.com/andresuchdata/eisen-inventory/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func NewRouter(svc *service.InventoryService, log zerolog.Logger, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if svc == nil {
		return router
	}

	apiGroup := router.Group("/api/v1")

	importHandler := handlers.NewImportHandler(svc)
	importGroup := apiGroup.Group("/imports")
	{
		importGroup.POST("", importHandler.Upload)
		importGroup.POST("/object", importHandler.ImportObject)
		importGroup.GET("/objects", importHandler.ListObjects)
		importGroup.POST("/drive", importHandler.ImportDrive)
		importGroup.GET("/drive/sheets", importHandler.ListDriveSheets)
	}
	apiGroup.GET("/exports/inventory.csv", importHandler.ExportInventory)

	inventoryHandler := handlers.NewInventoryHandler(svc)
	productGroup := apiGroup.Group("/products")
	{
		productGroup.GET("", inventoryHandler.ListProducts)
		productGroup.GET("/:id", inventoryHandler.GetProduct)
		productGroup.GET("/:id/batches", inventoryHandler.ListBatches)
		productGroup.POST("/:id/receive", inventoryHandler.Receive)
		productGroup.POST("/:id/deplete", inventoryHandler.Deplete)
		productGroup.POST("/:id/sales", inventoryHandler.RecordSales)
		productGroup.GET("/:id/recommendation", inventoryHandler.GetRecommendation)
		productGroup.POST("/:id/alerts/evaluate", inventoryHandler.EvaluateProductAlerts)
		productGroup.POST("/:id/alerts/resolve", inventoryHandler.ResolveProductAlerts)
		productGroup.GET("/:id/snapshots", inventoryHandler.SnapshotHistory)
	}
	apiGroup.GET("/recommendations", inventoryHandler.ListRecommendations)

	alertGroup := apiGroup.Group("/alerts")
	{
		alertGroup.GET("", inventoryHandler.ListAlerts)
		alertGroup.POST("/evaluate", inventoryHandler.EvaluateAllAlerts)
		alertGroup.POST("/:id/resolve", inventoryHandler.ResolveAlert)
	}

	snapshotGroup := apiGroup.Group("/snapshots")
	{
		snapshotGroup.POST("", inventoryHandler.RecordSnapshots)
		snapshotGroup.GET("/aggregate", inventoryHandler.AggregateSnapshots)
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
