package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/api"
	"github.com/andresuchdata/eisen-inventory/internal/app"
	"github.com/andresuchdata/eisen-inventory/internal/config"
	"github.com/andresuchdata/eisen-inventory/internal/repository/postgres"
	"github.com/andresuchdata/eisen-inventory/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
		logger.UseJSON()
	}
	logger.SetLevel(cfg.App.LogLevel)

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	store := postgres.NewStore(db)
	if err := store.Migrate(context.Background()); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	// Initialize services
	svc, err := app.NewInventoryService(context.Background(), cfg, store, logger.Component("inventory"))
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize inventory service")
	}

	// Initialize HTTP server
	router := api.NewRouter(svc, logger.Component("http"), cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
