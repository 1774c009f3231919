// Package app wires the inventory service from configuration for the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/andresuchdata/eisen-inventory/internal/cache"
	"github.com/andresuchdata/eisen-inventory/internal/config"
	"github.com/andresuchdata/eisen-inventory/internal/drive"
	"github.com/andresuchdata/eisen-inventory/internal/repository"
	"github.com/andresuchdata/eisen-inventory/internal/service"
	"github.com/andresuchdata/eisen-inventory/internal/storage"
	"github.com/rs/zerolog"
)

// NewInventoryService connects the optional collaborators cfg enables and
// builds the service on store.
func NewInventoryService(ctx context.Context, cfg *config.Config, store repository.Store, log zerolog.Logger) (*service.InventoryService, error) {
	recCache, err := cache.NewRecommendationCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("recommendation cache: %w", err)
	}

	deps := service.Deps{
		Store:          store,
		Cache:          recCache,
		Logger:         log,
		ImportWorkers:  cfg.App.ImportWorkers,
		ArchiveImports: cfg.App.ImportArchive,
		DriveFolderID:  cfg.Drive.FolderID,
	}

	if cfg.Storage.Enabled {
		client, err := storage.NewMinioClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("object storage: %w", err)
		}
		deps.Storage = client
		log.Info().Str("bucket", cfg.Storage.Bucket).Msg("object storage enabled")
	}

	if cfg.Drive.CredentialsJSON != "" {
		driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			return nil, err
		}
		deps.Drive = driveService
		log.Info().Msg("google drive enabled")
	}

	return service.New(deps), nil
}
