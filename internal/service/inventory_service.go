package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/alert"
	"github.com/andresuchdata/eisen-inventory/internal/cache"
	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/andresuchdata/eisen-inventory/internal/drive"
	"github.com/andresuchdata/eisen-inventory/internal/forecast"
	"github.com/andresuchdata/eisen-inventory/internal/importer"
	"github.com/andresuchdata/eisen-inventory/internal/ledger"
	"github.com/andresuchdata/eisen-inventory/internal/repository"
	"github.com/andresuchdata/eisen-inventory/internal/sales"
	"github.com/andresuchdata/eisen-inventory/internal/snapshot"
	"github.com/andresuchdata/eisen-inventory/internal/storage"
	"github.com/rs/zerolog"
)

var (
	ErrStorageDisabled = errors.New("object storage is not configured")
	ErrDriveDisabled   = errors.New("google drive is not configured")
)

// DriveSource is the part of drive.Service imports use.
type DriveSource interface {
	ListSheets(ctx context.Context, folderID string) ([]*drive.File, error)
	Open(ctx context.Context, fileID string) (io.ReadCloser, *drive.File, error)
}

// Deps wires the service. Store is required, everything else is optional.
type Deps struct {
	Store          repository.Store
	Cache          cache.RecommendationCache
	Storage        storage.ObjectStorage
	Drive          DriveSource
	Logger         zerolog.Logger
	Clock          func() time.Time
	ImportWorkers  int
	ArchiveImports bool
	DriveFolderID  string
}

// InventoryService is the single entry point the HTTP API, the CLI and the
// background jobs share.
type InventoryService struct {
	store       repository.Store
	cache       cache.RecommendationCache
	storage     storage.ObjectStorage
	drive       DriveSource
	logger      zerolog.Logger
	now         func() time.Time
	archive     bool
	driveFolder string

	alerts    *alert.Evaluator
	ledger    *ledger.Ledger
	history   *sales.History
	seeder    *sales.Seeder
	forecast  *forecast.Calculator
	snapshots *snapshot.Recorder
	importer  *importer.Pipeline
}

func New(deps Deps) *InventoryService {
	if deps.Cache == nil {
		deps.Cache = cache.NewNoopRecommendationCache()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	log := deps.Logger
	clock := deps.Clock

	alerts := alert.NewEvaluator(deps.Store, log.With().Str("component", "alert").Logger()).WithClock(clock)
	l := ledger.New(deps.Store, alerts, log.With().Str("component", "ledger").Logger()).WithClock(clock)
	history := sales.NewHistory(deps.Store).WithClock(clock)

	return &InventoryService{
		store:       deps.Store,
		cache:       deps.Cache,
		storage:     deps.Storage,
		drive:       deps.Drive,
		logger:      log,
		now:         clock,
		archive:     deps.ArchiveImports,
		driveFolder: deps.DriveFolderID,

		alerts:    alerts,
		ledger:    l,
		history:   history,
		seeder:    sales.NewSeeder(deps.Store, l, log.With().Str("component", "seed").Logger()).WithClock(clock),
		forecast:  forecast.NewCalculator(history, deps.Store),
		snapshots: snapshot.NewRecorder(deps.Store, log.With().Str("component", "snapshot").Logger()).WithClock(clock),
		importer: importer.NewPipeline(deps.Store, alerts, log.With().Str("component", "import").Logger()).
			WithClock(clock).
			WithWorkers(deps.ImportWorkers),
	}
}

func (s *InventoryService) invalidate(ctx context.Context, productID int64) {
	if err := s.cache.Invalidate(ctx, productID); err != nil {
		s.logger.Warn().Err(err).Int64("product_id", productID).Msg("recommendation cache invalidate failed")
	}
}

func (s *InventoryService) invalidateAll(ctx context.Context) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("recommendation cache flush failed")
	}
}

// Products.

func (s *InventoryService) Products(ctx context.Context) ([]domain.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *InventoryService) Product(ctx context.Context, productID int64) (*domain.Product, error) {
	return s.store.GetProduct(ctx, productID)
}

// Stock movements.

func (s *InventoryService) Receive(ctx context.Context, in ledger.ReceiveInput) (*domain.InventoryBatch, error) {
	batch, err := s.ledger.Receive(ctx, in)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, batch.ProductID)
	return batch, nil
}

// Deplete returns false without changing stock when the batches cannot cover quantity.
func (s *InventoryService) Deplete(ctx context.Context, productID int64, quantity int) (bool, error) {
	ok, err := s.ledger.Deplete(ctx, productID, quantity)
	if err != nil {
		return false, err
	}
	if ok && quantity > 0 {
		s.invalidate(ctx, productID)
	}
	return ok, nil
}

func (s *InventoryService) Batches(ctx context.Context, productID int64) ([]domain.InventoryBatch, error) {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.ListBatches(ctx, productID)
}

// RecordSales stores one day of usage. Existing days are never overwritten.
func (s *InventoryService) RecordSales(ctx context.Context, productID int64, date time.Time, quantity int) (bool, error) {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return false, err
	}
	if date.IsZero() {
		date = s.now()
	}
	created, err := s.history.Record(ctx, productID, date, quantity)
	if err != nil {
		return false, err
	}
	if created {
		s.invalidate(ctx, productID)
	}
	return created, nil
}

// Imports.

// ImportUpload imports an uploaded file and, when archiving is on, keeps a
// copy in object storage. Archive failures never fail the import.
func (s *InventoryService) ImportUpload(ctx context.Context, name string, r io.Reader, mode importer.Mode) (*importer.Result, error) {
	format, err := importer.FormatFromName(name)
	if err != nil {
		return nil, domain.NewValidationError("file", err.Error())
	}

	var body []byte
	if s.archive && s.storage != nil {
		if body, err = io.ReadAll(r); err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		r = bytes.NewReader(body)
	}

	result, err := s.importer.Import(ctx, r, format, mode)
	if err != nil {
		return nil, err
	}
	s.invalidateAll(ctx)

	if body != nil {
		key := storage.ArchiveKey(s.now(), result.RunID, name)
		if err := s.storage.Upload(ctx, key, bytes.NewReader(body), int64(len(body)), ""); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("import archive upload failed")
		} else {
			s.logger.Info().Str("key", key).Str("run_id", result.RunID).Msg("import source archived")
		}
	}
	return result, nil
}

// ImportFile imports a local file.
func (s *InventoryService) ImportFile(ctx context.Context, path string, mode importer.Mode) (*importer.Result, error) {
	result, err := s.importer.ImportFile(ctx, path, mode)
	if err != nil {
		return nil, err
	}
	s.invalidateAll(ctx)
	return result, nil
}

func (s *InventoryService) ImportObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	return s.storage.ListObjects(ctx, prefix)
}

// ImportObject streams one object from storage into the pipeline.
func (s *InventoryService) ImportObject(ctx context.Context, key string, mode importer.Mode) (*importer.Result, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	format, err := importer.FormatFromName(key)
	if err != nil {
		return nil, domain.NewValidationError("key", err.Error())
	}

	body, err := s.storage.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	result, err := s.importer.Import(ctx, body, format, mode)
	if err != nil {
		return nil, err
	}
	s.invalidateAll(ctx)
	s.logger.Info().Str("key", key).Str("run_id", result.RunID).Msg("object imported")
	return result, nil
}

// DriveSheets lists importable files in folderID, or the configured folder.
func (s *InventoryService) DriveSheets(ctx context.Context, folderID string) ([]*drive.File, error) {
	if s.drive == nil {
		return nil, ErrDriveDisabled
	}
	if folderID == "" {
		folderID = s.driveFolder
	}
	return s.drive.ListSheets(ctx, folderID)
}

func (s *InventoryService) ImportDriveFile(ctx context.Context, fileID string, mode importer.Mode) (*importer.Result, error) {
	if s.drive == nil {
		return nil, ErrDriveDisabled
	}
	body, file, err := s.drive.Open(ctx, fileID)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	format := importer.Format(file.Format())
	if format == "" {
		return nil, domain.NewValidationError("file_id", fmt.Sprintf("unsupported file type %q: expected csv, xlsx or a Google Sheet", file.MimeType))
	}

	result, err := s.importer.Import(ctx, body, format, mode)
	if err != nil {
		return nil, err
	}
	s.invalidateAll(ctx)
	s.logger.Info().Str("file_id", fileID).Str("name", file.Name).Str("run_id", result.RunID).Msg("drive file imported")
	return result, nil
}

func (s *InventoryService) ExportCSV(ctx context.Context, w io.Writer) error {
	return s.importer.ExportCSV(ctx, w)
}

// Recommendations.

func (s *InventoryService) Recommendation(ctx context.Context, productID int64) (*domain.ReorderRecommendation, error) {
	if rec, ok, err := s.cache.Get(ctx, productID); err == nil && ok {
		return rec, nil
	} else if err != nil {
		s.logger.Warn().Err(err).Msg("recommendation cache get failed")
	}

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	rec, err := s.forecast.Recommendation(ctx, product)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, rec); err != nil {
		s.logger.Warn().Err(err).Msg("recommendation cache set failed")
	}
	return rec, nil
}

func (s *InventoryService) Recommendations(ctx context.Context) ([]domain.ReorderRecommendation, error) {
	if recs, ok, err := s.cache.GetAll(ctx); err == nil && ok {
		return recs, nil
	} else if err != nil {
		s.logger.Warn().Err(err).Msg("recommendation cache get all failed")
	}

	recs, err := s.forecast.AllRecommendations(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetAll(ctx, recs); err != nil {
		s.logger.Warn().Err(err).Msg("recommendation cache set all failed")
	}
	return recs, nil
}

// Alerts.

func (s *InventoryService) EvaluateAlerts(ctx context.Context, productID int64) (domain.ReorderStatus, error) {
	return s.alerts.Evaluate(ctx, productID)
}

func (s *InventoryService) EvaluateAllAlerts(ctx context.Context) ([]domain.AlertEvaluation, error) {
	return s.alerts.EvaluateAll(ctx)
}

func (s *InventoryService) ResolveAlert(ctx context.Context, alertID int64) (*domain.StockAlert, error) {
	return s.alerts.Resolve(ctx, alertID)
}

func (s *InventoryService) ResolveProductAlerts(ctx context.Context, productID int64) (int, error) {
	return s.alerts.ResolveProduct(ctx, productID)
}

func (s *InventoryService) Alerts(ctx context.Context, filter domain.AlertFilter) ([]domain.StockAlert, error) {
	return s.alerts.Alerts(ctx, filter)
}

// Snapshots.

func (s *InventoryService) RecordSnapshots(ctx context.Context, date time.Time) (*domain.SnapshotRun, error) {
	return s.snapshots.Record(ctx, date)
}

func (s *InventoryService) AggregateSnapshots(ctx context.Context, filter snapshot.AggregateFilter) ([]domain.SnapshotAggregate, error) {
	return s.snapshots.Aggregate(ctx, filter)
}

func (s *InventoryService) SnapshotHistory(ctx context.Context, productID int64, limit int) ([]domain.ProductStockSnapshot, error) {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.snapshots.History(ctx, productID, limit)
}

// Seeding.

func (s *InventoryService) SeedSampleProducts(ctx context.Context) (int, error) {
	defer s.invalidateAll(ctx)
	return s.seeder.SeedSampleProducts(ctx)
}

func (s *InventoryService) SeedSuppliers(ctx context.Context) (sales.SupplierSeedResult, error) {
	defer s.invalidateAll(ctx)
	return s.seeder.SeedSuppliers(ctx)
}

func (s *InventoryService) SeedSalesHistory(ctx context.Context, days int) (sales.SeedResult, error) {
	defer s.invalidateAll(ctx)
	return s.seeder.SeedSalesHistory(ctx, days)
}
