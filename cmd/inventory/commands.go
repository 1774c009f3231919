package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/alert"
	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/andresuchdata/eisen-inventory/internal/importer"
	"github.com/andresuchdata/eisen-inventory/pkg/logger"
	"github.com/urfave/cli/v2"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printImportResult writes the counts and up to the first rowErrorLimit row errors.
func printImportResult(w io.Writer, result *importer.Result) {
	const rowErrorLimit = 20
	fmt.Fprintf(w, "run %s (%s): created=%d updated=%d skipped=%d failed=%d\n",
		result.RunID, result.Mode, result.Created, result.Updated, result.Skipped, result.Failed)
	for i, rowErr := range result.RowErrors {
		if i == rowErrorLimit {
			fmt.Fprintf(w, "... %d more row errors\n", len(result.RowErrors)-rowErrorLimit)
			break
		}
		fmt.Fprintf(w, "  line %d (%s): %s\n", rowErr.Line, rowErr.SKU, rowErr.Message)
	}
}

func runImport(c *cli.Context) error {
	result, err := fromContext(c).svc.ImportFile(c.Context, c.String("file"), importer.ParseMode(c.String("mode")))
	if err != nil {
		return fmt.Errorf("import %s: %w", c.String("file"), err)
	}
	printImportResult(c.App.Writer, result)
	return nil
}

func runImportObject(c *cli.Context) error {
	result, err := fromContext(c).svc.ImportObject(c.Context, c.String("key"), importer.ParseMode(c.String("mode")))
	if err != nil {
		return fmt.Errorf("import object %s: %w", c.String("key"), err)
	}
	printImportResult(c.App.Writer, result)
	return nil
}

func runImportDrive(c *cli.Context) error {
	svc := fromContext(c).svc
	if c.Bool("list") {
		sheets, err := svc.DriveSheets(c.Context, c.String("folder-id"))
		if err != nil {
			return fmt.Errorf("list drive sheets: %w", err)
		}
		for _, f := range sheets {
			fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", f.ID, f.Format(), f.Name)
		}
		return nil
	}

	fileID := strings.TrimSpace(c.String("file-id"))
	if fileID == "" {
		return errors.New("--file-id is required unless --list is set")
	}
	result, err := svc.ImportDriveFile(c.Context, fileID, importer.ParseMode(c.String("mode")))
	if err != nil {
		return fmt.Errorf("import drive file %s: %w", fileID, err)
	}
	printImportResult(c.App.Writer, result)
	return nil
}

func runExport(c *cli.Context) error {
	out := c.String("out")
	var w io.Writer = c.App.Writer
	if out != "" && out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	if err := fromContext(c).svc.ExportCSV(c.Context, w); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if w != c.App.Writer {
		logger.Log.Info().Str("out", out).Msg("inventory exported")
	}
	return nil
}

func runSnapshot(c *cli.Context) error {
	var date time.Time
	if raw := strings.TrimSpace(c.String("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
		}
		date = parsed
	}

	run, err := fromContext(c).svc.RecordSnapshots(c.Context, date)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Created %d snapshots for %s\n", run.Created, run.Date.Format("2006-01-02"))
	return nil
}

// summaryLine formats an alert sweep as LOW, APPROACHING and OK counts.
func summaryLine(results []domain.AlertEvaluation) string {
	counts := alert.Summarize(results)
	return fmt.Sprintf("Evaluated %d products: LOW=%d APPROACHING=%d OK=%d",
		len(results), counts[domain.StatusLow], counts[domain.StatusApproaching], counts[domain.StatusOK])
}

func runEvaluateAlerts(c *cli.Context) error {
	results, err := fromContext(c).svc.EvaluateAllAlerts(c.Context)
	if err != nil {
		return fmt.Errorf("evaluate alerts: %w", err)
	}
	fmt.Fprintln(c.App.Writer, summaryLine(results))
	return nil
}

func runRecommendations(c *cli.Context) error {
	recs, err := fromContext(c).svc.Recommendations(c.Context)
	if err != nil {
		return fmt.Errorf("recommendations: %w", err)
	}
	if c.Bool("needs-reorder") {
		filtered := make([]domain.ReorderRecommendation, 0, len(recs))
		for _, rec := range recs {
			if rec.NeedsReorder {
				filtered = append(filtered, rec)
			}
		}
		recs = filtered
	}
	return printJSON(c.App.Writer, recs)
}

func runSeedSample(c *cli.Context) error {
	created, err := fromContext(c).svc.SeedSampleProducts(c.Context)
	if err != nil {
		return fmt.Errorf("seed sample products: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Created %d sample products\n", created)
	return nil
}

func runSeedSuppliers(c *cli.Context) error {
	result, err := fromContext(c).svc.SeedSuppliers(c.Context)
	if err != nil {
		return fmt.Errorf("seed suppliers: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Created %d suppliers and %d supplier links\n", result.SuppliersCreated, result.LinksCreated)
	return nil
}

func runSeedSales(c *cli.Context) error {
	result, err := fromContext(c).svc.SeedSalesHistory(c.Context, c.Int("days"))
	if err != nil {
		return fmt.Errorf("seed sales history: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Created %d daily sales rows, filled %d lead times\n", result.SalesRowsCreated, result.LeadTimesFilled)
	return nil
}

func runMigrate(c *cli.Context) error {
	if err := fromContext(c).store.Migrate(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Schema applied")
	return nil
}
