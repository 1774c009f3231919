package main

import (
	"context"
	"fmt"
	"os"

	"github.com/andresuchdata/eisen-inventory/internal/app"
	"github.com/andresuchdata/eisen-inventory/internal/config"
	"github.com/andresuchdata/eisen-inventory/internal/repository/postgres"
	"github.com/andresuchdata/eisen-inventory/internal/sales"
	"github.com/andresuchdata/eisen-inventory/internal/service"
	"github.com/andresuchdata/eisen-inventory/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

type envKey struct{}

// env is what initDB leaves on the command context.
type env struct {
	db    *postgres.DB
	store *postgres.Store
	svc   *service.InventoryService
}

func fromContext(c *cli.Context) *env {
	e, _ := c.Context.Value(envKey{}).(*env)
	return e
}

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func modeFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "mode",
		Usage: "append or replace_all",
		Value: "append",
	}
}

func initDB(c *cli.Context) error {
	cfg := config.Load()
	dbURL := c.String("db-url")
	if dbURL == "" {
		dbURL = cfg.Database.DSN()
	}

	db, err := postgres.Open("pgx", dbURL, cfg.Database.MaxConcurrentTx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if workers := c.Int("workers"); workers > 0 {
		cfg.App.ImportWorkers = workers
	}

	store := postgres.NewStore(db)
	svc, err := app.NewInventoryService(c.Context, cfg, store, logger.Component("inventory"))
	if err != nil {
		_ = db.Close()
		return err
	}

	c.Context = context.WithValue(c.Context, envKey{}, &env{db: db, store: store, svc: svc})
	return nil
}

func closeDB(c *cli.Context) error {
	if e := fromContext(c); e != nil && e.db != nil {
		return e.db.Close()
	}
	return nil
}

// withDB opens the database before cmd runs and closes it afterwards. A
// command with subcommands hands this to each subcommand instead.
func withDB(cmd *cli.Command) *cli.Command {
	if len(cmd.Subcommands) > 0 {
		for _, sub := range cmd.Subcommands {
			withDB(sub)
		}
		return cmd
	}
	cmd.Before = initDB
	cmd.After = closeDB
	return cmd
}

func main() {
	// stdout carries command output.
	logger.Log = logger.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	if level := os.Getenv("APP_LOG_LEVEL"); level != "" {
		logger.SetLevel(level)
	}

	cliApp := &cli.App{
		Name:  "inventory",
		Usage: "Manage inventory imports, snapshots, alerts and seed data",
		Flags: []cli.Flag{
			newDBURLFlag(),
		},
		Commands: []*cli.Command{
			withDB(&cli.Command{
				Name:  "import",
				Usage: "Import a local CSV or XLSX stock sheet",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "Path to the .csv or .xlsx file", Required: true},
					modeFlag(),
					&cli.IntFlag{Name: "workers", Usage: "Parallel import workers (0 uses IMPORT_WORKERS)"},
				},
				Action: runImport,
			}),
			withDB(&cli.Command{
				Name:  "import-object",
				Usage: "Import a stock sheet from object storage",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key", Usage: "Object key", Required: true},
					modeFlag(),
				},
				Action: runImportObject,
			}),
			withDB(&cli.Command{
				Name:  "import-drive",
				Usage: "Import a stock sheet from Google Drive, or list the folder with --list",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file-id", Usage: "Drive file id"},
					&cli.StringFlag{Name: "folder-id", Usage: "Folder to list (defaults to GOOGLE_DRIVE_FOLDER_ID)"},
					&cli.BoolFlag{Name: "list", Usage: "List importable files instead of importing"},
					modeFlag(),
				},
				Action: runImportDrive,
			}),
			withDB(&cli.Command{
				Name:  "export",
				Usage: "Export every product in the import CSV layout",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Usage: "Output file, - for stdout", Value: "-"},
				},
				Action: runExport,
			}),
			withDB(&cli.Command{
				Name:  "snapshot",
				Usage: "Record one stock snapshot per product",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Usage: "Day to record as YYYY-MM-DD (defaults to today)"},
				},
				Action: runSnapshot,
			}),
			withDB(&cli.Command{
				Name:   "evaluate-alerts",
				Usage:  "Re-evaluate the alert state of every product",
				Action: runEvaluateAlerts,
			}),
			withDB(&cli.Command{
				Name:  "recommendations",
				Usage: "Print reorder recommendations as JSON",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "needs-reorder", Usage: "Only products at or below their reorder point"},
				},
				Action: runRecommendations,
			}),
			withDB(&cli.Command{
				Name:  "seed",
				Usage: "Seed sample data",
				Subcommands: []*cli.Command{
					{
						Name:   "sample",
						Usage:  "Create the ten sample products",
						Action: runSeedSample,
					},
					{
						Name:   "suppliers",
						Usage:  "Create sample suppliers and link them to products",
						Action: runSeedSuppliers,
					},
					{
						Name:  "sales",
						Usage: "Generate random daily sales history",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "days", Usage: "Days of history", Value: sales.DefaultSeedDays},
						},
						Action: runSeedSales,
					},
				},
			}),
			withDB(&cli.Command{
				Name:   "migrate",
				Usage:  "Apply the database schema",
				Action: runMigrate,
			}),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("command failed")
	}
}
