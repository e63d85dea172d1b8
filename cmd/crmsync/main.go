package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/tuushin/crmsync/backend-go/internal/cache"
	"github.com/tuushin/crmsync/backend-go/internal/config"
	"github.com/tuushin/crmsync/backend-go/internal/crm"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
	"github.com/tuushin/crmsync/backend-go/internal/pipeline"
	"github.com/tuushin/crmsync/backend-go/internal/repository/postgres"
	"github.com/tuushin/crmsync/backend-go/internal/service"
	"github.com/tuushin/crmsync/backend-go/internal/storage"
	"github.com/tuushin/crmsync/backend-go/pkg/logger"
	"github.com/urfave/cli/v2"
)

type dbKey struct{}

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func initDB(c *cli.Context) error {
	cfg := config.Load()
	dsn := c.String("db-url")
	if dsn == "" {
		dsn = postgres.DSN(&cfg.Database)
	}

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(c.Context); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	c.Context = context.WithValue(c.Context, dbKey{}, postgres.Wrap(db))
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey{}).(*postgres.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func dbFrom(c *cli.Context) *postgres.DB {
	db, _ := c.Context.Value(dbKey{}).(*postgres.DB)
	return db
}

func main() {
	cfg := config.Load()
	logger.Setup(logger.Options{
		Level:   cfg.Log.Level,
		Mode:    cfg.Server.Mode,
		Format:  cfg.Log.Format,
		Service: "crmsync-cli",
	})

	app := &cli.App{
		Name:  "crmsync",
		Usage: "Sync CRM shipments and manage the shipment store",
		Flags: []cli.Flag{
			newDBURLFlag(),
		},
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Fetch shipments from the CRM and upsert them",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "IMPORT, TRANSIT, EXPORT or ALL",
						Value: string(domain.CategoryAll),
					},
					&cli.StringFlag{
						Name:  "from",
						Usage: "Begin date (YYYY-MM-DD), defaults to the trailing window",
					},
					&cli.StringFlag{
						Name:  "to",
						Usage: "End date (YYYY-MM-DD), defaults to today",
					},
					&cli.StringFlag{
						Name:  "filter-types",
						Usage: "Comma-separated upstream filter types",
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runSync,
			},
			{
				Name:  "logs",
				Usage: "Print recent sync runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runLogs,
			},
			{
				Name:      "migrate",
				Usage:     "Apply or roll back schema migrations",
				ArgsUsage: "up|down",
				Before:    initDB,
				After:     closeDB,
				Action: func(c *cli.Context) error {
					direction := strings.ToLower(c.Args().First())
					if direction == "" {
						direction = "up"
					}
					return postgres.Migrate(dbFrom(c).DB.DB, direction)
				},
			},
			{
				Name:  "archive",
				Usage: "Inspect raw CRM pages stored in object storage",
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List archived pages, optionally for one category and run",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "category"},
							&cli.Int64Flag{Name: "run", Usage: "Sync log id"},
						},
						Action: runArchiveList,
					},
					{
						Name:      "fetch",
						Usage:     "Download one archived page",
						ArgsUsage: "<key> <dest>",
						Action:    runArchiveFetch,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("crmsync failed")
	}
}

func runSync(c *cli.Context) error {
	cfg := config.Load()
	pipelineCfg := pipeline.ConfigFromSettings(cfg.Sync)
	db := dbFrom(c)

	categories, err := domain.ExpandCategory(c.String("category"))
	if err != nil {
		return err
	}
	req := domain.SyncRequest{
		Categories:  categories,
		FilterTypes: config.ParseIntList(c.String("filter-types")),
	}
	if v := c.String("from"); v != "" {
		if req.From, err = time.ParseInLocation(domain.DateLayout, v, pipelineCfg.Location); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}
	if v := c.String("to"); v != "" {
		if req.To, err = time.ParseInLocation(domain.DateLayout, v, pipelineCfg.Location); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}

	var archive pipeline.Uploader
	if cfg.Archive.Enabled {
		client, err := storage.NewMinioClient(cfg.Archive)
		if err != nil {
			return err
		}
		archive = client
	}

	reportCache, err := cache.NewReportCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("report cache unavailable; cached reports will expire on their own")
		reportCache = cache.NewNoopReportCache()
	}

	syncLogs := postgres.NewSyncLogRepository(db)
	worker := pipeline.NewWorker(
		crm.NewClient(cfg.CRM, nil),
		postgres.NewShipmentRepository(db),
		syncLogs,
		nil,
		archive,
		pipelineCfg,
		nil,
	)
	svc := service.NewSyncService(pipeline.NewOrchestrator(worker, pipelineCfg, nil), syncLogs, reportCache)

	result, err := svc.Sync(c.Context, req)
	if result != nil {
		if encodeErr := printJSON(result); encodeErr != nil {
			return encodeErr
		}
	}
	return err
}

func runLogs(c *cli.Context) error {
	svc := service.NewSyncService(nil, postgres.NewSyncLogRepository(dbFrom(c)), nil)
	logs, err := svc.ListLogs(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	return printJSON(logs)
}

func archiveClient() (*storage.MinioClient, error) {
	cfg := config.Load()
	return storage.NewMinioClient(cfg.Archive)
}

func runArchiveList(c *cli.Context) error {
	client, err := archiveClient()
	if err != nil {
		return err
	}

	var category domain.Category
	if v := c.String("category"); v != "" {
		var ok bool
		if category, ok = domain.ParseCategory(v); !ok {
			return fmt.Errorf("unknown category %q", v)
		}
	}

	objects, err := client.ListObjects(c.Context, pipeline.ArchivePrefix(category, c.Int64("run")))
	if err != nil {
		return err
	}
	return printJSON(objects)
}

func runArchiveFetch(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: crmsync archive fetch <key> <dest>")
	}
	client, err := archiveClient()
	if err != nil {
		return err
	}

	key, dest := c.Args().Get(0), c.Args().Get(1)
	if err := client.DownloadObject(c.Context, key, dest); err != nil {
		return err
	}
	log.Info().Str("key", key).Str("dest", dest).Msg("archived page downloaded")
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
