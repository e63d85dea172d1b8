// backend-go/cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tuushin/crmsync/backend-go/internal/api"
	"github.com/tuushin/crmsync/backend-go/internal/cache"
	"github.com/tuushin/crmsync/backend-go/internal/config"
	"github.com/tuushin/crmsync/backend-go/internal/crm"
	"github.com/tuushin/crmsync/backend-go/internal/pipeline"
	"github.com/tuushin/crmsync/backend-go/internal/repository/postgres"
	"github.com/tuushin/crmsync/backend-go/internal/service"
	"github.com/tuushin/crmsync/backend-go/internal/storage"
	"github.com/tuushin/crmsync/backend-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Setup(logger.Options{
		Level:   cfg.Log.Level,
		Mode:    cfg.Server.Mode,
		Format:  cfg.Log.Format,
		Service: "crmsync-api",
	})
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := postgres.Migrate(db.DB.DB, "up"); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	reportCache, err := cache.NewReportCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Report cache unavailable, continuing without cache")
		reportCache = cache.NewNoopReportCache()
	}

	if !cfg.CRM.HasCredentials() {
		logger.Log.Warn().Msg("CRM_USERNAME/CRM_PASSWORD not set; sync requests will fail")
	}

	// Initialize services
	pipelineCfg := pipeline.ConfigFromSettings(cfg.Sync)
	shipments := postgres.NewShipmentRepository(db)
	syncLogs := postgres.NewSyncLogRepository(db)
	kpis := postgres.NewKPIRepository(db)

	worker := pipeline.NewWorker(
		crm.NewClient(cfg.CRM, nil),
		shipments,
		syncLogs,
		nil,
		newArchive(cfg.Archive),
		pipelineCfg,
		nil,
	)
	orchestrator := pipeline.NewOrchestrator(worker, pipelineCfg, nil)

	services := &api.Services{
		Sync:     service.NewSyncService(orchestrator, syncLogs, reportCache),
		Report:   service.NewReportService(shipments, kpis, reportCache, pipelineCfg.Location),
		Location: pipelineCfg.Location,
	}

	// Initialize HTTP server
	router := api.NewRouter(services, cfg.Server.AllowedOrigins)
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

// newArchive returns nil when archiving is disabled or misconfigured.
func newArchive(cfg config.ArchiveConfig) pipeline.Uploader {
	if !cfg.Enabled {
		return nil
	}
	client, err := storage.NewMinioClient(cfg)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Raw page archive disabled")
		return nil
	}
	return client
}
