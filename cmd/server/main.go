// Package main is the entry point for the Starledger dashboard server.
// The server watches a directory of 4X save games, maintains a registry of
// the per-game timeline databases found there, and serves ledger tables,
// chart data, and galaxy snapshots over a JSON API.
//
// The startup sequence:
// 1. Loads configuration from environment variables (.env file)
// 2. Initializes structured logging
// 3. Opens and migrates the service databases
// 4. Overlays configuration with values from the settings database
// 5. Scans the save directory and builds the game registry
// 6. Registers background jobs and starts the scheduler
// 7. Starts the HTTP server and waits for a shutdown signal
//
// The service owns two databases of its own, kept separate from the
// per-game timeline databases it only ever reads:
// - config.db: user settings
// - cache.db: rendered pages, galaxy snapshots, job history
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/config"
	"github.com/rhaume/starledger/internal/database"
	"github.com/rhaume/starledger/internal/events"
	"github.com/rhaume/starledger/internal/modules/registry"
	"github.com/rhaume/starledger/internal/modules/settings"
	"github.com/rhaume/starledger/internal/reliability"
	"github.com/rhaume/starledger/internal/rendercache"
	"github.com/rhaume/starledger/internal/scheduler"
	"github.com/rhaume/starledger/internal/server"
	"github.com/rhaume/starledger/internal/version"
	"github.com/rhaume/starledger/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	// Configuration is loaded from environment variables (.env file) and can be
	// overlaid later from the settings database.
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		// This ensures we can log the configuration error even if config loading fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger with config level
	// Logger uses structured logging (zerolog) with configurable log levels
	// Pretty mode enables human-readable output for development
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	log.Info().
		Str("version", version.Version).
		Str("data_dir", cfg.DataDir).
		Msg("Starting Starledger")

	// Open the service databases. Both live under the data directory and are
	// created on first run; Migrate applies the embedded schema so a fresh
	// install needs no manual setup.
	configDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open config database")
	}
	defer configDB.Close()

	if err := configDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate config database")
	}

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	if err := cacheDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache database")
	}

	// Update config from settings DB
	// The settings database takes precedence over environment variables for
	// runtime configuration. This allows users to change presentation options
	// via the UI without restarting the application.
	settingsRepo := settings.NewRepository(configDB.Conn(), log)
	if err := cfg.UpdateFromSettings(settingsRepo); err != nil {
		log.Warn().Err(err).Msg("Failed to update config from settings DB, using environment variables")
	}
	settingsService := settings.NewService(settingsRepo, log)

	// Event bus and manager
	// Every module emits typed events through the manager; the bus fans them
	// out to subscribers, including the SSE stream served by the HTTP server.
	eventBus := events.NewBus(log)
	eventManager := events.NewManager(eventBus, log)

	// Build the game registry and run the initial scan. A failed scan is not
	// fatal: the periodic rescan job retries and picks up saves that appear
	// later.
	registryService, err := registry.NewService(cfg, eventManager, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize game registry")
	}
	defer registryService.Close()

	if err := registryService.Scan(); err != nil {
		log.Error().Err(err).Msg("Initial save scan failed")
	}
	log.Info().Int("games", registryService.NumGames()).Msg("Game registry ready")

	// Render cache
	// Rendered ledger pages, chart traces, and galaxy snapshots are cached in
	// cache.db so repeated requests for the same game state skip the per-game
	// database entirely.
	renderCache := rendercache.NewCache(cacheDB.Conn())
	pages := rendercache.NewPages(renderCache, cfg.CacheTTL)

	// Scheduler and background jobs
	// Job runs are recorded in cache.db and exposed at /api/status/jobs.
	history := scheduler.NewHistory(cacheDB.Conn())
	sched := scheduler.New(history, eventManager, log)

	// Register Job 1: Registry Rescan (every 5 minutes)
	// Picks up campaigns that start or end while the server is running.
	rescan := registry.NewRescanJob(registryService, log)
	if err := sched.AddJob("0 */5 * * * *", rescan); err != nil {
		log.Fatal().Err(err).Msg("Failed to register registry_rescan job")
	}

	// Register Job 2: WAL Checkpoint (hourly)
	// Keeps the service databases' WAL files from growing unbounded.
	walCheckpoint := scheduler.NewWALCheckpointJob(configDB, cacheDB, log)
	if err := sched.AddJob("0 30 * * * *", walCheckpoint); err != nil {
		log.Fatal().Err(err).Msg("Failed to register wal_checkpoint job")
	}

	// Register Job 3: Database Health Check (daily at 4:00 AM)
	healthCheck := scheduler.NewHealthCheckJob(configDB, cacheDB, log)
	if err := sched.AddJob("0 0 4 * * *", healthCheck); err != nil {
		log.Fatal().Err(err).Msg("Failed to register health_check job")
	}

	// Register Job 4: Render Cache Cleanup (daily at 3:00 AM)
	// Evicts expired pages and snapshots for games whose saves were deleted.
	cacheCleanup := rendercache.NewCleanupJob(renderCache, log)
	if err := sched.AddJob("0 0 3 * * *", cacheCleanup); err != nil {
		log.Fatal().Err(err).Msg("Failed to register render_cache_cleanup job")
	}

	// Register Job 5: Local Backup (daily at 1:00 AM)
	// Archives the service databases only. The per-game timeline databases
	// are the game's own output and are never written, so they are not
	// backed up here.
	backupService := reliability.NewBackupService(
		map[string]*database.DB{
			"config": configDB,
			"cache":  cacheDB,
		},
		filepath.Join(cfg.DataDir, "backups"),
		eventManager,
		log,
	)
	localBackup := reliability.NewBackupJob(backupService, cfg.BackupKeep)
	if err := sched.AddJob("0 0 1 * * *", localBackup); err != nil {
		log.Fatal().Err(err).Msg("Failed to register local_backup job")
	}

	// Register Job 6: S3 Backup (daily at 1:30 AM, after the local backup)
	// Only registered when S3 credentials are configured in settings.
	if s3Backup := buildS3BackupJob(settingsRepo, backupService, eventManager, cfg.BackupKeep, log); s3Backup != nil {
		if err := sched.AddJob("0 30 1 * * *", s3Backup); err != nil {
			log.Fatal().Err(err).Msg("Failed to register s3_backup job")
		}
	}

	sched.Start()
	defer sched.Stop()

	// Initialize HTTP server
	// The HTTP server provides REST API endpoints for:
	// - Game registry (list games, match by name, rescan)
	// - Ledger tables (empire economy, budgets, per-object breakdowns)
	// - Chart data (timeline traces, grouped by presentation settings)
	// - Galaxy snapshots (REST and live WebSocket updates)
	// - Settings management and system status
	srv := server.New(server.Config{
		Log:          log,
		Config:       cfg,
		ConfigDB:     configDB,
		CacheDB:      cacheDB,
		Registry:     registryService,
		Settings:     settingsService,
		SettingsRepo: settingsRepo,
		RenderCache:  renderCache,
		Pages:        pages,
		History:      history,
		EventBus:     eventBus,
		EventManager: eventManager,
	})

	// Start server in goroutine
	// The HTTP server runs in a separate goroutine so it doesn't block the
	// main thread. ErrServerClosed is the normal result of a graceful
	// shutdown and is not an error.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	// The application blocks here until it receives SIGINT (Ctrl+C) or
	// SIGTERM (kill command).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	// The HTTP server is given up to 10 seconds to finish in-flight requests.
	// The deferred scheduler Stop waits for running jobs to drain, and the
	// deferred database Closes run last so WAL checkpoints are written.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// buildS3BackupJob assembles the S3 backup job from settings. All four S3
// settings must be set; leaving any empty disables remote backups and the
// job is simply not registered.
func buildS3BackupJob(
	repo *settings.Repository,
	backups *reliability.BackupService,
	eventManager *events.Manager,
	keep int,
	log zerolog.Logger,
) *reliability.S3BackupJob {
	get := func(key string) string {
		value, err := repo.Get(key)
		if err != nil || value == nil {
			return ""
		}
		return *value
	}

	s3Cfg := reliability.S3Config{
		Endpoint:        get("s3_endpoint"),
		AccessKeyID:     get("s3_access_key_id"),
		SecretAccessKey: get("s3_secret_access_key"),
		Bucket:          get("s3_bucket"),
	}
	if s3Cfg.Endpoint == "" || s3Cfg.AccessKeyID == "" || s3Cfg.SecretAccessKey == "" || s3Cfg.Bucket == "" {
		log.Info().Msg("S3 backups disabled (not configured in settings)")
		return nil
	}

	client, err := reliability.NewS3Client(s3Cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create S3 client, remote backups disabled")
		return nil
	}

	service := reliability.NewS3BackupService(client, backups, eventManager, log)
	return reliability.NewS3BackupJob(service, keep)
}
