// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/rhaume/starledger/internal/domain"
	"github.com/rhaume/starledger/internal/modules/settings"
)

// Config holds application configuration. Presentation flags are snapshotted
// per request via PresentationOptions; nothing reads them ambiently.
type Config struct {
	DataDir   string // Directory holding campaign databases plus config.db/cache.db (always absolute)
	Host      string
	Port      int
	LogLevel  string
	LogPretty bool
	DevMode   bool

	// Presentation flags, adjustable at runtime through the settings API
	ShowEverything         bool
	AllowBackdating        bool
	OnlyShowDefaultEmpires bool

	// SaveNameFilter hides campaign databases whose file name does not
	// contain this substring. Empty means no filtering.
	SaveNameFilter string

	CacheTTL   time.Duration // Lifetime of rendered payloads in cache.db
	BackupKeep int           // Backup archives to retain, locally and remotely
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("STARLEDGER_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:                absDataDir,
		Host:                   getEnv("STARLEDGER_HOST", "127.0.0.1"),
		Port:                   getEnvAsInt("STARLEDGER_PORT", 28053),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogPretty:              getEnvAsBool("LOG_PRETTY", false),
		DevMode:                getEnvAsBool("DEV_MODE", false),
		ShowEverything:         getEnvAsBool("SHOW_EVERYTHING", false),
		AllowBackdating:        getEnvAsBool("ALLOW_BACKDATING", true),
		OnlyShowDefaultEmpires: getEnvAsBool("ONLY_SHOW_DEFAULT_EMPIRES", false),
		SaveNameFilter:         getEnv("SAVE_NAME_FILTER", ""),
		CacheTTL:               time.Duration(getEnvAsInt("CACHE_TTL_MINUTES", 60)) * time.Minute,
		BackupKeep:             getEnvAsInt("BACKUP_KEEP", 7),
	}

	return cfg, nil
}

// UpdateFromSettings overlays persisted settings onto the configuration.
// Called after config.db is initialized and again whenever settings change;
// stored values take precedence over environment variables.
func (c *Config) UpdateFromSettings(repo *settings.Repository) error {
	var err error

	if c.ShowEverything, err = repo.GetBool("show_everything", c.ShowEverything); err != nil {
		return fmt.Errorf("failed to read show_everything from settings: %w", err)
	}
	if c.AllowBackdating, err = repo.GetBool("allow_backdating", c.AllowBackdating); err != nil {
		return fmt.Errorf("failed to read allow_backdating from settings: %w", err)
	}
	if c.OnlyShowDefaultEmpires, err = repo.GetBool("only_show_default_empires", c.OnlyShowDefaultEmpires); err != nil {
		return fmt.Errorf("failed to read only_show_default_empires from settings: %w", err)
	}

	filter, err := repo.Get("save_name_filter")
	if err != nil {
		return fmt.Errorf("failed to read save_name_filter from settings: %w", err)
	}
	if filter != nil {
		c.SaveNameFilter = *filter
	}

	ttlMinutes, err := repo.GetInt("cache_ttl_minutes", int(c.CacheTTL/time.Minute))
	if err != nil {
		return fmt.Errorf("failed to read cache_ttl_minutes from settings: %w", err)
	}
	if ttlMinutes > 0 {
		c.CacheTTL = time.Duration(ttlMinutes) * time.Minute
	}

	keep, err := repo.GetInt("backup_keep", c.BackupKeep)
	if err != nil {
		return fmt.Errorf("failed to read backup_keep from settings: %w", err)
	}
	if keep > 0 {
		c.BackupKeep = keep
	}

	return nil
}

// PresentationOptions snapshots the viewer-facing flags for one request.
func (c *Config) PresentationOptions() domain.PresentationOptions {
	return domain.PresentationOptions{
		ShowEverything:         c.ShowEverything,
		AllowBackdating:        c.AllowBackdating,
		OnlyShowDefaultEmpires: c.OnlyShowDefaultEmpires,
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
