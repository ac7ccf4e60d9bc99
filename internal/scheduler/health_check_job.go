package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/database"
)

// HealthCheckJob verifies integrity of the service databases
type HealthCheckJob struct {
	configDB *database.DB
	cacheDB  *database.DB
	log      zerolog.Logger
}

// NewHealthCheckJob creates a new HealthCheckJob
func NewHealthCheckJob(configDB, cacheDB *database.DB, log zerolog.Logger) *HealthCheckJob {
	return &HealthCheckJob{
		configDB: configDB,
		cacheDB:  cacheDB,
		log:      log.With().Str("job", "health_check").Logger(),
	}
}

// Name returns the job name
func (j *HealthCheckJob) Name() string {
	return "health_check"
}

// Run executes the health check job
func (j *HealthCheckJob) Run() error {
	databases := map[string]*database.DB{
		"config": j.configDB,
		"cache":  j.cacheDB,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for name, db := range databases {
		if db == nil {
			j.log.Warn().Str("database", name).Msg("Database not initialized, skipping")
			continue
		}

		if err := db.HealthCheck(ctx); err != nil {
			// Service database corruption cannot be auto-recovered
			j.log.Error().
				Err(err).
				Str("database", name).
				Msg("Database integrity check failed")
			return fmt.Errorf("database %s is corrupted: %w", name, err)
		}

		j.log.Debug().Str("database", name).Msg("Database integrity OK")
	}

	j.log.Info().Msg("All service databases passed integrity check")
	return nil
}
