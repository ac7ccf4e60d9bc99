package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/database"
)

// WALCheckpointJob passively checkpoints the service databases and warns
// when a WAL file grows large. Campaign databases are read-only and never
// accumulate WAL frames here.
type WALCheckpointJob struct {
	configDB *database.DB
	cacheDB  *database.DB
	log      zerolog.Logger
}

// NewWALCheckpointJob creates a new WALCheckpointJob
func NewWALCheckpointJob(configDB, cacheDB *database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		configDB: configDB,
		cacheDB:  cacheDB,
		log:      log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes the WAL checkpoint job
func (j *WALCheckpointJob) Run() error {
	databases := map[string]*database.DB{
		"config": j.configDB,
		"cache":  j.cacheDB,
	}

	checkedCount := 0
	for name, db := range databases {
		if db == nil {
			continue
		}

		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, logFrames, checkpointed int
		err := db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &logFrames, &checkpointed)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", name).
				Msg("Failed to checkpoint WAL")
			continue
		}

		if logFrames > 1000 {
			j.log.Warn().
				Str("database", name).
				Int("wal_frames", logFrames).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, checkpoint may be needed")
		} else {
			j.log.Debug().
				Str("database", name).
				Int("wal_frames", logFrames).
				Msg("WAL checkpoint status OK")
		}

		checkedCount++
	}

	j.log.Info().
		Int("checked", checkedCount).
		Msg("WAL checkpoint completed")

	return nil
}
