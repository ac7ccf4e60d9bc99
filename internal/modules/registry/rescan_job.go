package registry

import (
	"github.com/rs/zerolog"
)

// RescanJob re-discovers campaign databases on a schedule so games saved
// while the dashboard is running show up without a restart.
type RescanJob struct {
	service *Service
	log     zerolog.Logger
}

// NewRescanJob creates a new registry rescan job.
func NewRescanJob(service *Service, log zerolog.Logger) *RescanJob {
	return &RescanJob{
		service: service,
		log:     log.With().Str("job", "registry_rescan").Logger(),
	}
}

// Run executes the rescan job.
func (j *RescanJob) Run() error {
	if err := j.service.Scan(); err != nil {
		j.log.Error().Err(err).Msg("Registry rescan failed")
		return err
	}

	j.log.Debug().
		Int("games", j.service.NumGames()).
		Msg("Registry rescan completed")

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *RescanJob) Name() string {
	return "registry_rescan"
}
