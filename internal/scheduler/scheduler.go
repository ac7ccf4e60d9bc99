// Package scheduler provides cron-backed background job management.
package scheduler

import (
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/events"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// EventManagerInterface defines the contract for event emission
// Used by scheduler to enable testing with mocks
type EventManagerInterface interface {
	EmitTyped(eventType events.EventType, module string, data events.EventData)
}

// Scheduler manages background jobs
type Scheduler struct {
	cron    *cron.Cron
	history *History
	events  EventManagerInterface
	log     zerolog.Logger
}

// New creates a new scheduler. history and eventManager may be nil.
func New(history *History, eventManager EventManagerInterface, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		history: history,
		events:  eventManager,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "0 0 3 * * *"        - 3 AM daily
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.runJob(job)
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.runJob(job)
}

// runJob wraps a job run with logging, run history, and lifecycle events.
func (s *Scheduler) runJob(job Job) error {
	runID := uuid.New().String()
	startedAt := time.Now()

	s.log.Debug().Str("job", job.Name()).Str("run_id", runID).Msg("Running job")
	s.emitStatus(runID, job.Name(), "started", "", 0)

	err := job.Run()
	duration := time.Since(startedAt)

	run := JobRun{
		ID:        runID,
		Job:       job.Name(),
		StartedAt: startedAt,
		Duration:  duration,
		Status:    "completed",
	}
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
	}
	if s.history != nil {
		if herr := s.history.Record(run); herr != nil {
			s.log.Warn().Err(herr).Str("job", job.Name()).Msg("Failed to record job run")
		}
	}

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("duration", duration).
			Msg("Job failed")
		s.emitStatus(runID, job.Name(), "failed", err.Error(), duration)
		return err
	}

	s.log.Debug().
		Str("job", job.Name()).
		Dur("duration", duration).
		Msg("Job completed")
	s.emitStatus(runID, job.Name(), "completed", "", duration)

	return nil
}

func (s *Scheduler) emitStatus(runID, jobName, status, errMsg string, duration time.Duration) {
	if s.events == nil {
		return
	}

	data := &events.JobStatusData{
		JobID:     runID,
		JobName:   jobName,
		Status:    status,
		Error:     errMsg,
		Duration:  duration.Seconds(),
		Timestamp: time.Now(),
	}
	s.events.EmitTyped(data.EventType(), "scheduler", data)
}
