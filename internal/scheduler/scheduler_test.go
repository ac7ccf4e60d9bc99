package scheduler

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/rhaume/starledger/internal/events"
)

type stubJob struct {
	name string
	err  error
	runs int
}

func (j *stubJob) Run() error {
	j.runs++
	return j.err
}

func (j *stubJob) Name() string { return j.name }

type emittedEvent struct {
	eventType events.EventType
	module    string
	data      events.EventData
}

type fakeEventManager struct {
	emitted []emittedEvent
}

func (f *fakeEventManager) EmitTyped(eventType events.EventType, module string, data events.EventData) {
	f.emitted = append(f.emitted, emittedEvent{eventType, module, data})
}

const historySchema = `
CREATE TABLE job_history (
    id TEXT PRIMARY KEY,
    job_name TEXT NOT NULL,
    status TEXT NOT NULL,
    error TEXT,
    started_at INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL
);
`

func setupHistoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(historySchema)
	require.NoError(t, err)

	return db
}

func testLog() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestRunNowRecordsHistoryAndEvents(t *testing.T) {
	history := NewHistory(setupHistoryDB(t))
	eventManager := &fakeEventManager{}
	s := New(history, eventManager, testLog())

	job := &stubJob{name: "rescan"}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	runs, err := history.Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.NotEmpty(t, runs[0].ID)
	assert.Equal(t, "rescan", runs[0].Job)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Empty(t, runs[0].Error)

	require.Len(t, eventManager.emitted, 2)
	assert.Equal(t, events.JobStarted, eventManager.emitted[0].eventType)
	assert.Equal(t, events.JobCompleted, eventManager.emitted[1].eventType)
	assert.Equal(t, "scheduler", eventManager.emitted[0].module)

	started := eventManager.emitted[0].data.(*events.JobStatusData)
	completed := eventManager.emitted[1].data.(*events.JobStatusData)
	assert.Equal(t, started.JobID, completed.JobID)
	assert.Equal(t, runs[0].ID, started.JobID)
	assert.Equal(t, "rescan", started.JobName)
}

func TestRunNowRecordsFailure(t *testing.T) {
	history := NewHistory(setupHistoryDB(t))
	eventManager := &fakeEventManager{}
	s := New(history, eventManager, testLog())

	job := &stubJob{name: "backup", err: errors.New("disk full")}
	err := s.RunNow(job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	runs, herr := history.Recent(10)
	require.NoError(t, herr)
	require.Len(t, runs, 1)
	assert.Equal(t, "failed", runs[0].Status)
	assert.Equal(t, "disk full", runs[0].Error)

	require.Len(t, eventManager.emitted, 2)
	assert.Equal(t, events.JobFailed, eventManager.emitted[1].eventType)
	failed := eventManager.emitted[1].data.(*events.JobStatusData)
	assert.Equal(t, "disk full", failed.Error)
}

func TestRunNowWithoutHistoryOrEvents(t *testing.T) {
	s := New(nil, nil, testLog())

	job := &stubJob{name: "cleanup"}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)
}

func TestAddJob(t *testing.T) {
	s := New(nil, nil, testLog())

	err := s.AddJob("@every 1h", &stubJob{name: "rescan"})
	assert.NoError(t, err)
}

func TestAddJobInvalidSchedule(t *testing.T) {
	s := New(nil, nil, testLog())

	err := s.AddJob("not a schedule", &stubJob{name: "rescan"})
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s := New(nil, nil, testLog())

	assert.NotPanics(t, func() {
		s.Start()
		s.Stop()
	})
}
