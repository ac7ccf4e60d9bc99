package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhaume/starledger/internal/database"
	"github.com/rhaume/starledger/internal/scheduler"
	"github.com/rhaume/starledger/internal/version"
)

func testLog() zerolog.Logger {
	return zerolog.Nop()
}

// setupServiceDBs opens migrated config.db and cache.db in a temp dir.
func setupServiceDBs(t *testing.T) (*database.DB, *database.DB) {
	t.Helper()

	dataDir := t.TempDir()

	configDB, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	require.NoError(t, err)
	t.Cleanup(func() { configDB.Close() })
	require.NoError(t, configDB.Migrate())

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { cacheDB.Close() })
	require.NoError(t, cacheDB.Migrate())

	return configDB, cacheDB
}

type fakeGameCounter struct {
	games int
}

func (f *fakeGameCounter) NumGames() int { return f.games }

func TestSystemHandlers_HandleStatus(t *testing.T) {
	handlers := &SystemHandlers{
		log:       testLog(),
		games:     &fakeGameCounter{games: 3},
		startTime: time.Now().Add(-90 * time.Second),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()

	handlers.HandleStatus(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var response StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, version.Version, response.Version)
	assert.Equal(t, 3, response.NumGames)
	assert.Greater(t, response.Goroutines, 0)
	assert.GreaterOrEqual(t, response.UptimeSeconds, 90.0)
}

func TestSystemHandlers_HandleStatusWithoutGameCounter(t *testing.T) {
	handlers := &SystemHandlers{
		log:       testLog(),
		startTime: time.Now(),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()

	handlers.HandleStatus(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 0, response.NumGames)
}

func TestSystemHandlers_HandleDatabaseStats(t *testing.T) {
	configDB, cacheDB := setupServiceDBs(t)
	handlers := NewSystemHandlers(configDB, cacheDB, nil, nil, testLog())

	req := httptest.NewRequest(http.MethodGet, "/api/status/databases", nil)
	rec := httptest.NewRecorder()

	handlers.HandleDatabaseStats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response DatabaseStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	require.Len(t, response.Databases, 2)
	assert.Equal(t, "config", response.Databases[0].Name)
	assert.Equal(t, "cache", response.Databases[1].Name)
	for _, db := range response.Databases {
		assert.Greater(t, db.SizeBytes, int64(0), "database %s should have a size", db.Name)
		assert.Greater(t, db.PageCount, int64(0), "database %s should have pages", db.Name)
		assert.NotEmpty(t, db.Size)
	}
	assert.NotEmpty(t, response.TotalSize)

	_, err := time.Parse(time.RFC3339, response.LastChecked)
	assert.NoError(t, err)
}

func TestSystemHandlers_HandleDatabaseStatsWithoutDatabases(t *testing.T) {
	handlers := NewSystemHandlers(nil, nil, nil, nil, testLog())

	req := httptest.NewRequest(http.MethodGet, "/api/status/databases", nil)
	rec := httptest.NewRecorder()

	handlers.HandleDatabaseStats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response DatabaseStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Empty(t, response.Databases)
}

func TestSystemHandlers_HandleJobsStatus(t *testing.T) {
	setupHistory := func(t *testing.T) *scheduler.History {
		t.Helper()

		_, cacheDB := setupServiceDBs(t)
		history := scheduler.NewHistory(cacheDB.Conn())

		now := time.Now().Truncate(time.Second)
		runs := []scheduler.JobRun{
			{ID: "run-1", Job: "registry_rescan", StartedAt: now.Add(-2 * time.Hour), Duration: 120 * time.Millisecond, Status: "completed"},
			{ID: "run-2", Job: "local_backup", StartedAt: now.Add(-time.Hour), Duration: 3 * time.Second, Status: "failed", Error: "disk full"},
			{ID: "run-3", Job: "wal_checkpoint", StartedAt: now, Duration: 40 * time.Millisecond, Status: "completed"},
		}
		for _, run := range runs {
			require.NoError(t, history.Record(run))
		}

		return history
	}

	t.Run("returns recorded runs newest first", func(t *testing.T) {
		handlers := NewSystemHandlers(nil, nil, nil, setupHistory(t), testLog())

		req := httptest.NewRequest(http.MethodGet, "/api/status/jobs", nil)
		rec := httptest.NewRecorder()

		handlers.HandleJobsStatus(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response JobsStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

		assert.Equal(t, 3, response.TotalRuns)
		require.Len(t, response.Runs, 3)
		assert.Equal(t, "run-3", response.Runs[0].ID)
		assert.Equal(t, "run-2", response.Runs[1].ID)
		assert.Equal(t, "run-1", response.Runs[2].ID)

		failed := response.Runs[1]
		assert.Equal(t, "local_backup", failed.Job)
		assert.Equal(t, "failed", failed.Status)
		assert.Equal(t, "disk full", failed.Error)
		assert.Equal(t, int64(3000), failed.DurationMS)

		_, err := time.Parse(time.RFC3339, failed.StartedAt)
		assert.NoError(t, err)
	})

	t.Run("respects the limit parameter", func(t *testing.T) {
		handlers := NewSystemHandlers(nil, nil, nil, setupHistory(t), testLog())

		req := httptest.NewRequest(http.MethodGet, "/api/status/jobs?limit=2", nil)
		rec := httptest.NewRecorder()

		handlers.HandleJobsStatus(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response JobsStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, 2, response.TotalRuns)
		require.Len(t, response.Runs, 2)
		assert.Equal(t, "run-3", response.Runs[0].ID)
	})

	t.Run("rejects invalid limits", func(t *testing.T) {
		handlers := NewSystemHandlers(nil, nil, nil, setupHistory(t), testLog())

		for _, limit := range []string{"0", "-5", "501", "abc"} {
			req := httptest.NewRequest(http.MethodGet, "/api/status/jobs?limit="+limit, nil)
			rec := httptest.NewRecorder()

			handlers.HandleJobsStatus(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code, "limit %q should be rejected", limit)
		}
	})

	t.Run("no history configured", func(t *testing.T) {
		handlers := NewSystemHandlers(nil, nil, nil, nil, testLog())

		req := httptest.NewRequest(http.MethodGet, "/api/status/jobs", nil)
		rec := httptest.NewRecorder()

		handlers.HandleJobsStatus(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response JobsStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, 0, response.TotalRuns)
		assert.Empty(t, response.Runs)
	})
}

func TestSystemHandlers_HandleVersion(t *testing.T) {
	handlers := NewSystemHandlers(nil, nil, nil, nil, testLog())

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rec := httptest.NewRecorder()

	handlers.HandleVersion(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, version.Version, response["version"])
}
