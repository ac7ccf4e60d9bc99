package scheduler

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhaume/starledger/internal/database"
)

func openServiceDBs(t *testing.T) (*database.DB, *database.DB) {
	t.Helper()

	dir := t.TempDir()

	configDB, err := database.New(database.Config{
		Path:    filepath.Join(dir, "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	require.NoError(t, err)
	t.Cleanup(func() { configDB.Close() })

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(dir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { cacheDB.Close() })

	return configDB, cacheDB
}

func TestWALCheckpointJobName(t *testing.T) {
	job := NewWALCheckpointJob(nil, nil, testLog())
	assert.Equal(t, "wal_checkpoint", job.Name())
}

func TestWALCheckpointJobRunNoDatabases(t *testing.T) {
	job := NewWALCheckpointJob(nil, nil, testLog())

	err := job.Run()
	assert.NoError(t, err)
}

func TestWALCheckpointJobRun(t *testing.T) {
	configDB, cacheDB := openServiceDBs(t)

	require.NoError(t, configDB.Migrate())
	require.NoError(t, cacheDB.Migrate())

	job := NewWALCheckpointJob(configDB, cacheDB, testLog())
	assert.NoError(t, job.Run())
}

func TestHealthCheckJobName(t *testing.T) {
	job := NewHealthCheckJob(nil, nil, testLog())
	assert.Equal(t, "health_check", job.Name())
}

func TestHealthCheckJobRunNoDatabases(t *testing.T) {
	job := NewHealthCheckJob(nil, nil, testLog())

	err := job.Run()
	assert.NoError(t, err)
}

func TestHealthCheckJobRun(t *testing.T) {
	configDB, cacheDB := openServiceDBs(t)

	require.NoError(t, configDB.Migrate())
	require.NoError(t, cacheDB.Migrate())

	job := NewHealthCheckJob(configDB, cacheDB, testLog())
	assert.NoError(t, job.Run())
}
