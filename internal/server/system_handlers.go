package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/rhaume/starledger/internal/database"
	"github.com/rhaume/starledger/internal/scheduler"
	"github.com/rhaume/starledger/internal/version"
)

// GameCounter reports how many campaign databases are currently known.
type GameCounter interface {
	NumGames() int
}

// SystemHandlers serves the status, database stats, job history, and
// version endpoints.
type SystemHandlers struct {
	log       zerolog.Logger
	configDB  *database.DB
	cacheDB   *database.DB
	games     GameCounter
	history   *scheduler.History
	startTime time.Time
}

// NewSystemHandlers creates system handlers. games and history may be nil.
func NewSystemHandlers(
	configDB *database.DB,
	cacheDB *database.DB,
	games GameCounter,
	history *scheduler.History,
	log zerolog.Logger,
) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		configDB:  configDB,
		cacheDB:   cacheDB,
		games:     games,
		history:   history,
		startTime: time.Now(),
	}
}

// StatusResponse describes the running service and its host.
type StatusResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	NumGames      int     `json:"num_games"`
	Goroutines    int     `json:"goroutines"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsed    string  `json:"memory_used"`
	MemoryTotal   string  `json:"memory_total"`
}

// DatabaseStatsResponse lists statistics for the service databases.
type DatabaseStatsResponse struct {
	Databases   []DatabaseInfo `json:"databases"`
	TotalSize   string         `json:"total_size"`
	LastChecked string         `json:"last_checked"`
}

// DatabaseInfo describes one service database.
type DatabaseInfo struct {
	Name          string `json:"name"`
	SizeBytes     int64  `json:"size_bytes"`
	Size          string `json:"size"`
	WALSizeBytes  int64  `json:"wal_size_bytes"`
	WALSize       string `json:"wal_size"`
	PageCount     int64  `json:"page_count"`
	PageSize      int64  `json:"page_size"`
	FreelistCount int64  `json:"freelist_count"`
}

// JobsStatusResponse lists recent scheduled job runs, newest first.
type JobsStatusResponse struct {
	TotalRuns int          `json:"total_runs"`
	Runs      []JobRunInfo `json:"runs"`
}

// JobRunInfo describes one recorded job run.
type JobRunInfo struct {
	ID         string `json:"id"`
	Job        string `json:"job"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	DurationMS int64  `json:"duration_ms"`
}

// HandleStatus handles GET /api/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memStat := h.systemStats()

	uptime := time.Since(h.startTime)
	response := StatusResponse{
		Status:        "healthy",
		Version:       version.Version,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
	}

	if h.games != nil {
		response.NumGames = h.games.NumGames()
	}

	if memStat != nil {
		response.MemoryPercent = memStat.UsedPercent
		response.MemoryUsed = humanize.Bytes(memStat.Used)
		response.MemoryTotal = humanize.Bytes(memStat.Total)
	}

	h.writeJSON(w, response)
}

// HandleDatabaseStats handles GET /api/status/databases
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	databases := make([]DatabaseInfo, 0, 2)
	var totalBytes int64

	for _, db := range []*database.DB{h.configDB, h.cacheDB} {
		if db == nil {
			continue
		}

		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			continue
		}

		totalBytes += stats.SizeBytes + stats.WALSizeBytes
		databases = append(databases, DatabaseInfo{
			Name:          db.Name(),
			SizeBytes:     stats.SizeBytes,
			Size:          humanize.Bytes(uint64(stats.SizeBytes)),
			WALSizeBytes:  stats.WALSizeBytes,
			WALSize:       humanize.Bytes(uint64(stats.WALSizeBytes)),
			PageCount:     stats.PageCount,
			PageSize:      stats.PageSize,
			FreelistCount: stats.FreelistCount,
		})
	}

	response := DatabaseStatsResponse{
		Databases:   databases,
		TotalSize:   humanize.Bytes(uint64(totalBytes)),
		LastChecked: time.Now().Format(time.RFC3339),
	}

	h.writeJSON(w, response)
}

// HandleJobsStatus handles GET /api/status/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting job history")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs := make([]JobRunInfo, 0, limit)
	if h.history != nil {
		recent, err := h.history.Recent(limit)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to read job history")
			http.Error(w, "Failed to read job history", http.StatusInternalServerError)
			return
		}

		for _, run := range recent {
			runs = append(runs, JobRunInfo{
				ID:         run.ID,
				Job:        run.Job,
				Status:     run.Status,
				Error:      run.Error,
				StartedAt:  run.StartedAt.Format(time.RFC3339),
				DurationMS: run.Duration.Milliseconds(),
			})
		}
	}

	h.writeJSON(w, JobsStatusResponse{TotalRuns: len(runs), Runs: runs})
}

// HandleVersion handles GET /api/version
func (h *SystemHandlers) HandleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"version": version.Version})
}

// systemStats samples CPU and memory usage. The short CPU interval keeps
// the endpoint responsive for dashboard polling.
func (h *SystemHandlers) systemStats() (float64, *mem.VirtualMemoryStat) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, nil
	}

	return cpuAvg, memStat
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
