package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/rhaume/starledger/internal/events"
	"github.com/rhaume/starledger/internal/modules/settings"
)

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) RefreshFromSettings() error {
	f.calls++
	return f.err
}

type fakeResetter struct {
	deleted int64
	err     error
}

func (f *fakeResetter) Reset() (int64, error) {
	return f.deleted, f.err
}

func setupTestHandler(t *testing.T) (*Handler, *settings.Repository, *events.Bus) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	)`)
	require.NoError(t, err)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := settings.NewRepository(db, log)
	service := settings.NewService(repo, log)
	bus := events.NewBus(log)

	return NewHandler(service, events.NewManager(bus, log), log), repo, bus
}

func doRequest(t *testing.T, h *Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	router := chi.NewRouter()
	h.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestHandleGetAll(t *testing.T) {
	h, repo, _ := setupTestHandler(t)
	require.NoError(t, repo.Set("save_name_filter", "ironman"))

	rec := doRequest(t, h, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Data []settings.Setting `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, len(settings.Definitions))

	byKey := make(map[string]settings.Setting, len(resp.Data))
	for _, s := range resp.Data {
		byKey[s.Key] = s
	}

	// Stored values win, everything else reports its default.
	assert.Equal(t, "ironman", byKey["save_name_filter"].Value)
	assert.Equal(t, false, byKey["show_everything"].Value)
	assert.Equal(t, true, byKey["allow_backdating"].Value)
	assert.EqualValues(t, 60, byKey["cache_ttl_minutes"].Value)
}

func TestHandleApply(t *testing.T) {
	h, repo, bus := setupTestHandler(t)

	refresher := &fakeRefresher{}
	h.SetConfigRefresher(refresher)

	var changed []*events.Event
	bus.Subscribe(events.SettingsChanged, func(event *events.Event) {
		changed = append(changed, event)
	})

	rec := doRequest(t, h, http.MethodPost, "/api/settings",
		`{"show_everything": true, "cache_ttl_minutes": 30}`)
	require.Equal(t, http.StatusOK, rec.Code)

	value, err := repo.Get("show_everything")
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "true", *value)

	value, err = repo.Get("cache_ttl_minutes")
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "30", *value)

	assert.Equal(t, 1, refresher.calls, "config should refresh once per batch")
	assert.Len(t, changed, 2, "one SettingsChanged event per updated key")
}

func TestHandleApplyRejectsInvalidBatch(t *testing.T) {
	h, repo, _ := setupTestHandler(t)

	// One bad value poisons the whole batch; the good key must not persist.
	rec := doRequest(t, h, http.MethodPost, "/api/settings",
		`{"show_everything": true, "cache_ttl_minutes": "soon"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	value, err := repo.Get("show_everything")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestHandleApplyRejectsUnknownKey(t *testing.T) {
	h, _, _ := setupTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/settings", `{"warp_speed": 9}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown setting")
}

func TestHandleApplyRejectsEmptyBody(t *testing.T) {
	h, _, _ := setupTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/settings", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpdate(t *testing.T) {
	h, repo, _ := setupTestHandler(t)

	refresher := &fakeRefresher{}
	h.SetConfigRefresher(refresher)

	rec := doRequest(t, h, http.MethodPut, "/api/settings/allow_backdating",
		`{"value": false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	value, err := repo.Get("allow_backdating")
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "false", *value)
	assert.Equal(t, 1, refresher.calls)
}

func TestHandleUpdateUnknownKey(t *testing.T) {
	h, _, _ := setupTestHandler(t)

	rec := doRequest(t, h, http.MethodPut, "/api/settings/warp_speed", `{"value": 9}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown setting")
}

func TestHandleResetCache(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	h.SetCacheResetter(&fakeResetter{deleted: 12})

	rec := doRequest(t, h, http.MethodPost, "/api/settings/reset-cache", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Data["status"])
	assert.EqualValues(t, 12, resp.Data["deleted"])
}

func TestHandleResetCacheUnavailable(t *testing.T) {
	h, _, _ := setupTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/settings/reset-cache", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleResetCacheFailure(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	h.SetCacheResetter(&fakeResetter{err: errors.New("cache.db is locked")})

	rec := doRequest(t, h, http.MethodPost, "/api/settings/reset-cache", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
