package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/rhaume/starledger/internal/domain"
	"github.com/rhaume/starledger/internal/events"
	"github.com/rhaume/starledger/internal/gamedb"
)

// setupTestStore creates an in-memory campaign with three systems in a
// row. Vigil falls from the Tzynn to the Blorg on day 500.
func setupTestStore(t *testing.T) *gamedb.Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE game_states (date INTEGER NOT NULL)`,
		`CREATE TABLE countries (
			country_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			country_type TEXT NOT NULL,
			is_player INTEGER NOT NULL DEFAULT 0,
			first_player_contact_date INTEGER
		)`,
		`CREATE TABLE systems (system_id INTEGER PRIMARY KEY, name TEXT NOT NULL, original_name TEXT NOT NULL, pos_x REAL NOT NULL, pos_y REAL NOT NULL)`,
		`CREATE TABLE hyperlanes (system_a INTEGER NOT NULL, system_b INTEGER NOT NULL)`,
		`CREATE TABLE system_ownership (system_id INTEGER NOT NULL, start_date_days INTEGER NOT NULL, country_id INTEGER)`,

		`INSERT INTO game_states (date) VALUES (0), (360), (720)`,
		`INSERT INTO countries VALUES
			(1, 'Blorg Commonality', 'default', 1, 0),
			(2, 'Tzynn Empire', 'default', 0, 120)`,
		`INSERT INTO systems VALUES
			(600, 'Tzynnia', 'NAME_Tzynnia', -12.5, 40.0),
			(601, 'Vigil', 'NAME_Vigil', 10.0, 20.0),
			(602, 'Deep Space Refuge', 'NAME_Refuge', 0.0, 0.0)`,
		`INSERT INTO hyperlanes VALUES (600, 601), (601, 602)`,
		`INSERT INTO system_ownership VALUES (600, 0, 2), (601, 0, 2), (601, 500, 1)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	return gamedb.NewStore(db, zerolog.New(nil).Level(zerolog.Disabled))
}

type stubResolver struct {
	id    string
	store *gamedb.Store
}

func (s *stubResolver) MatchGame(query string) (string, error) {
	if query == "" || strings.HasPrefix(s.id, query) {
		return s.id, nil
	}
	return "", nil
}

func (s *stubResolver) Store(gameID string) (*gamedb.Store, error) {
	return s.store, nil
}

type fakeCache struct {
	snapshots map[string]GalaxyPayload
}

func newFakeCache() *fakeCache {
	return &fakeCache{snapshots: make(map[string]GalaxyPayload)}
}

func (c *fakeCache) GetIfFresh(table, key string, dest interface{}) (bool, error) {
	payload, ok := c.snapshots[table+"|"+key]
	if !ok {
		return false, nil
	}
	*dest.(*GalaxyPayload) = payload
	return true, nil
}

func (c *fakeCache) Store(table, key string, value interface{}) error {
	c.snapshots[table+"|"+key] = *value.(*GalaxyPayload)
	return nil
}

type fakeEmitter struct {
	served []events.SnapshotServedData
}

func (e *fakeEmitter) EmitTyped(eventType events.EventType, module string, data events.EventData) {
	if served, ok := data.(*events.SnapshotServedData); ok {
		e.served = append(e.served, *served)
	}
}

func setupTestHandler(t *testing.T) (*Handler, *chi.Mux) {
	t.Helper()

	resolver := &stubResolver{id: "unity2200_1234", store: setupTestStore(t)}
	handler := NewHandler(resolver, zerolog.New(nil).Level(zerolog.Disabled))

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return handler, router
}

type galaxyResponse struct {
	Data     GalaxyPayload          `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
}

func getSnapshot(t *testing.T, router *chi.Mux, url string) (*httptest.ResponseRecorder, *galaxyResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		return rec, nil
	}
	var resp galaxyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, &resp
}

func TestHandleGalaxyDefaultFraction(t *testing.T) {
	_, router := setupTestHandler(t)

	rec, resp := getSnapshot(t, router, "/api/games/unity2200_1234/galaxy")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.Metadata["timestamp"])

	payload := resp.Data
	assert.Equal(t, "unity2200_1234", payload.GameName)
	assert.Equal(t, 720, payload.DateDays)
	assert.Equal(t, "2202.01.01", payload.Date)

	// On the final day Vigil is Blorg space, so no lane has a common
	// owner anymore.
	require.NotNil(t, payload.Traces)
	require.Len(t, payload.Traces.Edges, 1)
	assert.Equal(t, []string{domain.Unclaimed, domain.Unclaimed}, payload.Traces.Edges[0].Text)
	assert.Len(t, payload.Traces.Nodes, 3)
}

func TestHandleGalaxyFraction(t *testing.T) {
	_, router := setupTestHandler(t)

	rec, resp := getSnapshot(t, router, "/api/games/unity2200_1234/galaxy?fraction=50")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp)

	payload := resp.Data
	assert.Equal(t, 360, payload.DateDays)
	assert.Equal(t, "2201.01.01", payload.Date)

	require.Len(t, payload.Traces.Edges, 2)
	tzynn := payload.Traces.Edges[0]
	assert.Equal(t, []string{"Tzynn Empire"}, tzynn.Text)
	assert.Equal(t, 8.0, tzynn.Line.Width)

	require.Len(t, payload.Traces.Nodes, 2)
	assert.Equal(t, "Tzynn Empire", payload.Traces.Nodes[0].Name)
	assert.Equal(t, []string{"Tzynnia (Tzynn Empire)", "Vigil (Tzynn Empire)"}, payload.Traces.Nodes[0].Text)
	assert.Equal(t, domain.Unclaimed, payload.Traces.Nodes[1].Name)
	assert.Equal(t, []string{"Deep Space Refuge"}, payload.Traces.Nodes[1].Text)
}

func TestHandleGalaxyFractionClamped(t *testing.T) {
	_, router := setupTestHandler(t)

	_, resp := getSnapshot(t, router, "/api/games/unity2200_1234/galaxy?fraction=250")
	require.NotNil(t, resp)
	assert.Equal(t, 720, resp.Data.DateDays)

	_, resp = getSnapshot(t, router, "/api/games/unity2200_1234/galaxy?fraction=-10")
	require.NotNil(t, resp)
	assert.Equal(t, 0, resp.Data.DateDays)
	assert.Equal(t, "2200.01.01", resp.Data.Date)
}

func TestHandleGalaxyInvalidFraction(t *testing.T) {
	_, router := setupTestHandler(t)

	rec, _ := getSnapshot(t, router, "/api/games/unity2200_1234/galaxy?fraction=tomorrow")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `invalid fraction "tomorrow"`)
}

func TestHandleGalaxyUnknownGame(t *testing.T) {
	_, router := setupTestHandler(t)

	rec, _ := getSnapshot(t, router, "/api/games/andromeda/galaxy")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGalaxyServesCachedSnapshot(t *testing.T) {
	handler, router := setupTestHandler(t)
	cache := newFakeCache()
	handler.SetCache(cache)

	rec, _ := getSnapshot(t, router, "/api/games/unity2200_1234/galaxy")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, cache.snapshots, 1)

	// Poison the cached copy to prove the second request never rebuilds.
	for key, payload := range cache.snapshots {
		payload.Date = "cached copy"
		cache.snapshots[key] = payload
	}

	_, resp := getSnapshot(t, router, "/api/games/unity2200_1234/galaxy")
	require.NotNil(t, resp)
	assert.Equal(t, "cached copy", resp.Data.Date)
}

func TestHandleGalaxyCachesPerResolvedDay(t *testing.T) {
	handler, router := setupTestHandler(t)
	cache := newFakeCache()
	handler.SetCache(cache)

	getSnapshot(t, router, "/api/games/unity2200_1234/galaxy?fraction=100")
	getSnapshot(t, router, "/api/games/unity2200_1234/galaxy?fraction=50")
	// Clamping makes 250 the same day as 100.
	getSnapshot(t, router, "/api/games/unity2200_1234/galaxy?fraction=250")

	assert.Len(t, cache.snapshots, 2)
}

func TestHandleGalaxyAnnouncesServedSnapshots(t *testing.T) {
	handler, router := setupTestHandler(t)
	handler.SetCache(newFakeCache())
	emitter := &fakeEmitter{}
	handler.SetEvents(emitter)

	getSnapshot(t, router, "/api/games/unity2200_1234/galaxy")
	getSnapshot(t, router, "/api/games/unity2200_1234/galaxy")

	require.Len(t, emitter.served, 2)
	assert.Equal(t, events.SnapshotServedData{GameID: "unity2200_1234", Kind: "galaxy", Cached: false}, emitter.served[0])
	assert.Equal(t, events.SnapshotServedData{GameID: "unity2200_1234", Kind: "galaxy", Cached: true}, emitter.served[1])
}

func TestHandleGalaxyLive(t *testing.T) {
	_, router := setupTestHandler(t)
	server := httptest.NewServer(router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/games/unity/galaxy/live"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, conn, liveRequest{Fraction: 50}))

	var payload GalaxyPayload
	require.NoError(t, wsjson.Read(ctx, conn, &payload))
	assert.Equal(t, "unity2200_1234", payload.GameName)
	assert.Equal(t, 360, payload.DateDays)
	assert.Equal(t, "2201.01.01", payload.Date)

	// The same connection serves any number of scrub positions.
	require.NoError(t, wsjson.Write(ctx, conn, liveRequest{Fraction: 100}))
	require.NoError(t, wsjson.Read(ctx, conn, &payload))
	assert.Equal(t, 720, payload.DateDays)
}

func TestHandleGalaxyLiveUnknownGame(t *testing.T) {
	_, router := setupTestHandler(t)
	server := httptest.NewServer(router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/games/andromeda/galaxy/live"
	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
