// Package handlers provides HTTP handlers for the galaxy map: a REST
// endpoint for single snapshots and a WebSocket for slider scrubbing.
package handlers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/rhaume/starledger/internal/domain"
	"github.com/rhaume/starledger/internal/events"
	"github.com/rhaume/starledger/internal/gamedb"
	"github.com/rhaume/starledger/internal/modules/galaxy"
)

// galaxyCacheTable is the render-cache table holding rendered maps.
const galaxyCacheTable = "galaxy_snapshots"

// GameResolver matches a requested game id against the discovered games
// and hands out the open store for a resolved one. MatchGame returns ""
// when nothing matches.
type GameResolver interface {
	MatchGame(query string) (string, error)
	Store(gameID string) (*gamedb.Store, error)
}

// PageCache keeps rendered payloads between requests. A nil cache is
// valid, every snapshot is then rebuilt on demand.
type PageCache interface {
	GetIfFresh(table, key string, dest interface{}) (bool, error)
	Store(table, key string, value interface{}) error
}

// EventEmitter announces served snapshots on the event bus
type EventEmitter interface {
	EmitTyped(eventType events.EventType, module string, data events.EventData)
}

// GalaxyPayload carries one rendered map and the date it depicts.
type GalaxyPayload struct {
	GameName string               `json:"game_name"`
	Date     string               `json:"date"`
	DateDays int                  `json:"date_days"`
	Traces   *galaxy.GalaxyTraces `json:"traces"`
}

// liveRequest is one client message of the live map protocol.
type liveRequest struct {
	Fraction float64 `json:"fraction"`
}

// Handler handles galaxy map HTTP requests
type Handler struct {
	resolver GameResolver
	cache    PageCache
	events   EventEmitter
	log      zerolog.Logger
}

// NewHandler creates a new galaxy handler
func NewHandler(resolver GameResolver, log zerolog.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		log:      log.With().Str("handler", "galaxy").Logger(),
	}
}

// SetCache sets the render cache (for dependency injection)
func (h *Handler) SetCache(cache PageCache) {
	h.cache = cache
}

// SetEvents sets the event emitter (for dependency injection)
func (h *Handler) SetEvents(emitter EventEmitter) {
	h.events = emitter
}

// HandleGalaxy handles GET /api/games/{gameID}/galaxy?fraction=F. The
// fraction slides from 0 (game start) to 100 (most recent snapshot).
func (h *Handler) HandleGalaxy(w http.ResponseWriter, r *http.Request) {
	gameID, ok := h.resolveGame(w, r)
	if !ok {
		return
	}

	fraction := 100.0
	if raw := r.URL.Query().Get("fraction"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid fraction %q", raw), http.StatusBadRequest)
			return
		}
		fraction = parsed
	}

	payload, err := h.snapshotPayload(gameID, fraction)
	if err != nil {
		h.log.Error().Err(err).Str("game", gameID).Msg("Failed to build galaxy snapshot")
		http.Error(w, "Failed to build galaxy snapshot", http.StatusInternalServerError)
		return
	}

	h.writeData(w, payload)
}

// HandleGalaxyLive handles GET /api/games/{gameID}/galaxy/live. Each
// {"fraction": F} message is answered with the same payload the REST
// endpoint serves; the loop ends when the client goes away.
func (h *Handler) HandleGalaxyLive(w http.ResponseWriter, r *http.Request) {
	gameID, ok := h.resolveGame(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("game", gameID).Msg("WebSocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	h.log.Debug().Str("game", gameID).Msg("Galaxy live session started")

	ctx := r.Context()
	for {
		var req liveRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}

		payload, err := h.snapshotPayload(gameID, req.Fraction)
		if err != nil {
			h.log.Error().Err(err).Str("game", gameID).Msg("Failed to build galaxy snapshot")
			conn.Close(websocket.StatusInternalError, "failed to build snapshot")
			return
		}

		if err := wsjson.Write(ctx, conn, payload); err != nil {
			h.log.Warn().Err(err).Str("game", gameID).Msg("WebSocket write failed")
			return
		}
	}
}

// snapshotPayload renders the map at 0.01 * fraction * mostRecentDate,
// clamped to the recorded range. Snapshots are cached per resolved day, so
// scrubbing back and forth over the slider stays cheap.
func (h *Handler) snapshotPayload(gameID string, fraction float64) (*GalaxyPayload, error) {
	store, err := h.resolver.Store(gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to open game store: %w", err)
	}

	mostRecent, err := store.State.MostRecentDate()
	if err != nil {
		return nil, err
	}

	date := 0.01 * fraction * float64(mostRecent)
	date = math.Max(0, math.Min(date, float64(mostRecent)))
	days := int(date)

	cacheKey := fmt.Sprintf("%s|%d", gameID, days)
	if h.cache != nil {
		var cached GalaxyPayload
		fresh, err := h.cache.GetIfFresh(galaxyCacheTable, cacheKey, &cached)
		if err != nil {
			h.log.Warn().Err(err).Str("game", gameID).Msg("Render cache lookup failed")
		} else if fresh {
			h.emitServed(gameID, true)
			return &cached, nil
		}
	}

	traces, err := galaxy.NewSnapshotBuilder(store.Galaxy, h.log).Snapshot(date)
	if err != nil {
		return nil, err
	}

	payload := &GalaxyPayload{
		GameName: gameID,
		Date:     domain.DaysToDate(date),
		DateDays: days,
		Traces:   traces,
	}

	if h.cache != nil {
		if err := h.cache.Store(galaxyCacheTable, cacheKey, payload); err != nil {
			h.log.Warn().Err(err).Str("game", gameID).Msg("Failed to cache galaxy snapshot")
		}
	}

	h.emitServed(gameID, false)
	return payload, nil
}

// emitServed announces a delivered snapshot, if an emitter is wired.
func (h *Handler) emitServed(gameID string, cached bool) {
	if h.events == nil {
		return
	}
	h.events.EmitTyped(events.SnapshotServed, "galaxy", &events.SnapshotServedData{
		GameID: gameID,
		Kind:   "galaxy",
		Cached: cached,
	})
}

// resolveGame matches the gameID path parameter, writing the error
// response itself when resolution fails.
func (h *Handler) resolveGame(w http.ResponseWriter, r *http.Request) (string, bool) {
	requested := chi.URLParam(r, "gameID")

	gameID, err := h.resolver.MatchGame(requested)
	if err != nil {
		h.log.Error().Err(err).Str("game", requested).Msg("Failed to match game")
		http.Error(w, "Failed to resolve game", http.StatusInternalServerError)
		return "", false
	}
	if gameID == "" {
		h.log.Warn().Str("game", requested).Msg("No game matches request")
		http.Error(w, fmt.Sprintf("no game matching %q", requested), http.StatusNotFound)
		return "", false
	}
	return gameID, true
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
