// Package handlers provides HTTP handlers for the plot catalog and the
// rendered plot traces.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/config"
	"github.com/rhaume/starledger/internal/events"
	"github.com/rhaume/starledger/internal/gamedb"
	"github.com/rhaume/starledger/internal/modules/charts"
)

// plotCacheTable is the render-cache table holding rendered traces.
const plotCacheTable = "plot_traces"

// GameResolver matches a requested game id against the discovered games
// and hands out the open store for a resolved one. MatchGame returns ""
// when nothing matches.
type GameResolver interface {
	MatchGame(query string) (string, error)
	Store(gameID string) (*gamedb.Store, error)
}

// PageCache keeps rendered payloads between requests. A nil cache is
// valid, every plot is then rebuilt on demand.
type PageCache interface {
	GetIfFresh(table, key string, dest interface{}) (bool, error)
	Store(table, key string, value interface{}) error
}

// EventEmitter announces served plots on the event bus
type EventEmitter interface {
	EmitTyped(eventType events.EventType, module string, data events.EventData)
}

// CatalogPayload lists every available plot of a game, grouped by theme.
type CatalogPayload struct {
	GameName string             `json:"game_name"`
	Groups   []charts.PlotGroup `json:"groups"`
}

// PlotPayload is one rendered plot with its catalog identity attached.
type PlotPayload struct {
	PlotID string           `json:"plot_id"`
	Title  string           `json:"title"`
	Style  charts.PlotStyle `json:"style"`
	Traces []charts.Trace   `json:"traces"`
}

// Handler handles plot HTTP requests
type Handler struct {
	resolver  GameResolver
	cfg       *config.Config
	cache     PageCache
	events    EventEmitter
	transform *charts.Transformer
	log       zerolog.Logger
}

// NewHandler creates a new charts handler
func NewHandler(resolver GameResolver, cfg *config.Config, log zerolog.Logger) *Handler {
	return &Handler{
		resolver:  resolver,
		cfg:       cfg,
		transform: charts.NewTransformer(log),
		log:       log.With().Str("handler", "charts").Logger(),
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

// HandleCatalog handles GET /api/games/{gameID}/plots
func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	gameID, ok := h.resolveGame(w, r)
	if !ok {
		return
	}
	h.writeData(w, &CatalogPayload{GameName: gameID, Groups: charts.Catalog})
}

// HandlePlot handles GET /api/games/{gameID}/plots/{plotID}
func (h *Handler) HandlePlot(w http.ResponseWriter, r *http.Request) {
	gameID, ok := h.resolveGame(w, r)
	if !ok {
		return
	}

	plotID := chi.URLParam(r, "plotID")
	spec := charts.PlotByID(plotID)
	if spec == nil {
		h.log.Warn().Str("plot_id", plotID).Msg("No such plot in the catalog")
		http.Error(w, fmt.Sprintf("no plot named %q", plotID), http.StatusNotFound)
		return
	}

	// Of the presentation flags only the empire filter changes plot
	// datasets, so the cache key carries just that one.
	opts := h.cfg.PresentationOptions()
	cacheKey := fmt.Sprintf("%s|%s|%t", gameID, plotID, opts.OnlyShowDefaultEmpires)

	if h.cache != nil {
		var cached PlotPayload
		fresh, err := h.cache.GetIfFresh(plotCacheTable, cacheKey, &cached)
		if err != nil {
			h.log.Warn().Err(err).Str("game", gameID).Msg("Render cache lookup failed")
		} else if fresh {
			h.emitServed(gameID, true)
			h.writeData(w, &cached)
			return
		}
	}

	store, err := h.resolver.Store(gameID)
	if err != nil {
		h.log.Error().Err(err).Str("game", gameID).Msg("Failed to open game store")
		http.Error(w, "Failed to open game", http.StatusInternalServerError)
		return
	}

	dataset, err := charts.Dataset(store.Series, *spec, opts)
	if err != nil {
		h.log.Error().Err(err).Str("game", gameID).Str("plot_id", plotID).Msg("Failed to load plot dataset")
		http.Error(w, "Failed to load plot data", http.StatusInternalServerError)
		return
	}

	payload := &PlotPayload{
		PlotID: spec.PlotID,
		Title:  spec.Title,
		Style:  spec.Style,
		Traces: h.transform.Transform(*spec, dataset),
	}

	if h.cache != nil {
		if err := h.cache.Store(plotCacheTable, cacheKey, payload); err != nil {
			h.log.Warn().Err(err).Str("game", gameID).Msg("Failed to cache plot")
		}
	}

	h.emitServed(gameID, false)
	h.writeData(w, payload)
}

// emitServed announces a delivered plot, if an emitter is wired.
func (h *Handler) emitServed(gameID string, cached bool) {
	if h.events == nil {
		return
	}
	h.events.EmitTyped(events.SnapshotServed, "charts", &events.SnapshotServedData{
		GameID: gameID,
		Kind:   "plot",
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
