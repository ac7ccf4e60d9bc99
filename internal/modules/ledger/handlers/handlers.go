// Package handlers provides HTTP handlers for the event ledger pages.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/config"
	"github.com/rhaume/starledger/internal/domain"
	"github.com/rhaume/starledger/internal/events"
	"github.com/rhaume/starledger/internal/gamedb"
	"github.com/rhaume/starledger/internal/modules/ledger"
)

// ledgerCacheTable is the render-cache table holding assembled pages.
const ledgerCacheTable = "ledger_pages"

// GameResolver matches a requested game id against the discovered games
// and hands out the open store for a resolved one. MatchGame returns ""
// when nothing matches.
type GameResolver interface {
	MatchGame(query string) (string, error)
	Store(gameID string) (*gamedb.Store, error)
}

// PageCache keeps rendered payloads between requests. A nil cache is
// valid, every page is then rebuilt on demand.
type PageCache interface {
	GetIfFresh(table, key string, dest interface{}) (bool, error)
	Store(table, key string, value interface{}) error
}

// EventEmitter announces served pages on the event bus
type EventEmitter interface {
	EmitTyped(eventType events.EventType, module string, data events.EventData)
}

// Page is the fully assembled history page payload.
type Page struct {
	PageTitle      string                         `json:"page_title"`
	GameName       string                         `json:"game_name"`
	Country        string                         `json:"country"`
	Date           string                         `json:"date"`
	Wars           []ledger.WarSummary            `json:"wars"`
	Events         map[string][]ledger.EventEntry `json:"events"`
	Details        map[string]map[string]string   `json:"country_details"`
	Links          map[string]string              `json:"links"`
	IsFilteredPage bool                           `json:"is_filtered_page"`
}

// Handler handles ledger HTTP requests
type Handler struct {
	resolver GameResolver
	cfg      *config.Config
	cache    PageCache
	events   EventEmitter
	log      zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(resolver GameResolver, cfg *config.Config, log zerolog.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		cfg:      cfg,
		log:      log.With().Str("handler", "ledger").Logger(),
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

// HandleLedger handles GET /api/games/{gameID}/ledger
func (h *Handler) HandleLedger(w http.ResponseWriter, r *http.Request) {
	requested := chi.URLParam(r, "gameID")

	gameID, err := h.resolver.MatchGame(requested)
	if err != nil {
		h.log.Error().Err(err).Str("game", requested).Msg("Failed to match game")
		http.Error(w, "Failed to resolve game", http.StatusInternalServerError)
		return
	}
	if gameID == "" {
		h.log.Warn().Str("game", requested).Msg("No game matches request")
		http.Error(w, fmt.Sprintf("no game matching %q", requested), http.StatusNotFound)
		return
	}

	filter, err := ledger.FilterFromQuery(r.URL.Query())
	if err != nil {
		var invalid *ledger.InvalidFilterValueError
		if errors.As(err, &invalid) {
			http.Error(w, invalid.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Invalid filter", http.StatusBadRequest)
		return
	}

	opts := h.cfg.PresentationOptions()
	cacheKey := pageCacheKey(gameID, r.URL.Query(), opts)

	if h.cache != nil {
		var cached Page
		fresh, err := h.cache.GetIfFresh(ledgerCacheTable, cacheKey, &cached)
		if err != nil {
			h.log.Warn().Err(err).Str("game", gameID).Msg("Render cache lookup failed")
		} else if fresh {
			h.emitServed(gameID, true)
			h.writePage(w, &cached)
			return
		}
	}

	page, err := h.buildPage(gameID, filter, opts)
	if err != nil {
		h.log.Error().Err(err).Str("game", gameID).Msg("Failed to build ledger page")
		http.Error(w, "Failed to build ledger page", http.StatusInternalServerError)
		return
	}

	if h.cache != nil {
		if err := h.cache.Store(ledgerCacheTable, cacheKey, page); err != nil {
			h.log.Warn().Err(err).Str("game", gameID).Msg("Failed to cache ledger page")
		}
	}

	h.emitServed(gameID, false)
	h.writePage(w, page)
}

// emitServed announces a delivered page, if an emitter is wired.
func (h *Handler) emitServed(gameID string, cached bool) {
	if h.events == nil {
		return
	}
	h.events.EmitTyped(events.SnapshotServed, "ledger", &events.SnapshotServedData{
		GameID: gameID,
		Kind:   "ledger",
		Cached: cached,
	})
}

// buildPage assembles the history page for one resolved game. War
// summaries only appear on the unfiltered global page.
func (h *Handler) buildPage(gameID string, filter *ledger.EventFilter, opts domain.PresentationOptions) (*Page, error) {
	store, err := h.resolver.Store(gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to open game store: %w", err)
	}

	currentDate, err := store.State.MostRecentDate()
	if err != nil {
		return nil, err
	}
	player, err := store.State.PlayerCountry()
	if err != nil {
		return nil, err
	}

	built, err := ledger.NewBuilder(store.Countries, store.Events, h.log).Build(gameID, filter, opts)
	if err != nil {
		return nil, err
	}

	page := &Page{
		PageTitle:      "Global Event Ledger",
		GameName:       gameID,
		Date:           domain.DaysToDate(float64(currentDate)),
		Wars:           []ledger.WarSummary{},
		Events:         built.Events,
		Details:        built.Details,
		Links:          built.Links,
		IsFilteredPage: filter.IsFiltered(),
	}
	if player != nil {
		page.Country = *player
	}

	if filter.IsFiltered() {
		page.PageTitle = filteredTitle(filter)
	} else {
		wars, err := ledger.NewWarSummaryBuilder(store.Wars, h.log).Build(currentDate, opts)
		if err != nil {
			return nil, err
		}
		page.Wars = wars
	}

	return page, nil
}

// filteredTitle names a narrowed page after the dimensions narrowing it.
func filteredTitle(f *ledger.EventFilter) string {
	parts := []string{"History"}
	ids := []struct {
		name string
		id   *int64
	}{
		{"country", f.Country},
		{"war", f.War},
		{"leader", f.Leader},
		{"system", f.System},
		{"planet", f.Planet},
		{"faction", f.Faction},
	}
	for _, dim := range ids {
		if dim.id != nil {
			parts = append(parts, fmt.Sprintf("%s %d", dim.name, *dim.id))
		}
	}
	if f.Type != nil {
		parts = append(parts, fmt.Sprintf("type %s", *f.Type))
	}
	return strings.Join(parts, " ")
}

// pageCacheKey keys a cached page by game, canonical query string and the
// presentation flags, so settings changes never serve stale pages.
func pageCacheKey(gameID string, q url.Values, opts domain.PresentationOptions) string {
	return fmt.Sprintf("%s|%s|%t|%t|%t", gameID, q.Encode(),
		opts.ShowEverything, opts.AllowBackdating, opts.OnlyShowDefaultEmpires)
}

func (h *Handler) writePage(w http.ResponseWriter, page *Page) {
	response := map[string]interface{}{
		"data": page,
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
