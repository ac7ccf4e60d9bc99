// Package handlers provides HTTP handlers for dashboard settings management.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/events"
	"github.com/rhaume/starledger/internal/modules/settings"
)

// ConfigRefresher re-reads persisted settings into the live configuration
// so changes take effect without a restart.
type ConfigRefresher interface {
	RefreshFromSettings() error
}

// CacheResetter drops all rendered payloads so the next request rebuilds
// them with the new settings.
type CacheResetter interface {
	Reset() (int64, error)
}

// Handler provides HTTP handlers for settings endpoints
type Handler struct {
	service         *settings.Service
	eventManager    *events.Manager
	configRefresher ConfigRefresher
	cacheResetter   CacheResetter
	log             zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(service *settings.Service, eventManager *events.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		service:      service,
		eventManager: eventManager,
		log:          log.With().Str("handler", "settings").Logger(),
	}
}

// SetConfigRefresher sets the config refresher (for dependency injection)
func (h *Handler) SetConfigRefresher(refresher ConfigRefresher) {
	h.configRefresher = refresher
}

// SetCacheResetter sets the cache resetter (for dependency injection)
func (h *Handler) SetCacheResetter(resetter CacheResetter) {
	h.cacheResetter = resetter
}

// HandleGetAll handles GET /api/settings
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get all settings")
		http.Error(w, "Failed to get settings", http.StatusInternalServerError)
		return
	}

	h.writeData(w, all)
}

// HandleUpdate handles PUT /api/settings/{key}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		http.Error(w, "Key is required", http.StatusBadRequest)
		return
	}

	var update settings.SettingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Set(key, update.Value); err != nil {
		h.log.Error().
			Err(err).
			Str("key", key).
			Interface("value", update.Value).
			Msg("Failed to update setting")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.afterChange(map[string]interface{}{key: update.Value})

	h.writeData(w, map[string]interface{}{key: update.Value})
}

// HandleApply handles POST /api/settings with a map of key/value updates.
// The batch is validated as a whole; either every setting applies or none do.
func (h *Handler) HandleApply(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(updates) == 0 {
		http.Error(w, "No settings provided", http.StatusBadRequest)
		return
	}

	if err := h.service.Apply(updates); err != nil {
		h.log.Error().Err(err).Msg("Failed to apply settings")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.afterChange(updates)

	h.writeData(w, updates)
}

// HandleResetCache handles POST /api/settings/reset-cache
func (h *Handler) HandleResetCache(w http.ResponseWriter, r *http.Request) {
	if h.cacheResetter == nil {
		http.Error(w, "Cache not available", http.StatusServiceUnavailable)
		return
	}

	deleted, err := h.cacheResetter.Reset()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to reset render cache")
		http.Error(w, "Failed to reset cache", http.StatusInternalServerError)
		return
	}

	h.log.Info().Int64("deleted", deleted).Msg("Render cache reset")

	h.writeData(w, map[string]interface{}{
		"status":  "ok",
		"deleted": deleted,
	})
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// afterChange refreshes the live config and notifies live clients.
func (h *Handler) afterChange(updates map[string]interface{}) {
	if h.configRefresher != nil {
		if err := h.configRefresher.RefreshFromSettings(); err != nil {
			h.log.Warn().Err(err).Msg("Failed to refresh config after settings update")
		}
	}

	if h.eventManager != nil {
		for key, value := range updates {
			h.eventManager.Emit(events.SettingsChanged, "settings", map[string]interface{}{
				"key":   key,
				"value": value,
			})
		}
	}
}
