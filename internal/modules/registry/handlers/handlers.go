// Package handlers provides HTTP handlers for game discovery.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/domain"
)

// Registry is the slice of the registry service these handlers consume.
type Registry interface {
	Games(query string) []domain.GameInfo
	MatchGame(query string) (string, error)
	GameInfo(gameID string) (domain.GameInfo, bool)
	Scan() error
	NumGames() int
}

// GameSummary is one discovered game with its formatted in-game date.
type GameSummary struct {
	GameID         string `json:"game_id"`
	PlayerCountry  string `json:"player_country"`
	MostRecentDate int    `json:"most_recent_date"`
	NumSnapshots   int    `json:"num_snapshots"`
	Date           string `json:"date"`
}

func summarize(info domain.GameInfo) GameSummary {
	return GameSummary{
		GameID:         info.GameID,
		PlayerCountry:  info.PlayerCountry,
		MostRecentDate: info.MostRecentDate,
		NumSnapshots:   info.NumSnapshots,
		Date:           domain.DaysToDate(float64(info.MostRecentDate)),
	}
}

// Handler handles game discovery HTTP requests
type Handler struct {
	registry Registry
	log      zerolog.Logger
}

// NewHandler creates a new registry handler
func NewHandler(registry Registry, log zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		log:      log.With().Str("handler", "registry").Logger(),
	}
}

// HandleListGames handles GET /api/games
func (h *Handler) HandleListGames(w http.ResponseWriter, r *http.Request) {
	games := h.registry.Games(r.URL.Query().Get("q"))

	summaries := make([]GameSummary, 0, len(games))
	for _, info := range games {
		summaries = append(summaries, summarize(info))
	}

	h.writeData(w, map[string]interface{}{
		"games": summaries,
		"count": len(summaries),
	})
}

// HandleGameInfo handles GET /api/games/{gameID}
func (h *Handler) HandleGameInfo(w http.ResponseWriter, r *http.Request) {
	requested := chi.URLParam(r, "gameID")

	gameID, err := h.registry.MatchGame(requested)
	if err != nil {
		h.log.Error().Err(err).Str("game", requested).Msg("Failed to match game")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to resolve game"})
		return
	}
	if gameID == "" {
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("no game matching %q", requested),
		})
		return
	}

	info, ok := h.registry.GameInfo(gameID)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("no game matching %q", requested),
		})
		return
	}

	h.writeData(w, summarize(info))
}

// HandleRescan handles POST /api/games/rescan
func (h *Handler) HandleRescan(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Scan(); err != nil {
		h.log.Error().Err(err).Msg("Registry rescan failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Rescan failed"})
		return
	}

	h.writeData(w, map[string]interface{}{
		"rescanned": true,
		"count":     h.registry.NumGames(),
	})
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
