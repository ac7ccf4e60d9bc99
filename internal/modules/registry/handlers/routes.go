package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers game discovery routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/games", h.HandleListGames)
	r.Get("/api/games/{gameID}", h.HandleGameInfo)
	r.Post("/api/games/rescan", h.HandleRescan)
}
