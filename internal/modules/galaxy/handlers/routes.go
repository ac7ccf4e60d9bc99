package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all galaxy map routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/games/{gameID}/galaxy", h.HandleGalaxy)
	r.Get("/api/games/{gameID}/galaxy/live", h.HandleGalaxyLive)
}
