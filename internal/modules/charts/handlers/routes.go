package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all plot routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/games/{gameID}/plots", h.HandleCatalog)
	r.Get("/api/games/{gameID}/plots/{plotID}", h.HandlePlot)
}
