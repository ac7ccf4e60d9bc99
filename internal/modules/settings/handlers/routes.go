package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers settings routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/settings", h.HandleGetAll)
	r.Post("/api/settings", h.HandleApply)
	r.Put("/api/settings/{key}", h.HandleUpdate)
	r.Post("/api/settings/reset-cache", h.HandleResetCache)
}
