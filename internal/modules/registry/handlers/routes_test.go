package handlers

import (
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRegisterRoutes(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	h := NewHandler(nil, log)

	router := chi.NewRouter()
	assert.NotPanics(t, func() {
		h.RegisterRoutes(router)
	})
}
