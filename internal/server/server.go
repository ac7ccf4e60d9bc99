// Package server provides the HTTP server and routing for the dashboard API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/config"
	"github.com/rhaume/starledger/internal/database"
	"github.com/rhaume/starledger/internal/events"
	chartshandlers "github.com/rhaume/starledger/internal/modules/charts/handlers"
	galaxyhandlers "github.com/rhaume/starledger/internal/modules/galaxy/handlers"
	ledgerhandlers "github.com/rhaume/starledger/internal/modules/ledger/handlers"
	"github.com/rhaume/starledger/internal/modules/registry"
	registryhandlers "github.com/rhaume/starledger/internal/modules/registry/handlers"
	"github.com/rhaume/starledger/internal/modules/settings"
	settingshandlers "github.com/rhaume/starledger/internal/modules/settings/handlers"
	"github.com/rhaume/starledger/internal/rendercache"
	"github.com/rhaume/starledger/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log          zerolog.Logger
	Config       *config.Config
	ConfigDB     *database.DB
	CacheDB      *database.DB
	Registry     *registry.Service
	Settings     *settings.Service
	SettingsRepo *settings.Repository
	RenderCache  *rendercache.Cache
	Pages        *rendercache.Pages
	History      *scheduler.History
	EventBus     *events.Bus
	EventManager *events.Manager
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	configDB       *database.DB
	cacheDB        *database.DB
	registry       *registry.Service
	settings       *settings.Service
	settingsRepo   *settings.Repository
	renderCache    *rendercache.Cache
	pages          *rendercache.Pages
	history        *scheduler.History
	eventBus       *events.Bus
	eventManager   *events.Manager
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	systemHandlers := NewSystemHandlers(
		cfg.ConfigDB,
		cfg.CacheDB,
		cfg.Registry,
		cfg.History,
		cfg.Log,
	)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		configDB:       cfg.ConfigDB,
		cacheDB:        cfg.CacheDB,
		registry:       cfg.Registry,
		settings:       cfg.Settings,
		settingsRepo:   cfg.SettingsRepo,
		renderCache:    cfg.RenderCache,
		pages:          cfg.Pages,
		history:        cfg.History,
		eventBus:       cfg.EventBus,
		eventManager:   cfg.EventManager,
		systemHandlers: systemHandlers,
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Config.Host, cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// Unified events stream (SSE)
	eventsStreamHandler := NewEventsStreamHandler(s.eventBus, s.log)
	s.router.Get("/api/events/stream", eventsStreamHandler.ServeHTTP)

	// System status and monitoring
	s.router.Route("/api/status", func(r chi.Router) {
		r.Get("/", s.systemHandlers.HandleStatus)
		r.Get("/databases", s.systemHandlers.HandleDatabaseStats)
		r.Get("/jobs", s.systemHandlers.HandleJobsStatus)
	})
	s.router.Get("/api/version", s.systemHandlers.HandleVersion)

	// Game discovery
	registryHandler := registryhandlers.NewHandler(s.registry, s.log)
	registryHandler.RegisterRoutes(s.router)

	// Event ledger pages
	ledgerHandler := ledgerhandlers.NewHandler(s.registry, s.cfg, s.log)
	if s.pages != nil {
		ledgerHandler.SetCache(s.pages)
	}
	if s.eventManager != nil {
		ledgerHandler.SetEvents(s.eventManager)
	}
	ledgerHandler.RegisterRoutes(s.router)

	// Timeline charts
	chartsHandler := chartshandlers.NewHandler(s.registry, s.cfg, s.log)
	if s.pages != nil {
		chartsHandler.SetCache(s.pages)
	}
	if s.eventManager != nil {
		chartsHandler.SetEvents(s.eventManager)
	}
	chartsHandler.RegisterRoutes(s.router)

	// Galaxy snapshots
	galaxyHandler := galaxyhandlers.NewHandler(s.registry, s.log)
	if s.pages != nil {
		galaxyHandler.SetCache(s.pages)
	}
	if s.eventManager != nil {
		galaxyHandler.SetEvents(s.eventManager)
	}
	galaxyHandler.RegisterRoutes(s.router)

	// Settings
	settingsHandler := settingshandlers.NewHandler(s.settings, s.eventManager, s.log)
	if s.settingsRepo != nil {
		settingsHandler.SetConfigRefresher(&configRefresher{cfg: s.cfg, repo: s.settingsRepo})
	}
	if s.renderCache != nil {
		settingsHandler.SetCacheResetter(s.renderCache)
	}
	settingsHandler.RegisterRoutes(s.router)
}

// configRefresher adapts the live config to the settings handlers'
// ConfigRefresher interface.
type configRefresher struct {
	cfg  *config.Config
	repo *settings.Repository
}

func (a *configRefresher) RefreshFromSettings() error {
	return a.cfg.UpdateFromSettings(a.repo)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("host", s.cfg.Host).Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
