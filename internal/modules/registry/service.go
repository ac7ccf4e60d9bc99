// Package registry discovers campaign databases in the data directory,
// keeps their summaries current and hands out pooled read-only stores.
package registry

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/config"
	"github.com/rhaume/starledger/internal/database"
	"github.com/rhaume/starledger/internal/domain"
	"github.com/rhaume/starledger/internal/events"
	"github.com/rhaume/starledger/internal/gamedb"
	"github.com/rhaume/starledger/internal/utils"
)

// maxOpenGames bounds the pool of open campaign database handles. Viewers
// rarely flip between more than a couple of campaigns; eviction closes the
// least recently used handle.
const maxOpenGames = 8

// Service is the game registry. It owns the mapping from game ids to
// campaign files and every open handle into them.
type Service struct {
	cfg    *config.Config
	events *events.Manager
	log    zerolog.Logger

	mu    sync.RWMutex
	games map[string]domain.GameInfo
	order []string

	// openMu serializes pool misses so one game never opens twice.
	openMu sync.Mutex
	pool   *lru.Cache
}

// NewService creates the registry. Call Scan to populate it.
func NewService(cfg *config.Config, eventManager *events.Manager, log zerolog.Logger) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		events: eventManager,
		log:    log.With().Str("service", "registry").Logger(),
		games:  make(map[string]domain.GameInfo),
	}

	pool, err := lru.NewWithEvict(maxOpenGames, func(key, value interface{}) {
		store := value.(*gamedb.Store)
		if err := store.Close(); err != nil {
			s.log.Warn().Err(err).Str("game", fmt.Sprint(key)).Msg("Failed to close evicted game store")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create game handle pool: %w", err)
	}
	s.pool = pool

	return s, nil
}

// Scan walks the data directory for campaign databases and reconciles the
// registry against what it finds. The service's own config.db and cache.db
// never count as games; the save-name filter hides non-matching files.
// Discovered and removed games are announced on the event bus.
func (s *Service) Scan() error {
	defer utils.OperationTimer("registry_scan", s.log)()

	paths, err := filepath.Glob(filepath.Join(s.cfg.DataDir, "*.db"))
	if err != nil {
		return fmt.Errorf("failed to list campaign databases: %w", err)
	}

	nameFilter := s.cfg.SaveNameFilter

	discovered := make(map[string]domain.GameInfo)
	for _, path := range paths {
		gameID := strings.TrimSuffix(filepath.Base(path), ".db")
		if gameID == "config" || gameID == "cache" {
			continue
		}
		if nameFilter != "" && !strings.Contains(gameID, nameFilter) {
			continue
		}

		info, err := s.describeGame(gameID, path)
		if err != nil {
			s.log.Warn().Err(err).Str("game", gameID).Msg("Skipping unreadable campaign database")
			s.events.EmitError("registry", err, map[string]interface{}{"game": gameID})
			continue
		}
		discovered[gameID] = info
	}

	s.mu.Lock()
	previous := s.games
	s.games = discovered
	s.order = sortedIDs(discovered)
	s.mu.Unlock()

	for id, info := range discovered {
		if _, ok := previous[id]; ok {
			continue
		}
		s.log.Info().Str("game", id).Str("player", info.PlayerCountry).Msg("Discovered campaign")
		s.events.EmitTyped(events.GameDiscovered, "registry", &events.GameDiscoveredData{
			GameID:         id,
			PlayerCountry:  info.PlayerCountry,
			NumSnapshots:   info.NumSnapshots,
			MostRecentDate: domain.DaysToDate(float64(info.MostRecentDate)),
		})
	}
	for id := range previous {
		if _, ok := discovered[id]; ok {
			continue
		}
		s.log.Info().Str("game", id).Msg("Campaign removed")
		s.pool.Remove(id)
		s.events.EmitTyped(events.GameRemoved, "registry", &events.GameRemovedData{GameID: id})
	}

	s.log.Debug().Int("games", len(discovered)).Msg("Registry scan finished")
	return nil
}

// describeGame summarizes one campaign file with a short-lived read-only
// handle, separate from the serving pool so scans never thrash it.
func (s *Service) describeGame(gameID, path string) (domain.GameInfo, error) {
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileReadOnly,
		Name:    gameID,
	})
	if err != nil {
		return domain.GameInfo{}, err
	}
	store := gamedb.NewStore(db.Conn(), s.log)
	defer store.Close()

	info := domain.GameInfo{GameID: gameID}

	info.MostRecentDate, err = store.State.MostRecentDate()
	if err != nil {
		return info, err
	}
	info.NumSnapshots, err = store.State.NumSnapshots()
	if err != nil {
		return info, err
	}
	player, err := store.State.PlayerCountry()
	if err != nil {
		return info, err
	}
	if player != nil {
		info.PlayerCountry = *player
	}

	return info, nil
}

// GameInfo returns the summary of one discovered game.
func (s *Service) GameInfo(gameID string) (domain.GameInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.games[gameID]
	return info, ok
}

// NumGames returns how many games the registry currently knows.
func (s *Service) NumGames() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

// Store returns the pooled read-only store for a discovered game, opening
// it on first use. The pool is sized so eviction never races a request on
// a game anyone is still viewing.
func (s *Service) Store(gameID string) (*gamedb.Store, error) {
	s.mu.RLock()
	_, known := s.games[gameID]
	s.mu.RUnlock()
	if !known {
		return nil, fmt.Errorf("unknown game %q", gameID)
	}

	s.openMu.Lock()
	defer s.openMu.Unlock()

	if cached, ok := s.pool.Get(gameID); ok {
		return cached.(*gamedb.Store), nil
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(s.cfg.DataDir, gameID+".db"),
		Profile: database.ProfileReadOnly,
		Name:    gameID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open campaign database: %w", err)
	}

	store := gamedb.NewStore(db.Conn(), s.log)
	s.pool.Add(gameID, store)
	return store, nil
}

// Close releases every pooled game handle.
func (s *Service) Close() {
	s.pool.Purge()
}

func sortedIDs(games map[string]domain.GameInfo) []string {
	ids := make([]string, 0, len(games))
	for id := range games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
