// Package gamedb is the read-side access layer over one campaign database.
// Each repository wraps the shared *sql.DB of a single game; the Store
// bundles them so the handle pool can hand out one value per open game.
// All queries are read-only, writes happen in the out-of-process ingester.
package gamedb

import (
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/domain"
)

// Compile-time checks that the sqlite repositories satisfy the read-side
// contracts the builders consume.
var (
	_ domain.CountryRepository = (*CountryRepo)(nil)
	_ domain.EventRepository   = (*EventRepo)(nil)
	_ domain.WarRepository     = (*WarRepo)(nil)
	_ domain.GalaxyRepository  = (*GalaxyRepo)(nil)
	_ domain.StateRepository   = (*StateRepo)(nil)
)

// Store bundles every repository over one campaign database.
type Store struct {
	Countries *CountryRepo
	Events    *EventRepo
	Wars      *WarRepo
	Galaxy    *GalaxyRepo
	Series    *SeriesRepo
	State     *StateRepo

	db *sql.DB
}

// NewStore wires all repositories onto the given campaign database handle.
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		Countries: NewCountryRepo(db, log),
		Events:    NewEventRepo(db, log),
		Wars:      NewWarRepo(db, log),
		Galaxy:    NewGalaxyRepo(db, log),
		Series:    NewSeriesRepo(db, log),
		State:     NewStateRepo(db, log),
		db:        db,
	}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
