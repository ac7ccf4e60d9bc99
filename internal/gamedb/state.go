package gamedb

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// StateRepo reports campaign-wide snapshot state.
type StateRepo struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStateRepo creates a state repository over a campaign database.
func NewStateRepo(db *sql.DB, log zerolog.Logger) *StateRepo {
	return &StateRepo{
		db:  db,
		log: log.With().Str("repo", "state").Logger(),
	}
}

// MostRecentDate returns the latest recorded in-game date in days, or 0
// when the campaign has no snapshots yet.
func (r *StateRepo) MostRecentDate() (int, error) {
	var date sql.NullInt64
	err := r.db.QueryRow(`SELECT MAX(date) FROM game_states`).Scan(&date)
	if err != nil {
		return 0, fmt.Errorf("failed to query most recent date: %w", err)
	}
	if !date.Valid {
		return 0, nil
	}
	return int(date.Int64), nil
}

// NumSnapshots returns how many snapshots the campaign has recorded.
func (r *StateRepo) NumSnapshots() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM game_states`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}

// PlayerCountry returns the player country's name, or nil when no player
// country is recorded yet.
func (r *StateRepo) PlayerCountry() (*string, error) {
	var name string
	err := r.db.QueryRow(`SELECT name FROM countries WHERE is_player = 1 ORDER BY country_id ASC LIMIT 1`).
		Scan(&name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query player country: %w", err)
	}
	return &name, nil
}
