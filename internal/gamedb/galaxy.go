package gamedb

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/domain"
)

// GalaxyRepo reads the galactic graph and its ownership history.
type GalaxyRepo struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewGalaxyRepo creates a galaxy repository over a campaign database.
func NewGalaxyRepo(db *sql.DB, log zerolog.Logger) *GalaxyRepo {
	return &GalaxyRepo{
		db:  db,
		log: log.With().Str("repo", "galaxy").Logger(),
	}
}

// Systems returns every star system with its fixed galactic position.
func (r *GalaxyRepo) Systems() ([]domain.System, error) {
	query := `SELECT system_id, name, original_name, pos_x, pos_y
		FROM systems ORDER BY system_id ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query systems: %w", err)
	}
	defer rows.Close()

	var systems []domain.System
	for rows.Next() {
		var s domain.System
		if err := rows.Scan(&s.SystemID, &s.Name, &s.OriginalName, &s.X, &s.Y); err != nil {
			return nil, fmt.Errorf("failed to scan system: %w", err)
		}
		systems = append(systems, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating systems: %w", err)
	}

	return systems, nil
}

// Hyperlanes returns every edge of the galactic graph.
func (r *GalaxyRepo) Hyperlanes() ([]domain.Hyperlane, error) {
	rows, err := r.db.Query(`SELECT system_a, system_b FROM hyperlanes`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hyperlanes: %w", err)
	}
	defer rows.Close()

	var lanes []domain.Hyperlane
	for rows.Next() {
		var l domain.Hyperlane
		if err := rows.Scan(&l.SystemA, &l.SystemB); err != nil {
			return nil, fmt.Errorf("failed to scan hyperlane: %w", err)
		}
		lanes = append(lanes, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hyperlanes: %w", err)
	}

	return lanes, nil
}

// OwnershipHistory returns, per system id, the date-ascending list of
// ownership changes. A NULL country means the system became unclaimed.
func (r *GalaxyRepo) OwnershipHistory() (map[int64][]domain.OwnershipChange, error) {
	query := `SELECT so.system_id, so.start_date_days, c.name
		FROM system_ownership so
		LEFT JOIN countries c ON c.country_id = so.country_id
		ORDER BY so.system_id ASC, so.start_date_days ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query system ownership: %w", err)
	}
	defer rows.Close()

	history := make(map[int64][]domain.OwnershipChange)
	for rows.Next() {
		var systemID int64
		var change domain.OwnershipChange
		var owner sql.NullString
		if err := rows.Scan(&systemID, &change.Date, &owner); err != nil {
			return nil, fmt.Errorf("failed to scan ownership change: %w", err)
		}
		change.Owner = domain.Unclaimed
		if owner.Valid {
			change.Owner = owner.String
		}
		history[systemID] = append(history[systemID], change)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating system ownership: %w", err)
	}

	return history, nil
}
