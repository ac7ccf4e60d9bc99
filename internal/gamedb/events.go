package gamedb

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/domain"
)

// EventRepo reads historical events and resolves the entities they
// reference. Lookups return nil when an id does not resolve, dangling
// references in old snapshots are expected.
type EventRepo struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewEventRepo creates an event repository over a campaign database.
func NewEventRepo(db *sql.DB, log zerolog.Logger) *EventRepo {
	return &EventRepo{
		db:  db,
		log: log.With().Str("repo", "events").Logger(),
	}
}

// ForCountry returns the country's events ordered by ascending
// start_date_days.
func (r *EventRepo) ForCountry(countryID int64) ([]domain.HistoricalEvent, error) {
	query := `SELECT event_id, country_id, event_type, start_date_days, end_date_days,
			war_id, leader_id, system_id, planet_id, faction_id, target_country_id,
			is_known_to_player, description
		FROM events WHERE country_id = ? ORDER BY start_date_days ASC`

	rows, err := r.db.Query(query, countryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for country %d: %w", countryID, err)
	}
	defer rows.Close()

	var events []domain.HistoricalEvent
	for rows.Next() {
		var e domain.HistoricalEvent
		var eventType string
		var endDate sql.NullInt64
		var warID, leaderID, systemID, planetID, factionID, targetID sql.NullInt64
		var description sql.NullString
		if err := rows.Scan(&e.EventID, &e.CountryID, &eventType, &e.StartDateDays, &endDate,
			&warID, &leaderID, &systemID, &planetID, &factionID, &targetID,
			&e.IsKnownToPlayer, &description); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.EventType = domain.EventType(eventType)
		if endDate.Valid {
			days := int(endDate.Int64)
			e.EndDateDays = &days
		}
		e.WarID = nullableID(warID)
		e.LeaderID = nullableID(leaderID)
		e.SystemID = nullableID(systemID)
		e.PlanetID = nullableID(planetID)
		e.FactionID = nullableID(factionID)
		e.TargetCountryID = nullableID(targetID)
		if description.Valid {
			e.Description = description.String
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// CountryByID returns the country with the given id, or nil when missing.
func (r *EventRepo) CountryByID(id int64) (*domain.Country, error) {
	query := `SELECT country_id, name, country_type, is_player, first_player_contact_date
		FROM countries WHERE country_id = ?`

	c, err := scanCountry(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query country %d: %w", id, err)
	}
	return &c, nil
}

// LeaderByID returns the leader with the given id, or nil when missing.
func (r *EventRepo) LeaderByID(id int64) (*domain.Leader, error) {
	var l domain.Leader
	err := r.db.QueryRow(`SELECT leader_id, name FROM leaders WHERE leader_id = ?`, id).
		Scan(&l.LeaderID, &l.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query leader %d: %w", id, err)
	}
	return &l, nil
}

// SystemByID returns the system with the given id, or nil when missing.
func (r *EventRepo) SystemByID(id int64) (*domain.System, error) {
	var s domain.System
	err := r.db.QueryRow(`SELECT system_id, name, original_name, pos_x, pos_y FROM systems WHERE system_id = ?`, id).
		Scan(&s.SystemID, &s.Name, &s.OriginalName, &s.X, &s.Y)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query system %d: %w", id, err)
	}
	return &s, nil
}

// PlanetByID returns the planet with the given id, or nil when missing.
func (r *EventRepo) PlanetByID(id int64) (*domain.Planet, error) {
	var p domain.Planet
	err := r.db.QueryRow(`SELECT planet_id, name, system_id FROM planets WHERE planet_id = ?`, id).
		Scan(&p.PlanetID, &p.Name, &p.SystemID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query planet %d: %w", id, err)
	}
	return &p, nil
}

// FactionByID returns the faction with the given id, or nil when missing.
func (r *EventRepo) FactionByID(id int64) (*domain.Faction, error) {
	var f domain.Faction
	err := r.db.QueryRow(`SELECT faction_id, name FROM factions WHERE faction_id = ?`, id).
		Scan(&f.FactionID, &f.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query faction %d: %w", id, err)
	}
	return &f, nil
}

// WarNameByID returns just the war's display name, or nil when the id does
// not resolve.
func (r *EventRepo) WarNameByID(id int64) (*string, error) {
	var name string
	err := r.db.QueryRow(`SELECT name FROM wars WHERE war_id = ?`, id).Scan(&name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query war %d: %w", id, err)
	}
	return &name, nil
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
