package gamedb

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/domain"
)

// WarRepo reads wars together with their participants and combat events.
type WarRepo struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewWarRepo creates a war repository over a campaign database.
func NewWarRepo(db *sql.DB, log zerolog.Logger) *WarRepo {
	return &WarRepo{
		db:  db,
		log: log.With().Str("repo", "wars").Logger(),
	}
}

// AllOrdered returns every war ordered by ascending start_date_days, with
// participants in recorded join order and combats attached. Assembled from
// three queries instead of one join so participant order is preserved and
// wars without combats still come back whole.
func (r *WarRepo) AllOrdered() ([]domain.War, error) {
	wars, index, err := r.queryWars()
	if err != nil {
		return nil, err
	}
	if len(wars) == 0 {
		return wars, nil
	}

	if err := r.attachParticipants(wars, index); err != nil {
		return nil, err
	}
	if err := r.attachCombats(wars, index); err != nil {
		return nil, err
	}

	return wars, nil
}

func (r *WarRepo) queryWars() ([]domain.War, map[int64]int, error) {
	query := `SELECT war_id, name, start_date_days, end_date_days
		FROM wars ORDER BY start_date_days ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query wars: %w", err)
	}
	defer rows.Close()

	var wars []domain.War
	index := make(map[int64]int)
	for rows.Next() {
		var w domain.War
		var endDate sql.NullInt64
		if err := rows.Scan(&w.WarID, &w.Name, &w.StartDateDays, &endDate); err != nil {
			return nil, nil, fmt.Errorf("failed to scan war: %w", err)
		}
		if endDate.Valid {
			days := int(endDate.Int64)
			w.EndDateDays = &days
		}
		index[w.WarID] = len(wars)
		wars = append(wars, w)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating wars: %w", err)
	}

	return wars, index, nil
}

func (r *WarRepo) attachParticipants(wars []domain.War, index map[int64]int) error {
	query := `SELECT wp.war_id, wp.country_id, c.name, wp.is_attacker, c.first_player_contact_date
		FROM war_participants wp
		JOIN countries c ON c.country_id = wp.country_id
		ORDER BY wp.rowid ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return fmt.Errorf("failed to query war participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var warID int64
		var p domain.WarParticipant
		var contact sql.NullInt64
		if err := rows.Scan(&warID, &p.CountryID, &p.CountryName, &p.IsAttacker, &contact); err != nil {
			return fmt.Errorf("failed to scan war participant: %w", err)
		}
		if contact.Valid {
			days := int(contact.Int64)
			p.FirstPlayerContactDate = &days
		}
		if i, ok := index[warID]; ok {
			wars[i].Participants = append(wars[i].Participants, p)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating war participants: %w", err)
	}

	return nil
}

func (r *WarRepo) attachCombats(wars []domain.War, index map[int64]int) error {
	query := `SELECT war_id, date, combat_type, attacker_war_exhaustion, defender_war_exhaustion,
			system, planet
		FROM combats ORDER BY war_id ASC, date ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return fmt.Errorf("failed to query combats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var warID int64
		var c domain.Combat
		var combatType string
		var system, planet sql.NullString
		if err := rows.Scan(&warID, &c.Date, &combatType,
			&c.AttackerWarExhaustion, &c.DefenderWarExhaustion, &system, &planet); err != nil {
			return fmt.Errorf("failed to scan combat: %w", err)
		}
		c.CombatType = domain.CombatType(combatType)
		c.System = system.String
		c.Planet = planet.String
		if i, ok := index[warID]; ok {
			wars[i].Combats = append(wars[i].Combats, c)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating combats: %w", err)
	}

	return nil
}
