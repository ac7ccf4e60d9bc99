package gamedb

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/domain"
	"github.com/rhaume/starledger/internal/utils"
)

// CountryRepo reads countries and their latest government and diplomacy
// snapshots.
type CountryRepo struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCountryRepo creates a country repository over a campaign database.
func NewCountryRepo(db *sql.DB, log zerolog.Logger) *CountryRepo {
	return &CountryRepo{
		db:  db,
		log: log.With().Str("repo", "countries").Logger(),
	}
}

// AllOrdered returns every country ordered by ascending country_id.
func (r *CountryRepo) AllOrdered() ([]domain.Country, error) {
	query := `SELECT country_id, name, country_type, is_player, first_player_contact_date
		FROM countries ORDER BY country_id ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query countries: %w", err)
	}
	defer rows.Close()

	var countries []domain.Country
	for rows.Next() {
		c, err := scanCountry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan country: %w", err)
		}
		countries = append(countries, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating countries: %w", err)
	}

	return countries, nil
}

// CurrentGovernment returns the most recent government snapshot for the
// country, or nil when none was ever recorded.
func (r *CountryRepo) CurrentGovernment(countryID int64) (*domain.GovernmentSnapshot, error) {
	query := `SELECT date, personality, gov_type, authority, ethics, civics
		FROM governments WHERE country_id = ? ORDER BY date DESC LIMIT 1`

	var g domain.GovernmentSnapshot
	var ethics, civics string
	err := r.db.QueryRow(query, countryID).Scan(
		&g.Date, &g.Personality, &g.GovType, &g.Authority, &ethics, &civics)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query government for country %d: %w", countryID, err)
	}

	g.Ethics = utils.ParseCSV(ethics)
	g.Civics = utils.ParseCSV(civics)
	return &g, nil
}

// MostRecentDiplomacy returns the most recent diplomacy snapshot for the
// country, or nil when none was ever recorded.
func (r *CountryRepo) MostRecentDiplomacy(countryID int64) (*domain.DiplomacySnapshot, error) {
	query := `SELECT date, attitude, has_research_agreement, has_sensor_link, has_rivalry,
			has_defensive_pact, has_migration_treaty, has_federation,
			has_non_aggression_pact, has_closed_borders
		FROM country_data WHERE country_id = ? ORDER BY date DESC LIMIT 1`

	var d domain.DiplomacySnapshot
	err := r.db.QueryRow(query, countryID).Scan(
		&d.Date, &d.Attitude, &d.HasResearchAgreement, &d.HasSensorLink, &d.HasRivalry,
		&d.HasDefensivePact, &d.HasMigrationTreaty, &d.HasFederation,
		&d.HasNonAggressionPact, &d.HasClosedBorders)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query diplomacy for country %d: %w", countryID, err)
	}

	return &d, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCountry(s scanner) (domain.Country, error) {
	var c domain.Country
	var contact sql.NullInt64
	if err := s.Scan(&c.CountryID, &c.Name, &c.CountryType, &c.IsPlayer, &contact); err != nil {
		return domain.Country{}, err
	}
	if contact.Valid {
		days := int(contact.Int64)
		c.FirstPlayerContactDate = &days
	}
	return c, nil
}
