// Package domain provides the core read-side models of a campaign database.
package domain

import (
	"fmt"
	"strings"
)

// Unclaimed is the placeholder owner for systems and hyperlanes no country
// controls. It is distinct from every real country name.
const Unclaimed = "Unclaimed"

// Country is a playable or AI empire in a campaign.
type Country struct {
	CountryID              int64  `json:"country_id"`
	Name                   string `json:"name"`
	CountryType            string `json:"country_type"`
	IsPlayer               bool   `json:"is_player"`
	FirstPlayerContactDate *int   `json:"first_player_contact_date,omitempty"`
}

// DefaultCountryType marks regular empires, as opposed to fallen empires,
// marauders and other special country classes.
const DefaultCountryType = "default"

// GovernmentSnapshot is a country's government at one point in time.
type GovernmentSnapshot struct {
	Date        int      `json:"date"`
	Personality string   `json:"personality"`
	GovType     string   `json:"gov_type"`
	Authority   string   `json:"authority"`
	Ethics      []string `json:"ethics"`
	Civics      []string `json:"civics"`
}

// DiplomacySnapshot is a country's diplomatic standing towards the player
// at one point in time.
type DiplomacySnapshot struct {
	Date                 int    `json:"date"`
	Attitude             string `json:"attitude"`
	HasResearchAgreement bool   `json:"has_research_agreement"`
	HasSensorLink        bool   `json:"has_sensor_link"`
	HasRivalry           bool   `json:"has_rivalry"`
	HasDefensivePact     bool   `json:"has_defensive_pact"`
	HasMigrationTreaty   bool   `json:"has_migration_treaty"`
	HasFederation        bool   `json:"has_federation"`
	HasNonAggressionPact bool   `json:"has_non_aggression_pact"`
	HasClosedBorders     bool   `json:"has_closed_borders"`
}

// EventType identifies the kind of a historical event. Values are
// snake_case identifiers as stored in the campaign database.
type EventType string

// Label returns the human-readable form of the event type.
func (t EventType) Label() string {
	return ConvertIDToName(string(t), "")
}

// HistoricalEvent is an immutable fact recorded during ingestion. Optional
// references are nil when the event does not involve that entity.
type HistoricalEvent struct {
	EventID         int64
	CountryID       int64
	EventType       EventType
	StartDateDays   int
	EndDateDays     *int
	WarID           *int64
	LeaderID        *int64
	SystemID        *int64
	PlanetID        *int64
	FactionID       *int64
	TargetCountryID *int64
	IsKnownToPlayer bool
	Description     string
}

// Leader is a named scientist, admiral, governor or ruler.
type Leader struct {
	LeaderID int64  `json:"leader_id"`
	Name     string `json:"name"`
}

// System is a star system with a fixed galactic position.
type System struct {
	SystemID     int64   `json:"system_id"`
	Name         string  `json:"name"`
	OriginalName string  `json:"original_name"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
}

// Planet belongs to a system.
type Planet struct {
	PlanetID int64  `json:"planet_id"`
	Name     string `json:"name"`
	SystemID int64  `json:"system_id"`
}

// Faction is an internal political faction of a country.
type Faction struct {
	FactionID int64  `json:"faction_id"`
	Name      string `json:"name"`
}

// CombatType identifies the kind of a combat event.
type CombatType string

const (
	// CombatTypeShips is a fleet engagement in space.
	CombatTypeShips CombatType = "ships"
	// CombatTypeArmies is ground combat. Ground combat is always notable
	// because its war exhaustion accounting differs from fleet combat.
	CombatTypeArmies CombatType = "armies"
)

// Combat is a single engagement within a war.
type Combat struct {
	Date                  int
	CombatType            CombatType
	AttackerWarExhaustion float64
	DefenderWarExhaustion float64
	System                string
	Planet                string
}

// String renders the combat for the war summary log.
func (c Combat) String() string {
	location := c.System
	if c.CombatType == CombatTypeArmies && c.Planet != "" {
		location = c.Planet
	}
	var b strings.Builder
	b.WriteString(DaysToDate(float64(c.Date)))
	if c.CombatType == CombatTypeArmies {
		b.WriteString(": Ground combat")
	} else {
		b.WriteString(": Fleet combat")
	}
	if location != "" {
		fmt.Fprintf(&b, " at %s", location)
	}
	fmt.Fprintf(&b, " (exhaustion %.2f vs %.2f)", c.AttackerWarExhaustion, c.DefenderWarExhaustion)
	return b.String()
}

// WarParticipant is one country's side in a war, in recorded join order.
// FirstPlayerContactDate mirrors the country record so war visibility can
// be decided without a second lookup.
type WarParticipant struct {
	CountryID              int64
	CountryName            string
	IsAttacker             bool
	FirstPlayerContactDate *int
}

// War groups participants and combat events between a start and an
// optional end date. A nil end date means the war is still ongoing.
type War struct {
	WarID         int64
	Name          string
	StartDateDays int
	EndDateDays   *int
	Participants  []WarParticipant
	Combats       []Combat
}

// Hyperlane is an edge between two systems. Ownership is derived from the
// endpoints at query time, it is not stored per lane.
type Hyperlane struct {
	SystemA int64
	SystemB int64
}

// OwnershipChange records that a system changed hands on a given day.
// Owner is Unclaimed when control lapsed. Slices of changes are kept
// date-ascending so point-in-time lookups can binary search.
type OwnershipChange struct {
	Date  int
	Owner string
}

// NamedSeries is one key's time series within a plot dataset. X is
// days-since-epoch, non-decreasing; series of the same dataset are sampled
// independently and may differ in length and domain.
type NamedSeries struct {
	Key string
	X   []float64
	Y   []float64
}

// LastValue returns the final Y value, or 0 for an empty series.
func (s NamedSeries) LastValue() float64 {
	if len(s.Y) == 0 {
		return 0
	}
	return s.Y[len(s.Y)-1]
}

// AllZero reports whether every Y value is exactly zero.
func (s NamedSeries) AllZero() bool {
	for _, v := range s.Y {
		if v != 0 {
			return false
		}
	}
	return true
}

// GameInfo describes one discovered campaign database.
type GameInfo struct {
	GameID         string `json:"game_id"`
	PlayerCountry  string `json:"player_country"`
	MostRecentDate int    `json:"most_recent_date"`
	NumSnapshots   int    `json:"num_snapshots"`
}

// PresentationOptions carries the viewer-facing flags into each builder
// call. Builders never read configuration ambiently; a snapshot of these
// options is taken per request so re-running a transform with unchanged
// options yields identical output.
type PresentationOptions struct {
	ShowEverything         bool
	AllowBackdating        bool
	OnlyShowDefaultEmpires bool
}
