package domain

// Read-only query interfaces over one campaign database. Implementations
// live in the module packages; builders depend only on these so their
// behavior can be exercised against in-memory fixtures.

// CountryRepository resolves countries and their most recent snapshots.
type CountryRepository interface {
	// AllOrdered returns every country ordered by ascending country_id.
	AllOrdered() ([]Country, error)

	// CurrentGovernment returns the most recent government snapshot for
	// the country, or nil when none was ever recorded.
	CurrentGovernment(countryID int64) (*GovernmentSnapshot, error)

	// MostRecentDiplomacy returns the most recent diplomacy snapshot for
	// the country, or nil when none was ever recorded.
	MostRecentDiplomacy(countryID int64) (*DiplomacySnapshot, error)
}

// EventRepository resolves historical events and the entities they link to.
type EventRepository interface {
	// ForCountry returns the country's events ordered by ascending
	// start_date_days.
	ForCountry(countryID int64) ([]HistoricalEvent, error)

	CountryByID(id int64) (*Country, error)
	LeaderByID(id int64) (*Leader, error)
	SystemByID(id int64) (*System, error)
	PlanetByID(id int64) (*Planet, error)
	FactionByID(id int64) (*Faction, error)

	// WarNameByID returns just the war's display name, or nil when the id
	// does not resolve. Full war records come from WarRepository.
	WarNameByID(id int64) (*string, error)
}

// WarRepository resolves wars with participants and combat events.
type WarRepository interface {
	// AllOrdered returns every war ordered by ascending start_date_days,
	// participants in recorded order.
	AllOrdered() ([]War, error)
}

// GalaxyRepository resolves the galactic graph and its ownership history.
type GalaxyRepository interface {
	Systems() ([]System, error)
	Hyperlanes() ([]Hyperlane, error)

	// OwnershipHistory returns, per system id, the date-ascending list of
	// ownership changes.
	OwnershipHistory() (map[int64][]OwnershipChange, error)
}

// StateRepository reports campaign-wide snapshot state.
type StateRepository interface {
	// MostRecentDate returns the latest recorded in-game date in days, or
	// 0 when the campaign has no snapshots yet.
	MostRecentDate() (int, error)
}
