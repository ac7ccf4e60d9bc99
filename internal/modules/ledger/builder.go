package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/domain"
)

// EventEntry is one rendered event row. Only fields the event actually
// references are populated, so the JSON stays sparse.
type EventEntry struct {
	Country       string `json:"country,omitempty"`
	StartDate     string `json:"start_date,omitempty"`
	EndDate       string `json:"end_date,omitempty"`
	EventType     string `json:"event_type,omitempty"`
	War           string `json:"war,omitempty"`
	Leader        string `json:"leader,omitempty"`
	System        string `json:"system,omitempty"`
	Planet        string `json:"planet,omitempty"`
	Faction       string `json:"faction,omitempty"`
	TargetCountry string `json:"target_country,omitempty"`
	Description   string `json:"description,omitempty"`
}

// Ledger is the event history of one campaign, shaped for rendering.
// Events holds per-country event lists; countries without any surviving
// event are absent from it but still present in Details and Links.
// Links maps entity display names to preformatted anchor fragments.
type Ledger struct {
	Events  map[string][]EventEntry      `json:"events"`
	Details map[string]map[string]string `json:"country_details"`
	Links   map[string]string            `json:"links"`
}

// Builder assembles the event ledger for one campaign database.
type Builder struct {
	countries domain.CountryRepository
	events    domain.EventRepository
	log       zerolog.Logger
}

// NewBuilder creates a new ledger builder
func NewBuilder(countries domain.CountryRepository, events domain.EventRepository, log zerolog.Logger) *Builder {
	return &Builder{
		countries: countries,
		events:    events,
		log:       log.With().Str("builder", "ledger").Logger(),
	}
}

// agreements is the fixed-order table of diplomatic agreement labels shown
// in a country's "Diplomatic Status" line.
var agreements = []struct {
	label string
	flag  func(d *domain.DiplomacySnapshot) bool
}{
	{"Research Agreement", func(d *domain.DiplomacySnapshot) bool { return d.HasResearchAgreement }},
	{"Sensor Link", func(d *domain.DiplomacySnapshot) bool { return d.HasSensorLink }},
	{"Rivalry", func(d *domain.DiplomacySnapshot) bool { return d.HasRivalry }},
	{"Defensive Pact", func(d *domain.DiplomacySnapshot) bool { return d.HasDefensivePact }},
	{"Migration Treaty", func(d *domain.DiplomacySnapshot) bool { return d.HasMigrationTreaty }},
	{"Federation", func(d *domain.DiplomacySnapshot) bool { return d.HasFederation }},
	{"Non-aggression Pact", func(d *domain.DiplomacySnapshot) bool { return d.HasNonAggressionPact }},
	{"Closed Borders", func(d *domain.DiplomacySnapshot) bool { return d.HasClosedBorders }},
}

// Build walks every country in id order and assembles its attribute
// summary, its filtered event list and the cross-link fragments for every
// entity a surviving event references.
func (b *Builder) Build(gameID string, filter *EventFilter, opts domain.PresentationOptions) (*Ledger, error) {
	ledger := &Ledger{
		Events:  make(map[string][]EventEntry),
		Details: make(map[string]map[string]string),
		Links:   make(map[string]string),
	}

	countries, err := b.countries.AllOrdered()
	if err != nil {
		return nil, fmt.Errorf("failed to list countries: %w", err)
	}

	for _, country := range countries {
		ledger.Links[country.Name] = historyLink(country.Name, gameID, "country", country.CountryID)
		ledger.Details[country.Name] = b.countryDetails(country)

		entries, err := b.countryEvents(gameID, country, filter, opts, ledger.Links)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			ledger.Events[country.Name] = entries
		}
	}

	return ledger, nil
}

// countryDetails derives the human-readable attribute summary of a country.
func (b *Builder) countryDetails(country domain.Country) map[string]string {
	details := map[string]string{
		"Country Type": domain.ConvertIDToName(country.CountryType, ""),
	}

	gov, err := b.countries.CurrentGovernment(country.CountryID)
	if err != nil {
		b.log.Warn().Err(err).Int64("country_id", country.CountryID).Msg("Failed to load government")
	}
	if gov != nil {
		details["Personality"] = domain.ConvertIDToName(gov.Personality, "")
		details["Government Type"] = domain.ConvertIDToName(gov.GovType, "gov")
		details["Authority"] = gov.Authority
		details["Ethics"] = joinConverted(gov.Ethics, "ethic")
		details["Civics"] = joinConverted(gov.Civics, "civic")
	}

	if country.IsPlayer {
		details["Attitude"] = "Player Country"
		return details
	}

	dip, err := b.countries.MostRecentDiplomacy(country.CountryID)
	if err != nil {
		b.log.Warn().Err(err).Int64("country_id", country.CountryID).Msg("Failed to load diplomacy")
	}
	if dip != nil {
		details["Attitude"] = dip.Attitude

		var active []string
		for _, a := range agreements {
			if a.flag(dip) {
				active = append(active, a.label)
			}
		}
		status := strings.Join(active, ", ")
		if status == "" {
			status = "None"
		}
		details["Diplomatic Status"] = status
	}

	return details
}

// countryEvents projects one country's surviving events and records link
// fragments for the entities they mention.
func (b *Builder) countryEvents(gameID string, country domain.Country, filter *EventFilter, opts domain.PresentationOptions, links map[string]string) ([]EventEntry, error) {
	events, err := b.events.ForCountry(country.CountryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for country %d: %w", country.CountryID, err)
	}

	var entries []EventEntry
	for _, event := range events {
		if filter != nil && !filter.Include(event) {
			continue
		}
		if !opts.ShowEverything && !event.IsKnownToPlayer {
			continue
		}

		entry := EventEntry{
			Country:     country.Name,
			StartDate:   domain.DaysToDate(float64(event.StartDateDays)),
			EventType:   event.EventType.Label(),
			Description: event.Description,
		}
		if event.EndDateDays != nil {
			entry.EndDate = domain.DaysToDate(float64(*event.EndDateDays))
		}

		if event.WarID != nil {
			if name, err := b.events.WarNameByID(*event.WarID); err == nil && name != nil {
				entry.War = *name
			}
		}

		var system *domain.System
		if event.SystemID != nil {
			system, err = b.events.SystemByID(*event.SystemID)
			if err != nil {
				return nil, err
			}
		}

		if event.PlanetID != nil {
			planet, err := b.events.PlanetByID(*event.PlanetID)
			if err != nil {
				return nil, err
			}
			if planet != nil {
				entry.Planet = planet.Name
				// Events on a planet belong to its system too.
				if system == nil {
					system, err = b.events.SystemByID(planet.SystemID)
					if err != nil {
						return nil, err
					}
				}
			}
		}

		if system != nil {
			systemName := domain.ConvertIDToName(system.OriginalName, "NAME")
			entry.System = systemName
			links[systemName] = historyLink(systemName, gameID, "system", system.SystemID)
		}

		if event.LeaderID != nil {
			leader, err := b.events.LeaderByID(*event.LeaderID)
			if err != nil {
				return nil, err
			}
			if leader != nil {
				entry.Leader = leader.Name
				links[leader.Name] = historyLink(leader.Name, gameID, "leader", leader.LeaderID)
			}
		}

		if event.FactionID != nil {
			faction, err := b.events.FactionByID(*event.FactionID)
			if err != nil {
				return nil, err
			}
			if faction != nil {
				entry.Faction = faction.Name
			}
		}

		if event.TargetCountryID != nil {
			target, err := b.events.CountryByID(*event.TargetCountryID)
			if err != nil {
				return nil, err
			}
			if target != nil {
				entry.TargetCountry = target.Name
				links[target.Name] = historyLink(target.Name, gameID, "country", target.CountryID)
			}
		}

		// With back-dating disabled, events from before the campaign start
		// are displayed on day zero. The stored record keeps its real date.
		if !opts.AllowBackdating && event.StartDateDays < 0 {
			entry.StartDate = domain.DaysToDate(0)
			entry.EndDate = domain.DaysToDate(0)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// joinConverted converts each id with the prefix stripped and joins them
// sorted, so ethics and civics render in a stable order.
func joinConverted(ids []string, removePrefix string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	converted := make([]string, 0, len(sorted))
	for _, id := range sorted {
		converted = append(converted, domain.ConvertIDToName(id, removePrefix))
	}
	return strings.Join(converted, ", ")
}

// historyLink renders the anchor fragment pointing back at the ledger,
// narrowed to one entity.
func historyLink(text, gameID, param string, id int64) string {
	return fmt.Sprintf(`<a class="textlink" href=/history/%s?%s=%d>%s</a>`, gameID, param, id, text)
}
