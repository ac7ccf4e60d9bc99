package ledger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhaume/starledger/internal/domain"
)

type fakeCountryRepo struct {
	countries []domain.Country
	govs      map[int64]*domain.GovernmentSnapshot
	dips      map[int64]*domain.DiplomacySnapshot
}

func (f *fakeCountryRepo) AllOrdered() ([]domain.Country, error) {
	return f.countries, nil
}

func (f *fakeCountryRepo) CurrentGovernment(countryID int64) (*domain.GovernmentSnapshot, error) {
	return f.govs[countryID], nil
}

func (f *fakeCountryRepo) MostRecentDiplomacy(countryID int64) (*domain.DiplomacySnapshot, error) {
	return f.dips[countryID], nil
}

type fakeEventRepo struct {
	events    map[int64][]domain.HistoricalEvent
	countries map[int64]*domain.Country
	leaders   map[int64]*domain.Leader
	systems   map[int64]*domain.System
	planets   map[int64]*domain.Planet
	factions  map[int64]*domain.Faction
	warNames  map[int64]string
}

func (f *fakeEventRepo) ForCountry(countryID int64) ([]domain.HistoricalEvent, error) {
	return f.events[countryID], nil
}

func (f *fakeEventRepo) CountryByID(id int64) (*domain.Country, error) {
	return f.countries[id], nil
}

func (f *fakeEventRepo) LeaderByID(id int64) (*domain.Leader, error) {
	return f.leaders[id], nil
}

func (f *fakeEventRepo) SystemByID(id int64) (*domain.System, error) {
	return f.systems[id], nil
}

func (f *fakeEventRepo) PlanetByID(id int64) (*domain.Planet, error) {
	return f.planets[id], nil
}

func (f *fakeEventRepo) FactionByID(id int64) (*domain.Faction, error) {
	return f.factions[id], nil
}

func (f *fakeEventRepo) WarNameByID(id int64) (*string, error) {
	name, ok := f.warNames[id]
	if !ok {
		return nil, nil
	}
	return &name, nil
}

var _ domain.CountryRepository = (*fakeCountryRepo)(nil)
var _ domain.EventRepository = (*fakeEventRepo)(nil)

func intPtr(v int) *int       { return &v }
func idPtr(v int64) *int64    { return &v }
func testLog() zerolog.Logger { return zerolog.New(nil).Level(zerolog.Disabled) }

// fixtureRepos builds a small campaign: the player Blorg, the hostile
// Tzynn with a government and events, and the eventless Silent Ones.
func fixtureRepos() (*fakeCountryRepo, *fakeEventRepo) {
	countries := &fakeCountryRepo{
		countries: []domain.Country{
			{CountryID: 1, Name: "Blorg Commonality", CountryType: "default", IsPlayer: true, FirstPlayerContactDate: intPtr(0)},
			{CountryID: 2, Name: "Tzynn Empire", CountryType: "default", FirstPlayerContactDate: intPtr(120)},
			{CountryID: 3, Name: "Silent Ones", CountryType: "fallen_empire"},
		},
		govs: map[int64]*domain.GovernmentSnapshot{
			2: {
				Date:        600,
				Personality: "slaving_despots",
				GovType:     "gov_despotic_hegemony",
				Authority:   "auth_imperial",
				Ethics:      []string{"ethic_militarist", "ethic_authoritarian"},
				Civics:      []string{"civic_warrior_culture", "civic_slaver_guilds"},
			},
		},
		dips: map[int64]*domain.DiplomacySnapshot{
			2: {Date: 600, Attitude: "hostile", HasRivalry: true, HasClosedBorders: true},
			3: {Date: 10, Attitude: "enigmatic"},
		},
	}

	events := &fakeEventRepo{
		events: map[int64][]domain.HistoricalEvent{
			2: {
				{
					EventID: 11, CountryID: 2, EventType: "capital_relocated",
					StartDateDays: 50, EndDateDays: intPtr(200),
					LeaderID: idPtr(500), SystemID: idPtr(600),
					IsKnownToPlayer: true, Description: "moved the throneworld",
				},
				{
					EventID: 10, CountryID: 2, EventType: "colonized_planet",
					StartDateDays: 400, PlanetID: idPtr(700), IsKnownToPlayer: true,
				},
				{
					EventID: 12, CountryID: 2, EventType: "war_declared",
					StartDateDays: 650, WarID: idPtr(900), TargetCountryID: idPtr(1),
					FactionID: idPtr(800), IsKnownToPlayer: true,
				},
			},
		},
		countries: map[int64]*domain.Country{
			1: {CountryID: 1, Name: "Blorg Commonality", IsPlayer: true},
			2: {CountryID: 2, Name: "Tzynn Empire"},
		},
		leaders:  map[int64]*domain.Leader{500: {LeaderID: 500, Name: "Admiral Zarqlan"}},
		systems:  map[int64]*domain.System{600: {SystemID: 600, Name: "Tzynnia", OriginalName: "NAME_Tzynnia"}},
		planets:  map[int64]*domain.Planet{700: {PlanetID: 700, Name: "Tzynn Prime", SystemID: 600}},
		factions: map[int64]*domain.Faction{800: {FactionID: 800, Name: "Imperial Loyalists"}},
		warNames: map[int64]string{900: "Tzynn Subjugation War"},
	}

	return countries, events
}

func defaultOpts() domain.PresentationOptions {
	return domain.PresentationOptions{AllowBackdating: true}
}

func TestBuilderDetailsForPlayer(t *testing.T) {
	countries, events := fixtureRepos()
	b := NewBuilder(countries, events, testLog())

	ledger, err := b.Build("unity1", NewEventFilter(), defaultOpts())
	require.NoError(t, err)

	details := ledger.Details["Blorg Commonality"]
	require.NotNil(t, details)
	assert.Equal(t, "Default", details["Country Type"])
	assert.Equal(t, "Player Country", details["Attitude"])
	// The player gets no diplomacy summary towards themselves
	_, hasStatus := details["Diplomatic Status"]
	assert.False(t, hasStatus)
}

func TestBuilderDetailsGovernment(t *testing.T) {
	countries, events := fixtureRepos()
	b := NewBuilder(countries, events, testLog())

	ledger, err := b.Build("unity1", NewEventFilter(), defaultOpts())
	require.NoError(t, err)

	details := ledger.Details["Tzynn Empire"]
	require.NotNil(t, details)
	assert.Equal(t, "Slaving Despots", details["Personality"])
	assert.Equal(t, "Despotic Hegemony", details["Government Type"])
	// Authority ids are shown raw
	assert.Equal(t, "auth_imperial", details["Authority"])
	// Ethics and civics are sorted before conversion
	assert.Equal(t, "Authoritarian, Militarist", details["Ethics"])
	assert.Equal(t, "Slaver Guilds, Warrior Culture", details["Civics"])
}

func TestBuilderDetailsDiplomaticStatus(t *testing.T) {
	countries, events := fixtureRepos()
	b := NewBuilder(countries, events, testLog())

	ledger, err := b.Build("unity1", NewEventFilter(), defaultOpts())
	require.NoError(t, err)

	// Agreements render in fixed order regardless of flag layout
	assert.Equal(t, "hostile", ledger.Details["Tzynn Empire"]["Attitude"])
	assert.Equal(t, "Rivalry, Closed Borders", ledger.Details["Tzynn Empire"]["Diplomatic Status"])

	// No active agreements renders as "None"
	assert.Equal(t, "None", ledger.Details["Silent Ones"]["Diplomatic Status"])
}

func TestBuilderEventsAndLinks(t *testing.T) {
	countries, events := fixtureRepos()
	b := NewBuilder(countries, events, testLog())

	ledger, err := b.Build("unity1", NewEventFilter(), defaultOpts())
	require.NoError(t, err)

	entries := ledger.Events["Tzynn Empire"]
	require.Len(t, entries, 3)

	relocated := entries[0]
	assert.Equal(t, "Capital Relocated", relocated.EventType)
	assert.Equal(t, "2200.02.21", relocated.StartDate)
	assert.Equal(t, "2200.07.21", relocated.EndDate)
	assert.Equal(t, "Admiral Zarqlan", relocated.Leader)
	assert.Equal(t, "Tzynnia", relocated.System)
	assert.Equal(t, "moved the throneworld", relocated.Description)

	war := entries[2]
	assert.Equal(t, "Tzynn Subjugation War", war.War)
	assert.Equal(t, "Blorg Commonality", war.TargetCountry)
	assert.Equal(t, "Imperial Loyalists", war.Faction)

	// Every country gets a link up front, exact anchor format
	assert.Equal(t, `<a class="textlink" href=/history/unity1?country=2>Tzynn Empire</a>`, ledger.Links["Tzynn Empire"])
	assert.Contains(t, ledger.Links, "Silent Ones")

	// Referenced leaders and systems get links; planets and factions do not
	assert.Equal(t, `<a class="textlink" href=/history/unity1?leader=500>Admiral Zarqlan</a>`, ledger.Links["Admiral Zarqlan"])
	assert.Equal(t, `<a class="textlink" href=/history/unity1?system=600>Tzynnia</a>`, ledger.Links["Tzynnia"])
	assert.NotContains(t, ledger.Links, "Tzynn Prime")
	assert.NotContains(t, ledger.Links, "Imperial Loyalists")
}

func TestBuilderSystemInheritedFromPlanet(t *testing.T) {
	countries, events := fixtureRepos()
	b := NewBuilder(countries, events, testLog())

	ledger, err := b.Build("unity1", NewEventFilter(), defaultOpts())
	require.NoError(t, err)

	colonized := ledger.Events["Tzynn Empire"][1]
	assert.Equal(t, "Tzynn Prime", colonized.Planet)
	// The event only referenced the planet; the system comes from it
	assert.Equal(t, "Tzynnia", colonized.System)
}

func TestBuilderCountriesWithoutEventsStayInDetails(t *testing.T) {
	countries, events := fixtureRepos()
	b := NewBuilder(countries, events, testLog())

	ledger, err := b.Build("unity1", NewEventFilter(), defaultOpts())
	require.NoError(t, err)

	assert.NotContains(t, ledger.Events, "Silent Ones")
	assert.NotContains(t, ledger.Events, "Blorg Commonality")
	assert.Contains(t, ledger.Details, "Silent Ones")
	assert.Contains(t, ledger.Links, "Silent Ones")
}

func TestBuilderFilterDropsCountryFromEvents(t *testing.T) {
	countries, events := fixtureRepos()
	b := NewBuilder(countries, events, testLog())

	typ := domain.EventType("no_such_type")
	filter := NewEventFilter()
	filter.Type = &typ

	ledger, err := b.Build("unity1", filter, defaultOpts())
	require.NoError(t, err)

	// All events filtered away: gone from Events, kept in Details/Links
	assert.Empty(t, ledger.Events)
	assert.Contains(t, ledger.Details, "Tzynn Empire")
	assert.Contains(t, ledger.Links, "Tzynn Empire")
}

func TestBuilderHidesUnknownEvents(t *testing.T) {
	countries, events := fixtureRepos()
	events.events[2] = append(events.events[2], domain.HistoricalEvent{
		EventID: 13, CountryID: 2, EventType: "secret_pact",
		StartDateDays: 100, IsKnownToPlayer: false,
	})
	b := NewBuilder(countries, events, testLog())

	ledger, err := b.Build("unity1", NewEventFilter(), defaultOpts())
	require.NoError(t, err)
	require.Len(t, ledger.Events["Tzynn Empire"], 3)

	// The override reveals events the player never witnessed
	opts := defaultOpts()
	opts.ShowEverything = true
	ledger, err = b.Build("unity1", NewEventFilter(), opts)
	require.NoError(t, err)
	assert.Len(t, ledger.Events["Tzynn Empire"], 4)
}

func TestBuilderBackdating(t *testing.T) {
	countries, events := fixtureRepos()
	events.events[2] = []domain.HistoricalEvent{{
		EventID: 14, CountryID: 2, EventType: "founded",
		StartDateDays: -30, IsKnownToPlayer: true,
	}}
	b := NewBuilder(countries, events, testLog())

	// Back-dating allowed: the pre-campaign date renders as-is
	ledger, err := b.Build("unity1", NewEventFilter(), defaultOpts())
	require.NoError(t, err)
	entry := ledger.Events["Tzynn Empire"][0]
	assert.Equal(t, "2199.12.01", entry.StartDate)
	assert.Equal(t, "", entry.EndDate)

	// Disallowed: the rendered dates snap to day zero, both of them
	opts := defaultOpts()
	opts.AllowBackdating = false
	ledger, err = b.Build("unity1", NewEventFilter(), opts)
	require.NoError(t, err)
	entry = ledger.Events["Tzynn Empire"][0]
	assert.Equal(t, "2200.01.01", entry.StartDate)
	assert.Equal(t, "2200.01.01", entry.EndDate)
}

func TestBuilderBackdatingDoesNotAffectFiltering(t *testing.T) {
	countries, events := fixtureRepos()
	events.events[2] = []domain.HistoricalEvent{{
		EventID: 14, CountryID: 2, EventType: "founded",
		StartDateDays: -30, IsKnownToPlayer: true,
	}}
	b := NewBuilder(countries, events, testLog())

	// Filtering sees the true start date even when rendering snaps it
	q := NewEventFilter()
	q.MinDate = 0
	opts := defaultOpts()
	opts.AllowBackdating = false

	ledger, err := b.Build("unity1", q, opts)
	require.NoError(t, err)
	assert.Empty(t, ledger.Events)
}
