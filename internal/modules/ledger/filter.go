package ledger

import (
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/rhaume/starledger/internal/domain"
)

// InvalidFilterValueError reports a query parameter that could not be
// parsed into the type its dimension requires. It is raised at filter
// construction so bad input fails before any database work.
type InvalidFilterValueError struct {
	Dimension string
	Value     string
}

func (e *InvalidFilterValueError) Error() string {
	return fmt.Sprintf("invalid %s filter value %q", e.Dimension, e.Value)
}

// EventFilter narrows the event ledger to a date range and, optionally, to
// single entities. Every dimension is independent; an unset dimension
// passes every event. Evaluation is a pure conjunction.
type EventFilter struct {
	MinDate float64
	MaxDate float64
	Country *int64
	Type    *domain.EventType
	War     *int64
	Leader  *int64
	System  *int64
	Planet  *int64
	Faction *int64
}

// NewEventFilter returns a filter that includes every event.
func NewEventFilter() *EventFilter {
	return &EventFilter{
		MinDate: math.Inf(-1),
		MaxDate: math.Inf(1),
	}
}

// FilterFromQuery builds an EventFilter from URL query parameters
// (min_date, max_date, country, type, war, leader, system, planet,
// faction). Returns an InvalidFilterValueError for non-numeric values on
// numeric dimensions.
func FilterFromQuery(q url.Values) (*EventFilter, error) {
	f := NewEventFilter()

	if raw := q.Get("min_date"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &InvalidFilterValueError{Dimension: "min_date", Value: raw}
		}
		f.MinDate = v
	}
	if raw := q.Get("max_date"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &InvalidFilterValueError{Dimension: "max_date", Value: raw}
		}
		f.MaxDate = v
	}

	ids := []struct {
		name string
		dest **int64
	}{
		{"country", &f.Country},
		{"war", &f.War},
		{"leader", &f.Leader},
		{"system", &f.System},
		{"planet", &f.Planet},
		{"faction", &f.Faction},
	}
	for _, dim := range ids {
		raw := q.Get(dim.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &InvalidFilterValueError{Dimension: dim.name, Value: raw}
		}
		*dim.dest = &v
	}

	if raw := q.Get("type"); raw != "" {
		t := domain.EventType(raw)
		f.Type = &t
	}

	return f, nil
}

// Include reports whether the event passes every provided dimension.
func (f *EventFilter) Include(event domain.HistoricalEvent) bool {
	start := float64(event.StartDateDays)
	if start < f.MinDate || start > f.MaxDate {
		return false
	}
	if f.Country != nil && *f.Country != event.CountryID {
		return false
	}
	if f.Type != nil && *f.Type != event.EventType {
		return false
	}
	if f.War != nil && !matchRef(event.WarID, *f.War) {
		return false
	}
	if f.Leader != nil && !matchRef(event.LeaderID, *f.Leader) {
		return false
	}
	if f.System != nil && !matchRef(event.SystemID, *f.System) {
		return false
	}
	if f.Planet != nil && !matchRef(event.PlanetID, *f.Planet) {
		return false
	}
	if f.Faction != nil && !matchRef(event.FactionID, *f.Faction) {
		return false
	}
	return true
}

// IsFiltered reports whether any entity dimension is set. Pages narrowed
// to an entity skip the war summaries.
func (f *EventFilter) IsFiltered() bool {
	return f.Country != nil || f.Type != nil || f.War != nil ||
		f.Leader != nil || f.System != nil || f.Planet != nil || f.Faction != nil
}

func matchRef(ref *int64, want int64) bool {
	return ref != nil && *ref == want
}
