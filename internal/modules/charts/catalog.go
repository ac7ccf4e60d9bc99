// Package charts turns raw campaign time series into plotly-ready scatter
// traces. The catalog below is the single source of truth for which plots
// exist, how each one is styled and which table feeds it; handlers and the
// dashboard frontend both enumerate it rather than hard-coding plot ids.
package charts

// PlotStyle selects the trace-building strategy for a plot.
type PlotStyle string

const (
	// StyleLine renders every series as an independent line.
	StyleLine PlotStyle = "line"
	// StyleStacked renders series stacked on top of each other.
	StyleStacked PlotStyle = "stacked"
	// StyleBudget stacks incomes above zero and expenses below it.
	StyleBudget PlotStyle = "budget"
)

// DataKind selects which table a plot reads its series from.
type DataKind string

const (
	// KindMetric yields one series per country from the timeseries table.
	KindMetric DataKind = "metric"
	// KindBudget yields one series per budget item of the player country.
	KindBudget DataKind = "budget"
)

// PlotSpecification describes one plot of the catalog. Metric names the
// timeseries metric for KindMetric plots and the budget resource for
// KindBudget plots. Smoothing > 1 applies a simple moving average of that
// window to every line series.
type PlotSpecification struct {
	PlotID    string    `json:"plot_id"`
	Title     string    `json:"title"`
	Style     PlotStyle `json:"style"`
	DataKind  DataKind  `json:"-"`
	Metric    string    `json:"-"`
	Smoothing int       `json:"-"`
}

// PlotGroup is one thematic tab of the dashboard.
type PlotGroup struct {
	Category string              `json:"category"`
	Plots    []PlotSpecification `json:"plots"`
}

// Catalog lists every plot the dashboard serves, grouped by theme. Order
// is meaningful: the frontend renders tabs and plots as listed here.
var Catalog = []PlotGroup{
	{
		Category: "Budget",
		Plots: []PlotSpecification{
			{PlotID: "energy_budget", Title: "Energy Budget", Style: StyleBudget, DataKind: KindBudget, Metric: "energy"},
			{PlotID: "mineral_budget", Title: "Mineral Budget", Style: StyleBudget, DataKind: KindBudget, Metric: "minerals"},
			{PlotID: "food_budget", Title: "Food Budget", Style: StyleBudget, DataKind: KindBudget, Metric: "food"},
		},
	},
	{
		Category: "Economy",
		Plots: []PlotSpecification{
			{PlotID: "net_energy_income", Title: "Net Energy Income", Style: StyleLine, DataKind: KindMetric, Metric: "net_energy_income"},
			{PlotID: "net_mineral_income", Title: "Net Mineral Income", Style: StyleLine, DataKind: KindMetric, Metric: "net_mineral_income"},
			{PlotID: "net_food_income", Title: "Net Food Income", Style: StyleLine, DataKind: KindMetric, Metric: "net_food_income"},
		},
	},
	{
		Category: "Population",
		Plots: []PlotSpecification{
			{PlotID: "pop_count", Title: "Population Count", Style: StyleLine, DataKind: KindMetric, Metric: "pop_count"},
			{PlotID: "galaxy_pop_distribution", Title: "Galaxy Population Distribution", Style: StyleStacked, DataKind: KindMetric, Metric: "pop_count"},
		},
	},
	{
		Category: "Science",
		Plots: []PlotSpecification{
			{PlotID: "tech_count", Title: "Researched Technologies", Style: StyleLine, DataKind: KindMetric, Metric: "tech_count", Smoothing: 5},
			{PlotID: "research_output", Title: "Research Output", Style: StyleStacked, DataKind: KindMetric, Metric: "research_output"},
		},
	},
	{
		Category: "Military",
		Plots: []PlotSpecification{
			{PlotID: "fleet_size", Title: "Fleet Size", Style: StyleLine, DataKind: KindMetric, Metric: "fleet_size"},
			{PlotID: "military_power", Title: "Military Power", Style: StyleLine, DataKind: KindMetric, Metric: "military_power"},
		},
	},
	{
		Category: "Victory",
		Plots: []PlotSpecification{
			{PlotID: "victory_rank", Title: "Victory Rank (Lower is Better)", Style: StyleLine, DataKind: KindMetric, Metric: "victory_rank"},
		},
	},
}

// PlotByID looks a specification up by its id. Returns nil when the
// catalog has no such plot.
func PlotByID(plotID string) *PlotSpecification {
	for _, group := range Catalog {
		for i := range group.Plots {
			if group.Plots[i].PlotID == plotID {
				return &group.Plots[i]
			}
		}
	}
	return nil
}
