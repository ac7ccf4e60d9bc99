package charts

import (
	"fmt"
	"sort"

	"github.com/rhaume/starledger/internal/domain"
)

// SeriesSource yields the raw series of one campaign database. The gamedb
// series repository satisfies it.
type SeriesSource interface {
	Metric(metric string, onlyDefaultEmpires bool) ([]domain.NamedSeries, error)
	PlayerBudget(resource string) ([]domain.NamedSeries, error)
}

// Dataset loads the series a plot consumes. Per-country plots honor the
// only-default-empires option; budget item ids are converted to display
// names so traces read "Ship Maintenance" rather than "ship_maintenance".
func Dataset(src SeriesSource, spec PlotSpecification, opts domain.PresentationOptions) ([]domain.NamedSeries, error) {
	switch spec.DataKind {
	case KindMetric:
		series, err := src.Metric(spec.Metric, opts.OnlyShowDefaultEmpires)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s series: %w", spec.Metric, err)
		}
		return series, nil
	case KindBudget:
		series, err := src.PlayerBudget(spec.Metric)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s budget series: %w", spec.Metric, err)
		}
		for i := range series {
			series[i].Key = domain.ConvertIDToName(series[i].Key, "")
		}
		return series, nil
	default:
		return nil, fmt.Errorf("unknown data kind %q", spec.DataKind)
	}
}

// sortedByLastValue copies the dataset and orders it by descending final
// value, the order line and budget plots render in. The copy keeps
// transforms free of side effects on shared datasets; ties stay in source
// order.
func sortedByLastValue(dataset []domain.NamedSeries) []domain.NamedSeries {
	sorted := make([]domain.NamedSeries, len(dataset))
	copy(sorted, dataset)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastValue() > sorted[j].LastValue()
	})
	return sorted
}
