package charts

import (
	"fmt"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/rhaume/starledger/internal/domain"
	"github.com/rhaume/starledger/internal/modules/colors"
)

// Trace is one plotly scatter series, shaped the way the frontend consumes
// it. Unset attributes stay out of the payload.
type Trace struct {
	X         []float64  `json:"x"`
	Y         []float64  `json:"y"`
	Name      string     `json:"name"`
	Text      []string   `json:"text,omitempty"`
	Fill      string     `json:"fill,omitempty"`
	FillColor string     `json:"fillcolor,omitempty"`
	HoverInfo string     `json:"hoverinfo,omitempty"`
	Line      *TraceLine `json:"line,omitempty"`
}

// TraceLine styles the line of a scatter trace.
type TraceLine struct {
	Color string `json:"color"`
}

// Transformer builds the traces of a plot from its dataset. It never
// mutates the dataset, so transforming the same input twice yields the
// same output.
type Transformer struct {
	log zerolog.Logger
}

func NewTransformer(log zerolog.Logger) *Transformer {
	return &Transformer{
		log: log.With().Str("builder", "charts").Logger(),
	}
}

// Transform dispatches on the plot style. Series whose values are all zero
// never appear in the output, whatever the style.
func (t *Transformer) Transform(spec PlotSpecification, dataset []domain.NamedSeries) []Trace {
	switch spec.Style {
	case StyleLine:
		return t.lineTraces(spec, dataset)
	case StyleStacked:
		return t.stackedTraces(dataset)
	case StyleBudget:
		return t.budgetTraces(dataset)
	default:
		t.log.Warn().
			Str("plot_id", spec.PlotID).
			Str("style", string(spec.Style)).
			Msg("Unknown plot style, returning no traces")
		return []Trace{}
	}
}

// lineTraces renders each series as an independent line, largest final
// value first so the legend order matches the right edge of the plot.
func (t *Transformer) lineTraces(spec PlotSpecification, dataset []domain.NamedSeries) []Trace {
	traces := make([]Trace, 0, len(dataset))
	for _, series := range sortedByLastValue(dataset) {
		if series.AllZero() {
			continue
		}
		x, y := series.X, series.Y
		if spec.Smoothing > 1 {
			x, y = smoothed(x, y, spec.Smoothing)
		}
		text := make([]string, len(y))
		for i, v := range y {
			text[i] = fmt.Sprintf("%.2f - %s", v, series.Key)
		}
		traces = append(traces, Trace{
			X:    x,
			Y:    y,
			Name: series.Key,
			Text: text,
			Line: &TraceLine{Color: colors.ForCountry(series.Key, 1.0)},
		})
	}
	return traces
}

// stackedTraces accumulates series in dataset order. Each trace carries the
// running total so far and fills down to the previous one; hover text shows
// the raw per-series value instead of the cumulative height.
func (t *Transformer) stackedTraces(dataset []domain.NamedSeries) []Trace {
	var cumulative []float64
	traces := make([]Trace, 0, len(dataset))
	for _, series := range dataset {
		if series.AllZero() {
			continue
		}
		if cumulative == nil {
			cumulative = make([]float64, len(series.Y))
		}
		// Series are sampled independently and may be shorter than the
		// ones stacked so far. Stack over the common prefix.
		if len(series.Y) < len(cumulative) {
			cumulative = cumulative[:len(series.Y)]
		}
		floats.Add(cumulative, series.Y[:len(cumulative)])

		n := len(cumulative)
		y := make([]float64, n)
		copy(y, cumulative)
		traces = append(traces, Trace{
			X:         series.X[:n],
			Y:         y,
			Name:      series.Key,
			Text:      rawValueText(series.Y[:n], series.Key),
			Fill:      "tonexty",
			FillColor: colors.ForCountry(series.Key, 0.75),
			HoverInfo: "x+text",
			Line:      &TraceLine{Color: colors.ForCountry(series.Key, 1.0)},
		})
	}
	return traces
}

// budgetTraces stacks income series above zero and expense series below it,
// largest final value first, and closes with a white net-gain line. A
// series mixing positive and negative values cannot be stacked on either
// side; it aborts the remaining series so the plot never lies about totals.
func (t *Transformer) budgetTraces(dataset []domain.NamedSeries) []Trace {
	var netGain, posStack, negStack []float64
	posInitiated := false
	traces := make([]Trace, 0, len(dataset))

	for _, series := range sortedByLastValue(dataset) {
		if series.AllZero() {
			continue
		}
		if netGain == nil {
			netGain = make([]float64, len(series.Y))
			posStack = make([]float64, len(series.Y))
			negStack = make([]float64, len(series.Y))
		}

		var stack []float64
		fill := "tozeroy"
		switch {
		case allNonPositive(series.Y):
			stack = negStack
		case allNonNegative(series.Y):
			stack = posStack
			if posInitiated {
				fill = "tonexty"
			}
			posInitiated = true
		default:
			t.log.Warn().
				Str("series", series.Key).
				Msg("Series mixes income and expense values, not a stackable budget")
			return appendNetGain(traces, netGain)
		}

		n := len(series.Y)
		if n > len(stack) {
			n = len(stack)
		}
		floats.Add(stack[:n], series.Y[:n])
		floats.Add(netGain[:n], series.Y[:n])

		y := make([]float64, len(stack))
		copy(y, stack)
		traces = append(traces, Trace{
			X:         series.X,
			Y:         y,
			Name:      series.Key,
			Text:      rawValueText(series.Y, series.Key),
			Fill:      fill,
			FillColor: colors.ForCountry(series.Key, 0.3),
			HoverInfo: "x+text",
			Line:      &TraceLine{Color: colors.ForCountry(series.Key, 1.0)},
		})
	}
	return appendNetGain(traces, netGain)
}

// appendNetGain closes a budget plot with the sum of all stacked series.
// Nothing is appended when no series survived.
func appendNetGain(traces []Trace, netGain []float64) []Trace {
	if len(traces) == 0 {
		return traces
	}
	text := make([]string, len(netGain))
	for i, v := range netGain {
		text[i] = fmt.Sprintf("%.2f - net gain", v)
	}
	return append(traces, Trace{
		X:         traces[0].X,
		Y:         netGain,
		Name:      "Net gain",
		Text:      text,
		HoverInfo: "x+text",
		Line:      &TraceLine{Color: "rgba(255,255,255,1)"},
	})
}

// smoothed replaces y with its simple moving average and trims the warm-up
// points that have no full window yet. Series shorter than the window pass
// through unchanged.
func smoothed(x, y []float64, window int) ([]float64, []float64) {
	if len(y) < window {
		return x, y
	}
	sma := talib.Sma(y, window)
	return x[window-1:], sma[window-1:]
}

// rawValueText labels each point with its own value rather than the
// cumulative stack height. Zero points stay blank so hover text only
// appears where the series contributes.
func rawValueText(values []float64, key string) []string {
	text := make([]string, len(values))
	for i, v := range values {
		if v != 0 {
			text[i] = fmt.Sprintf("%.2f - %s", v, key)
		}
	}
	return text
}

func allNonPositive(values []float64) bool {
	for _, v := range values {
		if v > 0 {
			return false
		}
	}
	return true
}

func allNonNegative(values []float64) bool {
	for _, v := range values {
		if v < 0 {
			return false
		}
	}
	return true
}
