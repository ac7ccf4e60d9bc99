package gamedb

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/domain"
)

// SeriesRepo reads chart datasets: per-country metric time series and the
// player country's budget breakdowns.
type SeriesRepo struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSeriesRepo creates a series repository over a campaign database.
func NewSeriesRepo(db *sql.DB, log zerolog.Logger) *SeriesRepo {
	return &SeriesRepo{
		db:  db,
		log: log.With().Str("repo", "series").Logger(),
	}
}

// Metric returns one series per country for the given metric, keyed by
// country name, points date-ascending. Series arrive in ascending
// country_id order so dataset insertion order is stable across calls.
// When onlyDefaultEmpires is set, special country classes (fallen empires,
// marauders, enclaves) are left out.
func (r *SeriesRepo) Metric(metric string, onlyDefaultEmpires bool) ([]domain.NamedSeries, error) {
	query := `SELECT c.country_id, c.name, t.date_days, t.value
		FROM timeseries t
		JOIN countries c ON c.country_id = t.country_id
		WHERE t.metric = ?`
	args := []interface{}{metric}
	if onlyDefaultEmpires {
		query += ` AND c.country_type = ?`
		args = append(args, domain.DefaultCountryType)
	}
	query += ` ORDER BY c.country_id ASC, t.date_days ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric %s: %w", metric, err)
	}
	defer rows.Close()

	return collectSeries(rows, "metric "+metric)
}

// PlayerBudget returns one series per budget item of the given resource
// for the player country, keyed by raw item id, points date-ascending.
func (r *SeriesRepo) PlayerBudget(resource string) ([]domain.NamedSeries, error) {
	query := `SELECT b.item, b.item, b.date_days, b.value
		FROM budget_items b
		JOIN countries c ON c.country_id = b.country_id
		WHERE c.is_player = 1 AND b.resource = ?
		ORDER BY b.item ASC, b.date_days ASC`

	rows, err := r.db.Query(query, resource)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s budget: %w", resource, err)
	}
	defer rows.Close()

	return collectSeries(rows, resource+" budget")
}

// collectSeries folds (group, key, x, y) rows into NamedSeries, one per
// group, preserving the order groups first appear in.
func collectSeries(rows *sql.Rows, what string) ([]domain.NamedSeries, error) {
	var series []domain.NamedSeries
	index := make(map[string]int)
	for rows.Next() {
		var group, key string
		var x, y float64
		if err := rows.Scan(&group, &key, &x, &y); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", what, err)
		}
		i, ok := index[group]
		if !ok {
			i = len(series)
			index[group] = i
			series = append(series, domain.NamedSeries{Key: key})
		}
		series[i].X = append(series[i].X, x)
		series[i].Y = append(series[i].Y, y)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", what, err)
	}

	return series, nil
}
