package domain

import "fmt"

// The in-game calendar has twelve 30-day months. Day 0 is 2200.01.01.
const (
	daysPerMonth = 30
	daysPerYear  = 360
	epochYear    = 2200
)

// DaysToDate formats a days-since-epoch value as an in-game date string
// "YYYY.MM.DD". Fractional days are truncated. Negative values roll back
// into the years before the epoch.
func DaysToDate(days float64) string {
	d := int(days)
	yearOffset := floorDiv(d, daysPerYear)
	d -= daysPerYear * yearOffset
	monthOffset := d / daysPerMonth
	year := epochYear + yearOffset
	month := monthOffset + 1
	day := d - daysPerMonth*monthOffset + 1
	return fmt.Sprintf("%d.%02d.%02d", year, month, day)
}

// floorDiv divides rounding towards negative infinity, so pre-epoch days
// land in the correct year.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
