// Package timeutil computes weekend-excluded ("business") durations.
package timeutil

import "time"

// BusinessTime is the weekend-excluded duration of an interval.
// BusinessDays is BusinessHours/24, not a calendar-day count.
type BusinessTime struct {
	BusinessHours float64 `json:"business_hours"`
	BusinessDays  float64 `json:"business_days"`
	TotalHours    float64 `json:"total_hours"`
}

// Business returns the business time elapsed between start and end.
// A zero start or an end before start yields an all-zero result; that is
// the contract callers rely on for malformed or future-dated input.
func Business(start, end time.Time) BusinessTime {
	if start.IsZero() || end.Before(start) {
		return BusinessTime{}
	}

	total := end.Sub(start).Hours()

	// Walk day by day from the midnight containing start, clipping partial
	// first/last days to [start, end] and skipping Saturday/Sunday.
	var business float64
	cursor := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())

	for cursor.Before(end) {
		nextDay := cursor.AddDate(0, 0, 1)

		effStart := cursor
		if effStart.Before(start) {
			effStart = start
		}
		effEnd := nextDay
		if effEnd.After(end) {
			effEnd = end
		}

		if dow := cursor.Weekday(); dow != time.Saturday && dow != time.Sunday {
			business += effEnd.Sub(effStart).Hours()
		}
		cursor = nextDay
	}

	return BusinessTime{
		BusinessHours: business,
		BusinessDays:  business / 24,
		TotalHours:    total,
	}
}
