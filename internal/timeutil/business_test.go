package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBusiness(t *testing.T) {
	// 2025-06-02 is a Monday.
	monday := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	t.Run("zero interval", func(t *testing.T) {
		got := Business(monday, monday)
		assert.Zero(t, got.BusinessHours)
		assert.Zero(t, got.BusinessDays)
		assert.Zero(t, got.TotalHours)
	})

	t.Run("end before start", func(t *testing.T) {
		got := Business(monday, monday.Add(-time.Hour))
		assert.Equal(t, BusinessTime{}, got)
	})

	t.Run("zero start", func(t *testing.T) {
		got := Business(time.Time{}, monday)
		assert.Equal(t, BusinessTime{}, got)
	})

	t.Run("full week excludes weekend", func(t *testing.T) {
		got := Business(monday, monday.AddDate(0, 0, 7))
		assert.InDelta(t, 120.0, got.BusinessHours, 1e-9)
		assert.InDelta(t, 5.0, got.BusinessDays, 1e-9)
		assert.InDelta(t, 168.0, got.TotalHours, 1e-9)
	})

	t.Run("weekend only", func(t *testing.T) {
		saturday := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)
		got := Business(saturday, saturday.AddDate(0, 0, 2))
		assert.Zero(t, got.BusinessHours)
		assert.InDelta(t, 48.0, got.TotalHours, 1e-9)
	})

	t.Run("partial first and last days are clipped", func(t *testing.T) {
		// Monday 18:00 to Tuesday 06:00: 6h Monday + 6h Tuesday.
		start := monday.Add(18 * time.Hour)
		end := monday.Add(30 * time.Hour)
		got := Business(start, end)
		assert.InDelta(t, 12.0, got.BusinessHours, 1e-9)
		assert.InDelta(t, 12.0, got.TotalHours, 1e-9)
	})

	t.Run("friday evening into monday morning", func(t *testing.T) {
		friday := time.Date(2025, 6, 6, 20, 0, 0, 0, time.UTC)
		nextMonday := time.Date(2025, 6, 9, 4, 0, 0, 0, time.UTC)
		got := Business(friday, nextMonday)
		// 4h Friday + 4h Monday, weekend skipped.
		assert.InDelta(t, 8.0, got.BusinessHours, 1e-9)
		assert.InDelta(t, 80.0, got.TotalHours, 1e-9)
	})
}
