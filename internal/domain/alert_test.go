package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testSettings() Settings {
	return Settings{
		Latitude:          39.93,
		Longitude:         32.85,
		RadiusKm:          500,
		MinMagnitude:      0,
		TimeWindowHours:   24,
		AlertThreshold:    4.5,
		CriticalThreshold: 6.0,
	}
}

func TestEvaluateAlert(t *testing.T) {
	ev := QuakeEvent{
		ID:        "q1",
		Latitude:  39.95, // a few km from the user
		Longitude: 32.86,
		Magnitude: 5.0,
	}

	t.Run("within radius above threshold", func(t *testing.T) {
		d := EvaluateAlert(ev, testSettings())
		assert.True(t, d.Alert)
		assert.Less(t, d.DistanceKm, 10.0)
	})

	t.Run("outside radius", func(t *testing.T) {
		s := testSettings()
		s.RadiusKm = 1
		d := EvaluateAlert(ev, s)
		assert.False(t, d.Alert)
	})

	t.Run("below threshold", func(t *testing.T) {
		s := testSettings()
		weak := ev
		weak.Magnitude = 4.4
		d := EvaluateAlert(weak, s)
		assert.False(t, d.Alert)
	})

	t.Run("exactly at threshold and radius edge", func(t *testing.T) {
		s := testSettings()
		border := ev
		border.Magnitude = 4.5
		d := EvaluateAlert(border, s)
		assert.True(t, d.Alert)
	})
}

func TestVisible(t *testing.T) {
	now := time.Date(2023, 11, 15, 0, 0, 0, 0, time.UTC)
	fresh := QuakeEvent{Latitude: 39.95, Longitude: 32.86, Magnitude: 3.0, OccurredAt: now.Add(-time.Hour).UnixMilli()}

	t.Run("passes all filters", func(t *testing.T) {
		assert.True(t, Visible(fresh, testSettings(), now))
	})

	t.Run("too old", func(t *testing.T) {
		old := fresh
		old.OccurredAt = now.Add(-25 * time.Hour).UnixMilli()
		assert.False(t, Visible(old, testSettings(), now))
	})

	t.Run("too far", func(t *testing.T) {
		far := fresh
		far.Latitude = 52.52 // Berlin
		far.Longitude = 13.40
		assert.False(t, Visible(far, testSettings(), now))
	})

	t.Run("below minimum magnitude", func(t *testing.T) {
		s := testSettings()
		s.MinMagnitude = 4.0
		assert.False(t, Visible(fresh, s, now))
	})
}

func TestVisibleStats(t *testing.T) {
	now := time.Date(2023, 11, 15, 0, 0, 0, 0, time.UTC)
	recent := func(mag, lat, lon float64) QuakeEvent {
		return QuakeEvent{Latitude: lat, Longitude: lon, Magnitude: mag, OccurredAt: now.Add(-time.Hour).UnixMilli()}
	}

	t.Run("aggregates visible events", func(t *testing.T) {
		events := []QuakeEvent{
			recent(3.0, 39.95, 32.86),
			recent(5.1, 39.80, 32.90),
			recent(4.2, 40.00, 33.00),
		}
		stats := VisibleStats(events, testSettings(), now)
		assert.Equal(t, 3, stats.Count)
		assert.Equal(t, 5.1, stats.MaxMagnitude)
		assert.False(t, stats.Critical)
	})

	t.Run("critical when max visible magnitude reaches threshold", func(t *testing.T) {
		events := []QuakeEvent{recent(6.0, 39.95, 32.86)}
		stats := VisibleStats(events, testSettings(), now)
		assert.True(t, stats.Critical)
	})

	t.Run("critical scope is filtered, not global", func(t *testing.T) {
		// A magnitude-7 event outside the radius must not trip critical
		// mode even though it was admitted.
		events := []QuakeEvent{
			recent(7.0, 52.52, 13.40), // far away
			recent(4.0, 39.95, 32.86),
		}
		stats := VisibleStats(events, testSettings(), now)
		assert.Equal(t, 1, stats.Count)
		assert.Equal(t, 4.0, stats.MaxMagnitude)
		assert.False(t, stats.Critical)
	})

	t.Run("empty log", func(t *testing.T) {
		stats := VisibleStats(nil, testSettings(), now)
		assert.Equal(t, Stats{MaxMagnitude: 0, Count: 0, Critical: false}, stats)
	})
}
