package domain

import "time"

// AlertDecision is the outcome of evaluating one newly admitted event against
// the current user settings.
type AlertDecision struct {
	Alert      bool    `json:"alert"`
	DistanceKm float64 `json:"distance_km"`
}

// EvaluateAlert decides whether an event warrants an alert: within the user's
// radius and at or above the alert magnitude threshold. The siren itself is
// the caller's concern.
func EvaluateAlert(ev QuakeEvent, s Settings) AlertDecision {
	dist := DistanceKm(s.Latitude, s.Longitude, ev.Latitude, ev.Longitude)
	return AlertDecision{
		Alert:      dist <= s.RadiusKm && ev.Magnitude >= s.AlertThreshold,
		DistanceKm: dist,
	}
}

// Visible reports whether an event passes the user's active time-window,
// radius, and minimum-magnitude filters. The same predicate drives list and
// map rendering.
func Visible(ev QuakeEvent, s Settings, now time.Time) bool {
	cutoff := now.UnixMilli() - int64(s.TimeWindowHours)*3600_000
	if ev.OccurredAt < cutoff {
		return false
	}
	dist := DistanceKm(s.Latitude, s.Longitude, ev.Latitude, ev.Longitude)
	return dist <= s.RadiusKm && ev.Magnitude >= s.MinMagnitude
}

// Stats aggregates the currently visible events.
type Stats struct {
	MaxMagnitude float64 `json:"max_visible_magnitude"`
	Count        int     `json:"visible_count"`
	Critical     bool    `json:"critical"`
}

// VisibleStats recomputes the aggregate stats over the visible subset of
// events. Critical mode is scoped to visible events, not all admitted ones:
// an off-screen magnitude never triggers the escalation.
func VisibleStats(events []QuakeEvent, s Settings, now time.Time) Stats {
	var stats Stats
	for _, ev := range events {
		if !Visible(ev, s, now) {
			continue
		}
		stats.Count++
		if ev.Magnitude > stats.MaxMagnitude {
			stats.MaxMagnitude = ev.Magnitude
		}
	}
	stats.Critical = stats.MaxMagnitude >= s.CriticalThreshold
	return stats
}
