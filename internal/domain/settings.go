package domain

import "sync"

// Settings is the user-facing configuration read by the alert evaluator and
// the rendering surfaces.
type Settings struct {
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	RadiusKm          float64 `json:"radius_km"`
	MinMagnitude      float64 `json:"min_magnitude"`
	TimeWindowHours   int     `json:"time_window_hours"`
	AlertThreshold    float64 `json:"alert_threshold"`
	CriticalThreshold float64 `json:"critical_threshold"`
}

// SessionState guards the mutable user settings. Fetch completions read it
// concurrently while the settings surface mutates it, so all access goes
// through the mutex.
type SessionState struct {
	mu       sync.RWMutex
	settings Settings
}

func NewSessionState(s Settings) *SessionState {
	return &SessionState{settings: s}
}

// Snapshot returns a copy of the current settings.
func (st *SessionState) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.settings
}

// Replace swaps in a whole new settings value.
func (st *SessionState) Replace(s Settings) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.settings = s
}
