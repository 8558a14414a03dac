package pipeline

import (
	"time"

	"github.com/seismoguard/quake-ingest/internal/domain"
)

// Per-source cycle outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeFetchError = "fetch_error"
	OutcomeTimeout    = "timeout"
	OutcomeShapeError = "shape_error"
)

// SourceReport is one source's diagnostic record for a polling cycle.
type SourceReport struct {
	Source       domain.Source `json:"source"`
	Outcome      string        `json:"outcome"`
	Error        string        `json:"error,omitempty"`
	UsedFallback bool          `json:"used_fallback,omitempty"`
	Fetched      int           `json:"fetched"`
	Admitted     int           `json:"admitted"`
	Duplicates   int           `json:"duplicates"`
	ParseErrors  int           `json:"parse_errors"`
	Alerts       int           `json:"alerts"`
}

// CycleReport aggregates one polling cycle's per-source outcomes and the
// post-merge visibility stats. It is the observability surface for failures
// that are deliberately swallowed on the data path.
type CycleReport struct {
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Sources   []SourceReport `json:"sources"`
	Stats     domain.Stats   `json:"stats"`
}

// TotalAdmitted sums admissions across all sources for the cycle.
func (r *CycleReport) TotalAdmitted() int {
	total := 0
	for _, s := range r.Sources {
		total += s.Admitted
	}
	return total
}
