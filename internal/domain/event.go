package domain

// Source identifies one upstream seismic data provider. Each source has a
// distinct native schema that the corresponding parser maps onto QuakeEvent.
type Source string

const (
	SourceUSGS      Source = "USGS"
	SourceEMSC      Source = "EMSC"
	SourceAFAD      Source = "AFAD"
	SourceKandilli  Source = "KANDILLI"
	SourceKRDAE     Source = "KRDAE"
	SourceSimulated Source = "SIMULATED"
)

// QuakeEvent is the canonical normalized seismic event record. ID is unique
// within a source's namespace and stable across repeated fetches of the same
// physical event; it is the deduplication key.
type QuakeEvent struct {
	ID        string  `json:"id"`
	Source    Source  `json:"source"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Magnitude float64 `json:"magnitude"`
	DepthKm   float64 `json:"depth_km"`
	Place     string  `json:"place"`

	// OccurredAt is the origin time in epoch milliseconds. It is the sort
	// key for time-window filtering; the working log itself is kept in
	// discovery order, not origin-time order.
	OccurredAt int64 `json:"occurred_at_ms"`

	// DisplayTime is a pre-rendered HH:MM:SS string carried for list and
	// popup rendering.
	DisplayTime string `json:"display_time,omitempty"`
}
