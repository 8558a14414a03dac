package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Per-source payload shapes. Each upstream gets its own typed struct rather
// than shape-sniffing a generic map; the Normalize dispatch table picks one
// based on the source tag.

// usgsFeed is the GeoJSON FeatureCollection served by the USGS summary feed.
type usgsFeed struct {
	Features []usgsFeature `json:"features"`
}

type usgsFeature struct {
	ID       string `json:"id"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
	} `json:"geometry"`
	Properties struct {
		Mag   float64 `json:"mag"`
		Place string  `json:"place"`
		Time  int64   `json:"time"` // epoch millis
	} `json:"properties"`
}

// emscFeed is the FDSN event query response from the EMSC seismic portal.
// Same GeoJSON geometry as USGS, but the id lives in properties.unid and the
// origin time is an ISO string.
type emscFeed struct {
	Features []emscFeature `json:"features"`
}

type emscFeature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
	} `json:"geometry"`
	Properties struct {
		Mag         float64 `json:"mag"`
		FlynnRegion string  `json:"flynn_region"`
		Time        string  `json:"time"` // ISO 8601
		UnID        string  `json:"unid"`
	} `json:"properties"`
}

// afadRecord is one element of the flat array served by the AFAD event API.
// All numeric fields arrive as strings.
type afadRecord struct {
	EventID   string `json:"eventId"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Magnitude string `json:"magnitude"`
	Location  string `json:"location"`
	Depth     string `json:"depth"`
	EventDate string `json:"eventDate"`
}

// kandilliFeed is the wrapped result array of the Kandilli live JSON API.
type kandilliFeed struct {
	Status bool             `json:"status"`
	Result []kandilliRecord `json:"result"`
}

type kandilliRecord struct {
	DateTime string `json:"date_time"` // "2024.01.02 11:22:33", unique per event
	GeoJSON  struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat]
	} `json:"geojson"`
	Mag   float64 `json:"mag"`
	Title string  `json:"title"`
	Depth float64 `json:"depth"`
}

func parseUSGS(payload []byte) ([]QuakeEvent, BatchReport, error) {
	report := BatchReport{Source: SourceUSGS}

	var feed usgsFeed
	if err := json.Unmarshal(payload, &feed); err != nil || feed.Features == nil {
		return nil, report, shapeError(err)
	}

	events := make([]QuakeEvent, 0, len(feed.Features))
	for i, f := range feed.Features {
		if f.ID == "" {
			report.Dropped = append(report.Dropped, RecordError{Source: SourceUSGS, Index: i, Err: errors.New("missing feature id")})
			continue
		}
		lat, lon, depth, err := splitCoordinates(f.Geometry.Coordinates)
		if err != nil {
			report.Dropped = append(report.Dropped, RecordError{Source: SourceUSGS, Index: i, Err: err})
			continue
		}
		events = append(events, QuakeEvent{
			ID:          f.ID,
			Source:      SourceUSGS,
			Latitude:    lat,
			Longitude:   lon,
			Magnitude:   f.Properties.Mag,
			DepthKm:     depth,
			Place:       f.Properties.Place,
			OccurredAt:  f.Properties.Time,
			DisplayTime: displayTime(f.Properties.Time),
		})
	}
	report.Parsed = len(events)
	return events, report, nil
}

func parseEMSC(payload []byte) ([]QuakeEvent, BatchReport, error) {
	report := BatchReport{Source: SourceEMSC}

	var feed emscFeed
	if err := json.Unmarshal(payload, &feed); err != nil || feed.Features == nil {
		return nil, report, shapeError(err)
	}

	events := make([]QuakeEvent, 0, len(feed.Features))
	for i, f := range feed.Features {
		if f.Properties.UnID == "" {
			report.Dropped = append(report.Dropped, RecordError{Source: SourceEMSC, Index: i, Err: errors.New("missing unid")})
			continue
		}
		lat, lon, depth, err := splitCoordinates(f.Geometry.Coordinates)
		if err != nil {
			report.Dropped = append(report.Dropped, RecordError{Source: SourceEMSC, Index: i, Err: err})
			continue
		}
		ts, err := parseISOTime(f.Properties.Time)
		if err != nil {
			report.Dropped = append(report.Dropped, RecordError{Source: SourceEMSC, Index: i, Err: err})
			continue
		}
		events = append(events, QuakeEvent{
			ID:          f.Properties.UnID,
			Source:      SourceEMSC,
			Latitude:    lat,
			Longitude:   lon,
			Magnitude:   f.Properties.Mag,
			DepthKm:     depth,
			Place:       f.Properties.FlynnRegion,
			OccurredAt:  ts,
			DisplayTime: displayTime(ts),
		})
	}
	report.Parsed = len(events)
	return events, report, nil
}

func parseAFAD(payload []byte) ([]QuakeEvent, BatchReport, error) {
	report := BatchReport{Source: SourceAFAD}

	var records []afadRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, report, shapeError(err)
	}

	events := make([]QuakeEvent, 0, len(records))
	for i, r := range records {
		if r.EventID == "" {
			report.Dropped = append(report.Dropped, RecordError{Source: SourceAFAD, Index: i, Err: errors.New("missing eventId")})
			continue
		}
		ts, err := parseISOTime(r.EventDate)
		if err != nil {
			report.Dropped = append(report.Dropped, RecordError{Source: SourceAFAD, Index: i, Err: err})
			continue
		}
		events = append(events, QuakeEvent{
			// Namespaced to avoid collisions with other sources' ids.
			ID:          "afad-" + r.EventID,
			Source:      SourceAFAD,
			Latitude:    parseFloatOrZero(r.Latitude),
			Longitude:   parseFloatOrZero(r.Longitude),
			Magnitude:   parseFloatOrZero(r.Magnitude),
			DepthKm:     parseFloatOrZero(r.Depth),
			Place:       r.Location,
			OccurredAt:  ts,
			DisplayTime: displayTime(ts),
		})
	}
	report.Parsed = len(events)
	return events, report, nil
}

func parseKandilli(payload []byte) ([]QuakeEvent, BatchReport, error) {
	report := BatchReport{Source: SourceKandilli}

	var feed kandilliFeed
	if err := json.Unmarshal(payload, &feed); err != nil || !feed.Status || feed.Result == nil {
		return nil, report, shapeError(err)
	}

	events := make([]QuakeEvent, 0, len(feed.Result))
	for i, r := range feed.Result {
		if r.DateTime == "" {
			report.Dropped = append(report.Dropped, RecordError{Source: SourceKandilli, Index: i, Err: errors.New("missing date_time")})
			continue
		}
		if len(r.GeoJSON.Coordinates) < 2 {
			report.Dropped = append(report.Dropped, RecordError{Source: SourceKandilli, Index: i, Err: errors.New("missing coordinates")})
			continue
		}
		// "2024.01.02 11:22:33" becomes ISO-parseable once the dot
		// separators are swapped for dashes.
		ts, err := parseDottedDateTime(r.DateTime)
		if err != nil {
			report.Dropped = append(report.Dropped, RecordError{Source: SourceKandilli, Index: i, Err: err})
			continue
		}
		events = append(events, QuakeEvent{
			// The upstream date_time string is unique per event and is
			// used verbatim as the id.
			ID:          r.DateTime,
			Source:      SourceKandilli,
			Latitude:    r.GeoJSON.Coordinates[1],
			Longitude:   r.GeoJSON.Coordinates[0],
			Magnitude:   r.Mag,
			DepthKm:     r.Depth,
			Place:       r.Title,
			OccurredAt:  ts,
			DisplayTime: secondField(r.DateTime),
		})
	}
	report.Parsed = len(events)
	return events, report, nil
}

// splitCoordinates unpacks a GeoJSON [lon, lat, depth] triple. Depth is
// optional; two-element coordinates yield depth 0.
func splitCoordinates(coords []float64) (lat, lon, depth float64, err error) {
	if len(coords) < 2 {
		return 0, 0, 0, fmt.Errorf("coordinates have %d elements, need at least 2", len(coords))
	}
	lon, lat = coords[0], coords[1]
	if len(coords) >= 3 {
		depth = coords[2]
	}
	return lat, lon, depth, nil
}

// parseFloatOrZero parses a string as float64, returning 0 on failure.
func parseFloatOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// isoTimeLayouts covers the timestamp variants seen across the JSON feeds:
// full RFC 3339, and zone-less date-times with either a T or space separator.
var isoTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.9",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseISOTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unparseable timestamp %q", s)
}

// parseDottedDateTime handles "2006.01.02 15:04:05" style timestamps.
func parseDottedDateTime(s string) (int64, error) {
	return parseISOTime(strings.ReplaceAll(s, ".", "-"))
}

// secondField returns the second whitespace-separated token, used to pull the
// clock time out of a combined "date time" string.
func secondField(s string) string {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

func displayTime(epochMillis int64) string {
	if epochMillis == 0 {
		return ""
	}
	return time.UnixMilli(epochMillis).UTC().Format("15:04:05")
}

func shapeError(err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamShape, err)
	}
	return ErrUpstreamShape
}
