package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// The raw KRDAE feed is a human-readable monospaced table: a preamble, a
// separator line of dashes, then one whitespace-delimited row per event:
//
//	2024.01.02 11:22:33  39.1200  27.3400   7.0  -.-  3.5  -.-  SOMEWHERE (DISTRICT)  İlksel
//
// Columns: date, time, lat, lon, depth, MD, ML, MW, place..., optional
// revision qualifier. Different magnitude-scale columns are populated
// depending on availability; "-.-" marks an absent scale.

const krdaeMissingMagnitude = "-.-"

// krdaeQualifiers are trailing tokens that qualify a row rather than naming a
// place: the localized "preliminary/felt" marker and the revised flag. The
// İlksel marker is matched on its ASCII tail to sidestep the dotted-capital-İ
// casing problem.
var krdaeQualifiers = []string{"lksel", "REVIZE"}

// ParseKRDAEText parses the raw monospaced KRDAE table into final
// QuakeEvents. Rows that fail to parse are dropped individually and collected
// into the report; a malformed row never aborts the batch. A payload with no
// dashed separator line is a shape error.
func ParseKRDAEText(text string) ([]QuakeEvent, BatchReport, error) {
	report := BatchReport{Source: SourceKRDAE}

	lines := strings.Split(text, "\n")
	start := -1
	for i, l := range lines {
		if strings.Contains(l, "----------") {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, report, fmt.Errorf("%w: no dashed header separator", ErrUpstreamShape)
	}

	var events []QuakeEvent
	for i := start; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if len(line) < 10 {
			continue // blank or trailer line, not a data row
		}
		ev, err := parseKRDAERow(line)
		if err != nil {
			report.Dropped = append(report.Dropped, RecordError{Source: SourceKRDAE, Index: i - start, Err: err})
			continue
		}
		events = append(events, ev)
	}
	report.Parsed = len(events)
	return events, report, nil
}

func parseKRDAERow(line string) (QuakeEvent, error) {
	p := strings.Fields(line)
	if len(p) < 9 {
		return QuakeEvent{}, fmt.Errorf("truncated row: %d fields", len(p))
	}

	lat, err := strconv.ParseFloat(p[2], 64)
	if err != nil {
		return QuakeEvent{}, fmt.Errorf("latitude %q: %w", p[2], err)
	}
	lon, err := strconv.ParseFloat(p[3], 64)
	if err != nil {
		return QuakeEvent{}, fmt.Errorf("longitude %q: %w", p[3], err)
	}
	depth, err := strconv.ParseFloat(p[4], 64)
	if err != nil {
		return QuakeEvent{}, fmt.Errorf("depth %q: %w", p[4], err)
	}

	ts, err := parseISOTime(strings.ReplaceAll(p[0], ".", "-") + "T" + p[1])
	if err != nil {
		return QuakeEvent{}, err
	}

	place := p[8:]
	if last := place[len(place)-1]; hasQualifierSuffix(last) {
		place = place[:len(place)-1]
	}
	if len(place) == 0 {
		return QuakeEvent{}, errors.New("empty place")
	}

	return QuakeEvent{
		// The feed carries no native id; date+time is stable and unique.
		ID:          "raw-" + p[0] + "-" + p[1],
		Source:      SourceKRDAE,
		Latitude:    lat,
		Longitude:   lon,
		Magnitude:   pickKRDAEMagnitude(p),
		DepthKm:     depth,
		Place:       strings.Join(place, " "),
		OccurredAt:  ts,
		DisplayTime: p[1],
	}, nil
}

// pickKRDAEMagnitude walks the magnitude fallback chain ML (index 6) → MD
// (index 5) → MW (index 7), taking the first column holding a real number.
// All absent means magnitude 0.
func pickKRDAEMagnitude(p []string) float64 {
	for _, idx := range []int{6, 5, 7} {
		if v, ok := parseKRDAEMagnitude(p[idx]); ok {
			return v
		}
	}
	return 0
}

func parseKRDAEMagnitude(s string) (float64, bool) {
	if s == krdaeMissingMagnitude {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func hasQualifierSuffix(token string) bool {
	for _, q := range krdaeQualifiers {
		if strings.Contains(token, q) {
			return true
		}
	}
	return false
}
