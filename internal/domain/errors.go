package domain

import (
	"errors"
	"fmt"
)

// ErrUpstreamShape marks a payload whose top-level structure does not match
// the source's contract (missing result array, non-JSON body, and so on).
// The scheduler treats it like a transient fetch failure: skip the source
// this cycle, retry on the next.
var ErrUpstreamShape = errors.New("unexpected upstream payload shape")

// ErrUnknownSource is returned when Normalize is asked to handle a source
// tag it has no parser for.
var ErrUnknownSource = errors.New("unknown source")

// RecordError describes a single record within a batch that failed to parse.
// One malformed record never aborts the batch; the record is dropped and the
// error is collected into the batch report.
type RecordError struct {
	Source Source
	Index  int
	Err    error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("%s record %d: %v", e.Source, e.Index, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// BatchReport summarizes one source's normalization outcome for the cycle
// diagnostics.
type BatchReport struct {
	Source  Source
	Parsed  int
	Dropped []RecordError
}
