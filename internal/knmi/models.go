package knmi

import (
	"fmt"
	"strings"
	"time"
)

// Station is a fixed KNMI observation site.
type Station struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// StationRange is the half-open range [Begin, End) of station ids to fetch.
type StationRange struct {
	Begin int `json:"begin"`
	End   int `json:"end"`
}

// Len returns the number of station ids in the range.
func (r StationRange) Len() int {
	if r.End <= r.Begin {
		return 0
	}
	return r.End - r.Begin
}

// FetchTask identifies one remote archive: a station and a decade window.
type FetchTask struct {
	StationID int    `json:"station"`
	Period    string `json:"period"`
}

// FileName returns the archive file name on the KNMI server.
func (t FetchTask) FileName() string {
	return fmt.Sprintf("uurgeg_%d_%s.zip", t.StationID, t.Period)
}

// URL renders the archive location below base.
func (t FetchTask) URL(base string) string {
	return strings.TrimRight(base, "/") + "/" + t.FileName()
}

// OutcomeKind classifies the result of a single fetch.
type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "success"
	OutcomeNotFound       OutcomeKind = "not_found"
	OutcomeEmpty          OutcomeKind = "empty"
	OutcomeTransportError OutcomeKind = "transport_error"
	// OutcomeMergeFailure is only ever recorded by the orchestrator, never
	// returned by a Fetcher.
	OutcomeMergeFailure OutcomeKind = "merge_failure"
)

// Outcome is the tagged result of one FetchTask.
// Payload is only set for OutcomeSuccess, Err only for OutcomeTransportError.
type Outcome struct {
	Kind    OutcomeKind
	Payload []byte
	Err     error
}

// Success wraps an archive payload.
func Success(payload []byte) Outcome {
	return Outcome{Kind: OutcomeSuccess, Payload: payload}
}

// NotFound reports a station/period combination the server does not have.
func NotFound() Outcome {
	return Outcome{Kind: OutcomeNotFound}
}

// Empty reports an empty response body.
func Empty() Outcome {
	return Outcome{Kind: OutcomeEmpty}
}

// TransportError reports a network or protocol failure.
func TransportError(err error) Outcome {
	return Outcome{Kind: OutcomeTransportError, Err: err}
}

// TaskResult is one line of a run account.
type TaskResult struct {
	Task  FetchTask   `json:"task"`
	Kind  OutcomeKind `json:"outcome"`
	Bytes int         `json:"bytes,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Summary is the account of one fetch run.
type Summary struct {
	RunID    string              `json:"runId"`
	Started  time.Time           `json:"started"`  // always UTC
	Finished time.Time           `json:"finished"` // always UTC
	Stations StationRange        `json:"stations"`
	Periods  []string            `json:"periods"`
	Results  []TaskResult        `json:"results"`
	Counts   map[OutcomeKind]int `json:"counts"`
}

// Duration returns how long the run took.
func (s *Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

// Failures returns the results that were neither a successful merge nor an
// expected absence (not found or empty).
func (s *Summary) Failures() []TaskResult {
	var out []TaskResult
	for _, r := range s.Results {
		if r.Kind == OutcomeTransportError || r.Kind == OutcomeMergeFailure {
			out = append(out, r)
		}
	}
	return out
}
