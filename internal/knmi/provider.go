package knmi

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidInput is returned for an unusable station range or period list.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRunInProgress is returned when a run is requested while another one is active.
	ErrRunInProgress = errors.New("a fetch run is already in progress")
)

// Fetcher abstracts the archive server.
// Implementations never return an error: every failure is folded into the Outcome.
type Fetcher interface {
	Fetch(ctx context.Context, url string) Outcome
}

// Merger appends an archive payload to a station's dataset.
type Merger interface {
	Merge(stationID int, payload []byte) error
	// Reset forgets which stations already have a header on disk.
	Reset()
}

// Output is the dataset location a run rebuilds from scratch.
type Output interface {
	Reset() error
}

// RunStore is the contract the run history must satisfy.
type RunStore interface {
	SaveRun(summary *Summary)
	Latest() (*Summary, error)
	Get(runID string) (*Summary, error)
}
