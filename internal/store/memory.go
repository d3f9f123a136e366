package store

import (
	"github.com/pkg/errors"
	"sync"

	"github.com/i474232898/knmi-hourly/internal/knmi"
)

var (
	// ErrNotFound is returned when no dataset or run is available.
	ErrNotFound = errors.New("not found")
)

// RunHistory is a concurrency-safe in-memory list of run summaries, oldest first.
type RunHistory struct {
	mu sync.RWMutex

	runs []*knmi.Summary

	// retention configuration
	maxHistory int // max number of summaries kept
}

// NewRunHistory creates a new RunHistory.
// If maxHistory is <= 0, it is treated as unlimited.
func NewRunHistory(maxHistory int) *RunHistory {
	return &RunHistory{maxHistory: maxHistory}
}

// SaveRun appends a summary and enforces retention.
func (h *RunHistory) SaveRun(summary *knmi.Summary) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.runs = append(h.runs, summary)

	if h.maxHistory > 0 && len(h.runs) > h.maxHistory {
		over := len(h.runs) - h.maxHistory
		h.runs = h.runs[over:]
	}
}

// Latest returns the most recent summary.
func (h *RunHistory) Latest() (*knmi.Summary, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.runs) == 0 {
		return nil, ErrNotFound
	}
	return h.runs[len(h.runs)-1], nil
}

// Get returns the summary of a specific run.
func (h *RunHistory) Get(runID string) (*knmi.Summary, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := len(h.runs) - 1; i >= 0; i-- {
		if h.runs[i].RunID == runID {
			return h.runs[i], nil
		}
	}
	return nil, ErrNotFound
}

// Len returns the number of summaries kept.
func (h *RunHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.runs)
}
