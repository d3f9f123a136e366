package archive

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

// ErrMerge is the sentinel every MergeError unwraps to.
var ErrMerge = errors.New("merge failure")

// MergeError reports malformed archive content or a failed append. The
// station's dataset may be partially written when it occurs.
type MergeError struct {
	StationID int
	Entry     string
	Err       error
}

func (e *MergeError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("merge station %d: %v", e.StationID, e.Err)
	}
	return fmt.Sprintf("merge station %d entry %s: %v", e.StationID, e.Entry, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrMerge) hold for every MergeError.
func (e *MergeError) Is(target error) bool { return target == ErrMerge }

// Appender persists normalized text for a station.
type Appender interface {
	Append(stationID int, text string) error
}

// Merger implements knmi.Merger on top of an Appender.
type Merger struct {
	out Appender

	mu      sync.Mutex
	locks   map[int]*sync.Mutex
	headers map[int]bool
}

// NewMerger creates a Merger writing to out.
func NewMerger(out Appender) *Merger {
	return &Merger{
		out:     out,
		locks:   make(map[int]*sync.Mutex),
		headers: make(map[int]bool),
	}
}

// Reset forgets every header written so far.
func (m *Merger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers = make(map[int]bool)
}

// Merge appends every text entry of a zip payload to the station's dataset.
// Only the first entry ever merged for a station since the last Reset keeps
// its header line. Merges of the same station are serialized.
func (m *Merger) Merge(stationID int, payload []byte) error {
	lock := m.stationLock(stationID)
	lock.Lock()
	defer lock.Unlock()

	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return &MergeError{StationID: stationID, Err: errors.Wrap(err, "open archive")}
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := m.mergeEntry(stationID, f); err != nil {
			return &MergeError{StationID: stationID, Entry: f.Name, Err: err}
		}
	}
	return nil
}

func (m *Merger) mergeEntry(stationID int, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return errors.Wrap(err, "open entry")
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return errors.Wrap(err, "read entry")
	}
	if !utf8.Valid(raw) {
		return errors.New("entry is not valid UTF-8 text")
	}

	first := !m.headerWritten(stationID)
	text, err := Normalize(string(raw), first)
	if err != nil {
		return err
	}
	if err := m.out.Append(stationID, text); err != nil {
		return err
	}
	if first {
		m.markHeader(stationID)
	}
	return nil
}

func (m *Merger) stationLock(stationID int) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[stationID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[stationID] = l
	}
	return l
}

func (m *Merger) headerWritten(stationID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.headers[stationID]
}

func (m *Merger) markHeader(stationID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[stationID] = true
}
