package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/parcel-simulator/model"
)

// ErrRunNotFound is returned when no snapshots were recorded for a run.
var ErrRunNotFound = errors.New("run not found")

// Snapshot is one recorded world state of a run.
type Snapshot struct {
	RunID     string
	Turn      int
	Place     model.Location
	Direction model.Location
	// Legal is false when the robot proposed a move along a missing road.
	// Turn 0 snapshots have no direction and are always legal.
	Legal   bool
	Parcels []model.Parcel
}

// History is an in-memory, thread-safe store of per-run world snapshots.
// Recorded parcel slices are copied, so callers may keep using theirs.
type History struct {
	mu sync.RWMutex

	runs map[string][]Snapshot

	subs []func(Snapshot)
}

// NewHistory constructs an empty history.
func NewHistory() *History {
	return &History{
		runs: make(map[string][]Snapshot),
	}
}

// Record appends a snapshot to its run and notifies subscribers. Turns must
// be recorded in increasing order per run.
func (h *History) Record(s Snapshot) error {
	h.mu.Lock()
	snaps := h.runs[s.RunID]
	if n := len(snaps); n > 0 && snaps[n-1].Turn >= s.Turn {
		h.mu.Unlock()
		return fmt.Errorf("run %q: turn %d recorded after turn %d", s.RunID, s.Turn, snaps[n-1].Turn)
	}
	s.Parcels = append([]model.Parcel(nil), s.Parcels...)
	h.runs[s.RunID] = append(snaps, s)
	subs := append([]func(Snapshot){}, h.subs...)
	h.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
	return nil
}

// Snapshots returns a copy of the snapshots recorded for runID.
func (h *History) Snapshots(runID string) ([]Snapshot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snaps, ok := h.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}
	return append([]Snapshot(nil), snaps...), nil
}

// Last returns the most recent snapshot of runID.
func (h *History) Last(runID string) (Snapshot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snaps, ok := h.runs[runID]
	if !ok || len(snaps) == 0 {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}
	return snaps[len(snaps)-1], nil
}

// Subscribe registers a callback invoked after every recorded snapshot.
func (h *History) Subscribe(fn func(Snapshot)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, fn)
}
