package domain

import (
	"sync"
	"time"
)

// RunState is the freshness state of a model's processed data.
type RunState int

const (
	// RunUpToDate means the last processed run is still the latest available.
	RunUpToDate RunState = iota
	// RunStale means a newer run is available and the pipeline should fire.
	RunStale
)

func (s RunState) String() string {
	if s == RunStale {
		return "stale"
	}
	return "up_to_date"
}

// RunChangeDetector decides whether newly available raw data supersedes what
// has already been processed, gating pipeline invocation. It tracks a
// two-state machine per model and has no side effects beyond that bookkeeping;
// persisting the last processed run is the storage layer's job.
type RunChangeDetector struct {
	mu     sync.Mutex
	states map[string]RunState
}

// NewRunChangeDetector creates a detector with every model up to date.
func NewRunChangeDetector() *RunChangeDetector {
	return &RunChangeDetector{states: make(map[string]RunState)}
}

// Check transitions the model to stale and returns true when the latest
// available run supersedes the last processed one. A zero lastProcessed means
// nothing was ever processed, which always counts as stale. Equal timestamps
// are up to date.
func (d *RunChangeDetector) Check(model string, lastProcessed, latest time.Time) bool {
	stale := lastProcessed.IsZero() || latest.After(lastProcessed)

	d.mu.Lock()
	defer d.mu.Unlock()
	if stale {
		d.states[model] = RunStale
	} else {
		d.states[model] = RunUpToDate
	}
	return stale
}

// MarkProcessed transitions the model back to up to date after a successful
// pipeline run.
func (d *RunChangeDetector) MarkProcessed(model string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states[model] = RunUpToDate
}

// State reports the model's current state. Models never checked are up to
// date.
func (d *RunChangeDetector) State(model string) RunState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.states[model]
}
