package reactor

import (
	"errors"
	"log/slog"
	"time"
)

// Stats is a snapshot of the reactor for status reporting.
type Stats struct {
	Backend       string
	OutputDir     string
	State         State
	StartedAt     time.Time
	Notifications int64
	Saved         int64
	Duplicates    int64
	Failures      int64
	LastFile      string
	LastSavedAt   time.Time
	LastError     string
}

// Stats returns a copy of the current counters. Safe for concurrent use.
func (r *Reactor) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.State = r.state
	return s
}

// State returns the step the current reaction is in.
func (r *Reactor) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reactor) begin() {
	r.mu.Lock()
	r.stats.Notifications++
	r.mu.Unlock()
}

func (r *Reactor) enter(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Reactor) saved(path string) {
	r.mu.Lock()
	r.stats.Saved++
	r.stats.LastFile = path
	r.stats.LastSavedAt = r.clock()
	r.mu.Unlock()
}

// finish logs a failure with the step it happened in and returns to idle.
func (r *Reactor) finish(outcome Outcome, err error) {
	r.mu.Lock()
	failedIn := r.state
	r.state = StateIdle
	switch outcome {
	case OutcomeDuplicate:
		r.stats.Duplicates++
	case OutcomeFailed:
		r.stats.Failures++
		r.stats.LastError = err.Error()
	}
	r.mu.Unlock()

	if err == nil {
		return
	}
	attrs := []any{"state", failedIn.String(), "err", err}
	if cause := errors.Unwrap(err); cause != nil {
		attrs = append(attrs, "cause", cause)
	}
	slog.Error("unable to process clipboard", attrs...)
}
