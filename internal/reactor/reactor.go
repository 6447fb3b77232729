// Package reactor runs the capture pipeline once per clipboard notification:
// format check, guarded open, PNG extraction, duplicate check and persist.
// Every failure ends the reaction, is logged, and leaves the reactor ready
// for the next notification.
package reactor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.klb.dev/clipshot/internal/clip"
	"go.klb.dev/clipshot/internal/dedup"
	"go.klb.dev/clipshot/internal/extract"
	"go.klb.dev/clipshot/internal/guard"
	"go.klb.dev/clipshot/internal/persist"
)

// State is a step of a reaction.
type State int

const (
	StateIdle State = iota
	StateFormatCheck
	StateAcquiring
	StateExtracting
	StateComparing
	StatePersisting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFormatCheck:
		return "format-check"
	case StateAcquiring:
		return "acquiring"
	case StateExtracting:
		return "extracting"
	case StateComparing:
		return "comparing"
	case StatePersisting:
		return "persisting"
	default:
		return "unknown"
	}
}

// Outcome is how a reaction ended.
type Outcome int

const (
	OutcomeNoImage Outcome = iota
	OutcomeDuplicate
	OutcomeSaved
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoImage:
		return "no-image"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeSaved:
		return "saved"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config wires a Reactor.
type Config struct {
	Backend   clip.Backend
	Persister *persist.Persister
	// Clock defaults to time.Now.
	Clock persist.Clock
	// GuardOptions tune the clipboard retry.
	GuardOptions []guard.Option
}

// Reactor owns the dedup state; Handle must not be called concurrently.
type Reactor struct {
	backend   clip.Backend
	guard     *guard.Guard
	persister *persist.Persister
	clock     persist.Clock
	store     dedup.Store

	mu    sync.Mutex
	state State
	stats Stats
}

// New returns a Reactor with an empty dedup store.
func New(cfg Config) *Reactor {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Reactor{
		backend:   cfg.Backend,
		guard:     guard.New(cfg.Backend, cfg.GuardOptions...),
		persister: cfg.Persister,
		clock:     clock,
		stats: Stats{
			Backend:   cfg.Backend.Name(),
			OutputDir: cfg.Persister.Dir(),
			StartedAt: clock(),
		},
	}
}

// Run handles notifications from the backend one at a time, in delivery
// order, until ctx is done or the watch channel is closed.
func (r *Reactor) Run(ctx context.Context) error {
	events := r.backend.Watch()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-events:
			if !ok {
				return nil
			}
			r.Handle()
		}
	}
}

// Handle runs one reaction to completion and reports how it ended.
func (r *Reactor) Handle() Outcome {
	r.begin()
	outcome, err := r.react()
	r.finish(outcome, err)
	return outcome
}

func (r *Reactor) react() (Outcome, error) {
	r.enter(StateFormatCheck)
	if !r.backend.HasImage() {
		return OutcomeNoImage, nil
	}
	slog.Info("clipboard receives image")

	r.enter(StateAcquiring)
	h, err := r.guard.Acquire()
	if err != nil {
		return OutcomeFailed, err
	}

	r.enter(StateExtracting)
	img, err := r.extract(h)
	if err != nil {
		return OutcomeFailed, err
	}

	r.enter(StateComparing)
	if !r.store.IsNew(img) {
		slog.Info("new image is equal to old image")
		return OutcomeDuplicate, nil
	}

	r.enter(StatePersisting)
	path, err := r.persister.Persist(persist.Timestamp(r.clock()), img)
	if err != nil {
		return OutcomeFailed, err
	}
	r.store.Commit(img)
	slog.Info("image is saved", "file", path, "size_bytes", len(img))
	r.saved(path)
	return OutcomeSaved, nil
}

// extract holds the clipboard only for the encode; release runs on every path.
func (r *Reactor) extract(h *guard.Handle) (img extract.EncodedImage, err error) {
	defer func() {
		if rerr := h.Release(); rerr != nil {
			if err == nil {
				img, err = nil, rerr
			} else {
				err = errors.Join(err, rerr)
			}
		}
	}()
	return extract.PNG(h)
}
