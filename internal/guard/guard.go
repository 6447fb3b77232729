// Package guard acquires exclusive clipboard access with a bounded retry
// while another application holds it.
package guard

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"go.klb.dev/clipshot/internal/clip"
	"go.klb.dev/clipshot/internal/fault"
)

const (
	DefaultRetries = 5
	DefaultDelay   = 5 * time.Millisecond
)

// Opener makes a single attempt to open the clipboard.
type Opener interface {
	Open() (clip.Session, error)
}

// Guard opens the clipboard, retrying only on fault.ClipboardBusy.
type Guard struct {
	opener  Opener
	retries int
	delay   time.Duration
	sleep   func(time.Duration)
}

// Option configures a Guard.
type Option func(*Guard)

// WithRetries sets the number of attempts made after the first busy one.
func WithRetries(n int) Option { return func(g *Guard) { g.retries = n } }

// WithDelay sets the pause between attempts.
func WithDelay(d time.Duration) Option { return func(g *Guard) { g.delay = d } }

// WithSleep replaces time.Sleep.
func WithSleep(fn func(time.Duration)) Option { return func(g *Guard) { g.sleep = fn } }

// New returns a Guard over o.
func New(o Opener, opts ...Option) *Guard {
	g := &Guard{
		opener:  o,
		retries: DefaultRetries,
		delay:   DefaultDelay,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire opens the clipboard. The sleep between attempts blocks the caller:
// reactions are serialised, so there is nothing else to run meanwhile.
func (g *Guard) Acquire() (*Handle, error) {
	s, err := g.opener.Open()
	if err == nil {
		return newHandle(s), nil
	}
	if !errors.Is(err, fault.ClipboardBusy) {
		return nil, err
	}

	slog.Info("clipboard is locked by another application")
	for i := 1; i <= g.retries; i++ {
		slog.Info("waiting for clipboard", "attempt", i, "of", g.retries)
		g.sleep(g.delay)

		s, err = g.opener.Open()
		if err == nil {
			return newHandle(s), nil
		}
		if !errors.Is(err, fault.ClipboardBusy) {
			return nil, err
		}
	}
	return nil, err
}

// Handle is exclusive clipboard access. Release must be called on every path
// after a successful Acquire; calling it again is a no-op.
type Handle struct {
	session clip.Session
	once    sync.Once
	err     error
}

func newHandle(s clip.Session) *Handle { return &Handle{session: s} }

// Bitmap returns the clipboard's image payload.
func (h *Handle) Bitmap() (image.Image, error) { return h.session.Bitmap() }

// Release closes the session once and returns the result of that close.
func (h *Handle) Release() error {
	h.once.Do(func() { h.err = h.session.Close() })
	return h.err
}
