// Package clip provides the system clipboard collaborators used by the
// capture pipeline. Build constraints select the appropriate implementation:
//
//	clip_windows.go: Windows via golang.org/x/sys/windows + AddClipboardFormatListener
//	clip_unix.go   : macOS and Linux via golang.design/x/clipboard
//	clip_other.go  : unsupported platforms, New always fails
package clip

import "image"

// Backend is the interface that all platform clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// HasImage reports whether the clipboard currently advertises a
	// bitmap-compatible format. It does not open the clipboard.
	HasImage() bool

	// Open makes a single attempt to gain exclusive access to the clipboard.
	// A failure caused by another process holding the clipboard matches
	// fault.ClipboardBusy; any other failure matches fault.ClipboardAPI.
	Open() (Session, error)

	// Watch returns a channel that receives a signal whenever the clipboard
	// changes. Signals are coalesced: at most one is pending at a time.
	Watch() <-chan struct{}

	// Close stops change notification and releases any resources held by
	// the backend.
	Close()
}

// Session is exclusive access to the clipboard, obtained from Backend.Open.
type Session interface {
	// Bitmap returns the clipboard's image payload. Failures match fault.Extract.
	Bitmap() (image.Image, error)

	// Close gives up exclusive access.
	Close() error
}

// notify performs a non-blocking send, merging with any pending signal.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
