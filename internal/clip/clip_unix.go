//go:build darwin || linux

package clip

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"runtime"

	"golang.design/x/clipboard"

	"go.klb.dev/clipshot/internal/fault"
)

type unixBackend struct {
	watchCh chan struct{}
	cancel  context.CancelFunc
}

// New returns the macOS/Linux clipboard backend. A clipboard that cannot be
// initialised (no display server, missing X11 libraries) is a startup failure.
func New() (Backend, error) {
	if err := clipboard.Init(); err != nil {
		return nil, &fault.Error{Kind: fault.Startup, Method: "clipboard.Init()", Code: fault.Code(err), Err: err}
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &unixBackend{
		watchCh: make(chan struct{}, 1),
		cancel:  cancel,
	}
	go b.forward(clipboard.Watch(ctx, clipboard.FmtImage))
	return b, nil
}

func (b *unixBackend) Name() string {
	if runtime.GOOS == "darwin" {
		return "macOS NSPasteboard"
	}
	return "Linux clipboard (poll)"
}

// forward turns image-change deliveries into coalesced signals. The payload
// itself is dropped; the reaction reads the clipboard again under a session.
func (b *unixBackend) forward(changes <-chan []byte) {
	for range changes {
		notify(b.watchCh)
	}
}

func (b *unixBackend) HasImage() bool {
	return len(clipboard.Read(clipboard.FmtImage)) > 0
}

// Open never reports busy: the library serialises clipboard access itself.
func (b *unixBackend) Open() (Session, error) { return unixSession{}, nil }

func (b *unixBackend) Watch() <-chan struct{} { return b.watchCh }

func (b *unixBackend) Close() { b.cancel() }

type unixSession struct{}

func (unixSession) Bitmap() (image.Image, error) {
	data := clipboard.Read(clipboard.FmtImage)
	if len(data) == 0 {
		return nil, fault.New(fault.Extract, fault.System, "clipboard.Read()", 0)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &fault.Error{Kind: fault.Extract, Origin: fault.Encoder, Method: "png.Decode()", Code: fault.GenericError, Err: err}
	}
	return img, nil
}

func (unixSession) Close() error { return nil }
