//go:build windows

package clip

import (
	"errors"
	"image"
	"log/slog"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"

	"go.klb.dev/clipshot/internal/fault"
)

const (
	cfDIB = 8

	wmDestroy         = 0x0002
	wmClose           = 0x0010
	wmClipboardUpdate = 0x031D

	className = "ClipshotListener"
)

// hwndMessage is HWND_MESSAGE, ((HWND)-3).
var hwndMessage = ^uintptr(2)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procOpenClipboard                 = user32.NewProc("OpenClipboard")
	procCloseClipboard                = user32.NewProc("CloseClipboard")
	procGetClipboardData              = user32.NewProc("GetClipboardData")
	procIsClipboardFormatAvailable    = user32.NewProc("IsClipboardFormatAvailable")
	procAddClipboardFormatListener    = user32.NewProc("AddClipboardFormatListener")
	procRemoveClipboardFormatListener = user32.NewProc("RemoveClipboardFormatListener")
	procRegisterClassExW              = user32.NewProc("RegisterClassExW")
	procCreateWindowExW               = user32.NewProc("CreateWindowExW")
	procDefWindowProcW                = user32.NewProc("DefWindowProcW")
	procGetMessageW                   = user32.NewProc("GetMessageW")
	procTranslateMessage              = user32.NewProc("TranslateMessage")
	procDispatchMessageW              = user32.NewProc("DispatchMessageW")
	procPostMessageW                  = user32.NewProc("PostMessageW")
	procPostQuitMessage               = user32.NewProc("PostQuitMessage")

	procGetModuleHandleW = kernel32.NewProc("GetModuleHandleW")
	procGlobalLock       = kernel32.NewProc("GlobalLock")
	procGlobalUnlock     = kernel32.NewProc("GlobalUnlock")
	procGlobalSize       = kernel32.NewProc("GlobalSize")
)

type wndClassEx struct {
	Size       uint32
	Style      uint32
	WndProc    uintptr
	ClsExtra   int32
	WndExtra   int32
	Instance   uintptr
	Icon       uintptr
	Cursor     uintptr
	Background uintptr
	MenuName   *uint16
	ClassName  *uint16
	IconSm     uintptr
}

type point struct{ X, Y int32 }

type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
	_       uint32
}

type windowsBackend struct {
	hwnd    uintptr
	watchCh chan struct{}
	done    chan struct{}
}

// New returns the Windows clipboard backend. It registers a message-only
// window with AddClipboardFormatListener and pumps its messages on a
// dedicated OS thread until Close.
func New() (Backend, error) {
	b := &windowsBackend{
		watchCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	ready := make(chan error, 1)
	go b.pump(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return b, nil
}

func (b *windowsBackend) Name() string { return "Windows Clipboard" }

func (b *windowsBackend) pump(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(b.done)

	hwnd, err := b.listen()
	if err != nil {
		ready <- err
		return
	}
	b.hwnd = hwnd
	ready <- nil

	var m msg
	for {
		// GetMessage returns 0 on WM_QUIT and -1 on error.
		r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(r) <= 0 {
			return
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
}

func (b *windowsBackend) listen() (uintptr, error) {
	instance, _, err := procGetModuleHandleW.Call(0)
	if instance == 0 {
		return 0, fault.FromErr(fault.Startup, "GetModuleHandle()", err)
	}
	name, err := windows.UTF16PtrFromString(className)
	if err != nil {
		return 0, &fault.Error{Kind: fault.Startup, Method: "UTF16PtrFromString()", Err: err}
	}
	wc := wndClassEx{
		WndProc:   windows.NewCallback(b.wndProc),
		Instance:  instance,
		ClassName: name,
	}
	wc.Size = uint32(unsafe.Sizeof(wc))
	if r, _, err := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc))); r == 0 {
		return 0, fault.FromErr(fault.Startup, "RegisterClassEx()", err)
	}
	hwnd, _, err := procCreateWindowExW.Call(
		0, uintptr(unsafe.Pointer(name)), uintptr(unsafe.Pointer(name)), 0,
		0, 0, 0, 0, hwndMessage, 0, instance, 0,
	)
	if hwnd == 0 {
		return 0, fault.FromErr(fault.Startup, "CreateWindowEx()", err)
	}
	if r, _, err := procAddClipboardFormatListener.Call(hwnd); r == 0 {
		return 0, fault.FromErr(fault.Startup, "AddClipboardFormatListener()", err)
	}
	return hwnd, nil
}

func (b *windowsBackend) wndProc(hwnd, message, wParam, lParam uintptr) uintptr {
	switch message {
	case wmClipboardUpdate:
		notify(b.watchCh)
		return 0
	case wmDestroy:
		procRemoveClipboardFormatListener.Call(hwnd)
		procPostQuitMessage.Call(0)
		return 0
	}
	r, _, _ := procDefWindowProcW.Call(hwnd, message, wParam, lParam)
	return r
}

// HasImage checks CF_DIB, which the system synthesises from CF_BITMAP.
func (b *windowsBackend) HasImage() bool {
	r, _, _ := procIsClipboardFormatAvailable.Call(cfDIB)
	return r != 0
}

func (b *windowsBackend) Open() (Session, error) {
	// The clipboard is owned by the opening thread until CloseClipboard.
	runtime.LockOSThread()
	if r, _, err := procOpenClipboard.Call(0); r == 0 {
		runtime.UnlockOSThread()
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return nil, fault.FromErr(fault.ClipboardBusy, "OpenClipboard()", err)
		}
		return nil, fault.FromErr(fault.ClipboardAPI, "OpenClipboard()", err)
	}
	return &windowsSession{}, nil
}

func (b *windowsBackend) Watch() <-chan struct{} { return b.watchCh }

// Close destroys the listener window; the pump exits on WM_QUIT.
func (b *windowsBackend) Close() {
	if r, _, err := procPostMessageW.Call(b.hwnd, wmClose, 0, 0); r == 0 {
		slog.Warn("clipboard listener close failed", "err", fault.FromErr(fault.ClipboardAPI, "PostMessage()", err))
		return
	}
	<-b.done
}

type windowsSession struct{}

func (s *windowsSession) Bitmap() (image.Image, error) {
	h, _, err := procGetClipboardData.Call(cfDIB)
	if h == 0 {
		return nil, fault.FromErr(fault.Extract, "GetClipboardData()", err)
	}
	size, _, err := procGlobalSize.Call(h)
	if size == 0 {
		return nil, fault.FromErr(fault.Extract, "GlobalSize()", err)
	}
	ptr, _, err := procGlobalLock.Call(h)
	if ptr == 0 {
		return nil, fault.FromErr(fault.Extract, "GlobalLock()", err)
	}
	// The locked block belongs to the clipboard, not the Go heap.
	mem := *(*unsafe.Pointer)(unsafe.Pointer(&ptr))
	dib := make([]byte, size)
	copy(dib, unsafe.Slice((*byte)(mem), size))
	procGlobalUnlock.Call(h)

	img, err := DecodeDIB(dib)
	if err != nil {
		return nil, &fault.Error{Kind: fault.Extract, Origin: fault.Encoder, Method: "bmp.Decode()", Code: fault.GenericError, Err: err}
	}
	return img, nil
}

func (s *windowsSession) Close() error {
	defer runtime.UnlockOSThread()
	if r, _, err := procCloseClipboard.Call(); r == 0 {
		return fault.FromErr(fault.ClipboardAPI, "CloseClipboard()", err)
	}
	return nil
}
