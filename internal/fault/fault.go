// Package fault defines the error taxonomy shared by the capture pipeline.
//
// Every failed external call is reported as an *Error carrying the name of
// the operation and the platform's numeric code. The Kind says which stage
// failed and is what callers branch on; the Origin records which subsystem
// the code came from.
package fault

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind classifies a failure by the stage of the pipeline it aborts.
// A Kind is itself an error so that errors.Is(err, fault.ClipboardBusy) works.
type Kind uint8

const (
	// ClipboardBusy: another process holds the clipboard.
	ClipboardBusy Kind = iota + 1
	// ClipboardAPI: any other clipboard call (open/read/close) failed.
	ClipboardAPI
	// Extract: no bitmap handle, stream creation failed or the encoder failed.
	Extract
	// IO: writing the capture to disk failed.
	IO
	// Startup: registering with the OS notification mechanism failed.
	Startup
)

func (k Kind) Error() string { return k.String() }

func (k Kind) String() string {
	switch k {
	case ClipboardBusy:
		return "clipboard busy"
	case ClipboardAPI:
		return "clipboard api failure"
	case Extract:
		return "extract failure"
	case IO:
		return "io failure"
	case Startup:
		return "startup failure"
	default:
		return "unknown failure"
	}
}

// Origin tags the subsystem that produced Code.
type Origin uint8

const (
	// System codes are OS last-error values (errno, GetLastError).
	System Origin = iota
	// Encoder codes are image codec status values.
	Encoder
)

// GenericError is the Encoder code reported when an encoder fails with a
// plain Go error rather than a status value.
const GenericError int64 = 1

// Error is a failed external call.
type Error struct {
	Kind   Kind
	Origin Origin
	Method string
	Code   int64
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("Method [%s] failed with code [%d].", e.Method, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the Kind of the failure.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.Kind == k
}

// New returns an Error with an explicit code.
func New(kind Kind, origin Origin, method string, code int64) *Error {
	return &Error{Kind: kind, Origin: origin, Method: method, Code: code}
}

// FromErr wraps err as a System-origin Error, taking the code from the
// syscall.Errno inside err when there is one.
func FromErr(kind Kind, method string, err error) *Error {
	return &Error{Kind: kind, Origin: System, Method: method, Code: Code(err), Err: err}
}

// Code extracts the numeric OS code from err, or 0 when there is none.
func Code(err error) int64 {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int64(errno)
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return 0
}

// Method returns the operation name recorded in err, or "" when err is not an
// *Error.
func Method(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Method
	}
	return ""
}
