//go:build !darwin && !windows && !linux

package clip

import (
	"runtime"

	"go.klb.dev/clipshot/internal/fault"
)

// New fails: there is no clipboard change notification on this platform.
func New() (Backend, error) {
	return nil, fault.New(fault.Startup, fault.System, "clip.New("+runtime.GOOS+")", 0)
}
