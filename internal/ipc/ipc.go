// Package ipc locates the local socket a running clipshot watcher serves its
// status on. Unix domain sockets are used on every platform; Windows has
// supported AF_UNIX since Windows 10 1803.
package ipc

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"time"
)

const socketName = "clipshot.sock"

// SocketPath returns the path of the status socket.
//
//   - $CLIPSHOT_SOCKET when set
//   - $XDG_RUNTIME_DIR/clipshot.sock when XDG_RUNTIME_DIR is set
//   - $TMPDIR/clipshot.sock otherwise
func SocketPath() string {
	if s := os.Getenv("CLIPSHOT_SOCKET"); s != "" {
		return s
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, socketName)
	}
	return filepath.Join(os.TempDir(), socketName)
}

// IsRunning reports whether a watcher appears to be listening on path.
// It does a cheap dial-and-close; no data is exchanged.
func IsRunning(path string) bool {
	c, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener on path, removing any stale socket file first.
func Listen(path string) (net.Listener, error) {
	// Remove stale socket from a previous (crashed) run.
	_ = os.Remove(path)
	return net.Listen("unix", path)
}

// Dialer returns a DialContext func that ignores the network address and
// always connects to path; it plugs into http.Transport.
func Dialer(path string) func(ctx context.Context, _, _ string) (net.Conn, error) {
	return func(ctx context.Context, _, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", path)
	}
}
