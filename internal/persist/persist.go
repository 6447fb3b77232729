// Package persist writes captures to the output directory.
package persist

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"go.klb.dev/clipshot/internal/fault"
)

// Extension is appended to every capture's timestamp.
const Extension = ".png"

// Clock returns the current wall-clock time.
type Clock func() time.Time

// Timestamp returns t as milliseconds since the Unix epoch. Two captures in
// the same millisecond share a name; the later one overwrites the earlier.
func Timestamp(t time.Time) int64 { return t.UnixMilli() }

// Filename returns the base name for a capture taken at millis.
func Filename(millis int64) string {
	return strconv.FormatInt(millis, 10) + Extension
}

// Persister writes capture files into a fixed directory. An empty directory
// means the working directory.
type Persister struct {
	fs  afero.Fs
	dir string
}

// New returns a Persister writing into dir on fs.
func New(fs afero.Fs, dir string) *Persister {
	return &Persister{fs: fs, dir: dir}
}

// NewOS returns a Persister on the real filesystem.
func NewOS(dir string) *Persister { return New(afero.NewOsFs(), dir) }

// Dir returns the configured output directory.
func (p *Persister) Dir() string { return p.dir }

// Path returns the destination path for a capture taken at millis.
func (p *Persister) Path(millis int64) string {
	return filepath.Join(p.dir, Filename(millis))
}

// Persist writes data to the capture file for millis, creating or truncating
// it, and returns the path written. A partial write is not cleaned up.
func (p *Persister) Persist(millis int64, data []byte) (string, error) {
	path := p.Path(millis)
	f, err := p.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fault.FromErr(fault.IO, "OpenFile()", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fault.FromErr(fault.IO, "WriteFile()", err)
	}
	if err := f.Close(); err != nil {
		return "", fault.FromErr(fault.IO, "CloseFile()", err)
	}
	return path, nil
}
