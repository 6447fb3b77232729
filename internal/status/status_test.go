package status

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"go.klb.dev/clipshot/internal/ipc"
	"go.klb.dev/clipshot/internal/reactor"
)

type staticProvider reactor.Stats

func (p staticProvider) Stats() reactor.Stats { return reactor.Stats(p) }

func sampleStats() reactor.Stats {
	return reactor.Stats{
		Backend:       "fake",
		OutputDir:     "out",
		State:         reactor.StateIdle,
		StartedAt:     time.UnixMilli(1700000000000),
		Notifications: 4,
		Saved:         2,
		Duplicates:    1,
		Failures:      1,
		LastFile:      "out/1700000000123.png",
		LastSavedAt:   time.UnixMilli(1700000000123),
		LastError:     "Method [OpenClipboard()] failed with code [5].",
	}
}

func TestSnapshot(t *testing.T) {
	snap, err := Snapshot(sampleStats())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	f := snap.GetFields()
	tests := []struct {
		key  string
		want any
	}{
		{"backend", "fake"},
		{"state", "idle"},
		{"saved", float64(2)},
		{"failures", float64(1)},
		{"last_file", "out/1700000000123.png"},
		{"last_saved_at", "2023-11-14T22:13:20.123Z"},
	}
	for _, tt := range tests {
		if got := f[tt.key].AsInterface(); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestSnapshotZeroTimes(t *testing.T) {
	snap, err := Snapshot(reactor.Stats{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got := snap.GetFields()["last_saved_at"].GetStringValue(); got != "" {
		t.Errorf("last_saved_at = %q, want empty", got)
	}
}

func TestHandlerServesJSON(t *testing.T) {
	s, err := New(staticProvider(sampleStats()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, StatusPath, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
	var snap structpb.Struct
	if err := protojson.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := snap.GetFields()["output_dir"].GetStringValue(); got != "out" {
		t.Errorf("output_dir = %q", got)
	}
}

func TestHandlerRejectsOtherMethods(t *testing.T) {
	s, err := New(staticProvider(sampleStats()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, StatusPath, nil))
	if rec.Code == http.StatusOK {
		t.Error("POST should not be served")
	}
}

func TestServeOverSocket(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix sockets in temp dirs are unreliable on CI windows")
	}
	path := filepath.Join(t.TempDir(), "st.sock")
	ln, err := ipc.Listen(path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	s, err := New(staticProvider(sampleStats()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- s.Serve(ln) }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c := NewClient(path)

	st, err := c.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if st != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("health = %v, want SERVING", st)
	}

	snap, raw, err := c.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raw) == 0 || snap.GetFields()["saved"].GetNumberValue() != 2 {
		t.Errorf("snapshot = %v", snap)
	}

	s.Shutdown(ctx)
	_ = ln.Close()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Serve did not return after Shutdown")
	}
}
