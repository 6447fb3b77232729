// Package status serves a running watcher's health and counters on one
// listener: gRPC health checks and an HTTP JSON snapshot, split by cmux.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"go.klb.dev/clipshot/internal/reactor"
)

// ServiceName is the gRPC health service name reported by the watcher.
const ServiceName = "clipshot"

// StatusPath is the HTTP path of the JSON snapshot.
const StatusPath = "/v1/status"

// Provider supplies the counters to report.
type Provider interface {
	Stats() reactor.Stats
}

// Server serves health and status for one watcher.
type Server struct {
	provider Provider
	health   *health.Server
	grpc     *grpc.Server
	mux      *gwruntime.ServeMux
	http     *http.Server
	closing  atomic.Bool
}

// New returns a Server reporting p. The health service starts SERVING.
func New(p Provider) (*Server, error) {
	s := &Server{
		provider: p,
		health:   health.NewServer(),
		grpc:     grpc.NewServer(),
		mux:      gwruntime.NewServeMux(),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	if err := s.mux.HandlePath(http.MethodGet, StatusPath, s.handleStatus); err != nil {
		return nil, fmt.Errorf("register %s: %w", StatusPath, err)
	}
	s.http = &http.Server{Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	return s, nil
}

// Handler returns the HTTP side of the server.
func (s *Server) Handler() http.Handler { return s.mux }

// Serve accepts connections on ln until Shutdown. gRPC and HTTP/1.1 clients
// share the listener.
func (s *Server) Serve(ln net.Listener) error {
	m := cmux.New(ln)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	go func() {
		if err := s.grpc.Serve(grpcL); err != nil && !s.closing.Load() {
			slog.Warn("status grpc server stopped", "err", err)
		}
	}()
	go func() {
		if err := s.http.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) && !s.closing.Load() {
			slog.Warn("status http server stopped", "err", err)
		}
	}()

	err := m.Serve()
	if s.closing.Load() {
		return nil
	}
	return err
}

// Shutdown marks the watcher NOT_SERVING and stops both servers. The caller
// closes the listener passed to Serve.
func (s *Server) Shutdown(ctx context.Context) {
	s.closing.Store(true)
	s.health.Shutdown()
	_ = s.http.Shutdown(ctx)
	s.grpc.Stop()
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	snap, err := Snapshot(s.provider.Stats())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(snap)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

// Snapshot converts stats into the status payload.
func Snapshot(st reactor.Stats) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"backend":       st.Backend,
		"output_dir":    st.OutputDir,
		"state":         st.State.String(),
		"started_at":    formatTime(st.StartedAt),
		"notifications": st.Notifications,
		"saved":         st.Saved,
		"duplicates":    st.Duplicates,
		"failures":      st.Failures,
		"last_file":     st.LastFile,
		"last_saved_at": formatTime(st.LastSavedAt),
		"last_error":    st.LastError,
	})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
