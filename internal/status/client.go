package status

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"go.klb.dev/clipshot/internal/ipc"
)

// Client queries a watcher's status socket.
type Client struct {
	path string
	http *http.Client
}

// NewClient returns a Client for the socket at path.
func NewClient(path string) *Client {
	return &Client{
		path: path,
		http: &http.Client{Transport: &http.Transport{DialContext: ipc.Dialer(path)}},
	}
}

// Health returns the watcher's gRPC health status.
func (c *Client) Health(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	dial := ipc.Dialer(c.path)
	conn, err := grpc.NewClient("passthrough:///"+ServiceName,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return dial(ctx, "", "")
		}),
	)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus(), nil
}

// Fetch returns the status snapshot and its raw JSON.
func (c *Client) Fetch(ctx context.Context) (*structpb.Struct, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+ServiceName+StatusPath, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("status: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("status: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("status: %s", resp.Status)
	}
	snap := &structpb.Struct{}
	if err := protojson.Unmarshal(body, snap); err != nil {
		return nil, nil, fmt.Errorf("status: decode: %w", err)
	}
	return snap, body, nil
}
