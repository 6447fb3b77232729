package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"go.klb.dev/clipshot/internal/ipc"
	"go.klb.dev/clipshot/internal/status"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running watcher's counters",
		Long: `Queries the watcher running on this machine through its local status
socket ($CLIPSHOT_SOCKET, $XDG_RUNTIME_DIR/clipshot.sock or
$TMPDIR/clipshot.sock) and prints its health and counters.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runStatus(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.String("socket", ipc.SocketPath(), "status socket path")
	f.Bool("json", false, "output raw JSON")
	f.Duration("timeout", 3*time.Second, "how long to wait for the watcher")

	return cmd
}

func runStatus(ctx context.Context, v *viper.Viper) error {
	path := v.GetString("socket")
	if !ipc.IsRunning(path) {
		return fmt.Errorf("no clipshot watcher listening on %s", path)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, v.GetDuration("timeout"))
	defer cancel()

	c := status.NewClient(path)
	health, err := c.Health(ctx)
	if err != nil {
		return err
	}
	snap, raw, err := c.Fetch(ctx)
	if err != nil {
		return err
	}

	if v.GetBool("json") {
		fmt.Println(string(raw))
		return nil
	}
	printStatus(os.Stdout, path, health, snap)
	return nil
}

func printStatus(out io.Writer, path string, health healthpb.HealthCheckResponse_ServingStatus, snap *structpb.Struct) {
	f := snap.GetFields()
	str := func(k string) string {
		if s := f[k].GetStringValue(); s != "" {
			return s
		}
		return "-"
	}
	num := func(k string) string { return fmt.Sprintf("%d", int64(f[k].GetNumberValue())) }

	w := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Socket:\t%s\n", path)
	fmt.Fprintf(w, "Health:\t%s\n", health)
	fmt.Fprintf(w, "Backend:\t%s\n", str("backend"))
	fmt.Fprintf(w, "Output:\t%s\n", str("output_dir"))
	fmt.Fprintf(w, "State:\t%s\n", str("state"))
	fmt.Fprintf(w, "Started:\t%s\n", str("started_at"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Notifications:\t%s\n", num("notifications"))
	fmt.Fprintf(w, "Saved:\t%s\n", num("saved"))
	fmt.Fprintf(w, "Duplicates:\t%s\n", num("duplicates"))
	fmt.Fprintf(w, "Failures:\t%s\n", num("failures"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Last file:\t%s\n", str("last_file"))
	fmt.Fprintf(w, "Last saved:\t%s\n", str("last_saved_at"))
	fmt.Fprintf(w, "Last error:\t%s\n", str("last_error"))
	_ = w.Flush()
}
