package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipshot/internal/clip"
	"go.klb.dev/clipshot/internal/guard"
	"go.klb.dev/clipshot/internal/ipc"
	"go.klb.dev/clipshot/internal/persist"
	"go.klb.dev/clipshot/internal/reactor"
	"go.klb.dev/clipshot/internal/status"
)

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "clipshot [output_directory]",
		Short: "Save every new clipboard image as a timestamped PNG",
		Long: `clipshot watches the system clipboard and writes each new image to
<output_directory>/<unix-millis>.png. An image equal to the last one saved is
skipped. Without output_directory, files go to the working directory.

Progress is printed to stdout, failures to stderr. Stop with Ctrl+C.

All flags can be set via CLIPSHOT_<FLAG> env vars; the output directory via
CLIPSHOT_OUTPUT_DIR.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		PreRunE:      func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:         func(cmd *cobra.Command, args []string) error { return runWatch(cmd.Context(), v, args) },
	}

	f := cmd.Flags()
	f.Int("retries", guard.DefaultRetries, "extra attempts while another application holds the clipboard")
	f.Duration("retry-delay", guard.DefaultDelay, "pause between clipboard attempts")
	f.Bool("no-status", false, "do not serve status on the local socket")
	f.Bool("no-pause", false, "exit immediately on startup failure instead of waiting for Enter")
	addLoggingFlags(cmd)

	return cmd
}

func runWatch(parent context.Context, v *viper.Viper, args []string) error {
	setupLogging(v)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := clip.New()
	if err != nil {
		slog.Error("unable to start", "err", err)
		if !v.GetBool("no-pause") && isInteractive() {
			pause(os.Stdin, os.Stderr)
		}
		return err
	}
	defer backend.Close()

	r := reactor.New(reactor.Config{
		Backend:   backend,
		Persister: persist.NewOS(outputDir(v, args)),
		GuardOptions: []guard.Option{
			guard.WithRetries(v.GetInt("retries")),
			guard.WithDelay(v.GetDuration("retry-delay")),
		},
	})

	if !v.GetBool("no-status") {
		shutdown := serveStatus(r)
		defer shutdown()
	}

	slog.Info("work is established",
		"version", Version,
		"backend", backend.Name(),
		"output_dir", outputDir(v, args),
	)
	return r.Run(ctx)
}

// serveStatus exposes the reactor on the local socket. Failing to listen is
// not fatal: capture works without it.
func serveStatus(r *reactor.Reactor) (shutdown func()) {
	path := ipc.SocketPath()
	if ipc.IsRunning(path) {
		slog.Warn("status socket in use by another watcher", "path", path)
		return func() {}
	}
	ln, err := ipc.Listen(path)
	if err != nil {
		slog.Warn("status socket unavailable", "err", err)
		return func() {}
	}
	srv, err := status.New(r)
	if err != nil {
		_ = ln.Close()
		slog.Warn("status server unavailable", "err", err)
		return func() {}
	}
	slog.Debug("status socket listening", "path", path)
	go func() {
		if err := srv.Serve(ln); err != nil {
			slog.Warn("status server stopped", "err", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		_ = ln.Close()
		_ = os.Remove(path)
	}
}

// pause waits for the user to acknowledge a startup failure.
func pause(in io.Reader, out io.Writer) {
	fmt.Fprint(out, "Press Enter to continue...")
	_, _ = bufio.NewReader(in).ReadString('\n')
}
