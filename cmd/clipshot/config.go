package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipshot/internal/logging"
)

// bindViper wires a command's flags into a viper instance with the
// CLIPSHOT_* env var prefix. There is no config file.
//
// Precedence (lowest → highest): defaults → CLIPSHOT_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	v.SetEnvPrefix("CLIPSHOT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info, debug when interactive)")
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	interactive := v.GetBool("no-background")
	resolveLogging(interactive, v.GetString("log-format"), v.GetString("log-level"))
}

// outputDir picks the capture directory: the positional argument, then
// CLIPSHOT_OUTPUT_DIR, then "" (the working directory).
func outputDir(v *viper.Viper, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return v.GetString("output-dir")
}

// isInteractive reports whether stdin is a terminal someone can answer.
func isInteractive() bool { return logging.IsTTY(os.Stdin) }
