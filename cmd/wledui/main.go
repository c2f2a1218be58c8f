// Wledui is a dashboard for WLED lighting boards on the local network.
//
// It finds boards by sweeping a /24 range over HTTP (or by mDNS), keeps a
// list of them in a YAML file, and controls power, brightness and UDP sync
// from a full-screen terminal UI, one-shot commands, or a browser dashboard.
//
// Usage:
//
//	wledui [command] [flags]
//
// Running without arguments launches the terminal dashboard.
// See 'wledui --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wledui/internal/logging"
	"github.com/muurk/wledui/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var shown *shownError
		if !errors.As(err, &shown) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "wledui",
	Short: "WLED Board Dashboard",
	Long: `A dashboard for WLED lighting boards on your local network.

Finds boards by sweeping a network range, remembers them, and controls
power, brightness and UDP sync from the terminal or a browser.

If no command is specified, the interactive dashboard will launch automatically.`,
	Version:      version.Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silent unless --log-level or WLEDUI_LOG_LEVEL is set
		return logging.Initialize(logLevel)
	},
	RunE: runDashboard,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/wledui/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-request board timeout (e.g. 2s); 0 uses the configured default")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "wledui %s (commit: %s)\n", version.Version, version.Commit)
	},
}

// shownError marks an error whose failure box has already been printed.
type shownError struct {
	err error
}

func (e *shownError) Error() string { return e.err.Error() }

func (e *shownError) Unwrap() error { return e.err }

func shown(err error) error {
	if err == nil {
		return nil
	}
	return &shownError{err: err}
}
