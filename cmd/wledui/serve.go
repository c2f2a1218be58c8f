package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wledui/internal/server"
)

// Serve command flags
var (
	serveAddr      string
	serveNoRefresh bool
	serveShutdown  time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the browser dashboard",
	Long: `Serve the browser dashboard and its REST API.

The page lists the saved boards, controls them, and runs scans with live
progress pushed over a WebSocket. Boards are refreshed in the background
while the server runs. Prometheus metrics are exposed on /metrics.

The server stops cleanly on Ctrl+C or SIGTERM, saving the board list.`,
	Example: `  # Listen on the configured address (default 127.0.0.1:8080)
  wledui serve

  # Listen on every interface
  wledui serve --addr :8080 --log-level info`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, 127.0.0.1:8080)")
	serveCmd.Flags().BoolVar(&serveNoRefresh, "no-refresh", false, "Do not refresh boards in the background")
	serveCmd.Flags().DurationVar(&serveShutdown, "shutdown-timeout", server.DefaultShutdownTimeout, "How long to wait for open requests on shutdown")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveAddr
	if addr == "" {
		addr = a.prefs.ListenAddr
	}

	srv := server.New(&server.Config{
		Addr:            addr,
		AutoRefresh:     !serveNoRefresh,
		ShutdownTimeout: serveShutdown,
		RememberRange:   a.rememberRange,
		RememberTestIP:  a.rememberTestIP,
	}, a.ctrl)

	fmt.Fprintf(cmd.OutOrStdout(), "WLED dashboard on http://%s (Ctrl+C to stop)\n", addr)
	if err := srv.Start(cmd.Context()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
