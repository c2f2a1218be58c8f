// Package ui renders the styled output of the wledui CLI commands.
//
// Unlike the interactive dashboard in package tui, these components follow a
// "print and exit" pattern: a command header, live sweep progress, board
// tables and success/failure boxes.
//
// # Components
//
//   - Header: command banner showing the operation and its parameters
//   - SweepProgress: progress bar with checked/found counters for scans
//   - Result: success, failure and warning boxes
//   - Board tables and detail views for list and show
//
// Runner ties them together for one-shot commands:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:   "Board test",
//	    Command: "wledui test 192.168.1.40",
//	    Params:  []ui.Param{{Key: "Address", Value: "192.168.1.40"}},
//	})
//	err := runner.Run(ctx, func(ctx context.Context) ([]ui.Param, error) {
//	    b, err := scanner.Probe(ctx, ip)
//	    ...
//	})
//
// # Logging Integration
//
// Logging is controlled by the WLEDUI_LOG_LEVEL environment variable or the
// --log-level flag. When unset, zap logging is silent so the curated output
// here is displayed cleanly.
package ui
