// Package logging provides structured logging for wledui.
//
// The package wraps a global zap logger with convenience functions and a few
// domain helpers for the events the application cares about: discovery probes,
// subnet sweeps, control commands and dashboard HTTP traffic.
//
// # Silent by default
//
// CLI commands print their own output, so the logger is a no-op unless a
// level is given explicitly or through WLEDUI_LOG_LEVEL:
//
//	WLEDUI_LOG_LEVEL=debug wledui scan 192.168.1
//
// The serve command defaults to "info".
//
// # Output Format
//
// Logs go to stderr in console format:
//
//	2026-01-12T10:30:45.123Z  INFO  Board found  {"ip": "192.168.1.40", "name": "Desk"}
package logging
