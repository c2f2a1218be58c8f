// Package server implements the browser dashboard for wledui.
//
// The server exposes the dashboard controller as a small JSON API and pushes
// live updates to browsers over a WebSocket. Every JSON response uses the
// same envelope:
//
//	{"ok": true, "data": ...}
//	{"ok": false, "error": "Board not responding (timeout)"}
//
// Rejected manual-entry forms also carry a "fields" object mapping each
// invalid field to its message.
//
// # Routes
//
//	GET    /api/boards                  list boards
//	POST   /api/boards                  add a board by hand {name, ip, port}
//	POST   /api/boards/test             probe an address and add it {ip}
//	GET    /api/boards/{id}             one board
//	DELETE /api/boards/{id}             forget a board
//	POST   /api/boards/{id}/power       {on}
//	POST   /api/boards/{id}/brightness  {bri}
//	POST   /api/boards/{id}/sync        {receive, send}
//	POST   /api/boards/{id}/refresh     re-query one board
//	POST   /api/refresh                 re-query every board
//	POST   /api/discover                start a sweep {range}; empty range sweeps the defaults
//	DELETE /api/discover                cancel the running sweep
//	GET    /api/status                  counters and discovery state
//	GET    /ws                          event stream
//	GET    /metrics                     Prometheus metrics
//	GET    /health                      liveness
//
// # Events
//
// Each WebSocket message is {"type", "data", "at"}. A "boards" event carries
// the full store state and is sent on connect and after every change.
// "progress" events carry sweep progress and "discovery" events mark the
// start and end of a sweep.
//
// # Graceful Shutdown
//
// Start handles SIGINT and SIGTERM:
//  1. Stop accepting new requests
//  2. Cancel a running discovery and the auto-refresh loop
//  3. Close WebSocket clients
//  4. Flush pending board saves
package server
