// Package store keeps the list of known boards.
//
// Reduce is a pure function from (State, Action) to State. Manager wraps it
// with a lock, subscriber fan-out and debounced persistence, and is the one
// place the dashboard, HTTP server and TUI read boards from.
package store
