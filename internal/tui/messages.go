package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/wledui/internal/board"
	"github.com/muurk/wledui/internal/dashboard"
	"github.com/muurk/wledui/internal/discovery"
	"github.com/muurk/wledui/internal/store"
)

// Messages for screen transitions
type showBoardsMsg struct{}
type showDiscoveryMsg struct{}

// Messages for async operations
type stateMsg store.State

type progressMsg discovery.Progress

type discoveryDoneMsg struct {
	found []board.Board
	err   error
}

type testDoneMsg struct {
	board board.Board
	err   error
}

type refreshDoneMsg struct {
	err error
}

type commandDoneMsg struct {
	name   string
	action string
	err    error
}

type removeDoneMsg struct {
	name string
	err  error
}

// latest delivers the newest value on ch, replacing one not yet read.
func latest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// waitForState blocks until the store publishes a new state.
func waitForState(ch <-chan store.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return stateMsg(st)
	}
}

// waitForProgress relays sweep progress until the sweep closes ch.
func waitForProgress(ch <-chan discovery.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return progressMsg(p)
	}
}

// discoverCmd runs a sweep and closes progress when it ends.
func discoverCmd(ctx context.Context, ctrl *dashboard.Controller, base string, progress chan discovery.Progress) tea.Cmd {
	return func() tea.Msg {
		defer close(progress)
		found, err := ctrl.Discover(ctx, base, func(p discovery.Progress) {
			latest(progress, p)
		})
		return discoveryDoneMsg{found: found, err: err}
	}
}

func testIPCmd(ctx context.Context, ctrl *dashboard.Controller, ip string) tea.Cmd {
	return func() tea.Msg {
		b, err := ctrl.AddByIP(ctx, ip)
		return testDoneMsg{board: b, err: err}
	}
}

func refreshCmd(ctrl *dashboard.Controller) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		return refreshDoneMsg{err: ctrl.RefreshAll(ctx)}
	}
}

func removeCmd(ctrl *dashboard.Controller, b board.Board) tea.Cmd {
	return func() tea.Msg {
		return removeDoneMsg{name: b.Name, err: ctrl.Remove(b.ID)}
	}
}

type addDoneMsg struct {
	board board.Board
	err   error
}

const (
	commandTimeout = 5 * time.Second
	refreshTimeout = 15 * time.Second
)

// commandCmd runs one board command with its own timeout.
func commandCmd(name, action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return commandDoneMsg{name: name, action: action, err: fn(ctx)}
	}
}

func addManualCmd(ctrl *dashboard.Controller, in board.ManualInput) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		b, err := ctrl.AddManual(ctx, in)
		return addDoneMsg{board: b, err: err}
	}
}
