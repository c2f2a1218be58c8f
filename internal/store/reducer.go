package store

import (
	"time"

	"github.com/muurk/wledui/internal/board"
)

// State is everything the dashboards render.
type State struct {
	Boards      []board.Board `json:"boards"`
	Loading     bool          `json:"loading"`
	Error       string        `json:"error,omitempty"`
	LastRefresh time.Time     `json:"lastRefresh"`
}

// Copy returns a deep copy of s.
func (s State) Copy() State {
	s.Boards = board.Copy(s.Boards)
	return s
}

// Action is a state transition understood by Reduce.
type Action interface {
	action()
}

type (
	// LoadSaved replaces the board list with boards read from disk.
	LoadSaved struct {
		Boards      []board.Board
		LastRefresh time.Time
	}

	DiscoveryStart struct{}

	// DiscoveryComplete replaces the board list with a sweep's result.
	DiscoveryComplete struct {
		Boards []board.Board
		At     time.Time
	}

	DiscoveryError struct {
		Err string
	}

	RefreshStart struct{}

	// RefreshComplete replaces the board list. A zero LastRefresh keeps
	// the previous value.
	RefreshComplete struct {
		Boards      []board.Board
		LastRefresh time.Time
	}

	// BoardUpdate replaces the board with the same ID, if present.
	BoardUpdate struct {
		Board board.Board
	}

	// AddBoard appends a board unless one with its ID already exists.
	AddBoard struct {
		Board board.Board
	}

	RemoveBoard struct {
		ID string
	}

	ClearError struct{}

	SetAllOffline struct{}
)

func (LoadSaved) action()         {}
func (DiscoveryStart) action()    {}
func (DiscoveryComplete) action() {}
func (DiscoveryError) action()    {}
func (RefreshStart) action()      {}
func (RefreshComplete) action()   {}
func (BoardUpdate) action()       {}
func (AddBoard) action()          {}
func (RemoveBoard) action()       {}
func (ClearError) action()        {}
func (SetAllOffline) action()     {}

// Reduce returns the state that results from applying a to s. It never
// modifies s, and every board list it returns is sorted.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case LoadSaved:
		s.Boards = board.Sorted(a.Boards)
		s.LastRefresh = a.LastRefresh
	case DiscoveryStart:
		s.Loading = true
		s.Error = ""
	case DiscoveryComplete:
		s.Loading = false
		s.Boards = board.Sorted(a.Boards)
		s.LastRefresh = a.At
	case DiscoveryError:
		s.Loading = false
		s.Error = a.Err
	case RefreshStart:
		s.Loading = true
	case RefreshComplete:
		s.Loading = false
		s.Boards = board.Sorted(a.Boards)
		if !a.LastRefresh.IsZero() {
			s.LastRefresh = a.LastRefresh
		}
	case BoardUpdate:
		boards := board.Copy(s.Boards)
		if i := board.Index(boards, a.Board.ID); i >= 0 {
			boards[i] = a.Board.Clone()
		}
		board.Sort(boards)
		s.Boards = boards
	case AddBoard:
		if board.Index(s.Boards, a.Board.ID) >= 0 {
			return s
		}
		boards := append(board.Copy(s.Boards), a.Board.Clone())
		board.Sort(boards)
		s.Boards = boards
	case RemoveBoard:
		boards := make([]board.Board, 0, len(s.Boards))
		for _, b := range s.Boards {
			if b.ID != a.ID {
				boards = append(boards, b.Clone())
			}
		}
		s.Boards = boards
	case ClearError:
		s.Error = ""
	case SetAllOffline:
		boards := make([]board.Board, len(s.Boards))
		for i, b := range s.Boards {
			boards[i] = board.MarkOffline(b.Clone())
		}
		board.Sort(boards)
		s.Boards = boards
	}
	return s
}

// boardsChanged reports whether a may alter what gets persisted.
func boardsChanged(a Action) bool {
	switch a.(type) {
	case DiscoveryStart, DiscoveryError, RefreshStart, ClearError:
		return false
	}
	return true
}
