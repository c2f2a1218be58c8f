package store

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wledui/internal/board"
	"github.com/muurk/wledui/internal/logging"
)

// DefaultSaveDelay coalesces bursts of updates into one write.
const DefaultSaveDelay = 100 * time.Millisecond

// Persister loads and saves the board list.
type Persister interface {
	LoadBoards() ([]board.Board, time.Time, error)
	SaveBoards(boards []board.Board, lastRefresh time.Time) error
}

// Manager owns the process's board state. Every mutation goes through
// Reduce, is broadcast to subscribers and is persisted after SaveDelay.
//
// Subscribers are called outside the lock, one at a time, with their own
// copy. They must not block for long.
type Manager struct {
	SaveDelay time.Duration

	persister Persister

	mu     sync.RWMutex
	state  State
	loaded bool
	seq    uint64
	timer  *time.Timer

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int

	notifyMu  sync.Mutex
	delivered uint64
}

// NewManager creates a manager. A nil persister keeps boards in memory.
func NewManager(p Persister) *Manager {
	return &Manager{
		SaveDelay: DefaultSaveDelay,
		persister: p,
		subs:      make(map[int]func(State)),
	}
}

// Load reads saved boards the first time it is called; later calls just
// return the current list. Loaded boards start offline until refreshed.
func (m *Manager) Load() []board.Board {
	m.mu.Lock()
	if m.loaded {
		boards := board.Copy(m.state.Boards)
		m.mu.Unlock()
		return boards
	}

	var saved []board.Board
	var lastRefresh time.Time
	if m.persister != nil {
		var err error
		saved, lastRefresh, err = m.persister.LoadBoards()
		if err != nil {
			logging.Warn("Could not load saved boards, starting empty", zap.Error(err))
			saved, lastRefresh = nil, time.Time{}
		}
	}
	for i := range saved {
		saved[i].IsOnline = false
	}

	m.state = Reduce(m.state, LoadSaved{Boards: saved, LastRefresh: lastRefresh})
	m.loaded = true
	logging.Debug("Boards loaded", zap.Int("count", len(saved)))
	snap, seq := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snap, seq)
	return board.Copy(snap.Boards)
}

// Loaded reports whether Load has run.
func (m *Manager) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Boards returns a copy of the current board list.
func (m *Manager) Boards() []board.Board {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return board.Copy(m.state.Boards)
}

// State returns a copy of the full state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Copy()
}

// Find returns the board with id.
func (m *Manager) Find(id string) (board.Board, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := board.Find(m.state.Boards, id)
	if !ok {
		return board.Board{}, false
	}
	return b.Clone(), true
}

// Dispatch applies a to the state. It is a no-op before Load.
func (m *Manager) Dispatch(a Action) {
	m.apply(func(s State) (State, bool) { return Reduce(s, a), boardsChanged(a) })
}

// Update replaces the board with id by fn's result. It returns false when
// no such board exists or the manager is not loaded yet.
func (m *Manager) Update(id string, fn func(board.Board) board.Board) bool {
	found := false
	m.apply(func(s State) (State, bool) {
		b, ok := board.Find(s.Boards, id)
		if !ok {
			logging.Debug("Update for unknown board", zap.String("board_id", id))
			return s, false
		}
		found = true
		updated := fn(b.Clone())
		updated.ID = id
		return Reduce(s, BoardUpdate{Board: updated}), true
	})
	return found
}

// Add inserts b, or replaces the board with the same ID.
func (m *Manager) Add(b board.Board) {
	m.apply(func(s State) (State, bool) {
		if board.Index(s.Boards, b.ID) >= 0 {
			return Reduce(s, BoardUpdate{Board: b}), true
		}
		return Reduce(s, AddBoard{Board: b}), true
	})
}

// Merge folds b into the list the way a discovery does: a board with the
// same ID or address is refreshed under its existing identity, anything else
// is added. It returns the stored board, or false before Load.
func (m *Manager) Merge(b board.Board) (board.Board, bool) {
	var (
		stored board.Board
		ok     bool
	)
	m.apply(func(s State) (State, bool) {
		ok = true
		if i := board.Match(s.Boards, b); i >= 0 {
			stored = board.Absorb(s.Boards[i], b)
			return Reduce(s, BoardUpdate{Board: stored}), true
		}
		stored = b.Clone()
		return Reduce(s, AddBoard{Board: stored}), true
	})
	return stored, ok
}

// Remove deletes the board with id. It returns false if it was not there.
func (m *Manager) Remove(id string) bool {
	found := false
	m.apply(func(s State) (State, bool) {
		if board.Index(s.Boards, id) < 0 {
			return s, false
		}
		found = true
		return Reduce(s, RemoveBoard{ID: id}), true
	})
	return found
}

// Replace swaps the whole board list.
func (m *Manager) Replace(boards []board.Board) {
	m.Dispatch(RefreshComplete{Boards: boards})
}

// Subscribe registers fn to receive every new state. Call the returned
// function to unsubscribe.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

// Flush writes pending changes immediately.
func (m *Manager) Flush() error {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	loaded := m.loaded
	m.mu.Unlock()

	if !loaded {
		return nil
	}
	return m.save()
}

func (m *Manager) apply(fn func(State) (State, bool)) {
	m.mu.Lock()
	if !m.loaded {
		m.mu.Unlock()
		logging.Debug("Skipping update, boards not loaded yet")
		return
	}
	next, persist := fn(m.state)
	m.state = next
	if persist {
		m.scheduleSaveLocked()
	}
	snap, seq := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snap, seq)
}

func (m *Manager) snapshotLocked() (State, uint64) {
	m.seq++
	return m.state.Copy(), m.seq
}

// publish delivers snap unless a newer state has already gone out.
func (m *Manager) publish(snap State, seq uint64) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if seq <= m.delivered {
		return
	}
	m.delivered = seq

	m.subMu.Lock()
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()

	for _, fn := range subs {
		fn(snap.Copy())
	}
}

func (m *Manager) scheduleSaveLocked() {
	if m.persister == nil {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.SaveDelay, func() {
		if err := m.save(); err != nil {
			logging.Warn("Failed to save boards", zap.Error(err))
		}
	})
}

func (m *Manager) save() error {
	if m.persister == nil {
		return nil
	}
	m.mu.RLock()
	boards := board.Copy(m.state.Boards)
	lastRefresh := m.state.LastRefresh
	m.mu.RUnlock()

	if err := m.persister.SaveBoards(boards, lastRefresh); err != nil {
		return err
	}
	logging.Debug("Boards saved", zap.Int("count", len(boards)))
	return nil
}
