// Package dashboard implements the operations behind every wledui front end:
// discovery, refresh, adding and removing boards, and the optimistic power,
// brightness and sync controls.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wledui/internal/board"
	"github.com/muurk/wledui/internal/discovery"
	"github.com/muurk/wledui/internal/limiter"
	"github.com/muurk/wledui/internal/logging"
	"github.com/muurk/wledui/internal/store"
	"github.com/muurk/wledui/internal/wled"
)

// DefaultRefreshInterval is how often Run re-queries every board.
const DefaultRefreshInterval = 30 * time.Second

var (
	// ErrBoardNotFound is returned for an unknown board ID.
	ErrBoardNotFound = errors.New("board not found")

	// ErrDiscoveryRunning is returned when a sweep is already in progress.
	ErrDiscoveryRunning = errors.New("discovery already running")
)

// Options tunes a Controller. Zero values get defaults.
type Options struct {
	RefreshInterval time.Duration
	MaxInFlight     int

	// ClientFor builds the client used to talk to a known board.
	ClientFor func(b board.Board) *wled.Client
}

// Controller coordinates the store, the scanner and the boards themselves.
type Controller struct {
	store   *store.Manager
	scanner *discovery.Scanner
	opts    Options

	discoverMu     sync.Mutex
	cancelDiscover context.CancelFunc
	discoverID     uint64
}

// New creates a controller. The store must already be loaded or will be
// loaded on first use.
func New(m *store.Manager, s *discovery.Scanner, opts Options) *Controller {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = limiter.DefaultMax
	}
	if opts.ClientFor == nil {
		opts.ClientFor = func(b board.Board) *wled.Client { return b.Client() }
	}
	return &Controller{store: m, scanner: s, opts: opts}
}

// Store returns the underlying board store.
func (c *Controller) Store() *store.Manager {
	return c.store
}

// Boards loads the store if needed and returns the current boards.
func (c *Controller) Boards() []board.Board {
	return c.store.Load()
}

// Discover sweeps base (or the default ranges when base is empty) and merges
// the result into the board list. Boards already known keep their ID; a
// manual board's name is kept. Only one discovery runs at a time.
func (c *Controller) Discover(ctx context.Context, base string, onProgress discovery.ProgressFunc) ([]board.Board, error) {
	ctx, done, err := c.beginDiscovery(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	return c.runDiscovery(ctx, base, onProgress)
}

// StartDiscovery runs a discovery in the background and calls onDone with
// its result. It fails at once if a discovery is already running.
func (c *Controller) StartDiscovery(base string, onProgress discovery.ProgressFunc, onDone func([]board.Board, error)) error {
	ctx, done, err := c.beginDiscovery(context.Background())
	if err != nil {
		return err
	}
	go func() {
		found, err := c.runDiscovery(ctx, base, onProgress)
		done()
		if onDone != nil {
			onDone(found, err)
		}
	}()
	return nil
}

func (c *Controller) runDiscovery(ctx context.Context, base string, onProgress discovery.ProgressFunc) ([]board.Board, error) {
	c.store.Load()
	c.store.Dispatch(store.DiscoveryStart{})

	var (
		found []board.Board
		err   error
	)
	if base == "" {
		found, err = c.scanner.SweepRanges(ctx, nil, onProgress)
	} else {
		found, err = c.scanner.Sweep(ctx, base, onProgress)
	}

	switch {
	case ctx.Err() != nil:
		c.store.Dispatch(store.DiscoveryError{})
		return nil, ctx.Err()
	case err != nil:
		c.store.Dispatch(store.DiscoveryError{Err: wled.ShortMessage(err)})
		return nil, err
	}

	merged := board.Merge(c.store.Boards(), found)
	c.store.Dispatch(store.DiscoveryComplete{Boards: merged, At: board.Now()})
	logging.Info("Discovery merged", zap.Int("found", len(found)), zap.Int("total", len(merged)))
	return found, nil
}

// CancelDiscovery stops a running discovery. It reports whether one was
// running.
func (c *Controller) CancelDiscovery() bool {
	c.discoverMu.Lock()
	defer c.discoverMu.Unlock()
	if c.cancelDiscover == nil {
		return false
	}
	c.cancelDiscover()
	return true
}

// Discovering reports whether a sweep is in progress.
func (c *Controller) Discovering() bool {
	c.discoverMu.Lock()
	defer c.discoverMu.Unlock()
	return c.cancelDiscover != nil
}

func (c *Controller) beginDiscovery(parent context.Context) (context.Context, func(), error) {
	c.discoverMu.Lock()
	defer c.discoverMu.Unlock()
	if c.cancelDiscover != nil {
		return nil, nil, ErrDiscoveryRunning
	}
	ctx, cancel := context.WithCancel(parent)
	c.discoverID++
	id := c.discoverID
	c.cancelDiscover = cancel
	return ctx, func() {
		cancel()
		c.discoverMu.Lock()
		if c.discoverID == id {
			c.cancelDiscover = nil
		}
		c.discoverMu.Unlock()
	}, nil
}

// RefreshAll marks every board offline, then re-queries each one
// concurrently. Boards that answer come back online with fresh state.
func (c *Controller) RefreshAll(ctx context.Context) error {
	boards := c.store.Load()
	c.store.Dispatch(store.RefreshStart{})
	c.store.Dispatch(store.SetAllOffline{})

	lim := limiter.New(c.opts.MaxInFlight)
	for _, b := range boards {
		b := b
		lim.Go(ctx, func(ctx context.Context) error {
			_, err := c.refresh(ctx, b)
			return err
		}, nil)
	}
	lim.Wait()

	if err := ctx.Err(); err != nil {
		c.store.Dispatch(store.RefreshComplete{Boards: c.store.Boards()})
		return err
	}

	refreshed := c.store.Boards()
	c.store.Dispatch(store.RefreshComplete{Boards: refreshed, LastRefresh: board.Now()})
	online, offline := board.Counts(refreshed)
	logging.Info("Refresh complete", zap.Int("online", online), zap.Int("offline", offline))
	return nil
}

// Refresh re-queries a single board.
func (c *Controller) Refresh(ctx context.Context, id string) (board.Board, error) {
	b, ok := c.find(id)
	if !ok {
		return board.Board{}, ErrBoardNotFound
	}
	return c.refresh(ctx, b)
}

func (c *Controller) refresh(ctx context.Context, b board.Board) (board.Board, error) {
	resp, err := c.opts.ClientFor(b).GetStatus(ctx)
	if err != nil {
		if !wled.IsCanceled(err) {
			c.store.Update(b.ID, board.MarkOffline)
		}
		logging.Debug("Board did not answer refresh",
			zap.String("board_id", b.ID),
			zap.String("ip", b.IP),
			zap.Error(err),
		)
		return board.Board{}, err
	}

	var updated board.Board
	c.store.Update(b.ID, func(cur board.Board) board.Board {
		updated = board.WithStatus(cur, resp)
		if !cur.Manual && resp.Info.Name != "" {
			updated.Name = resp.Info.Name
		}
		return updated
	})
	return updated, nil
}

// AddByIP probes ip and adds the board answering there. A board already
// known at that address keeps its ID, and its name if it was added manually.
func (c *Controller) AddByIP(ctx context.Context, ip string) (board.Board, error) {
	if err := board.ValidateIPv4(ip); err != nil {
		return board.Board{}, err
	}
	c.store.Load()
	b, err := c.scanner.Probe(ctx, ip)
	if err != nil {
		return board.Board{}, err
	}
	if stored, ok := c.store.Merge(b); ok {
		b = stored
	}
	logging.Info("Board added", zap.String("board_id", b.ID), zap.String("ip", ip), zap.String("name", b.Name))
	return b, nil
}

// AddManual validates the form, adds the board offline and tries one refresh
// so a reachable board shows up online straight away.
func (c *Controller) AddManual(ctx context.Context, in board.ManualInput) (board.Board, error) {
	b, err := board.NewManual(in)
	if err != nil {
		return board.Board{}, err
	}
	c.store.Load()
	c.store.Add(b)
	logging.Info("Manual board added", zap.String("board_id", b.ID), zap.String("ip", b.IP))

	if refreshed, err := c.refresh(ctx, b); err == nil {
		return refreshed, nil
	}
	return b, nil
}

// Remove forgets a board.
func (c *Controller) Remove(id string) error {
	c.store.Load()
	if !c.store.Remove(id) {
		return ErrBoardNotFound
	}
	logging.Info("Board removed", zap.String("board_id", id))
	return nil
}

// TogglePower switches a board on or off.
func (c *Controller) TogglePower(ctx context.Context, id string, on bool) error {
	return c.command(ctx, id, "power", on, wled.StatePatch{On: wled.Bool(on)},
		func(cl *wled.Client) error { return cl.SetPower(ctx, on) })
}

// SetBrightness sets a board's brightness, clamped to 0..255.
func (c *Controller) SetBrightness(ctx context.Context, id string, bri int) error {
	bri = wled.ClampBrightness(bri)
	return c.command(ctx, id, "brightness", bri, wled.StatePatch{Bri: wled.Int(bri)},
		func(cl *wled.Client) error { return cl.SetBrightness(ctx, bri) })
}

// SetSync sets both UDP sync flags of a board.
func (c *Controller) SetSync(ctx context.Context, id string, receive, send bool) error {
	patch := wled.StatePatch{UDPN: &wled.UDPNPatch{Send: wled.Bool(send), Recv: wled.Bool(receive)}}
	value := map[string]bool{"receive": receive, "send": send}
	return c.command(ctx, id, "sync", value, patch,
		func(cl *wled.Client) error { return cl.SetSync(ctx, receive, send) })
}

// command applies patch locally, sends it, and restores the previous state
// if the board does not accept it.
func (c *Controller) command(ctx context.Context, id, name string, value any, patch wled.StatePatch, send func(*wled.Client) error) error {
	prev, ok := c.find(id)
	if !ok {
		return ErrBoardNotFound
	}

	c.store.Update(id, func(b board.Board) board.Board {
		return applyPatch(b, patch)
	})

	err := send(c.opts.ClientFor(prev))
	logging.LogCommand(id, prev.IP, name, value, err)
	if err != nil {
		c.store.Update(id, func(b board.Board) board.Board {
			b.State = prev.Clone().State
			b.SyncEmit = prev.SyncEmit
			b.SyncReceive = prev.SyncReceive
			return b
		})
		return err
	}

	c.store.Update(id, func(b board.Board) board.Board {
		b.IsOnline = true
		b.LastSeen = board.Now()
		return b
	})
	return nil
}

func applyPatch(b board.Board, patch wled.StatePatch) board.Board {
	var state wled.State
	if b.State != nil {
		state = *b.State
	}
	state = patch.Apply(state)
	b.State = &state
	b.SyncEmit = state.UDPN.Send
	b.SyncReceive = state.UDPN.Receive
	return b
}

func (c *Controller) find(id string) (board.Board, bool) {
	c.store.Load()
	return c.store.Find(id)
}

// Run refreshes all boards every RefreshInterval until ctx ends. Ticks with
// no boards, or during a discovery, are skipped.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if len(c.store.Boards()) == 0 || c.Discovering() {
				continue
			}
			if err := c.RefreshAll(ctx); err != nil && ctx.Err() == nil {
				logging.Warn("Auto-refresh failed", zap.Error(err))
			}
		}
	}
}
