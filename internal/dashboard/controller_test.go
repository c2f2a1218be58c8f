package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/muurk/wledui/internal/board"
	"github.com/muurk/wledui/internal/discovery"
	"github.com/muurk/wledui/internal/store"
	"github.com/muurk/wledui/internal/wled"
)

// fakeBoard is a minimal WLED device: GET /json and POST /json/state.
type fakeBoard struct {
	mu    sync.Mutex
	name  string
	mac   string
	state wled.State
	fail  bool
	gets  int
	posts []map[string]any
}

func (f *fakeBoard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"busy"}`))
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/json":
		f.gets++
		json.NewEncoder(w).Encode(map[string]any{
			"state": f.state,
			"info":  map[string]any{"name": f.name, "mac": f.mac, "ver": "0.14.0"},
		})
	case r.Method == http.MethodPost && r.URL.Path == "/json/state":
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.posts = append(f.posts, body)
		if on, ok := body["on"].(bool); ok {
			f.state.On = on
		}
		if bri, ok := body["bri"].(float64); ok {
			f.state.Bri = int(bri)
		}
		w.Write([]byte(`{"success":true}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBoard) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeBoard) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeBoard) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

type memPersister struct {
	mu     sync.Mutex
	boards []board.Board
}

func (p *memPersister) LoadBoards() ([]board.Board, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return board.Copy(p.boards), time.Time{}, nil
}

func (p *memPersister) SaveBoards(boards []board.Board, _ time.Time) error {
	p.mu.Lock()
	p.boards = board.Copy(boards)
	p.mu.Unlock()
	return nil
}

// network maps IPs to fake boards. Unknown IPs resolve to a closed port.
type network struct {
	urls map[string]string
	dead string
}

func newNetwork(t *testing.T, boards map[string]*fakeBoard) *network {
	t.Helper()
	closed := httptest.NewServer(http.NotFoundHandler())
	n := &network{urls: make(map[string]string), dead: closed.URL}
	closed.Close()
	for ip, fb := range boards {
		srv := httptest.NewServer(fb)
		t.Cleanup(srv.Close)
		n.urls[ip] = srv.URL
	}
	return n
}

func (n *network) client(ip string, _ int) *wled.Client {
	u, ok := n.urls[ip]
	if !ok {
		u = n.dead
	}
	c := wled.NewClientWithURL(u)
	c.IP = ip
	c.SetTimeout(time.Second)
	c.SetRetry(0, 0)
	return c
}

func newTestController(t *testing.T, n *network, saved ...board.Board) *Controller {
	t.Helper()
	m := store.NewManager(&memPersister{boards: saved})
	s := discovery.NewScanner()
	s.ClientFor = n.client
	s.RangePause = 0
	c := New(m, s, Options{
		ClientFor: func(b board.Board) *wled.Client { return n.client(b.IP, b.Port) },
	})
	c.Boards()
	return c
}

func TestDiscoverMergesWithExisting(t *testing.T) {
	n := newNetwork(t, map[string]*fakeBoard{
		"10.0.0.7": {name: "Shelf", mac: "aabbcc000007", state: wled.State{On: true, Bri: 80}},
	})
	manual := board.Board{ID: "manual-1", Name: "Garage", IP: "10.0.0.50", Port: 80, Manual: true}
	c := newTestController(t, n, manual)

	var last discovery.Progress
	found, err := c.Discover(context.Background(), "10.0.0", func(p discovery.Progress) { last = p })
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(found) != 1 || found[0].Name != "Shelf" {
		t.Fatalf("Discover() found = %v, want Shelf", found)
	}
	if last.Checked != discovery.HostsPerRange || last.Found != 1 {
		t.Errorf("last progress = %+v, want checked %d found 1", last, discovery.HostsPerRange)
	}

	st := c.Store().State()
	if st.Loading {
		t.Error("Loading = true after discovery")
	}
	if len(st.Boards) != 2 {
		t.Fatalf("len(Boards) = %d, want 2 (found + manual)", len(st.Boards))
	}
	if st.Boards[0].Name != "Shelf" {
		t.Errorf("Boards[0] = %q, want online board first", st.Boards[0].Name)
	}
	if st.LastRefresh.IsZero() {
		t.Error("LastRefresh not set")
	}
}

func TestDiscoverInvalidRange(t *testing.T) {
	c := newTestController(t, newNetwork(t, nil))

	if _, err := c.Discover(context.Background(), "10.0", nil); err == nil {
		t.Fatal("Discover() error = nil, want invalid range")
	}
	st := c.Store().State()
	if st.Loading || st.Error == "" {
		t.Errorf("state = loading %v error %q, want error set", st.Loading, st.Error)
	}
}

func TestDiscoverCanceled(t *testing.T) {
	c := newTestController(t, newNetwork(t, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	found, err := c.Discover(ctx, "10.0.0", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Discover() error = %v, want context.Canceled", err)
	}
	if found != nil {
		t.Errorf("Discover() found = %v, want nil", found)
	}
	if st := c.Store().State(); st.Loading || st.Error != "" {
		t.Errorf("state = loading %v error %q, want idle", st.Loading, st.Error)
	}
	if c.Discovering() {
		t.Error("Discovering() = true after return")
	}
}

func TestStartDiscoveryRejectsSecond(t *testing.T) {
	c := newTestController(t, newNetwork(t, nil))
	hang := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer hang.Close()
	c.scanner.ClientFor = func(ip string, _ int) *wled.Client {
		cl := wled.NewClientWithURL(hang.URL)
		cl.IP = ip
		cl.SetRetry(0, 0)
		return cl
	}

	done := make(chan error, 1)
	if err := c.StartDiscovery("10.0.0", nil, func(_ []board.Board, err error) { done <- err }); err != nil {
		t.Fatalf("StartDiscovery() error = %v", err)
	}
	if err := c.StartDiscovery("10.0.0", nil, nil); !errors.Is(err, ErrDiscoveryRunning) {
		t.Errorf("second StartDiscovery() error = %v, want ErrDiscoveryRunning", err)
	}
	if !c.CancelDiscovery() {
		t.Error("CancelDiscovery() = false, want true")
	}

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("onDone error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("discovery did not stop after cancel")
	}
	if c.CancelDiscovery() {
		t.Error("CancelDiscovery() = true with nothing running")
	}
}

func TestRefreshAll(t *testing.T) {
	n := newNetwork(t, map[string]*fakeBoard{
		"10.0.0.2": {name: "Desk renamed", state: wled.State{On: true, Bri: 40}},
	})
	c := newTestController(t, n,
		board.Board{ID: "desk", Name: "Desk", IP: "10.0.0.2", Port: 80},
		board.Board{ID: "gone", Name: "Gone", IP: "10.0.0.3", Port: 80},
	)

	if err := c.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}

	desk, _ := c.Store().Find("desk")
	if !desk.IsOnline || desk.Brightness() != 40 || desk.Name != "Desk renamed" {
		t.Errorf("desk = online %v bri %d name %q", desk.IsOnline, desk.Brightness(), desk.Name)
	}
	gone, _ := c.Store().Find("gone")
	if gone.IsOnline {
		t.Error("unreachable board still online")
	}
	if st := c.Store().State(); st.Loading || st.LastRefresh.IsZero() {
		t.Errorf("state = loading %v lastRefresh %v", st.Loading, st.LastRefresh)
	}
}

func TestAddByIP(t *testing.T) {
	n := newNetwork(t, map[string]*fakeBoard{
		"10.0.0.9": {name: "Porch", mac: "aabbcc000009", state: wled.State{On: false, Bri: 10}},
	})
	c := newTestController(t, n)

	b, err := c.AddByIP(context.Background(), "10.0.0.9")
	if err != nil {
		t.Fatalf("AddByIP() error = %v", err)
	}
	if b.ID != "aabbcc000009" || b.Name != "Porch" {
		t.Errorf("AddByIP() = %s/%s, want aabbcc000009/Porch", b.ID, b.Name)
	}
	if _, ok := c.Store().Find(b.ID); !ok {
		t.Error("board not in store")
	}

	if _, err := c.AddByIP(context.Background(), "10.0.0.10"); err == nil {
		t.Error("AddByIP(unreachable) error = nil")
	}
	if _, err := c.AddByIP(context.Background(), "not-an-ip"); err == nil {
		t.Error("AddByIP(not-an-ip) error = nil")
	}
	if got := len(c.Store().Boards()); got != 1 {
		t.Errorf("len(Boards) = %d, want 1", got)
	}
}

func TestAddByIPKeepsManualBoard(t *testing.T) {
	n := newNetwork(t, map[string]*fakeBoard{
		"10.0.0.4": {name: "Kitchen strip", mac: "aabbcc000004", state: wled.State{On: true, Bri: 200}},
	})
	manual := board.Board{ID: "manual-1", Name: "Kitchen", IP: "10.0.0.4", Port: 80, Manual: true}
	c := newTestController(t, n, manual)

	b, err := c.AddByIP(context.Background(), "10.0.0.4")
	if err != nil {
		t.Fatalf("AddByIP() error = %v", err)
	}
	if b.ID != "manual-1" || b.Name != "Kitchen" || !b.Manual {
		t.Errorf("AddByIP() = %s/%s manual %v, want manual-1/Kitchen manual", b.ID, b.Name, b.Manual)
	}
	if !b.IsOnline || b.Brightness() != 200 {
		t.Errorf("AddByIP() = online %v bri %d, want online 200", b.IsOnline, b.Brightness())
	}
	if got := len(c.Store().Boards()); got != 1 {
		t.Fatalf("len(Boards) = %d, want 1", got)
	}

	if _, err := c.Discover(context.Background(), "10.0.0", nil); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	boards := c.Store().Boards()
	if len(boards) != 1 {
		t.Fatalf("len(Boards) after discover = %d, want 1", len(boards))
	}
	if boards[0].ID != "manual-1" || boards[0].Name != "Kitchen" {
		t.Errorf("board after discover = %s/%s, want manual-1/Kitchen", boards[0].ID, boards[0].Name)
	}
}

func TestAddManual(t *testing.T) {
	n := newNetwork(t, map[string]*fakeBoard{
		"10.0.0.4": {name: "Kitchen strip", state: wled.State{On: true, Bri: 200}},
	})
	c := newTestController(t, n)

	b, err := c.AddManual(context.Background(), board.ManualInput{Name: "Kitchen", IP: "10.0.0.4"})
	if err != nil {
		t.Fatalf("AddManual() error = %v", err)
	}
	if !b.IsOnline || b.Name != "Kitchen" || !b.Manual {
		t.Errorf("AddManual() = online %v name %q manual %v", b.IsOnline, b.Name, b.Manual)
	}

	offline, err := c.AddManual(context.Background(), board.ManualInput{Name: "Attic", IP: "10.0.0.5", Port: "8080"})
	if err != nil {
		t.Fatalf("AddManual(offline) error = %v", err)
	}
	if offline.IsOnline || offline.Port != 8080 {
		t.Errorf("AddManual(offline) = online %v port %d", offline.IsOnline, offline.Port)
	}

	_, err = c.AddManual(context.Background(), board.ManualInput{IP: "10.0.0.300"})
	var fe board.FieldErrors
	if !errors.As(err, &fe) || fe["name"] == "" || fe["ip"] == "" {
		t.Errorf("AddManual(invalid) error = %v, want name and ip field errors", err)
	}
}

func TestRemove(t *testing.T) {
	c := newTestController(t, newNetwork(t, nil), board.Board{ID: "desk", Name: "Desk", IP: "10.0.0.2"})

	if err := c.Remove("desk"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := c.Remove("desk"); !errors.Is(err, ErrBoardNotFound) {
		t.Errorf("Remove(again) error = %v, want ErrBoardNotFound", err)
	}
}

func TestControlCommands(t *testing.T) {
	fb := &fakeBoard{name: "Desk", state: wled.State{On: false, Bri: 10}}
	n := newNetwork(t, map[string]*fakeBoard{"10.0.0.2": fb})
	c := newTestController(t, n, board.Board{ID: "desk", Name: "Desk", IP: "10.0.0.2", Port: 80})
	ctx := context.Background()

	if err := c.TogglePower(ctx, "desk", true); err != nil {
		t.Fatalf("TogglePower() error = %v", err)
	}
	if err := c.SetBrightness(ctx, "desk", 300); err != nil {
		t.Fatalf("SetBrightness() error = %v", err)
	}
	if err := c.SetSync(ctx, "desk", true, false); err != nil {
		t.Fatalf("SetSync() error = %v", err)
	}

	b, _ := c.Store().Find("desk")
	if !b.On() || b.Brightness() != 255 || !b.SyncReceive || b.SyncEmit {
		t.Errorf("board = on %v bri %d recv %v send %v", b.On(), b.Brightness(), b.SyncReceive, b.SyncEmit)
	}
	if !b.IsOnline {
		t.Error("board not online after accepted command")
	}
	if got := fb.postCount(); got != 3 {
		t.Errorf("posts = %d, want 3", got)
	}

	if err := c.TogglePower(ctx, "nope", true); !errors.Is(err, ErrBoardNotFound) {
		t.Errorf("TogglePower(unknown) error = %v, want ErrBoardNotFound", err)
	}
}

func TestControlRollsBackOnFailure(t *testing.T) {
	fb := &fakeBoard{name: "Desk"}
	n := newNetwork(t, map[string]*fakeBoard{"10.0.0.2": fb})
	c := newTestController(t, n, board.Board{ID: "desk", Name: "Desk", IP: "10.0.0.2", Port: 80})
	ctx := context.Background()

	if err := c.SetBrightness(ctx, "desk", 50); err != nil {
		t.Fatalf("SetBrightness() error = %v", err)
	}
	fb.setFail(true)

	err := c.SetBrightness(ctx, "desk", 200)
	if err == nil {
		t.Fatal("SetBrightness() error = nil, want failure")
	}
	if got := wled.ShortMessage(err); got != "busy" {
		t.Errorf("ShortMessage() = %q, want %q", got, "busy")
	}
	b, _ := c.Store().Find("desk")
	if b.Brightness() != 50 {
		t.Errorf("Brightness() = %d, want rolled back to 50", b.Brightness())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	c := newTestController(t, newNetwork(t, nil))
	c.opts.RefreshInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}

func TestRunRefreshesOnTick(t *testing.T) {
	fb := &fakeBoard{name: "Desk", state: wled.State{On: true, Bri: 90}}
	n := newNetwork(t, map[string]*fakeBoard{"10.0.0.2": fb})
	c := newTestController(t, n, board.Board{ID: "desk", Name: "Desk", IP: "10.0.0.2", Port: 80})
	c.opts.RefreshInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for c.Store().State().LastRefresh.IsZero() {
		if time.Now().After(deadline) {
			t.Fatal("LastRefresh not set, Run never refreshed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if fb.getCount() == 0 {
		t.Error("board was not queried")
	}
	desk, _ := c.Store().Find("desk")
	if !desk.IsOnline || desk.Brightness() != 90 {
		t.Errorf("desk = online %v bri %d, want online 90", desk.IsOnline, desk.Brightness())
	}
}

func TestRunSkipsTicksDuringDiscovery(t *testing.T) {
	fb := &fakeBoard{name: "Desk", state: wled.State{On: true, Bri: 90}}
	n := newNetwork(t, map[string]*fakeBoard{"10.0.0.2": fb})
	c := newTestController(t, n, board.Board{ID: "desk", Name: "Desk", IP: "10.0.0.2", Port: 80})
	c.opts.RefreshInterval = 10 * time.Millisecond

	hang := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer hang.Close()
	c.scanner.ClientFor = func(ip string, _ int) *wled.Client {
		cl := wled.NewClientWithURL(hang.URL)
		cl.IP = ip
		cl.SetRetry(0, 0)
		return cl
	}

	done := make(chan struct{})
	if err := c.StartDiscovery("10.0.0", nil, func([]board.Board, error) { close(done) }); err != nil {
		t.Fatalf("StartDiscovery() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	if got := fb.getCount(); got != 0 {
		t.Errorf("board queried %d times during discovery, want 0", got)
	}
	if !c.Store().State().LastRefresh.IsZero() {
		t.Error("LastRefresh set during discovery")
	}

	c.CancelDiscovery()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("discovery did not stop after cancel")
	}
}
