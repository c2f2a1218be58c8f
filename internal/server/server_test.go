package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/wledui/internal/board"
	"github.com/muurk/wledui/internal/dashboard"
	"github.com/muurk/wledui/internal/discovery"
	"github.com/muurk/wledui/internal/store"
	"github.com/muurk/wledui/internal/wled"
)

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
	defer p.mu.Unlock()
	p.boards = board.Copy(boards)
	return nil
}

// deviceServer answers like a WLED board and records state posts.
func deviceServer(t *testing.T, posts chan<- string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			io.WriteString(w, `{"state":{"on":false,"bri":20,"udpn":{"send":false,"recv":false}},"info":{"name":"Desk","ver":"0.14.0"}}`)
		case "/json/state":
			body, _ := io.ReadAll(r.Body)
			posts <- string(body)
			io.WriteString(w, `{"success":true}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, device *httptest.Server) (*Server, *httptest.Server) {
	t.Helper()
	clientFor := func(ip string, _ int) *wled.Client {
		c := wled.NewClientWithURL(device.URL)
		c.IP = ip
		c.SetTimeout(time.Second)
		c.SetRetry(0, 0)
		return c
	}

	m := store.NewManager(&memPersister{boards: []board.Board{
		{ID: "desk", Name: "Desk", IP: "10.0.0.2", Port: 80},
	}})
	scanner := discovery.NewScanner()
	scanner.ClientFor = clientFor
	ctrl := dashboard.New(m, scanner, dashboard.Options{
		ClientFor: func(b board.Board) *wled.Client { return clientFor(b.IP, b.Port) },
	})
	ctrl.Boards()

	s := New(&Config{}, ctrl)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.hub.Close()
		ts.Close()
	})
	return s, ts
}

type envelope struct {
	OK     bool              `json:"ok"`
	Data   json.RawMessage   `json:"data"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func call(t *testing.T, ts *httptest.Server, method, path, body string) (int, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, rdr)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decoding envelope: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, deviceServer(t, make(chan string, 1)))

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("GET /health = %d %q, want 200 ok", resp.StatusCode, body)
	}
}

func TestIndexServed(t *testing.T) {
	_, ts := newTestServer(t, deviceServer(t, make(chan string, 1)))

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("<title>wledui</title>")) {
		t.Error("GET / did not serve the dashboard page")
	}
}

func TestListBoards(t *testing.T) {
	_, ts := newTestServer(t, deviceServer(t, make(chan string, 1)))

	status, env := call(t, ts, http.MethodGet, "/api/boards", "")
	if status != http.StatusOK || !env.OK {
		t.Fatalf("GET /api/boards = %d ok=%v", status, env.OK)
	}
	var boards []board.Board
	if err := json.Unmarshal(env.Data, &boards); err != nil {
		t.Fatal(err)
	}
	if len(boards) != 1 || boards[0].ID != "desk" || boards[0].IsOnline {
		t.Errorf("boards = %+v, want one offline desk", boards)
	}
}

func TestAddManualValidation(t *testing.T) {
	_, ts := newTestServer(t, deviceServer(t, make(chan string, 1)))

	status, env := call(t, ts, http.MethodPost, "/api/boards", `{"name":"","ip":"10.0.0.999","port":"70000"}`)
	if status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", status, http.StatusUnprocessableEntity)
	}
	if env.OK {
		t.Error("ok = true for invalid form")
	}
	for _, field := range []string{"name", "ip", "port"} {
		if env.Fields[field] == "" {
			t.Errorf("fields[%q] missing in %v", field, env.Fields)
		}
	}
}

func TestAddManual(t *testing.T) {
	_, ts := newTestServer(t, deviceServer(t, make(chan string, 1)))

	status, env := call(t, ts, http.MethodPost, "/api/boards", `{"name":"Shelf","ip":"10.0.0.8","port":80}`)
	if status != http.StatusCreated || !env.OK {
		t.Fatalf("POST /api/boards = %d %+v", status, env)
	}
	var b board.Board
	if err := json.Unmarshal(env.Data, &b); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(b.ID, "manual-") || b.Name != "Shelf" || !b.IsOnline {
		t.Errorf("board = %s %q online=%v", b.ID, b.Name, b.IsOnline)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, ts := newTestServer(t, deviceServer(t, make(chan string, 1)))

	status, env := call(t, ts, http.MethodPost, "/api/boards/desk/power", `{"on":true,"extra":1}`)
	if status != http.StatusBadRequest || env.OK {
		t.Errorf("status = %d ok=%v, want 400", status, env.OK)
	}
}

func TestPowerCommand(t *testing.T) {
	posts := make(chan string, 1)
	_, ts := newTestServer(t, deviceServer(t, posts))

	status, env := call(t, ts, http.MethodPost, "/api/boards/desk/power", `{"on":true}`)
	if status != http.StatusOK || !env.OK {
		t.Fatalf("POST power = %d %+v", status, env)
	}
	if got := <-posts; got != `{"on":true}` {
		t.Errorf("board received %s, want {\"on\":true}", got)
	}
	var b board.Board
	if err := json.Unmarshal(env.Data, &b); err != nil {
		t.Fatal(err)
	}
	if !b.On() {
		t.Error("board not on after power command")
	}
}

func TestUnknownBoard(t *testing.T) {
	_, ts := newTestServer(t, deviceServer(t, make(chan string, 1)))

	tests := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/api/boards/nope", ""},
		{http.MethodDelete, "/api/boards/nope", ""},
		{http.MethodPost, "/api/boards/nope/brightness", `{"bri":10}`},
		{http.MethodPost, "/api/boards/nope/sync", `{"receive":true,"send":false}`},
	}
	for _, tt := range tests {
		status, env := call(t, ts, tt.method, tt.path, tt.body)
		if status != http.StatusNotFound || env.OK {
			t.Errorf("%s %s = %d ok=%v, want 404", tt.method, tt.path, status, env.OK)
		}
	}
}

func TestCancelDiscoveryWithoutSweep(t *testing.T) {
	_, ts := newTestServer(t, deviceServer(t, make(chan string, 1)))

	status, _ := call(t, ts, http.MethodDelete, "/api/discover", "")
	if status != http.StatusConflict {
		t.Errorf("DELETE /api/discover = %d, want %d", status, http.StatusConflict)
	}
	status, _ = call(t, ts, http.MethodPost, "/api/discover", `{"range":"10.0"}`)
	if status != http.StatusUnprocessableEntity {
		t.Errorf("POST /api/discover bad range = %d, want %d", status, http.StatusUnprocessableEntity)
	}
}

func TestStatus(t *testing.T) {
	_, ts := newTestServer(t, deviceServer(t, make(chan string, 1)))

	_, env := call(t, ts, http.MethodGet, "/api/status", "")
	var st statusResponse
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatal(err)
	}
	if st.Boards != 1 || st.Offline != 1 || st.Discovering {
		t.Errorf("status = %+v", st)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	return ev
}

func TestWebSocketEvents(t *testing.T) {
	s, ts := newTestServer(t, deviceServer(t, make(chan string, 1)))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if ev := readEvent(t, conn); ev.Type != EventBoards {
		t.Fatalf("first event = %q, want %q", ev.Type, EventBoards)
	}

	if err := s.ctrl.Remove("desk"); err != nil {
		t.Fatal(err)
	}
	ev := readEvent(t, conn)
	if ev.Type != EventBoards {
		t.Fatalf("event = %q, want %q", ev.Type, EventBoards)
	}
	data, _ := json.Marshal(ev.Data)
	var st store.State
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatal(err)
	}
	if len(st.Boards) != 0 {
		t.Errorf("boards after remove = %d, want 0", len(st.Boards))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, deviceServer(t, make(chan string, 1)))
	call(t, ts, http.MethodGet, "/api/boards", "")

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("wledui_http_requests_total")) {
		t.Error("/metrics missing wledui_http_requests_total")
	}
}

func TestStartAndShutdown(t *testing.T) {
	s, _ := newTestServer(t, deviceServer(t, make(chan string, 1)))
	s.config.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for s.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Addr() == "" {
		t.Fatal("server did not start listening")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}
