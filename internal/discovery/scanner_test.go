package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/wledui/internal/wled"
)

func wledHandler(name, mac string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"state":{"on":true,"bri":99,"udpn":{"send":false,"recv":true}},"info":{"name":%q,"mac":%q,"ver":"0.14.0"}}`, name, mac)
	}
}

// fakeNetwork routes probes for the listed IPs to their servers and every
// other address to a closed port.
func fakeNetwork(t *testing.T, boards map[string]http.Handler) func(ip string, port int) *wled.Client {
	t.Helper()
	closed := httptest.NewServer(http.NotFoundHandler())
	deadURL := closed.URL
	closed.Close()

	urls := make(map[string]string)
	for ip, h := range boards {
		srv := httptest.NewServer(h)
		t.Cleanup(srv.Close)
		urls[ip] = srv.URL
	}

	return func(ip string, port int) *wled.Client {
		u, ok := urls[ip]
		if !ok {
			u = deadURL
		}
		c := wled.NewClientWithURL(u)
		c.IP = ip
		c.SetTimeout(time.Second)
		c.SetRetry(0, 0)
		return c
	}
}

func TestNormalizeRange(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"192.168.1", "192.168.1", false},
		{"192.168.1.", "192.168.1", false},
		{" 10.0.0 ", "10.0.0", false},
		{"192.168", "", true},
		{"192.168.1.5", "", true},
		{"192.168.x", "", true},
		{"192.168.256", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeRange(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeRange(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeRange(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSweepFindsBoards(t *testing.T) {
	s := NewScanner()
	s.ClientFor = fakeNetwork(t, map[string]http.Handler{
		"192.168.1.7":  wledHandler("Shelf", "aa0001"),
		"192.168.1.42": wledHandler("Desk", "aa0002"),
		"192.168.1.99": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"info":{}}`)) // some other JSON service
		}),
	})

	var mu sync.Mutex
	var last Progress
	var calls int
	boards, err := s.Sweep(context.Background(), "192.168.1.", func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		if p.Checked <= last.Checked {
			t.Errorf("Checked went from %d to %d", last.Checked, p.Checked)
		}
		last = p
		calls++
	})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if calls != HostsPerRange {
		t.Errorf("progress calls = %d, want %d", calls, HostsPerRange)
	}
	if last.Checked != HostsPerRange || last.Found != 2 || last.Total != HostsPerRange {
		t.Errorf("final progress = %+v, want checked 254 found 2", last)
	}
	if len(boards) != 2 {
		t.Fatalf("len(boards) = %d, want 2", len(boards))
	}
	if boards[0].Name != "Desk" || boards[1].Name != "Shelf" {
		t.Errorf("boards = %s, %s, want Desk, Shelf", boards[0].Name, boards[1].Name)
	}
	if boards[0].ID != "aa0002" || boards[0].IP != "192.168.1.42" || !boards[0].IsOnline || !boards[0].SyncReceive {
		t.Errorf("boards[0] = %+v", boards[0])
	}
}

func TestSweepRespectsMaxInFlight(t *testing.T) {
	var current, peak atomic.Int32
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(slow)
	defer srv.Close()

	s := NewScanner()
	s.MaxInFlight = 5
	s.ClientFor = func(ip string, port int) *wled.Client {
		c := wled.NewClientWithURL(srv.URL)
		c.SetRetry(0, 0)
		return c
	}

	if _, err := s.Sweep(context.Background(), "10.0.0", nil); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if got := peak.Load(); got > 5 {
		t.Errorf("peak concurrent probes = %d, want <= 5", got)
	}
}

func TestSweepCancel(t *testing.T) {
	s := NewScanner()
	s.MaxInFlight = 4
	s.ClientFor = fakeNetwork(t, map[string]http.Handler{
		"192.168.4.200": wledHandler("Late", "bb0001"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var afterCancel, calls int
	canceled := false
	boards, err := s.Sweep(ctx, "192.168.4", func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if canceled {
			afterCancel++
		}
		if p.Checked == 10 {
			canceled = true
			cancel()
		}
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Sweep() error = %v, want context.Canceled", err)
	}
	if boards != nil {
		t.Errorf("boards = %v, want nil", boards)
	}
	if afterCancel != 0 {
		t.Errorf("progress reported %d times after cancel", afterCancel)
	}
	if calls >= HostsPerRange {
		t.Errorf("progress calls = %d, sweep did not stop", calls)
	}
}

func TestSweepInvalidRange(t *testing.T) {
	_, err := NewScanner().Sweep(context.Background(), "not-a-range", nil)
	if err == nil || !strings.Contains(err.Error(), "three octets") {
		t.Errorf("Sweep() error = %v, want range error", err)
	}
}

func TestProbe(t *testing.T) {
	s := NewScanner()
	s.ClientFor = fakeNetwork(t, map[string]http.Handler{
		"192.168.1.50": wledHandler("Porch", ""),
	})

	b, err := s.Probe(context.Background(), "192.168.1.50")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if b.ID != "192.168.1.50" || b.Name != "Porch" || b.Port != 80 {
		t.Errorf("Probe() = %+v", b)
	}

	if _, err := s.Probe(context.Background(), "192.168.1.51"); err == nil {
		t.Error("Probe() of dead address error = nil, want error")
	}
}

func TestSweepRangesMergesAndPauses(t *testing.T) {
	s := NewScanner()
	s.RangePause = 0
	s.ClientFor = fakeNetwork(t, map[string]http.Handler{
		"10.0.0.5":    wledHandler("Attic", "cc0001"),
		"172.16.0.9":  wledHandler("Garage", "cc0002"),
		"192.168.0.3": wledHandler("Attic", "cc0001"), // same board, second interface
	})

	ranges := map[string]bool{}
	var mu sync.Mutex
	boards, err := s.SweepRanges(context.Background(), nil, func(p Progress) {
		mu.Lock()
		ranges[p.Range] = true
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("SweepRanges() error = %v", err)
	}
	if len(ranges) != len(DefaultRanges) {
		t.Errorf("swept %d ranges, want %d", len(ranges), len(DefaultRanges))
	}
	if len(boards) != 2 {
		t.Errorf("len(boards) = %d, want 2 (deduplicated by MAC)", len(boards))
	}
}

func TestSweepRangesAllInvalid(t *testing.T) {
	_, err := NewScanner().SweepRanges(context.Background(), []string{"x", "y.z"}, nil)
	if err == nil {
		t.Error("SweepRanges() error = nil, want error")
	}
}
