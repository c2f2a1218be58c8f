package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/muurk/wledui/internal/board"
	"github.com/muurk/wledui/internal/limiter"
	"github.com/muurk/wledui/internal/logging"
	"github.com/muurk/wledui/internal/wled"
)

const (
	// HostsPerRange is the number of addresses probed in a /24 (.1 to .254)
	HostsPerRange = 254

	// DefaultPort is the HTTP port probed on each address
	DefaultPort = wled.DefaultPort

	// DefaultRangePause separates sweeps of the built-in ranges
	DefaultRangePause = 100 * time.Millisecond
)

// DefaultRanges are swept when the user does not name one.
var DefaultRanges = []string{"192.168.1", "192.168.4", "192.168.0", "10.0.0", "172.16.0"}

// Progress is reported after every completed probe of a sweep.
type Progress struct {
	Range   string `json:"range"`
	Checked int    `json:"checked"`
	Found   int    `json:"found"`
	Total   int    `json:"total"`
}

// ProgressFunc receives sweep progress. Calls are serialized and Checked
// never decreases within one sweep.
type ProgressFunc func(Progress)

// Scanner probes addresses for WLED boards.
type Scanner struct {
	Port        int
	Timeout     time.Duration
	MaxInFlight int
	RangePause  time.Duration

	// ClientFor builds the client used to probe one address. Tests replace
	// it to point probes at local servers.
	ClientFor func(ip string, port int) *wled.Client

	httpOnce sync.Once
	http     *http.Client
}

// NewScanner returns a scanner with the default port, timeout and
// in-flight cap.
func NewScanner() *Scanner {
	return &Scanner{
		Port:        DefaultPort,
		Timeout:     wled.DefaultTimeout,
		MaxInFlight: limiter.DefaultMax,
		RangePause:  DefaultRangePause,
	}
}

// NormalizeRange accepts "192.168.1" or "192.168.1." and returns the form
// without the trailing dot.
func NormalizeRange(base string) (string, error) {
	base = strings.TrimSuffix(strings.TrimSpace(base), ".")
	parts := strings.Split(base, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("network range %q must have three octets, e.g. 192.168.1", base)
	}
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return "", fmt.Errorf("network range %q has an invalid octet %q", base, part)
		}
	}
	return base, nil
}

// Probe checks a single address on the scanner's port.
func (s *Scanner) Probe(ctx context.Context, ip string) (board.Board, error) {
	return s.ProbeAddr(ctx, ip, s.port())
}

// ProbeAddr checks ip:port and returns the board answering there.
func (s *Scanner) ProbeAddr(ctx context.Context, ip string, port int) (board.Board, error) {
	start := time.Now()
	resp, err := s.client(ip, port).Identify(ctx)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		probesTotal.WithLabelValues("found").Inc()
	case wled.IsCanceled(err):
		probesTotal.WithLabelValues("canceled").Inc()
	default:
		probesTotal.WithLabelValues("miss").Inc()
	}
	if err != nil {
		logging.LogProbe(ip, false, "", elapsed)
		return board.Board{}, err
	}

	logging.LogProbe(ip, true, resp.Info.Name, elapsed)
	return board.FromStatus(ip, port, resp), nil
}

// Sweep probes base.1 through base.254 with at most MaxInFlight probes at
// once and returns the boards found, sorted. If ctx is canceled the sweep
// stops reporting progress and returns ctx.Err() with no boards.
func (s *Scanner) Sweep(ctx context.Context, base string, onProgress ProgressFunc) ([]board.Board, error) {
	base, err := NormalizeRange(base)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	lim := limiter.New(s.maxInFlight())

	var (
		mu      sync.Mutex
		found   []board.Board
		checked int
	)

	for i := 1; i <= HostsPerRange; i++ {
		ip := base + "." + strconv.Itoa(i)
		lim.Go(ctx, func(ctx context.Context) error {
			b, err := s.Probe(ctx, ip)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				found = append(found, b)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			checked++
			if onProgress != nil {
				onProgress(Progress{Range: base, Checked: checked, Found: len(found), Total: HostsPerRange})
			}
			return err
		}, nil)
	}
	lim.Wait()

	elapsed := time.Since(start)
	sweepDuration.Observe(elapsed.Seconds())

	if err := ctx.Err(); err != nil {
		sweepsTotal.WithLabelValues("canceled").Inc()
		logging.LogSweep(base, checked, 0, elapsed, err)
		return nil, err
	}

	sweepsTotal.WithLabelValues("complete").Inc()
	boardsFound.Add(float64(len(found)))
	logging.LogSweep(base, checked, len(found), elapsed, nil)

	board.Sort(found)
	return found, nil
}

// SweepRanges sweeps each range in turn and merges the results by board ID.
// With no ranges it sweeps DefaultRanges, pausing RangePause between them.
// A failed range is skipped; only cancellation stops the whole run.
func (s *Scanner) SweepRanges(ctx context.Context, ranges []string, onProgress ProgressFunc) ([]board.Board, error) {
	pause := time.Duration(0)
	if len(ranges) == 0 {
		ranges = DefaultRanges
		pause = s.RangePause
	}

	var (
		all  []board.Board
		errs []error
	)
	for i, r := range ranges {
		if i > 0 && pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(pause):
			}
		}

		found, err := s.Sweep(ctx, r, onProgress)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, err)
			continue
		}
		all = board.Merge(all, found)
	}

	if len(all) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	board.Sort(all)
	return all, nil
}

func (s *Scanner) client(ip string, port int) *wled.Client {
	if s.ClientFor != nil {
		return s.ClientFor(ip, port)
	}
	s.httpOnce.Do(func() {
		timeout := s.Timeout
		if timeout <= 0 {
			timeout = wled.DefaultTimeout
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.MaxIdleConnsPerHost = 1
		transport.DisableKeepAlives = true
		s.http = &http.Client{Timeout: timeout, Transport: transport}
	})
	c := wled.NewClient(ip, port)
	c.HTTPClient = s.http
	c.SetRetry(0, 0)
	return c
}

func (s *Scanner) port() int {
	if s.Port == 0 {
		return DefaultPort
	}
	return s.Port
}

func (s *Scanner) maxInFlight() int {
	if s.MaxInFlight <= 0 {
		return limiter.DefaultMax
	}
	return s.MaxInFlight
}
