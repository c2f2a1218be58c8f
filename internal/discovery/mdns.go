package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/wledui/internal/board"
	"github.com/muurk/wledui/internal/limiter"
	"github.com/muurk/wledui/internal/logging"
)

const (
	// ServiceType is the mDNS service WLED firmware advertises
	ServiceType = "_wled._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultBrowseTimeout is how long Browse listens for announcements
	DefaultBrowseTimeout = 5 * time.Second
)

// BrowseServices lists WLED services announced on the local network until
// timeout or ctx ends. Duplicate announcements are collapsed by address.
func BrowseServices(ctx context.Context, timeout time.Duration) ([]*Service, error) {
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu       sync.Mutex
		services []*Service
		seen     = make(map[string]bool)
		done     = make(chan struct{})
	)

	go func() {
		defer close(done)
		for entry := range entries {
			svc := parseServiceEntry(entry)
			if svc == nil {
				continue
			}
			mu.Lock()
			if !seen[svc.Address()] {
				seen[svc.Address()] = true
				services = append(services, svc)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// zeroconf closes entries once the browse context ends.
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]*Service(nil), services...), nil
}

// Browse finds boards over mDNS and confirms each one through its JSON API.
// Services that do not answer as WLED are dropped.
func (s *Scanner) Browse(ctx context.Context, timeout time.Duration) ([]board.Board, error) {
	services, err := BrowseServices(ctx, timeout)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return s.confirm(ctx, services), nil
}

func (s *Scanner) confirm(ctx context.Context, services []*Service) []board.Board {
	lim := limiter.New(s.maxInFlight())
	var (
		mu    sync.Mutex
		found []board.Board
	)
	for _, svc := range services {
		svc := svc
		lim.Go(ctx, func(ctx context.Context) error {
			b, err := s.ProbeAddr(ctx, svc.IP, svc.Port)
			if err != nil {
				logging.Debug("mDNS service is not a WLED board",
					zap.String("service", svc.String()),
					zap.Error(err),
				)
				return err
			}
			mu.Lock()
			found = append(found, b)
			mu.Unlock()
			return nil
		}, nil)
	}
	lim.Wait()
	board.Sort(found)
	return found
}

// parseServiceEntry converts a zeroconf entry to a Service, or nil when it
// carries no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Service {
	if entry == nil {
		return nil
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		if addr != nil {
			ip = addr.String()
			break
		}
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return &Service{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
