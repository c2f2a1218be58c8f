package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Service is a WLED board advertised over mDNS, before its JSON API has been
// checked.
type Service struct {
	// Instance is the advertised instance name, usually the board's name
	Instance string

	// Hostname is the mDNS hostname (e.g., "wled-desk.local.")
	Hostname string

	IP   string
	Port int

	// Metadata holds TXT record key/values. WLED publishes "mac".
	Metadata map[string]string

	DiscoveredAt time.Time
}

// String returns a human-readable description
func (s *Service) String() string {
	return fmt.Sprintf("%s (%s) at %s", s.Instance, s.Hostname, s.Address())
}

// Address returns "ip:port"
func (s *Service) Address() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// GetMetadata returns a TXT value, or "" when absent
func (s *Service) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}
