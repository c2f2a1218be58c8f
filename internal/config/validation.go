package config

import (
	"fmt"
	"net"
	"time"

	"github.com/muurk/wledui/internal/discovery"
)

// Validate checks the preferences and returns every problem found.
func (p *Preferences) Validate() []error {
	var errs []error

	if p.DiscoveryTimeout < 100*time.Millisecond || p.DiscoveryTimeout > time.Minute {
		errs = append(errs, fmt.Errorf("discovery_timeout must be between 100ms and 1m, got %s", p.DiscoveryTimeout))
	}
	if p.DefaultPort < 1 || p.DefaultPort > 65535 {
		errs = append(errs, fmt.Errorf("default_port must be between 1 and 65535, got %d", p.DefaultPort))
	}
	if err := ValidateNetworkRange(p.DefaultNetworkRange); err != nil {
		errs = append(errs, fmt.Errorf("default_network_range: %w", err))
	}
	if p.MaxInFlight < 1 || p.MaxInFlight > 254 {
		errs = append(errs, fmt.Errorf("max_in_flight must be between 1 and 254, got %d", p.MaxInFlight))
	}
	if p.AutoRefreshInterval < time.Second {
		errs = append(errs, fmt.Errorf("auto_refresh_interval must be at least 1s, got %s", p.AutoRefreshInterval))
	}
	if _, _, err := net.SplitHostPort(p.ListenAddr); err != nil {
		errs = append(errs, fmt.Errorf("listen_addr: %w", err))
	}

	return errs
}

// ValidateNetworkRange checks a /24 base such as "192.168.1" (a trailing dot
// is allowed).
func ValidateNetworkRange(base string) error {
	_, err := discovery.NormalizeRange(base)
	return err
}
