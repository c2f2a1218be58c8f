package config

import (
	"sync"
	"time"

	"github.com/muurk/wledui/internal/board"
	"github.com/muurk/wledui/internal/wled"
)

// Registry is the whole configuration file: saved boards, the last values
// typed into the discovery form, and preferences.
type Registry struct {
	Version      int          `yaml:"version"`
	Boards       []SavedBoard `yaml:"boards,omitempty"`
	LastRefresh  time.Time    `yaml:"last_refresh,omitempty"`
	NetworkRange string       `yaml:"network_range,omitempty"`
	TestIP       string       `yaml:"test_ip,omitempty"`
	Preferences  *Preferences `yaml:"preferences,omitempty"`

	path string
	mu   sync.Mutex
}

// SavedBoard is what survives a restart. Live state is re-fetched, so only
// identity, address and the sync flags are kept.
type SavedBoard struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	IP          string    `yaml:"ip"`
	Port        int       `yaml:"port,omitempty"`
	MAC         string    `yaml:"mac,omitempty"`
	Firmware    string    `yaml:"firmware,omitempty"`
	LEDCount    int       `yaml:"led_count,omitempty"`
	LastSeen    time.Time `yaml:"last_seen,omitempty"`
	SyncEmit    bool      `yaml:"sync_emit,omitempty"`
	SyncReceive bool      `yaml:"sync_receive,omitempty"`
	Manual      bool      `yaml:"manual,omitempty"`
}

// Preferences are application-wide settings.
type Preferences struct {
	DiscoveryTimeout    time.Duration `yaml:"discovery_timeout"`
	DefaultPort         int           `yaml:"default_port"`
	DefaultNetworkRange string        `yaml:"default_network_range"`
	MaxInFlight         int           `yaml:"max_in_flight"`
	AutoDiscover        bool          `yaml:"auto_discover"`
	AutoRefreshInterval time.Duration `yaml:"auto_refresh_interval"`
	MaxBoardsDisplay    int           `yaml:"max_boards_display"`
	ListenAddr          string        `yaml:"listen_addr"`
	Debug               bool          `yaml:"debug"`
}

const (
	DefaultNetworkRange        = "192.168.4"
	DefaultDiscoveryTimeout    = 2 * time.Second
	DefaultMaxInFlight         = 24
	DefaultAutoRefreshInterval = 30 * time.Second
	DefaultMaxBoardsDisplay    = 50
	DefaultListenAddr          = "127.0.0.1:8080"
)

// DefaultPreferences returns the built-in settings.
func DefaultPreferences() *Preferences {
	return &Preferences{
		DiscoveryTimeout:    DefaultDiscoveryTimeout,
		DefaultPort:         wled.DefaultPort,
		DefaultNetworkRange: DefaultNetworkRange,
		MaxInFlight:         DefaultMaxInFlight,
		AutoDiscover:        true,
		AutoRefreshInterval: DefaultAutoRefreshInterval,
		MaxBoardsDisplay:    DefaultMaxBoardsDisplay,
		ListenAddr:          DefaultListenAddr,
	}
}

// fillDefaults replaces zero values left by an older or hand-edited file.
func (p *Preferences) fillDefaults() {
	d := DefaultPreferences()
	if p.DiscoveryTimeout <= 0 {
		p.DiscoveryTimeout = d.DiscoveryTimeout
	}
	if p.DefaultPort == 0 {
		p.DefaultPort = d.DefaultPort
	}
	if p.DefaultNetworkRange == "" {
		p.DefaultNetworkRange = d.DefaultNetworkRange
	}
	if p.MaxInFlight <= 0 {
		p.MaxInFlight = d.MaxInFlight
	}
	if p.AutoRefreshInterval <= 0 {
		p.AutoRefreshInterval = d.AutoRefreshInterval
	}
	if p.MaxBoardsDisplay <= 0 {
		p.MaxBoardsDisplay = d.MaxBoardsDisplay
	}
	if p.ListenAddr == "" {
		p.ListenAddr = d.ListenAddr
	}
}

// NewRegistry creates a Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Preferences: DefaultPreferences(),
	}
}

// Prefs returns the preferences, never nil.
func (r *Registry) Prefs() *Preferences {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Preferences == nil {
		r.Preferences = DefaultPreferences()
	}
	return r.Preferences
}

// LastNetworkRange returns the range last scanned, or the default.
func (r *Registry) LastNetworkRange() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.NetworkRange != "" {
		return r.NetworkRange
	}
	if r.Preferences != nil && r.Preferences.DefaultNetworkRange != "" {
		return r.Preferences.DefaultNetworkRange
	}
	return DefaultNetworkRange
}

// SetNetworkRange remembers the range for next time and saves.
func (r *Registry) SetNetworkRange(base string) error {
	r.mu.Lock()
	r.NetworkRange = base
	r.mu.Unlock()
	return r.Save()
}

// LastTestIP returns the address last tested by hand.
func (r *Registry) LastTestIP() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.TestIP
}

// SetTestIP remembers the tested address and saves.
func (r *Registry) SetTestIP(ip string) error {
	r.mu.Lock()
	r.TestIP = ip
	r.mu.Unlock()
	return r.Save()
}

// LoadBoards implements store.Persister.
func (r *Registry) LoadBoards() ([]board.Board, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	boards := make([]board.Board, 0, len(r.Boards))
	for _, sb := range r.Boards {
		boards = append(boards, sb.toBoard())
	}
	return boards, r.LastRefresh, nil
}

// SaveBoards implements store.Persister.
func (r *Registry) SaveBoards(boards []board.Board, lastRefresh time.Time) error {
	saved := make([]SavedBoard, 0, len(boards))
	for _, b := range boards {
		saved = append(saved, fromBoard(b))
	}
	r.mu.Lock()
	r.Boards = saved
	r.LastRefresh = lastRefresh
	r.mu.Unlock()
	return r.Save()
}

func fromBoard(b board.Board) SavedBoard {
	sb := SavedBoard{
		ID:          b.ID,
		Name:        b.Name,
		IP:          b.IP,
		Port:        b.Port,
		LastSeen:    b.LastSeen,
		SyncEmit:    b.SyncEmit,
		SyncReceive: b.SyncReceive,
		Manual:      b.Manual,
	}
	if sb.Port == wled.DefaultPort {
		sb.Port = 0
	}
	if b.Info != nil {
		sb.MAC = b.Info.MAC
		sb.Firmware = b.Info.Ver
		sb.LEDCount = b.Info.LEDs.Count
	}
	return sb
}

func (sb SavedBoard) toBoard() board.Board {
	b := board.Board{
		ID:          sb.ID,
		Name:        sb.Name,
		IP:          sb.IP,
		Port:        sb.Port,
		LastSeen:    sb.LastSeen,
		SyncEmit:    sb.SyncEmit,
		SyncReceive: sb.SyncReceive,
		Manual:      sb.Manual,
	}
	if b.Port == 0 {
		b.Port = wled.DefaultPort
	}
	if b.ID == "" {
		b.ID = b.IP
	}
	if sb.MAC != "" || sb.Firmware != "" || sb.LEDCount != 0 {
		b.Info = &wled.Info{Name: sb.Name, MAC: sb.MAC, Ver: sb.Firmware, LEDs: wled.LEDsInfo{Count: sb.LEDCount}}
	}
	return b
}
