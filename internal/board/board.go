// Package board holds the Board record shared by discovery, the store and
// the dashboards, plus the small pure functions that derive new boards from
// old ones.
package board

import (
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/muurk/wledui/internal/wled"
)

// Board is a WLED board known to wledui.
type Board struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	IP          string      `json:"ip"`
	Port        int         `json:"port"`
	Info        *wled.Info  `json:"info,omitempty"`
	State       *wled.State `json:"state,omitempty"`
	LastSeen    time.Time   `json:"lastSeen"`
	IsOnline    bool        `json:"isOnline"`
	SyncEmit    bool        `json:"syncEmit"`
	SyncReceive bool        `json:"syncReceive"`
	Manual      bool        `json:"manual,omitempty"`
}

// Params describes a board to create. Zero fields get defaults.
type Params struct {
	ID    string
	Name  string
	IP    string
	Port  int
	Info  *wled.Info
	State *wled.State
}

// Now is the clock used for LastSeen.
var Now = time.Now

// New builds a board. The ID defaults to the IP, the port to 80, and the
// board counts as online when a state is known.
func New(p Params) Board {
	b := Board{
		ID:       p.ID,
		Name:     p.Name,
		IP:       p.IP,
		Port:     p.Port,
		Info:     p.Info,
		State:    p.State,
		LastSeen: Now(),
	}
	if b.ID == "" {
		b.ID = p.IP
	}
	if b.Port == 0 {
		b.Port = wled.DefaultPort
	}
	b.IsOnline = p.State != nil
	if p.State != nil {
		b.SyncEmit = p.State.UDPN.Send
		b.SyncReceive = p.State.UDPN.Receive
	}
	return b
}

// FromStatus builds a board from a /json response. Boards are keyed by MAC
// when the firmware reports one, so a board found by a sweep and the same
// board added by IP collapse into one entry.
func FromStatus(ip string, port int, resp *wled.StateResponse) Board {
	info, state := resp.Info, resp.State
	return New(Params{
		ID:    info.MAC,
		Name:  info.Name,
		IP:    ip,
		Port:  port,
		Info:  &info,
		State: &state,
	})
}

// WithState returns b refreshed with a newly fetched state. A nil state
// marks the board offline but keeps the last known one.
func WithState(b Board, state *wled.State) Board {
	b.LastSeen = Now()
	if state == nil {
		b.IsOnline = false
		return b
	}
	s := *state
	b.State = &s
	b.IsOnline = true
	b.SyncEmit = s.UDPN.Send
	b.SyncReceive = s.UDPN.Receive
	return b
}

// WithStatus is WithState plus a refreshed info document.
func WithStatus(b Board, resp *wled.StateResponse) Board {
	if resp == nil {
		return WithState(b, nil)
	}
	info := resp.Info
	b.Info = &info
	return WithState(b, &resp.State)
}

// MarkOffline returns b flagged offline.
func MarkOffline(b Board) Board {
	b.IsOnline = false
	b.LastSeen = Now()
	return b
}

// Clone returns a deep copy of b.
func (b Board) Clone() Board {
	if b.Info != nil {
		info := *b.Info
		b.Info = &info
	}
	if b.State != nil {
		state := *b.State
		if state.Seg != nil {
			state.Seg = append([]wled.Segment(nil), state.Seg...)
		}
		b.State = &state
	}
	return b
}

// Address returns "ip:port".
func (b Board) Address() string {
	return net.JoinHostPort(b.IP, strconv.Itoa(b.port()))
}

// URL returns the board's web UI address.
func (b Board) URL() string {
	return "http://" + b.Address()
}

// Client returns a JSON API client for the board.
func (b Board) Client() *wled.Client {
	return wled.NewClient(b.IP, b.port())
}

// On reports the last known power state.
func (b Board) On() bool {
	return b.State != nil && b.State.On
}

// Brightness returns the last known brightness (0..255).
func (b Board) Brightness() int {
	if b.State == nil {
		return 0
	}
	return b.State.Bri
}

// BrightnessPercent returns brightness scaled to 0..100.
func (b Board) BrightnessPercent() int {
	return (b.Brightness()*100 + 127) / 255
}

func (b Board) port() int {
	if b.Port == 0 {
		return wled.DefaultPort
	}
	return b.Port
}

var (
	collatorMu sync.Mutex
	collator   = collate.New(language.English, collate.IgnoreCase)
)

// Less orders online boards first, then by name.
func Less(a, b Board) bool {
	if a.IsOnline != b.IsOnline {
		return a.IsOnline
	}
	collatorMu.Lock()
	c := collator.CompareString(a.Name, b.Name)
	collatorMu.Unlock()
	if c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}

// Counts returns the number of online and offline boards.
func Counts(boards []Board) (online, offline int) {
	for _, b := range boards {
		if b.IsOnline {
			online++
		} else {
			offline++
		}
	}
	return online, offline
}
