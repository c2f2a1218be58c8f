package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/muurk/wledui/internal/board"
	"github.com/muurk/wledui/internal/config"
	"github.com/muurk/wledui/internal/dashboard"
	"github.com/muurk/wledui/internal/discovery"
	"github.com/muurk/wledui/internal/logging"
	"github.com/muurk/wledui/internal/store"
	"github.com/muurk/wledui/internal/wled"
)

// app is everything a command needs, wired from the config file.
type app struct {
	reg     *config.Registry
	prefs   *config.Preferences
	store   *store.Manager
	scanner *discovery.Scanner
	ctrl    *dashboard.Controller
}

func openApp() (*app, error) {
	var (
		reg *config.Registry
		err error
	)
	if configPath != "" {
		reg, err = config.Open(configPath)
	} else {
		reg, err = config.LoadRegistry()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	prefs := reg.Prefs()

	scanner := discovery.NewScanner()
	scanner.Port = prefs.DefaultPort
	scanner.Timeout = prefs.DiscoveryTimeout
	scanner.MaxInFlight = prefs.MaxInFlight
	if timeout > 0 {
		scanner.Timeout = timeout
	}

	m := store.NewManager(reg)
	m.Load()

	ctrl := dashboard.New(m, scanner, dashboard.Options{
		RefreshInterval: prefs.AutoRefreshInterval,
		MaxInFlight:     prefs.MaxInFlight,
		ClientFor:       clientFor,
	})

	logging.Debug("Config loaded",
		zap.String("path", reg.Path()),
		zap.Int("boards", len(m.Boards())),
	)

	return &app{reg: reg, prefs: prefs, store: m, scanner: scanner, ctrl: ctrl}, nil
}

func clientFor(b board.Board) *wled.Client {
	c := b.Client()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}

// Close writes any pending board changes.
func (a *app) Close() {
	if err := a.store.Flush(); err != nil {
		logging.Warn("Failed to save boards", zap.Error(err))
	}
	logging.Sync()
}

func (a *app) rememberRange(base string) {
	if err := a.reg.SetNetworkRange(base); err != nil {
		logging.Warn("Failed to save network range", zap.Error(err))
	}
}

func (a *app) rememberTestIP(ip string) {
	if err := a.reg.SetTestIP(ip); err != nil {
		logging.Warn("Failed to save test IP", zap.Error(err))
	}
}

// signalContext is canceled on Ctrl+C so sweeps stop cleanly.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// resolveBoard finds a board by ID, IP or case-insensitive name.
func resolveBoard(boards []board.Board, ref string) (board.Board, error) {
	ref = strings.TrimSpace(ref)
	if b, ok := board.Find(boards, ref); ok {
		return b, nil
	}
	for _, b := range boards {
		if b.IP == ref || b.Address() == ref {
			return b, nil
		}
	}

	var matches []board.Board
	for _, b := range boards {
		if strings.EqualFold(b.Name, ref) {
			matches = append(matches, b)
		}
	}
	switch len(matches) {
	case 0:
		return board.Board{}, fmt.Errorf("no board matches %q (see 'wledui list')", ref)
	case 1:
		return matches[0], nil
	}

	addrs := make([]string, len(matches))
	for i, b := range matches {
		addrs[i] = b.Address()
	}
	return board.Board{}, fmt.Errorf("%d boards are named %q (%s); use the IP instead", len(matches), ref, strings.Join(addrs, ", "))
}

// parseOnOff accepts on/off, true/false, yes/no and 1/0.
func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid value %q (use on or off)", s)
}

// parseBrightness accepts a raw 0..255 value or a percentage like "40%".
func parseBrightness(s string) (int, error) {
	s = strings.TrimSpace(s)
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		n, err := strconv.Atoi(pct)
		if err != nil || n < 0 || n > 100 {
			return 0, fmt.Errorf("invalid brightness %q (use 0%%-100%%)", s)
		}
		return (n*255 + 50) / 100, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 255 {
		return 0, fmt.Errorf("invalid brightness %q (use 0-255 or a percentage)", s)
	}
	return n, nil
}
