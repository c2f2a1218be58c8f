package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/wledui/internal/dashboard"
	"github.com/muurk/wledui/internal/logging"
	"github.com/muurk/wledui/internal/store"
)

// DefaultShutdownTimeout bounds how long Shutdown waits for open requests.
const DefaultShutdownTimeout = 5 * time.Second

//go:embed static/index.html
var indexHTML []byte

// Config holds the server configuration
type Config struct {
	Addr            string
	AutoRefresh     bool          // Run the periodic board refresh while serving
	ShutdownTimeout time.Duration // Zero means DefaultShutdownTimeout

	// RememberRange and RememberTestIP, if set, are told about ranges and
	// addresses the browser used so the next session can prefill them.
	RememberRange  func(base string)
	RememberTestIP func(ip string)
}

// Server is the browser dashboard: a REST API over the controller plus a
// WebSocket stream of board and discovery events.
type Server struct {
	config  *Config
	ctrl    *dashboard.Controller
	hub     *Hub
	metrics http.Handler
	handler http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	unsub      func()
	cancelRun  context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a server around ctrl. Store changes are pushed to WebSocket
// clients from the moment New returns.
func New(config *Config, ctrl *dashboard.Controller) *Server {
	if config == nil {
		config = &Config{}
	}
	s := &Server{
		config:  config,
		ctrl:    ctrl,
		hub:     NewHub(),
		metrics: promhttp.Handler(),
	}
	s.hub.Snapshot = func() Event {
		return Event{Type: EventBoards, Data: ctrl.Store().State()}
	}
	s.unsub = ctrl.Store().Subscribe(func(st store.State) {
		s.hub.Broadcast(Event{Type: EventBoards, Data: st})
	})
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Addr returns the address the server is listening on, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start listens on the configured address and blocks until ctx is done, a
// shutdown signal arrives or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Addr
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	s.mu.Lock()
	s.listener = listener
	s.cancelRun = cancelRun
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	logging.Info("Starting dashboard server",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("auto_refresh", s.config.AutoRefresh),
	)

	if s.config.AutoRefresh {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = s.ctrl.Run(runCtx)
		}()
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
	case <-ctx.Done():
		logging.Info("Context canceled, stopping server...")
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		cancelRun()
		return fmt.Errorf("server failed: %w", err)
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests, cancels a running discovery, closes
// WebSocket clients and waits for background work.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.mu.Lock()
	httpServer, cancelRun := s.httpServer, s.cancelRun
	s.mu.Unlock()

	if cancelRun != nil {
		cancelRun()
	}
	s.ctrl.CancelDiscovery()
	s.hub.Close()
	if s.unsub != nil {
		s.unsub()
	}

	var err error
	if httpServer != nil {
		if err = httpServer.Shutdown(ctx); err != nil {
			logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
			_ = httpServer.Close()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn("Background refresh did not stop before shutdown timeout")
	}

	if ferr := s.ctrl.Store().Flush(); ferr != nil {
		logging.Error("Failed to save boards on shutdown", zap.Error(ferr))
	}

	logging.Sync()
	return err
}
