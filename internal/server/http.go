package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/muurk/wledui/internal/board"
	"github.com/muurk/wledui/internal/dashboard"
	"github.com/muurk/wledui/internal/discovery"
	"github.com/muurk/wledui/internal/logging"
	"github.com/muurk/wledui/internal/version"
	"github.com/muurk/wledui/internal/wled"
)

const maxBodyBytes = 64 << 10

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wledui_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		},
		[]string{"route", "method", "status"},
	)
	requestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wledui_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestSeconds)
}

// response is the {ok, data, error} envelope. Fields carries per-field
// messages for rejected forms.
type response struct {
	wled.Result[any]
	Fields board.FieldErrors `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, response{Result: wled.Result[any]{OK: true, Data: data}})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, response{Result: wled.Result[any]{Error: msg}})
}

// writeFailure maps a controller error to a status code and the envelope.
func writeFailure(w http.ResponseWriter, err error) {
	var fields board.FieldErrors
	switch {
	case errors.As(err, &fields):
		writeJSON(w, http.StatusUnprocessableEntity, response{
			Result: wled.Result[any]{Error: "Invalid board details"},
			Fields: fields,
		})
		return
	case errors.Is(err, dashboard.ErrBoardNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, dashboard.ErrDiscoveryRunning):
		writeError(w, http.StatusConflict, err.Error())
		return
	case wled.IsValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, wled.ShortMessage(err))
		return
	case wled.IsCanceled(err), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, wled.ShortMessage(err))
		return
	}
	writeError(w, http.StatusBadGateway, wled.ShortMessage(err))
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// routes builds the HTTP handler tree.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.metrics)
	r.Handle("/ws", s.hub)
	r.Get("/", s.handleIndex)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/discover", s.handleDiscover)
		r.Delete("/discover", s.handleCancelDiscover)

		r.Route("/boards", func(r chi.Router) {
			r.Get("/", s.handleListBoards)
			r.Post("/", s.handleAddManual)
			r.Post("/test", s.handleTestIP)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetBoard)
				r.Delete("/", s.handleRemoveBoard)
				r.Post("/power", s.handlePower)
				r.Post("/brightness", s.handleBrightness)
				r.Post("/sync", s.handleSync)
				r.Post("/refresh", s.handleRefreshBoard)
			})
		})
	})
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the hijacker for /ws.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		requestSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status, elapsed)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

type statusResponse struct {
	Version     string    `json:"version"`
	Boards      int       `json:"boards"`
	Online      int       `json:"online"`
	Offline     int       `json:"offline"`
	Loading     bool      `json:"loading"`
	Discovering bool      `json:"discovering"`
	Error       string    `json:"error,omitempty"`
	LastRefresh time.Time `json:"lastRefresh"`
	Clients     int       `json:"clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.ctrl.Store().State()
	online, offline := board.Counts(st.Boards)
	writeData(w, statusResponse{
		Version:     version.Version,
		Boards:      len(st.Boards),
		Online:      online,
		Offline:     offline,
		Loading:     st.Loading,
		Discovering: s.ctrl.Discovering(),
		Error:       st.Error,
		LastRefresh: st.LastRefresh,
		Clients:     s.hub.Clients(),
	})
}

func (s *Server) handleListBoards(w http.ResponseWriter, _ *http.Request) {
	writeData(w, s.ctrl.Boards())
}

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Boards()
	b, ok := s.ctrl.Store().Find(chi.URLParam(r, "id"))
	if !ok {
		writeFailure(w, dashboard.ErrBoardNotFound)
		return
	}
	writeData(w, b)
}

type manualRequest struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
	Port any    `json:"port,omitempty"`
}

func (s *Server) handleAddManual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in := board.ManualInput{Name: req.Name, IP: req.IP}
	switch p := req.Port.(type) {
	case float64:
		in.Port = strconv.Itoa(int(p))
	case string:
		in.Port = p
	}

	b, err := s.ctrl.AddManual(r.Context(), in)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, response{Result: wled.Result[any]{OK: true, Data: b}})
}

type testIPRequest struct {
	IP string `json:"ip"`
}

func (s *Server) handleTestIP(w http.ResponseWriter, r *http.Request) {
	var req testIPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	b, err := s.ctrl.AddByIP(r.Context(), req.IP)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if s.config.RememberTestIP != nil {
		s.config.RememberTestIP(req.IP)
	}
	writeData(w, b)
}

func (s *Server) handleRemoveBoard(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Remove(chi.URLParam(r, "id")); err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, nil)
}

type powerRequest struct {
	On *bool `json:"on"`
}

func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	var req powerRequest
	if err := decodeJSON(r, &req); err != nil || req.On == nil {
		writeError(w, http.StatusBadRequest, `body must be {"on": true|false}`)
		return
	}
	s.command(w, r, func(ctx context.Context, id string) error {
		return s.ctrl.TogglePower(ctx, id, *req.On)
	})
}

type brightnessRequest struct {
	Bri *int `json:"bri"`
}

func (s *Server) handleBrightness(w http.ResponseWriter, r *http.Request) {
	var req brightnessRequest
	if err := decodeJSON(r, &req); err != nil || req.Bri == nil {
		writeError(w, http.StatusBadRequest, `body must be {"bri": 0-255}`)
		return
	}
	s.command(w, r, func(ctx context.Context, id string) error {
		return s.ctrl.SetBrightness(ctx, id, *req.Bri)
	})
}

type syncRequest struct {
	Receive *bool `json:"receive"`
	Send    *bool `json:"send"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeJSON(r, &req); err != nil || req.Receive == nil || req.Send == nil {
		writeError(w, http.StatusBadRequest, `body must be {"receive": bool, "send": bool}`)
		return
	}
	s.command(w, r, func(ctx context.Context, id string) error {
		return s.ctrl.SetSync(ctx, id, *req.Receive, *req.Send)
	})
}

// command runs a control operation and answers with the board's state
// afterwards, which is the rolled-back one on failure.
func (s *Server) command(w http.ResponseWriter, r *http.Request, run func(context.Context, string) error) {
	id := chi.URLParam(r, "id")
	if err := run(r.Context(), id); err != nil {
		writeFailure(w, err)
		return
	}
	b, _ := s.ctrl.Store().Find(id)
	writeData(w, b)
}

func (s *Server) handleRefreshBoard(w http.ResponseWriter, r *http.Request) {
	b, err := s.ctrl.Refresh(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, b)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.RefreshAll(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, s.ctrl.Store().Boards())
}

type discoverRequest struct {
	Range string `json:"range"`
}

type discoveryResult struct {
	Range string `json:"range"`
	Found int    `json:"found"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	base := req.Range
	if base != "" {
		normalized, err := discovery.NormalizeRange(base)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		base = normalized
	}

	onProgress := func(p discovery.Progress) {
		s.hub.Broadcast(Event{Type: EventProgress, Data: p})
	}
	onDone := func(found []board.Board, err error) {
		res := discoveryResult{Range: base, Found: len(found), Done: true}
		if err != nil {
			res.Error = wled.ShortMessage(err)
		}
		s.hub.Broadcast(Event{Type: EventDiscovery, Data: res})
	}

	if err := s.ctrl.StartDiscovery(base, onProgress, onDone); err != nil {
		writeFailure(w, err)
		return
	}
	if base != "" && s.config.RememberRange != nil {
		s.config.RememberRange(base)
	}

	logging.Info("Discovery started from browser", zap.String("range", base))
	s.hub.Broadcast(Event{Type: EventDiscovery, Data: discoveryResult{Range: base}})
	writeJSON(w, http.StatusAccepted, response{Result: wled.Result[any]{OK: true, Data: discoveryResult{Range: base}}})
}

func (s *Server) handleCancelDiscover(w http.ResponseWriter, _ *http.Request) {
	if !s.ctrl.CancelDiscovery() {
		writeError(w, http.StatusConflict, "no discovery running")
		return
	}
	writeData(w, nil)
}
