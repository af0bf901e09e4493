package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/autobrake/internal/autobrake"
	"github.com/banshee-data/autobrake/internal/config"
	"github.com/banshee-data/autobrake/internal/db"
	"github.com/banshee-data/autobrake/internal/httputil"
	"github.com/banshee-data/autobrake/internal/monitoring"
	"github.com/banshee-data/autobrake/internal/serialmux"
	"github.com/banshee-data/autobrake/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxEventLimit caps /api/events?limit=.
const maxEventLimit = 1000

// EventStore reads back recorded brake events.
type EventStore interface {
	RecentEvents(ctx context.Context, limit int) ([]db.BrakeEvent, error)
}

type Server struct {
	node   *autobrake.Node
	cfg    *config.AutobrakeConfig
	m      serialmux.SerialMuxInterface
	events EventStore
}

// NewServer builds the HTTP API over node. m and events may be nil: without
// a serial link /api/command answers 503, and without a recorder so does
// /api/events.
func NewServer(node *autobrake.Node, cfg *config.AutobrakeConfig, m serialmux.SerialMuxInterface, events EventStore) *Server {
	return &Server{
		node:   node,
		cfg:    cfg,
		m:      m,
		events: events,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/bounds", s.showBounds)
	mux.HandleFunc("/api/state", s.showState)
	mux.HandleFunc("/api/events", s.listEvents)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/command", s.sendCommandHandler)
	mux.HandleFunc("/api/version", s.showVersion)
	return mux
}

func (s *Server) requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return false
	}
	return true
}

func (s *Server) showBounds(w http.ResponseWriter, r *http.Request) {
	if s.requireGet(w, r) {
		httputil.WriteJSONOK(w, s.node.Bounds())
	}
}

func (s *Server) showState(w http.ResponseWriter, r *http.Request) {
	if s.requireGet(w, r) {
		httputil.WriteJSONOK(w, s.node.Tracker().Status())
	}
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if s.requireGet(w, r) {
		httputil.WriteJSONOK(w, s.node.Stats())
	}
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if s.requireGet(w, r) {
		httputil.WriteJSONOK(w, version.Current())
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if s.requireGet(w, r) {
		httputil.WriteJSONOK(w, s.cfg.Resolved())
	}
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if !s.requireGet(w, r) {
		return
	}
	if s.events == nil {
		httputil.Unavailable(w, "Event recording is disabled")
		return
	}

	limit := db.DefaultEventLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxEventLimit {
			httputil.BadRequest(w,
				fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxEventLimit))
			return
		}
		limit = parsed
	}

	events, err := s.events.RecentEvents(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve events: %v", err))
		return
	}
	httputil.WriteJSONOK(w, events)
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.m == nil {
		httputil.Unavailable(w, "Serial link not available")
		return
	}

	command := strings.TrimSpace(r.FormValue("command"))
	if command == "" {
		httputil.BadRequest(w, "Missing command")
		return
	}
	if err := s.m.SendCommand(command); err != nil {
		monitoring.Logf("failed to send command %q: %v", command, err)
		httputil.InternalServerError(w, "Failed to send command")
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "sent"})
}
