// Package server exposes the task, event, scheduling and calendar operations
// over an HTTP JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"timeblock/internal/config"
	"timeblock/internal/gcal"
	"timeblock/internal/scheduler"
	"timeblock/internal/storage"
	"timeblock/pkg/logx"
)

const defaultAddr = ":5002"

// Server owns the HTTP listener and its handler graph.
type Server struct {
	cfg   config.ServerConfig
	log   logx.Logger
	store storage.Store
	sched *scheduler.Service
	cal   *gcal.Service // nil when calendar sync is disabled

	httpSrv *http.Server
	ln      net.Listener

	newID func() string
}

// New wires a Server; cal may be nil.
func New(cfg config.ServerConfig, store storage.Store, sched *scheduler.Service, cal *gcal.Service, log logx.Logger) *Server {
	return &Server{
		cfg:   cfg,
		log:   log,
		store: store,
		sched: sched,
		cal:   cal,
		newID: uuid.NewString,
	}
}

// Handler builds the full route table with CORS and rate limiting applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PUT /api/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)

	mux.HandleFunc("GET /api/events", s.handleListEvents)
	mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	mux.HandleFunc("GET /api/events/{id}", s.handleGetEvent)
	mux.HandleFunc("PUT /api/events/{id}", s.handleUpdateEvent)
	mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)

	mux.HandleFunc("POST /api/schedule", s.handleSchedule)

	mux.HandleFunc("GET /api/calendar/status", s.handleCalendarStatus)
	mux.HandleFunc("GET /api/calendar/auth", s.handleCalendarAuth)
	mux.HandleFunc("GET /api/calendar/callback", s.handleCalendarCallback)
	mux.HandleFunc("POST /api/calendar/sync", s.handleCalendarSync)
	mux.HandleFunc("GET /api/calendar/events", s.handleCalendarEvents)

	var h http.Handler = mux
	h = withRateLimit(s.cfg.RatePerSec, s.cfg.RateBurst, h)
	h = withCORS(s.cfg.CORSOrigins, h)
	return h
}

// Start binds the listener and serves in the background. Serve errors other
// than a clean shutdown are logged, not returned.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Addr
	if addr == "" {
		addr = defaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.ln = ln
	s.httpSrv = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  durationOr("server.read_timeout", s.cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: durationOr("server.write_timeout", s.cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  durationOr("server.idle_timeout", s.cfg.IdleTimeout, time.Minute),
	}
	s.log.Info("http server listening", logx.String("addr", ln.Addr().String()))
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", logx.Err(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func durationOr(path, raw string, def time.Duration) time.Duration {
	d, err := config.ParseDurationOrDefault(path, raw, def)
	if err != nil {
		return def
	}
	return d
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
