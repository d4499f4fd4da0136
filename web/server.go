// ABOUTME: HTTP server exposing research runs: start a run, list history, inspect events, view answers.
// ABOUTME: Runs execute in background goroutines; the chi router only schedules and reads history.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/2389-research/scout/pipeline"
	"github.com/2389-research/scout/render"
	"github.com/2389-research/scout/runner"
	"github.com/2389-research/scout/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Researcher executes a single run whose history row the server has already created.
// *runner.Runner satisfies it.
type Researcher interface {
	Research(ctx context.Context, runID, topic string, handlers ...func(pipeline.Event)) (*runner.Outcome, error)
}

// ServerConfig holds the configuration for the server.
type ServerConfig struct {
	Addr       string // listen address (default: "127.0.0.1:2389")
	Researcher Researcher
	Store      *store.SqliteStore
	Graph      *pipeline.GraphSpec // served at /api/graph.dot when set
	Render     render.Func         // optional; enables the .svg graph endpoints
	Logger     *slog.Logger
}

// Server is the scout HTTP server.
type Server struct {
	cfg       ServerConfig
	router    chi.Router
	logger    *slog.Logger
	templates *templates

	mu      sync.Mutex
	closing bool
	active  map[string]context.CancelFunc
	running sync.WaitGroup
	baseCtx context.Context
	stop    context.CancelFunc
}

// NewServer validates cfg and builds the router.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Researcher == nil {
		return nil, errors.New("web: Researcher must not be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("web: Store must not be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:2389"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("initializing templates: %w", err)
	}
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		templates: tmpl,
		active:    make(map[string]context.CancelFunc),
		baseCtx:   ctx,
		stop:      stop,
	}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP delegates to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then cancels in-flight runs and waits for them.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("web server listening", "addr", s.cfg.Addr)

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close cancels every in-flight run and waits for them to record their outcome.
// Runs started after Close are rejected with 503.
func (s *Server) Close() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.stop()
	s.running.Wait()
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/runs/{runID}", s.handleRunPage)

	r.Route("/api", func(r chi.Router) {
		r.Get("/graph.dot", s.handleGraph)
		r.Get("/graph.svg", s.handleGraphSVG)
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Post("/", s.handleStartRun)
			r.Route("/{runID}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Get("/events", s.handleRunEvents)
				r.Post("/cancel", s.handleCancelRun)
				r.Get("/graph.dot", s.handleRunGraph)
				r.Get("/graph.svg", s.handleRunGraphSVG)
			})
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startRequest struct {
	Topic string `json:"topic"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	s.running.Add(1)
	s.mu.Unlock()

	runID := runner.NewRunID()
	if _, err := s.cfg.Store.CreateRun(runID, topic); err != nil {
		s.running.Done()
		s.internalError(w, "create run", err)
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.mu.Lock()
	s.active[runID] = cancel
	s.mu.Unlock()

	go func() {
		defer s.running.Done()
		defer func() {
			s.mu.Lock()
			delete(s.active, runID)
			s.mu.Unlock()
			cancel()
		}()
		if _, err := s.cfg.Researcher.Research(ctx, runID, topic); err != nil {
			s.logger.Warn("background run failed", "run_id", runID, "error", err)
		}
	}()

	w.Header().Set("Location", "/api/runs/"+runID)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": runID, "status": string(store.StatusRunning)})
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	s.mu.Lock()
	cancel, ok := s.active[runID]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "no active run "+runID)
		return
	}
	cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"id": runID, "status": "cancelling"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.cfg.Store.ListRuns(limit)
	if err != nil {
		s.internalError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, chi.URLParam(r, "runID"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, chi.URLParam(r, "runID"))
	if !ok {
		return
	}
	events, err := s.cfg.Store.Events(run.ID)
	if err != nil {
		s.internalError(w, "list events", err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) lookupRun(w http.ResponseWriter, runID string) (*store.Run, bool) {
	run, err := s.cfg.Store.GetRun(runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		s.internalError(w, "get run", err)
		return nil, false
	}
	return run, true
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
