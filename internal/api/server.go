// Package api serves the live viewer endpoints and the run API over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docstream/internal/config"
	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/metrics"
	"git.home.luguber.info/inful/docstream/internal/pipeline"
	"git.home.luguber.info/inful/docstream/internal/stream"
)

// Server represents the HTTP surface of a docstream instance.
type Server struct {
	Addr string

	cfg      config.RunConfig
	runner   *pipeline.Runner
	hub      *stream.Hub
	registry *prom.Registry
	logger   *slog.Logger
	adapter  *derrors.HTTPErrorAdapter
	upgrader websocket.Upgrader
	limiter  *rateLimiter

	router *chi.Mux
	server *http.Server

	// runs tracks generations started through POST /runs.
	runs      sync.WaitGroup
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithRegistry exposes a Prometheus registry on /metrics.
func WithRegistry(reg *prom.Registry) Option { return func(s *Server) { s.registry = reg } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// NewServer creates a server for cfg. The runner's generator must own a hub.
func NewServer(cfg config.RunConfig, runner *pipeline.Runner, opts ...Option) *Server {
	cfg = cfg.Clone().Defaults()
	s := &Server{
		Addr:   net.JoinHostPort(cfg.Streaming.Host, strconv.Itoa(cfg.Streaming.Port)),
		cfg:    cfg,
		runner: runner,
		hub:    runner.Generator().Hub(),
		logger: slog.Default(),
		router: chi.NewRouter(),
	}
	for _, o := range opts {
		o(s)
	}
	s.adapter = derrors.NewHTTPErrorAdapter(s.logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	if rl := cfg.Security.RateLimit; rl.Enabled {
		s.limiter = newRateLimiter(rl.Window, rl.Max, time.Now)
	}
	s.runCtx, s.cancelRun = context.WithCancel(context.Background())

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// setupRoutes configures all routes. Streaming responses are long-lived, so
// no write timeout applies to the server.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	if s.cfg.Security.TrustForwarded {
		s.router.Use(middleware.RealIP)
	}
	s.router.Use(requestLogger(s.logger))
	s.router.Use(recoverer(s.logger, s.adapter))
	if s.cfg.Streaming.CORS.Enabled {
		s.router.Use(cors(s.cfg.Streaming.CORS.Origins))
	}
	if s.limiter != nil {
		s.router.Use(rateLimit(s.limiter, s.adapter))
	}

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.HTTPHandler(s.registry, s.logger))

	s.router.Group(func(r chi.Router) {
		if s.cfg.Streaming.Auth.Enabled {
			r.Use(tokenAuth(s.cfg.Streaming.Auth.Token, s.adapter))
		}
		r.Get("/clients", s.handleClients)
		r.Get("/stream", s.handleWebSocket)
		r.Get("/events/{streamId}", s.handleSSE)
		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Post("/broadcast/{streamId}", s.handleBroadcast)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", slog.String("addr", s.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", s.Addr, err)
	}
	return nil
}

// Shutdown stops accepting requests, cancels runs started over HTTP and waits for them.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	s.cancelRun()
	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}

// Response represents a standard API response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Success writes a success response.
func (s *Server) Success(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

// Fail writes a classified error with the status its category maps to.
func (s *Server) Fail(w http.ResponseWriter, r *http.Request, err error) {
	s.adapter.WriteErrorResponse(w, r, err)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (s *Server) handleClients(w http.ResponseWriter, _ *http.Request) {
	s.Success(w, http.StatusOK, s.hub.Clients())
}
