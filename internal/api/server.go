package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/sim8085-launcher/internal/auth"
	"github.com/nerrad567/sim8085-launcher/internal/infrastructure/config"
	"github.com/nerrad567/sim8085-launcher/internal/infrastructure/logging"
	"github.com/nerrad567/sim8085-launcher/internal/journal"
	"github.com/nerrad567/sim8085-launcher/internal/process"
)

// ListenHost is the only interface the control API binds.
const ListenHost = "127.0.0.1"

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 3 * time.Second

// Backend is the read side of the process supervisor.
type Backend interface {
	Stats() process.Stats
}

// LaunchHistory is the read side of the launch journal.
type LaunchHistory interface {
	Recent(ctx context.Context, limit int) ([]journal.Launch, error)
	Get(ctx context.Context, session string) (*journal.Launch, error)
}

// Checker is an optional integration that can report its own health.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Signer  *auth.Signer
	Backend Backend
	Hub     *Hub

	// History is optional; /launches answers 503 without it.
	History LaunchHistory

	// Metrics is optional; /metrics answers 503 without it.
	Metrics http.Handler

	// Checks are reported by /health, keyed by component name.
	Checks map[string]Checker

	Session string
	Version string
}

// Server is the HTTP control API.
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	signer  *auth.Signer
	backend Backend
	history LaunchHistory
	metrics http.Handler
	checks  map[string]Checker
	hub     *Hub
	session string
	version string

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Signer == nil {
		return nil, fmt.Errorf("token signer is required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}

	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.Config.WebSocket, deps.Logger)
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		signer:  deps.Signer,
		backend: deps.Backend,
		history: deps.History,
		metrics: deps.Metrics,
		checks:  deps.Checks,
		hub:     hub,
		session: deps.Session,
		version: deps.Version,
	}, nil
}

// Start binds 127.0.0.1:port and serves in the background.
//
// Unlike a plain ListenAndServe, the bind happens before Start returns so a
// port lost to another process is reported to the caller.
func (s *Server) Start(ctx context.Context, port uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(ListenHost, strconv.Itoa(int(port))))
	if err != nil {
		return fmt.Errorf("binding control API: %w", err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("control API listening", "address", ln.Addr().String())
	return nil
}

// URL returns the base URL of the running server, or "" before Start.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// Close stops the hub and waits briefly for in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.server, s.cancel, s.listener = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("control API shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// Hub returns the event hub, for subscribing it to the event bus.
func (s *Server) Hub() *Hub {
	return s.hub
}
