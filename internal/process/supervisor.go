package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Environment contract with the backend.
const (
	EnvBackendPort = "BACKEND_PORT"
	EnvBackendHost = "BACKEND_HOST"

	// DefaultMarkerEnv tells the backend it runs under a supervisor.
	DefaultMarkerEnv = "BACKEND_SUPERVISED=1"

	// BackendHost is the only interface the backend is asked to bind.
	BackendHost = "127.0.0.1"
)

// Default shutdown bounds.
const (
	DefaultGracefulTimeout = 5 * time.Second
	DefaultKillTimeout     = 2 * time.Second
)

// Status represents the state of the supervised handle.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
)

// Outcome describes how Shutdown ended.
type Outcome string

const (
	OutcomeNotStarted    Outcome = "not_started"
	OutcomeAlreadyExited Outcome = "already_exited"
	OutcomeTerminated    Outcome = "terminated"
	OutcomeKilled        Outcome = "killed"
	OutcomeAbandoned     Outcome = "abandoned"
)

// Config holds configuration for the supervisor.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// MarkerEnv is a KEY=VALUE pair added to the child environment.
	// Empty uses DefaultMarkerEnv.
	MarkerEnv string

	// Env are additional KEY=VALUE variables for the child.
	Env []string

	// WorkDir is the child working directory. Empty means the directory of
	// the backend executable.
	WorkDir string

	// GracefulTimeout is how long to wait after the termination request.
	GracefulTimeout time.Duration

	// KillTimeout is how long to wait after Kill before abandoning.
	KillTimeout time.Duration

	// Spawn starts the child. Nil uses os/exec.
	Spawn SpawnFunc
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Info describes a started backend.
type Info struct {
	PID       int       `json:"pid"`
	Path      string    `json:"path"`
	Port      uint16    `json:"port"`
	StartedAt time.Time `json:"started_at"`
}

// ShutdownResult describes one Shutdown call.
type ShutdownResult struct {
	Outcome  Outcome
	PID      int
	ExitCode int
	Duration time.Duration
	Err      error
}

// Supervisor owns the single backend handle.
type Supervisor struct {
	config Config
	logger Logger

	mu      sync.Mutex
	proc    Process
	info    Info
	starts  int
	lastRes *ShutdownResult
}

// NewSupervisor creates a supervisor, applying defaults for zero values.
func NewSupervisor(cfg Config) *Supervisor {
	if cfg.Name == "" {
		cfg.Name = "backend"
	}
	if cfg.MarkerEnv == "" {
		cfg.MarkerEnv = DefaultMarkerEnv
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = DefaultGracefulTimeout
	}
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = DefaultKillTimeout
	}

	return &Supervisor{
		config: cfg,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// Start launches the backend at path bound to port and stores its handle.
//
// ctx only gates the launch; the child's lifetime is ended by Shutdown,
// never by ctx. A second Start while a handle is held returns
// ErrAlreadyRunning. OS launch failures return *SpawnError and leave the
// supervisor empty.
func (s *Supervisor) Start(ctx context.Context, path string, port uint16) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil {
		return Info{}, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, s.proc.PID())
	}
	if err := ctx.Err(); err != nil {
		return Info{}, fmt.Errorf("starting %s: %w", s.config.Name, err)
	}

	spec := Spec{
		Name:    s.config.Name,
		Path:    path,
		Env:     s.childEnv(port),
		WorkDir: s.config.WorkDir,
	}
	if spec.WorkDir == "" {
		spec.WorkDir = filepath.Dir(path)
	}

	s.logger.Info("starting backend",
		"name", s.config.Name,
		"path", path,
		"port", port,
	)

	spawn := s.config.Spawn
	if spawn == nil {
		spawn = func(sp Spec) (Process, error) { return spawnExec(sp, s.logger) }
	}

	proc, err := spawn(spec)
	if err != nil {
		return Info{}, &SpawnError{Path: path, Err: err}
	}

	s.proc = proc
	s.starts++
	s.lastRes = nil
	s.info = Info{
		PID:       proc.PID(),
		Path:      path,
		Port:      port,
		StartedAt: time.Now(),
	}

	s.logger.Info("backend started",
		"name", s.config.Name,
		"pid", s.info.PID,
	)

	return s.info, nil
}

// childEnv is the inherited environment plus the backend contract.
func (s *Supervisor) childEnv(port uint16) []string {
	env := os.Environ()
	env = append(env,
		EnvBackendPort+"="+strconv.Itoa(int(port)),
		EnvBackendHost+"="+BackendHost,
		s.config.MarkerEnv,
	)
	return append(env, s.config.Env...)
}

// Shutdown takes the handle, if any, and ensures the child has exited.
//
// The lock is held for the whole call, so concurrent callers serialise and
// every call after the first reports OutcomeNotStarted.
func (s *Supervisor) Shutdown() ShutdownResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	proc := s.proc
	s.proc = nil
	if proc == nil {
		return ShutdownResult{Outcome: OutcomeNotStarted, ExitCode: -1}
	}

	start := time.Now()
	res := s.stop(proc)
	res.PID = proc.PID()
	res.Duration = time.Since(start)
	s.lastRes = &res

	switch res.Outcome {
	case OutcomeAbandoned:
		s.logger.Error("backend did not exit, abandoning",
			"name", s.config.Name,
			"pid", res.PID,
			"graceful_timeout", s.config.GracefulTimeout,
			"kill_timeout", s.config.KillTimeout,
		)
	default:
		s.logger.Info("backend stopped",
			"name", s.config.Name,
			"pid", res.PID,
			"outcome", res.Outcome,
			"exit_code", res.ExitCode,
			"duration", res.Duration,
		)
	}

	return res
}

// stop runs the terminate, kill, abandon escalation.
func (s *Supervisor) stop(proc Process) ShutdownResult {
	select {
	case <-proc.Done():
		return ShutdownResult{Outcome: OutcomeAlreadyExited, ExitCode: proc.ExitCode()}
	default:
	}

	s.logger.Info("stopping backend", "name", s.config.Name, "pid", proc.PID())

	graceful := s.config.GracefulTimeout
	if err := proc.Terminate(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("termination request failed, killing",
			"name", s.config.Name,
			"error", err,
		)
		graceful = 0
	}

	if waitDone(proc, graceful) {
		return ShutdownResult{Outcome: OutcomeTerminated, ExitCode: proc.ExitCode()}
	}

	if graceful > 0 {
		s.logger.Warn("graceful shutdown timeout, killing",
			"name", s.config.Name,
			"timeout", graceful,
		)
	}

	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("kill failed", "name", s.config.Name, "error", err)
	}

	if waitDone(proc, s.config.KillTimeout) {
		return ShutdownResult{Outcome: OutcomeKilled, ExitCode: proc.ExitCode()}
	}

	return ShutdownResult{Outcome: OutcomeAbandoned, ExitCode: -1, Err: ErrShutdownTimeout}
}

// waitDone reports whether proc exited within d. d <= 0 only polls.
func waitDone(proc Process, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-proc.Done():
			return true
		default:
			return false
		}
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-proc.Done():
		return true
	case <-t.C:
		return false
	}
}

// Running reports whether a handle is held and the child has not exited.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked() == StatusRunning
}

// PID returns the child PID, or 0 if no handle is held.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return 0
	}
	return s.info.PID
}

// Info returns the current handle's start info and whether one is held.
func (s *Supervisor) Info() (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info, s.proc != nil
}

// Done returns a channel closed when the current child exits. It returns nil
// when no handle is held; a nil channel blocks forever in a select.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return nil
	}
	return s.proc.Done()
}

// ExitCode returns the exit code of the held child once it has exited.
func (s *Supervisor) ExitCode() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil || s.statusLocked() != StatusExited {
		return -1, false
	}
	return s.proc.ExitCode(), true
}

func (s *Supervisor) statusLocked() Status {
	if s.proc == nil {
		return StatusStopped
	}
	select {
	case <-s.proc.Done():
		return StatusExited
	default:
		return StatusRunning
	}
}

// Stats holds statistics about the supervised backend.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	PID          int           `json:"pid,omitempty"`
	Port         uint16        `json:"port,omitempty"`
	Path         string        `json:"path,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	Starts       int           `json:"starts"`
	LastOutcome  Outcome       `json:"last_outcome,omitempty"`
	LastExitCode *int          `json:"last_exit_code,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the backend.
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Name:   s.config.Name,
		Status: s.statusLocked(),
		Starts: s.starts,
	}

	if s.proc != nil {
		stats.PID = s.info.PID
		stats.Port = s.info.Port
		stats.Path = s.info.Path
		switch stats.Status {
		case StatusRunning:
			stats.Uptime = time.Since(s.info.StartedAt)
		case StatusExited:
			code := s.proc.ExitCode()
			stats.LastExitCode = &code
			if err := s.proc.Err(); err != nil {
				stats.LastError = err.Error()
			}
		}
	}

	if s.lastRes != nil {
		stats.LastOutcome = s.lastRes.Outcome
		code := s.lastRes.ExitCode
		stats.LastExitCode = &code
		if s.lastRes.Err != nil {
			stats.LastError = s.lastRes.Err.Error()
		}
	}

	return stats
}

// Name returns the configured process name.
func (s *Supervisor) Name() string {
	return s.config.Name
}
