package launcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/sim8085-launcher/internal/events"
	"github.com/nerrad567/sim8085-launcher/internal/health"
	"github.com/nerrad567/sim8085-launcher/internal/locator"
	"github.com/nerrad567/sim8085-launcher/internal/ports"
	"github.com/nerrad567/sim8085-launcher/internal/process"
	"github.com/nerrad567/sim8085-launcher/internal/shell"
)

// DefaultFallbackPort is the backend's own default port.
const DefaultFallbackPort uint16 = 8085

// PortAllocator picks the backend port.
type PortAllocator interface {
	FindAvailablePort(r ports.Range) (uint16, error)
}

// PathResolver locates the backend executable.
type PathResolver interface {
	Resolve() (string, error)
}

// HealthChecker waits for the backend to accept connections.
type HealthChecker interface {
	Wait(ctx context.Context, port uint16) health.Result
}

// Supervisor owns the backend child process.
type Supervisor interface {
	Start(ctx context.Context, path string, port uint16) (process.Info, error)
	Shutdown() process.ShutdownResult
	Done() <-chan struct{}
	ExitCode() (int, bool)
}

// Publisher receives lifecycle events.
type Publisher interface {
	Publish(e events.Event)
}

// Logger defines the logging interface for the launcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopPublisher struct{}

func (noopPublisher) Publish(events.Event) {}

// Deps holds the launcher's collaborators. Events and Logger are optional.
type Deps struct {
	Ports        ports.Range
	FallbackPort uint16

	Allocator  PortAllocator
	Resolver   PathResolver
	Checker    HealthChecker
	Supervisor Supervisor
	Shell      shell.Shell

	Events Publisher
	Logger Logger
}

// Startup summarises the foreground startup sequence.
type Startup struct {
	Port     uint16
	Fallback bool
	Path     string
	PID      int
	Started  bool
	Healthy  bool
	Timings  map[string]time.Duration
}

// Launcher sequences the backend around the GUI shell.
type Launcher struct {
	deps   Deps
	logger Logger
	events Publisher
	now    func() time.Time
}

// New validates deps and returns a Launcher.
func New(deps Deps) (*Launcher, error) {
	switch {
	case deps.Allocator == nil:
		return nil, fmt.Errorf("%w: allocator", ErrMissingDependency)
	case deps.Resolver == nil:
		return nil, fmt.Errorf("%w: resolver", ErrMissingDependency)
	case deps.Checker == nil:
		return nil, fmt.Errorf("%w: health checker", ErrMissingDependency)
	case deps.Supervisor == nil:
		return nil, fmt.Errorf("%w: supervisor", ErrMissingDependency)
	case deps.Shell == nil:
		return nil, fmt.Errorf("%w: shell", ErrMissingDependency)
	}
	if deps.FallbackPort == 0 {
		deps.FallbackPort = DefaultFallbackPort
	}

	l := &Launcher{
		deps:   deps,
		logger: deps.Logger,
		events: deps.Events,
		now:    time.Now,
	}
	if l.logger == nil {
		l.logger = noopLogger{}
	}
	if l.events == nil {
		l.events = noopPublisher{}
	}
	return l, nil
}

// Run starts the backend, runs the shell in the foreground and always shuts
// the backend down before returning.
//
// Port exhaustion, a missing backend, a failed spawn and a failed health
// check are logged and published but never abort the launch; the shell runs
// regardless. The returned error comes from the shell alone.
func (l *Launcher) Run(ctx context.Context) error {
	startup := l.Start(ctx)

	stopWatch := l.watch(startup)
	defer func() {
		stopWatch()
		l.Shutdown()
	}()

	l.logger.Info("starting shell", "backend_port", startup.Port, "backend_started", startup.Started)
	err := l.deps.Shell.Run(ctx)
	if err != nil {
		l.logger.Error("shell failed", "error", err)
	} else {
		l.logger.Info("shell finished")
	}
	return err
}

// Start runs the startup sequence: port, path, spawn, health.
func (l *Launcher) Start(ctx context.Context) Startup {
	begin := l.now()
	res := Startup{Timings: make(map[string]time.Duration, 5)}

	phase := l.now()
	res.Port, res.Fallback = l.selectPort()
	res.Timings[events.PhasePortScan] = l.now().Sub(phase)
	l.events.Publish(events.Event{Type: events.PortSelected, Port: res.Port, Fallback: res.Fallback})

	if err := ExportBackendPort(res.Port); err != nil {
		l.logger.Warn("failed to export backend port", "error", err)
	}

	phase = l.now()
	path, ok := l.resolve()
	res.Timings[events.PhaseResolve] = l.now().Sub(phase)
	if ok {
		res.Path = path

		phase = l.now()
		info, err := l.deps.Supervisor.Start(ctx, path, res.Port)
		res.Timings[events.PhaseSpawn] = l.now().Sub(phase)

		if err != nil {
			l.logger.Error("failed to start backend", "path", path, "port", res.Port, "error", err)
			l.events.Publish(events.Event{Type: events.SpawnFailed, Path: path, Port: res.Port, Error: err.Error()})
		} else {
			res.Started = true
			res.PID = info.PID
			l.events.Publish(events.Event{Type: events.BackendStarted, PID: info.PID, Path: path, Port: res.Port})

			phase = l.now()
			hr := l.deps.Checker.Wait(ctx, res.Port)
			res.Timings[events.PhaseHealth] = l.now().Sub(phase)
			res.Healthy = hr.Healthy

			if hr.Healthy {
				l.logger.Info("backend healthy", "port", res.Port, "attempts", hr.Attempts)
			} else {
				l.logger.Warn("backend did not become healthy, continuing",
					"port", res.Port,
					"attempts", hr.Attempts,
					"error", hr.LastErr,
				)
			}
			ev := events.Event{
				Type:     events.HealthChecked,
				Port:     res.Port,
				Healthy:  hr.Healthy,
				Attempts: hr.Attempts,
				Duration: hr.Elapsed,
			}
			if hr.LastErr != nil && !hr.Healthy {
				ev.Error = hr.LastErr.Error()
			}
			l.events.Publish(ev)
		}
	}

	res.Timings[events.PhaseTotal] = l.now().Sub(begin)
	l.events.Publish(events.Event{
		Type:    events.StartupCompleted,
		Port:    res.Port,
		PID:     res.PID,
		Path:    res.Path,
		Healthy: res.Healthy,
		Timings: res.Timings,
	})

	return res
}

// selectPort scans the configured range and falls back to the fixed default.
func (l *Launcher) selectPort() (uint16, bool) {
	port, err := l.deps.Allocator.FindAvailablePort(l.deps.Ports)
	if err == nil {
		l.logger.Info("backend port selected", "port", port, "range", l.deps.Ports.String())
		return port, false
	}

	l.logger.Warn("no free port in range, using fallback",
		"range", l.deps.Ports.String(),
		"fallback", l.deps.FallbackPort,
		"error", err,
	)
	return l.deps.FallbackPort, true
}

// resolve locates the backend and publishes BackendNotFound on failure.
func (l *Launcher) resolve() (string, bool) {
	path, err := l.deps.Resolver.Resolve()
	if err == nil {
		return path, true
	}

	ev := events.Event{Type: events.BackendNotFound, Error: err.Error()}
	var nf *locator.NotFoundError
	if errors.As(err, &nf) {
		ev.Candidates = make([]string, 0, len(nf.Candidates))
		for _, c := range nf.Candidates {
			ev.Candidates = append(ev.Candidates, c.Path)
		}
	}

	l.logger.Error("backend executable not found, continuing without backend",
		"candidates", len(ev.Candidates),
		"error", err,
	)
	l.events.Publish(ev)
	return "", false
}

// watch reports a backend exit that happens while the shell is running.
// The returned func stops the watcher and waits for it.
func (l *Launcher) watch(s Startup) func() {
	if !s.Started {
		return func() {}
	}

	done := l.deps.Supervisor.Done()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		select {
		case <-stop:
		case <-done:
			code, _ := l.deps.Supervisor.ExitCode()
			l.logger.Warn("backend exited unexpectedly", "pid", s.PID, "exit_code", code)
			l.events.Publish(events.Event{
				Type:     events.BackendExited,
				PID:      s.PID,
				Port:     s.Port,
				ExitCode: events.IntPtr(code),
			})
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
}

// Shutdown stops the backend and publishes BackendStopped. Safe to call
// more than once; later calls publish nothing.
func (l *Launcher) Shutdown() process.ShutdownResult {
	res := l.deps.Supervisor.Shutdown()
	if res.Outcome == process.OutcomeNotStarted {
		return res
	}

	ev := events.Event{
		Type:     events.BackendStopped,
		PID:      res.PID,
		Outcome:  string(res.Outcome),
		Duration: res.Duration,
	}
	if res.Outcome != process.OutcomeAbandoned {
		ev.ExitCode = events.IntPtr(res.ExitCode)
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
		l.logger.Error("backend shutdown incomplete", "pid", res.PID, "error", res.Err)
	}
	l.events.Publish(ev)
	return res
}
