package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/nerrad567/sim8085-launcher/internal/infrastructure/config"
)

// DefaultStopTimeout is how long the GUI gets to exit after the interrupt
// before it is killed.
const DefaultStopTimeout = 5 * time.Second

// Shell is the foreground phase of the launcher.
type Shell interface {
	// Run blocks until the shell is done or ctx is cancelled.
	Run(ctx context.Context) error
}

// Logger is the logging surface used by Exec.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// New returns Exec for a configured command, Wait otherwise.
func New(cfg config.ShellConfig) Shell {
	if cfg.Command == "" {
		return Wait{}
	}
	return &Exec{
		Command: cfg.Command,
		Args:    cfg.Args,
		WorkDir: cfg.WorkDir,
	}
}

// Wait blocks until ctx is cancelled.
type Wait struct{}

// Run implements Shell.
func (Wait) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Exec runs a GUI command as a foreground child.
type Exec struct {
	Command string
	Args    []string
	WorkDir string

	// Env is appended to the launcher's environment at Run time.
	Env []string

	// Stdio default to the launcher's own.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// StopTimeout defaults to DefaultStopTimeout.
	StopTimeout time.Duration

	logger Logger
}

// SetLogger sets the logger for start and exit messages.
func (e *Exec) SetLogger(logger Logger) {
	e.logger = logger
}

func (e *Exec) log() Logger {
	if e.logger == nil {
		return noopLogger{}
	}
	return e.logger
}

// Run implements Shell.
//
// The environment is read when Run is called so that variables exported
// during startup reach the GUI.
func (e *Exec) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	cmd := exec.CommandContext(ctx, e.Command, e.Args...) //nolint:gosec // command comes from the user's config
	cmd.Dir = e.WorkDir
	cmd.Env = append(os.Environ(), e.Env...)
	cmd.Stdin = orReader(e.Stdin, os.Stdin)
	cmd.Stdout = orWriter(e.Stdout, os.Stdout)
	cmd.Stderr = orWriter(e.Stderr, os.Stderr)

	cmd.Cancel = func() error {
		return interrupt(cmd.Process)
	}
	cmd.WaitDelay = e.StopTimeout
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultStopTimeout
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStart, e.Command, err)
	}

	started := time.Now()
	e.log().Info("GUI shell started", "command", e.Command, "pid", cmd.Process.Pid)

	err := cmd.Wait()
	elapsed := time.Since(started)

	if ctx.Err() != nil {
		e.log().Info("GUI shell stopped", "command", e.Command, "duration", elapsed, "wait_error", err)
		return nil
	}
	if err != nil {
		e.log().Warn("GUI shell failed", "command", e.Command, "duration", elapsed, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrExited, e.Command, err)
	}

	e.log().Info("GUI shell exited", "command", e.Command, "duration", elapsed)
	return nil
}

func orReader(r, fallback io.Reader) io.Reader {
	if r != nil {
		return r
	}
	return fallback
}

func orWriter(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}
