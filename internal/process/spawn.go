package process

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// outputBufferSize caps a buffered partial line before it is flushed anyway.
const outputBufferSize = 4096

// waitDelay bounds how long Wait keeps copying output after the child exits,
// in case a grandchild still holds the pipes.
const waitDelay = 2 * time.Second

// Spec describes how to launch the backend.
type Spec struct {
	Name    string
	Path    string
	Args    []string
	Env     []string
	WorkDir string
}

// Process is a running child as seen by the Supervisor.
type Process interface {
	PID() int

	// Terminate asks the process to exit. Returns os.ErrProcessDone if it
	// already has.
	Terminate() error

	// Kill forces the process to exit.
	Kill() error

	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}

	// ExitCode is valid after Done is closed; -1 when killed by a signal.
	ExitCode() int

	// Err is the wait error, valid after Done is closed.
	Err() error
}

// SpawnFunc starts a Process.
type SpawnFunc func(Spec) (Process, error)

// execProcess is the os/exec backed Process.
type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu       sync.Mutex
	exitCode int
	waitErr  error
}

// spawnExec starts spec.Path in its own process group with output forwarded
// to logger.
func spawnExec(spec Spec, logger Logger) (Process, error) {
	cmd := exec.Command(spec.Path, spec.Args...) //nolint:gosec // path comes from the locator candidate list
	cmd.Env = spec.Env
	cmd.Dir = spec.WorkDir
	cmd.SysProcAttr = sysProcAttr()
	cmd.WaitDelay = waitDelay

	stdout := &lineWriter{logger: logger, name: spec.Name, stream: "stdout"}
	stderr := &lineWriter{logger: logger, name: spec.Name, stream: "stderr"}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{
		cmd:      cmd,
		done:     make(chan struct{}),
		exitCode: -1,
	}

	go func() {
		err := cmd.Wait()
		stdout.Flush()
		stderr.Flush()

		p.mu.Lock()
		p.waitErr = err
		if cmd.ProcessState != nil {
			p.exitCode = cmd.ProcessState.ExitCode()
		}
		p.mu.Unlock()

		close(p.done)
	}()

	return p, nil
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Terminate() error {
	select {
	case <-p.done:
		return os.ErrProcessDone
	default:
	}
	return terminate(p.cmd.Process)
}

func (p *execProcess) Kill() error {
	select {
	case <-p.done:
		return os.ErrProcessDone
	default:
	}
	return kill(p.cmd.Process)
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *execProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// lineWriter logs each complete line written to it.
type lineWriter struct {
	logger Logger
	name   string
	stream string
	buf    bytes.Buffer
}

func (w *lineWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)

	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Incomplete line; put it back.
			w.buf.Write(line)
			break
		}
		w.emit(line[:len(line)-1])
	}

	if w.buf.Len() >= outputBufferSize {
		w.Flush()
	}

	return len(b), nil
}

// Flush logs any buffered partial line.
func (w *lineWriter) Flush() {
	if w.buf.Len() == 0 {
		return
	}
	w.emit(w.buf.Bytes())
	w.buf.Reset()
}

func (w *lineWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	w.logger.Debug("process output",
		"name", w.name,
		"stream", w.stream,
		"output", string(line),
	)
}

func (s Spec) String() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.Path)
}
