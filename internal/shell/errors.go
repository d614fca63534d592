package shell

import "errors"

var (
	// ErrStart is returned when the GUI command could not be started.
	ErrStart = errors.New("shell: failed to start")

	// ErrExited is returned when the GUI command exited with a failure on
	// its own. Use errors.As with *exec.ExitError for the exit code.
	ErrExited = errors.New("shell: exited with failure")
)
