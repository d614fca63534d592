package process

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning indicates Start was called while a handle is held.
	ErrAlreadyRunning = errors.New("process: backend already started")

	// ErrShutdownTimeout indicates the child outlived both the graceful and
	// the kill wait and was abandoned.
	ErrShutdownTimeout = errors.New("process: shutdown timed out")
)

// SpawnError reports that the OS could not start the backend.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
