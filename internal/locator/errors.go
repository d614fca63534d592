package locator

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendNotFound indicates no candidate path held the backend binary.
	ErrBackendNotFound = errors.New("locator: backend executable not found")

	// ErrInvalidMode indicates an unknown build mode string.
	ErrInvalidMode = errors.New("locator: invalid mode")
)

// NotFoundError carries every path that was checked.
type NotFoundError struct {
	Candidates []Candidate
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s (checked %d candidates)", ErrBackendNotFound, len(e.Candidates))
}

func (e *NotFoundError) Unwrap() error {
	return ErrBackendNotFound
}
