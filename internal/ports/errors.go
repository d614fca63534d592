package ports

import "errors"

var (
	// ErrNoFreePort is returned when every port in the range failed to bind.
	ErrNoFreePort = errors.New("ports: no free port in range")

	// ErrInvalidRange is returned for an empty or zero-based range.
	ErrInvalidRange = errors.New("ports: invalid range")
)
