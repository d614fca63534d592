package health

import "errors"

var (
	// ErrUnhealthy indicates an HTTP probe got a non-2xx response.
	ErrUnhealthy = errors.New("health: unhealthy response")

	// ErrInvalidPort indicates a probe was asked to check port 0.
	ErrInvalidPort = errors.New("health: invalid port")
)
