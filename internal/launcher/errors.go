package launcher

import "errors"

var (
	// ErrMissingDependency is returned by New when a required collaborator is nil.
	ErrMissingDependency = errors.New("launcher: missing dependency")

	// ErrPortNotSet indicates BACKEND_PORT is absent from the environment.
	ErrPortNotSet = errors.New("launcher: backend port not set")

	// ErrInvalidPort indicates BACKEND_PORT is not a port number in 1-65535.
	ErrInvalidPort = errors.New("launcher: invalid backend port")
)
