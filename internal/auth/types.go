package auth

import "errors"

// Role is the authorisation tier carried in a token.
type Role string

const (
	// RoleShell is the GUI shell launched alongside the backend.
	RoleShell Role = "shell"

	// RoleMonitor is for external observers such as a metrics scraper.
	RoleMonitor Role = "monitor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

var (
	// ErrTokenInvalid is returned for any token that fails validation.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrInvalidRole is returned when issuing a token for an unknown role.
	ErrInvalidRole = errors.New("auth: invalid role")
)
