package auth

// Permission represents a named capability of the control API.
type Permission string

// Permission constants.
const (
	PermBackendRead  Permission = "backend:read"
	PermLaunchesRead Permission = "launches:read"
	PermEventsStream Permission = "events:stream"
	PermMetricsRead  Permission = "metrics:read"
)

// rolePermissions is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleShell: {
		PermBackendRead,
		PermLaunchesRead,
		PermEventsStream,
		PermMetricsRead,
	},
	RoleMonitor: {
		PermEventsStream,
		PermMetricsRead,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
