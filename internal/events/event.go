package events

import "time"

// Type identifies a lifecycle step.
type Type string

const (
	// PortSelected: Port holds the chosen port; Fallback is true when the
	// scan failed and the fixed default was used.
	PortSelected Type = "port_selected"

	// BackendNotFound: Candidates lists every checked path.
	BackendNotFound Type = "backend_not_found"

	// BackendStarted: PID, Path and Port describe the child.
	BackendStarted Type = "backend_started"

	// SpawnFailed: Path and Error describe the failure.
	SpawnFailed Type = "spawn_failed"

	// HealthChecked: Healthy, Attempts and Duration describe the wait.
	HealthChecked Type = "health_checked"

	// StartupCompleted: Timings holds per-phase durations.
	StartupCompleted Type = "startup_completed"

	// BackendExited: the child exited while the shell was still running.
	BackendExited Type = "backend_exited"

	// BackendStopped: Outcome, ExitCode and Duration describe Shutdown.
	BackendStopped Type = "backend_stopped"
)

// Startup phases recorded in StartupCompleted timings.
const (
	PhasePortScan = "port_scan"
	PhaseResolve  = "resolve"
	PhaseSpawn    = "spawn"
	PhaseHealth   = "health"
	PhaseTotal    = "total"
)

// Event is one lifecycle notification. Fields not relevant to Type are zero.
type Event struct {
	Type    Type      `json:"type"`
	Session string    `json:"session"`
	Time    time.Time `json:"time"`

	Port     uint16 `json:"port,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	PID      int    `json:"pid,omitempty"`
	Path     string `json:"path,omitempty"`

	Candidates []string `json:"candidates,omitempty"`

	Healthy  bool          `json:"healthy,omitempty"`
	Attempts int           `json:"attempts,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`

	Timings map[string]time.Duration `json:"timings_ns,omitempty"`

	Outcome  string `json:"outcome,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Error    string `json:"error,omitempty"`
}

// IntPtr returns a pointer to v, for ExitCode.
func IntPtr(v int) *int {
	return &v
}
