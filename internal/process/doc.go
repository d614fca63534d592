// Package process supervises the single backend server child process.
//
// A Supervisor owns at most one live handle. Start spawns the backend with
// its port and a supervision marker in the environment; Shutdown takes the
// handle and makes sure the child is gone before returning, or gives up after
// a bounded wait. Both are serialised by one mutex, and Shutdown is idempotent.
//
// Shutdown sequence:
//   - already exited: record the exit code, send nothing
//   - otherwise request termination (SIGTERM to the process group on unix,
//     TerminateProcess on windows) and wait GracefulTimeout
//   - then Kill and wait KillTimeout
//   - then abandon the handle and report ErrShutdownTimeout
//
// Child stdout and stderr are forwarded line by line to the logger at debug
// level.
//
// Example usage:
//
//	sup := process.NewSupervisor(process.Config{Name: "backend"})
//	sup.SetLogger(log)
//	if _, err := sup.Start(ctx, path, port); err != nil {
//	    log.Error("backend failed to start", "error", err)
//	}
//	defer sup.Shutdown()
package process
