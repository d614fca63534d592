// Package launcher runs the desktop launch sequence around the GUI shell.
//
// Startup, in order:
//  1. scan the port range, falling back to the backend's default port
//  2. export BACKEND_PORT for the shell
//  3. resolve the backend executable
//  4. spawn it through the process supervisor
//  5. wait for it to accept connections
//
// No step aborts the launch. Each failure is logged and published as an
// event and the shell still runs; the UI reports an unreachable backend on
// its own. Once the shell returns (or the context is cancelled by a signal)
// the backend is shut down exactly once.
//
// Usage:
//
//	l, err := launcher.New(launcher.Deps{
//	    Ports:      ports.Range{Start: 8085, End: 8185},
//	    Allocator:  ports.NewAllocator(),
//	    Resolver:   locator.NewResolver(locator.Options{}),
//	    Checker:    health.NewChecker(health.Config{}),
//	    Supervisor: process.NewSupervisor(process.Config{}),
//	    Shell:      shell.New(cfg.Shell),
//	    Events:     bus,
//	    Logger:     log,
//	})
//	if err != nil {
//	    return err
//	}
//	return l.Run(ctx)
package launcher
