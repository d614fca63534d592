// Package ports finds a free loopback TCP port for the backend server.
//
// The allocator scans a half-open range [Start, End) in ascending order and
// returns the first port it can bind on 127.0.0.1. The listener is released
// immediately so the backend can bind the same port itself.
//
// Known race: between the release here and the backend's own bind, another
// process can claim the port. This is tolerated. Closing the race would mean
// handing the open socket to the child, which the backend protocol does not
// support.
//
// Usage:
//
//	port, err := ports.NewAllocator().FindAvailablePort(ports.Range{Start: 8085, End: 8185})
//	if errors.Is(err, ports.ErrNoFreePort) {
//	    port = fallback // caller's decision
//	}
package ports
