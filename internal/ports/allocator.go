package ports

import (
	"fmt"
	"net"
	"strconv"
)

// LoopbackHost is the only interface ports are probed on.
const LoopbackHost = "127.0.0.1"

// Range is a half-open port interval [Start, End).
type Range struct {
	Start uint16
	End   uint16
}

// Validate checks that the range is non-empty and does not start at port 0.
func (r Range) Validate() error {
	if r.Start == 0 {
		return fmt.Errorf("%w: start must be non-zero", ErrInvalidRange)
	}
	if r.Start >= r.End {
		return fmt.Errorf("%w: start %d must be below end %d", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// Contains reports whether port lies inside [Start, End).
func (r Range) Contains(port uint16) bool {
	return port >= r.Start && port < r.End
}

// Size returns the number of ports in the range.
func (r Range) Size() int {
	if r.End <= r.Start {
		return 0
	}
	return int(r.End) - int(r.Start)
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// ListenFunc matches net.Listen so tests can control which binds succeed.
type ListenFunc func(network, address string) (net.Listener, error)

// Allocator finds free TCP ports on the loopback interface.
type Allocator struct {
	host   string
	listen ListenFunc
}

// NewAllocator returns an Allocator that binds with net.Listen on 127.0.0.1.
func NewAllocator() *Allocator {
	return &Allocator{
		host:   LoopbackHost,
		listen: net.Listen,
	}
}

// FindAvailablePort returns the lowest port in r that could be bound.
//
// Individual bind failures (port in use, permission denied) are expected and
// skipped without being reported. ErrNoFreePort is returned once the range is
// exhausted. The returned port is always inside r.
func (a *Allocator) FindAvailablePort(r Range) (uint16, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	// uint32 so the loop terminates when End is 65535.
	for p := uint32(r.Start); p < uint32(r.End); p++ {
		port := uint16(p) //nolint:gosec // bounded by r.End
		if a.tryBind(port) {
			return port, nil
		}
	}

	return 0, fmt.Errorf("%w %s", ErrNoFreePort, r)
}

// tryBind binds and immediately releases host:port.
func (a *Allocator) tryBind(port uint16) bool {
	ln, err := a.listen("tcp", net.JoinHostPort(a.host, strconv.Itoa(int(port))))
	if err != nil {
		return false
	}
	_ = ln.Close() //nolint:errcheck // Released on purpose; close errors are irrelevant
	return true
}

// FindAvailablePort scans r with a default Allocator.
func FindAvailablePort(r Range) (uint16, error) {
	return NewAllocator().FindAvailablePort(r)
}
