package health

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Host is the address every probe targets.
const Host = "127.0.0.1"

// Probe performs one readiness check against a loopback port.
type Probe interface {
	Probe(ctx context.Context, port uint16) error
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context, port uint16) error

func (f ProbeFunc) Probe(ctx context.Context, port uint16) error {
	return f(ctx, port)
}

// TCPProbe succeeds when the port accepts a TCP connection.
type TCPProbe struct {
	Timeout time.Duration
}

func (p TCPProbe) Probe(ctx context.Context, port uint16) error {
	if port == 0 {
		return ErrInvalidPort
	}

	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", address(port))
	if err != nil {
		return err
	}
	return conn.Close()
}

// HTTPProbe succeeds when GET http://127.0.0.1:<port><Path> returns 2xx.
type HTTPProbe struct {
	Path    string
	Timeout time.Duration

	// Client is optional; a client with Timeout is built when nil.
	Client *http.Client
}

func (p HTTPProbe) Probe(ctx context.Context, port uint16) error {
	if port == 0 {
		return ErrInvalidPort
	}

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: p.Timeout}
	}

	url := "http://" + address(port) + p.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for keep-alive

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %d", ErrUnhealthy, url, resp.StatusCode)
	}
	return nil
}

func address(port uint16) string {
	return net.JoinHostPort(Host, strconv.Itoa(int(port)))
}
