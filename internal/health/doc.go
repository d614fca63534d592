// Package health decides whether the backend has started accepting
// connections.
//
// A Checker runs a Probe against 127.0.0.1:<port> up to MaxAttempts times,
// sleeping Interval between attempts (never after the last). Each attempt is
// bounded by ConnectTimeout. The result is advisory: callers log a warning and
// carry on when the backend is slow to come up.
//
// Two probes are provided. TCPProbe only checks that the port accepts a
// connection. HTTPProbe issues GET <path> and requires a 2xx response, for
// backends that expose a health endpoint.
package health
