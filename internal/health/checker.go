package health

import (
	"context"
	"time"
)

// Default probing parameters.
const (
	DefaultMaxAttempts    = 5
	DefaultInterval       = 300 * time.Millisecond
	DefaultConnectTimeout = 500 * time.Millisecond
)

// Config holds the probing parameters.
type Config struct {
	MaxAttempts    int
	Interval       time.Duration
	ConnectTimeout time.Duration

	// HTTPPath selects HTTPProbe when non-empty, e.g. "/health".
	HTTPPath string
}

// Logger defines the logging interface for the checker.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Result describes one Wait call.
type Result struct {
	Healthy  bool
	Attempts int
	Elapsed  time.Duration
	LastErr  error
}

// Checker polls a backend port until it responds or attempts run out.
type Checker struct {
	config Config
	probe  Probe
	logger Logger
}

// NewChecker creates a Checker, applying defaults for zero values.
func NewChecker(cfg Config) *Checker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	var probe Probe = TCPProbe{Timeout: cfg.ConnectTimeout}
	if cfg.HTTPPath != "" {
		probe = HTTPProbe{Path: cfg.HTTPPath, Timeout: cfg.ConnectTimeout}
	}

	return &Checker{
		config: cfg,
		probe:  probe,
		logger: noopLogger{},
	}
}

// SetProbe replaces the probe.
func (c *Checker) SetProbe(p Probe) {
	c.probe = p
}

// SetLogger sets the logger for the checker.
func (c *Checker) SetLogger(logger Logger) {
	c.logger = logger
}

// Config returns the effective configuration.
func (c *Checker) Config() Config {
	return c.config
}

// Wait probes port until it succeeds, MaxAttempts is reached or ctx ends.
func (c *Checker) Wait(ctx context.Context, port uint16) Result {
	start := time.Now()
	var res Result

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		res.Attempts = attempt

		probeCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
		err := c.probe.Probe(probeCtx, port)
		cancel()

		if err == nil {
			res.Healthy = true
			res.LastErr = nil
			res.Elapsed = time.Since(start)
			c.logger.Debug("backend health probe succeeded",
				"port", port,
				"attempt", attempt,
				"elapsed", res.Elapsed,
			)
			return res
		}

		res.LastErr = err
		c.logger.Debug("backend health probe failed",
			"port", port,
			"attempt", attempt,
			"max_attempts", c.config.MaxAttempts,
			"error", err,
		)

		if attempt == c.config.MaxAttempts {
			break
		}

		if !sleep(ctx, c.config.Interval) {
			res.LastErr = ctx.Err()
			break
		}
	}

	res.Elapsed = time.Since(start)
	return res
}

// WaitUntilHealthy reports whether the backend answered within the
// configured attempts.
func (c *Checker) WaitUntilHealthy(ctx context.Context, port uint16) bool {
	return c.Wait(ctx, port).Healthy
}

// sleep waits d or until ctx is done. It returns false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
