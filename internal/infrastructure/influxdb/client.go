package influxdb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/sim8085-launcher/internal/infrastructure/config"
)

const (
	// connectTimeout caps the startup ping when the caller's ctx has no
	// earlier deadline. An absent server should only delay launch briefly.
	connectTimeout = 3 * time.Second
	pingTimeout    = 2 * time.Second

	// Launch sessions produce a handful of points, so small batches and a
	// short flush keep data visible without waiting for shutdown.
	defaultBatchSize     = 20
	defaultFlushInterval = 5 * time.Second
)

// Option adjusts the client before it connects.
type Option func(*options)

type options struct {
	tags map[string]string
}

// WithDefaultTag adds a tag to every point the client writes.
// Empty values are ignored.
func WithDefaultTag(key, value string) Option {
	return func(o *options) {
		if key != "" && value != "" {
			o.tags[key] = value
		}
	}
}

// Client writes launcher timing points in non-blocking batches.
//
// All methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string

	open      atomic.Bool
	closeOnce sync.Once

	onError atomic.Pointer[func(error)]
}

// Connect pings the server and prepares a batching write API for
// cfg.Bucket. Every point carries a host tag plus any WithDefaultTag tags.
//
// Returns ErrDisabled when cfg.Enabled is false.
func Connect(ctx context.Context, cfg config.InfluxDBConfig, opts ...Option) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	o := options{tags: make(map[string]string)}
	if host, err := os.Hostname(); err == nil {
		o.tags["host"] = host
	}
	for _, opt := range opts {
		opt(&o)
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg, o.tags))

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: %s reported unhealthy", ErrConnectionFailed, cfg.URL)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		bucket:   cfg.Bucket,
	}
	c.open.Store(true)

	go c.forwardErrors(c.writeAPI.Errors())

	return c, nil
}

func clientOptions(cfg config.InfluxDBConfig, tags map[string]string) *influxdb2.Options {
	batch := defaultBatchSize
	if cfg.BatchSize > 0 {
		batch = cfg.BatchSize
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	// #nosec G115 -- batch and flush are positive
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(flush.Milliseconds()))
	for k, v := range tags {
		opts.AddDefaultTag(k, v)
	}
	return opts
}

// forwardErrors drains the write API's error channel until the client closes.
func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		if fn := c.onError.Load(); fn != nil {
			(*fn)(fmt.Errorf("%w: bucket %s: %w", ErrWriteFailed, c.bucket, err))
		}
	}
}

// SetOnError registers a callback for asynchronous write failures.
// Passing nil removes it.
func (c *Client) SetOnError(fn func(err error)) {
	if fn == nil {
		c.onError.Store(nil)
		return
	}
	c.onError.Store(&fn)
}

// IsConnected reports whether the client is still open.
func (c *Client) IsConnected() bool {
	return c != nil && c.open.Load()
}

// WritePoint queues p for the next batch. It never blocks on the network.
func (c *Client) WritePoint(p *write.Point) {
	if p == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

// Flush sends all queued points. No-op after Close.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writeAPI.Flush()
	}
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("influxdb health check: %w", err)
	case !healthy:
		return fmt.Errorf("influxdb health check: server not healthy")
	}
	return nil
}

// Close flushes queued points and releases the client. Safe to call twice.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.open.Store(false)
		c.writeAPI.Flush()
		c.client.Close()
	})
	return nil
}
