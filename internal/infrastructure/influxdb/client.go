package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/tvmmachans/Customo/internal/infrastructure/config"
)

// Client writes device telemetry history to an InfluxDB v2 bucket.
//
// Points are queued on the library's batching write API, so the Write*
// methods never block a registry mutation. Batches that fail to reach the
// server are counted and handed to the SetOnError callback. Points written
// after Close are dropped.
//
// All methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	timeout  time.Duration

	connected atomic.Bool
	failures  atomic.Uint64
	onError   atomic.Pointer[func(error)]
}

// clientOptions maps the influxdb section of config.yaml onto the client
// library. Device events carry millisecond timestamps.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	flush := time.Duration(cfg.FlushInterval) * time.Second
	// #nosec G115 -- Validate keeps batch_size and flush_interval positive
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(flush.Milliseconds())).
		SetPrecision(time.Millisecond)
}

// Connect pings the server within cfg.ConnectTimeout and starts the write
// API for cfg.Org/cfg.Bucket. It returns ErrDisabled when the section is
// switched off and ErrConnectionFailed when the server is unreachable or
// reports itself unhealthy.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	c := &Client{
		client:  influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg)),
		timeout: time.Duration(cfg.ConnectTimeout) * time.Second,
	}
	if err := c.ping(ctx); err != nil {
		c.client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.writeAPI = c.client.WriteAPI(cfg.Org, cfg.Bucket)
	c.connected.Store(true)
	go c.watchErrors(c.writeAPI.Errors())
	return c, nil
}

func (c *Client) ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	healthy, err := c.client.Ping(pingCtx)
	switch {
	case err != nil:
		return fmt.Errorf("ping %s: %w", c.client.ServerURL(), err)
	case !healthy:
		return fmt.Errorf("ping %s: server not healthy", c.client.ServerURL())
	}
	return nil
}

// watchErrors drains the write API's error channel until the client closes.
func (c *Client) watchErrors(errs <-chan error) {
	for err := range errs {
		c.failures.Add(1)
		if fn := c.onError.Load(); fn != nil {
			(*fn)(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}
	}
}

// SetOnError registers the callback for failed batch writes. A nil
// callback removes it.
func (c *Client) SetOnError(fn func(err error)) {
	if fn == nil {
		c.onError.Store(nil)
		return
	}
	c.onError.Store(&fn)
}

// Failures returns the number of batch writes the server rejected or
// never received.
func (c *Client) Failures() uint64 {
	return c.failures.Load()
}

// IsConnected reports whether the client accepts points.
func (c *Client) IsConnected() bool {
	return c != nil && c.connected.Load()
}

// HealthCheck pings the server. It is used by the startup check in serve
// and by the /health component report.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := c.ping(ctx); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Flush sends queued points immediately.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writeAPI.Flush()
	}
}

// Close flushes queued points and releases the client. Calling it more
// than once is safe.
func (c *Client) Close() error {
	if c == nil || !c.connected.CompareAndSwap(true, false) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
