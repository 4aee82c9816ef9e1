// Package pool implements the connection-pool manager: Connection,
// Pool, the per-node registry, the Dispatcher borrow protocol, and the
// HealthLoop/CleanupLoop maintenance goroutines.
package pool

import (
	"context"
	"time"

	"github.com/redispoolmgr/poolmgr/pkg/poolerrors"
	"github.com/redispoolmgr/poolmgr/pkg/redisclient"
)

// DialFunc constructs one underlying client connection. It is the seam
// tests inject a fake client through, the same shape as the factory
// functions the pack's pool tests use (func(ctx) (Client, error)).
type DialFunc func(ctx context.Context) (redisclient.Client, error)

// newDialer closes a DialFunc over the node's dial parameters, backed
// by redisclient.New. Kept separate from Connection so Pool.repair can
// reuse the same dial parameters across repeated repairs.
func newDialer(url string, capacity int, opts redisclient.Options, mode redisclient.Mode, seeds []string) DialFunc {
	return func(ctx context.Context) (redisclient.Client, error) {
		return redisclient.New(url, capacity, opts, mode, seeds)
	}
}

// Connection wraps one underlying client. It tracks liveness and
// performs the readiness wait and single-shot probe described in
// spec §4.1. A Connection is not safe for concurrent use; callers
// serialize access to it via the owning Pool, which is itself
// serialized by the owning NodeEntry's mutex.
type Connection struct {
	url      string
	capacity int
	mode     redisclient.Mode
	seeds    []string

	dial   DialFunc
	client redisclient.Client
	ready  bool
}

func newConnection(url string, capacity int, mode redisclient.Mode, seeds []string, dial DialFunc) *Connection {
	return &Connection{
		url:      url,
		capacity: capacity,
		mode:     mode,
		seeds:    seeds,
		dial:     dial,
	}
}

// WaitForReady attempts to construct the underlying client, retrying
// with a fixed step on failure (construction or probe) until
// maxRetries attempts or timeout elapses, whichever comes first. On
// success it sets ready=true and returns elapsed time; on exhaustion
// it returns a NotReady error and leaves ready false with any partial
// client discarded.
func (c *Connection) WaitForReady(ctx context.Context, timeout, step time.Duration, maxRetries int) (time.Duration, error) {
	start := time.Now()
	deadline := start.Add(timeout)

	var lastErr error
	for attempt := 0; maxRetries <= 0 || attempt < maxRetries; attempt++ {
		if time.Now().After(deadline) {
			break
		}

		attemptCtx, cancel := context.WithDeadline(ctx, deadline)

		client, err := c.dial(attemptCtx)
		if err == nil {
			err = client.Ping(attemptCtx).Err()
			if err != nil && client != nil {
				client.Close()
			}
		}
		cancel()

		if err == nil {
			c.client = client
			c.ready = true
			return time.Since(start), nil
		}

		lastErr = err
		c.ready = false

		if time.Now().Add(step).After(deadline) {
			break
		}
		select {
		case <-time.After(step):
		case <-ctx.Done():
			return time.Since(start), poolerrors.Wrap(poolerrors.NotReady, "wait_for_ready", ctx.Err()).WithURL(c.url)
		}
	}

	return time.Since(start), poolerrors.Wrap(poolerrors.NotReady, "wait_for_ready", lastErr).WithURL(c.url)
}

// HealthCheck issues a single, non-retrying liveness probe. Success
// sets ready=true; failure sets ready=false and returns Unhealthy.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if c.client == nil {
		c.ready = false
		return poolerrors.New(poolerrors.Unhealthy, "health_check").WithURL(c.url)
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.ready = false
		return poolerrors.Wrap(poolerrors.Unhealthy, "health_check", err).WithURL(c.url)
	}
	c.ready = true
	return nil
}

// GetClient returns the current handle, failing with NotReady if
// readiness has not yet succeeded.
func (c *Connection) GetClient() (redisclient.Client, error) {
	if !c.ready || c.client == nil {
		return nil, poolerrors.New(poolerrors.NotReady, "get_client").WithURL(c.url)
	}
	return c.client, nil
}

// Close is idempotent: it releases the underlying client and marks
// the Connection not-ready. Safe to call on a Connection that never
// became ready.
func (c *Connection) Close() error {
	if c.client == nil {
		c.ready = false
		return nil
	}
	err := c.client.Close()
	c.client = nil
	c.ready = false
	return err
}

// IsReady reports the last probe/readiness outcome.
func (c *Connection) IsReady() bool {
	return c.ready
}
