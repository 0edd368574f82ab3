// Package client connects to a saluran listener, retrying with exponential
// backoff until the server's socket appears or the caller gives up. Servers
// commonly come up after their clients on session start, so a bounded retry
// loop is part of the connect contract rather than an afterthought.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sadewadee/saluran/ipc"
	"github.com/sadewadee/saluran/transport/unixsock"
)

// maxRetryInterval caps the delay between connection attempts.
const maxRetryInterval = 233 * time.Millisecond

// Client dials a listener's socket path.
type Client struct {
	path   string
	opts   []ipc.Option
	logger *slog.Logger
}

// New creates a client for the listener bound at path. The endpoint options
// are applied to every connection the client establishes.
func New(path string, opts ...ipc.Option) *Client {
	return &Client{path: path, opts: opts}
}

// SetLogger sets the client logger.
func (c *Client) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// Connect dials until it succeeds or ctx is cancelled. Each failed attempt
// backs off exponentially up to a small ceiling so a server that appears
// moments later is picked up quickly.
func (c *Client) Connect(ctx context.Context) (*ipc.Endpoint, error) {
	retry := &backoff.ExponentialBackOff{
		InitialInterval:     time.Millisecond,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         maxRetryInterval,
		Clock:               backoff.SystemClock,
	}
	retry.Reset()

	attempts := 0
	for {
		ep, err := unixsock.Dial(c.path, c.opts...)
		if err == nil {
			if c.logger != nil {
				c.logger.Debug("connected", "path", c.path, "attempts", attempts+1)
			}
			return ep, nil
		}
		attempts++

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("client: connecting to %s after %d attempts: %w", c.path, attempts, ctx.Err())
		case <-time.After(retry.NextBackOff()):
		}
	}
}

// ConnectTimeout is Connect bounded by a deadline.
func (c *Client) ConnectTimeout(d time.Duration) (*ipc.Endpoint, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return c.Connect(ctx)
}
