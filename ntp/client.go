// Package ntp provides the phase reference side of the dual-source
// discipline: an independent SNTPv3 query used exclusively to correct the
// host's absolute wall-clock time. It never participates in frequency
// discipline, which PTP owns alone.
package ntp

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// Result is a single successful NTP query, reduced to the fields the phase
// tracker needs.
type Result struct {
	// ClockOffset is how far the local clock needs to move to match the
	// server: positive means the local clock is behind.
	ClockOffset time.Duration
	RTT         time.Duration
	Stratum     uint8
	ReceivedAt  time.Time
}

// Source queries an NTP server for the current offset. It exists as an
// interface so the engine can be driven by a fake in tests without touching
// the network.
type Source interface {
	Query(ctx context.Context) (Result, error)
}

// Client queries a single configured NTP server using SNTPv3 (beevik/ntp
// implements RFC 5905 client mode over UDP/123).
type Client struct {
	Server  string
	Timeout time.Duration
}

// NewClient returns a Client targeting server, defaulting the per-query
// timeout to 5 seconds if unset.
func NewClient(server string) *Client {
	return &Client{Server: server, Timeout: 5 * time.Second}
}

// Query performs a single NTP request/response exchange and returns the
// measured offset and round-trip time. When ctx carries a deadline sooner
// than the configured timeout, that deadline becomes the query timeout;
// cancelling ctx does not interrupt a query already in flight.
func (c *Client) Query(ctx context.Context) (Result, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < timeout {
			timeout = remaining
		}
	}

	resp, err := ntp.QueryWithOptions(c.Server, ntp.QueryOptions{Timeout: timeout, Version: 3})
	if err != nil {
		return Result{}, fmt.Errorf("querying ntp server %s: %w", c.Server, err)
	}
	if err := resp.Validate(); err != nil {
		return Result{}, fmt.Errorf("ntp server %s returned invalid response: %w", c.Server, err)
	}

	return Result{
		ClockOffset: resp.ClockOffset,
		RTT:         resp.RTT,
		Stratum:     resp.Stratum,
		ReceivedAt:  resp.Time,
	}, nil
}
