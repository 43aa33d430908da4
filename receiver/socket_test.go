//go:build linux

package receiver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dantesync/dantesync/protocol"
)

// TestSocketSourceJoinsLoopback exercises the real multicast join path
// against the loopback interface. Some sandboxed CI environments disable
// multicast on lo entirely, so a join failure there is skipped rather than
// failed.
func TestSocketSourceJoinsLoopback(t *testing.T) {
	src, err := NewSocketSource("lo", protocol.PortEvent)
	if err != nil {
		t.Skipf("multicast join unavailable in this environment: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = src.Next(ctx)
	require.Error(t, err)
}
