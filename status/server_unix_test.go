//go:build !windows

package status

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServerServesStatusOverUnixSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.sock")
	pub := NewPublisher()
	pub.Update(func(cur Snapshot) Snapshot {
		cur.Mode = "LOCK"
		cur.GrandmasterID = "gm-a"
		return cur
	})

	srv, err := Listen(path, pub)
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()
	time.Sleep(10 * time.Millisecond)

	conn, err := DialUnix(path, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	snap, err := Query(conn, time.Second)
	require.NoError(t, err)
	require.Equal(t, "LOCK", snap.Mode)
	require.Equal(t, "gm-a", snap.GrandmasterID)
}

func TestServerCloseUnblocksServe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.sock")
	srv, err := Listen(path, NewPublisher())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, srv.Close())

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after Close")
	}
}
