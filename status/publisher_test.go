package status

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherGetReturnsSeededSnapshot(t *testing.T) {
	p := NewPublisher()
	snap := p.Get()
	require.Equal(t, Version, snap.Version)
	require.Equal(t, "", snap.Mode)
}

func TestPublisherUpdatePublishesNewSnapshot(t *testing.T) {
	p := NewPublisher()
	p.Update(func(cur Snapshot) Snapshot {
		cur.Mode = "LOCK"
		cur.AppliedPPM = 12.5
		return cur
	})
	snap := p.Get()
	require.Equal(t, "LOCK", snap.Mode)
	require.Equal(t, 12.5, snap.AppliedPPM)
}

func TestPublisherUpdateRecoversFromPanicKeepingLastGood(t *testing.T) {
	p := NewPublisher()
	p.Update(func(cur Snapshot) Snapshot {
		cur.Mode = "PROD"
		return cur
	})

	require.NotPanics(t, func() {
		p.Update(func(cur Snapshot) Snapshot {
			panic("boom")
		})
	})

	snap := p.Get()
	require.Equal(t, "PROD", snap.Mode, "a panicking update must not corrupt the last known good snapshot")
}
