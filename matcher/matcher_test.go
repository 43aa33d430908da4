package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dantesync/dantesync/protocol"
)

const gmA protocol.GrandmasterID = "gm-a"

func TestMatchFollowUpHitWithinWindow(t *testing.T) {
	m := New(500 * time.Millisecond)
	base := time.Now()

	m.AddSync(gmA, 7, base)
	f := &protocol.FollowUp{FollowUpBody: protocol.FollowUpBody{
		AssociatedSequenceID:   7,
		PreciseOriginTimestamp: protocol.Timestamp{Seconds: 100, Nanoseconds: 0},
	}}

	sample, ok := m.MatchFollowUp(gmA, f, base.Add(100*time.Millisecond))
	require.True(t, ok)
	require.Equal(t, uint16(7), sample.SequenceID)
	require.Equal(t, 0, m.Pending())
}

func TestMatchFollowUpMissOnUnknownSequence(t *testing.T) {
	m := New(500 * time.Millisecond)
	f := &protocol.FollowUp{FollowUpBody: protocol.FollowUpBody{AssociatedSequenceID: 99}}
	_, ok := m.MatchFollowUp(gmA, f, time.Now())
	require.False(t, ok)
}

func TestMatchFollowUpExactlyAtWindowBoundaryAccepted(t *testing.T) {
	m := New(500 * time.Millisecond)
	base := time.Now()
	m.AddSync(gmA, 1, base)
	f := &protocol.FollowUp{FollowUpBody: protocol.FollowUpBody{AssociatedSequenceID: 1}}

	_, ok := m.MatchFollowUp(gmA, f, base.Add(500*time.Millisecond))
	require.True(t, ok)
}

func TestMatchFollowUpPastWindowDropped(t *testing.T) {
	m := New(500 * time.Millisecond)
	base := time.Now()
	m.AddSync(gmA, 1, base)
	f := &protocol.FollowUp{FollowUpBody: protocol.FollowUpBody{AssociatedSequenceID: 1}}

	_, ok := m.MatchFollowUp(gmA, f, base.Add(501*time.Millisecond))
	require.False(t, ok)
}

func TestDifferentGrandmastersDoNotCollide(t *testing.T) {
	const gmB protocol.GrandmasterID = "gm-b"
	m := New(500 * time.Millisecond)
	base := time.Now()
	m.AddSync(gmA, 1, base)

	f := &protocol.FollowUp{FollowUpBody: protocol.FollowUpBody{AssociatedSequenceID: 1}}
	_, ok := m.MatchFollowUp(gmB, f, base.Add(10*time.Millisecond))
	require.False(t, ok)

	_, ok = m.MatchFollowUp(gmA, f, base.Add(10*time.Millisecond))
	require.True(t, ok)
}

func TestOverflowEvictsOldestPendingSync(t *testing.T) {
	m := New(time.Hour)
	base := time.Now()
	for i := 0; i < MaxPending+5; i++ {
		m.AddSync(gmA, uint16(i), base.Add(time.Duration(i)*time.Millisecond))
	}
	require.LessOrEqual(t, m.Pending(), MaxPending)

	f := &protocol.FollowUp{FollowUpBody: protocol.FollowUpBody{AssociatedSequenceID: 0}}
	_, ok := m.MatchFollowUp(gmA, f, base)
	require.False(t, ok, "oldest entry should have been evicted on overflow")
}

func TestStaleEntriesEvictedOnInsertion(t *testing.T) {
	m := New(50 * time.Millisecond)
	base := time.Now()
	m.AddSync(gmA, 1, base)
	m.AddSync(gmA, 2, base.Add(100*time.Millisecond))

	require.Equal(t, 1, m.Pending())
}

func TestOffsetNSComputesSignedDelta(t *testing.T) {
	s := RawSample{
		T1: protocol.Timestamp{Seconds: 100, Nanoseconds: 0},
		T2: time.Unix(100, 500),
	}
	require.Equal(t, int64(500), s.OffsetNS())
}
