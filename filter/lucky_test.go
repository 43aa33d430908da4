package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLuckyFilterEmitsMinimumOfWindow(t *testing.T) {
	f := NewLuckyFilter(8, 0)
	offsets := []int64{100, 120, 150, 90, 200, 110, 95, 130}
	var emitted DenoisedSample
	var ok bool
	for _, o := range offsets {
		emitted, ok = f.Add(RawPoint{OffsetNS: o, HostTime: time.Now()})
	}
	require.True(t, ok)
	require.Equal(t, int64(90), emitted.OffsetNS)
	require.Equal(t, 0, f.Len(), "window must be empty after emitting")
}

func TestLuckyFilterDoesNotEmitBeforeWindowFull(t *testing.T) {
	f := NewLuckyFilter(8, 0)
	for i := 0; i < 7; i++ {
		_, ok := f.Add(RawPoint{OffsetNS: int64(i), HostTime: time.Now()})
		require.False(t, ok)
	}
	require.Equal(t, 7, f.Len())
}

func TestLuckyFilterRejectsSpreadBelowMinDelta(t *testing.T) {
	f := NewLuckyFilter(4, 100)
	var ok bool
	for i := 0; i < 4; i++ {
		_, ok = f.Add(RawPoint{OffsetNS: 1000, HostTime: time.Now()})
	}
	require.False(t, ok, "zero-spread window looks like a duplicate/replay and should be rejected")
}

func TestLuckyFilterResetClearsBuffer(t *testing.T) {
	f := NewLuckyFilter(8, 0)
	f.Add(RawPoint{OffsetNS: 1, HostTime: time.Now()})
	f.Add(RawPoint{OffsetNS: 2, HostTime: time.Now()})
	f.Reset()
	require.Equal(t, 0, f.Len())
}
