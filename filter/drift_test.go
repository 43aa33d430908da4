package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdaptiveAlphaBreakpoints(t *testing.T) {
	require.InDelta(t, 0.30, adaptiveAlpha(0), 0.01)
	require.InDelta(t, 0.30, adaptiveAlpha(1999), 0.01)
	require.InDelta(t, 0.30, adaptiveAlpha(2000), 0.01)
	require.InDelta(t, 0.20, adaptiveAlpha(5000), 0.01)
	require.InDelta(t, 0.10, adaptiveAlpha(8000), 0.01)
	require.InDelta(t, 0.10, adaptiveAlpha(20000), 0.01)
}

func TestAdaptiveAlphaMonotonicallyDecreasing(t *testing.T) {
	prev := adaptiveAlpha(0)
	for sigma := 100.0; sigma <= 10000; sigma += 100 {
		cur := adaptiveAlpha(sigma)
		require.LessOrEqual(t, cur, prev+1e-9)
		prev = cur
	}
}

func TestDriftEstimatorFirstUpdateSeedsOnly(t *testing.T) {
	d := NewDriftEstimator()
	rate := d.Update(1000, 1_000_000_000)
	require.Equal(t, 0.0, rate)
}

func TestDriftEstimatorSmoothsInstantaneousRateOnSecondUpdate(t *testing.T) {
	d := NewDriftEstimator()
	d.Update(0, 0)
	// Instantaneous rate is 1000 ns/s; with a single jitter sample alpha is
	// 0.30, blended into an EMA that starts at zero.
	rate := d.Update(1000, int64(1*1e9))
	require.InDelta(t, 300.0, rate, 1e-6)
}

func TestDriftEstimatorResetClearsState(t *testing.T) {
	d := NewDriftEstimator()
	d.Update(0, 0)
	d.Update(5000, int64(1*1e9))
	require.NotEqual(t, 0.0, d.SmoothedRateNSPerS())

	d.Reset()
	require.Equal(t, 0.0, d.SmoothedRateNSPerS())

	rate := d.Update(42, 0)
	require.Equal(t, 0.0, rate, "first update after reset only seeds")
}

func TestDriftEstimatorStaysFiniteUnderRampingRate(t *testing.T) {
	d := NewDriftEstimator()
	d.Update(0, 0)

	tNS := int64(0)
	var lastRate float64
	for i := 1; i <= 60; i++ {
		tNS += int64(1e9)
		sigmaTargetNSPerS := 2000.0 + (float64(i)/60.0)*6000.0
		offset := int64(sigmaTargetNSPerS) * int64(i)
		lastRate = d.Update(offset, tNS)
	}
	require.False(t, math.IsNaN(lastRate))
}
