package status

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollectProcessHealthReturnsPlausibleValues(t *testing.T) {
	health, err := CollectProcessHealth()
	require.NoError(t, err)
	require.Greater(t, health.GoroutineCount, 0)
	require.GreaterOrEqual(t, health.UptimeSeconds, int64(0))
}
