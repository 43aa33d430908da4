package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, "", c.Interface)
}

func TestLoadParsesRecognizedKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"interface": "eth1",
		"ntp_server": "192.0.2.1",
		"sample_window_size": 16,
		"min_delta_ns": 5,
		"calibration_samples": 12,
		"warmup_secs": 20,
		"step_threshold_ns": 600000,
		"panic_threshold_ns_per_s": 90000
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "eth1", c.Interface)
	require.Equal(t, "192.0.2.1", c.NTPServer)
	require.Equal(t, 16, c.SampleWindowSize)
	require.Equal(t, int64(5), c.MinDeltaNS)
	require.Equal(t, 12, c.CalibrationSamples)
	require.Equal(t, 90000.0, c.PanicThresholdNSPerS)
}

func TestMergeCLIOverridesTakePrecedence(t *testing.T) {
	cfg := &Config{Interface: "eth0", NTPServer: "10.0.0.1"}
	out := Merge(cfg, CLIOverrides{Interface: "eth2"})
	require.Equal(t, "eth2", out.Interface)
	require.Equal(t, "10.0.0.1", out.NTPServer)
}

func TestMergeAppliesDefaultNTPServerWhenUnset(t *testing.T) {
	cfg := &Config{}
	out := Merge(cfg, CLIOverrides{})
	require.Equal(t, DefaultNTPServer, out.NTPServer)
}
