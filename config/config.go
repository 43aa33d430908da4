/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads dantesyncd's persisted JSON configuration and
// merges it with CLI flag overrides.
package config

import (
	"encoding/json"
	"os"
	"time"
)

// Config mirrors the recognized keys of the persisted config file
// (spec §6). Zero values mean "not set". Merge fills in only the default
// NTP server; WarmupDuration and StepThreshold take their fallback from the
// caller, and the daemon's servo config keeps servo defaults for unset keys.
type Config struct {
	Interface            string  `json:"interface,omitempty"`
	NTPServer            string  `json:"ntp_server,omitempty"`
	Kp                   float64 `json:"kp,omitempty"`
	Ki                   float64 `json:"ki,omitempty"`
	SampleWindowSize     int     `json:"sample_window_size,omitempty"`
	MinDeltaNS           int64   `json:"min_delta_ns,omitempty"`
	CalibrationSamples   int     `json:"calibration_samples,omitempty"`
	WarmupSecs           int     `json:"warmup_secs,omitempty"`
	StepThresholdNS      int64   `json:"step_threshold_ns,omitempty"`
	PanicThresholdNSPerS float64 `json:"panic_threshold_ns_per_s,omitempty"`
}

// DefaultNTPServer is used when neither the config file nor --ntp-server
// supplies one.
const DefaultNTPServer = "10.77.8.2"

// Load reads and parses the JSON config file at path. A missing file is
// not an error: it returns a zero-value Config so CLI flags and built-in
// defaults can still take effect.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// WarmupDuration returns WarmupSecs as a time.Duration, or fallback if
// unset.
func (c *Config) WarmupDuration(fallback time.Duration) time.Duration {
	if c.WarmupSecs <= 0 {
		return fallback
	}
	return time.Duration(c.WarmupSecs) * time.Second
}

// StepThreshold returns StepThresholdNS as a time.Duration, or fallback if
// unset.
func (c *Config) StepThreshold(fallback time.Duration) time.Duration {
	if c.StepThresholdNS <= 0 {
		return fallback
	}
	return time.Duration(c.StepThresholdNS)
}
