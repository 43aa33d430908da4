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

// Package status maintains the live sync-state snapshot shared between
// the PTP and NTP threads (writers) and the IPC thread (reader), and
// serves it to the external UI process.
package status

import "time"

// Version is the status protocol's version field, bumped whenever the
// snapshot's shape changes.
const Version = 1

// Snapshot is the in-memory struct the publisher maintains, serialized
// verbatim as the IPC response body (spec §4.9).
type Snapshot struct {
	Version            int       `json:"version"`
	Mode               string    `json:"mode"`
	IsLocked           bool      `json:"is_locked"`
	SmoothedRateNSPerS float64   `json:"smoothed_rate_ns_per_s"`
	AppliedPPM         float64   `json:"applied_ppm"`
	NTPLastOffsetNS    int64     `json:"ntp_last_offset_ns"`
	NTPFailed          bool      `json:"ntp_failed"`
	GrandmasterID      string    `json:"grandmaster_id"`
	LastPacketHostTime time.Time `json:"last_packet_host_time"`
	PTPOffline         bool      `json:"ptp_offline"`

	// Process health fields are diagnostic sugar, not sync state; see
	// CollectProcessHealth.
	RSSBytes       uint64 `json:"rss_bytes"`
	GoroutineCount int    `json:"goroutine_count"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}
