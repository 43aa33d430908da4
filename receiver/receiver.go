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

// Package receiver joins the Dante PTPv1 multicast group and delivers each
// Sync/FollowUp packet with a host-side receive timestamp captured as close
// to the kernel's reception path as possible.
package receiver

import (
	"context"
	"net"
	"time"

	"github.com/dantesync/dantesync/protocol"
)

// BPFFilter is the capture filter applied by the pcap backend.
const BPFFilter = "udp and (port 319 or port 320)"

// Sample is a single decoded PTP packet paired with its host receive time
// (T2) and the multicast source address it arrived from. Packet is nil when
// the wire message was a recognized-but-ignored type (anything but Sync or
// FollowUp); callers should skip those silently.
type Sample struct {
	Packet   protocol.Packet
	HostTime time.Time
	SrcAddr  net.IP
}

// Source is the polymorphic capability the PTP thread drives: "give me the
// next packet". Backed either by a pcap capture or a plain UDP socket with
// kernel software timestamps.
type Source interface {
	// Next blocks until a packet arrives, ctx is cancelled, or the
	// underlying socket fails. A malformed packet is reported as an error
	// with a *protocol.Malformed cause; callers should count it and keep
	// reading rather than treat it as fatal.
	Next(ctx context.Context) (Sample, error)
	// Close releases the socket or pcap handle, dropping multicast group
	// membership first.
	Close() error
}
