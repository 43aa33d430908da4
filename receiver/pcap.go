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

package receiver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/dantesync/dantesync/protocol"
)

const (
	snapshotLen  = 256
	recvTimeout  = 1 * time.Millisecond
	promiscuous  = false // conflicts with the Dante virtual sound card's own capture
)

// PCAPSource captures PTPv1 packets with a BPF-filtered pcap handle, which
// keeps the time between NIC reception and our timestamp read to a minimum
// by avoiding the full socket stack.
type PCAPSource struct {
	handle *pcap.Handle
	pktSrc *gopacket.PacketSource
}

// NewPCAPSource opens iface in non-promiscuous mode and installs the Sync/
// FollowUp capture filter.
func NewPCAPSource(iface string) (*PCAPSource, error) {
	handle, err := pcap.OpenLive(iface, snapshotLen, promiscuous, recvTimeout)
	if err != nil {
		return nil, fmt.Errorf("opening %s for capture: %w", iface, err)
	}
	if err := handle.SetBPFFilter(BPFFilter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("setting BPF filter: %w", err)
	}
	return &PCAPSource{
		handle: handle,
		pktSrc: gopacket.NewPacketSource(handle, handle.LinkType()),
	}, nil
}

// Next blocks until the next Sync/FollowUp packet is decoded, or ctx is
// cancelled. Packets of other PTP message types decode to a nil Packet and
// are returned without error so the caller can just continue its loop.
func (s *PCAPSource) Next(ctx context.Context) (Sample, error) {
	for {
		select {
		case <-ctx.Done():
			return Sample{}, ctx.Err()
		case pkt, ok := <-s.pktSrc.Packets():
			if !ok {
				return Sample{}, fmt.Errorf("pcap capture closed")
			}
			hostTime := pkt.Metadata().Timestamp
			if hostTime.IsZero() {
				hostTime = time.Now()
			}
			appLayer := pkt.ApplicationLayer()
			if appLayer == nil {
				continue
			}
			decoded, err := protocol.Decode(appLayer.Payload())
			if err != nil {
				return Sample{}, err
			}

			netLayer := pkt.NetworkLayer()
			var srcIP net.IP
			if netLayer != nil {
				if ip4, ok := netLayer.(*layers.IPv4); ok {
					srcIP = ip4.SrcIP
				}
			}
			return Sample{Packet: decoded, HostTime: hostTime, SrcAddr: srcIP}, nil
		}
	}
}

// Close drops the pcap handle. pcap does not require explicit multicast
// group teardown since it reads in promiscuous-free capture mode rather
// than joining the group at the socket layer.
func (s *PCAPSource) Close() error {
	s.handle.Close()
	return nil
}
