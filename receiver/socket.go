//go:build linux

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

	"golang.org/x/net/ipv4"

	"github.com/dantesync/dantesync/protocol"
	"github.com/dantesync/dantesync/timestamp"
)

// SocketSource captures PTPv1 packets over a plain UDP socket joined to the
// Dante multicast group, using kernel software RX timestamps (SO_TIMESTAMPING)
// when pcap is unavailable.
type SocketSource struct {
	conn  *net.UDPConn
	pconn *ipv4.PacketConn
	connFd int
	iface *net.Interface
}

// NewSocketSource joins MulticastGroup:port on iface and enables software
// RX timestamping on the resulting socket.
func NewSocketSource(iface string, port int) (*SocketSource, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("resolving interface %s: %w", iface, err)
	}

	group := net.ParseIP(protocol.MulticastGroup)
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return nil, fmt.Errorf("listening on port %d: %w", port, err)
	}

	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.JoinGroup(ifi, &net.UDPAddr{IP: group}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("joining multicast group %s on %s: %w", protocol.MulticastGroup, iface, err)
	}

	connFd, err := timestamp.ConnFd(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("resolving socket fd: %w", err)
	}
	if err := timestamp.EnableSWTimestampsRx(connFd); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling software rx timestamps: %w", err)
	}

	return &SocketSource{conn: conn, pconn: pconn, connFd: connFd, iface: ifi}, nil
}

// Next blocks on the socket read until a packet arrives or ctx is cancelled.
func (s *SocketSource) Next(ctx context.Context) (Sample, error) {
	type result struct {
		sample Sample
		err    error
	}
	done := make(chan result, 1)
	go func() {
		buf, sa, hostTime, err := timestamp.ReadPacketWithRXTimestamp(s.connFd)
		if err != nil {
			done <- result{err: fmt.Errorf("reading from multicast socket: %w", err)}
			return
		}
		decoded, err := protocol.Decode(buf)
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{sample: Sample{
			Packet:   decoded,
			HostTime: hostTime,
			SrcAddr:  timestamp.SockaddrToIP(sa),
		}}
	}()

	select {
	case <-ctx.Done():
		return Sample{}, ctx.Err()
	case r := <-done:
		return r.sample, r.err
	}
}

// Close leaves the multicast group before closing the socket.
func (s *SocketSource) Close() error {
	_ = s.pconn.LeaveGroup(s.iface, &net.UDPAddr{IP: net.ParseIP(protocol.MulticastGroup)})
	return s.conn.Close()
}
