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

	"github.com/dantesync/dantesync/protocol"
)

// DualSocketSource fans in the event (319) and general (320) multicast
// sockets into a single Source, for hosts where a pcap handle isn't
// available (containers without CAP_NET_RAW, for instance).
type DualSocketSource struct {
	event   *SocketSource
	general *SocketSource
	samples chan Sample
	errs    chan error
	cancel  context.CancelFunc
}

// NewDualSocketSource opens both the event and general multicast sockets on
// iface and starts pumping both into one channel.
func NewDualSocketSource(iface string) (*DualSocketSource, error) {
	event, err := NewSocketSource(iface, protocol.PortEvent)
	if err != nil {
		return nil, fmt.Errorf("opening event socket: %w", err)
	}
	general, err := NewSocketSource(iface, protocol.PortGeneral)
	if err != nil {
		event.Close()
		return nil, fmt.Errorf("opening general socket: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &DualSocketSource{
		event:   event,
		general: general,
		samples: make(chan Sample),
		errs:    make(chan error, 2),
		cancel:  cancel,
	}
	go d.pump(ctx, event)
	go d.pump(ctx, general)
	return d, nil
}

func (d *DualSocketSource) pump(ctx context.Context, src *SocketSource) {
	for {
		sample, err := src.Next(ctx)
		if err != nil {
			select {
			case d.errs <- err:
			case <-ctx.Done():
				return
			}
			if _, malformed := err.(*protocol.Malformed); malformed {
				continue
			}
			return
		}
		select {
		case d.samples <- sample:
		case <-ctx.Done():
			return
		}
	}
}

// Next returns the next sample from either the event or general socket.
func (d *DualSocketSource) Next(ctx context.Context) (Sample, error) {
	select {
	case <-ctx.Done():
		return Sample{}, ctx.Err()
	case sample := <-d.samples:
		return sample, nil
	case err := <-d.errs:
		return Sample{}, err
	}
}

// Close tears down both underlying sockets.
func (d *DualSocketSource) Close() error {
	d.cancel()
	err1 := d.event.Close()
	err2 := d.general.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
