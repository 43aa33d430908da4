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

package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/dantesync/dantesync/receiver"
)

// newReceiverSource tries the pcap capture path first, since it keeps the
// NIC-to-timestamp latency lowest; if pcap can't open the interface (no
// libpcap, missing CAP_NET_RAW in a container), it falls back to the plain
// dual-socket path, which needs no special privilege beyond multicast join.
func newReceiverSource(iface string) (receiver.Source, error) {
	src, err := receiver.NewPCAPSource(iface)
	if err == nil {
		return src, nil
	}
	log.WithError(err).Warn("pcap capture unavailable, falling back to socket receiver")
	return receiver.NewDualSocketSource(iface)
}
