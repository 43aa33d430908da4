//go:build windows

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

import "github.com/dantesync/dantesync/receiver"

// newReceiverSource uses the pcap capture path; Npcap is the only Windows
// capture backend this repo supports (no software-socket-timestamp
// fallback on Windows, see receiver/socket.go build tag).
func newReceiverSource(iface string) (receiver.Source, error) {
	return receiver.NewPCAPSource(iface)
}
