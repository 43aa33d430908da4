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

package status

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"

	log "github.com/sirupsen/logrus"
)

// Request is the only request the IPC protocol recognizes.
const Request = "GET_STATUS"

// serveConn reads one newline-terminated request line, and for
// GET_STATUS writes a single newline-terminated JSON response. Any other
// request line gets an error response. The connection is closed after
// one request, matching the UI's ~2 Hz poll-a-new-connection pattern.
func serveConn(conn net.Conn, pub *Publisher) {
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && err != io.EOF {
		log.WithError(err).Debug("status: reading request")
		return
	}

	switch trimLine(line) {
	case Request:
		snap := pub.Get()
		if health, err := CollectProcessHealth(); err == nil {
			snap.RSSBytes = health.RSSBytes
			snap.GoroutineCount = health.GoroutineCount
			snap.UptimeSeconds = health.UptimeSeconds
		}
		body, err := json.Marshal(snap)
		if err != nil {
			log.WithError(err).Error("status: marshaling snapshot")
			return
		}
		conn.Write(append(body, '\n'))
	default:
		fmt.Fprintf(conn, "ERROR unrecognized request\n")
	}
}

func trimLine(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// serveListener accepts connections until the listener is closed,
// dispatching each to serveConn. The IPC thread blocks here.
func serveListener(l net.Listener, pub *Publisher) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go serveConn(conn, pub)
	}
}
