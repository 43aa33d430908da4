//go:build !windows

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
	"net"
	"os"
)

// DefaultSocketPath is where the Unix-domain socket is created.
const DefaultSocketPath = "/var/run/dantesync/status.sock"

// Server wraps a Unix-domain socket listener publishing snapshots from
// pub.
type Server struct {
	l   net.Listener
	pub *Publisher
}

// Listen creates the Unix-domain socket at path (removing a stale one
// from a previous run first) and returns a Server ready to Serve.
func Listen(path string, pub *Publisher) (*Server, error) {
	_ = os.Remove(path)
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return &Server{l: l, pub: pub}, nil
}

// Serve blocks accepting connections until Close is called, at which
// point Accept returns an error and Serve returns it.
func (s *Server) Serve() error {
	return serveListener(s.l, s.pub)
}

// Close stops accepting new connections, unblocking a pending Accept.
func (s *Server) Close() error {
	return s.l.Close()
}
