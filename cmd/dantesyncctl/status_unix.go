//go:build !windows

package main

import (
	"net"
	"time"

	"github.com/dantesync/dantesync/status"
)

func defaultSocketPath() string {
	return status.DefaultSocketPath
}

func dial(path string, timeout time.Duration) (net.Conn, error) {
	return status.DialUnix(path, timeout)
}
