//go:build windows

package status

import (
	"net"
	"os"
	"time"
)

// fileConn adapts an *os.File (a connected named-pipe handle) to the
// net.Conn interface so serveConn can stay platform-agnostic.
type fileConn struct {
	*os.File
}

func (fileConn) LocalAddr() net.Addr              { return pipeAddr{} }
func (fileConn) RemoteAddr() net.Addr             { return pipeAddr{} }
func (fileConn) SetDeadline(time.Time) error      { return nil }
func (fileConn) SetReadDeadline(time.Time) error  { return nil }
func (fileConn) SetWriteDeadline(time.Time) error { return nil }

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return DefaultSocketPath }
