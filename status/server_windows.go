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

package status

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// DefaultSocketPath is the named pipe path the UI connects to.
const DefaultSocketPath = `\\.\pipe\dantesync`

const (
	pipeAccessDuplex  = 0x00000003
	pipeTypeByte      = 0x00000000
	pipeReadmodeByte  = 0x00000000
	pipeWait          = 0x00000000
	pipeUnlimitedInst = 255
	pipeBufSize       = 4096
)

var (
	modkernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procCreateNamedPipeW    = modkernel32.NewProc("CreateNamedPipeW")
	procConnectNamedPipe    = modkernel32.NewProc("ConnectNamedPipe")
	procDisconnectNamedPipe = modkernel32.NewProc("DisconnectNamedPipe")
)

// Server serves status snapshots over a Windows named pipe. Unlike the
// Unix-domain socket server, each accepted client is a fresh pipe
// instance created on demand since named pipes are not backed by a
// listen/accept socket abstraction.
type Server struct {
	name   string
	pub    *Publisher
	closed chan struct{}
}

// Listen prepares a named-pipe Server; the pipe instances themselves are
// created lazily in Serve's accept loop.
func Listen(path string, pub *Publisher) (*Server, error) {
	return &Server{name: path, pub: pub, closed: make(chan struct{})}, nil
}

// Serve loops creating one named-pipe instance at a time, waiting for a
// client to connect, serving exactly one request, then tearing the
// instance down and creating the next. Returns when Close is called.
func (s *Server) Serve() error {
	for {
		select {
		case <-s.closed:
			return fmt.Errorf("status: server closed")
		default:
		}

		handle, err := createNamedPipeInstance(s.name)
		if err != nil {
			return err
		}

		r1, _, _ := procConnectNamedPipe.Call(uintptr(handle), 0)
		if r1 == 0 {
			errNo := windows.GetLastError()
			if errNo != windows.ERROR_PIPE_CONNECTED {
				windows.CloseHandle(handle)
				continue
			}
		}

		conn := os.NewFile(uintptr(handle), s.name)
		serveFileConn(conn, s.pub)
		procDisconnectNamedPipe.Call(uintptr(handle))
		conn.Close()
	}
}

// Close signals the accept loop to stop. A blocked ConnectNamedPipe call
// doesn't see the closed channel on its own, so Close also dials the pipe
// itself: that phantom connection is enough to unblock Serve's pending
// accept, which then notices s.closed on its next loop iteration instead
// of waiting for a real client that may never come.
func (s *Server) Close() error {
	close(s.closed)
	if f, err := os.OpenFile(s.name, os.O_RDWR, 0); err == nil {
		f.Close()
	}
	return nil
}

func createNamedPipeInstance(name string) (windows.Handle, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, err
	}
	r1, _, callErr := procCreateNamedPipeW.Call(
		uintptr(unsafe.Pointer(namePtr)),
		uintptr(pipeAccessDuplex),
		uintptr(pipeTypeByte|pipeReadmodeByte|pipeWait),
		uintptr(pipeUnlimitedInst),
		uintptr(pipeBufSize),
		uintptr(pipeBufSize),
		0,
		0,
	)
	if windows.Handle(r1) == windows.InvalidHandle {
		return 0, fmt.Errorf("CreateNamedPipeW: %w", callErr)
	}
	return windows.Handle(r1), nil
}

// serveFileConn adapts serveConn's net.Conn-based protocol handler to a
// named pipe's *os.File handle.
func serveFileConn(f *os.File, pub *Publisher) {
	serveConn(fileConn{f}, pub)
}
