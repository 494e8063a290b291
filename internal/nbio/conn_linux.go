//go:build linux
// +build linux

// File: internal/nbio/conn_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package nbio

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-fs/api"
)

var _ api.RawConn = (*Conn)(nil)

// Conn is a connected socket in non-blocking mode.
type Conn struct {
	fd int
}

// NewConn wraps fd, switching it to non-blocking mode.
func NewConn(fd int) (*Conn, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set nonblock fd=%d: %w", fd, err)
	}
	return &Conn{fd: fd}, nil
}

// Fd returns the underlying descriptor.
func (c *Conn) Fd() int { return c.fd }

// Read performs one read(2). No pending data yields api.ErrWouldBlock and
// an orderly peer shutdown yields io.EOF.
func (c *Conn) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, api.ErrWouldBlock
		case err != nil:
			return 0, fmt.Errorf("read fd=%d: %w", c.fd, err)
		case n == 0 && len(p) > 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

// Write performs one write(2). A full send buffer yields api.ErrWouldBlock;
// EINTR is returned wrapped so callers can retry it.
func (c *Conn) Write(p []byte) (int, error) {
	n, err := unix.Write(c.fd, p)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, api.ErrWouldBlock
		}
		return 0, fmt.Errorf("write fd=%d: %w", c.fd, err)
	}
	return n, nil
}

// Close closes the descriptor.
func (c *Conn) Close() error {
	return unix.Close(c.fd)
}
