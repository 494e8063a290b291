// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package api

// RawConn is the minimal contract of a non-blocking connected socket.
// Read returns (0, ErrWouldBlock) when no data is pending and (0, io.EOF)
// when the peer has closed the stream.
type RawConn interface {
	Fd() int
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Close() error
}

// BytePool defines a reusable fixed-size buffer pool.
type BytePool interface {
	Get() []byte
	Put([]byte)
}

// Metrics receives per-connection lifecycle notifications from the server.
type Metrics interface {
	ConnAccepted()
	ConnClosed()
	Response(status int)
	Dropped()
	BytesSent(n int)
}
