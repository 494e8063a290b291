//go:build linux
// +build linux

// File: internal/nbio/writer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package nbio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-fs/api"
	"github.com/momentics/hioload-fs/pool"
)

// ErrWriteTimeout is returned when the peer does not drain its receive
// buffer within the writer timeout.
var ErrWriteTimeout = fmt.Errorf("write: %w", api.ErrOperationTimeout)

// Writer sends whole buffers over a non-blocking connection, retrying the
// same send on would-block and interrupted-call results.
type Writer struct {
	conn    api.RawConn
	timeout time.Duration
	chunks  api.BytePool
	sent    int64

	// deadline caps the total time spent waiting for the peer; zero means
	// only the per-wait timeout applies.
	deadline time.Time

	// wait blocks until fd is writable or the timeout elapses.
	wait func(fd int, timeout time.Duration) error
}

// NewWriter creates a Writer. timeout bounds each wait for writability;
// zero waits indefinitely. chunks supplies ReadFrom buffers and defaults to
// pool.Default.
func NewWriter(conn api.RawConn, timeout time.Duration, chunks api.BytePool) *Writer {
	if chunks == nil {
		chunks = pool.Default()
	}
	return &Writer{
		conn:    conn,
		timeout: timeout,
		chunks:  chunks,
		wait:    waitWritable,
	}
}

// SetDeadline bounds the total time later writes may spend waiting for
// the peer to drain. A zero t removes the bound.
func (w *Writer) SetDeadline(t time.Time) { w.deadline = t }

// Sent returns the number of bytes accepted by the kernel so far.
func (w *Writer) Sent() int64 { return w.sent }

// WriteAll sends b completely or returns the first non-transient error.
func (w *Writer) WriteAll(b []byte) error {
	for len(b) > 0 {
		n, err := w.conn.Write(b)
		if err != nil {
			switch {
			case errors.Is(err, unix.EINTR):
				continue
			case errors.Is(err, api.ErrWouldBlock):
				timeout, werr := w.waitBudget()
				if werr == nil {
					werr = w.wait(w.conn.Fd(), timeout)
				}
				if werr != nil {
					return werr
				}
				continue
			}
			return err
		}
		w.sent += int64(n)
		b = b[n:]
	}
	return nil
}

// Write implements io.Writer with WriteAll semantics.
func (w *Writer) Write(b []byte) (int, error) {
	if err := w.WriteAll(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// ReadFrom streams r to the connection in pool-sized chunks until EOF.
func (w *Writer) ReadFrom(r io.Reader) (int64, error) {
	buf := w.chunks.Get()
	defer w.chunks.Put(buf)

	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := w.WriteAll(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// waitBudget returns the next wait timeout: the per-wait timeout, shortened
// to whatever is left before the deadline.
func (w *Writer) waitBudget() (time.Duration, error) {
	if w.deadline.IsZero() {
		return w.timeout, nil
	}
	left := time.Until(w.deadline)
	if left <= 0 {
		return 0, ErrWriteTimeout
	}
	if w.timeout <= 0 || left < w.timeout {
		return left, nil
	}
	return w.timeout, nil
}

func waitWritable(fd int, timeout time.Duration) error {
	ms := -1
	if timeout > 0 {
		ms = int(timeout / time.Millisecond)
		if ms == 0 {
			ms = 1
		}
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll fd=%d: %w", fd, err)
		}
		if n == 0 {
			return ErrWriteTimeout
		}
		// Error conditions are surfaced by the retried write itself.
		return nil
	}
}
