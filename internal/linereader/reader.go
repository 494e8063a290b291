// File: internal/linereader/reader.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package linereader extracts CR/LF/CRLF terminated lines from a
// non-blocking byte stream that arrives in arbitrary fragments.
package linereader

import (
	"errors"
	"io"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-fs/api"
	"github.com/momentics/hioload-fs/pool"
)

// DefaultMaxLen bounds a line (terminator included) when no limit is given.
const DefaultMaxLen = 1024

// ErrLineTooLong is returned when a line does not terminate within maxLen-1 bytes.
var ErrLineTooLong = api.NewError(api.ErrCodeTooLarge, "line too long")

// Status classifies the outcome of ReadLine.
type Status int

const (
	StatusOK Status = iota
	StatusPending
	StatusStreamClosed
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPending:
		return "pending"
	case StatusStreamClosed:
		return "stream-closed"
	default:
		return "error"
	}
}

// StatusOf maps a ReadLine error onto its Status.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, api.ErrWouldBlock):
		return StatusPending
	case errors.Is(err, io.EOF):
		return StatusStreamClosed
	}
	return StatusError
}

type fragment struct {
	buf  []byte // pooled backing array
	data []byte // unread remainder
}

// Reader keeps partial-line state between calls so it can be resumed on
// every readiness notification. It is not safe for concurrent use.
type Reader struct {
	src    api.RawConn
	bufs   api.BytePool
	frags  *queue.Queue // of *fragment
	line   []byte
	maxLen int

	// swallowLF is set after a CR terminated a line: a LF arriving next
	// belongs to that terminator.
	swallowLF bool
	err       error
}

// New creates a Reader over src. maxLen counts the terminator, so at most
// maxLen-1 content bytes are accepted per line.
func New(src api.RawConn, maxLen int, bufs api.BytePool) *Reader {
	if maxLen <= 1 {
		maxLen = DefaultMaxLen
	}
	if bufs == nil {
		bufs = pool.Default()
	}
	return &Reader{
		src:    src,
		bufs:   bufs,
		frags:  queue.New(),
		maxLen: maxLen,
	}
}

// ReadLine returns the next logical line without its terminator.
//
// A nil error means a complete line. api.ErrWouldBlock means the socket is
// drained but the line is incomplete; call again on the next readiness
// event. io.EOF means the peer closed the stream and the partial line is
// discarded. Any other error is fatal for the connection.
func (r *Reader) ReadLine() (string, error) {
	for {
		for r.frags.Length() > 0 {
			c := r.next()
			if r.swallowLF {
				r.swallowLF = false
				if c == '\n' {
					continue
				}
			}
			switch c {
			case '\n':
				return r.emit(), nil
			case '\r':
				r.swallowLF = true
				return r.emit(), nil
			}
			if len(r.line) >= r.maxLen-1 {
				r.err = ErrLineTooLong
				return "", r.err
			}
			r.line = append(r.line, c)
		}
		if r.err != nil {
			if errors.Is(r.err, io.EOF) {
				r.line = r.line[:0]
			}
			return "", r.err
		}
		if err := r.fill(); err != nil {
			if errors.Is(err, api.ErrWouldBlock) {
				return "", err
			}
			r.err = err
		}
	}
}

// Buffered returns the number of received bytes not yet consumed.
func (r *Reader) Buffered() int {
	n := 0
	for i := 0; i < r.frags.Length(); i++ {
		n += len(r.frags.Get(i).(*fragment).data)
	}
	return n
}

// Release returns every pooled fragment. The Reader must not be used after.
func (r *Reader) Release() {
	for r.frags.Length() > 0 {
		f := r.frags.Remove().(*fragment)
		r.bufs.Put(f.buf)
	}
	r.line = nil
}

func (r *Reader) fill() error {
	buf := r.bufs.Get()
	n, err := r.src.Read(buf)
	if n > 0 {
		r.frags.Add(&fragment{buf: buf, data: buf[:n]})
		return nil
	}
	r.bufs.Put(buf)
	if err == nil {
		return api.ErrWouldBlock
	}
	return err
}

func (r *Reader) next() byte {
	f := r.frags.Peek().(*fragment)
	c := f.data[0]
	f.data = f.data[1:]
	if len(f.data) == 0 {
		r.frags.Remove()
		r.bufs.Put(f.buf)
	}
	return c
}

func (r *Reader) emit() string {
	s := string(r.line)
	r.line = r.line[:0]
	return s
}
