package linereader

import (
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fs/api"
	"github.com/momentics/hioload-fs/pool"
)

// fragmentSource delivers one queued fragment per Read and reports
// would-block between fragments, like an edge-triggered socket does.
type fragmentSource struct {
	frags   [][]byte
	pending bool
	closed  bool
	err     error
}

func (s *fragmentSource) Fd() int { return -1 }
func (s *fragmentSource) Write(p []byte) (int, error) { return len(p), nil }
func (s *fragmentSource) Close() error { return nil }

func (s *fragmentSource) Read(p []byte) (int, error) {
	if len(s.frags) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		if s.closed {
			return 0, io.EOF
		}
		return 0, api.ErrWouldBlock
	}
	if s.pending {
		s.pending = false
		return 0, api.ErrWouldBlock
	}
	f := s.frags[0]
	n := copy(p, f)
	if n < len(f) {
		s.frags[0] = f[n:]
	} else {
		s.frags = s.frags[1:]
		s.pending = true
	}
	return n, nil
}

// readAll drains lines, retrying on would-block the way the event loop
// does on each readiness tick.
func readAll(t *testing.T, r *Reader) []string {
	t.Helper()
	var lines []string
	for spins := 0; spins < 100000; spins++ {
		line, err := r.ReadLine()
		switch StatusOf(err) {
		case StatusOK:
			lines = append(lines, line)
		case StatusPending:
			continue
		case StatusStreamClosed:
			return lines
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	t.Fatal("reader did not terminate")
	return nil
}

func split(data []byte, rnd *rand.Rand) [][]byte {
	var out [][]byte
	for len(data) > 0 {
		n := 1 + rnd.Intn(len(data))
		if n > 5 {
			n = 1 + rnd.Intn(5)
		}
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}

func TestReadLineTerminators(t *testing.T) {
	src := &fragmentSource{
		frags:  [][]byte{[]byte("GET / HTTP/1.1\r\nHost: x\nA: b\rlast\r\n\r\n")},
		closed: true,
	}
	got := readAll(t, New(src, 0, nil))
	want := []string{"GET / HTTP/1.1", "Host: x", "A: b", "last", ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestReadLineFragmentationInvariant(t *testing.T) {
	inputs := []string{
		"GET /index.html HTTP/1.1\r\nHost: x\r\n\r\n",
		"one\ntwo\n\nthree\n",
		"bare\rcr\r\rend\r",
		"mixed\r\nline\rstyle\n\r\n",
	}
	rnd := rand.New(rand.NewSource(7))
	for _, in := range inputs {
		whole := readAll(t, New(&fragmentSource{frags: [][]byte{[]byte(in)}, closed: true}, 0, nil))
		for i := 0; i < 200; i++ {
			src := &fragmentSource{frags: split([]byte(in), rnd), closed: true}
			got := readAll(t, New(src, 0, pool.NewBytePool(8)))
			if diff := cmp.Diff(whole, got); diff != "" {
				t.Fatalf("input %q: fragmented read differs (-whole +fragmented):\n%s", in, diff)
			}
		}
	}
}

func TestReadLineSplitCRLF(t *testing.T) {
	src := &fragmentSource{frags: [][]byte{[]byte("abc\r"), []byte("\ndef\r\n")}}
	r := New(src, 0, nil)

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "abc", line)

	// The LF half of the terminator is still in flight.
	_, err = r.ReadLine()
	assert.ErrorIs(t, err, api.ErrWouldBlock)

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "def", line)
}

func TestReadLinePendingKeepsPartial(t *testing.T) {
	src := &fragmentSource{frags: [][]byte{[]byte("GET /a"), []byte(" HTTP/1.0\r\n")}}
	r := New(src, 0, nil)

	_, err := r.ReadLine()
	assert.Equal(t, StatusPending, StatusOf(err))

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "GET /a HTTP/1.0", line)
}

func TestReadLineStreamClosed(t *testing.T) {
	src := &fragmentSource{frags: [][]byte{[]byte("partial")}, closed: true}
	r := New(src, 0, nil)

	line, err := r.ReadLine()
	for StatusOf(err) == StatusPending {
		line, err = r.ReadLine()
	}
	assert.Equal(t, StatusStreamClosed, StatusOf(err))
	assert.Empty(t, line)

	// Sticky.
	_, err = r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLineError(t *testing.T) {
	boom := errors.New("connection reset")
	r := New(&fragmentSource{err: boom}, 0, nil)
	_, err := r.ReadLine()
	assert.Equal(t, StatusError, StatusOf(err))
	assert.ErrorIs(t, err, boom)
}

func TestReadLineMaxLen(t *testing.T) {
	src := &fragmentSource{frags: [][]byte{[]byte("12345\n123456\n")}}
	r := New(src, 6, nil)

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "12345", line)

	_, err = r.ReadLine()
	assert.ErrorIs(t, err, ErrLineTooLong)
	assert.Equal(t, StatusError, StatusOf(err))
}

func TestReleaseAndBuffered(t *testing.T) {
	src := &fragmentSource{frags: [][]byte{[]byte("a\nbcd")}}
	r := New(src, 0, nil)
	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "a", line)
	assert.Equal(t, 3, r.Buffered())
	r.Release()
	assert.Equal(t, 0, r.Buffered())
}
