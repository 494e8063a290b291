//go:build linux

package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestEpollReadable(t *testing.T) {
	r, err := New(16)
	require.NoError(t, err)
	defer r.Close()

	a, b := socketPair(t)
	require.NoError(t, r.Register(a, Readable|EdgeTriggered))

	events := make([]Event, 16)
	n, err := r.Wait(events, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = unix.Write(b, []byte("x"))
	require.NoError(t, err)

	n, err = r.Wait(events, 1000)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, a, events[0].Fd)
	assert.True(t, events[0].Mask.Has(EventRead))

	// Edge-triggered: without draining no new edge is reported.
	n, err = r.Wait(events, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEpollRegisterTwiceFails(t *testing.T) {
	r, err := New(4)
	require.NoError(t, err)
	defer r.Close()

	a, _ := socketPair(t)
	require.NoError(t, r.Register(a, Readable))
	assert.Error(t, r.Register(a, Readable))
	require.NoError(t, r.Unregister(a))
	assert.Error(t, r.Unregister(a))
}

func TestEpollHangup(t *testing.T) {
	r, err := New(4)
	require.NoError(t, err)
	defer r.Close()

	a, b := socketPair(t)
	require.NoError(t, r.Register(a, Readable|PeerHangup|EdgeTriggered))
	require.NoError(t, unix.Shutdown(b, unix.SHUT_WR))

	events := make([]Event, 4)
	n, err := r.Wait(events, 1000)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.True(t, events[0].Mask.Has(EventHangup))
}

func TestEpollWake(t *testing.T) {
	r, err := New(4)
	require.NoError(t, err)
	defer r.Close()

	done := make(chan int, 1)
	go func() {
		events := make([]Event, 4)
		n, _ := r.Wait(events, -1)
		done <- n
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, r.Wake())

	select {
	case n := <-done:
		assert.Equal(t, 0, n)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after Wake")
	}
}

func TestEpollModifyInterest(t *testing.T) {
	r, err := New(4)
	require.NoError(t, err)
	defer r.Close()

	a, _ := socketPair(t)
	require.NoError(t, r.Register(a, Readable))

	events := make([]Event, 4)
	n, err := r.Wait(events, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "idle socket is not readable")

	// An empty send buffer makes the socket writable at once.
	require.NoError(t, r.Modify(a, Readable|Writable))
	n, err = r.Wait(events, 1000)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, a, events[0].Fd)
	assert.True(t, events[0].Mask.Has(EventWrite))
	assert.False(t, events[0].Mask.Has(EventRead))

	require.NoError(t, r.Modify(a, Readable))
	n, err = r.Wait(events, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Error(t, r.Modify(-1, Readable))
}

func TestEpollWakeAfterClose(t *testing.T) {
	r, err := New(4)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Wake(), ErrClosed)
	assert.NoError(t, r.Close())
}
