//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based reactor implementation and factory.

package reactor

import (
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// epollReactor is an epoll-based readiness reactor. Wakeups go through an
// eventfd registered level-triggered in the same interest set.
type epollReactor struct {
	epfd   int
	wakefd int
	raw    []unix.EpollEvent

	// mu orders Wake against Close so the eventfd is never written
	// after its descriptor number has been released.
	mu     sync.Mutex
	closed bool
}

// New constructs the epoll reactor. maxEvents bounds one Wait batch.
func New(maxEvents int) (Reactor, error) {
	if maxEvents <= 0 {
		maxEvents = 128
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	r := &epollReactor{
		epfd:   epfd,
		wakefd: wakefd,
		raw:    make([]unix.EpollEvent, maxEvents),
	}
	if err := r.Register(wakefd, Readable); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func toEpoll(interest Interest) uint32 {
	var ev uint32
	if interest&Readable != 0 {
		ev |= unix.EPOLLIN
	}
	if interest&Writable != 0 {
		ev |= unix.EPOLLOUT
	}
	if interest&PeerHangup != 0 {
		ev |= unix.EPOLLRDHUP
	}
	if interest&EdgeTriggered != 0 {
		ev |= unix.EPOLLET
	}
	return ev
}

func fromEpoll(ev uint32) Mask {
	var m Mask
	if ev&unix.EPOLLIN != 0 {
		m |= EventRead
	}
	if ev&unix.EPOLLOUT != 0 {
		m |= EventWrite
	}
	if ev&(unix.EPOLLRDHUP|unix.EPOLLHUP) != 0 {
		m |= EventHangup
	}
	if ev&unix.EPOLLERR != 0 {
		m |= EventError
	}
	return m
}

// Register adds a file descriptor to the epoll watch list.
func (r *epollReactor) Register(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: toEpoll(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add fd=%d: %w", fd, err)
	}
	return nil
}

// Modify changes the interest mask of a registered descriptor.
func (r *epollReactor) Modify(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: toEpoll(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod fd=%d: %w", fd, err)
	}
	return nil
}

// Unregister removes a file descriptor from the epoll watch list.
func (r *epollReactor) Unregister(fd int) error {
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del fd=%d: %w", fd, err)
	}
	return nil
}

// Wait blocks for readiness and translates the raw epoll batch.
func (r *epollReactor) Wait(events []Event, timeoutMs int) (int, error) {
	max := len(events)
	if max > len(r.raw) {
		max = len(r.raw)
	}
	if max == 0 {
		return 0, fmt.Errorf("epoll wait: empty event buffer")
	}
	if timeoutMs < 0 {
		timeoutMs = -1
	}
	n, err := unix.EpollWait(r.epfd, r.raw[:max], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil // interrupted by signal, normal
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	out := 0
	for i := 0; i < n; i++ {
		fd := int(r.raw[i].Fd)
		if fd == r.wakefd {
			r.drainWake()
			continue
		}
		events[out] = Event{Fd: fd, Mask: fromEpoll(r.raw[i].Events)}
		out++
	}
	return out, nil
}

// Wake bumps the eventfd counter so a blocked Wait returns.
func (r *epollReactor) Wake() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(r.wakefd, buf[:]); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

func (r *epollReactor) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(r.wakefd, buf[:]); err != nil {
			return
		}
	}
}

// Close releases the epoll and eventfd descriptors. Later calls are no-ops.
func (r *epollReactor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	werr := unix.Close(r.wakefd)
	if err := unix.Close(r.epfd); err != nil {
		return fmt.Errorf("epoll close: %w", err)
	}
	return werr
}
