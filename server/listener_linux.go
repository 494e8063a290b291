//go:build linux
// +build linux

// File: server/listener_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw IPv4 listening socket setup and accept.

package server

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// listen creates a non-blocking, SO_REUSEADDR IPv4 listening socket bound
// to addr and returns it with the address actually bound.
func listen(addr string, backlog int) (int, *net.TCPAddr, error) {
	tcp, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return -1, nil, fmt.Errorf("resolve %q: %w", addr, err)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, nil, fmt.Errorf("socket create: %w", err)
	}
	fail := func(op string, err error) (int, *net.TCPAddr, error) {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("%s %s: %w", op, addr, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt", err)
	}
	sa := &unix.SockaddrInet4{Port: tcp.Port}
	if ip4 := tcp.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fail("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fail("listen", err)
	}
	bound, err := unix.Getsockname(fd)
	if err != nil {
		return fail("getsockname", err)
	}
	return fd, sockaddrToTCP(bound), nil
}

// accept takes one pending connection, already in non-blocking mode.
func accept(lfd int) (int, string, error) {
	for {
		nfd, sa, err := unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return -1, "", err
		}
		return nfd, peerString(sa), nil
	}
}

// temporaryAccept reports accept failures that only concern the pending
// connection or a race with another acceptor.
func temporaryAccept(err error) bool {
	switch err {
	case unix.EAGAIN, unix.ECONNABORTED, unix.EPROTO:
		return true
	}
	return false
}

func sockaddrToTCP(sa unix.Sockaddr) *net.TCPAddr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IPv4(v.Addr[0], v.Addr[1], v.Addr[2], v.Addr[3]), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	}
	return &net.TCPAddr{}
}

func peerString(sa unix.Sockaddr) string {
	switch sa.(type) {
	case *unix.SockaddrInet4, *unix.SockaddrInet6:
		a := sockaddrToTCP(sa)
		return net.JoinHostPort(a.IP.String(), strconv.Itoa(a.Port))
	}
	return "?"
}
