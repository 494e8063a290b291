// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness reactor interface for socket multiplexing.

// Package reactor provides the readiness-notification facility the event
// loop is built on: one interest set of descriptors, polled in batches.
package reactor

import "errors"

// ErrClosed is returned by Wake once the reactor has been closed.
var ErrClosed = errors.New("reactor: closed")

// Interest is a bitmask of readiness conditions a descriptor is watched for.
type Interest uint32

const (
	// Readable fires when data (or a pending connection) is available.
	Readable Interest = 1 << iota
	// Writable fires when send buffer space is available.
	Writable
	// PeerHangup fires when the peer shut down its writing half.
	PeerHangup
	// EdgeTriggered reports a condition only when it newly arises; the
	// consumer must drain until would-block before waiting again.
	EdgeTriggered
)

// Mask is the set of conditions reported by one readiness event.
type Mask uint32

const (
	EventRead Mask = 1 << iota
	EventWrite
	EventHangup
	EventError
)

// Has reports whether all bits of other are set in m.
func (m Mask) Has(other Mask) bool { return m&other == other }

// Event is one (descriptor, mask) pair surfaced by a single Wait step.
// It is only valid until the next Wait.
type Event struct {
	Fd   int
	Mask Mask
}

// Reactor defines the readiness interest set operations.
type Reactor interface {
	// Register adds fd to the interest set.
	Register(fd int, interest Interest) error

	// Modify replaces the interest of an already registered fd.
	Modify(fd int, interest Interest) error

	// Unregister removes fd from the interest set.
	Unregister(fd int) error

	// Wait blocks up to timeoutMs (negative for infinite) and fills events.
	// An interrupted wait returns (0, nil).
	Wait(events []Event, timeoutMs int) (int, error)

	// Wake forces a concurrent or subsequent Wait to return. The returned
	// events never include the internal wake descriptor.
	Wake() error

	// Close releases the reactor resources.
	Close() error
}
