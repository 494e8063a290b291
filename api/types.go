// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

import "time"

// ConnState enumerates the lifecycle of a served connection.
type ConnState int

const (
	ConnUnknown ConnState = iota
	ConnPendingAccept
	ConnRegistered
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnPendingAccept:
		return "pending-accept"
	case ConnRegistered:
		return "registered"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// APIMetrics provides a standard layout for service health/statistics reporting.
type APIMetrics struct {
	Accepted        uint64
	Active          int
	Responses       map[int]uint64 // by status code
	Dropped         uint64         // closed without a response
	OutboundTraffic uint64         // bytes sent
	StartedAt       time.Time
}
