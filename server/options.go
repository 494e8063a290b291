// File: server/options.go
// Package server defines functional options for the Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"log"

	"github.com/momentics/hioload-fs/api"
	"github.com/momentics/hioload-fs/control"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithLogger replaces the default stderr logger.
func WithLogger(l *log.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithConnLogger sends the per-connection trace (new client, request line,
// rejected request) to l. Errors and lifecycle messages stay on the main
// logger. Defaults to the main logger.
func WithConnLogger(l *log.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.connLog = l
		}
	}
}

// WithMetrics routes lifecycle notifications to m.
func WithMetrics(m api.Metrics) ServerOption {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithDebugProbes registers the server's probes with dp.
func WithDebugProbes(dp *control.DebugProbes) ServerOption {
	return func(s *Server) {
		s.probes = dp
	}
}

type noopMetrics struct{}

func (noopMetrics) ConnAccepted() {}
func (noopMetrics) ConnClosed() {}
func (noopMetrics) Response(int) {}
func (noopMetrics) Dropped() {}
func (noopMetrics) BytesSent(int) {}
