// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"time"

	"github.com/momentics/hioload-fs/api"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr      string        // TCP bind address, e.g. ":8080"
	Root            string        // directory files are served from; "" = working directory
	Backlog         int           // listen(2) backlog
	MaxEvents       int           // readiness events handled per poll step
	MaxLineLen      int           // longest accepted request/header line, terminator included
	MaxHeaderLines  int           // header lines drained before rejecting the request
	ReadBufferSize  int           // size of pooled receive fragments
	ChunkSize       int           // file streaming chunk size
	WriteTimeout    time.Duration // longest wait for send buffer space; 0 = no limit
	ResponseTimeout time.Duration // total time one response may spend waiting on the peer; 0 = no limit
	MaxConnections  int           // registered connection cap; 0 = unlimited
	LoopCPU         int           // pin the event loop thread to this CPU; -1 = no pinning
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":8080",
		Root:            "",
		Backlog:         128,
		MaxEvents:       2048,
		MaxLineLen:      1024,
		MaxHeaderLines:  100,
		ReadBufferSize:  4096,
		ChunkSize:       4096,
		WriteTimeout:    10 * time.Second,
		ResponseTimeout: 30 * time.Second,
		MaxConnections:  0,
		LoopCPU:         -1,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	bad := func(field string, v any) error {
		return fmt.Errorf("config %s=%v: %w", field, v, api.ErrInvalidArgument)
	}
	switch {
	case c.ListenAddr == "":
		return bad("ListenAddr", c.ListenAddr)
	case c.Backlog <= 0:
		return bad("Backlog", c.Backlog)
	case c.MaxEvents <= 0:
		return bad("MaxEvents", c.MaxEvents)
	case c.MaxLineLen < 2:
		return bad("MaxLineLen", c.MaxLineLen)
	case c.MaxHeaderLines <= 0:
		return bad("MaxHeaderLines", c.MaxHeaderLines)
	case c.ReadBufferSize <= 0:
		return bad("ReadBufferSize", c.ReadBufferSize)
	case c.ChunkSize <= 0:
		return bad("ChunkSize", c.ChunkSize)
	case c.WriteTimeout < 0:
		return bad("WriteTimeout", c.WriteTimeout)
	case c.ResponseTimeout < 0:
		return bad("ResponseTimeout", c.ResponseTimeout)
	case c.MaxConnections < 0:
		return bad("MaxConnections", c.MaxConnections)
	case c.LoopCPU < -1:
		return bad("LoopCPU", c.LoopCPU)
	}
	return nil
}
