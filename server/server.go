// File: server/server.go
// Package server implements the single-threaded readiness loop that
// accepts connections, decodes one request per connection and streams the
// requested file back.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-fs/affinity"
	"github.com/momentics/hioload-fs/api"
	"github.com/momentics/hioload-fs/control"
	"github.com/momentics/hioload-fs/internal/linereader"
	"github.com/momentics/hioload-fs/internal/nbio"
	"github.com/momentics/hioload-fs/internal/request"
	"github.com/momentics/hioload-fs/internal/responder"
	"github.com/momentics/hioload-fs/pool"
	"github.com/momentics/hioload-fs/reactor"
)

// Server owns the listening socket, the reactor and every connection.
type Server struct {
	cfg       *Config
	log       *log.Logger
	connLog   *log.Logger
	metrics   api.Metrics
	probes    *control.DebugProbes
	reactor   reactor.Reactor
	registry  *Registry
	responder *responder.Responder
	bufs      *pool.BytePool
	chunks    *pool.BytePool

	lfd  int
	addr *net.TCPAddr

	mu       sync.Mutex
	serving  bool
	closed   atomic.Bool
	done     chan struct{}
	doneOnce sync.Once

	active   atomic.Int64
	accepted atomic.Uint64
}

// New validates cfg, binds the listening socket and prepares the reactor.
// Setup failures are returned; nothing is left open on error.
func New(cfg *Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		log:       log.New(os.Stderr, "", log.LstdFlags),
		metrics:   noopMetrics{},
		responder: responder.New(cfg.Root),
		bufs:      pool.NewBytePool(cfg.ReadBufferSize),
		chunks:    pool.NewBytePool(cfg.ChunkSize),
		lfd:       -1,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.connLog == nil {
		s.connLog = s.log
	}

	r, err := reactor.New(cfg.MaxEvents)
	if err != nil {
		return nil, err
	}
	lfd, addr, err := listen(cfg.ListenAddr, cfg.Backlog)
	if err != nil {
		r.Close()
		return nil, err
	}
	// Level-triggered: one accept per tick, pending connections re-fire.
	if err := r.Register(lfd, reactor.Readable); err != nil {
		unix.Close(lfd)
		r.Close()
		return nil, err
	}

	s.reactor = r
	s.registry = NewRegistry(r)
	s.lfd = lfd
	s.addr = addr
	s.registerProbes()
	return s, nil
}

// Addr returns the bound listening address.
func (s *Server) Addr() *net.TCPAddr { return s.addr }

// ActiveConnections returns the number of registered connections.
func (s *Server) ActiveConnections() int64 { return s.active.Load() }

// Serve runs the event loop until ctx is cancelled or Shutdown is called,
// then closes every connection and the listener. It returns
// api.ErrServerClosed on orderly termination and the poll error otherwise.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.serving {
		s.mu.Unlock()
		return api.ErrServerClosed
	}
	s.serving = true
	if s.closed.Load() {
		s.mu.Unlock()
		s.markDone()
		return api.ErrServerClosed
	}
	s.mu.Unlock()
	defer s.markDone()

	unhook := context.AfterFunc(ctx, func() { s.Shutdown() })
	defer unhook()

	if s.cfg.LoopCPU >= 0 {
		release, err := affinity.PinCurrentGoroutine(s.cfg.LoopCPU)
		defer release()
		if err != nil {
			s.log.Printf("[Server] affinity pin warning: %v", err)
		}
	}

	s.log.Printf("[Server] serving %q on %s", s.rootName(), s.addr)
	events := make([]reactor.Event, s.cfg.MaxEvents)
	for !s.closed.Load() {
		n, err := s.reactor.Wait(events, -1)
		if err != nil {
			s.stop()
			return fmt.Errorf("event loop: %w", err)
		}
		for i := 0; i < n; i++ {
			ev := events[i]
			if ev.Fd == s.lfd {
				s.accept()
				continue
			}
			s.dispatch(ev)
		}
	}
	s.stop()
	return api.ErrServerClosed
}

// Shutdown stops the loop. When Serve is running it returns immediately
// and Serve performs the teardown; use Done to wait for it.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Swap(true) {
		return nil
	}
	if s.serving {
		return s.reactor.Wake()
	}
	defer s.markDone()
	return s.teardown()
}

// Done is closed once the server has released all resources, whether by
// Serve returning or by Shutdown on a server that was never served.
func (s *Server) Done() <-chan struct{} { return s.done }

func (s *Server) markDone() { s.doneOnce.Do(func() { close(s.done) }) }

// stop tears down from the loop goroutine. Holding mu keeps a concurrent
// Shutdown from waking a reactor that is being closed.
func (s *Server) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed.Store(true)
	s.teardown()
}

// teardown must be called with mu held.
func (s *Server) teardown() error {
	closed, cerr := s.registry.CloseAll()
	for i := 0; i < closed; i++ {
		// Still registered means no response was completed.
		s.metrics.Dropped()
		s.metrics.ConnClosed()
	}
	errs := []error{cerr}
	if s.lfd >= 0 {
		errs = append(errs, unix.Close(s.lfd))
		s.lfd = -1
	}
	errs = append(errs, s.reactor.Close())
	s.active.Add(-int64(closed))
	err := errors.Join(errs...)
	if err != nil {
		s.log.Printf("[Server] teardown: %v", err)
	}
	return err
}

func (s *Server) accept() {
	fd, peer, err := accept(s.lfd)
	if err != nil {
		if !temporaryAccept(err) {
			s.log.Printf("[Server] accept: %v", err)
		}
		return
	}
	if max := s.cfg.MaxConnections; max > 0 && s.registry.Len() >= max {
		s.log.Printf("[Server] rejecting %s: %d connections registered", peer, max)
		unix.Close(fd)
		s.metrics.Dropped()
		return
	}

	raw, err := nbio.NewConn(fd)
	if err != nil {
		s.log.Printf("[Server] %s: %v", peer, err)
		unix.Close(fd)
		return
	}
	c := newConn(raw, peer, s.cfg, s.bufs, s.chunks)
	if err := s.registry.Add(c); err != nil {
		s.log.Printf("[Server] %s: %v", peer, err)
		c.close()
		return
	}
	s.active.Add(1)
	s.accepted.Add(1)
	s.metrics.ConnAccepted()
	s.connLog.Printf("[Server] new client %s, fd=%d", peer, fd)
}

// dispatch advances the connection's request as far as the received data
// allows. The connection stays registered only while the request is
// incomplete.
func (s *Server) dispatch(ev reactor.Event) {
	c, ok := s.registry.Get(ev.Fd)
	if !ok {
		return
	}

	req, err := c.parser.Next(c.reader)
	switch {
	case errors.Is(err, api.ErrWouldBlock):
		return
	case request.IsClientGone(err):
		s.connLog.Printf("[Server] client %s closed before sending a request", c.peer)
		s.metrics.Dropped()
	case err != nil:
		s.armDeadline(c)
		s.reject(c, err)
	default:
		s.armDeadline(c)
		s.respond(c, req)
	}
	s.finish(c)
}

// armDeadline bounds how long the loop may wait on this client's receive
// window while writing its response.
func (s *Server) armDeadline(c *conn) {
	if s.cfg.ResponseTimeout > 0 {
		c.writer.SetDeadline(time.Now().Add(s.cfg.ResponseTimeout))
	}
}

// reject answers a request that could not be decoded. Read failures get no
// response; the peer is gone or broken.
func (s *Server) reject(c *conn, cause error) {
	switch api.CodeOf(cause) {
	case api.ErrCodeMalformedRequest, api.ErrCodeTooLarge:
		status, err := responder.WriteError(c.writer, cause)
		s.metrics.Response(status)
		s.connLog.Printf("[Server] %s: %d: %v", c.peer, status, err)
	default:
		s.log.Printf("[Server] %s: read (%s): %v", c.peer, linereader.StatusOf(cause), cause)
		s.metrics.Dropped()
	}
}

func (s *Server) respond(c *conn, req request.Request) {
	s.connLog.Printf("[Server] %s: method=%s path=%s protocol=%s", c.peer, req.Method, req.Target, req.Proto)
	status, err := s.responder.Serve(c.writer, req)
	if status == 0 {
		s.metrics.Dropped()
	} else {
		s.metrics.Response(status)
	}
	if err != nil {
		s.log.Printf("[Server] %s: %s %s: %v", c.peer, req.Method, req.Target, err)
	}
}

func (s *Server) finish(c *conn) {
	s.metrics.BytesSent(int(c.writer.Sent()))
	if err := s.registry.Remove(c.fd()); err != nil {
		s.log.Printf("[Server] %s: close: %v", c.peer, err)
	}
	s.active.Add(-1)
	s.metrics.ConnClosed()
}

func (s *Server) rootName() string {
	if s.cfg.Root != "" {
		return s.cfg.Root
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func (s *Server) registerProbes() {
	if s.probes == nil {
		return
	}
	started := time.Now()
	s.probes.RegisterProbe("server.addr", func() any { return s.addr.String() })
	s.probes.RegisterProbe("server.root", func() any { return s.rootName() })
	s.probes.RegisterProbe("server.active_connections", func() any { return s.active.Load() })
	s.probes.RegisterProbe("server.accepted_connections", func() any { return s.accepted.Load() })
	s.probes.RegisterProbe("server.uptime_seconds", func() any { return time.Since(started).Seconds() })
}
