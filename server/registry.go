// File: server/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-fs/api"
	"github.com/momentics/hioload-fs/reactor"
)

// connInterest is edge-triggered: every notification is drained to
// would-block before the loop waits again.
const connInterest = reactor.Readable | reactor.PeerHangup | reactor.EdgeTriggered

// Registry is the set of live connections and their readiness interest.
// Only the event loop goroutine touches it.
type Registry struct {
	r     reactor.Reactor
	conns map[int]*conn
}

// NewRegistry creates an empty registry on top of r.
func NewRegistry(r reactor.Reactor) *Registry {
	return &Registry{r: r, conns: make(map[int]*conn)}
}

// Add registers c; a descriptor can be present at most once.
func (g *Registry) Add(c *conn) error {
	fd := c.fd()
	if _, ok := g.conns[fd]; ok {
		return fmt.Errorf("register fd=%d: %w", fd, api.ErrAlreadyExists)
	}
	if err := g.r.Register(fd, connInterest); err != nil {
		return err
	}
	c.state = api.ConnRegistered
	g.conns[fd] = c
	return nil
}

// Get looks up the connection for fd.
func (g *Registry) Get(fd int) (*conn, bool) {
	c, ok := g.conns[fd]
	return c, ok
}

// Remove deregisters fd and closes its connection.
func (g *Registry) Remove(fd int) error {
	c, ok := g.conns[fd]
	if !ok {
		return fmt.Errorf("deregister fd=%d: %w", fd, api.ErrNotFound)
	}
	delete(g.conns, fd)
	// Deregister before close so the descriptor number cannot be reused
	// while still in the interest set.
	uerr := g.r.Unregister(fd)
	return errors.Join(uerr, c.close())
}

// Len returns the number of registered connections.
func (g *Registry) Len() int { return len(g.conns) }

// CloseAll removes every connection. It returns how many were removed and
// the joined close failures.
func (g *Registry) CloseAll() (int, error) {
	var errs []error
	n := 0
	for fd := range g.conns {
		n++
		if err := g.Remove(fd); err != nil {
			errs = append(errs, err)
		}
	}
	return n, errors.Join(errs...)
}
