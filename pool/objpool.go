// File: pool/objpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "sync"

// SyncPool is a typed sync.Pool. Values handed back through Put pass the
// optional reset hook first, so Get never observes a caller's leftovers.
type SyncPool[T any] struct {
	p     sync.Pool
	reset func(T)
}

// NewSyncPool creates a pool that builds new values with newFn. reset may
// be nil.
func NewSyncPool[T any](newFn func() T, reset func(T)) *SyncPool[T] {
	sp := &SyncPool[T]{reset: reset}
	sp.p.New = func() any { return newFn() }
	return sp
}

// Get returns a pooled value or a fresh one.
func (sp *SyncPool[T]) Get() T { return sp.p.Get().(T) }

// Put resets v and makes it available to Get.
func (sp *SyncPool[T]) Put(v T) {
	if sp.reset != nil {
		sp.reset(v)
	}
	sp.p.Put(v)
}
