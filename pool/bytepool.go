// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

import "github.com/momentics/hioload-fs/api"

var _ api.BytePool = (*BytePool)(nil)

// BytePool hands out fixed-size byte slices backed by a SyncPool.
// Slices of a different capacity are rejected on Put.
type BytePool struct {
	p    *SyncPool[*[]byte]
	size int
}

// NewBytePool creates a pool of size-byte buffers.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &BytePool{
		p: NewSyncPool(
			func() *[]byte {
				b := make([]byte, size)
				return &b
			},
			func(b *[]byte) { *b = (*b)[:cap(*b)] },
		),
		size: size,
	}
}

// Size returns the length of buffers handed out by the pool.
func (b *BytePool) Size() int { return b.size }

// Get returns a full-length buffer from the pool.
func (b *BytePool) Get() []byte {
	return (*b.p.Get())[:b.size]
}

// Put returns a buffer to the pool.
func (b *BytePool) Put(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	b.p.Put(&buf)
}
