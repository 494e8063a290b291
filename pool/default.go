// File: pool/default.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "sync"

// DefaultBufferSize matches the file streaming chunk size.
const DefaultBufferSize = 4096

var (
	defaultOnce sync.Once
	defaultPool *BytePool
)

// Default returns the process-wide pool of DefaultBufferSize buffers. Readers
// and writers constructed with a nil pool draw from it.
func Default() *BytePool {
	defaultOnce.Do(func() {
		defaultPool = NewBytePool(DefaultBufferSize)
	})
	return defaultPool
}
