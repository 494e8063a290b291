// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_stub.go) guarded by build tags.

package affinity

import "runtime"

// SetAffinity pins the current OS thread to a given logical CPU on supported
// platforms. The caller must hold the thread with runtime.LockOSThread.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}

// PinCurrentGoroutine locks the calling goroutine to its OS thread and pins
// that thread to cpuID. The returned release func unlocks the thread; it is
// safe to call even when pinning failed.
func PinCurrentGoroutine(cpuID int) (release func(), err error) {
	runtime.LockOSThread()
	if err := SetAffinity(cpuID); err != nil {
		return runtime.UnlockOSThread, err
	}
	return runtime.UnlockOSThread, nil
}
