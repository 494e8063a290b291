//go:build !linux
// +build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>

package affinity

import (
	"fmt"

	"github.com/momentics/hioload-fs/api"
)

// setAffinityPlatform reports that the event loop cannot be pinned here.
func setAffinityPlatform(cpuID int) error {
	return fmt.Errorf("affinity: pin cpu %d: %w", cpuID, api.ErrNotSupported)
}
