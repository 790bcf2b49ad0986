//go:build !windows

package webgpu

import (
	"fmt"

	"github.com/born-ml/tilenet/internal/device"
	"github.com/born-ml/tilenet/internal/errs"
)

// Device is not available on this platform.
type Device struct {
	device.Device
}

// New always fails with errs.ErrUnavailable.
func New() (*Device, error) {
	return nil, fmt.Errorf("webgpu: not supported on this platform: %w", errs.ErrUnavailable)
}

// IsAvailable reports false.
func IsAvailable() bool {
	return false
}
