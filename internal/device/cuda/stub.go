//go:build !cuda

package cuda

import (
	"fmt"

	"github.com/born-ml/tilenet/internal/device"
	"github.com/born-ml/tilenet/internal/errs"
)

// Device is not compiled in; build with -tags cuda.
type Device struct {
	device.Device
}

// New always fails with errs.ErrUnavailable.
func New(ordinal int) (*Device, error) {
	return nil, fmt.Errorf("cuda: device %d: built without -tags cuda: %w", ordinal, errs.ErrUnavailable)
}

// IsAvailable reports false.
func IsAvailable() bool {
	return false
}
