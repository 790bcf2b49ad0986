//go:build !linux

package frame

import (
	"fmt"

	"github.com/born-ml/tilenet/internal/errs"
)

// OpenDevMem is only supported on linux.
func OpenDevMem(_ ...Option) (*DevMem, error) {
	return nil, fmt.Errorf("frame: /dev/mem capture: %w", errs.ErrUnavailable)
}
