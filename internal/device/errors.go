package device

import (
	"errors"
	"fmt"

	"github.com/born-ml/tilenet/internal/errs"
)

// Error reports a failed device operation. It matches errs.ErrDeviceFailure.
type Error struct {
	Device string // Device name
	Op     string // Operation (e.g. "alloc", "launch accumulate_dot")
	Err    error  // Underlying cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s: %v", errs.ErrDeviceFailure, e.Device, e.Op, e.Err)
}

// Unwrap exposes both the taxonomy error and the cause.
func (e *Error) Unwrap() []error {
	return []error{errs.ErrDeviceFailure, e.Err}
}

// Failure wraps err as a device failure unless it already is one.
func Failure(dev, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Device: dev, Op: op, Err: err}
}
