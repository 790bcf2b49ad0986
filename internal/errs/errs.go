// Package errs defines the error taxonomy shared by every inference stage.
//
// All errors are terminal for the inference that produced them. Callers match
// them with errors.Is; stages wrap them with context using fmt.Errorf and %w.
package errs

import "errors"

// Common errors.
var (
	// ErrInvalidArgument reports a violated precondition: empty vectors,
	// zero dimensions or a tile size that does not divide the input size.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMalformedInput reports a parameter file whose length does not match
	// the expected element count.
	ErrMalformedInput = errors.New("malformed input")

	// ErrDeviceFailure reports a failed buffer allocation, transfer or kernel
	// launch on an accelerator.
	ErrDeviceFailure = errors.New("device failure")

	// ErrUnavailable reports an accelerator or peripheral that is not compiled
	// in or not present on this machine.
	ErrUnavailable = errors.New("unavailable")
)
