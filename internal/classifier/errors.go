package classifier

import (
	"errors"
	"fmt"
)

var (
	// ErrFailed is returned by every call after an inference failed.
	ErrFailed = errors.New("classifier: failed state")

	// ErrClosed is returned by Classify after Close.
	ErrClosed = errors.New("classifier: closed")
)

// StageError reports the step an inference failed in.
type StageError struct {
	Stage State // State the failing step would have entered.
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage.Step(), e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}
