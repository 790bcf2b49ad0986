package params

import (
	"fmt"

	"github.com/born-ml/tilenet/internal/errs"
)

// LengthError reports a parameter file or vector whose size breaks the
// length contract of its layer.
type LengthError struct {
	Path  string // File path, empty for in-memory vectors
	Name  string // Which vector (e.g. "weights", "biases")
	Bytes int64  // Raw byte length, -1 when not read from a file
	Got   int    // Elements found
	Want  int    // Elements expected
}

// Error implements the error interface.
func (e *LengthError) Error() string {
	if e.Bytes >= 0 && e.Bytes%4 != 0 {
		return fmt.Sprintf("%s: %s %q: %d bytes is not a whole number of float32 values",
			errs.ErrMalformedInput, e.Name, e.Path, e.Bytes)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s %q: got %d values, want %d",
			errs.ErrMalformedInput, e.Name, e.Path, e.Got, e.Want)
	}
	return fmt.Sprintf("%s: %s: got %d values, want %d", errs.ErrMalformedInput, e.Name, e.Got, e.Want)
}

// Unwrap lets errors.Is match errs.ErrMalformedInput.
func (e *LengthError) Unwrap() error {
	return errs.ErrMalformedInput
}
