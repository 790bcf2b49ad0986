// Package normalize maps raw 8-bit pixels into the float vector the network
// was trained on.
package normalize

import (
	"fmt"

	"github.com/born-ml/tilenet/internal/errs"
)

// MNIST statistics of the training set.
const (
	Mean = 0.1307
	Std  = 0.3081
)

// Affine computes (pixel/255 - Mean) / Std for every pixel.
type Affine struct {
	Mean float32
	Std  float32
	Size int // Expected pixel count, 0 accepts any non-empty input
}

// MNIST returns the transform for 28x28 MNIST digits.
func MNIST() Affine {
	return Affine{Mean: Mean, Std: Std, Size: 28 * 28}
}

// Apply normalizes pixels into a freshly allocated vector.
func (a Affine) Apply(pixels []byte) ([]float32, error) {
	if len(pixels) == 0 {
		return nil, fmt.Errorf("normalize: empty image: %w", errs.ErrInvalidArgument)
	}
	if a.Size > 0 && len(pixels) != a.Size {
		return nil, fmt.Errorf("normalize: got %d pixels, want %d: %w", len(pixels), a.Size, errs.ErrInvalidArgument)
	}
	if a.Std == 0 {
		return nil, fmt.Errorf("normalize: zero standard deviation: %w", errs.ErrInvalidArgument)
	}

	out := make([]float32, len(pixels))
	for i, p := range pixels {
		out[i] = (float32(p)/255 - a.Mean) / a.Std
	}
	return out, nil
}

// Image normalizes a 28x28 MNIST image.
func Image(pixels []byte) ([]float32, error) {
	return MNIST().Apply(pixels)
}
