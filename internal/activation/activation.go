// Package activation implements the post-processing applied to the engine's
// output vectors: rectification, log-softmax and arg-max classification.
//
// All functions operate in place on float32 vectors owned by the caller.
package activation

import (
	"fmt"

	"github.com/born-ml/tilenet/internal/errs"
	"github.com/chewxy/math32"
)

// Rectify applies ReLU: v[i] = max(0, v[i]).
func Rectify(v []float32) {
	for i, x := range v {
		if x < 0 {
			v[i] = 0
		}
	}
}

// LogSoftmax replaces v with log(softmax(v)).
//
// The maximum is subtracted before exponentiation so large logits do not
// overflow: v[i] = ln(exp(v[i]-m) / Σ exp(v[j]-m)).
func LogSoftmax(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("log-softmax: empty vector: %w", errs.ErrInvalidArgument)
	}

	maxVal := v[0]
	for _, x := range v[1:] {
		if x > maxVal {
			maxVal = x
		}
	}

	exps := make([]float32, len(v))
	var sum float32
	for i, x := range v {
		exps[i] = math32.Exp(x - maxVal)
		sum += exps[i]
	}

	for i := range v {
		v[i] = math32.Log(exps[i] / sum)
	}
	return nil
}

// Argmax returns the index of the largest element.
// Ties resolve to the lowest index.
func Argmax(v []float32) (int, error) {
	if len(v) == 0 {
		return 0, fmt.Errorf("argmax: empty vector: %w", errs.ErrInvalidArgument)
	}

	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best, nil
}
