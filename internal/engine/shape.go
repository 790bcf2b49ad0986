package engine

import (
	"fmt"

	"github.com/born-ml/tilenet/internal/errs"
)

// Shape describes one layer invocation.
type Shape struct {
	Neurons   int // Output length.
	InputSize int // Input length.
	TileSize  int // Input elements per kernel launch; must divide InputSize.
}

// NumTiles returns InputSize / TileSize.
func (s Shape) NumTiles() int {
	return s.InputSize / s.TileSize
}

// Validate checks the dimensions.
func (s Shape) Validate() error {
	switch {
	case s.Neurons <= 0:
		return fmt.Errorf("engine: %d neurons: %w", s.Neurons, errs.ErrInvalidArgument)
	case s.InputSize <= 0:
		return fmt.Errorf("engine: input size %d: %w", s.InputSize, errs.ErrInvalidArgument)
	case s.TileSize <= 0:
		return fmt.Errorf("engine: tile size %d: %w", s.TileSize, errs.ErrInvalidArgument)
	case s.InputSize%s.TileSize != 0:
		return fmt.Errorf("engine: tile size %d does not divide input size %d: %w",
			s.TileSize, s.InputSize, errs.ErrInvalidArgument)
	}
	return nil
}

// check validates the shape and the lengths of the operands.
func (s Shape) check(weights, biases, input []float32) error {
	if len(weights) == 0 || len(biases) == 0 || len(input) == 0 {
		return fmt.Errorf("engine: weights, biases and input must be non-empty: %w", errs.ErrInvalidArgument)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if len(weights) != s.Neurons*s.InputSize {
		return fmt.Errorf("engine: %d weights for %dx%d layer: %w",
			len(weights), s.Neurons, s.InputSize, errs.ErrInvalidArgument)
	}
	if len(biases) != s.Neurons {
		return fmt.Errorf("engine: %d biases for %d neurons: %w", len(biases), s.Neurons, errs.ErrInvalidArgument)
	}
	if len(input) != s.InputSize {
		return fmt.Errorf("engine: input length %d, want %d: %w", len(input), s.InputSize, errs.ErrInvalidArgument)
	}
	return nil
}

// String formats the shape as neurons x input / tile.
func (s Shape) String() string {
	return fmt.Sprintf("%dx%d/%d", s.Neurons, s.InputSize, s.TileSize)
}
