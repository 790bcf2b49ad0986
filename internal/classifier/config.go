package classifier

import (
	"fmt"

	"github.com/born-ml/tilenet/internal/errs"
	"github.com/born-ml/tilenet/internal/normalize"
	"github.com/born-ml/tilenet/internal/params"
)

// Config holds the network shape and the per-layer tile widths.
type Config struct {
	Topology params.Topology

	// Tile1 splits the input of the hidden layer; it must divide
	// Topology.InputSize.
	Tile1 int
	// Tile2 splits the input of the output layer; it must divide
	// Topology.Hidden. It is independent of Tile1.
	Tile2 int

	Normalize normalize.Affine
}

// DefaultConfig returns the 784-10-10 MNIST network with tiles of 28 and 10.
func DefaultConfig() Config {
	return Config{
		Topology:  params.DefaultTopology(),
		Tile1:     28,
		Tile2:     10,
		Normalize: normalize.MNIST(),
	}
}

// Validate checks that every dimension is positive and both tile widths
// divide their layer's input.
func (c Config) Validate() error {
	t := c.Topology
	if t.InputSize <= 0 || t.Hidden <= 0 || t.Classes <= 0 {
		return fmt.Errorf("classifier: topology %d-%d-%d: %w", t.InputSize, t.Hidden, t.Classes, errs.ErrInvalidArgument)
	}
	if c.Tile1 <= 0 || t.InputSize%c.Tile1 != 0 {
		return fmt.Errorf("classifier: tile1 %d does not divide input size %d: %w", c.Tile1, t.InputSize, errs.ErrInvalidArgument)
	}
	if c.Tile2 <= 0 || t.Hidden%c.Tile2 != 0 {
		return fmt.Errorf("classifier: tile2 %d does not divide hidden size %d: %w", c.Tile2, t.Hidden, errs.ErrInvalidArgument)
	}
	if c.Normalize.Size != 0 && c.Normalize.Size != t.InputSize {
		return fmt.Errorf("classifier: normalizer expects %d pixels, network %d: %w",
			c.Normalize.Size, t.InputSize, errs.ErrInvalidArgument)
	}
	return nil
}
