package engine

import (
	"fmt"

	"github.com/born-ml/tilenet/internal/errs"
)

// RepackTile copies the weight columns of tile into dst as a dense
// [Neurons x TileSize] block: row n of dst is
// weights[n*InputSize + tile*TileSize : +TileSize].
func RepackTile(dst, weights []float32, shape Shape, tile int) error {
	if err := shape.Validate(); err != nil {
		return err
	}
	if tile < 0 || tile >= shape.NumTiles() {
		return fmt.Errorf("engine: tile %d out of range [0, %d): %w", tile, shape.NumTiles(), errs.ErrInvalidArgument)
	}
	if len(dst) < shape.Neurons*shape.TileSize || len(weights) < shape.Neurons*shape.InputSize {
		return fmt.Errorf("engine: repack %s: short buffers: %w", shape, errs.ErrInvalidArgument)
	}
	repack(dst, weights, shape, tile)
	return nil
}

// repack is RepackTile without checks.
func repack(dst, weights []float32, shape Shape, tile int) {
	col := tile * shape.TileSize
	for n := 0; n < shape.Neurons; n++ {
		src := weights[n*shape.InputSize+col : n*shape.InputSize+col+shape.TileSize]
		copy(dst[n*shape.TileSize:(n+1)*shape.TileSize], src)
	}
}
