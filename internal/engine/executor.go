package engine

// TileExecutor runs the per-tile accumulation of one layer invocation.
//
// The engine calls Begin once, Accumulate once per tile in ascending tile
// order, Result once after the last tile and Close on every exit path.
type TileExecutor interface {
	// Name describes where tiles execute.
	Name() string

	// Begin acquires tile-scoped resources for a layer with the given number
	// of neurons and tile width and zeroes the accumulator.
	Begin(neurons, tileSize int) (TileRun, error)
}

// TileRun is one in-flight layer invocation.
type TileRun interface {
	// Accumulate adds weights x input into the accumulator. weights is a
	// dense [neurons x tileSize] block and input holds tileSize values.
	// It returns once the contribution is part of the accumulator. Neither
	// slice is retained.
	Accumulate(weights, input []float32) error

	// Result copies the accumulator into dst.
	Result(dst []float32) error

	// Close releases tile-scoped resources. It is safe to call more than once.
	Close() error
}
