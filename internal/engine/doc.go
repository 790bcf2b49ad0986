// Package engine executes one fully-connected layer as a tiled,
// weight-stationary matrix-vector product.
//
// The input dimension is split into tiles of TileSize elements. For every
// tile the engine repacks the matching weight columns into a dense
// [Neurons x TileSize] block, hands block and input slice to a TileExecutor
// and lets the executor add the partial dot products into its accumulator.
// Tiles run strictly in order and never overlap. After the last tile the
// accumulator is read back and the bias is added.
//
// Two executors implement the same semantics:
//   - DirectExecutor accumulates in a host slice with a plain loop.
//   - OffloadExecutor stages each tile into device buffers and launches the
//     accumulate_dot kernel through a device.Session.
//
// Example:
//
//	eng := engine.New(engine.NewDirectExecutor())
//	out, err := eng.Forward(engine.Shape{Neurons: 10, InputSize: 784, TileSize: 28},
//	    weights, biases, input)
package engine
