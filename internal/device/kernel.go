package device

// AccumulateDot is the fixed-shape kernel used by the tiled engine.
//
// Arguments, in order:
//
//	0 input    buffer  [tileSize] float32
//	1 weights  buffer  [neurons * tileSize] float32, row-major by neuron
//	2 tileSize int32
//	3 neurons  int32
//	4 output   buffer  [neurons] float32, read-write
//
// Work item n < neurons computes the dot product of input with weight row n
// and adds it into output[n]. It never overwrites the previous value.
const AccumulateDot = "accumulate_dot"

// AccumulateDotArgs binds the accumulate_dot arguments in launch order.
func AccumulateDotArgs(input, weights Buffer, tileSize, neurons int, output Buffer) []Arg {
	return []Arg{
		BufferArg(input),
		BufferArg(weights),
		Int32Arg(int32(tileSize)), //nolint:gosec // G115: tile sizes are validated by the engine
		Int32Arg(int32(neurons)),  //nolint:gosec // G115: neuron counts are validated by the engine
		BufferArg(output),
	}
}
