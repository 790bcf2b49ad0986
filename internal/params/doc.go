// Package params holds the weights and biases of the two fully-connected
// layers and reads them from headerless little-endian float32 files.
//
// File layout:
//
//	fc1_weight.bin  [hidden * inputSize] float32, row-major by neuron
//	fc1_bias.bin    [hidden] float32
//	fc2_weight.bin  [classes * hidden] float32, row-major by neuron
//	fc2_bias.bin    [classes] float32
//
// There is no header: the element count is implied by the layer shape. A file
// whose byte length is not a multiple of four, or whose element count differs
// from the shape contract, is rejected with a *LengthError that matches
// errs.ErrMalformedInput.
package params
