package host

import (
	"fmt"

	"github.com/born-ml/tilenet/internal/device"
)

// ArgKind is the kind of one kernel parameter.
type ArgKind int

const (
	// Input is a buffer the kernel only reads.
	Input ArgKind = iota
	// Output is a buffer the kernel writes; it must not be read-only.
	Output
	// Scalar is an int32 value.
	Scalar
)

// Value is a bound kernel argument as seen by a work item.
type Value struct {
	Data []float32 // Buffer contents for Input and Output.
	Int  int32     // Scalar value.
}

// Spec describes a host kernel.
type Spec struct {
	Name string
	Args []ArgKind
	// Run executes one work item. Work items of a launch run concurrently
	// and must write disjoint slots.
	Run func(item int, args []Value) error
}

func builtinKernels() map[string]*Spec {
	return map[string]*Spec{
		device.AccumulateDot: {
			Name: device.AccumulateDot,
			Args: []ArgKind{Input, Input, Scalar, Scalar, Output},
			Run:  accumulateDot,
		},
	}
}

// accumulateDot adds dot(input, weights[item]) into output[item].
func accumulateDot(item int, args []Value) error {
	input, weights := args[0].Data, args[1].Data
	tile, neurons := int(args[2].Int), int(args[3].Int)
	output := args[4].Data

	if item >= neurons {
		return nil
	}
	if tile <= 0 || len(input) < tile || len(weights) < neurons*tile || len(output) < neurons {
		return fmt.Errorf("%s: buffers too small for %d neurons x %d inputs", device.AccumulateDot, neurons, tile)
	}

	row := weights[item*tile : (item+1)*tile]
	var sum float32
	for i, x := range input[:tile] {
		sum += x * row[i]
	}
	output[item] += sum
	return nil
}
