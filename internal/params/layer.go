package params

import (
	"fmt"
	"path/filepath"

	"github.com/born-ml/tilenet/internal/errs"
)

// File names of the two layers inside a parameter directory.
const (
	HiddenWeightsFile = "fc1_weight.bin"
	HiddenBiasesFile  = "fc1_bias.bin"
	OutputWeightsFile = "fc2_weight.bin"
	OutputBiasesFile  = "fc2_bias.bin"
)

// Layer holds the parameters of one fully-connected layer.
// Weights are row-major by neuron: Weights[n*InputSize+i].
// A Layer is immutable once constructed.
type Layer struct {
	Weights   []float32
	Biases    []float32
	Neurons   int
	InputSize int
}

// NewLayer validates the length contract and wraps the vectors.
// The slices are retained, not copied.
func NewLayer(weights, biases []float32, neurons, inputSize int) (*Layer, error) {
	if neurons <= 0 || inputSize <= 0 {
		return nil, fmt.Errorf("params: layer shape %dx%d: %w", neurons, inputSize, errs.ErrInvalidArgument)
	}
	if len(weights) != neurons*inputSize {
		return nil, &LengthError{Name: "weights", Bytes: -1, Got: len(weights), Want: neurons * inputSize}
	}
	if len(biases) != neurons {
		return nil, &LengthError{Name: "biases", Bytes: -1, Got: len(biases), Want: neurons}
	}
	return &Layer{Weights: weights, Biases: biases, Neurons: neurons, InputSize: inputSize}, nil
}

// LoadLayer reads a weights/biases file pair for a layer of the given shape.
func LoadLayer(weightsPath, biasesPath string, neurons, inputSize int) (*Layer, error) {
	if neurons <= 0 || inputSize <= 0 {
		return nil, fmt.Errorf("params: layer shape %dx%d: %w", neurons, inputSize, errs.ErrInvalidArgument)
	}
	weights, err := loadNamed(weightsPath, "weights", neurons*inputSize)
	if err != nil {
		return nil, err
	}
	biases, err := loadNamed(biasesPath, "biases", neurons)
	if err != nil {
		return nil, err
	}
	return NewLayer(weights, biases, neurons, inputSize)
}

// Topology is the shape of the two-layer network.
type Topology struct {
	InputSize int // Pixels per image
	Hidden    int // Neurons in the hidden layer
	Classes   int // Neurons in the output layer
}

// DefaultTopology returns the 784-10-10 MNIST network.
func DefaultTopology() Topology {
	return Topology{InputSize: 28 * 28, Hidden: 10, Classes: 10}
}

// Model is the full parameter set of the classifier.
type Model struct {
	Hidden *Layer // fc1: Hidden x InputSize
	Output *Layer // fc2: Classes x Hidden
}

// Topology reports the shape of the loaded model.
func (m *Model) Topology() Topology {
	return Topology{InputSize: m.Hidden.InputSize, Hidden: m.Hidden.Neurons, Classes: m.Output.Neurons}
}

// NewModel checks that the two layers chain together.
func NewModel(hidden, output *Layer) (*Model, error) {
	if hidden == nil || output == nil {
		return nil, fmt.Errorf("params: model needs two layers: %w", errs.ErrInvalidArgument)
	}
	if output.InputSize != hidden.Neurons {
		return nil, &LengthError{Name: "output layer inputs", Bytes: -1, Got: output.InputSize, Want: hidden.Neurons}
	}
	return &Model{Hidden: hidden, Output: output}, nil
}

// LoadModel reads the four parameter files from dir.
func LoadModel(dir string, topo Topology) (*Model, error) {
	hidden, err := LoadLayer(
		filepath.Join(dir, HiddenWeightsFile),
		filepath.Join(dir, HiddenBiasesFile),
		topo.Hidden, topo.InputSize)
	if err != nil {
		return nil, fmt.Errorf("params: hidden layer: %w", err)
	}
	output, err := LoadLayer(
		filepath.Join(dir, OutputWeightsFile),
		filepath.Join(dir, OutputBiasesFile),
		topo.Classes, topo.Hidden)
	if err != nil {
		return nil, fmt.Errorf("params: output layer: %w", err)
	}
	return NewModel(hidden, output)
}

// Save writes the model as four parameter files into dir.
func (m *Model) Save(dir string) error {
	files := []struct {
		name   string
		values []float32
	}{
		{HiddenWeightsFile, m.Hidden.Weights},
		{HiddenBiasesFile, m.Hidden.Biases},
		{OutputWeightsFile, m.Output.Weights},
		{OutputBiasesFile, m.Output.Biases},
	}
	for _, f := range files {
		if err := SaveFloats(filepath.Join(dir, f.name), f.values); err != nil {
			return err
		}
	}
	return nil
}
