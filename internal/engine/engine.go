package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/born-ml/tilenet/internal/errs"
	"github.com/born-ml/tilenet/internal/params"
)

// Engine runs fully-connected layers tile by tile on a TileExecutor.
type Engine struct {
	exec   TileExecutor
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-tile debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine on exec.
func New(exec TileExecutor, opts ...Option) *Engine {
	e := &Engine{
		exec:   exec,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Executor returns the executor tiles run on.
func (e *Engine) Executor() TileExecutor {
	return e.exec
}

// Forward computes out[n] = biases[n] + sum_i weights[n*InputSize+i]*input[i].
//
// Arguments are validated before the executor is touched. A failure after
// that point aborts the remaining tiles, releases the executor's resources
// and returns an error wrapping errs.ErrDeviceFailure; no partial output is
// returned.
func (e *Engine) Forward(shape Shape, weights, biases, input []float32) ([]float32, error) {
	if e.exec == nil {
		return nil, fmt.Errorf("engine: no executor: %w", errs.ErrInvalidArgument)
	}
	if err := shape.check(weights, biases, input); err != nil {
		return nil, err
	}

	run, err := e.exec.Begin(shape.Neurons, shape.TileSize)
	if err != nil {
		return nil, deviceError("begin", err)
	}

	out, err := e.tiles(run, shape, weights, input)
	if cerr := run.Close(); cerr != nil && err == nil {
		err = deviceError("close", cerr)
	}
	if err != nil {
		return nil, err
	}

	for n, b := range biases {
		out[n] += b
	}
	return out, nil
}

func (e *Engine) tiles(run TileRun, shape Shape, weights, input []float32) ([]float32, error) {
	numTiles := shape.NumTiles()
	staging := make([]float32, shape.Neurons*shape.TileSize)

	e.logger.Debug("forward", "shape", shape.String(), "tiles", numTiles, "executor", e.exec.Name())
	for t := 0; t < numTiles; t++ {
		repack(staging, weights, shape, t)
		in := input[t*shape.TileSize : (t+1)*shape.TileSize]
		if err := run.Accumulate(staging, in); err != nil {
			return nil, deviceError(fmt.Sprintf("tile %d/%d", t, numTiles), err)
		}
	}

	out := make([]float32, shape.Neurons)
	if err := run.Result(out); err != nil {
		return nil, deviceError("read result", err)
	}
	return out, nil
}

// ForwardLayer runs Forward with the shape and parameters of layer.
func (e *Engine) ForwardLayer(layer *params.Layer, tileSize int, input []float32) ([]float32, error) {
	if layer == nil {
		return nil, fmt.Errorf("engine: nil layer: %w", errs.ErrInvalidArgument)
	}
	shape := Shape{Neurons: layer.Neurons, InputSize: layer.InputSize, TileSize: tileSize}
	return e.Forward(shape, layer.Weights, layer.Biases, input)
}

// deviceError wraps err so that it matches errs.ErrDeviceFailure.
func deviceError(op string, err error) error {
	if errors.Is(err, errs.ErrDeviceFailure) {
		return fmt.Errorf("engine: %s: %w", op, err)
	}
	return fmt.Errorf("engine: %s: %w: %w", op, errs.ErrDeviceFailure, err)
}
