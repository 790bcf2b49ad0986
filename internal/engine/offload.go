package engine

import (
	"errors"
	"fmt"

	"github.com/born-ml/tilenet/internal/device"
	"github.com/born-ml/tilenet/internal/errs"
)

// OffloadExecutor stages tiles into device buffers and runs the
// accumulate_dot kernel through a compute session.
//
// Per layer invocation it allocates three buffers (input tile, weight tile,
// accumulator), zero-fills the accumulator and, for every tile, writes both
// operands, launches one work item per neuron and waits for completion
// before the next tile overwrites the staging buffers.
type OffloadExecutor struct {
	session *device.Session
}

// NewOffloadExecutor creates an executor on session. The session stays owned
// by the caller.
func NewOffloadExecutor(session *device.Session) *OffloadExecutor {
	return &OffloadExecutor{session: session}
}

// Name returns the device name.
func (o *OffloadExecutor) Name() string {
	if o.session == nil {
		return "offload"
	}
	return "offload (" + o.session.Name() + ")"
}

// Begin allocates the tile buffers and zeroes the accumulator.
func (o *OffloadExecutor) Begin(neurons, tileSize int) (TileRun, error) {
	if neurons <= 0 || tileSize <= 0 {
		return nil, fmt.Errorf("engine: begin %dx%d: %w", neurons, tileSize, errs.ErrInvalidArgument)
	}
	if o.session == nil {
		return nil, fmt.Errorf("engine: no compute session: %w", errs.ErrInvalidArgument)
	}
	if o.session.Closed() {
		return nil, device.Failure(o.session.Name(), "begin", device.ErrFreed)
	}

	dev := o.session.Device()
	run := &offloadRun{
		dev:      dev,
		kernel:   o.session.Kernel(),
		scope:    device.NewScope(dev),
		neurons:  neurons,
		tileSize: tileSize,
	}

	var err error
	if run.input, err = run.scope.Alloc(tileSize*4, device.ReadOnly); err != nil {
		return nil, run.abort("alloc input", err)
	}
	if run.weights, err = run.scope.Alloc(neurons*tileSize*4, device.ReadOnly); err != nil {
		return nil, run.abort("alloc weights", err)
	}
	if run.output, err = run.scope.Alloc(neurons*4, device.ReadWrite); err != nil {
		return nil, run.abort("alloc output", err)
	}
	if err := dev.Fill(run.output, 0); err != nil {
		return nil, run.abort("zero output", err)
	}
	return run, nil
}

type offloadRun struct {
	dev    device.Device
	kernel device.Kernel
	scope  *device.Scope

	input, weights, output device.Buffer
	neurons, tileSize      int
}

func (r *offloadRun) Accumulate(weights, input []float32) error {
	if len(input) != r.tileSize || len(weights) != r.neurons*r.tileSize {
		return fmt.Errorf("engine: tile of %d weights and %d inputs for %dx%d: %w",
			len(weights), len(input), r.neurons, r.tileSize, errs.ErrInvalidArgument)
	}
	if err := r.dev.Write(r.input, input); err != nil {
		return device.Failure(r.dev.Name(), "write input", err)
	}
	if err := r.dev.Write(r.weights, weights); err != nil {
		return device.Failure(r.dev.Name(), "write weights", err)
	}
	args := device.AccumulateDotArgs(r.input, r.weights, r.tileSize, r.neurons, r.output)
	if err := r.dev.Launch(r.kernel, r.neurons, args...); err != nil {
		return device.Failure(r.dev.Name(), "launch", err)
	}
	// Every tile read-modify-writes the same accumulator.
	if err := r.dev.Finish(); err != nil {
		return device.Failure(r.dev.Name(), "finish", err)
	}
	return nil
}

func (r *offloadRun) Result(dst []float32) error {
	if err := r.dev.Read(r.output, dst[:r.neurons]); err != nil {
		return device.Failure(r.dev.Name(), "read", err)
	}
	return nil
}

func (r *offloadRun) Close() error {
	if err := r.scope.Release(); err != nil {
		return device.Failure(r.dev.Name(), "free", err)
	}
	return nil
}

// abort releases what Begin acquired so far.
func (r *offloadRun) abort(op string, err error) error {
	return errors.Join(device.Failure(r.dev.Name(), op, err), r.scope.Release())
}
