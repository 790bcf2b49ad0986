package engine

import (
	"fmt"

	"github.com/klauspost/cpuid/v2"

	"github.com/born-ml/tilenet/internal/errs"
)

// dot is the tile dot product used by DirectExecutor. init switches to the
// unrolled variant on CPUs with wide vector units, where the compiler keeps
// the four partial sums in separate registers.
var (
	dot       = dotScalar
	dotKernel = "scalar"
)

func init() {
	if cpuid.CPU.Supports(cpuid.AVX2) || cpuid.CPU.Supports(cpuid.ASIMD) {
		dot = dotUnrolled
		dotKernel = "unrolled"
	}
}

func dotScalar(a, b []float32) float32 {
	var sum float32
	for i, x := range a {
		sum += x * b[i]
	}
	return sum
}

func dotUnrolled(a, b []float32) float32 {
	b = b[:len(a)]
	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < len(a); i++ {
		s0 += a[i] * b[i]
	}
	return (s0 + s1) + (s2 + s3)
}

// DirectExecutor accumulates tiles in host memory on the calling goroutine.
type DirectExecutor struct{}

// NewDirectExecutor returns a host executor.
func NewDirectExecutor() *DirectExecutor {
	return &DirectExecutor{}
}

// Name returns "cpu" with the processor brand when known.
func (d *DirectExecutor) Name() string {
	if brand := cpuid.CPU.BrandName; brand != "" {
		return "cpu (" + brand + ")"
	}
	return "cpu"
}

// Describe reports the processor and the dot kernel picked for it.
func (d *DirectExecutor) Describe() string {
	return fmt.Sprintf("%s, %d cores, %s dot kernel", d.Name(), cpuid.CPU.PhysicalCores, dotKernel)
}

// Begin allocates a zeroed accumulator.
func (d *DirectExecutor) Begin(neurons, tileSize int) (TileRun, error) {
	if neurons <= 0 || tileSize <= 0 {
		return nil, fmt.Errorf("engine: begin %dx%d: %w", neurons, tileSize, errs.ErrInvalidArgument)
	}
	return &directRun{acc: make([]float32, neurons), tileSize: tileSize}, nil
}

type directRun struct {
	acc      []float32
	tileSize int
}

func (r *directRun) Accumulate(weights, input []float32) error {
	if len(input) != r.tileSize || len(weights) != len(r.acc)*r.tileSize {
		return fmt.Errorf("engine: tile of %d weights and %d inputs for %dx%d: %w",
			len(weights), len(input), len(r.acc), r.tileSize, errs.ErrInvalidArgument)
	}
	for n := range r.acc {
		r.acc[n] += dot(input, weights[n*r.tileSize:(n+1)*r.tileSize])
	}
	return nil
}

func (r *directRun) Result(dst []float32) error {
	copy(dst, r.acc)
	return nil
}

func (r *directRun) Close() error {
	r.acc = nil
	return nil
}
