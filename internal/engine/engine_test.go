package engine_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/tilenet/internal/device"
	"github.com/born-ml/tilenet/internal/device/host"
	"github.com/born-ml/tilenet/internal/engine"
	"github.com/born-ml/tilenet/internal/errs"
	"github.com/born-ml/tilenet/internal/parallel"
	"github.com/born-ml/tilenet/internal/params"
)

type executorCase struct {
	name string
	new  func(t *testing.T) engine.TileExecutor
}

func executors() []executorCase {
	return []executorCase{
		{"direct", func(*testing.T) engine.TileExecutor { return engine.NewDirectExecutor() }},
		{"offload", func(t *testing.T) engine.TileExecutor {
			t.Helper()
			s, err := device.NewSession(host.New())
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return engine.NewOffloadExecutor(s)
		}},
		{"offload-parallel", func(t *testing.T) engine.TileExecutor {
			t.Helper()
			cfg := parallel.Config{Enabled: true, NumWorkers: 8, MinChunkSize: 1}
			s, err := device.NewSession(host.New(host.WithParallel(cfg)))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return engine.NewOffloadExecutor(s)
		}},
	}
}

func randomLayer(rng *rand.Rand, neurons, inputSize int) (weights, biases, input []float32) {
	weights = make([]float32, neurons*inputSize)
	biases = make([]float32, neurons)
	input = make([]float32, inputSize)
	for i := range weights {
		weights[i] = rng.Float32()*2 - 1
	}
	for i := range biases {
		biases[i] = rng.Float32() - 0.5
	}
	for i := range input {
		input[i] = rng.Float32()
	}
	return weights, biases, input
}

// gonumProduct computes W*x + b with gonum in float64.
func gonumProduct(neurons, inputSize int, weights, biases, input []float32) []float64 {
	w := mat.NewDense(neurons, inputSize, toFloat64(weights))
	x := mat.NewVecDense(inputSize, toFloat64(input))
	var y mat.VecDense
	y.MulVec(w, x)
	out := make([]float64, neurons)
	floats.Add(out, y.RawVector().Data)
	floats.Add(out, toFloat64(biases))
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func assertClose(t *testing.T, want []float64, got []float32) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, scalar.EqualWithinAbsOrRel(want[i], float64(got[i]), 1e-5, 1e-5),
			"out[%d] = %v, want %v", i, got[i], want[i])
	}
}

func TestForward_MatchesReference(t *testing.T) {
	shapes := []engine.Shape{
		{Neurons: 10, InputSize: 784, TileSize: 28},
		{Neurons: 10, InputSize: 10, TileSize: 10},
		{Neurons: 10, InputSize: 10, TileSize: 1},
		{Neurons: 3, InputSize: 12, TileSize: 4},
		{Neurons: 1, InputSize: 7, TileSize: 7},
	}
	for _, ec := range executors() {
		t.Run(ec.name, func(t *testing.T) {
			eng := engine.New(ec.new(t))
			rng := rand.New(rand.NewPCG(1, 2))
			for _, shape := range shapes {
				w, b, x := randomLayer(rng, shape.Neurons, shape.InputSize)

				got, err := eng.Forward(shape, w, b, x)
				require.NoError(t, err, shape)
				assertClose(t, gonumProduct(shape.Neurons, shape.InputSize, w, b, x), got)

				ref, err := engine.Reference(shape, w, b, x)
				require.NoError(t, err)
				assert.InDeltaSlice(t, ref, got, 1e-4)
			}
		})
	}
}

func TestForward_ExecutorsAgreeOnWideLayer(t *testing.T) {
	shape := engine.Shape{Neurons: 300, InputSize: 784, TileSize: 28}
	w, b, x := randomLayer(rand.New(rand.NewPCG(5, 6)), shape.Neurons, shape.InputSize)

	want, err := engine.New(engine.NewDirectExecutor()).Forward(shape, w, b, x)
	require.NoError(t, err)
	for _, ec := range executors() {
		got, err := engine.New(ec.new(t)).Forward(shape, w, b, x)
		require.NoError(t, err, ec.name)
		assert.InDeltaSlice(t, want, got, 1e-4, ec.name)
	}
}

func TestForward_Idempotent(t *testing.T) {
	shape := engine.Shape{Neurons: 10, InputSize: 784, TileSize: 28}
	w, b, x := randomLayer(rand.New(rand.NewPCG(3, 4)), shape.Neurons, shape.InputSize)

	for _, ec := range executors() {
		t.Run(ec.name, func(t *testing.T) {
			eng := engine.New(ec.new(t))
			first, err := eng.Forward(shape, w, b, x)
			require.NoError(t, err)
			second, err := eng.Forward(shape, w, b, x)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

func TestForward_IdentityLikeWeights(t *testing.T) {
	shape := engine.Shape{Neurons: 10, InputSize: 784, TileSize: 28}
	w := make([]float32, shape.Neurons*shape.InputSize)
	for n := 0; n < shape.Neurons; n++ {
		w[n*shape.InputSize+n] = 1
	}
	b := make([]float32, shape.Neurons)
	x := make([]float32, shape.InputSize)
	for i := range x {
		x[i] = float32(i)
	}

	for _, ec := range executors() {
		t.Run(ec.name, func(t *testing.T) {
			out, err := engine.New(ec.new(t)).Forward(shape, w, b, x)
			require.NoError(t, err)
			assert.Equal(t, []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, out)
		})
	}
}

func TestForward_SingleTileEqualsPlainDot(t *testing.T) {
	shape := engine.Shape{Neurons: 2, InputSize: 3, TileSize: 3}
	w := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{0.5, -1}
	x := []float32{1, 1, 2}

	out, err := engine.New(engine.NewDirectExecutor()).Forward(shape, w, b, x)
	require.NoError(t, err)
	assert.Equal(t, []float32{9.5, 20}, out)
}

func TestForward_InvalidArguments(t *testing.T) {
	valid := engine.Shape{Neurons: 2, InputSize: 4, TileSize: 2}
	w := make([]float32, 8)
	b := make([]float32, 2)
	x := make([]float32, 4)

	tests := []struct {
		name    string
		shape   engine.Shape
		w, b, x []float32
	}{
		{"zero neurons", engine.Shape{Neurons: 0, InputSize: 4, TileSize: 2}, w, b, x},
		{"zero input size", engine.Shape{Neurons: 2, InputSize: 0, TileSize: 2}, w, b, x},
		{"zero tile size", engine.Shape{Neurons: 2, InputSize: 4, TileSize: 0}, w, b, x},
		{"tile does not divide input", engine.Shape{Neurons: 2, InputSize: 4, TileSize: 3}, w, b, x},
		{"empty weights", valid, nil, b, x},
		{"empty biases", valid, w, nil, x},
		{"empty input", valid, w, b, nil},
		{"short weights", valid, w[:7], b, x},
		{"long biases", valid, w, make([]float32, 3), x},
		{"short input", valid, w, b, x[:3]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := host.New()
			s, err := device.NewSession(dev)
			require.NoError(t, err)
			defer s.Close()

			_, err = engine.New(engine.NewOffloadExecutor(s)).Forward(tt.shape, tt.w, tt.b, tt.x)
			require.ErrorIs(t, err, errs.ErrInvalidArgument)
			assert.Zero(t, dev.Stats().Allocs, "no buffer may be allocated")

			_, err = engine.Reference(tt.shape, tt.w, tt.b, tt.x)
			assert.ErrorIs(t, err, errs.ErrInvalidArgument)
		})
	}
}

func TestForward_DeviceFaultsReleaseBuffers(t *testing.T) {
	shape := engine.Shape{Neurons: 4, InputSize: 12, TileSize: 3}
	w, b, x := randomLayer(rand.New(rand.NewPCG(5, 6)), shape.Neurons, shape.InputSize)
	numTiles := shape.NumTiles()

	var faults []host.Faults
	for i := 1; i <= 3; i++ {
		faults = append(faults, host.Faults{Alloc: i})
	}
	for tile := 1; tile <= numTiles; tile++ {
		faults = append(faults,
			host.Faults{Launch: tile},
			host.Faults{Kernel: tile},
			host.Faults{Write: 2*tile - 1},
			host.Faults{Write: 2 * tile},
		)
	}
	faults = append(faults, host.Faults{Read: 1})

	for _, f := range faults {
		dev := host.New(host.WithFaults(f))
		s, err := device.NewSession(dev)
		require.NoError(t, err)

		out, err := engine.New(engine.NewOffloadExecutor(s)).Forward(shape, w, b, x)
		assert.ErrorIs(t, err, errs.ErrDeviceFailure, "%+v", f)
		assert.Nil(t, out, "no partial result for %+v", f)
		assert.Zero(t, dev.Stats().Live, "buffers leaked for %+v", f)
		require.NoError(t, s.Close())
	}
}

func TestForward_ClosedSession(t *testing.T) {
	s, err := device.NewSession(host.New())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = engine.New(engine.NewOffloadExecutor(s)).Forward(
		engine.Shape{Neurons: 1, InputSize: 1, TileSize: 1}, []float32{1}, []float32{0}, []float32{1})
	assert.ErrorIs(t, err, errs.ErrDeviceFailure)
}

func TestForward_LaunchesOncePerTile(t *testing.T) {
	dev := host.New()
	s, err := device.NewSession(dev)
	require.NoError(t, err)
	defer s.Close()

	shape := engine.Shape{Neurons: 10, InputSize: 784, TileSize: 28}
	w, b, x := randomLayer(rand.New(rand.NewPCG(7, 8)), shape.Neurons, shape.InputSize)
	_, err = engine.New(engine.NewOffloadExecutor(s)).Forward(shape, w, b, x)
	require.NoError(t, err)

	st := dev.Stats()
	assert.Equal(t, 28, st.Launches)
	assert.Equal(t, 56, st.Writes)
	assert.Equal(t, 28, st.Finishes)
	assert.Equal(t, 1, st.Fills)
	assert.Equal(t, 1, st.Reads)
	assert.Equal(t, 3, st.Allocs)
	assert.Zero(t, st.Live)
}

func TestForwardLayer(t *testing.T) {
	layer, err := params.NewLayer([]float32{1, 0, 0, 1, 1, 1}, []float32{0, 1, 2}, 3, 2)
	require.NoError(t, err)

	eng := engine.New(engine.NewDirectExecutor())
	out, err := eng.ForwardLayer(layer, 1, []float32{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4, 7}, out)

	_, err = eng.ForwardLayer(nil, 1, []float32{2, 3})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestRepackTile(t *testing.T) {
	shape := engine.Shape{Neurons: 2, InputSize: 6, TileSize: 2}
	w := []float32{
		0, 1, 2, 3, 4, 5,
		10, 11, 12, 13, 14, 15,
	}
	dst := make([]float32, 4)

	require.NoError(t, engine.RepackTile(dst, w, shape, 0))
	assert.Equal(t, []float32{0, 1, 10, 11}, dst)
	require.NoError(t, engine.RepackTile(dst, w, shape, 2))
	assert.Equal(t, []float32{4, 5, 14, 15}, dst)

	assert.ErrorIs(t, engine.RepackTile(dst, w, shape, 3), errs.ErrInvalidArgument)
	assert.ErrorIs(t, engine.RepackTile(dst[:3], w, shape, 0), errs.ErrInvalidArgument)
}

func BenchmarkForward(b *testing.B) {
	shape := engine.Shape{Neurons: 10, InputSize: 784, TileSize: 28}
	w, bias, x := randomLayer(rand.New(rand.NewPCG(9, 10)), shape.Neurons, shape.InputSize)

	b.Run("direct", func(b *testing.B) {
		eng := engine.New(engine.NewDirectExecutor())
		for b.Loop() {
			_, _ = eng.Forward(shape, w, bias, x)
		}
	})
	b.Run("offload-host", func(b *testing.B) {
		s, err := device.NewSession(host.New())
		if err != nil {
			b.Fatal(err)
		}
		defer s.Close()
		eng := engine.New(engine.NewOffloadExecutor(s))
		for b.Loop() {
			_, _ = eng.Forward(shape, w, bias, x)
		}
	})
}
