package params

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/tilenet/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRaw(t *testing.T, dir, name string, raw []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestReadFloats_RoundTrip(t *testing.T) {
	values := []float32{0, 1.5, -2.25, 3.4028235e38}

	var buf bytes.Buffer
	require.NoError(t, WriteFloats(&buf, values))
	assert.Equal(t, len(values)*4, buf.Len())

	got, err := ReadFloats(&buf)
	require.NoError(t, err)
	assert.Equal(t, values, got)
}

func TestReadFloats_LittleEndian(t *testing.T) {
	// 1.0f = 0x3f800000
	got, err := ReadFloats(bytes.NewReader([]byte{0x00, 0x00, 0x80, 0x3f}))
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, got)
}

func TestLoadFloats_Malformed(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		raw  []byte
		want int
	}{
		{"empty file", nil, 0},
		{"partial float", []byte{1, 2, 3, 4, 5, 6}, 0},
		{"too few values", make([]byte, 8), 3},
		{"too many values", make([]byte, 16), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRaw(t, dir, "p.bin", tt.raw)
			_, err := LoadFloats(path, tt.want)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrMalformedInput), "got %v", err)

			var lenErr *LengthError
			require.True(t, errors.As(err, &lenErr))
			assert.Equal(t, path, lenErr.Path)
		})
	}
}

func TestLoadFloats_MissingFile(t *testing.T) {
	_, err := LoadFloats(filepath.Join(t.TempDir(), "nope.bin"), 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, errs.ErrMalformedInput))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestNewLayer_LengthContract(t *testing.T) {
	_, err := NewLayer(make([]float32, 6), make([]float32, 2), 2, 3)
	require.NoError(t, err)

	_, err = NewLayer(make([]float32, 5), make([]float32, 2), 2, 3)
	assert.ErrorIs(t, err, errs.ErrMalformedInput)

	_, err = NewLayer(make([]float32, 6), make([]float32, 3), 2, 3)
	assert.ErrorIs(t, err, errs.ErrMalformedInput)

	_, err = NewLayer(nil, nil, 0, 3)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestNewModel_LayersMustChain(t *testing.T) {
	hidden, err := NewLayer(make([]float32, 12), make([]float32, 3), 3, 4)
	require.NoError(t, err)
	output, err := NewLayer(make([]float32, 4), make([]float32, 2), 2, 2)
	require.NoError(t, err)

	_, err = NewModel(hidden, output)
	assert.ErrorIs(t, err, errs.ErrMalformedInput)

	_, err = NewModel(hidden, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestModel_SaveLoad(t *testing.T) {
	topo := Topology{InputSize: 4, Hidden: 3, Classes: 2}
	hidden, err := NewLayer(
		[]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		[]float32{0.1, 0.2, 0.3}, topo.Hidden, topo.InputSize)
	require.NoError(t, err)
	output, err := NewLayer([]float32{1, 0, 0, 0, 1, 0}, []float32{-1, 1}, topo.Classes, topo.Hidden)
	require.NoError(t, err)
	model, err := NewModel(hidden, output)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, model.Save(dir))

	loaded, err := LoadModel(dir, topo)
	require.NoError(t, err)
	assert.Equal(t, topo, loaded.Topology())
	assert.Equal(t, hidden.Weights, loaded.Hidden.Weights)
	assert.Equal(t, output.Biases, loaded.Output.Biases)
}

func TestLoadModel_WrongTopology(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, HiddenWeightsFile, make([]byte, 4*784*10))
	writeRaw(t, dir, HiddenBiasesFile, make([]byte, 4*10))
	writeRaw(t, dir, OutputWeightsFile, make([]byte, 4*10*10))
	// One bias short.
	writeRaw(t, dir, OutputBiasesFile, make([]byte, 4*9))

	_, err := LoadModel(dir, DefaultTopology())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrMalformedInput)
	assert.Contains(t, err.Error(), "output layer")
}
