package normalize

import (
	"testing"

	"github.com/born-ml/tilenet/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImage_Constants(t *testing.T) {
	pixels := make([]byte, 28*28)
	pixels[0] = 0
	pixels[1] = 255
	pixels[2] = 128

	out, err := Image(pixels)
	require.NoError(t, err)
	require.Len(t, out, 784)

	assert.InDelta(t, -0.1307/0.3081, out[0], 1e-6)
	assert.InDelta(t, (1-0.1307)/0.3081, out[1], 1e-6)
	assert.InDelta(t, (128.0/255-0.1307)/0.3081, out[2], 1e-6)
}

func TestApply_Rejects(t *testing.T) {
	_, err := Image(nil)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = Image(make([]byte, 100))
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = Affine{Mean: 0, Std: 0}.Apply([]byte{1})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestApply_AnySize(t *testing.T) {
	out, err := Affine{Mean: 0, Std: 1}.Apply([]byte{0, 51, 255})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0.2, 1}, out, 1e-6)
}
