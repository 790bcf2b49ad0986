//go:build !cuda

package cuda

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tilenet/internal/errs"
)

func TestNew_Unavailable(t *testing.T) {
	dev, err := New(0)
	require.ErrorIs(t, err, errs.ErrUnavailable)
	assert.Nil(t, dev)
	assert.False(t, IsAvailable())
}
