package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDotVariantsAgree(t *testing.T) {
	for n := 0; n <= 9; n++ {
		a := make([]float32, n)
		b := make([]float32, n)
		for i := range a {
			a[i] = float32(i) + 0.5
			b[i] = float32(n - i)
		}
		assert.InDelta(t, dotScalar(a, b), dotUnrolled(a, b), 1e-4, "n=%d", n)
	}
}

func TestDescribe(t *testing.T) {
	desc := NewDirectExecutor().Describe()
	assert.True(t, strings.HasPrefix(desc, "cpu"))
	assert.Contains(t, desc, dotKernel+" dot kernel")
}
