//go:build windows

package webgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tilenet/internal/device"
)

func openDevice(t *testing.T) *Device {
	t.Helper()
	if !IsAvailable() {
		t.Skip("WebGPU not available on this system")
	}
	dev, err := New()
	if err != nil {
		t.Skipf("WebGPU not available: %v", err)
	}
	t.Cleanup(func() { _ = dev.Release() })
	return dev
}

func TestWriteRead(t *testing.T) {
	dev := openDevice(t)
	t.Logf("adapter: %s", dev.Name())

	buf, err := dev.Alloc(16, device.ReadWrite)
	require.NoError(t, err)
	require.NoError(t, dev.Write(buf, []float32{1, 2, 3, 4}))

	got := make([]float32, 4)
	require.NoError(t, dev.Read(buf, got))
	assert.Equal(t, []float32{1, 2, 3, 4}, got)
	require.NoError(t, dev.Free(buf))
}

func TestAccumulateDot(t *testing.T) {
	dev := openDevice(t)

	k, err := dev.Kernel(device.AccumulateDot)
	require.NoError(t, err)

	in, err := dev.Alloc(2*4, device.ReadOnly)
	require.NoError(t, err)
	w, err := dev.Alloc(3*2*4, device.ReadOnly)
	require.NoError(t, err)
	out, err := dev.Alloc(3*4, device.ReadWrite)
	require.NoError(t, err)

	require.NoError(t, dev.Fill(out, 0))
	require.NoError(t, dev.Write(in, []float32{2, 3}))
	require.NoError(t, dev.Write(w, []float32{1, 0, 0, 1, 1, 1}))
	for range 2 {
		require.NoError(t, dev.Launch(k, 3, device.AccumulateDotArgs(in, w, 2, 3, out)...))
		require.NoError(t, dev.Finish())
	}

	got := make([]float32, 3)
	require.NoError(t, dev.Read(out, got))
	assert.Equal(t, []float32{4, 6, 10}, got)
}

func TestKernel_Unknown(t *testing.T) {
	dev := openDevice(t)
	_, err := dev.Kernel("no_such_kernel")
	assert.Error(t, err)
}
