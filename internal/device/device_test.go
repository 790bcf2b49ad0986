package device_test

import (
	"errors"
	"testing"

	"github.com/born-ml/tilenet/internal/device"
	"github.com/born-ml/tilenet/internal/device/host"
	"github.com/born-ml/tilenet/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_CloseOnce(t *testing.T) {
	dev := host.New()
	s, err := device.NewSession(dev)
	require.NoError(t, err)
	assert.Equal(t, "host", s.Name())
	assert.Equal(t, device.AccumulateDot, s.Kernel().Name())
	assert.False(t, s.Closed())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, s.Closed())

	_, err = dev.Alloc(4, device.ReadOnly)
	assert.Error(t, err, "device must be released by Close")
}

func TestSession_NilDevice(t *testing.T) {
	_, err := device.NewSession(nil)
	assert.Error(t, err)
}

// noKernelDevice is a host device that cannot compile kernels.
type noKernelDevice struct {
	*host.Device
	released bool
}

func (d *noKernelDevice) Kernel(string) (device.Kernel, error) {
	return nil, errors.New("compiler missing")
}

func (d *noKernelDevice) Release() error {
	d.released = true
	return d.Device.Release()
}

func TestSession_KernelFailureReleasesDevice(t *testing.T) {
	dev := &noKernelDevice{Device: host.New()}
	_, err := device.NewSession(dev)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrDeviceFailure)
	assert.True(t, dev.released)
}

func TestScope_ReleasesInReverse(t *testing.T) {
	dev := host.New()
	defer dev.Release()

	scope := device.NewScope(dev)
	for i := 0; i < 3; i++ {
		_, err := scope.Alloc(16, device.ReadWrite)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, scope.Len())
	assert.Equal(t, 3, dev.Stats().Live)

	require.NoError(t, scope.Release())
	assert.Equal(t, 0, scope.Len())
	assert.Equal(t, 0, dev.Stats().Live)
	require.NoError(t, scope.Release())
}

func TestScope_FailedAllocIsNotTracked(t *testing.T) {
	dev := host.New(host.WithFaults(host.Faults{Alloc: 2}))
	defer dev.Release()

	scope := device.NewScope(dev)
	_, err := scope.Alloc(4, device.ReadOnly)
	require.NoError(t, err)
	_, err = scope.Alloc(4, device.ReadOnly)
	require.Error(t, err)
	assert.Equal(t, 1, scope.Len())

	require.NoError(t, scope.Release())
	assert.Equal(t, 0, dev.Stats().Live)
}

func TestFailure(t *testing.T) {
	assert.NoError(t, device.Failure("x", "op", nil))

	cause := errors.New("boom")
	err := device.Failure("gpu0", "launch", cause)
	assert.ErrorIs(t, err, errs.ErrDeviceFailure)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "device failure: gpu0: launch: boom", err.Error())

	// Already-wrapped errors keep their original context.
	assert.Same(t, err, device.Failure("other", "read", err))
}

func TestAccess(t *testing.T) {
	assert.False(t, device.ReadOnly.Writable())
	assert.True(t, device.WriteOnly.Writable())
	assert.True(t, device.ReadWrite.Writable())
	assert.Equal(t, "read-only", device.ReadOnly.String())
	assert.Equal(t, "unknown", device.Access(42).String())
}

func TestArg(t *testing.T) {
	s := device.Int32Arg(7)
	v, ok := s.Int32()
	assert.True(t, ok)
	assert.Equal(t, int32(7), v)
	_, ok = s.Buffer()
	assert.False(t, ok)

	var empty device.Arg
	_, ok = empty.Buffer()
	assert.False(t, ok)
}
