// Package device defines the compute-resource boundary used by the offload
// engine: buffer allocation, host-to-device writes, kernel launches,
// device-to-host reads and a blocking barrier.
//
// Implementations:
//   - device/host: in-process accelerator with an asynchronous command queue
//   - device/webgpu: WebGPU compute via go-webgpu (windows builds)
//   - device/cuda: NVIDIA GPUs via gorgonia.org/cu (-tags cuda)
//
// Commands submitted with Write, Fill and Launch may run asynchronously
// with respect to the caller. They execute in submission order. Read blocks
// until the data is on the host; Finish blocks until every submitted command
// has completed and reports the first failure since the previous barrier.
package device

import "errors"

// Access describes how kernels may use a buffer.
type Access int

const (
	// ReadOnly buffers are written by the host and only read by kernels.
	ReadOnly Access = iota
	// WriteOnly buffers are written by kernels and read back by the host.
	WriteOnly
	// ReadWrite buffers are read and written by kernels.
	ReadWrite
)

// String returns the access tag name.
func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "read-only"
	case WriteOnly:
		return "write-only"
	case ReadWrite:
		return "read-write"
	default:
		return "unknown"
	}
}

// Writable reports whether kernels may store into buffers with this tag.
func (a Access) Writable() bool {
	return a == WriteOnly || a == ReadWrite
}

// Buffer is device-resident memory.
type Buffer interface {
	Size() int // Size in bytes.
	Access() Access
}

// Kernel is a compiled compute kernel.
type Kernel interface {
	Name() string
}

// Device is one accelerator with its command queue.
type Device interface {
	// Name describes the device (e.g. "host", "WebGPU (NVIDIA ...)").
	Name() string

	// Kernel returns the compiled kernel with the given name.
	Kernel(name string) (Kernel, error)

	// Alloc allocates size bytes. Size must be a positive multiple of 4.
	Alloc(size int, access Access) (Buffer, error)

	// Free releases a buffer. Freeing a buffer twice is an error.
	Free(b Buffer) error

	// Write copies src into the start of dst. src is not retained.
	Write(dst Buffer, src []float32) error

	// Fill sets every float32 slot of dst to value.
	Fill(dst Buffer, value float32) error

	// Launch runs kernel k over workItems work items with positional args.
	Launch(k Kernel, workItems int, args ...Arg) error

	// Read copies the start of src into dst once prior commands completed.
	Read(src Buffer, dst []float32) error

	// Finish blocks until all submitted commands completed.
	Finish() error

	// Release frees every resource owned by the device.
	Release() error
}

// Arg is one positional kernel argument: a buffer or an int32 scalar.
type Arg struct {
	buf      Buffer
	scalar   int32
	isScalar bool
}

// BufferArg binds a buffer argument.
func BufferArg(b Buffer) Arg {
	return Arg{buf: b}
}

// Int32Arg binds a scalar argument.
func Int32Arg(v int32) Arg {
	return Arg{scalar: v, isScalar: true}
}

// Buffer returns the bound buffer, if any.
func (a Arg) Buffer() (Buffer, bool) {
	return a.buf, !a.isScalar && a.buf != nil
}

// Int32 returns the bound scalar, if any.
func (a Arg) Int32() (int32, bool) {
	return a.scalar, a.isScalar
}

// ErrFreed is returned when a released buffer or device is used.
var ErrFreed = errors.New("resource already released")
