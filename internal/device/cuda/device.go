//go:build cuda

package cuda

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"gorgonia.org/cu"

	"github.com/born-ml/tilenet/internal/device"
)

// Device is one CUDA device with its context.
type Device struct {
	name   string
	ctx    cu.CUContext
	mod    cu.Module
	stream cu.Stream

	mu       sync.Mutex
	live     map[*buffer]struct{}
	released bool
}

// New creates a context on GPU ordinal and loads the kernel module.
func New(ordinal int) (*Device, error) {
	dev, err := cu.GetDevice(ordinal)
	if err != nil {
		return nil, device.Failure("cuda", "get device", err)
	}
	devName, err := dev.Name()
	if err != nil {
		devName = fmt.Sprintf("device %d", ordinal)
	}
	label := "CUDA (" + devName + ")"

	ctx, err := dev.MakeContext(cu.SchedAuto)
	if err != nil {
		return nil, device.Failure(label, "create context", err)
	}
	mod, err := cu.LoadData(accumulateDotPTX)
	if err != nil {
		ctx.Destroy()
		return nil, device.Failure(label, "load module", err)
	}
	stream, err := cu.MakeStream(cu.DefaultStream)
	if err != nil {
		_ = mod.Unload()
		ctx.Destroy()
		return nil, device.Failure(label, "make stream", err)
	}

	return &Device{
		name:   label,
		ctx:    ctx,
		mod:    mod,
		stream: stream,
		live:   make(map[*buffer]struct{}),
	}, nil
}

// IsAvailable reports whether at least one CUDA device is present.
func IsAvailable() bool {
	n, err := cu.NumDevices()
	return err == nil && n > 0
}

// Name describes the GPU.
func (d *Device) Name() string {
	return d.name
}

// lock takes the device mutex and makes the context current.
func (d *Device) lock(op string) error {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return device.Failure(d.name, op, device.ErrFreed)
	}
	if err := cu.SetCurrentContext(d.ctx); err != nil {
		d.mu.Unlock()
		return device.Failure(d.name, op, err)
	}
	return nil
}

// Kernel looks up a function of the loaded module.
func (d *Device) Kernel(kernelName string) (device.Kernel, error) {
	args, ok := kernelArgs[kernelName]
	if !ok {
		return nil, device.Failure(d.name, "kernel", fmt.Errorf("unknown kernel %q", kernelName))
	}
	if err := d.lock("kernel"); err != nil {
		return nil, err
	}
	defer d.mu.Unlock()

	fn, err := d.mod.Function(kernelName)
	if err != nil {
		return nil, device.Failure(d.name, "kernel "+kernelName, err)
	}
	return &kernel{name: kernelName, fn: fn, args: args}, nil
}

// Alloc allocates device memory.
func (d *Device) Alloc(size int, access device.Access) (device.Buffer, error) {
	if size <= 0 || size%4 != 0 {
		return nil, device.Failure(d.name, "alloc", fmt.Errorf("invalid buffer size %d", size))
	}
	if err := d.lock("alloc"); err != nil {
		return nil, err
	}
	defer d.mu.Unlock()

	ptr, err := cu.MemAlloc(int64(size))
	if err != nil {
		return nil, device.Failure(d.name, "alloc", err)
	}
	b := &buffer{ptr: ptr, size: size, access: access, owner: d}
	d.live[b] = struct{}{}
	return b, nil
}

// Free releases device memory.
func (d *Device) Free(buf device.Buffer) error {
	b, err := d.own(buf, "free")
	if err != nil {
		return err
	}
	if err := d.lock("free"); err != nil {
		return err
	}
	defer d.mu.Unlock()

	delete(d.live, b)
	b.freed = true
	if err := cu.MemFree(b.ptr); err != nil {
		return device.Failure(d.name, "free", err)
	}
	return nil
}

// Write copies src to the device.
func (d *Device) Write(dst device.Buffer, src []float32) error {
	b, err := d.own(dst, "write")
	if err != nil {
		return err
	}
	size := len(src) * 4
	if size > b.size {
		return device.Failure(d.name, "write", fmt.Errorf("%d bytes into %d byte buffer", size, b.size))
	}
	if size == 0 {
		return nil
	}
	if err := d.lock("write"); err != nil {
		return err
	}
	defer d.mu.Unlock()

	if err := cu.MemcpyHtoD(b.ptr, unsafe.Pointer(&src[0]), int64(size)); err != nil {
		return device.Failure(d.name, "write", err)
	}
	return nil
}

// Fill sets every float32 slot to value.
func (d *Device) Fill(dst device.Buffer, value float32) error {
	b, err := d.own(dst, "fill")
	if err != nil {
		return err
	}
	if err := d.lock("fill"); err != nil {
		return err
	}
	defer d.mu.Unlock()

	if err := cu.MemsetD32(b.ptr, math.Float32bits(value), int64(b.size/4)); err != nil {
		return device.Failure(d.name, "fill", err)
	}
	return nil
}

// Launch runs the kernel in blocks of blockSize threads and waits for it.
func (d *Device) Launch(k device.Kernel, workItems int, args ...device.Arg) error {
	ck, ok := k.(*kernel)
	if !ok || ck == nil {
		return device.Failure(d.name, "launch", fmt.Errorf("foreign kernel %T", k))
	}
	op := "launch " + ck.name
	if workItems <= 0 {
		return device.Failure(d.name, op, fmt.Errorf("invalid work-item count %d", workItems))
	}
	if len(args) != len(ck.args) {
		return device.Failure(d.name, op, fmt.Errorf("takes %d arguments, got %d", len(ck.args), len(args)))
	}

	// Kernel parameters are passed by address; keep the values alive in
	// slices that outlive the launch.
	ptrs := make([]cu.DevicePtr, len(args))
	scalars := make([]int32, len(args))
	params := make([]unsafe.Pointer, len(args))
	for i, isBuf := range ck.args {
		if !isBuf {
			v, ok := args[i].Int32()
			if !ok {
				return device.Failure(d.name, op, fmt.Errorf("argument %d must be a scalar", i))
			}
			scalars[i] = v
			params[i] = unsafe.Pointer(&scalars[i])
			continue
		}
		buf, ok := args[i].Buffer()
		if !ok {
			return device.Failure(d.name, op, fmt.Errorf("argument %d must be a buffer", i))
		}
		b, err := d.own(buf, "bind")
		if err != nil {
			return err
		}
		ptrs[i] = b.ptr
		params[i] = unsafe.Pointer(&ptrs[i])
	}

	if err := d.lock(op); err != nil {
		return err
	}
	defer d.mu.Unlock()

	grid := (workItems + blockSize - 1) / blockSize
	if err := ck.fn.LaunchAndSync(grid, 1, 1, blockSize, 1, 1, 0, d.stream, params); err != nil {
		return device.Failure(d.name, op, err)
	}
	return nil
}

// Read copies device memory into dst.
func (d *Device) Read(src device.Buffer, dst []float32) error {
	b, err := d.own(src, "read")
	if err != nil {
		return err
	}
	size := len(dst) * 4
	if size > b.size {
		return device.Failure(d.name, "read", fmt.Errorf("%d bytes from %d byte buffer", size, b.size))
	}
	if size == 0 {
		return nil
	}
	if err := d.lock("read"); err != nil {
		return err
	}
	defer d.mu.Unlock()

	if err := cu.MemcpyDtoH(unsafe.Pointer(&dst[0]), b.ptr, int64(size)); err != nil {
		return device.Failure(d.name, "read", err)
	}
	return nil
}

// Finish waits for the context to go idle.
func (d *Device) Finish() error {
	if err := d.lock("finish"); err != nil {
		return err
	}
	defer d.mu.Unlock()

	if err := cu.Synchronize(); err != nil {
		return device.Failure(d.name, "finish", err)
	}
	return nil
}

// Release frees every live buffer, destroys the stream, unloads the module
// and destroys the context. It is idempotent.
func (d *Device) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil
	}
	d.released = true

	if err := cu.SetCurrentContext(d.ctx); err != nil {
		return device.Failure(d.name, "release", err)
	}
	for b := range d.live {
		_ = cu.MemFree(b.ptr)
		b.freed = true
	}
	d.live = nil

	var errList []error
	if err := d.stream.Destroy(); err != nil {
		errList = append(errList, fmt.Errorf("destroy stream: %w", err))
	}
	if err := d.mod.Unload(); err != nil {
		errList = append(errList, fmt.Errorf("unload module: %w", err))
	}
	if err := d.ctx.Destroy(); err != nil {
		errList = append(errList, fmt.Errorf("destroy context: %w", err))
	}
	if err := errors.Join(errList...); err != nil {
		return device.Failure(d.name, "release", err)
	}
	return nil
}

func (d *Device) own(buf device.Buffer, op string) (*buffer, error) {
	b, ok := buf.(*buffer)
	if !ok || b == nil || b.owner != d {
		return nil, device.Failure(d.name, op, fmt.Errorf("foreign buffer %T", buf))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if b.freed {
		return nil, device.Failure(d.name, op, device.ErrFreed)
	}
	return b, nil
}

type buffer struct {
	ptr    cu.DevicePtr
	size   int
	access device.Access
	owner  *Device
	freed  bool
}

func (b *buffer) Size() int             { return b.size }
func (b *buffer) Access() device.Access { return b.access }

type kernel struct {
	name string
	fn   cu.Function
	args []bool
}

func (k *kernel) Name() string { return k.name }
