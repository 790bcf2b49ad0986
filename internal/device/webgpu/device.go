//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/tilenet/internal/device"
)

// Device is a WebGPU adapter with its queue.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	adapterInfo *wgpu.AdapterInfo

	mu        sync.Mutex
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	live      map[*buffer]struct{}
	released  bool

	// Upload and uniform buffers referenced by submitted commands; released
	// by the next barrier.
	inflight []*wgpu.Buffer
}

// New opens the high-performance adapter.
// Returns an error if WebGPU is not available or initialization fails.
func New() (dev *Device, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			dev = nil
			err = device.Failure("webgpu", "open", fmt.Errorf("native library not available: %v", r))
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, device.Failure("webgpu", "request adapter", err)
	}

	info := adapter.GetInfo()

	gpu, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, device.Failure("webgpu", "request device", err)
	}

	queue := gpu.GetQueue()
	if queue == nil {
		gpu.Release()
		adapter.Release()
		instance.Release()
		return nil, device.Failure("webgpu", "get queue", fmt.Errorf("no default queue"))
	}

	return &Device{
		instance:    instance,
		adapter:     adapter,
		device:      gpu,
		queue:       queue,
		adapterInfo: &info,
		shaders:     make(map[string]*wgpu.ShaderModule),
		pipelines:   make(map[string]*wgpu.ComputePipeline),
		live:        make(map[*buffer]struct{}),
	}, nil
}

// IsAvailable checks if a WebGPU adapter can be opened on this system.
func IsAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Name describes the adapter.
func (d *Device) Name() string {
	if d.adapterInfo != nil && d.adapterInfo.Device != "" {
		return fmt.Sprintf("WebGPU (%s %s)", d.adapterInfo.Vendor, d.adapterInfo.Device)
	}
	return "WebGPU"
}

// Kernel compiles the named WGSL shader into a compute pipeline. Results
// are cached.
func (d *Device) Kernel(kernelName string) (device.Kernel, error) {
	spec, ok := shaderSpecs[kernelName]
	if !ok {
		return nil, device.Failure(d.Name(), "kernel", fmt.Errorf("unknown kernel %q", kernelName))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, device.Failure(d.Name(), "kernel", device.ErrFreed)
	}
	if p, ok := d.pipelines[kernelName]; ok {
		return &kernel{name: kernelName, spec: spec, pipeline: p}, nil
	}

	shader := d.device.CreateShaderModuleWGSL(spec.code)
	if shader == nil {
		return nil, device.Failure(d.Name(), "compile "+kernelName, fmt.Errorf("shader module not created"))
	}
	pipeline := d.device.CreateComputePipelineSimple(nil, shader, "main")
	if pipeline == nil {
		shader.Release()
		return nil, device.Failure(d.Name(), "compile "+kernelName, fmt.Errorf("pipeline not created"))
	}
	d.shaders[kernelName] = shader
	d.pipelines[kernelName] = pipeline
	return &kernel{name: kernelName, spec: spec, pipeline: pipeline}, nil
}

// Alloc creates a zero-initialized storage buffer.
func (d *Device) Alloc(size int, access device.Access) (device.Buffer, error) {
	if size <= 0 || size%4 != 0 {
		return nil, device.Failure(d.Name(), "alloc", fmt.Errorf("invalid buffer size %d", size))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, device.Failure(d.Name(), "alloc", device.ErrFreed)
	}

	buf := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  uint64(size), //nolint:gosec // G115: size checked positive above
	})
	if buf == nil {
		return nil, device.Failure(d.Name(), "alloc", fmt.Errorf("out of device memory (%d bytes)", size))
	}
	b := &buffer{gpu: buf, size: size, access: access, owner: d}
	d.live[b] = struct{}{}
	return b, nil
}

// Free releases a buffer after pending work completed.
func (d *Device) Free(buf device.Buffer) error {
	b, err := d.own(buf, "free")
	if err != nil {
		return err
	}
	if err := d.Finish(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.live, b)
	b.gpu.Release()
	b.gpu = nil
	return nil
}

// Write uploads src through a mapped staging buffer and a queued copy.
func (d *Device) Write(dst device.Buffer, src []float32) error {
	b, err := d.own(dst, "write")
	if err != nil {
		return err
	}
	size := len(src) * 4
	if size > b.size {
		return device.Failure(d.Name(), "write", fmt.Errorf("%d bytes into %d byte buffer", size, b.size))
	}
	if size == 0 {
		return nil
	}

	staging := d.createBuffer(float32Bytes(src), wgpu.BufferUsageCopySrc)
	encoder := d.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, b.gpu, 0, uint64(size)) //nolint:gosec // G115: non-negative
	d.submit(encoder, staging)
	return nil
}

// Fill uploads size/4 copies of value.
func (d *Device) Fill(dst device.Buffer, value float32) error {
	b, err := d.own(dst, "fill")
	if err != nil {
		return err
	}
	data := make([]float32, b.size/4)
	for i := range data {
		data[i] = value
	}
	return d.Write(b, data)
}

// Launch binds args to the kernel's layout and dispatches
// ceil(workItems / workgroupSize) workgroups.
func (d *Device) Launch(k device.Kernel, workItems int, args ...device.Arg) error {
	wk, ok := k.(*kernel)
	if !ok || wk == nil {
		return device.Failure(d.Name(), "launch", fmt.Errorf("foreign kernel %T", k))
	}
	op := "launch " + wk.name
	if workItems <= 0 {
		return device.Failure(d.Name(), op, fmt.Errorf("invalid work-item count %d", workItems))
	}
	if len(args) != len(wk.spec.order) {
		return device.Failure(d.Name(), op, fmt.Errorf("takes %d arguments, got %d", len(wk.spec.order), len(args)))
	}

	buffers := make([]*buffer, wk.spec.buffers)
	params := make([]byte, 16*((wk.spec.scalars*4+15)/16))
	for i, slot := range wk.spec.order {
		if slot < 0 {
			v, ok := args[i].Int32()
			if !ok {
				return device.Failure(d.Name(), op, fmt.Errorf("argument %d must be a scalar", i))
			}
			binary.LittleEndian.PutUint32(params[4*(-slot-1):], uint32(v)) //nolint:gosec // G115: bit pattern
			continue
		}
		buf, ok := args[i].Buffer()
		if !ok {
			return device.Failure(d.Name(), op, fmt.Errorf("argument %d must be a buffer", i))
		}
		b, err := d.own(buf, "bind")
		if err != nil {
			return err
		}
		buffers[slot] = b
	}

	uniform := d.createBuffer(params, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)

	entries := make([]wgpu.BindGroupEntry, 0, len(buffers)+1)
	for i, b := range buffers {
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i), b.gpu, 0, uint64(b.size))) //nolint:gosec // G115: small
	}
	entries = append(entries, wgpu.BufferBindingEntry(uint32(len(buffers)), uniform, 0, uint64(len(params)))) //nolint:gosec // G115: small

	bindGroupLayout := wk.pipeline.GetBindGroupLayout(0)
	bindGroup := d.device.CreateBindGroupSimple(bindGroupLayout, entries)
	defer bindGroup.Release()

	encoder := d.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(wk.pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	//nolint:gosec // G115: workgroup count is non-negative
	computePass.DispatchWorkgroups(uint32((workItems+workgroupSize-1)/workgroupSize), 1, 1)
	computePass.End()
	d.submit(encoder, uniform)
	return nil
}

// Read copies src into dst through a mappable staging buffer.
func (d *Device) Read(src device.Buffer, dst []float32) error {
	b, err := d.own(src, "read")
	if err != nil {
		return err
	}
	size := len(dst) * 4
	if size > b.size {
		return device.Failure(d.Name(), "read", fmt.Errorf("%d bytes from %d byte buffer", size, b.size))
	}
	if size == 0 {
		return nil
	}
	data, err := d.readBuffer(b.gpu, uint64(size)) //nolint:gosec // G115: non-negative
	if err != nil {
		return device.Failure(d.Name(), "read", err)
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	d.releaseInflight()
	return nil
}

// Finish waits for the queue by mapping a small buffer written after every
// submitted command.
func (d *Device) Finish() error {
	d.mu.Lock()
	released := d.released
	d.mu.Unlock()
	if released {
		return device.Failure(d.Name(), "finish", device.ErrFreed)
	}

	fence := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
		Size:  4,
	})
	defer fence.Release()
	if _, err := d.readBuffer(fence, 4); err != nil {
		return device.Failure(d.Name(), "finish", err)
	}
	d.releaseInflight()
	return nil
}

// Release releases every WebGPU object owned by the device. It is idempotent.
func (d *Device) Release() error {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()
	finishErr := d.Finish()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true

	for b := range d.live {
		b.gpu.Release()
		b.gpu = nil
	}
	d.live = nil
	for _, p := range d.pipelines {
		p.Release()
	}
	d.pipelines = nil
	for _, s := range d.shaders {
		s.Release()
	}
	d.shaders = nil

	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
	return finishErr
}

// createBuffer creates a buffer initialized with data via MappedAtCreation.
// Uniform buffers are rounded up to 16 bytes.
func (d *Device) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := (uint64(len(data)) + 15) &^ 15

	buf := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buf.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buf.Unmap()
	return buf
}

// readBuffer copies size bytes of src into a staging buffer and maps it.
// Mapping completes only after every previously submitted command.
func (d *Device) readBuffer(src *wgpu.Buffer, size uint64) ([]byte, error) {
	staging := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := d.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	d.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(d.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	out := make([]byte, size)
	copy(out, mappedSlice)
	staging.Unmap()
	return out, nil
}

// submit finishes encoder, submits it and keeps temp alive until the next
// barrier.
func (d *Device) submit(encoder *wgpu.CommandEncoder, temp *wgpu.Buffer) {
	d.queue.Submit(encoder.Finish(nil))
	d.mu.Lock()
	d.inflight = append(d.inflight, temp)
	d.mu.Unlock()
}

func (d *Device) releaseInflight() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range d.inflight {
		b.Release()
	}
	d.inflight = d.inflight[:0]
}

func (d *Device) own(buf device.Buffer, op string) (*buffer, error) {
	b, ok := buf.(*buffer)
	if !ok || b == nil || b.owner != d {
		return nil, device.Failure(d.Name(), op, fmt.Errorf("foreign buffer %T", buf))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if b.gpu == nil {
		return nil, device.Failure(d.Name(), op, device.ErrFreed)
	}
	return b, nil
}

func float32Bytes(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(x))
	}
	return out
}

type buffer struct {
	gpu    *wgpu.Buffer
	size   int
	access device.Access
	owner  *Device
}

func (b *buffer) Size() int             { return b.size }
func (b *buffer) Access() device.Access { return b.access }

type kernel struct {
	name     string
	spec     shaderSpec
	pipeline *wgpu.ComputePipeline
}

func (k *kernel) Name() string { return k.name }
