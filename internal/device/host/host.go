// Package host implements device.Device in process memory.
//
// The host device behaves like an offload accelerator: buffers are separate
// allocations that the caller can only reach through Write and Read, and
// Write, Fill and Launch are queued to a worker goroutine that executes them
// in order. Work items of one launch are spread over goroutines with
// internal/parallel. Faults can be injected to exercise failure paths.
package host

import (
	"fmt"
	"sync"

	"github.com/born-ml/tilenet/internal/device"
	"github.com/born-ml/tilenet/internal/parallel"
)

const name = "host"

// queueDepth bounds the number of submitted but unexecuted commands.
const queueDepth = 64

// Faults makes the nth call (1-based) of an operation fail. Zero disables.
type Faults struct {
	Alloc  int // Alloc returns an error.
	Write  int // Write returns an error.
	Launch int // Launch is rejected at submission.
	Kernel int // Launch is accepted but the kernel fails; reported by Finish.
	Read   int // Read returns an error.
}

// Stats counts device operations.
type Stats struct {
	Allocs   int
	Frees    int
	Live     int // Buffers allocated and not yet freed.
	Writes   int
	Fills    int
	Launches int
	Reads    int
	Finishes int
}

// Option configures a Device.
type Option func(*Device)

// WithParallel sets how work items of a launch are distributed.
func WithParallel(cfg parallel.Config) Option {
	return func(d *Device) {
		d.cfg = cfg
	}
}

// WithFaults injects failures.
func WithFaults(f Faults) Option {
	return func(d *Device) {
		d.faults = f
	}
}

type command struct {
	op  string
	run func() error
}

// Device is an in-process accelerator.
type Device struct {
	cfg    parallel.Config
	faults Faults

	mu       sync.Mutex
	kernels  map[string]*Spec
	live     map[*buffer]struct{}
	stats    Stats
	released bool

	queue   chan command
	done    chan struct{}
	pending sync.WaitGroup

	errMu    sync.Mutex
	firstErr error
}

// New creates a host device and starts its command queue.
func New(opts ...Option) *Device {
	d := &Device{
		cfg:     parallel.DefaultConfig(),
		kernels: builtinKernels(),
		live:    make(map[*buffer]struct{}),
		queue:   make(chan command, queueDepth),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.loop()
	return d
}

func (d *Device) loop() {
	defer close(d.done)
	for cmd := range d.queue {
		if err := cmd.run(); err != nil {
			d.setErr(device.Failure(name, cmd.op, err))
		}
		d.pending.Done()
	}
}

func (d *Device) setErr(err error) {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	if d.firstErr == nil {
		d.firstErr = err
	}
}

func (d *Device) takeErr() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	err := d.firstErr
	d.firstErr = nil
	return err
}

// submit queues run for in-order execution on the worker goroutine.
func (d *Device) submit(op string, run func() error) error {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return device.Failure(name, op, device.ErrFreed)
	}
	d.pending.Add(1)
	d.mu.Unlock()

	d.queue <- command{op: op, run: run}
	return nil
}

// Name returns "host".
func (d *Device) Name() string {
	return name
}

// Stats returns a snapshot of the operation counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.Live = len(d.live)
	return s
}

// Kernel looks up a registered kernel.
func (d *Device) Kernel(kernelName string) (device.Kernel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	spec, ok := d.kernels[kernelName]
	if !ok {
		return nil, device.Failure(name, "kernel", fmt.Errorf("unknown kernel %q", kernelName))
	}
	return &kernel{spec: spec}, nil
}

// Register adds a kernel to the device.
func (d *Device) Register(spec *Spec) error {
	if spec == nil || spec.Name == "" || spec.Run == nil {
		return fmt.Errorf("host: incomplete kernel spec")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kernels[spec.Name] = spec
	return nil
}

// Alloc allocates a zeroed buffer of size bytes.
func (d *Device) Alloc(size int, access device.Access) (device.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, device.Failure(name, "alloc", device.ErrFreed)
	}
	d.stats.Allocs++
	if d.faults.Alloc == d.stats.Allocs {
		return nil, device.Failure(name, "alloc", fmt.Errorf("out of device memory (%d bytes)", size))
	}
	if size <= 0 || size%4 != 0 {
		return nil, device.Failure(name, "alloc", fmt.Errorf("invalid buffer size %d", size))
	}
	b := &buffer{data: make([]float32, size/4), access: access, owner: d}
	d.live[b] = struct{}{}
	return b, nil
}

// Free releases a buffer once every queued command has completed.
func (d *Device) Free(buf device.Buffer) error {
	b, err := d.own(buf, "free")
	if err != nil {
		return err
	}
	d.pending.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.live, b)
	b.freed = true
	b.data = nil
	d.stats.Frees++
	return nil
}

// Write queues a copy of src into dst.
func (d *Device) Write(dst device.Buffer, src []float32) error {
	b, err := d.own(dst, "write")
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.stats.Writes++
	fail := d.faults.Write == d.stats.Writes
	d.mu.Unlock()
	if fail {
		return device.Failure(name, "write", fmt.Errorf("transfer of %d bytes aborted", len(src)*4))
	}
	if len(src)*4 > b.Size() {
		return device.Failure(name, "write", fmt.Errorf("%d bytes into %d byte buffer", len(src)*4, b.Size()))
	}

	data := append([]float32(nil), src...)
	return d.submit("write", func() error {
		copy(b.data, data)
		return nil
	})
}

// Fill queues setting every slot of dst to value.
func (d *Device) Fill(dst device.Buffer, value float32) error {
	b, err := d.own(dst, "fill")
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.stats.Fills++
	d.mu.Unlock()

	return d.submit("fill", func() error {
		for i := range b.data {
			b.data[i] = value
		}
		return nil
	})
}

// Launch validates the arguments against the kernel signature and queues
// workItems invocations.
func (d *Device) Launch(k device.Kernel, workItems int, args ...device.Arg) error {
	hk, ok := k.(*kernel)
	if !ok || hk == nil {
		return device.Failure(name, "launch", fmt.Errorf("foreign kernel %T", k))
	}
	op := "launch " + hk.spec.Name

	d.mu.Lock()
	d.stats.Launches++
	launchNo := d.stats.Launches
	d.mu.Unlock()
	if d.faults.Launch == launchNo {
		return device.Failure(name, op, fmt.Errorf("launch rejected"))
	}
	if workItems <= 0 {
		return device.Failure(name, op, fmt.Errorf("invalid work-item count %d", workItems))
	}

	values, err := d.bind(hk.spec, args)
	if err != nil {
		return device.Failure(name, op, err)
	}

	failKernel := d.faults.Kernel == launchNo
	spec := hk.spec
	return d.submit(op, func() error {
		if failKernel {
			return fmt.Errorf("kernel aborted")
		}
		return parallel.ForErr(workItems, func(item int) error {
			return spec.Run(item, values)
		}, d.cfg)
	})
}

// bind resolves positional args into kernel values.
func (d *Device) bind(spec *Spec, args []device.Arg) ([]Value, error) {
	if len(args) != len(spec.Args) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", spec.Name, len(spec.Args), len(args))
	}
	values := make([]Value, len(args))
	for i, kind := range spec.Args {
		if kind == Scalar {
			v, ok := args[i].Int32()
			if !ok {
				return nil, fmt.Errorf("argument %d of %s must be a scalar", i, spec.Name)
			}
			values[i] = Value{Int: v}
			continue
		}
		buf, ok := args[i].Buffer()
		if !ok {
			return nil, fmt.Errorf("argument %d of %s must be a buffer", i, spec.Name)
		}
		b, err := d.own(buf, "bind")
		if err != nil {
			return nil, err
		}
		if kind == Output && !b.access.Writable() {
			return nil, fmt.Errorf("argument %d of %s is %s", i, spec.Name, b.access)
		}
		values[i] = Value{Data: b.data}
	}
	return values, nil
}

// Read copies src into dst after every queued command completed.
func (d *Device) Read(src device.Buffer, dst []float32) error {
	b, err := d.own(src, "read")
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.stats.Reads++
	fail := d.faults.Read == d.stats.Reads
	d.mu.Unlock()
	if fail {
		return device.Failure(name, "read", fmt.Errorf("transfer aborted"))
	}
	if len(dst)*4 > b.Size() {
		return device.Failure(name, "read", fmt.Errorf("%d bytes from %d byte buffer", len(dst)*4, b.Size()))
	}

	if err := d.submit("read", func() error {
		copy(dst, b.data)
		return nil
	}); err != nil {
		return err
	}
	d.pending.Wait()
	return d.takeErr()
}

// Finish blocks until the queue is empty and reports the first failure since
// the previous barrier.
func (d *Device) Finish() error {
	d.mu.Lock()
	d.stats.Finishes++
	d.mu.Unlock()

	d.pending.Wait()
	return d.takeErr()
}

// Release stops the queue and frees every live buffer. It is idempotent.
func (d *Device) Release() error {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return nil
	}
	d.released = true
	d.mu.Unlock()

	d.pending.Wait()
	close(d.queue)
	<-d.done

	d.mu.Lock()
	defer d.mu.Unlock()
	for b := range d.live {
		b.freed = true
		b.data = nil
	}
	d.live = make(map[*buffer]struct{})
	return nil
}

// own checks that buf belongs to this device and is still live.
func (d *Device) own(buf device.Buffer, op string) (*buffer, error) {
	b, ok := buf.(*buffer)
	if !ok || b == nil || b.owner != d {
		return nil, device.Failure(name, op, fmt.Errorf("foreign buffer %T", buf))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if b.freed {
		return nil, device.Failure(name, op, device.ErrFreed)
	}
	return b, nil
}

type buffer struct {
	data   []float32
	access device.Access
	owner  *Device
	freed  bool
}

func (b *buffer) Size() int             { return len(b.data) * 4 }
func (b *buffer) Access() device.Access { return b.access }

type kernel struct {
	spec *Spec
}

func (k *kernel) Name() string { return k.spec.Name }
