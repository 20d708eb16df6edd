package soft

import (
	"fmt"

	"github.com/pthm-cable/slime/gpu"
)

func init() {
	gpu.Register(gpu.BackendSoft, func(opts gpu.Options) (gpu.Device, error) {
		return New(opts), nil
	})
}

// Device executes kernels on the CPU.
//
// Device is not safe for concurrent use; like a GL context it belongs to
// the goroutine driving the frame. Work groups of a dispatch run on the
// worker pool and Dispatch returns once they are done, but writes are still
// treated as pending until Barrier so that a missing barrier is detected
// rather than masked (see SetStrict).
type Device struct {
	pool   *workerPool
	limit  int64
	used   int64
	strict bool
	dirty  []*resource
	closed bool
}

// New creates a software device.
func New(opts gpu.Options) *Device {
	return &Device{
		pool:   newWorkerPool(opts.Workers),
		limit:  opts.MemoryLimit,
		strict: true,
	}
}

// Name returns gpu.BackendSoft.
func (d *Device) Name() string { return gpu.BackendSoft }

// SetStrict enables or disables barrier hazard checks. Strict mode is on by
// default.
func (d *Device) SetStrict(strict bool) { d.strict = strict }

// MemoryUsed returns the bytes currently allocated to live resources.
func (d *Device) MemoryUsed() int64 { return d.used }

// Compile parses the GLSL interface of src and binds it to the program
// registered under src.Name.
func (d *Device) Compile(src gpu.Source) (gpu.Kernel, error) {
	h, err := parseHeader(src.Text)
	if err != nil {
		return nil, &gpu.CompileError{Kernel: src.Name, Stage: "compile", Log: err.Error()}
	}
	program, ok := lookupProgram(src.Name)
	if !ok {
		return nil, &gpu.CompileError{
			Kernel: src.Name,
			Stage:  "link",
			Log:    fmt.Sprintf("no program registered (have %v)", Programs()),
		}
	}
	return newKernel(d, src.Name, h, program), nil
}

// NewField allocates a size×size image.
func (d *Device) NewField(size int) (gpu.Field, error) {
	if size <= 0 {
		return nil, fmt.Errorf("new field: invalid size %d", size)
	}
	bytes := gpu.FieldBytes(size)
	if err := d.alloc(bytes); err != nil {
		return nil, fmt.Errorf("new field %dx%d: %w", size, size, err)
	}
	return &Image{
		resource: resource{dev: d, bytes: bytes},
		size:     size,
		Pix:      make([]float32, size*size*4),
	}, nil
}

// NewBuffer allocates a buffer and copies data into it.
func (d *Device) NewBuffer(stride int, data []float32) (gpu.Buffer, error) {
	if stride <= 0 || len(data)%stride != 0 {
		return nil, fmt.Errorf("new buffer: %d words is not a multiple of stride %d", len(data), stride)
	}
	bytes := int64(len(data)) * 4
	if err := d.alloc(bytes); err != nil {
		return nil, fmt.Errorf("new buffer of %d records: %w", len(data)/stride, err)
	}
	b := &Buffer{
		resource: resource{dev: d, bytes: bytes},
		stride:   stride,
		Data:     make([]float32, len(data)),
	}
	copy(b.Data, data)
	return b, nil
}

// Barrier makes pending writes visible.
func (d *Device) Barrier() {
	for _, r := range d.dirty {
		r.dirty = false
	}
	d.dirty = d.dirty[:0]
}

// Close stops the worker pool.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.pool.stop()
	return nil
}

func (d *Device) alloc(bytes int64) error {
	if d.limit > 0 && d.used+bytes > d.limit {
		return fmt.Errorf("%w: requested %d bytes, %d of %d in use", gpu.ErrOutOfMemory, bytes, d.used, d.limit)
	}
	d.used += bytes
	return nil
}

func (d *Device) free(bytes int64) {
	d.used -= bytes
}

func (d *Device) markDirty(r *resource) {
	if r.dirty {
		return
	}
	r.dirty = true
	d.dirty = append(d.dirty, r)
}
