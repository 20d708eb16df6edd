package soft

import (
	"fmt"

	"github.com/pthm-cable/slime/gpu"
)

type uniformValue struct {
	typ uniformType
	f   [3]float32
	i   int32
	b   bool
}

// Kernel is a compiled software kernel.
type Kernel struct {
	dev     *Device
	name    string
	header  *header
	program Program

	uniforms map[string]*uniformValue
	images   map[int]*Image
	buffers  map[int]*Buffer
	scratch  map[string][]float32
	retained any

	released      bool
	uniformWrites int
	dispatches    int
}

func newKernel(dev *Device, name string, h *header, program Program) *Kernel {
	k := &Kernel{
		dev:      dev,
		name:     name,
		header:   h,
		program:  program,
		uniforms: make(map[string]*uniformValue, len(h.uniforms)),
		images:   make(map[int]*Image),
		buffers:  make(map[int]*Buffer),
		scratch:  make(map[string][]float32),
	}
	for name, typ := range h.uniforms {
		k.uniforms[name] = &uniformValue{typ: typ}
	}
	return k
}

// Name returns the kernel name.
func (k *Kernel) Name() string { return k.name }

// LocalSize returns the declared work group size.
func (k *Kernel) LocalSize() [3]int { return k.header.local }

// UniformWrites returns how many uniform updates the kernel has received.
func (k *Kernel) UniformWrites() int { return k.uniformWrites }

// Dispatches returns how many dispatches the kernel has executed.
func (k *Kernel) Dispatches() int { return k.dispatches }

func (k *Kernel) uniform(name string, typ uniformType) (*uniformValue, error) {
	if k.released {
		return nil, gpu.ErrReleased
	}
	u, ok := k.uniforms[name]
	if !ok || u.typ != typ {
		return nil, fmt.Errorf("%w: %s %s in kernel %q", gpu.ErrUnknownUniform, typ, name, k.name)
	}
	k.uniformWrites++
	return u, nil
}

// SetFloat sets a float uniform.
func (k *Kernel) SetFloat(name string, v float32) error {
	u, err := k.uniform(name, typeFloat)
	if err != nil {
		return err
	}
	u.f[0] = v
	return nil
}

// SetInt sets an int uniform.
func (k *Kernel) SetInt(name string, v int32) error {
	u, err := k.uniform(name, typeInt)
	if err != nil {
		return err
	}
	u.i = v
	return nil
}

// SetBool sets a bool uniform.
func (k *Kernel) SetBool(name string, v bool) error {
	u, err := k.uniform(name, typeBool)
	if err != nil {
		return err
	}
	u.b = v
	return nil
}

// SetVec3 sets a vec3 uniform.
func (k *Kernel) SetVec3(name string, x, y, z float32) error {
	u, err := k.uniform(name, typeVec3)
	if err != nil {
		return err
	}
	u.f = [3]float32{x, y, z}
	return nil
}

// BindImage attaches an image from this device to a declared image binding.
func (k *Kernel) BindImage(slot int, f gpu.Field) error {
	if k.released {
		return gpu.ErrReleased
	}
	im, ok := f.(*Image)
	if !ok || im.dev != k.dev {
		return fmt.Errorf("bind image %d of kernel %q: field not created by this device", slot, k.name)
	}
	if _, declared := k.header.images[slot]; !declared {
		return fmt.Errorf("bind image %d of kernel %q: no image declared at that binding", slot, k.name)
	}
	k.images[slot] = im
	return nil
}

// BindBuffer attaches a buffer from this device to a declared buffer binding.
func (k *Kernel) BindBuffer(slot int, b gpu.Buffer) error {
	if k.released {
		return gpu.ErrReleased
	}
	buf, ok := b.(*Buffer)
	if !ok || buf.dev != k.dev {
		return fmt.Errorf("bind buffer %d of kernel %q: buffer not created by this device", slot, k.name)
	}
	if _, declared := k.header.buffers[slot]; !declared {
		return fmt.Errorf("bind buffer %d of kernel %q: no buffer block declared at that binding", slot, k.name)
	}
	k.buffers[slot] = buf
	return nil
}

// Dispatch runs the program over the requested work groups.
func (k *Kernel) Dispatch(groupsX, groupsY, groupsZ int) error {
	if k.released {
		return gpu.ErrReleased
	}
	if groupsX <= 0 || groupsY <= 0 || groupsZ <= 0 {
		return fmt.Errorf("%w: %dx%dx%d", gpu.ErrInvalidDispatch, groupsX, groupsY, groupsZ)
	}

	for slot, name := range k.header.images {
		im := k.images[slot]
		if im == nil || im.destroyed {
			return fmt.Errorf("dispatch %q: image %q (binding %d): %w", k.name, name, slot, gpu.ErrUnboundResource)
		}
		if err := im.checkReadable(); err != nil {
			return fmt.Errorf("dispatch %q: image %q: %w", k.name, name, err)
		}
	}
	for slot, name := range k.header.buffers {
		buf := k.buffers[slot]
		if buf == nil || buf.destroyed {
			return fmt.Errorf("dispatch %q: buffer %q (binding %d): %w", k.name, name, slot, gpu.ErrUnboundResource)
		}
		if err := buf.checkReadable(); err != nil {
			return fmt.Errorf("dispatch %q: buffer %q: %w", k.name, name, err)
		}
	}

	inv := &Invocation{
		kernel:  k,
		program: k.program,
		Groups:  [3]int{groupsX, groupsY, groupsZ},
		Local:   k.header.local,
	}

	if p, ok := k.program.(Preparer); ok {
		p.Prepare(inv)
	}
	k.dev.pool.run(inv, groupsX*groupsY*groupsZ)
	if r, ok := k.program.(Resolver); ok {
		r.Resolve(inv)
	}

	for _, im := range k.images {
		k.dev.markDirty(&im.resource)
	}
	for _, buf := range k.buffers {
		k.dev.markDirty(&buf.resource)
	}
	k.dispatches++
	return nil
}

// Release drops the kernel's bindings and scratch memory.
func (k *Kernel) Release() {
	k.released = true
	clear(k.images)
	clear(k.buffers)
	clear(k.scratch)
	k.retained = nil
}

// Invocation gives a program access to the state of one dispatch.
type Invocation struct {
	kernel  *Kernel
	program Program

	// Groups is the number of work groups per axis.
	Groups [3]int
	// Local is the work group size per axis.
	Local [3]int

	// State carries data from Prepare to Run and Resolve.
	State any
}

// Float returns a float uniform (zero if never set).
func (inv *Invocation) Float(name string) float32 {
	if u := inv.kernel.uniforms[name]; u != nil {
		return u.f[0]
	}
	return 0
}

// Int returns an int uniform.
func (inv *Invocation) Int(name string) int32 {
	if u := inv.kernel.uniforms[name]; u != nil {
		return u.i
	}
	return 0
}

// Bool returns a bool uniform.
func (inv *Invocation) Bool(name string) bool {
	if u := inv.kernel.uniforms[name]; u != nil {
		return u.b
	}
	return false
}

// Vec3 returns a vec3 uniform.
func (inv *Invocation) Vec3(name string) [3]float32 {
	if u := inv.kernel.uniforms[name]; u != nil {
		return u.f
	}
	return [3]float32{}
}

// Image returns the image bound at slot.
func (inv *Invocation) Image(slot int) *Image { return inv.kernel.images[slot] }

// Buffer returns the buffer bound at slot.
func (inv *Invocation) Buffer(slot int) *Buffer { return inv.kernel.buffers[slot] }

// Scratch returns a kernel-owned slice of at least n words that persists
// across dispatches. Only call it from Prepare or Resolve.
func (inv *Invocation) Scratch(key string, n int) []float32 {
	s := inv.kernel.scratch[key]
	if cap(s) < n {
		s = make([]float32, n)
	}
	s = s[:n]
	inv.kernel.scratch[key] = s
	return s
}

// Retained returns the value stored with Retain on an earlier dispatch of
// the same kernel, or nil.
func (inv *Invocation) Retained() any { return inv.kernel.retained }

// Retain keeps v with the kernel for later dispatches. Only call it from
// Prepare or Resolve.
func (inv *Invocation) Retain(v any) { inv.kernel.retained = v }

// Group converts a linear work group index into per-axis coordinates.
func (inv *Invocation) Group(i int) (x, y, z int) {
	x = i % inv.Groups[0]
	i /= inv.Groups[0]
	y = i % inv.Groups[1]
	z = i / inv.Groups[1]
	return x, y, z
}
