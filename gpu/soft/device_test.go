package soft

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/pthm-cable/slime/gpu"
)

const testSource = `#version 430 core
layout(local_size_x = 8, local_size_y = 2) in;
layout(rgba32f, binding = 0) uniform image2D img;
layout(std430, binding = 3) buffer Data { float values[]; };
uniform float gain; // scalar
/* uniform int commented; */
uniform int count;
uniform bool enabled;
uniform vec3 tint;
void main() {
    if (enabled) { values[0] = gain; }
}
`

// countingProgram records how many work groups it ran.
type countingProgram struct {
	groups atomic.Int64
}

func (p *countingProgram) Run(inv *Invocation, first, last int) {
	p.groups.Add(int64(last - first))
}

func newTestDevice(t *testing.T, opts gpu.Options) (*Device, *countingProgram) {
	t.Helper()
	prog := &countingProgram{}
	RegisterProgram("test", prog)
	d := New(opts)
	t.Cleanup(func() { d.Close() })
	return d, prog
}

func TestParseHeader(t *testing.T) {
	h, err := parseHeader(testSource)
	if err != nil {
		t.Fatalf("parseHeader: %v", err)
	}
	if h.version != 430 {
		t.Errorf("version = %d, want 430", h.version)
	}
	if h.local != [3]int{8, 2, 1} {
		t.Errorf("local = %v, want [8 2 1]", h.local)
	}
	want := map[string]uniformType{"gain": typeFloat, "count": typeInt, "enabled": typeBool, "tint": typeVec3}
	if len(h.uniforms) != len(want) {
		t.Errorf("uniforms = %v, want %v", h.uniforms, want)
	}
	for name, typ := range want {
		if h.uniforms[name] != typ {
			t.Errorf("uniform %s = %q, want %q", name, h.uniforms[name], typ)
		}
	}
	if h.images[0] != "img" {
		t.Errorf("images = %v", h.images)
	}
	if h.buffers[3] != "Data" {
		t.Errorf("buffers = %v", h.buffers)
	}
}

func TestParseHeaderRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no version", "layout(local_size_x = 1) in; void main() {}"},
		{"old version", "#version 330\nlayout(local_size_x = 1) in; void main() {}"},
		{"no main", "#version 430\nlayout(local_size_x = 1) in; void run() {}"},
		{"unbalanced", "#version 430\nlayout(local_size_x = 1) in; void main() {"},
		{"no local size", "#version 430\nvoid main() {}"},
		{"zero local size", "#version 430\nlayout(local_size_x = 0) in; void main() {}"},
		{"image without binding", "#version 430\nlayout(local_size_x = 1) in;\nlayout(rgba32f) uniform image2D img;\nvoid main() {}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseHeader(tt.src); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	d, _ := newTestDevice(t, gpu.Options{Workers: 1})

	_, err := d.Compile(gpu.Source{Name: "test", Text: "void main() {}"})
	var ce *gpu.CompileError
	if !errors.As(err, &ce) || ce.Stage != "compile" {
		t.Fatalf("err = %v, want compile-stage CompileError", err)
	}
	if !errors.Is(err, gpu.ErrCompile) {
		t.Error("CompileError should match ErrCompile")
	}

	_, err = d.Compile(gpu.Source{Name: "unregistered", Text: testSource})
	if !errors.As(err, &ce) || ce.Stage != "link" {
		t.Fatalf("err = %v, want link-stage CompileError", err)
	}
}

func TestUniformTypeChecking(t *testing.T) {
	d, _ := newTestDevice(t, gpu.Options{Workers: 1})
	k, err := d.Compile(gpu.Source{Name: "test", Text: testSource})
	if err != nil {
		t.Fatal(err)
	}
	sk := k.(*Kernel)

	if err := k.SetFloat("gain", 2); err != nil {
		t.Errorf("SetFloat: %v", err)
	}
	if err := k.SetInt("count", 3); err != nil {
		t.Errorf("SetInt: %v", err)
	}
	if err := k.SetBool("enabled", true); err != nil {
		t.Errorf("SetBool: %v", err)
	}
	if err := k.SetVec3("tint", 1, 2, 3); err != nil {
		t.Errorf("SetVec3: %v", err)
	}
	if err := k.SetFloat("count", 1); !errors.Is(err, gpu.ErrUnknownUniform) {
		t.Errorf("wrong type: err = %v, want ErrUnknownUniform", err)
	}
	if err := k.SetFloat("commented", 1); !errors.Is(err, gpu.ErrUnknownUniform) {
		t.Errorf("commented out: err = %v, want ErrUnknownUniform", err)
	}
	if got := sk.UniformWrites(); got != 4 {
		t.Errorf("UniformWrites = %d, want 4", got)
	}
}

func TestDispatchRequiresBindings(t *testing.T) {
	d, _ := newTestDevice(t, gpu.Options{Workers: 1})
	k, _ := d.Compile(gpu.Source{Name: "test", Text: testSource})

	if err := k.Dispatch(1, 1, 1); !errors.Is(err, gpu.ErrUnboundResource) {
		t.Fatalf("err = %v, want ErrUnboundResource", err)
	}
	if err := k.Dispatch(0, 1, 1); !errors.Is(err, gpu.ErrInvalidDispatch) {
		t.Fatalf("err = %v, want ErrInvalidDispatch", err)
	}

	f, _ := d.NewField(4)
	b, _ := d.NewBuffer(1, make([]float32, 4))
	if err := k.BindImage(1, f); err == nil {
		t.Error("binding an undeclared image slot should fail")
	}
	if err := k.BindImage(0, f); err != nil {
		t.Fatal(err)
	}
	if err := k.BindBuffer(3, b); err != nil {
		t.Fatal(err)
	}
	if err := k.Dispatch(1, 1, 1); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
}

func TestDispatchRunsAllGroups(t *testing.T) {
	d, prog := newTestDevice(t, gpu.Options{Workers: 3})
	k, _ := d.Compile(gpu.Source{Name: "test", Text: testSource})
	f, _ := d.NewField(4)
	b, _ := d.NewBuffer(1, make([]float32, 4))
	k.BindImage(0, f)
	k.BindBuffer(3, b)

	if err := k.Dispatch(5, 3, 2); err != nil {
		t.Fatal(err)
	}
	if got := prog.groups.Load(); got != 30 {
		t.Errorf("ran %d groups, want 30", got)
	}
	if got := k.(*Kernel).Dispatches(); got != 1 {
		t.Errorf("Dispatches = %d, want 1", got)
	}
}

func TestMissingBarrierDetected(t *testing.T) {
	d, _ := newTestDevice(t, gpu.Options{Workers: 1})
	k, _ := d.Compile(gpu.Source{Name: "test", Text: testSource})
	f, _ := d.NewField(4)
	b, _ := d.NewBuffer(1, make([]float32, 4))
	k.BindImage(0, f)
	k.BindBuffer(3, b)

	if err := k.Dispatch(1, 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := k.Dispatch(1, 1, 1); !errors.Is(err, gpu.ErrMissingBarrier) {
		t.Fatalf("second dispatch: err = %v, want ErrMissingBarrier", err)
	}
	if _, err := f.ReadPixels(); !errors.Is(err, gpu.ErrMissingBarrier) {
		t.Fatalf("readback: err = %v, want ErrMissingBarrier", err)
	}

	d.Barrier()
	if err := k.Dispatch(1, 1, 1); err != nil {
		t.Fatalf("after barrier: %v", err)
	}

	d.SetStrict(false)
	if err := k.Dispatch(1, 1, 1); err != nil {
		t.Fatalf("non-strict: %v", err)
	}
}

func TestMemoryLimit(t *testing.T) {
	limit := gpu.FieldBytes(8) + 64
	d, _ := newTestDevice(t, gpu.Options{Workers: 1, MemoryLimit: limit})

	f, err := d.NewField(8)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.NewField(8); !errors.Is(err, gpu.ErrOutOfMemory) {
		t.Fatalf("err = %v, want ErrOutOfMemory", err)
	}
	if _, err := d.NewBuffer(4, make([]float32, 32)); !errors.Is(err, gpu.ErrOutOfMemory) {
		t.Fatalf("buffer err = %v, want ErrOutOfMemory", err)
	}

	f.Destroy()
	if d.MemoryUsed() != 0 {
		t.Errorf("MemoryUsed = %d after destroy, want 0", d.MemoryUsed())
	}
	f.Destroy()
	if d.MemoryUsed() != 0 {
		t.Errorf("double destroy changed accounting: %d", d.MemoryUsed())
	}
	if _, err := d.NewField(8); err != nil {
		t.Fatalf("after free: %v", err)
	}
}

func TestFieldClearAndRead(t *testing.T) {
	d, _ := newTestDevice(t, gpu.Options{Workers: 1})
	f, _ := d.NewField(3)
	im := f.(*Image)
	im.Set(1, 2, [4]float32{1, 2, 3, 4})

	pix, err := f.ReadPixels()
	if err != nil {
		t.Fatal(err)
	}
	if len(pix) != 3*3*4 {
		t.Fatalf("len = %d, want 36", len(pix))
	}
	if pix[(2*3+1)*4+2] != 3 {
		t.Errorf("blue at (1,2) = %v, want 3", pix[(2*3+1)*4+2])
	}
	pix[0] = 99
	if im.Pix[0] == 99 {
		t.Error("ReadPixels returned shared storage")
	}

	if err := f.Clear(); err != nil {
		t.Fatal(err)
	}
	if im.At(1, 2) != [4]float32{} {
		t.Error("Clear left data behind")
	}

	f.Destroy()
	if _, err := f.ReadPixels(); !errors.Is(err, gpu.ErrReleased) {
		t.Errorf("read after destroy: err = %v, want ErrReleased", err)
	}
}

func TestNewBufferStride(t *testing.T) {
	d, _ := newTestDevice(t, gpu.Options{Workers: 1})
	if _, err := d.NewBuffer(4, make([]float32, 6)); err == nil {
		t.Error("expected stride error")
	}
	b, err := d.NewBuffer(4, []float32{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatal(err)
	}
	if b.Len() != 2 || b.Stride() != 4 {
		t.Errorf("Len/Stride = %d/%d, want 2/4", b.Len(), b.Stride())
	}
}

func TestReleasedKernel(t *testing.T) {
	d, _ := newTestDevice(t, gpu.Options{Workers: 1})
	k, _ := d.Compile(gpu.Source{Name: "test", Text: testSource})
	k.Release()
	if err := k.SetFloat("gain", 1); !errors.Is(err, gpu.ErrReleased) {
		t.Errorf("err = %v, want ErrReleased", err)
	}
	if err := k.Dispatch(1, 1, 1); !errors.Is(err, gpu.ErrReleased) {
		t.Errorf("err = %v, want ErrReleased", err)
	}
}

func TestOpenRegistered(t *testing.T) {
	dev, err := gpu.Open(gpu.BackendSoft, gpu.Options{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()
	if dev.Name() != gpu.BackendSoft {
		t.Errorf("Name = %q", dev.Name())
	}
	if _, err := gpu.Open("vulkan", gpu.Options{}); !errors.Is(err, gpu.ErrBackendNotAvailable) {
		t.Errorf("err = %v, want ErrBackendNotAvailable", err)
	}
}
