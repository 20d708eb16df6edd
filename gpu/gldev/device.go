//go:build opengl43

// Package gldev runs kernels as OpenGL 4.3 compute shaders. It needs a
// current GL context, so it only opens after the window is created and
// only on the goroutine locked to that context.
package gldev

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/pthm-cable/slime/gpu"
)

func init() {
	gpu.Register(gpu.BackendGL, func(opts gpu.Options) (gpu.Device, error) {
		return New(opts)
	})
}

// Device is an OpenGL compute device bound to the current context.
type Device struct {
	limit  int64
	used   int64
	closed bool
}

// New loads the GL entry points and checks the context version.
func New(opts gpu.Options) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gl init: %w", err)
	}
	version := gl.GetString(gl.VERSION)
	if version == nil {
		return nil, fmt.Errorf("gl: no current context")
	}
	var major, minor int32
	gl.GetIntegerv(gl.MAJOR_VERSION, &major)
	gl.GetIntegerv(gl.MINOR_VERSION, &minor)
	if major < 4 || (major == 4 && minor < 3) {
		return nil, fmt.Errorf("gl: compute shaders need 4.3, context is %s", gl.GoStr(version))
	}
	return &Device{limit: opts.MemoryLimit}, nil
}

// Name returns gpu.BackendGL.
func (d *Device) Name() string { return gpu.BackendGL }

// Compile compiles and links a compute program.
func (d *Device) Compile(src gpu.Source) (gpu.Kernel, error) {
	shader := gl.CreateShader(gl.COMPUTE_SHADER)
	csources, free := gl.Strs(src.Text + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		log := shaderLog(shader)
		gl.DeleteShader(shader)
		return nil, &gpu.CompileError{Kernel: src.Name, Stage: "compile", Log: log}
	}

	prog := gl.CreateProgram()
	gl.AttachShader(prog, shader)
	gl.LinkProgram(prog)
	gl.DeleteShader(shader)

	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		log := programLog(prog)
		gl.DeleteProgram(prog)
		return nil, &gpu.CompileError{Kernel: src.Name, Stage: "link", Log: log}
	}

	var local [3]int32
	gl.GetProgramiv(prog, gl.COMPUTE_WORK_GROUP_SIZE, &local[0])

	return &Kernel{
		name:     src.Name,
		program:  prog,
		local:    [3]int{int(local[0]), int(local[1]), int(local[2])},
		images:   make(map[int]*Texture),
		buffers:  make(map[int]*Buffer),
		uniforms: make(map[string]int32),
	}, nil
}

// NewField allocates a size×size RGBA32F texture.
func (d *Device) NewField(size int) (gpu.Field, error) {
	if size <= 0 {
		return nil, fmt.Errorf("new field: invalid size %d", size)
	}
	bytes := gpu.FieldBytes(size)
	if err := d.alloc(bytes); err != nil {
		return nil, fmt.Errorf("new field %dx%d: %w", size, size, err)
	}

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexStorage2D(gl.TEXTURE_2D, 1, gl.RGBA32F, int32(size), int32(size))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if err := checkAlloc(); err != nil {
		gl.DeleteTextures(1, &tex)
		d.free(bytes)
		return nil, fmt.Errorf("new field %dx%d: %w", size, size, err)
	}

	// Clear renders into the texture through its own framebuffer so no
	// host-side zero buffer is needed.
	fbo, err := attachFramebuffer(tex)
	if err != nil {
		gl.DeleteTextures(1, &tex)
		d.free(bytes)
		return nil, fmt.Errorf("new field %dx%d: %w", size, size, err)
	}
	return &Texture{dev: d, id: tex, fbo: fbo, size: size, bytes: bytes}, nil
}

func attachFramebuffer(tex uint32) (uint32, error) {
	var prev int32
	gl.GetIntegerv(gl.DRAW_FRAMEBUFFER_BINDING, &prev)
	defer gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, uint32(prev))

	var fbo uint32
	gl.GenFramebuffers(1, &fbo)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, fbo)
	gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, tex, 0)
	if status := gl.CheckFramebufferStatus(gl.DRAW_FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &fbo)
		return 0, fmt.Errorf("field framebuffer incomplete: 0x%x", status)
	}
	return fbo, nil
}

// NewBuffer allocates a shader storage buffer and uploads data.
func (d *Device) NewBuffer(stride int, data []float32) (gpu.Buffer, error) {
	if stride <= 0 || len(data) == 0 || len(data)%stride != 0 {
		return nil, fmt.Errorf("new buffer: %d words is not a whole number of %d-word records", len(data), stride)
	}
	bytes := int64(len(data)) * 4
	if err := d.alloc(bytes); err != nil {
		return nil, fmt.Errorf("new buffer: %w", err)
	}

	var buf uint32
	gl.GenBuffers(1, &buf)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, buf)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, int(bytes), gl.Ptr(data), gl.DYNAMIC_COPY)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
	if err := checkAlloc(); err != nil {
		gl.DeleteBuffers(1, &buf)
		d.free(bytes)
		return nil, fmt.Errorf("new buffer: %w", err)
	}
	return &Buffer{dev: d, id: buf, stride: stride, words: len(data), bytes: bytes}, nil
}

// Barrier orders all earlier shader writes before later reads.
func (d *Device) Barrier() {
	gl.MemoryBarrier(gl.SHADER_IMAGE_ACCESS_BARRIER_BIT |
		gl.SHADER_STORAGE_BARRIER_BIT |
		gl.TEXTURE_FETCH_BARRIER_BIT |
		gl.TEXTURE_UPDATE_BARRIER_BIT |
		gl.BUFFER_UPDATE_BARRIER_BIT)
}

// Close waits for outstanding work. The context belongs to the window.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	gl.Finish()
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

// checkAlloc drains the GL error queue after an allocation.
func checkAlloc() error {
	var first uint32
	for {
		e := gl.GetError()
		if e == gl.NO_ERROR {
			break
		}
		if first == 0 {
			first = e
		}
	}
	switch first {
	case 0:
		return nil
	case gl.OUT_OF_MEMORY:
		return gpu.ErrOutOfMemory
	}
	return fmt.Errorf("gl error 0x%x", first)
}

func shaderLog(shader uint32) string {
	var n int32
	gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &n)
	if n == 0 {
		return ""
	}
	log := strings.Repeat("\x00", int(n+1))
	gl.GetShaderInfoLog(shader, n, nil, gl.Str(log))
	return strings.TrimRight(log, "\x00")
}

func programLog(prog uint32) string {
	var n int32
	gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &n)
	if n == 0 {
		return ""
	}
	log := strings.Repeat("\x00", int(n+1))
	gl.GetProgramInfoLog(prog, n, nil, gl.Str(log))
	return strings.TrimRight(log, "\x00")
}
