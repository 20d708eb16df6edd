//go:build opengl43

package gldev

import (
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/pthm-cable/slime/gpu"
)

// Kernel is a linked compute program. Uniform writes go straight to the
// program object, so no program needs to be current.
type Kernel struct {
	name     string
	program  uint32
	local    [3]int
	images   map[int]*Texture
	buffers  map[int]*Buffer
	uniforms map[string]int32
	released bool
}

// Name returns the kernel name.
func (k *Kernel) Name() string { return k.name }

// LocalSize returns the declared work group size.
func (k *Kernel) LocalSize() [3]int { return k.local }

func (k *Kernel) location(name string) (int32, error) {
	if k.released {
		return -1, gpu.ErrReleased
	}
	if loc, ok := k.uniforms[name]; ok {
		return loc, nil
	}
	loc := gl.GetUniformLocation(k.program, gl.Str(name+"\x00"))
	if loc < 0 {
		return -1, fmt.Errorf("%w: %s.%s", gpu.ErrUnknownUniform, k.name, name)
	}
	k.uniforms[name] = loc
	return loc, nil
}

func (k *Kernel) SetFloat(name string, v float32) error {
	loc, err := k.location(name)
	if err != nil {
		return err
	}
	gl.ProgramUniform1f(k.program, loc, v)
	return nil
}

func (k *Kernel) SetInt(name string, v int32) error {
	loc, err := k.location(name)
	if err != nil {
		return err
	}
	gl.ProgramUniform1i(k.program, loc, v)
	return nil
}

func (k *Kernel) SetBool(name string, v bool) error {
	loc, err := k.location(name)
	if err != nil {
		return err
	}
	var i int32
	if v {
		i = 1
	}
	gl.ProgramUniform1i(k.program, loc, i)
	return nil
}

func (k *Kernel) SetVec3(name string, x, y, z float32) error {
	loc, err := k.location(name)
	if err != nil {
		return err
	}
	gl.ProgramUniform3f(k.program, loc, x, y, z)
	return nil
}

// BindImage attaches a field to an image unit for this kernel's dispatches.
func (k *Kernel) BindImage(slot int, f gpu.Field) error {
	if k.released {
		return gpu.ErrReleased
	}
	tex, ok := f.(*Texture)
	if !ok {
		return fmt.Errorf("bind image: %T is not a gl field", f)
	}
	k.images[slot] = tex
	return nil
}

// BindBuffer attaches a storage buffer to a binding point for this
// kernel's dispatches.
func (k *Kernel) BindBuffer(slot int, b gpu.Buffer) error {
	if k.released {
		return gpu.ErrReleased
	}
	buf, ok := b.(*Buffer)
	if !ok {
		return fmt.Errorf("bind buffer: %T is not a gl buffer", b)
	}
	k.buffers[slot] = buf
	return nil
}

// Dispatch binds this kernel's resources and enqueues the work groups.
func (k *Kernel) Dispatch(groupsX, groupsY, groupsZ int) error {
	if k.released {
		return gpu.ErrReleased
	}
	if groupsX <= 0 || groupsY <= 0 || groupsZ <= 0 {
		return fmt.Errorf("%w: %dx%dx%d", gpu.ErrInvalidDispatch, groupsX, groupsY, groupsZ)
	}

	gl.UseProgram(k.program)
	for slot, tex := range k.images {
		if tex.destroyed {
			return fmt.Errorf("image %d: %w", slot, gpu.ErrReleased)
		}
		gl.BindImageTexture(uint32(slot), tex.id, 0, false, 0, gl.READ_WRITE, gl.RGBA32F)
	}
	for slot, buf := range k.buffers {
		if buf.destroyed {
			return fmt.Errorf("buffer %d: %w", slot, gpu.ErrReleased)
		}
		gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, uint32(slot), buf.id)
	}
	gl.DispatchCompute(uint32(groupsX), uint32(groupsY), uint32(groupsZ))
	gl.UseProgram(0)
	return nil
}

// Release deletes the program.
func (k *Kernel) Release() {
	if k.released {
		return
	}
	k.released = true
	gl.DeleteProgram(k.program)
}
