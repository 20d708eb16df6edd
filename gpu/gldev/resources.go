//go:build opengl43

package gldev

import (
	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/pthm-cable/slime/gpu"
)

// Texture is an RGBA32F field texture.
type Texture struct {
	dev       *Device
	id        uint32
	fbo       uint32
	size      int
	bytes     int64
	destroyed bool
}

// Size returns the edge length in pixels.
func (t *Texture) Size() int { return t.size }

// TextureID returns the GL texture name for direct sampling.
func (t *Texture) TextureID() uint32 { return t.id }

// Clear zeroes the texture on the GPU. The caller's framebuffer binding
// and scissor state are restored afterwards.
func (t *Texture) Clear() error {
	if t.destroyed {
		return gpu.ErrReleased
	}
	var prev int32
	gl.GetIntegerv(gl.DRAW_FRAMEBUFFER_BINDING, &prev)
	scissor := gl.IsEnabled(gl.SCISSOR_TEST)
	if scissor {
		gl.Disable(gl.SCISSOR_TEST)
	}

	zero := [4]float32{}
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, t.fbo)
	gl.ClearBufferfv(gl.COLOR, 0, &zero[0])

	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, uint32(prev))
	if scissor {
		gl.Enable(gl.SCISSOR_TEST)
	}
	return nil
}

// ReadPixels reads the texture back. The caller must have issued a
// Barrier after the last dispatch writing it.
func (t *Texture) ReadPixels() ([]float32, error) {
	if t.destroyed {
		return nil, gpu.ErrReleased
	}
	pix := make([]float32, t.size*t.size*4)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.GetTexImage(gl.TEXTURE_2D, 0, gl.RGBA, gl.FLOAT, gl.Ptr(pix))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return pix, nil
}

// BindSample binds the texture to a sampler unit.
func (t *Texture) BindSample(unit int) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, t.id)
}

// Destroy deletes the texture.
func (t *Texture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	gl.DeleteFramebuffers(1, &t.fbo)
	gl.DeleteTextures(1, &t.id)
	t.dev.free(t.bytes)
}

// Buffer is a shader storage buffer.
type Buffer struct {
	dev       *Device
	id        uint32
	stride    int
	words     int
	bytes     int64
	destroyed bool
}

// Len returns the number of records.
func (b *Buffer) Len() int { return b.words / b.stride }

// Stride returns the words per record.
func (b *Buffer) Stride() int { return b.stride }

// Read copies the buffer back to host memory.
func (b *Buffer) Read() ([]float32, error) {
	if b.destroyed {
		return nil, gpu.ErrReleased
	}
	out := make([]float32, b.words)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, b.id)
	gl.GetBufferSubData(gl.SHADER_STORAGE_BUFFER, 0, int(b.bytes), gl.Ptr(out))
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
	return out, nil
}

// Destroy deletes the buffer.
func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	gl.DeleteBuffers(1, &b.id)
	b.dev.free(b.bytes)
}
