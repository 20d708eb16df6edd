package soft

import (
	"fmt"

	"github.com/pthm-cable/slime/gpu"
)

// resource is the hazard and accounting state shared by images and buffers.
type resource struct {
	dev       *Device
	bytes     int64
	dirty     bool // written by a dispatch since the last barrier
	destroyed bool
}

func (r *resource) checkReadable() error {
	if r.destroyed {
		return gpu.ErrReleased
	}
	if r.dirty && r.dev.strict {
		return gpu.ErrMissingBarrier
	}
	return nil
}

func (r *resource) release() {
	if r.destroyed {
		return
	}
	r.destroyed = true
	r.dev.free(r.bytes)
}

// Image is a size×size RGBA float image in host memory.
type Image struct {
	resource
	size int
	// Pix holds size*size*4 values, row-major, RGBA per pixel.
	Pix []float32

	sampleUnit int
}

// Size returns the edge length in pixels.
func (im *Image) Size() int { return im.size }

// Clear zeroes every pixel.
func (im *Image) Clear() error {
	if im.destroyed {
		return gpu.ErrReleased
	}
	clear(im.Pix)
	im.dirty = false
	return nil
}

// ReadPixels returns a copy of the image.
func (im *Image) ReadPixels() ([]float32, error) {
	if err := im.checkReadable(); err != nil {
		return nil, fmt.Errorf("read pixels: %w", err)
	}
	out := make([]float32, len(im.Pix))
	copy(out, im.Pix)
	return out, nil
}

// BindSample records the sampling unit. Sampling on this backend is a
// readback, so binding has no further effect.
func (im *Image) BindSample(unit int) {
	im.sampleUnit = unit
}

// Destroy releases the image memory.
func (im *Image) Destroy() {
	im.release()
	im.Pix = nil
}

// At returns the pixel at (x, y) without bounds handling.
func (im *Image) At(x, y int) [4]float32 {
	i := (y*im.size + x) * 4
	return [4]float32{im.Pix[i], im.Pix[i+1], im.Pix[i+2], im.Pix[i+3]}
}

// Set stores the pixel at (x, y) without bounds handling.
func (im *Image) Set(x, y int, v [4]float32) {
	i := (y*im.size + x) * 4
	im.Pix[i], im.Pix[i+1], im.Pix[i+2], im.Pix[i+3] = v[0], v[1], v[2], v[3]
}

// Buffer is a storage buffer of fixed-stride float32 records.
type Buffer struct {
	resource
	stride int
	// Data holds Len()*Stride() words.
	Data []float32
}

// Len returns the number of records.
func (b *Buffer) Len() int {
	if b.stride == 0 {
		return 0
	}
	return len(b.Data) / b.stride
}

// Stride returns the number of words per record.
func (b *Buffer) Stride() int { return b.stride }

// Read returns a copy of the buffer contents.
func (b *Buffer) Read() ([]float32, error) {
	if err := b.checkReadable(); err != nil {
		return nil, fmt.Errorf("read buffer: %w", err)
	}
	out := make([]float32, len(b.Data))
	copy(out, b.Data)
	return out, nil
}

// Destroy releases the buffer memory.
func (b *Buffer) Destroy() {
	b.release()
	b.Data = nil
}
