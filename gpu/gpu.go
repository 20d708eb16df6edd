// Package gpu defines the accelerator contract used by the simulation:
// compiled compute kernels, storage images and storage buffers.
//
// A Device hands out resources that live on the accelerator. Dispatch calls
// only enqueue work; results become visible to later dispatches and
// readbacks once Barrier has been called. Every uniform write names its
// target kernel explicitly, there is no "current program" state.
package gpu

// Source is the text of a compute kernel together with a stable name.
// Backends that execute GLSL compile Text; the software backend resolves
// Name to a registered program and reads the layout and uniform
// declarations from Text.
type Source struct {
	Name string
	Text string
}

// Device owns accelerator resources and the command stream.
type Device interface {
	// Name returns the backend name ("soft", "gl").
	Name() string

	// Compile compiles and links a compute kernel.
	// Failures are returned as *CompileError.
	Compile(src Source) (Kernel, error)

	// NewField allocates a size×size RGBA32F image. Contents are undefined
	// until Clear is called.
	NewField(size int) (Field, error)

	// NewBuffer allocates a storage buffer holding len(data)/stride records
	// of stride float32 words each and uploads data into it.
	NewBuffer(stride int, data []float32) (Buffer, error)

	// Barrier makes all writes from previously enqueued dispatches visible
	// to subsequent dispatches and readbacks.
	Barrier()

	// Close releases the device. Resources must be destroyed first.
	Close() error
}

// Kernel is a compiled compute program.
type Kernel interface {
	Name() string

	// LocalSize returns the work group size declared by the kernel.
	LocalSize() [3]int

	SetFloat(name string, v float32) error
	SetInt(name string, v int32) error
	SetBool(name string, v bool) error
	SetVec3(name string, x, y, z float32) error

	// BindImage attaches a field to an image binding point of this kernel.
	BindImage(slot int, f Field) error
	// BindBuffer attaches a storage buffer to a buffer binding point of this kernel.
	BindBuffer(slot int, b Buffer) error

	// Dispatch enqueues groupsX*groupsY*groupsZ work groups.
	Dispatch(groupsX, groupsY, groupsZ int) error

	Release()
}

// Field is a square four-channel float image.
type Field interface {
	Size() int

	// Clear sets every pixel to the zero vector.
	Clear() error

	// ReadPixels copies the image back to host memory as size*size*4
	// float32 values in RGBA order, row by row.
	ReadPixels() ([]float32, error)

	// BindSample binds the image as a read-only sampling source on the
	// given texture unit.
	BindSample(unit int)

	Destroy()
}

// Buffer is a storage buffer of fixed-stride records.
type Buffer interface {
	// Len returns the number of records.
	Len() int
	// Stride returns the number of float32 words per record.
	Stride() int
	// Read copies the buffer contents back to host memory.
	Read() ([]float32, error)

	Destroy()
}

// TextureField is implemented by fields backed by a sampleable GPU texture,
// so a renderer can draw them without a readback.
type TextureField interface {
	Field
	TextureID() uint32
}

// FieldBytes returns the storage size of a size×size RGBA32F image.
func FieldBytes(size int) int64 {
	return int64(size) * int64(size) * 4 * 4
}

// CeilGroups returns the number of work groups of the given size needed to
// cover n work items.
func CeilGroups(n, groupSize int) int {
	if groupSize <= 0 {
		return 0
	}
	return (n + groupSize - 1) / groupSize
}
