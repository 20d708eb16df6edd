//go:build opengl43

package gldev

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"testing"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/pthm-cable/slime/gpu"
)

// GL calls must run on the thread owning the context. TestMain keeps that
// thread and runs the functions sent on mainfunc.
var (
	mainfunc  = make(chan func())
	glMissing string
)

func init() {
	runtime.LockOSThread()
}

func TestMain(m *testing.M) {
	rl.SetConfigFlags(rl.FlagWindowHidden)
	rl.InitWindow(64, 64, "gldev test")
	if !rl.IsWindowReady() {
		glMissing = "no GL context available"
	}

	done := make(chan int)
	go func() { done <- m.Run() }()
	for {
		select {
		case f := <-mainfunc:
			f()
		case code := <-done:
			if rl.IsWindowReady() {
				rl.CloseWindow()
			}
			os.Exit(code)
		}
	}
}

// onContext runs f on the GL thread and fails the test with its error.
// f must not call t.Fatal or t.Skip.
func onContext(t *testing.T, f func() error) {
	t.Helper()
	if glMissing != "" {
		t.Skip(glMissing)
	}
	errc := make(chan error, 1)
	mainfunc <- func() { errc <- f() }
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
}

func openDevice(t *testing.T, limit int64) *Device {
	t.Helper()
	if glMissing != "" {
		t.Skip(glMissing)
	}
	var dev *Device
	errc := make(chan error, 1)
	mainfunc <- func() {
		var err error
		dev, err = New(gpu.Options{MemoryLimit: limit})
		errc <- err
	}
	if err := <-errc; err != nil {
		t.Skipf("gl device: %v", err)
	}
	t.Cleanup(func() {
		done := make(chan struct{})
		mainfunc <- func() { dev.Close(); close(done) }
		<-done
	})
	return dev
}

func TestTextureClearOnGPU(t *testing.T) {
	dev := openDevice(t, 0)
	onContext(t, func() error {
		const size = 8
		f, err := dev.NewField(size)
		if err != nil {
			return err
		}
		defer f.Destroy()
		tex := f.(*Texture)

		ones := make([]float32, size*size*4)
		for i := range ones {
			ones[i] = 1
		}
		gl.BindTexture(gl.TEXTURE_2D, tex.id)
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, size, size, gl.RGBA, gl.FLOAT, gl.Ptr(ones))
		gl.BindTexture(gl.TEXTURE_2D, 0)

		var before int32
		gl.GetIntegerv(gl.DRAW_FRAMEBUFFER_BINDING, &before)
		gl.Enable(gl.SCISSOR_TEST)
		gl.Scissor(0, 0, 1, 1)
		defer gl.Disable(gl.SCISSOR_TEST)

		if err := f.Clear(); err != nil {
			return err
		}

		var after int32
		gl.GetIntegerv(gl.DRAW_FRAMEBUFFER_BINDING, &after)
		if after != before {
			t.Errorf("framebuffer binding changed: %d -> %d", before, after)
		}
		if !gl.IsEnabled(gl.SCISSOR_TEST) {
			t.Error("scissor test not restored")
		}

		dev.Barrier()
		pix, err := f.ReadPixels()
		if err != nil {
			return err
		}
		for i, v := range pix {
			if v != 0 {
				return fmt.Errorf("word %d = %v after clear, want 0", i, v)
			}
		}
		return nil
	})
}

func TestNewFieldRespectsMemoryLimit(t *testing.T) {
	dev := openDevice(t, gpu.FieldBytes(16))
	onContext(t, func() error {
		f, err := dev.NewField(16)
		if err != nil {
			return err
		}
		if _, err := dev.NewField(4); !errors.Is(err, gpu.ErrOutOfMemory) {
			t.Errorf("err = %v, want ErrOutOfMemory", err)
		}
		f.Destroy()
		g, err := dev.NewField(4)
		if err != nil {
			return fmt.Errorf("field after free: %w", err)
		}
		g.Destroy()
		return nil
	})
}

func TestDestroyedTextureRejectsUse(t *testing.T) {
	dev := openDevice(t, 0)
	onContext(t, func() error {
		f, err := dev.NewField(4)
		if err != nil {
			return err
		}
		f.Destroy()
		if err := f.Clear(); !errors.Is(err, gpu.ErrReleased) {
			t.Errorf("Clear after Destroy: %v", err)
		}
		return nil
	})
}
