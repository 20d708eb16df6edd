package export

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/pthm-cable/slime/sim"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func testFrame(step uint64) sim.Frame {
	// 2x2: red, over-range white, negative, half grey
	return sim.Frame{
		Step: step,
		Size: 2,
		Pix: []float32{
			1, 0, 0, 1, 2, 2, 2, 1,
			-1, 0, 0, 0, 0.5, 0.5, 0.5, 1,
		},
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		step   uint64
		format string
		want   string
	}{
		{0, FormatPNG, "frame_000000.png"},
		{42, FormatBMP, "frame_000042.bmp"},
		{1234567, FormatTIFF, "frame_1234567.tif"},
	}
	for _, tt := range tests {
		got, err := FileName(tt.step, tt.format)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("FileName(%d, %s) = %q, want %q", tt.step, tt.format, got, tt.want)
		}
	}
	if _, err := FileName(1, "gif"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestToImageClamps(t *testing.T) {
	img := ToImage(testFrame(0))

	tests := []struct {
		x, y       int
		r, g, b, a uint8
	}{
		{0, 0, 255, 0, 0, 255},
		{1, 0, 255, 255, 255, 255},
		{0, 1, 0, 0, 0, 255},
		{1, 1, 128, 128, 128, 255},
	}
	for _, tt := range tests {
		c := img.NRGBAAt(tt.x, tt.y)
		if c.R != tt.r || c.G != tt.g || c.B != tt.b || c.A != tt.a {
			t.Errorf("pixel (%d,%d) = %v, want (%d,%d,%d,%d)", tt.x, tt.y, c, tt.r, tt.g, tt.b, tt.a)
		}
	}
}

func TestToImageShortFrame(t *testing.T) {
	img := ToImage(sim.Frame{Size: 4, Pix: make([]float32, 8)})
	if img.Bounds().Dx() != 4 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	for _, v := range img.Pix {
		if v != 0 {
			t.Fatal("short frame should produce a blank image")
		}
	}
}

func TestEncodeFormats(t *testing.T) {
	img := ToImage(testFrame(0))
	decoders := map[string]func(*bytes.Buffer) (image.Image, error){
		FormatPNG:  func(b *bytes.Buffer) (image.Image, error) { return png.Decode(b) },
		FormatBMP:  func(b *bytes.Buffer) (image.Image, error) { return bmp.Decode(b) },
		FormatTIFF: func(b *bytes.Buffer) (image.Image, error) { return tiff.Decode(b) },
	}
	for format, decode := range decoders {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, img, format); err != nil {
				t.Fatal(err)
			}
			got, err := decode(&buf)
			if err != nil {
				t.Fatal(err)
			}
			r, g, b, _ := got.At(0, 0).RGBA()
			if r>>8 != 255 || g != 0 || b != 0 {
				t.Errorf("decoded (0,0) = %d,%d,%d, want red", r>>8, g>>8, b>>8)
			}
		})
	}
	if err := Encode(&bytes.Buffer{}, img, "jpeg"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestWriterWritesFrames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	w, err := New(Options{Dir: dir, Format: FormatPNG, Queue: 8, Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	for _, step := range []uint64{100, 200, 300} {
		w.Submit(testFrame(step))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	if w.Written()+w.Dropped() != 3 {
		t.Errorf("written %d + dropped %d != 3", w.Written(), w.Dropped())
	}
	if w.Written() != 3 {
		t.Errorf("queue of 8 should hold all frames, written = %d", w.Written())
	}
	for _, name := range []string{"frame_000100.png", "frame_000200.png", "frame_000300.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestWriterDropsAfterClose(t *testing.T) {
	w, err := New(Options{Dir: t.TempDir(), Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	w.Submit(testFrame(1))
	if w.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", w.Dropped())
	}
	// Second close is a no-op.
	if err := w.Close(); err != nil {
		t.Error(err)
	}
}

func TestWriterRejectsBadOptions(t *testing.T) {
	if _, err := New(Options{Dir: t.TempDir(), Format: "gif"}); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
	if _, err := New(Options{}); err == nil {
		t.Error("expected error for empty directory")
	}
}

func TestWriterImplementsFrameSink(t *testing.T) {
	var _ sim.FrameSink = (*Writer)(nil)
}

func TestChannel8(t *testing.T) {
	tests := []struct {
		in   float32
		want uint8
	}{
		{-1, 0},
		{0, 0},
		{float32(math.NaN()), 0},
		{0.25, 64},
		{0.5, 128},
		{1, 255},
		{7, 255},
		{float32(math.Inf(1)), 255},
	}
	for _, tt := range tests {
		if got := Channel8(tt.in); got != tt.want {
			t.Errorf("Channel8(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
