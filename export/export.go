// Package export writes trail field snapshots to image files.
//
// A Writer is a sim.FrameSink. Frames are queued and encoded on a
// background goroutine; when the queue is full new frames are dropped so
// the simulation never waits on the disk.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/pthm-cable/slime/sim"
)

// Supported formats.
const (
	FormatPNG  = "png"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
)

// ErrUnknownFormat is returned for formats other than png, bmp and tiff.
var ErrUnknownFormat = errors.New("export: unknown image format")

// Options configures a Writer.
type Options struct {
	Dir    string
	Format string
	// Queue is the number of frames that may wait for encoding.
	Queue  int
	Logger *slog.Logger
}

// Writer encodes frames to Dir/frame_NNNNNN.<ext>.
type Writer struct {
	dir    string
	format string
	log    *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan sim.Frame
	done   chan struct{}

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// New creates the output directory and starts the encoder goroutine.
func New(opts Options) (*Writer, error) {
	format := opts.Format
	if format == "" {
		format = FormatPNG
	}
	if _, err := extension(format); err != nil {
		return nil, err
	}
	if opts.Dir == "" {
		return nil, errors.New("export: no output directory")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	queue := opts.Queue
	if queue < 1 {
		queue = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Writer{
		dir:    opts.Dir,
		format: format,
		log:    logger.With("component", "export"),
		queue:  make(chan sim.Frame, queue),
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Submit queues a frame. It never blocks; frames arriving while the queue
// is full, or after Close, are dropped.
func (w *Writer) Submit(f sim.Frame) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.dropped.Add(1)
		return
	}
	select {
	case w.queue <- f:
	default:
		w.dropped.Add(1)
		w.log.Debug("frame dropped, encoder busy", "frame", f.Step)
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for f := range w.queue {
		path, err := w.write(f)
		if err != nil {
			w.failed.Add(1)
			w.log.Warn("frame export failed", "frame", f.Step, "error", err)
			continue
		}
		w.written.Add(1)
		w.log.Debug("frame exported", "path", path)
	}
}

func (w *Writer) write(f sim.Frame) (string, error) {
	name, err := FileName(f.Step, w.format)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := Encode(out, ToImage(f), w.format); err != nil {
		out.Close()
		return "", err
	}
	return path, out.Close()
}

// Close stops accepting frames, drains the queue and waits for the encoder.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	<-w.done
	w.log.Info("export finished",
		"written", w.written.Load(),
		"dropped", w.dropped.Load(),
		"failed", w.failed.Load(),
	)
	return nil
}

// Written returns the number of frames written so far.
func (w *Writer) Written() int64 { return w.written.Load() }

// Dropped returns the number of frames dropped so far.
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

// FileName returns the file name for a frame.
func FileName(step uint64, format string) (string, error) {
	ext, err := extension(format)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("frame_%06d.%s", step, ext), nil
}

func extension(format string) (string, error) {
	switch format {
	case FormatPNG:
		return "png", nil
	case FormatBMP:
		return "bmp", nil
	case FormatTIFF:
		return "tif", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// ToImage converts a float frame to 8-bit RGB. Channel values are clamped
// to [0, 1]; the field's alpha channel is not exported.
func ToImage(f sim.Frame) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Size, f.Size))
	n := f.Size * f.Size
	if len(f.Pix) < n*4 {
		return img
	}
	for i := range n {
		img.Pix[i*4] = Channel8(f.Pix[i*4])
		img.Pix[i*4+1] = Channel8(f.Pix[i*4+1])
		img.Pix[i*4+2] = Channel8(f.Pix[i*4+2])
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// Channel8 converts a float channel to 8 bits, clamping to [0, 1] and
// rounding to the nearest level. NaN maps to 0.
func Channel8(v float32) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 1:
		return 0xff
	}
	return uint8(v*255 + 0.5)
}

// Encode writes img in the given format.
func Encode(w io.Writer, img image.Image, format string) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
