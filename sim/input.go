package sim

import (
	"math"

	"github.com/pthm-cable/slime/camera"
)

// zoomStep is the zoom factor per unit of scroll.
const zoomStep = 1.1

// Input is the per-frame snapshot of window and pointer state the engine
// reads. The driver fills it from its event source; the engine never
// polls the window itself.
type Input struct {
	WindowWidth, WindowHeight int
	// Scroll is the wheel delta this frame; positive zooms in.
	Scroll float32
	// DragX and DragY are the pointer movement in screen pixels while the
	// pan button is held.
	DragX, DragY float32
	ResetView    bool
}

// applyView updates the camera from one input snapshot.
func applyView(c *camera.Camera, in Input) {
	if in.WindowWidth > 0 && in.WindowHeight > 0 {
		c.Resize(float32(in.WindowWidth), float32(in.WindowHeight))
	}
	if in.ResetView {
		c.Reset()
		return
	}
	if in.DragX != 0 || in.DragY != 0 {
		// Dragging moves the content with the pointer.
		c.Pan(-in.DragX, -in.DragY)
	}
	if in.Scroll != 0 {
		c.ZoomBy(float32(math.Pow(zoomStep, float64(in.Scroll))))
	}
}
