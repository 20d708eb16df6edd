// Package camera provides the pan/zoom view onto the trail field.
package camera

import "math"

// Camera controls the viewport into the trail field.
// The field is a torus for viewing purposes: panning past an edge shows
// the opposite side.
type Camera struct {
	// Position is the camera center in field pixels
	X, Y float32

	// Zoom is screen pixels per field pixel
	Zoom float32

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// FieldSize is the edge length of the field in pixels
	FieldSize float32

	// Zoom constraints
	MinZoom, MaxZoom float32
}

// View is the transform consumed by the display shader. Offsets are the
// camera center in texture coordinates, Zoom is field heights per screen
// height and Aspect is viewport width over height.
type View struct {
	OffsetX, OffsetY float32
	Zoom             float32
	Aspect           float32
}

// New creates a camera centered on the field, zoomed so the field fills
// the viewport height.
func New(viewportW, viewportH, fieldSize float32) *Camera {
	c := &Camera{
		ViewportW: viewportW,
		ViewportH: viewportH,
		FieldSize: fieldSize,
	}
	c.updateLimits()
	c.Reset()
	return c
}

// FitZoom returns the zoom at which the field exactly fills the viewport height.
func (c *Camera) FitZoom() float32 {
	return c.ViewportH / c.FieldSize
}

func (c *Camera) updateLimits() {
	fit := c.FitZoom()
	c.MinZoom = fit / 4
	c.MaxZoom = max(fit*16, 64)
	c.Zoom = clamp(c.Zoom, c.MinZoom, c.MaxZoom)
}

// FieldToScreen converts field coordinates to screen coordinates,
// taking the shortest way around the torus.
func (c *Camera) FieldToScreen(fx, fy float32) (sx, sy float32) {
	dx := toroidalDelta(fx, c.X, c.FieldSize)
	dy := toroidalDelta(fy, c.Y, c.FieldSize)

	sx = c.ViewportW/2 + dx*c.Zoom
	sy = c.ViewportH/2 + dy*c.Zoom
	return sx, sy
}

// ScreenToField converts screen coordinates to field coordinates in
// [0, FieldSize).
func (c *Camera) ScreenToField(sx, sy float32) (fx, fy float32) {
	dx := (sx - c.ViewportW/2) / c.Zoom
	dy := (sy - c.ViewportH/2) / c.Zoom

	fx = mod(c.X+dx, c.FieldSize)
	fy = mod(c.Y+dy, c.FieldSize)
	return fx, fy
}

// Resize updates viewport dimensions and recalculates zoom constraints.
func (c *Camera) Resize(viewportW, viewportH float32) {
	if viewportW <= 0 || viewportH <= 0 {
		return
	}
	if viewportW == c.ViewportW && viewportH == c.ViewportH {
		return
	}
	c.ViewportW = viewportW
	c.ViewportH = viewportH
	c.updateLimits()
}

// SetFieldSize switches to a field of a different resolution, keeping the
// same relative position and apparent magnification.
func (c *Camera) SetFieldSize(size float32) {
	if size <= 0 || size == c.FieldSize {
		return
	}
	scale := size / c.FieldSize
	c.X *= scale
	c.Y *= scale
	c.Zoom /= scale
	c.FieldSize = size
	c.updateLimits()
}

// Pan moves the camera by the given delta in screen pixels.
// Automatically wraps around field boundaries.
func (c *Camera) Pan(dx, dy float32) {
	c.X = mod(c.X+dx/c.Zoom, c.FieldSize)
	c.Y = mod(c.Y+dy/c.Zoom, c.FieldSize)
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float32) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *Camera) ZoomBy(factor float32) {
	c.SetZoom(c.Zoom * factor)
}

// Reset centers the camera and fits the field to the viewport height.
func (c *Camera) Reset() {
	c.X = c.FieldSize / 2
	c.Y = c.FieldSize / 2
	c.SetZoom(c.FitZoom())
}

// View returns the display transform for the current camera state.
func (c *Camera) View() View {
	return View{
		OffsetX: c.X / c.FieldSize,
		OffsetY: c.Y / c.FieldSize,
		Zoom:    c.Zoom * c.FieldSize / c.ViewportH,
		Aspect:  c.ViewportW / c.ViewportH,
	}
}

// toroidalDelta computes the shortest signed distance from 'from' to 'to'
// in a toroidal space of the given size.
func toroidalDelta(to, from, size float32) float32 {
	d := to - from
	if d > size/2 {
		d -= size
	} else if d < -size/2 {
		d += size
	}
	return d
}

// mod computes the positive modulo (Go's % can return negative).
func mod(x, m float32) float32 {
	r := float32(math.Mod(float64(x), float64(m)))
	if r < 0 {
		r += m
	}
	return r
}

// clamp restricts a value to a range.
func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
