package camera

import (
	"math"
	"testing"
)

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 0.01
}

func TestNew(t *testing.T) {
	cam := New(1280, 720, 512)

	// Should be centered on the field
	if cam.X != 256 || cam.Y != 256 {
		t.Errorf("expected camera at (256, 256), got (%f, %f)", cam.X, cam.Y)
	}
	// Field fills the viewport height
	if !near(cam.Zoom, 720.0/512) {
		t.Errorf("expected zoom %f, got %f", 720.0/512, cam.Zoom)
	}
}

func TestFieldToScreenCentered(t *testing.T) {
	cam := New(1280, 720, 512)

	sx, sy := cam.FieldToScreen(256, 256)
	if !near(sx, 640) || !near(sy, 360) {
		t.Errorf("expected screen center (640, 360), got (%f, %f)", sx, sy)
	}
}

func TestScreenToFieldRoundtrip(t *testing.T) {
	cam := New(1280, 720, 512)
	cam.SetZoom(3)

	testCases := []struct{ sx, sy float32 }{
		{640, 360},  // center
		{100, 100},  // top-left
		{1200, 600}, // near bottom-right
	}

	for _, tc := range testCases {
		fx, fy := cam.ScreenToField(tc.sx, tc.sy)
		sx, sy := cam.FieldToScreen(fx, fy)
		if !near(sx, tc.sx) || !near(sy, tc.sy) {
			t.Errorf("roundtrip failed: (%f,%f) -> (%f,%f) -> (%f,%f)",
				tc.sx, tc.sy, fx, fy, sx, sy)
		}
	}
}

func TestPanWraps(t *testing.T) {
	cam := New(1280, 720, 512)
	cam.SetZoom(1)
	cam.X = 10

	// Pan left should wrap to the right side of the field
	cam.Pan(-20, 0)

	if !near(cam.X, 502) {
		t.Errorf("expected X to wrap to 502, got %f", cam.X)
	}
}

func TestZoomClamp(t *testing.T) {
	cam := New(1024, 1024, 1024)

	if cam.MinZoom != 0.25 {
		t.Errorf("expected MinZoom 0.25, got %f", cam.MinZoom)
	}

	cam.SetZoom(0.01)
	if cam.Zoom != 0.25 {
		t.Errorf("expected zoom clamped to 0.25, got %f", cam.Zoom)
	}

	cam.SetZoom(1000)
	if cam.Zoom != cam.MaxZoom {
		t.Errorf("expected zoom clamped to %f, got %f", cam.MaxZoom, cam.Zoom)
	}
}

func TestViewTransform(t *testing.T) {
	cam := New(1600, 800, 400)
	v := cam.View()

	if v.OffsetX != 0.5 || v.OffsetY != 0.5 {
		t.Errorf("expected centered offsets, got (%f, %f)", v.OffsetX, v.OffsetY)
	}
	if !near(v.Zoom, 1) {
		t.Errorf("expected view zoom 1 at fit, got %f", v.Zoom)
	}
	if v.Aspect != 2 {
		t.Errorf("expected aspect 2, got %f", v.Aspect)
	}

	cam.ZoomBy(2)
	if v := cam.View(); !near(v.Zoom, 2) {
		t.Errorf("expected view zoom 2, got %f", v.Zoom)
	}
}

func TestViewMatchesScreenToField(t *testing.T) {
	cam := New(1280, 720, 256)
	cam.SetZoom(5)
	cam.Pan(300, -140)
	v := cam.View()

	// Shader mapping: uv = offset + ((tc - 0.5) * (aspect, 1)) / zoom
	sx, sy := float32(1000), float32(200)
	tcx, tcy := sx/cam.ViewportW, sy/cam.ViewportH
	u := v.OffsetX + (tcx-0.5)*v.Aspect/v.Zoom
	w := v.OffsetY + (tcy-0.5)/v.Zoom

	fx, fy := cam.ScreenToField(sx, sy)
	if !near(mod(u, 1)*256, fx) || !near(mod(w, 1)*256, fy) {
		t.Errorf("shader uv (%f, %f) disagrees with field (%f, %f)", u*256, w*256, fx, fy)
	}
}

func TestSetFieldSizeKeepsRelativeView(t *testing.T) {
	cam := New(800, 800, 512)
	cam.SetZoom(4)
	cam.X, cam.Y = 128, 384
	before := cam.View()

	cam.SetFieldSize(1024)
	after := cam.View()

	if !near(before.OffsetX, after.OffsetX) || !near(before.OffsetY, after.OffsetY) {
		t.Errorf("offsets moved: %+v -> %+v", before, after)
	}
	if !near(before.Zoom, after.Zoom) {
		t.Errorf("view zoom changed: %f -> %f", before.Zoom, after.Zoom)
	}
}

func TestResizeIgnoresDegenerate(t *testing.T) {
	cam := New(800, 600, 512)
	cam.Resize(0, 0)
	if cam.ViewportW != 800 || cam.ViewportH != 600 {
		t.Errorf("degenerate resize applied: %fx%f", cam.ViewportW, cam.ViewportH)
	}
	cam.Resize(1600, 1200)
	if cam.MinZoom != 1200.0/512/4 {
		t.Errorf("MinZoom not recomputed: %f", cam.MinZoom)
	}
}

func TestReset(t *testing.T) {
	cam := New(1280, 720, 512)
	cam.X = 50
	cam.Y = 60
	cam.SetZoom(8)

	cam.Reset()

	if cam.X != 256 || cam.Y != 256 {
		t.Errorf("expected position (256, 256), got (%f, %f)", cam.X, cam.Y)
	}
	if !near(cam.Zoom, cam.FitZoom()) {
		t.Errorf("expected fit zoom %f, got %f", cam.FitZoom(), cam.Zoom)
	}
}
