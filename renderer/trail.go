package renderer

import (
	_ "embed"
	"fmt"
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/slime/camera"
	"github.com/pthm-cable/slime/export"
	"github.com/pthm-cable/slime/gpu"
)

//go:embed shaders/trail.fs
var trailFS string

// TrailRenderer draws the trail field through the camera view.
// It implements sim.Presenter.
//
// Fields that expose a GL texture are sampled directly. Other fields are
// read back and uploaded into a texture owned by the renderer.
type TrailRenderer struct {
	shader    rl.Shader
	offsetLoc int32
	zoomLoc   int32
	aspectLoc int32

	// Upload texture for fields without a GL texture
	uploadTex rl.Texture2D
	texSize   int
	pixels    []color.RGBA

	screenW, screenH float32
	initialized      bool
}

// NewTrailRenderer creates a trail renderer for the given window size.
func NewTrailRenderer(screenW, screenH int32) *TrailRenderer {
	return &TrailRenderer{
		screenW: float32(screenW),
		screenH: float32(screenH),
	}
}

// Init loads the display shader (must be called after the raylib window is created).
func (r *TrailRenderer) Init() {
	if r.initialized {
		return
	}
	r.shader = rl.LoadShaderFromMemory("", trailFS)
	r.offsetLoc = rl.GetShaderLocation(r.shader, "offset")
	r.zoomLoc = rl.GetShaderLocation(r.shader, "zoom")
	r.aspectLoc = rl.GetShaderLocation(r.shader, "aspect")
	r.initialized = true
}

// Resize updates the window dimensions.
func (r *TrailRenderer) Resize(w, h float32) {
	r.screenW = w
	r.screenH = h
}

// Present draws field with the given view. Must be called between
// rl.BeginDrawing and rl.EndDrawing.
func (r *TrailRenderer) Present(field gpu.Field, view camera.View) error {
	if !r.initialized {
		r.Init()
	}

	tex, err := r.texture(field)
	if err != nil {
		return err
	}

	rl.SetShaderValue(r.shader, r.offsetLoc, []float32{view.OffsetX, view.OffsetY}, rl.ShaderUniformVec2)
	rl.SetShaderValue(r.shader, r.zoomLoc, []float32{view.Zoom}, rl.ShaderUniformFloat)
	rl.SetShaderValue(r.shader, r.aspectLoc, []float32{view.Aspect}, rl.ShaderUniformFloat)

	srcRect := rl.Rectangle{X: 0, Y: 0, Width: float32(tex.Width), Height: float32(tex.Height)}
	dstRect := rl.Rectangle{X: 0, Y: 0, Width: r.screenW, Height: r.screenH}

	rl.BeginShaderMode(r.shader)
	rl.DrawTexturePro(tex, srcRect, dstRect, rl.Vector2{}, 0, rl.White)
	rl.EndShaderMode()
	return nil
}

// texture returns a raylib texture showing the field's current contents.
func (r *TrailRenderer) texture(field gpu.Field) (rl.Texture2D, error) {
	size := field.Size()
	if tf, ok := field.(gpu.TextureField); ok {
		tex := rl.Texture2D{
			ID:      tf.TextureID(),
			Width:   int32(size),
			Height:  int32(size),
			Mipmaps: 1,
			Format:  rl.UncompressedR32g32b32a32,
		}
		rl.SetTextureWrap(tex, rl.WrapRepeat)
		return tex, nil
	}

	pix, err := field.ReadPixels()
	if err != nil {
		return rl.Texture2D{}, fmt.Errorf("reading trail field: %w", err)
	}
	r.ensureUploadTexture(size)
	FieldToRGBA(pix, r.pixels)
	rl.UpdateTexture(r.uploadTex, r.pixels)
	return r.uploadTex, nil
}

// ensureUploadTexture (re)creates the upload texture when the field size changes.
func (r *TrailRenderer) ensureUploadTexture(size int) {
	if r.texSize == size {
		return
	}
	if r.texSize != 0 {
		rl.UnloadTexture(r.uploadTex)
	}

	img := rl.GenImageColor(size, size, rl.Black)
	r.uploadTex = rl.LoadTextureFromImage(img)
	rl.SetTextureFilter(r.uploadTex, rl.FilterBilinear)
	rl.SetTextureWrap(r.uploadTex, rl.WrapRepeat)
	rl.UnloadImage(img)

	r.texSize = size
	r.pixels = make([]color.RGBA, size*size)
}

// FieldToRGBA converts RGBA float pixels to 8-bit colours with the same
// rounding as exported frames. The result is opaque. dst must hold len(pix)/4 entries.
func FieldToRGBA(pix []float32, dst []color.RGBA) {
	n := min(len(pix)/4, len(dst))
	for i := range n {
		dst[i] = color.RGBA{
			R: export.Channel8(pix[i*4]),
			G: export.Channel8(pix[i*4+1]),
			B: export.Channel8(pix[i*4+2]),
			A: 255,
		}
	}
}

// Unload frees GPU resources.
func (r *TrailRenderer) Unload() {
	if !r.initialized {
		return
	}
	rl.UnloadShader(r.shader)
	if r.texSize != 0 {
		rl.UnloadTexture(r.uploadTex)
		r.texSize = 0
	}
	r.initialized = false
}
