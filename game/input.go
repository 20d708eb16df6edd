package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/slime/sim"
	"github.com/pthm-cable/slime/ui"
)

// Keyboard pan speed in screen pixels per frame.
const keyPanSpeed = 8

// pollInput reads the window and pointer state for this frame and handles
// key actions. The returned snapshot is consumed by SyncParameters.
func (g *Game) pollInput() sim.Input {
	in := sim.Input{ResetView: g.resetView}
	g.resetView = false

	if rl.IsWindowResized() {
		g.screenWidth = float32(rl.GetScreenWidth())
		g.screenHeight = float32(rl.GetScreenHeight())
		g.trail.Resize(g.screenWidth, g.screenHeight)
		g.perfPanel.SetPosition(10, int32(g.screenHeight)-160)
	}
	in.WindowWidth = int(g.screenWidth)
	in.WindowHeight = int(g.screenHeight)

	for _, action := range g.keys.Pressed() {
		g.handleAction(action)
	}

	mouse := rl.GetMousePosition()
	overPanel := g.settings.Contains(mouse.X, mouse.Y)

	// Drag with the left button, or the right button anywhere.
	if (rl.IsMouseButtonDown(rl.MouseButtonLeft) && !overPanel) || rl.IsMouseButtonDown(rl.MouseButtonRight) {
		d := rl.GetMouseDelta()
		in.DragX, in.DragY = d.X, d.Y
	}

	// Arrow keys pan the view the other way round: content moves against
	// the key, as if the camera moved.
	if rl.IsKeyDown(rl.KeyRight) {
		in.DragX -= keyPanSpeed
	}
	if rl.IsKeyDown(rl.KeyLeft) {
		in.DragX += keyPanSpeed
	}
	if rl.IsKeyDown(rl.KeyDown) {
		in.DragY -= keyPanSpeed
	}
	if rl.IsKeyDown(rl.KeyUp) {
		in.DragY += keyPanSpeed
	}

	if !overPanel {
		in.Scroll = rl.GetMouseWheelMove()
	}
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		in.Scroll += 2
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		in.Scroll -= 2
	}
	return in
}

// handleAction applies one key action.
func (g *Game) handleAction(action ui.Action) {
	params := g.engine.Params()
	switch action {
	case ui.ActionPause:
		g.paused = !g.paused
	case ui.ActionStepOnce:
		g.stepOnce = true
	case ui.ActionRestart:
		g.restartPending = true
	case ui.ActionSlower:
		g.stepsPerUpdate = max(g.stepsPerUpdate-1, minStepsPerUpdate)
	case ui.ActionFaster:
		g.stepsPerUpdate = min(g.stepsPerUpdate+1, maxStepsPerUpdate)
	case ui.ActionTogglePanel:
		g.settings.Toggle()
	case ui.ActionTogglePerf:
		g.showPerf = !g.showPerf
	case ui.ActionResetView:
		g.resetView = true
	case ui.ActionFullscreen:
		rl.ToggleFullscreen()
	case ui.ActionDrawSensors:
		live := params.Live()
		g.setBool(sim.ParamDrawSensors, !live.DrawSensors)
	case ui.ActionWrapEdges:
		live := params.Live()
		g.setBool(sim.ParamWrapEdges, !live.WrapEdges)
	case ui.ActionReloadShader:
		if err := g.reloadKernels(); err != nil {
			g.log.Error("kernel reload failed", "shader_dir", g.cfg.GPU.ShaderDir, "error", err)
		}
	}
}

func (g *Game) setBool(name string, v bool) {
	if err := g.engine.Params().SetBool(name, v); err != nil {
		g.log.Warn("parameter rejected", "param", name, "error", err)
	}
}
