package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/slime/sim"
)

// Update runs one windowed frame: input, parameter sync and the
// simulation steps for this frame. Draw follows.
func (g *Game) Update() {
	g.perfCollector.StartUpdate()
	defer g.perfCollector.EndUpdate()

	in := g.pollInput()
	if g.restartPending {
		g.restartPending = false
		g.restart()
	}
	g.advance(in)
}

// UpdateHeadless runs one update without a window.
func (g *Game) UpdateHeadless() {
	g.perfCollector.StartUpdate()
	defer g.perfCollector.EndUpdate()

	g.advance(sim.Input{})
}

// advance syncs parameters and runs stepsPerUpdate steps unless paused.
func (g *Game) advance(in sim.Input) {
	if err := g.engine.SyncParameters(in); err != nil {
		// Logged by the engine; a failed push is retried next frame.
		return
	}

	steps := g.stepsPerUpdate
	if g.paused {
		steps = 0
		if g.stepOnce {
			steps = 1
		}
	}
	g.stepOnce = false

	for range steps {
		if err := g.engine.Step(); err != nil {
			g.log.Error("step failed, pausing", "error", err)
			g.paused = true
			return
		}
		g.perfCollector.CountStep()
		g.flushTelemetry()
	}
}

// Draw renders the trail view and the UI.
func (g *Game) Draw() {
	g.perfCollector.RecordFrame()

	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)

	if err := g.engine.Render(); err != nil {
		g.log.Error("render failed", "error", err)
	}
	g.drawUI()

	rl.EndDrawing()
}

func (g *Game) drawUI() {
	if g.settings.Draw(g.engine.Params()) {
		g.restartPending = true
	}

	g.hud.Draw(g.hudData())
	if g.showPerf {
		g.perfPanel.Draw(g.perfCollector.Stats())
	}
	g.hud.DrawControls(int32(g.screenWidth), int32(g.screenHeight), g.keys.Legend())
}
