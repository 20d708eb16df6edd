package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/slime/ui"
)

func (g *Game) hudData() ui.HUDData {
	return ui.HUDData{
		Title:          "Physarum",
		Backend:        g.dev.Name(),
		Frame:          g.engine.Frame(),
		Steps:          g.engine.Steps(),
		FieldSize:      g.engine.FieldSize(),
		Agents:         g.engine.AgentCount(),
		StepsPerUpdate: g.stepsPerUpdate,
		FPS:            rl.GetFPS(),
		Zoom:           g.engine.Camera().Zoom / g.engine.Camera().FitZoom(),
		Paused:         g.paused,
		ScreenWidth:    int32(g.screenWidth),
		ScreenHeight:   int32(g.screenHeight),
	}
}
