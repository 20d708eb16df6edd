package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/slime/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title          string
	Backend        string
	Frame          uint64
	Steps          uint64
	FieldSize      int
	Agents         int
	StepsPerUpdate int
	FPS            int32
	Zoom           float32
	Paused         bool
	ScreenWidth    int32
	ScreenHeight   int32
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{
		renderer: NewRenderer(),
	}
}

// Draw renders the HUD in the top right corner.
func (h *HUD) Draw(data HUDData) {
	lines := []string{
		data.Title,
		fmt.Sprintf("Field: %dx%d | Agents: %d | %s", data.FieldSize, data.FieldSize, data.Agents, data.Backend),
		fmt.Sprintf("Frame: %d | Step: %d | Speed: %dx | FPS: %d", data.Frame, data.Steps, data.StepsPerUpdate, data.FPS),
		fmt.Sprintf("Zoom: %.2fx", data.Zoom),
	}

	width := int32(0)
	for _, l := range lines[1:] {
		width = max(width, rl.MeasureText(l, 16))
	}
	x := data.ScreenWidth - width - 10

	rl.DrawText(lines[0], x, 10, 20, rl.White)
	y := int32(35)
	for _, l := range lines[1:] {
		rl.DrawText(l, x, y, 16, rl.LightGray)
		y += 20
	}
	if data.Paused {
		rl.DrawText("PAUSED", x, y, 16, rl.Yellow)
	}
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenWidth, screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// PerfPanel renders per-phase frame timings.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
	}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(stats telemetry.PerfStats) {
	x := p.x
	y := p.y

	rl.DrawText("Frame Timing", x, y, 16, rl.White)
	y += 20

	rl.DrawText(fmt.Sprintf("Update: %s (%.0f steps/s)", stats.AvgUpdate.Round(time.Microsecond), stats.StepsPerSecond), x, y, 14, rl.Yellow)
	y += 16

	for _, phase := range telemetry.Phases {
		avg, ok := stats.PhaseAvg[phase]
		if !ok {
			continue
		}
		pct := stats.PhasePct[phase]

		color := rl.LightGray
		if pct > 50 {
			color = rl.Red
		} else if pct > 25 {
			color = rl.Orange
		}

		rl.DrawText(
			fmt.Sprintf("%-8s %8s %5.1f%%", phase, avg.Round(time.Microsecond), pct),
			x, y, 12, color,
		)
		y += 14
	}
}
