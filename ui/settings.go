package ui

import (
	"fmt"
	"log/slog"
	"math"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/slime/sim"
)

// Control is one row of the settings panel.
type Control struct {
	Param string
	Label string
	Kind  sim.Kind
	Range FieldRange
	// Component is the colour channel edited by a KindColour row.
	Component int
	// Restart rows take effect at the next restart.
	Restart bool
}

// Slider ranges. Parameters without an entry use their validation bounds.
var sliderRanges = map[string]FieldRange{
	sim.ParamSensorDistance: {Min: 0, Max: 64},
	sim.ParamSensorAngle:    {Min: 0, Max: math.Pi},
	sim.ParamTurnSpeed:      {Min: 0, Max: math.Pi},
	sim.ParamSpeed:          {Min: 0, Max: 8},
	sim.ParamFade:           {Min: 0, Max: 0.2},
	sim.ParamFieldSize:      {Min: 64, Max: 4096},
	sim.ParamAgentCount:     {Min: 1000, Max: 4_000_000},
}

var labels = map[string]string{
	sim.ParamSensorDistance:        "Sensor dist",
	sim.ParamSensorAngle:           "Sensor angle",
	sim.ParamTurnSpeed:             "Turn speed",
	sim.ParamSpeed:                 "Speed",
	sim.ParamDrawSensors:           "Draw sensors",
	sim.ParamWrapEdges:             "Wrap edges",
	sim.ParamMainAgentColour:       "Main",
	sim.ParamAgentXDirectionColour: "X dir",
	sim.ParamAgentYDirectionColour: "Y dir",
	sim.ParamSensorColour:          "Sensor",
	sim.ParamDiffuse:               "Diffuse",
	sim.ParamFade:                  "Fade",
	sim.ParamFieldSize:             "Field size",
	sim.ParamAgentCount:            "Agents",
}

var channels = [3]string{"R", "G", "B"}

// SettingsControls returns the panel rows for every parameter in table
// order. Colours expand into one row per channel.
func SettingsControls() []Control {
	var out []Control
	for _, p := range sim.Parameters() {
		label := labels[p.Name]
		if label == "" {
			label = p.Name
		}
		rng, ok := sliderRanges[p.Name]
		if !ok {
			rng = FieldRange{Min: float32(p.Min), Max: float32(p.Max)}
		}
		c := Control{
			Param:   p.Name,
			Label:   label,
			Kind:    p.Kind,
			Range:   rng,
			Restart: p.Target == sim.TargetRestart,
		}
		if p.Kind == sim.KindColour {
			c.Range = DefaultRange()
			for i, ch := range channels {
				c.Component = i
				c.Label = label + " " + ch
				out = append(out, c)
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// Value returns the row's current value as a slider position.
// Booleans are 0 or 1.
func (c Control) Value(s *sim.Settings) float32 {
	for _, p := range sim.Parameters() {
		if p.Name != c.Param {
			continue
		}
		switch v := p.Value(s).(type) {
		case float32:
			return v
		case bool:
			if v {
				return 1
			}
			return 0
		case sim.Colour:
			return v[c.Component]
		case int:
			return float32(v)
		}
	}
	return 0
}

// Apply writes v to the parameter store.
func (c Control) Apply(params *sim.Params, v float32) error {
	switch c.Kind {
	case sim.KindFloat:
		return params.SetFloat(c.Param, v)
	case sim.KindBool:
		return params.SetBool(c.Param, v >= 0.5)
	case sim.KindColour:
		live := params.Live()
		col, _ := c.colour(&live)
		col[c.Component] = v
		return params.SetColour(c.Param, col)
	case sim.KindInt:
		return params.SetInt(c.Param, int(math.Round(float64(v))))
	}
	return fmt.Errorf("ui: unsupported parameter kind %s", c.Kind)
}

func (c *Control) colour(s *sim.Settings) (sim.Colour, bool) {
	for _, p := range sim.Parameters() {
		if p.Name == c.Param {
			col, ok := p.Value(s).(sim.Colour)
			return col, ok
		}
	}
	return sim.Colour{}, false
}

// SettingsPanel renders parameter sliders with a restart button.
type SettingsPanel struct {
	renderer *Renderer
	controls []Control
	x, y     int32
	width    int32
	visible  bool
	log      *slog.Logger
}

// NewSettingsPanel creates a settings panel.
func NewSettingsPanel(x, y, width int32, logger *slog.Logger) *SettingsPanel {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsPanel{
		renderer: NewRenderer(),
		controls: SettingsControls(),
		x:        x,
		y:        y,
		width:    width,
		visible:  true,
		log:      logger.With("component", "ui"),
	}
}

// SetVisible shows or hides the panel.
func (sp *SettingsPanel) SetVisible(visible bool) {
	sp.visible = visible
}

// IsVisible returns whether the panel is shown.
func (sp *SettingsPanel) IsVisible() bool {
	return sp.visible
}

// Toggle switches panel visibility.
func (sp *SettingsPanel) Toggle() bool {
	sp.visible = !sp.visible
	return sp.visible
}

// Contains reports whether a screen point lies on the visible panel, so
// pointer input there is not treated as a pan.
func (sp *SettingsPanel) Contains(x, y float32) bool {
	if !sp.visible {
		return false
	}
	return x >= float32(sp.x) && x < float32(sp.x+sp.width) &&
		y >= float32(sp.y) && y < float32(sp.y+sp.height())
}

func (sp *SettingsPanel) height() int32 {
	t := sp.renderer.Theme
	return int32(len(sp.controls))*t.RowHeight + t.LineHeight*3 + t.RowHeight + t.Padding*3
}

// Draw renders the panel and applies edits to params. It reports whether
// the restart button was pressed.
func (sp *SettingsPanel) Draw(params *sim.Params) (restart bool) {
	if !sp.visible {
		return false
	}

	r := sp.renderer
	t := r.Theme
	padding := t.Padding
	r.DrawPanel(sp.x, sp.y, sp.width, sp.height())

	y := sp.y + padding
	y = r.DrawSectionHeader(sp.x+padding, y, "Settings")

	live := params.Live()
	pending := params.RestartPending()
	sliderX := float32(sp.x + padding + t.LabelWidth)
	sliderW := float32(sp.width - padding*2 - t.LabelWidth - 56)

	for _, c := range sp.controls {
		labelColor := t.LabelColor
		if c.Restart && pending {
			labelColor = t.PendingColor
		}
		rl.DrawText(c.Label, sp.x+padding, y+4, t.FontSize, labelColor)

		v := c.Value(&live)
		bounds := rl.Rectangle{X: sliderX, Y: float32(y), Width: sliderW, Height: float32(t.RowHeight - 6)}

		// Values set outside the slider range (config, keys) are shown at
		// the end stop and left alone unless the slider moves.
		shown := c.Range.Clamp(v)
		var next float32
		switch c.Kind {
		case sim.KindBool:
			box := rl.Rectangle{X: sliderX, Y: float32(y), Width: 16, Height: 16}
			if gui.CheckBox(box, "", v >= 0.5) {
				next = 1
			}
			shown = v
		default:
			next = gui.SliderBar(bounds, "", "", shown, c.Range.Min, c.Range.Max)
			rl.DrawText(formatValue(c, v), int32(sliderX+sliderW)+6, y+4, t.FontSize, t.ValueColor)
		}
		if c.Kind == sim.KindColour && c.Component == 0 {
			col, _ := c.colour(&live)
			r.DrawColorSwatch(sp.x+padding+t.LabelWidth-18, y+2, SwatchColor(col))
		}

		if next != shown {
			if err := c.Apply(params, next); err != nil {
				sp.log.Warn("parameter rejected", "param", c.Param, "value", next, "error", err)
			}
		}
		y += t.RowHeight
	}

	y += padding
	label := "Restart"
	if pending {
		label = "Restart *"
	}
	restart = gui.Button(rl.Rectangle{X: float32(sp.x + padding), Y: float32(y), Width: 120, Height: float32(t.RowHeight)}, label)
	if pending {
		rl.DrawText("size change pending", sp.x+padding+130, y+5, t.FontSize, t.PendingColor)
	}
	return restart
}

func formatValue(c Control, v float32) string {
	switch c.Kind {
	case sim.KindInt:
		return fmt.Sprintf("%d", int(math.Round(float64(v))))
	case sim.KindColour:
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.3f", v)
}
