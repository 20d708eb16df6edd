package game

import (
	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/sim"
)

// Options configures a Game at construction time.
type Options struct {
	Config *config.Config

	// Headless runs without a window. The GL backend needs a window, so
	// headless runs on the software device unless a backend is forced.
	Headless bool

	Seed           int64
	OutputDir      string // CSV telemetry and config snapshot
	ExportDir      string // frame images; overrides export.dir
	StepsPerUpdate int
	LogStats       bool
}

// SettingsFromConfig converts the sim section of the config to engine
// parameters.
func SettingsFromConfig(c config.SimConfig) sim.Settings {
	return sim.Settings{
		SensorDistance:        float32(c.SensorDistance),
		SensorAngle:           float32(c.SensorAngle),
		TurnSpeed:             float32(c.TurnSpeed),
		Speed:                 float32(c.Speed),
		DrawSensors:           c.DrawSensors,
		WrapEdges:             c.WrapEdges,
		MainAgentColour:       colour(c.MainAgentColour),
		AgentXDirectionColour: colour(c.AgentXDirectionColour),
		AgentYDirectionColour: colour(c.AgentYDirectionColour),
		SensorColour:          colour(c.SensorColour),
		Diffuse:               float32(c.Diffuse),
		Fade:                  float32(c.Fade),
		FieldSize:             c.FieldSize,
		AgentCount:            c.AgentCount,
	}
}

func colour(c [3]float64) sim.Colour {
	return sim.Colour{float32(c[0]), float32(c[1]), float32(c[2])}
}

// storeSettings copies live engine parameters back into the config so a
// snapshot written at shutdown reflects what was on screen.
func storeSettings(c *config.SimConfig, s sim.Settings) {
	c.SensorDistance = float64(s.SensorDistance)
	c.SensorAngle = float64(s.SensorAngle)
	c.TurnSpeed = float64(s.TurnSpeed)
	c.Speed = float64(s.Speed)
	c.DrawSensors = s.DrawSensors
	c.WrapEdges = s.WrapEdges
	c.MainAgentColour = unColour(s.MainAgentColour)
	c.AgentXDirectionColour = unColour(s.AgentXDirectionColour)
	c.AgentYDirectionColour = unColour(s.AgentYDirectionColour)
	c.SensorColour = unColour(s.SensorColour)
	c.Diffuse = float64(s.Diffuse)
	c.Fade = float64(s.Fade)
	c.FieldSize = s.FieldSize
	c.AgentCount = s.AgentCount
}

func unColour(c sim.Colour) [3]float64 {
	return [3]float64{float64(c[0]), float64(c[1]), float64(c[2])}
}
