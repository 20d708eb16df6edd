package main

import (
	"math"

	"github.com/pthm-cable/slime/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
// Colours and sizes are not searched; they do not change the pattern.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Agent sensing and motion
			{Name: "sensor_distance", Path: "sim.sensor_distance", Min: 1, Max: 40, Default: 9},
			{Name: "sensor_angle", Path: "sim.sensor_angle", Min: 0.05, Max: math.Pi / 2, Default: 0.4},
			{Name: "turn_speed", Path: "sim.turn_speed", Min: 0.01, Max: 1.5, Default: 0.3},
			{Name: "speed", Path: "sim.speed", Min: 0.2, Max: 4, Default: 1},
			// Trail decay
			{Name: "diffuse", Path: "sim.diffuse", Min: 0, Max: 1, Default: 0.5},
			{Name: "fade", Path: "sim.fade", Min: 0.001, Max: 0.2, Default: 0.02},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies clamped parameter values to the sim section.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)
	cfg.Sim.SensorDistance = c[0]
	cfg.Sim.SensorAngle = c[1]
	cfg.Sim.TurnSpeed = c[2]
	cfg.Sim.Speed = c[3]
	cfg.Sim.Diffuse = c[4]
	cfg.Sim.Fade = c[5]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Sim.SensorDistance,
		cfg.Sim.SensorAngle,
		cfg.Sim.TurnSpeed,
		cfg.Sim.Speed,
		cfg.Sim.Diffuse,
		cfg.Sim.Fade,
	}
}
