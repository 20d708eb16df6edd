// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Sim       SimConfig       `yaml:"sim"`
	GPU       GPUConfig       `yaml:"gpu"`
	Export    ExportConfig    `yaml:"export"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	UI        UIConfig        `yaml:"ui"`
	Seed      int64           `yaml:"seed"` // 0 = seed from the clock

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// SimConfig holds the initial simulation parameters. All of them except
// field_size and agent_count can be changed while running.
type SimConfig struct {
	SensorDistance        float64    `yaml:"sensor_distance"`
	SensorAngle           float64    `yaml:"sensor_angle"`  // radians
	TurnSpeed             float64    `yaml:"turn_speed"`    // radians per step
	Speed                 float64    `yaml:"speed"`         // field pixels per step
	DrawSensors           bool       `yaml:"draw_sensors"`
	WrapEdges             bool       `yaml:"wrap_edges"`
	MainAgentColour       [3]float64 `yaml:"main_agent_colour"`
	AgentXDirectionColour [3]float64 `yaml:"agent_x_direction_colour"`
	AgentYDirectionColour [3]float64 `yaml:"agent_y_direction_colour"`
	SensorColour          [3]float64 `yaml:"sensor_colour"`
	Diffuse               float64    `yaml:"diffuse"` // blur blend factor, 0..1
	Fade                  float64    `yaml:"fade"`    // fraction removed per step, 0..1
	FieldSize             int        `yaml:"field_size"`
	AgentCount            int        `yaml:"agent_count"`
	StepsPerUpdate        int        `yaml:"steps_per_update"`
}

// GPUConfig holds device selection parameters.
type GPUConfig struct {
	Backend     string `yaml:"backend"`      // auto, gl or soft
	MemoryLimit int64  `yaml:"memory_limit"` // bytes, 0 = unlimited
	Workers     int    `yaml:"workers"`      // soft backend, 0 = GOMAXPROCS
	ShaderDir   string `yaml:"shader_dir"`   // load decay.comp/agents.comp from here
}

// ExportConfig holds frame export parameters.
type ExportConfig struct {
	Dir      string `yaml:"dir"` // empty disables export
	Interval int    `yaml:"interval"`
	Format   string `yaml:"format"` // png, bmp or tiff
	Queue    int    `yaml:"queue"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"` // seconds of simulated time
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
	OutputDir           string  `yaml:"output_dir"`
}

// UIConfig holds settings panel parameters.
type UIConfig struct {
	PanelWidth int  `yaml:"panel_width"`
	ShowPanel  bool `yaml:"show_panel"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	ScreenW32        float32 // Screen.Width as float32
	ScreenH32        float32 // Screen.Height as float32
	StatsWindowSteps int     // Telemetry.StatsWindow converted to steps
	FieldBytes       int64   // storage of one trail field
	AgentBytes       int64   // storage of the agent buffer
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	return cfg, nil
}

// Refresh recomputes derived values after fields were changed in code,
// for example by command line overrides.
func (c *Config) Refresh() {
	c.computeDerived()
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.ScreenW32 = float32(c.Screen.Width)
	c.Derived.ScreenH32 = float32(c.Screen.Height)

	if c.Sim.StepsPerUpdate < 1 {
		c.Sim.StepsPerUpdate = 1
	}
	if c.Export.Interval < 1 {
		c.Export.Interval = 1
	}

	// One step per frame at the target rate.
	fps := c.Screen.TargetFPS
	if fps <= 0 {
		fps = 60
	}
	c.Derived.StatsWindowSteps = max(int(c.Telemetry.StatsWindow*float64(fps)), 1)

	size := int64(c.Sim.FieldSize)
	c.Derived.FieldBytes = size * size * 16
	c.Derived.AgentBytes = int64(c.Sim.AgentCount) * 16
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
