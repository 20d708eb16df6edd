// Package game wires the simulation engine to a window, the settings UI,
// frame export and telemetry, and drives the frame loop.
package game

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/export"
	"github.com/pthm-cable/slime/gpu"
	"github.com/pthm-cable/slime/kernels"
	"github.com/pthm-cable/slime/renderer"
	"github.com/pthm-cable/slime/sim"
	"github.com/pthm-cable/slime/telemetry"
	"github.com/pthm-cable/slime/ui"
)

// Limits for the steps-per-update keys.
const (
	minStepsPerUpdate = 1
	maxStepsPerUpdate = 32
)

// Game holds the complete application state.
type Game struct {
	cfg      *config.Config
	log      *slog.Logger
	headless bool
	logStats bool

	dev    gpu.Device
	engine *sim.Engine

	// Rendering (nil when headless)
	trail     *renderer.TrailRenderer
	hud       *ui.HUD
	perfPanel *ui.PerfPanel
	settings  *ui.SettingsPanel
	keys      *ui.KeyMap

	// Telemetry
	perfCollector *telemetry.PerfCollector
	outputManager *telemetry.OutputManager
	exporter      *export.Writer
	nextStats     uint64

	// State
	paused         bool
	stepOnce       bool
	showPerf       bool
	stepsPerUpdate int
	restartPending bool
	resetView      bool

	screenWidth, screenHeight float32
}

// NewGame creates the device, engine and supporting services and runs the
// engine's setup. In windowed mode the raylib window must already exist.
func NewGame(opts Options) (*Game, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	logger := slog.Default().With("component", "game")

	g := &Game{
		cfg:            cfg,
		log:            logger,
		headless:       opts.Headless,
		logStats:       opts.LogStats,
		stepsPerUpdate: max(cfg.Sim.StepsPerUpdate, minStepsPerUpdate),
		perfCollector:  telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		screenWidth:    float32(cfg.Screen.Width),
		screenHeight:   float32(cfg.Screen.Height),
	}
	if opts.StepsPerUpdate > 0 {
		g.stepsPerUpdate = min(opts.StepsPerUpdate, maxStepsPerUpdate)
	}

	backend := cfg.GPU.Backend
	if opts.Headless && (backend == "" || backend == gpu.BackendAuto) {
		backend = gpu.BackendSoft
	}
	dev, err := gpu.Open(backend, gpu.Options{
		MemoryLimit: cfg.GPU.MemoryLimit,
		Workers:     cfg.GPU.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("opening device: %w", err)
	}
	g.dev = dev

	decaySrc, agentsSrc, err := kernels.Load(cfg.GPU.ShaderDir)
	if err != nil {
		g.Unload()
		return nil, fmt.Errorf("loading kernels: %w", err)
	}

	params, err := sim.NewParams(SettingsFromConfig(cfg.Sim))
	if err != nil {
		g.Unload()
		return nil, fmt.Errorf("invalid sim config: %w", err)
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = cfg.Telemetry.OutputDir
	}
	if g.outputManager, err = telemetry.NewOutputManager(outputDir); err != nil {
		g.Unload()
		return nil, err
	}
	if err := g.outputManager.WriteConfig(cfg); err != nil {
		logger.Warn("failed to write config snapshot", "error", err)
	}

	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir = cfg.Export.Dir
	}
	var sink sim.FrameSink
	if exportDir != "" {
		g.exporter, err = export.New(export.Options{
			Dir:    exportDir,
			Format: cfg.Export.Format,
			Queue:  cfg.Export.Queue,
		})
		if err != nil {
			g.Unload()
			return nil, err
		}
		sink = g.exporter
	}

	var presenter sim.Presenter
	if !opts.Headless {
		g.trail = renderer.NewTrailRenderer(int32(cfg.Screen.Width), int32(cfg.Screen.Height))
		g.hud = ui.NewHUD()
		g.perfPanel = ui.NewPerfPanel(10, int32(cfg.Screen.Height)-160)
		g.settings = ui.NewSettingsPanel(10, 10, int32(cfg.UI.PanelWidth), slog.Default())
		g.settings.SetVisible(cfg.UI.ShowPanel)
		g.keys = ui.DefaultKeyMap()
		presenter = g.trail
	}

	g.engine, err = sim.New(sim.Options{
		Device:         dev,
		Params:         params,
		Decay:          decaySrc,
		Agents:         agentsSrc,
		Seed:           opts.Seed,
		ViewportW:      g.screenWidth,
		ViewportH:      g.screenHeight,
		Timer:          g.perfCollector,
		Presenter:      presenter,
		Sink:           sink,
		ExportInterval: cfg.Export.Interval,
	})
	if err != nil {
		g.Unload()
		return nil, err
	}
	if err := g.engine.Setup(); err != nil {
		g.Unload()
		return nil, err
	}
	g.nextStats = uint64(cfg.Derived.StatsWindowSteps)

	logger.Info("game ready",
		"backend", dev.Name(),
		"headless", opts.Headless,
		"field_size", g.engine.FieldSize(),
		"agents", g.engine.AgentCount(),
		"export_dir", exportDir,
		"output_dir", outputDir,
	)
	return g, nil
}

// Engine returns the simulation engine.
func (g *Game) Engine() *sim.Engine { return g.engine }

// Frame returns the total number of simulation steps.
func (g *Game) Frame() uint64 {
	if g.engine == nil {
		return 0
	}
	return g.engine.Frame()
}

// restart rebuilds the simulation at the current size parameters.
// A failed restart leaves the running simulation in place.
func (g *Game) restart() {
	if err := g.engine.Restart(); err != nil {
		if errors.Is(err, gpu.ErrOutOfMemory) {
			g.log.Warn("not enough device memory for requested size", "error", err)
		}
		return
	}
	g.nextStats = g.engine.Frame() + uint64(g.cfg.Derived.StatsWindowSteps)
}

// reloadKernels recompiles the kernels from the configured shader dir.
// On failure the running kernels stay in place.
func (g *Game) reloadKernels() error {
	decaySrc, agentsSrc, err := kernels.Load(g.cfg.GPU.ShaderDir)
	if err != nil {
		return fmt.Errorf("loading kernels: %w", err)
	}
	return g.engine.Reload(decaySrc, agentsSrc)
}

// Unload releases everything in reverse order of creation. Pending frame
// exports are written before it returns.
func (g *Game) Unload() {
	if g.engine != nil {
		storeSettings(&g.cfg.Sim, g.engine.Params().Live())
		g.engine.Close()
	}
	if g.trail != nil {
		g.trail.Unload()
	}
	if g.exporter != nil {
		g.exporter.Close()
	}
	if g.outputManager != nil {
		if err := g.outputManager.WriteConfig(g.cfg); err != nil {
			g.log.Warn("failed to write config snapshot", "error", err)
		}
		if err := g.outputManager.Close(); err != nil {
			g.log.Error("closing output", "error", err)
		}
	}
	if g.dev != nil {
		if err := g.dev.Close(); err != nil {
			g.log.Error("closing device", "error", err)
		}
	}
}
