package main

import (
	"flag"
	"log/slog"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/game"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	backend := flag.String("backend", "", "Compute backend: auto, gl or soft (empty = use config)")
	agents := flag.Int("agents", 0, "Number of agents (0 = use config)")
	fieldSize := flag.Int("field-size", 0, "Trail field size in pixels (0 = use config)")
	shaderDir := flag.String("shader-dir", "", "Load decay.comp and agents.comp from this directory")
	logStats := flag.Bool("log-stats", false, "Output field stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	exportDir := flag.String("export-dir", "", "Directory for exported frame images")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use config, then time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N simulation steps (0 = unlimited)")
	stepsPerUpdate := flag.Int("steps-per-update", 0, "Simulation steps per update (0 = use config)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Command line overrides
	if *backend != "" {
		cfg.GPU.Backend = *backend
	}
	if *agents > 0 {
		cfg.Sim.AgentCount = *agents
	}
	if *fieldSize > 0 {
		cfg.Sim.FieldSize = *fieldSize
	}
	if *shaderDir != "" {
		cfg.GPU.ShaderDir = *shaderDir
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	cfg.Refresh()

	opts := game.Options{
		Config:         cfg,
		Headless:       *headless,
		Seed:           cfg.Seed,
		OutputDir:      *outputDir,
		ExportDir:      *exportDir,
		StepsPerUpdate: *stepsPerUpdate,
		LogStats:       *logStats,
	}

	if *headless {
		g, err := game.NewGame(opts)
		if err != nil {
			slog.Error("failed to start", "error", err)
			os.Exit(1)
		}
		defer g.Unload()

		slog.Info("starting headless simulation",
			"seed", cfg.Seed,
			"max_ticks", *maxTicks,
			"field_size", cfg.Sim.FieldSize,
			"agents", cfg.Sim.AgentCount,
		)

		for {
			g.UpdateHeadless()

			if *maxTicks > 0 && g.Frame() >= uint64(*maxTicks) {
				slog.Info("max ticks reached", "tick", g.Frame())
				return
			}
		}
	}

	// Graphical mode
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagVsyncHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "Physarum")
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	g, err := game.NewGame(opts)
	if err != nil {
		slog.Error("failed to start", "error", err)
		return
	}
	defer g.Unload()

	for !rl.WindowShouldClose() {
		g.Update()
		g.Draw()

		if *maxTicks > 0 && g.Frame() >= uint64(*maxTicks) {
			break
		}
	}
}
