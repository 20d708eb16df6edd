// Package main searches agent and decay parameters with CMA-ES for
// settings that grow well-defined trail networks.
//
// Usage: go run ./cmd/optimize -output runs/search -max-evals 100
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/slime/config"
)

// formatDuration formats a duration as 1h02m03s or 2m03s.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

type searchOptions struct {
	configPath string
	steps      int
	window     int
	fieldSize  int
	agents     int
	seeds      int
	maxEvals   int
	population int
	outputDir  string
}

func main() {
	var opts searchOptions
	flag.StringVar(&opts.configPath, "config", "", "Base config YAML file (empty = use defaults)")
	flag.IntVar(&opts.steps, "steps", 600, "Simulation steps per run")
	flag.IntVar(&opts.window, "window", 100, "Steps between field samples")
	flag.IntVar(&opts.fieldSize, "field-size", 128, "Trail field size for search runs")
	flag.IntVar(&opts.agents, "agents", 5000, "Number of agents for search runs")
	flag.IntVar(&opts.seeds, "seeds", 3, "Number of seeds per evaluation")
	flag.IntVar(&opts.maxEvals, "max-evals", 200, "Maximum number of evaluations")
	flag.IntVar(&opts.population, "population", 0, "CMA-ES population size (0 = auto)")
	flag.StringVar(&opts.outputDir, "output", "", "Output directory for results")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(opts); err != nil {
		slog.Error("optimization failed", "error", err)
		os.Exit(1)
	}
}

func run(opts searchOptions) error {
	if opts.outputDir == "" {
		return fmt.Errorf("-output is required")
	}
	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	baseCfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	baseCfg.Sim.FieldSize = opts.fieldSize
	baseCfg.Sim.AgentCount = opts.agents

	seeds := make([]int64, opts.seeds)
	for i := range seeds {
		seeds[i] = int64(i*1000 + 42)
	}

	params := NewParamVector()
	s, err := newSearch(params, NewFitnessEvaluator(params, opts.steps, opts.window, seeds, baseCfg),
		filepath.Join(opts.outputDir, "optimize_log.csv"), opts.maxEvals)
	if err != nil {
		return err
	}
	defer s.close()

	popSize := opts.population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(params.Dim())/2.0)
	}

	slog.Info("starting CMA-ES",
		"params", params.Dim(),
		"population", popSize,
		"max_evals", opts.maxEvals,
		"seeds", opts.seeds,
		"steps", opts.steps,
		"field_size", opts.fieldSize,
		"agents", opts.agents,
	)

	result, err := optimize.Minimize(
		optimize.Problem{Func: s.evaluate},
		params.Normalize(params.ExtractFromConfig(baseCfg)),
		// Seeds already run in parallel inside each evaluation.
		&optimize.Settings{FuncEvaluations: opts.maxEvals},
		&optimize.CmaEsChol{InitStepSize: 0.3, Population: popSize},
	)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}

	best := s.bestParams
	if best == nil && result != nil {
		best = params.Clamp(params.Denormalize(result.X))
	}
	if best == nil {
		return fmt.Errorf("no evaluations completed")
	}

	stats := s.eval.BestStats()
	slog.Info("optimization complete",
		"evals", s.count,
		"elapsed", formatDuration(time.Since(s.start)),
		"quality", -s.bestFitness,
		"mean", stats.Mean,
		"std", stats.Std,
		"coverage", stats.Coverage,
	)
	for i, spec := range params.Specs {
		fmt.Printf("  %-16s %.6f\n", spec.Name, best[i])
	}

	// The saved config keeps the user's field size and agent count.
	bestCfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	params.ApplyToConfig(bestCfg, best)
	out := filepath.Join(opts.outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(out); err != nil {
		return fmt.Errorf("writing best config: %w", err)
	}
	slog.Info("best config saved", "path", out)
	return nil
}
