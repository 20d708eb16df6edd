package main

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/game"
	"github.com/pthm-cable/slime/gpu"
	"github.com/pthm-cable/slime/kernels"
	"github.com/pthm-cable/slime/sim"
	"github.com/pthm-cable/slime/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	steps      int
	window     int
	seeds      []int64
	baseConfig *config.Config

	mu          sync.Mutex
	bestFitness float64
	bestStats   telemetry.FieldStats
	lastQuality float64
	lastErr     error
}

// NewFitnessEvaluator creates a new evaluator. Field stats are sampled
// every window steps.
func NewFitnessEvaluator(params *ParamVector, steps, window int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		steps:       steps,
		window:      max(window, 1),
		seeds:       seeds,
		baseConfig:  baseCfg,
		bestFitness: math.Inf(1),
	}
}

// BestStats returns the final field stats of the best evaluation.
func (fe *FitnessEvaluator) BestStats() telemetry.FieldStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestStats
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// LastErr returns the first run error of the most recent evaluation.
func (fe *FitnessEvaluator) LastErr() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastErr
}

// runResult holds the results from a single simulation run.
type runResult struct {
	windows []telemetry.FieldStats
	err     error
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negated mean quality over all seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	var totalQuality float64
	var firstErr error
	var last telemetry.FieldStats
	for _, r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		totalQuality += computeQuality(r.windows)
		if len(r.windows) > 0 {
			last = r.windows[len(r.windows)-1]
		}
	}

	quality := totalQuality / float64(len(fe.seeds))
	fitness := -quality

	fe.mu.Lock()
	if fitness < fe.bestFitness {
		fe.bestFitness = fitness
		fe.bestStats = last
	}
	fe.lastQuality = quality
	fe.lastErr = firstErr
	fe.mu.Unlock()

	return fitness
}

// runSimulation steps one engine on its own software device and samples
// field stats every window.
func (fe *FitnessEvaluator) runSimulation(cfg *config.Config, seed int64) runResult {
	dev, err := gpu.Open(gpu.BackendSoft, gpu.Options{MemoryLimit: cfg.GPU.MemoryLimit, Workers: cfg.GPU.Workers})
	if err != nil {
		return runResult{err: err}
	}
	defer dev.Close()

	decaySrc, agentsSrc, err := kernels.Load(cfg.GPU.ShaderDir)
	if err != nil {
		return runResult{err: err}
	}
	params, err := sim.NewParams(game.SettingsFromConfig(cfg.Sim))
	if err != nil {
		return runResult{err: err}
	}
	engine, err := sim.New(sim.Options{
		Device: dev,
		Params: params,
		Decay:  decaySrc,
		Agents: agentsSrc,
		Seed:   seed,
	})
	if err != nil {
		return runResult{err: err}
	}
	if err := engine.Setup(); err != nil {
		return runResult{err: err}
	}
	defer engine.Close()

	if err := engine.SyncParameters(sim.Input{}); err != nil {
		return runResult{err: err}
	}

	var result runResult
	for i := 1; i <= fe.steps; i++ {
		if err := engine.Step(); err != nil {
			return runResult{err: fmt.Errorf("seed %d step %d: %w", seed, i, err)}
		}
		if i%fe.window != 0 && i != fe.steps {
			continue
		}
		pix, err := engine.ReadField()
		if err != nil {
			return runResult{err: err}
		}
		s := telemetry.ComputeFieldStats(pix, engine.FieldSize())
		s.Frame = engine.Frame()
		s.Agents = engine.AgentCount()
		result.windows = append(result.windows, s)
	}
	return result
}

// copyConfig returns a copy of the base config. Config holds no
// references, so a value copy is deep.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}

// Quality component weights.
const (
	qualityWeightContrast  = 0.50
	qualityWeightCoverage  = 0.30
	qualityWeightStability = 0.20

	qualityWarmupWindows = 2 // skip first N windows while the network forms

	targetCoverage = 0.30
	coverageWidth  = 0.15
)

// computeQuality scores trail structure in [0, 1]. Networks show high
// contrast (thin bright veins over dark gaps), partial coverage and a
// settled mean intensity.
func computeQuality(windows []telemetry.FieldStats) float64 {
	if len(windows) == 0 {
		return 0
	}
	last := windows[len(windows)-1]
	if last.Mean <= 0 {
		return 0
	}

	contrast := 1 - math.Exp(-last.Std/last.Mean)
	coverage := math.Exp(-math.Pow((last.Coverage-targetCoverage)/coverageWidth, 2))

	stability := 0.0
	if len(windows) > qualityWarmupWindows+1 {
		means := make([]float64, 0, len(windows)-qualityWarmupWindows)
		for _, w := range windows[qualityWarmupWindows:] {
			means = append(means, w.Mean)
		}
		mean, std := stat.PopMeanStdDev(means, nil)
		if mean > 0 {
			cv := std / mean
			stability = math.Exp(-cv * cv * 10)
		}
	}

	quality := qualityWeightContrast*contrast +
		qualityWeightCoverage*coverage +
		qualityWeightStability*stability
	return clamp01(quality)
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	return min(max(x, 0), 1)
}
