package main

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/telemetry"
)

func TestParamVectorRoundTrip(t *testing.T) {
	pv := NewParamVector()
	def := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(def))
	for i := range def {
		if math.Abs(back[i]-def[i]) > 1e-9 {
			t.Errorf("%s: %v -> %v", pv.Specs[i].Name, def[i], back[i])
		}
	}
}

func TestParamVectorDefaultsMatchConfig(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector()
	got := pv.ExtractFromConfig(cfg)
	for i, spec := range pv.Specs {
		if math.Abs(got[i]-spec.Default) > 1e-9 {
			t.Errorf("%s default %v, config has %v", spec.Name, spec.Default, got[i])
		}
	}
}

func TestApplyToConfigClamps(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector()
	values := []float64{100, -1, 0.5, 2, 2, -3}
	pv.ApplyToConfig(cfg, values)

	if cfg.Sim.SensorDistance != 40 {
		t.Errorf("sensor distance = %v, want clamped to 40", cfg.Sim.SensorDistance)
	}
	if cfg.Sim.SensorAngle != 0.05 {
		t.Errorf("sensor angle = %v, want clamped to 0.05", cfg.Sim.SensorAngle)
	}
	if cfg.Sim.Diffuse != 1 {
		t.Errorf("diffuse = %v, want clamped to 1", cfg.Sim.Diffuse)
	}
	if cfg.Sim.Fade != 0.001 {
		t.Errorf("fade = %v, want clamped to 0.001", cfg.Sim.Fade)
	}
	if cfg.Sim.TurnSpeed != 0.5 || cfg.Sim.Speed != 2 {
		t.Errorf("in-range values changed: %+v", cfg.Sim)
	}
}

func TestComputeQuality(t *testing.T) {
	if q := computeQuality(nil); q != 0 {
		t.Errorf("no windows: quality = %v", q)
	}
	if q := computeQuality([]telemetry.FieldStats{{}}); q != 0 {
		t.Errorf("empty field: quality = %v", q)
	}

	flat := []telemetry.FieldStats{{Mean: 1, Std: 0.01, Coverage: 1}}
	network := []telemetry.FieldStats{
		{Mean: 0.2, Std: 0.5, Coverage: 0.3},
		{Mean: 0.2, Std: 0.5, Coverage: 0.3},
		{Mean: 0.2, Std: 0.5, Coverage: 0.3},
		{Mean: 0.2, Std: 0.5, Coverage: 0.3},
	}
	qf, qn := computeQuality(flat), computeQuality(network)
	if qn <= qf {
		t.Errorf("network quality %v should beat flat field %v", qn, qf)
	}
	if qn < 0 || qn > 1 {
		t.Errorf("quality %v outside [0, 1]", qn)
	}
}

func TestEvaluateSmallRun(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the simulation")
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Sim.FieldSize = 32
	cfg.Sim.AgentCount = 300

	pv := NewParamVector()
	fe := NewFitnessEvaluator(pv, 40, 10, []int64{1, 2}, cfg)
	fitness := fe.Evaluate(pv.DefaultVector())
	if err := fe.LastErr(); err != nil {
		t.Fatal(err)
	}
	if fitness > 0 || fitness < -1 {
		t.Errorf("fitness = %v, want in [-1, 0]", fitness)
	}
	if fe.BestStats().FieldSize != 32 {
		t.Errorf("best stats field size = %d", fe.BestStats().FieldSize)
	}
	// The base config is not modified by evaluation.
	if cfg.Sim.SensorDistance != 9 {
		t.Errorf("base config changed: %v", cfg.Sim.SensorDistance)
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(90_500_000_000); got != "1m31s" {
		t.Errorf("formatDuration = %q", got)
	}
}

func TestSearchLogsEvaluations(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the simulation")
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Sim.FieldSize = 16
	cfg.Sim.AgentCount = 100

	pv := NewParamVector()
	logPath := filepath.Join(t.TempDir(), "optimize_log.csv")
	s, err := newSearch(pv, NewFitnessEvaluator(pv, 10, 5, []int64{7}, cfg), logPath, 2)
	if err != nil {
		t.Fatal(err)
	}

	// Out-of-range coordinates are clamped before the run.
	x := make([]float64, pv.Dim())
	for i := range x {
		x[i] = 2
	}
	s.evaluate(pv.Normalize(pv.DefaultVector()))
	s.evaluate(x)
	if err := s.close(); err != nil {
		t.Fatal(err)
	}

	if s.count != 2 || s.bestParams == nil {
		t.Fatalf("count = %d, best = %v", s.count, s.bestParams)
	}
	for i, spec := range pv.Specs {
		if v := s.bestParams[i]; v < spec.Min || v > spec.Max {
			t.Errorf("%s = %v outside [%v, %v]", spec.Name, v, spec.Min, spec.Max)
		}
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("log has %d lines, want header + 2:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "eval,fitness,sensor_distance") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasSuffix(lines[2], "40.000000,1.570796,1.500000,4.000000,1.000000,0.200000") {
		t.Errorf("clamped row not logged: %q", lines[2])
	}
}
