package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sim.FieldSize != 512 || cfg.Sim.AgentCount != 100000 {
		t.Errorf("unexpected sizes %d, %d", cfg.Sim.FieldSize, cfg.Sim.AgentCount)
	}
	if !cfg.Sim.WrapEdges {
		t.Error("wrap_edges should default to true")
	}
	if cfg.GPU.Backend != "auto" {
		t.Errorf("backend = %q", cfg.GPU.Backend)
	}
	if cfg.Derived.FieldBytes != 512*512*16 {
		t.Errorf("field bytes = %d", cfg.Derived.FieldBytes)
	}
	if cfg.Derived.StatsWindowSteps != 600 {
		t.Errorf("stats window steps = %d, want 600", cfg.Derived.StatsWindowSteps)
	}
}

func TestLoadMergesUserFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.yaml")
	user := "sim:\n  fade: 0.1\n  field_size: 256\nexport:\n  interval: 0\n"
	if err := os.WriteFile(path, []byte(user), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sim.Fade != 0.1 || cfg.Sim.FieldSize != 256 {
		t.Errorf("user values not applied: fade %v, size %d", cfg.Sim.Fade, cfg.Sim.FieldSize)
	}
	// Untouched fields keep their defaults.
	if cfg.Sim.Diffuse != 0.5 || cfg.Sim.AgentCount != 100000 {
		t.Errorf("defaults lost: diffuse %v, agents %d", cfg.Sim.Diffuse, cfg.Sim.AgentCount)
	}
	if cfg.Export.Interval != 1 {
		t.Errorf("interval should be raised to 1, got %d", cfg.Export.Interval)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("sim: [1, 2"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Sim.SensorAngle = 0.7
	cfg.Seed = 42

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Sim.SensorAngle != 0.7 || back.Seed != 42 {
		t.Errorf("written config not reloaded: angle %v, seed %d", back.Sim.SensorAngle, back.Seed)
	}
}

func TestCfgPanicsBeforeInit(t *testing.T) {
	saved := global
	global = nil
	defer func() {
		global = saved
		if recover() == nil {
			t.Error("Cfg() should panic before Init")
		}
	}()
	Cfg()
}

func TestInit(t *testing.T) {
	saved := global
	defer func() { global = saved }()

	if err := Init(""); err != nil {
		t.Fatal(err)
	}
	if Cfg().Screen.TargetFPS != 60 {
		t.Errorf("target fps = %d", Cfg().Screen.TargetFPS)
	}
}
