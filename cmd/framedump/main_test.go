package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/export"
	"github.com/pthm-cable/slime/gpu"
)

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"out.png", export.FormatPNG, true},
		{"OUT.BMP", export.FormatBMP, true},
		{"frames/a.tif", export.FormatTIFF, true},
		{"a.tiff", export.FormatTIFF, true},
		{"a.jpg", "", false},
	}
	for _, tt := range tests {
		got, err := formatFor(tt.path)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("formatFor(%q) = %q, %v", tt.path, got, err)
		}
	}
}

func TestRunWritesImage(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Sim.FieldSize = 16
	cfg.Sim.AgentCount = 50
	cfg.GPU.Workers = 1

	out := filepath.Join(t.TempDir(), "frame.png")
	if err := run(cfg, gpu.BackendSoft, 1, 3, out, export.FormatPNG); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("empty image file")
	}
}
