package game

import (
	"log/slog"

	"github.com/pthm-cable/slime/telemetry"
)

// flushTelemetry computes field statistics once per stats window and
// writes them, with the frame timings, to the output manager.
func (g *Game) flushTelemetry() {
	frame := g.engine.Frame()
	if frame < g.nextStats {
		return
	}
	g.nextStats = frame + uint64(g.cfg.Derived.StatsWindowSteps)

	if g.outputManager == nil && !g.logStats {
		return
	}

	g.perfCollector.StartPhase(telemetry.PhaseStats)
	pix, err := g.engine.ReadField()
	if err != nil {
		g.log.Warn("field readback for stats failed", "error", err)
		return
	}
	stats := telemetry.ComputeFieldStats(pix, g.engine.FieldSize())
	stats.Frame = frame
	stats.Agents = g.engine.AgentCount()
	perfStats := g.perfCollector.Stats()

	if g.logStats {
		slog.Info("field", "stats", stats)
		slog.Info("perf", "stats", perfStats)
	}

	if err := g.outputManager.WriteStats(stats); err != nil {
		slog.Error("failed to write stats", "error", err)
	}
	if err := g.outputManager.WritePerf(perfStats, frame); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
}
