package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for one frame of the simulation.
const (
	PhaseSync   = "sync"
	PhaseDecay  = "decay"
	PhaseAgents = "agents"
	PhaseExport = "export"
	PhaseRender = "render"
	PhaseStats  = "stats"
)

// Phases lists the phase names in pipeline order.
var Phases = []string{PhaseSync, PhaseDecay, PhaseAgents, PhaseExport, PhaseRender, PhaseStats}

// PerfSample holds timing data for a single update.
// An update runs one or more simulation steps.
type PerfSample struct {
	Duration time.Duration
	Steps    int
	Phases   map[string]time.Duration
}

// PerfCollector tracks performance metrics over a rolling window of updates.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	currentSteps  int
	updateStart   time.Time
	phaseStart    time.Time
	lastPhase     string

	// Frame timing (for graphics mode)
	lastFrameTime time.Time
	frameDuration time.Duration

	now func() time.Time
}

// NewPerfCollector creates a new performance collector.
// windowSize: number of updates to average over (e.g., 60 for 1 second at 60fps).
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
		now:           time.Now,
	}
}

// StartUpdate begins timing a new update.
func (p *PerfCollector) StartUpdate() {
	p.updateStart = p.now()
	p.currentPhases = make(map[string]time.Duration)
	p.currentSteps = 0
	p.lastPhase = ""
}

// StartPhase begins timing a specific phase, ending the previous one.
// Phases entered repeatedly in one update accumulate.
func (p *PerfCollector) StartPhase(phase string) {
	now := p.now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// CountStep records that a simulation step ran in the current update.
func (p *PerfCollector) CountStep() {
	p.currentSteps++
}

// EndUpdate finishes timing the current update and records the sample.
func (p *PerfCollector) EndUpdate() {
	now := p.now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		Duration: now.Sub(p.updateStart),
		Steps:    p.currentSteps,
		Phases:   p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	p.lastPhase = ""
}

// RecordFrame records frame timing for graphics mode.
func (p *PerfCollector) RecordFrame() {
	now := p.now()
	if !p.lastFrameTime.IsZero() {
		p.frameDuration = now.Sub(p.lastFrameTime)
	}
	p.lastFrameTime = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgUpdate time.Duration
	MinUpdate time.Duration
	MaxUpdate time.Duration

	// Phase breakdown (average durations per update)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total update time
	PhasePct map[string]float64

	// Simulation steps per wall-clock second
	StepsPerSecond float64

	// Frame timing (graphics mode)
	FrameDuration time.Duration
	FPS           float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	var fps float64
	if p.frameDuration > 0 {
		fps = float64(time.Second) / float64(p.frameDuration)
	}

	stats := PerfStats{
		PhaseAvg:      make(map[string]time.Duration),
		PhasePct:      make(map[string]float64),
		FrameDuration: p.frameDuration,
		FPS:           fps,
	}
	if p.sampleCount == 0 {
		return stats
	}

	var total time.Duration
	var steps int
	phaseSum := make(map[string]time.Duration)
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.Duration
		steps += s.Steps

		if i == 0 || s.Duration < stats.MinUpdate {
			stats.MinUpdate = s.Duration
		}
		if s.Duration > stats.MaxUpdate {
			stats.MaxUpdate = s.Duration
		}
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	stats.AvgUpdate = total / time.Duration(p.sampleCount)
	for phase, sum := range phaseSum {
		stats.PhaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if total > 0 {
			stats.PhasePct[phase] = float64(sum) / float64(total) * 100
		}
	}
	if total > 0 {
		stats.StepsPerSecond = float64(steps) / total.Seconds()
	}
	return stats
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_update_us", s.AvgUpdate.Microseconds()),
		slog.Int64("min_update_us", s.MinUpdate.Microseconds()),
		slog.Int64("max_update_us", s.MaxUpdate.Microseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, slog.Float64(phase+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Frame       uint64  `csv:"frame"`
	AvgUpdateUS int64   `csv:"avg_update_us"`
	MinUpdateUS int64   `csv:"min_update_us"`
	MaxUpdateUS int64   `csv:"max_update_us"`
	StepsPerSec float64 `csv:"steps_per_sec"`
	FPS         float64 `csv:"fps"`
	SyncPct     float64 `csv:"sync_pct"`
	DecayPct    float64 `csv:"decay_pct"`
	AgentsPct   float64 `csv:"agents_pct"`
	ExportPct   float64 `csv:"export_pct"`
	RenderPct   float64 `csv:"render_pct"`
	StatsPct    float64 `csv:"stats_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(frame uint64) PerfStatsCSV {
	return PerfStatsCSV{
		Frame:       frame,
		AvgUpdateUS: s.AvgUpdate.Microseconds(),
		MinUpdateUS: s.MinUpdate.Microseconds(),
		MaxUpdateUS: s.MaxUpdate.Microseconds(),
		StepsPerSec: s.StepsPerSecond,
		FPS:         s.FPS,
		SyncPct:     s.PhasePct[PhaseSync],
		DecayPct:    s.PhasePct[PhaseDecay],
		AgentsPct:   s.PhasePct[PhaseAgents],
		ExportPct:   s.PhasePct[PhaseExport],
		RenderPct:   s.PhasePct[PhaseRender],
		StatsPct:    s.PhasePct[PhaseStats],
	}
}
