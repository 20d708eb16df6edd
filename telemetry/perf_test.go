package telemetry

import (
	"math"
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartUpdate()
		pc.StartPhase(PhaseDecay)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseAgents)
		time.Sleep(200 * time.Microsecond)
		pc.CountStep()
		pc.EndUpdate()
	}

	stats := pc.Stats()

	if stats.AvgUpdate <= 0 {
		t.Error("expected positive average update duration")
	}
	if _, ok := stats.PhaseAvg[PhaseDecay]; !ok {
		t.Error("expected decay phase to be tracked")
	}
	if _, ok := stats.PhaseAvg[PhaseAgents]; !ok {
		t.Error("expected agents phase to be tracked")
	}
	if stats.StepsPerSecond <= 0 {
		t.Error("expected positive steps per second")
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	pc := NewPerfCollector(5)
	pc.now = clock.Now

	for i := 1; i <= 10; i++ {
		pc.StartUpdate()
		pc.StartPhase(PhaseDecay)
		clock.Advance(time.Duration(i) * time.Millisecond)
		pc.CountStep()
		pc.EndUpdate()
	}

	if pc.sampleCount != 5 {
		t.Errorf("expected 5 samples in window, got %d", pc.sampleCount)
	}
	// Only updates 6..10 remain in the window.
	stats := pc.Stats()
	if stats.AvgUpdate != 8*time.Millisecond {
		t.Errorf("avg update = %v, want 8ms", stats.AvgUpdate)
	}
	if stats.MinUpdate != 6*time.Millisecond || stats.MaxUpdate != 10*time.Millisecond {
		t.Errorf("min/max = %v/%v, want 6ms/10ms", stats.MinUpdate, stats.MaxUpdate)
	}
}

// fakeClock advances only when told to.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestPerfCollector_PhasePercentages(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	pc := NewPerfCollector(10)
	pc.now = clock.Now

	for i := 0; i < 5; i++ {
		pc.StartUpdate()
		pc.StartPhase("fast")
		clock.Advance(10 * time.Microsecond)
		pc.StartPhase("slow")
		clock.Advance(90 * time.Microsecond)
		pc.EndUpdate()
	}

	stats := pc.Stats()
	if got := stats.PhasePct["fast"]; math.Abs(got-10) > 1e-9 {
		t.Errorf("fast phase = %v%%, want 10%%", got)
	}
	if got := stats.PhasePct["slow"]; math.Abs(got-90) > 1e-9 {
		t.Errorf("slow phase = %v%%, want 90%%", got)
	}
	if stats.PhaseAvg["slow"] != 90*time.Microsecond {
		t.Errorf("slow phase avg = %v, want 90µs", stats.PhaseAvg["slow"])
	}
	if stats.AvgUpdate != 100*time.Microsecond {
		t.Errorf("avg update = %v, want 100µs", stats.AvgUpdate)
	}
}

func TestPerfCollector_RepeatedPhaseAccumulates(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	pc := NewPerfCollector(4)
	pc.now = clock.Now

	pc.StartUpdate()
	for range 3 {
		pc.StartPhase(PhaseDecay)
		clock.Advance(time.Millisecond)
		pc.StartPhase(PhaseAgents)
		clock.Advance(3 * time.Millisecond)
		pc.CountStep()
	}
	pc.EndUpdate()

	stats := pc.Stats()
	if stats.PhaseAvg[PhaseDecay] != 3*time.Millisecond || stats.PhaseAvg[PhaseAgents] != 9*time.Millisecond {
		t.Errorf("phase avg = %v", stats.PhaseAvg)
	}
	if math.Abs(stats.StepsPerSecond-250) > 1e-9 {
		t.Errorf("steps per second = %v, want 250", stats.StepsPerSecond)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc := NewPerfCollector(10)

	stats := pc.Stats()

	if stats.AvgUpdate != 0 {
		t.Error("expected zero avg update duration for empty collector")
	}
	if stats.PhaseAvg == nil || stats.PhasePct == nil {
		t.Error("expected non-nil phase maps")
	}
}

func TestPerfCollector_FrameTiming(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	pc := NewPerfCollector(10)
	pc.now = clock.Now

	pc.RecordFrame()
	if pc.Stats().FPS != 0 {
		t.Error("expected no FPS after a single frame")
	}
	clock.Advance(20 * time.Millisecond)
	pc.RecordFrame()

	stats := pc.Stats()
	if stats.FrameDuration != 20*time.Millisecond {
		t.Errorf("frame duration = %v, want 20ms", stats.FrameDuration)
	}
	if math.Abs(stats.FPS-50) > 1e-9 {
		t.Errorf("FPS = %v, want 50", stats.FPS)
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	s := PerfStats{
		AvgUpdate: 1500 * time.Microsecond,
		PhasePct:  map[string]float64{PhaseDecay: 40, PhaseAgents: 55},
	}
	row := s.ToCSV(120)
	if row.Frame != 120 || row.AvgUpdateUS != 1500 {
		t.Errorf("row = %+v", row)
	}
	if row.DecayPct != 40 || row.AgentsPct != 55 || row.RenderPct != 0 {
		t.Errorf("phase columns = %+v", row)
	}
}
