// Package sim is the physarum simulation engine: a population of agents
// sensing, steering and depositing on a trail field that diffuses and
// fades every step. All agent and field data live on a gpu.Device.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/pthm-cable/slime/camera"
	"github.com/pthm-cable/slime/gpu"
	"github.com/pthm-cable/slime/kernels"
	"github.com/pthm-cable/slime/telemetry"
)

// State is the lifecycle state of an Engine.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Frame is a snapshot of the trail field handed to a FrameSink.
type Frame struct {
	// Step counts every step since the engine was created.
	Step uint64
	Size int
	// Pix holds Size*Size*4 float32 values, RGBA, row by row.
	Pix []float32
}

// FrameSink receives field snapshots. Submit must not block the caller
// for long; sinks drop frames they cannot keep up with.
type FrameSink interface {
	Submit(f Frame)
}

// Presenter draws the trail field. It only samples the field.
type Presenter interface {
	Present(field gpu.Field, view camera.View) error
}

// PhaseTimer receives phase boundaries; *telemetry.PerfCollector
// implements it.
type PhaseTimer interface {
	StartPhase(phase string)
}

// Options configures an Engine.
type Options struct {
	Device gpu.Device
	Params *Params

	// Kernel sources; zero values select the embedded kernels.
	Decay  gpu.Source
	Agents gpu.Source

	// Seed for initial agent placement. Zero seeds from the clock.
	Seed int64

	ViewportW, ViewportH float32

	Logger    *slog.Logger
	Timer     PhaseTimer
	Presenter Presenter

	// Sink receives a field snapshot every ExportInterval steps.
	Sink           FrameSink
	ExportInterval int
}

// Engine owns the kernels, the trail field and the agent buffer.
//
// Engine methods other than the Params setters must be called from the
// goroutine that owns the device.
type Engine struct {
	dev    gpu.Device
	params *Params
	cam    *camera.Camera
	log    *slog.Logger
	rng    *rand.Rand

	decaySrc, agentsSrc gpu.Source

	timer          PhaseTimer
	presenter      Presenter
	sink           FrameSink
	exportInterval int

	state  State
	decay  gpu.Kernel
	agents gpu.Kernel
	res    *resources

	steps uint64 // since the last Setup/Restart
	frame uint64 // total steps, never reset
}

// New creates an engine. No device resources are allocated until Setup.
func New(opts Options) (*Engine, error) {
	if opts.Device == nil {
		return nil, errors.New("sim: no device")
	}
	params := opts.Params
	if params == nil {
		var err error
		params, err = NewParams(DefaultSettings())
		if err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	decay, agents := opts.Decay, opts.Agents
	if decay.Text == "" {
		decay = kernels.Decay()
	}
	if agents.Text == "" {
		agents = kernels.Agents()
	}
	vw, vh := opts.ViewportW, opts.ViewportH
	if vw <= 0 || vh <= 0 {
		vw, vh = 1, 1
	}

	live := params.Live()
	return &Engine{
		dev:            opts.Device,
		params:         params,
		cam:            camera.New(vw, vh, float32(live.FieldSize)),
		log:            logger.With("component", "sim", "backend", opts.Device.Name()),
		rng:            rand.New(rand.NewSource(seed)),
		decaySrc:       decay,
		agentsSrc:      agents,
		timer:          opts.Timer,
		presenter:      opts.Presenter,
		sink:           opts.Sink,
		exportInterval: opts.ExportInterval,
	}, nil
}

// State returns the lifecycle state.
func (e *Engine) State() State { return e.state }

// Params returns the parameter store.
func (e *Engine) Params() *Params { return e.params }

// Camera returns the view camera.
func (e *Engine) Camera() *camera.Camera { return e.cam }

// Steps returns the number of steps since the last Setup or Restart.
func (e *Engine) Steps() uint64 { return e.steps }

// Frame returns the number of steps since the engine was created.
func (e *Engine) Frame() uint64 { return e.frame }

// FieldSize returns the size of the current field, or 0 before Setup.
func (e *Engine) FieldSize() int {
	if e.res == nil {
		return 0
	}
	return e.res.size
}

// AgentCount returns the number of agents in the current buffer, or 0
// before Setup.
func (e *Engine) AgentCount() int {
	if e.res == nil {
		return 0
	}
	return e.res.count
}

// Field returns the trail field for read-only use, or nil before Setup.
func (e *Engine) Field() gpu.Field {
	if e.res == nil {
		return nil
	}
	return e.res.field
}

// notReady logs and returns ErrNotReady for op.
func (e *Engine) notReady(op string) error {
	e.log.Error("engine not ready", "op", op, "state", e.state.String())
	return fmt.Errorf("%s: %w", op, ErrNotReady)
}

// Setup compiles both kernels, builds the field and agent buffer at the
// current fieldSize and agentCount, and pushes every parameter. On failure
// everything created so far is released and the engine stays
// uninitialized.
func (e *Engine) Setup() error {
	if e.state == StateReady {
		return ErrAlreadySetUp
	}
	if e.state == StateClosed {
		return e.notReady("setup")
	}

	decay, agents, err := e.compile(e.decaySrc, e.agentsSrc)
	if err != nil {
		e.log.Error("setup failed", "error", err)
		return fmt.Errorf("setup: %w", err)
	}

	live := e.params.Live()
	res, err := newResources(e.dev, e.rng, live.FieldSize, live.AgentCount)
	if err != nil {
		decay.Release()
		agents.Release()
		e.log.Error("setup failed", "error", err)
		return fmt.Errorf("setup: %w", err)
	}

	if err := e.attach(decay, agents, res); err != nil {
		res.destroy()
		decay.Release()
		agents.Release()
		e.log.Error("setup failed", "error", err)
		return fmt.Errorf("setup: %w", err)
	}

	e.decay, e.agents, e.res = decay, agents, res
	e.params.commitRestart(res.size, res.count)
	e.cam.SetFieldSize(float32(res.size))
	e.steps = 0
	e.state = StateReady

	e.log.Info("setup complete",
		"field_size", res.size,
		"agents", res.count,
		"device_bytes", res.bytes(),
	)
	return nil
}

// compile builds both kernels or neither.
func (e *Engine) compile(decaySrc, agentsSrc gpu.Source) (decay, agents gpu.Kernel, err error) {
	decay, err = e.dev.Compile(decaySrc)
	if err != nil {
		return nil, nil, fmt.Errorf("compiling %s kernel: %w", decaySrc.Name, err)
	}
	agents, err = e.dev.Compile(agentsSrc)
	if err != nil {
		decay.Release()
		return nil, nil, fmt.Errorf("compiling %s kernel: %w", agentsSrc.Name, err)
	}
	return decay, agents, nil
}

// attach binds res to the kernels and uploads every parameter.
func (e *Engine) attach(decay, agents gpu.Kernel, res *resources) error {
	if err := res.bind(decay, agents); err != nil {
		return fmt.Errorf("binding resources: %w", err)
	}
	push := func(d *Param, live *Settings) error { return pushParam(decay, agents, d, live) }
	if _, err := e.params.sync(true, push); err != nil {
		return err
	}
	return nil
}

// Restart rebuilds the field and agent buffer at the current fieldSize and
// agentCount. The replacement is allocated before the current resources
// are released, so a failed restart leaves the running simulation intact;
// peak device memory during a restart is the sum of both.
func (e *Engine) Restart() error {
	if e.state != StateReady {
		return e.notReady("restart")
	}

	live := e.params.Live()
	res, err := newResources(e.dev, e.rng, live.FieldSize, live.AgentCount)
	if err != nil {
		e.log.Error("restart failed, keeping current simulation",
			"field_size", live.FieldSize,
			"agents", live.AgentCount,
			"error", err,
		)
		return fmt.Errorf("restart: %w", err)
	}

	if err := res.bind(e.decay, e.agents); err != nil {
		res.destroy()
		if rerr := e.res.bind(e.decay, e.agents); rerr != nil {
			e.log.Error("rebinding previous resources", "error", rerr)
		}
		e.log.Error("restart failed, keeping current simulation", "error", err)
		return fmt.Errorf("restart: binding resources: %w", err)
	}

	old := e.res
	e.res = res
	old.destroy()

	e.params.commitRestart(res.size, res.count)
	e.cam.SetFieldSize(float32(res.size))
	e.steps = 0

	e.log.Info("restart complete",
		"field_size", res.size,
		"agents", res.count,
		"device_bytes", res.bytes(),
	)
	return nil
}

// Reload compiles new kernel sources and swaps them in. The field, the
// agents and all parameters carry over. On failure the running kernels
// are kept.
func (e *Engine) Reload(decaySrc, agentsSrc gpu.Source) error {
	if e.state != StateReady {
		return e.notReady("reload")
	}

	decay, agents, err := e.compile(decaySrc, agentsSrc)
	if err != nil {
		e.log.Error("reload failed, keeping current kernels", "error", err)
		return fmt.Errorf("reload: %w", err)
	}
	if err := e.attach(decay, agents, e.res); err != nil {
		decay.Release()
		agents.Release()
		e.log.Error("reload failed, keeping current kernels", "error", err)
		return fmt.Errorf("reload: %w", err)
	}

	e.decay.Release()
	e.agents.Release()
	e.decay, e.agents = decay, agents
	e.decaySrc, e.agentsSrc = decaySrc, agentsSrc
	e.log.Info("kernels reloaded")
	return nil
}

// SyncParameters applies the input snapshot to the view and pushes every
// parameter whose live value changed since the last push. Unchanged
// parameters cost no kernel calls.
func (e *Engine) SyncParameters(in Input) error {
	applyView(e.cam, in)
	if e.state != StateReady {
		return e.notReady("sync parameters")
	}
	e.phase(telemetry.PhaseSync)

	push := func(d *Param, live *Settings) error { return pushParam(e.decay, e.agents, d, live) }
	n, err := e.params.sync(false, push)
	if err != nil {
		e.log.Error("parameter push failed", "error", err)
		return fmt.Errorf("sync parameters: %w", err)
	}
	if n > 0 {
		e.log.Debug("parameters pushed", "count", n)
	}
	return nil
}

// pushParam uploads one parameter to each kernel it targets.
func pushParam(decay, agents gpu.Kernel, d *Param, live *Settings) error {
	for _, k := range []struct {
		target Target
		kernel gpu.Kernel
	}{{TargetDecay, decay}, {TargetAgents, agents}} {
		if d.Target&k.target == 0 {
			continue
		}
		var err error
		switch d.Kind {
		case KindFloat:
			err = k.kernel.SetFloat(d.Name, *d.float(live))
		case KindBool:
			err = k.kernel.SetBool(d.Name, *d.flag(live))
		case KindColour:
			c := *d.colour(live)
			err = k.kernel.SetVec3(d.Name, c[0], c[1], c[2])
		default:
			err = fmt.Errorf("%s is restart-only", d.Name)
		}
		if err != nil {
			return fmt.Errorf("kernel %s: %w", k.kernel.Name(), err)
		}
	}
	return nil
}

// Step advances the simulation by one tick: decay, barrier, agent update,
// barrier. Every exportInterval steps a snapshot goes to the frame sink.
func (e *Engine) Step() error {
	if e.state != StateReady {
		return e.notReady("step")
	}

	e.phase(telemetry.PhaseDecay)
	local := e.decay.LocalSize()
	gx := gpu.CeilGroups(e.res.size, local[0])
	gy := gpu.CeilGroups(e.res.size, local[1])
	if err := e.decay.Dispatch(gx, gy, 1); err != nil {
		return fmt.Errorf("step: decay dispatch: %w", err)
	}
	e.dev.Barrier()

	e.phase(telemetry.PhaseAgents)
	if err := e.agents.SetInt(kernels.UniformFrame, int32(uint32(e.frame))); err != nil {
		return fmt.Errorf("step: %w", err)
	}
	groups := gpu.CeilGroups(e.res.count, e.agents.LocalSize()[0])
	if err := e.agents.Dispatch(groups, 1, 1); err != nil {
		return fmt.Errorf("step: agent dispatch: %w", err)
	}
	e.dev.Barrier()

	e.steps++
	e.frame++

	if e.sink != nil && e.exportInterval > 0 && e.frame%uint64(e.exportInterval) == 0 {
		e.phase(telemetry.PhaseExport)
		e.export()
	}
	return nil
}

// export reads the field back and hands it to the sink. Failures are
// logged and never reach the caller.
func (e *Engine) export() {
	pix, err := e.res.field.ReadPixels()
	if err != nil {
		e.log.Warn("frame export skipped", "frame", e.frame, "error", err)
		return
	}
	e.sink.Submit(Frame{Step: e.frame, Size: e.res.size, Pix: pix})
}

// Render draws the field through the presenter. It does not change
// simulation state.
func (e *Engine) Render() error {
	if e.state != StateReady {
		return e.notReady("render")
	}
	if e.presenter == nil {
		return nil
	}
	e.phase(telemetry.PhaseRender)
	if err := e.presenter.Present(e.res.field, e.cam.View()); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// ReadField copies the trail field back to host memory.
func (e *Engine) ReadField() ([]float32, error) {
	if e.state != StateReady {
		return nil, e.notReady("read field")
	}
	return e.res.field.ReadPixels()
}

// ReadAgents copies the agent buffer back to host memory.
func (e *Engine) ReadAgents() ([]Agent, error) {
	if e.state != StateReady {
		return nil, e.notReady("read agents")
	}
	words, err := e.res.agents.Read()
	if err != nil {
		return nil, err
	}
	return agentsFromWords(words), nil
}

// Close releases kernels and resources. The device stays open.
func (e *Engine) Close() {
	if e.state == StateReady {
		e.res.destroy()
		e.decay.Release()
		e.agents.Release()
		e.res, e.decay, e.agents = nil, nil, nil
	}
	e.state = StateClosed
}

func (e *Engine) phase(name string) {
	if e.timer != nil {
		e.timer.StartPhase(name)
	}
}
