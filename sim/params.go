package sim

import (
	"fmt"
	"math"
	"sync"
)

// Colour is an RGB deposit colour. Components are unclamped.
type Colour [3]float32

// Settings is one complete set of simulation parameters.
type Settings struct {
	SensorDistance        float32 `yaml:"sensor_distance"`
	SensorAngle           float32 `yaml:"sensor_angle"`
	TurnSpeed             float32 `yaml:"turn_speed"`
	Speed                 float32 `yaml:"speed"`
	DrawSensors           bool    `yaml:"draw_sensors"`
	WrapEdges             bool    `yaml:"wrap_edges"`
	MainAgentColour       Colour  `yaml:"main_agent_colour"`
	AgentXDirectionColour Colour  `yaml:"agent_x_direction_colour"`
	AgentYDirectionColour Colour  `yaml:"agent_y_direction_colour"`
	SensorColour          Colour  `yaml:"sensor_colour"`
	Diffuse               float32 `yaml:"diffuse"`
	Fade                  float32 `yaml:"fade"`

	// Restart-only: read when resources are (re)built.
	FieldSize  int `yaml:"field_size"`
	AgentCount int `yaml:"agent_count"`
}

// DefaultSettings returns a parameter set that forms stable networks.
func DefaultSettings() Settings {
	return Settings{
		SensorDistance:        9,
		SensorAngle:           0.4,
		TurnSpeed:             0.3,
		Speed:                 1,
		WrapEdges:             true,
		MainAgentColour:       Colour{0.05, 0.02, 0.08},
		AgentXDirectionColour: Colour{0.6, 0.1, 0.05},
		AgentYDirectionColour: Colour{0.05, 0.3, 0.6},
		SensorColour:          Colour{1, 1, 1},
		Diffuse:               0.5,
		Fade:                  0.02,
		FieldSize:             512,
		AgentCount:            100_000,
	}
}

// Parameter names.
const (
	ParamSensorDistance        = "sensorDistance"
	ParamSensorAngle           = "sensorAngle"
	ParamTurnSpeed             = "turnSpeed"
	ParamSpeed                 = "speed"
	ParamDrawSensors           = "drawSensors"
	ParamWrapEdges             = "wrapEdges"
	ParamMainAgentColour       = "mainAgentColour"
	ParamAgentXDirectionColour = "agentXDirectionColour"
	ParamAgentYDirectionColour = "agentYDirectionColour"
	ParamSensorColour          = "sensorColour"
	ParamDiffuse               = "diffuse"
	ParamFade                  = "fade"
	ParamFieldSize             = "fieldSize"
	ParamAgentCount            = "agentCount"
)

// Limits for the restart-only parameters.
const (
	MaxFieldSize  = 16384
	MaxAgentCount = 1 << 26
)

// Kind is the value type of a parameter.
type Kind int

const (
	KindFloat Kind = iota
	KindBool
	KindColour
	KindInt
)

// Target says which kernels a parameter is pushed to.
type Target int

const (
	TargetAgents Target = 1 << iota
	TargetDecay
	TargetRestart // never pushed; applied by Restart

	TargetBoth = TargetAgents | TargetDecay
)

// Param describes one entry of the parameter table.
type Param struct {
	Name   string
	Kind   Kind
	Target Target
	// Min and Max bound float and int values. Max <= Min means unbounded.
	Min, Max float64

	float  func(*Settings) *float32
	flag   func(*Settings) *bool
	colour func(*Settings) *Colour
	count  func(*Settings) *int
}

var paramTable = []Param{
	{Name: ParamSensorDistance, Kind: KindFloat, Target: TargetAgents, Min: 0, Max: 1e6,
		float: func(s *Settings) *float32 { return &s.SensorDistance }},
	{Name: ParamSensorAngle, Kind: KindFloat, Target: TargetAgents,
		float: func(s *Settings) *float32 { return &s.SensorAngle }},
	{Name: ParamTurnSpeed, Kind: KindFloat, Target: TargetAgents, Min: 0, Max: 2 * math.Pi,
		float: func(s *Settings) *float32 { return &s.TurnSpeed }},
	{Name: ParamSpeed, Kind: KindFloat, Target: TargetAgents, Min: 0, Max: 1e6,
		float: func(s *Settings) *float32 { return &s.Speed }},
	{Name: ParamDrawSensors, Kind: KindBool, Target: TargetAgents,
		flag: func(s *Settings) *bool { return &s.DrawSensors }},
	{Name: ParamWrapEdges, Kind: KindBool, Target: TargetBoth,
		flag: func(s *Settings) *bool { return &s.WrapEdges }},
	{Name: ParamMainAgentColour, Kind: KindColour, Target: TargetAgents,
		colour: func(s *Settings) *Colour { return &s.MainAgentColour }},
	{Name: ParamAgentXDirectionColour, Kind: KindColour, Target: TargetAgents,
		colour: func(s *Settings) *Colour { return &s.AgentXDirectionColour }},
	{Name: ParamAgentYDirectionColour, Kind: KindColour, Target: TargetAgents,
		colour: func(s *Settings) *Colour { return &s.AgentYDirectionColour }},
	{Name: ParamSensorColour, Kind: KindColour, Target: TargetAgents,
		colour: func(s *Settings) *Colour { return &s.SensorColour }},
	{Name: ParamDiffuse, Kind: KindFloat, Target: TargetDecay, Min: 0, Max: 1,
		float: func(s *Settings) *float32 { return &s.Diffuse }},
	{Name: ParamFade, Kind: KindFloat, Target: TargetDecay, Min: 0, Max: 1,
		float: func(s *Settings) *float32 { return &s.Fade }},
	{Name: ParamFieldSize, Kind: KindInt, Target: TargetRestart, Min: 1, Max: MaxFieldSize,
		count: func(s *Settings) *int { return &s.FieldSize }},
	{Name: ParamAgentCount, Kind: KindInt, Target: TargetRestart, Min: 1, Max: MaxAgentCount,
		count: func(s *Settings) *int { return &s.AgentCount }},
}

// Parameters returns the parameter table.
func Parameters() []Param {
	out := make([]Param, len(paramTable))
	copy(out, paramTable)
	return out
}

func lookupParam(name string) (*Param, error) {
	for i := range paramTable {
		if paramTable[i].Name == name {
			return &paramTable[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
}

// Equal reports whether the parameter has the same value in a and b.
// Colours compare all three components.
func (p *Param) Equal(a, b *Settings) bool {
	switch p.Kind {
	case KindFloat:
		return *p.float(a) == *p.float(b)
	case KindBool:
		return *p.flag(a) == *p.flag(b)
	case KindColour:
		return *p.colour(a) == *p.colour(b)
	default:
		return *p.count(a) == *p.count(b)
	}
}

func (p *Param) copyValue(dst, src *Settings) {
	switch p.Kind {
	case KindFloat:
		*p.float(dst) = *p.float(src)
	case KindBool:
		*p.flag(dst) = *p.flag(src)
	case KindColour:
		*p.colour(dst) = *p.colour(src)
	default:
		*p.count(dst) = *p.count(src)
	}
}

// Value returns the parameter's value in s as float32, bool, Colour or int.
func (p *Param) Value(s *Settings) any {
	switch p.Kind {
	case KindFloat:
		return *p.float(s)
	case KindBool:
		return *p.flag(s)
	case KindColour:
		return *p.colour(s)
	default:
		return *p.count(s)
	}
}

func (p *Param) bounded() bool { return p.Max > p.Min }

func (p *Param) checkFloat(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s = %v", ErrInvalidValue, p.Name, v)
	}
	if p.bounded() && (v < p.Min || v > p.Max) {
		return fmt.Errorf("%w: %s = %v outside [%v, %v]", ErrInvalidValue, p.Name, v, p.Min, p.Max)
	}
	return nil
}

func (p *Param) validate(s *Settings) error {
	switch p.Kind {
	case KindFloat:
		// Bounds are compared at the stored precision, so float32(Max)
		// is accepted even when it rounds above Max.
		v := *p.float(s)
		if p.bounded() && !math.IsNaN(float64(v)) && v >= float32(p.Min) && v <= float32(p.Max) {
			return nil
		}
		return p.checkFloat(float64(v))
	case KindInt:
		return p.checkFloat(float64(*p.count(s)))
	case KindColour:
		for _, c := range *p.colour(s) {
			if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
				return fmt.Errorf("%w: %s component %v", ErrInvalidValue, p.Name, c)
			}
		}
	}
	return nil
}

// Validate checks every parameter of s.
func (s Settings) Validate() error {
	for i := range paramTable {
		if err := paramTable[i].validate(&s); err != nil {
			return err
		}
	}
	return nil
}

// Params holds the live parameter values edited by the UI and the shadow
// values last pushed to the kernels.
//
// Setters may be called from any goroutine. Sync runs on the goroutine
// that owns the device.
type Params struct {
	mu     sync.Mutex
	live   Settings
	shadow Settings
	// synced is false until every parameter has been pushed once.
	synced bool
}

// NewParams creates a store with live values s. Nothing is considered
// pushed yet.
func NewParams(s Settings) (*Params, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Params{live: s}, nil
}

// Live returns a snapshot of the live values.
func (p *Params) Live() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Shadow returns a snapshot of the values last pushed to the kernels.
// FieldSize and AgentCount hold the values the current resources were
// built with.
func (p *Params) Shadow() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shadow
}

// RestartPending reports whether a restart-only parameter differs from the
// value the current resources were built with.
func (p *Params) RestartPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.synced && (p.live.FieldSize != p.shadow.FieldSize || p.live.AgentCount != p.shadow.AgentCount)
}

func (p *Params) set(name string, kind Kind, apply func(*Param, *Settings)) error {
	d, err := lookupParam(name)
	if err != nil {
		return err
	}
	if d.Kind != kind {
		return fmt.Errorf("%w: %s is not a %s parameter", ErrInvalidValue, name, kind)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.live
	apply(d, &next)
	if err := d.validate(&next); err != nil {
		return err
	}
	p.live = next
	return nil
}

// SetFloat sets a float parameter.
func (p *Params) SetFloat(name string, v float32) error {
	return p.set(name, KindFloat, func(d *Param, s *Settings) { *d.float(s) = v })
}

// SetBool sets a boolean parameter.
func (p *Params) SetBool(name string, v bool) error {
	return p.set(name, KindBool, func(d *Param, s *Settings) { *d.flag(s) = v })
}

// SetColour sets a colour parameter.
func (p *Params) SetColour(name string, c Colour) error {
	return p.set(name, KindColour, func(d *Param, s *Settings) { *d.colour(s) = c })
}

// SetInt sets a restart-only parameter. It takes effect at the next restart.
func (p *Params) SetInt(name string, v int) error {
	return p.set(name, KindInt, func(d *Param, s *Settings) { *d.count(s) = v })
}

// Apply replaces all live values at once.
func (p *Params) Apply(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.live = s
	p.mu.Unlock()
	return nil
}

// pushFunc uploads one parameter from live to its target kernels.
type pushFunc func(d *Param, live *Settings) error

// sync pushes every non-restart parameter whose live value differs from
// its shadow, or all of them when force is set. The shadow of a parameter
// only changes after its push succeeded. It returns the number of
// parameters pushed.
func (p *Params) sync(force bool, push pushFunc) (int, error) {
	p.mu.Lock()
	live := p.live
	shadow := p.shadow
	force = force || !p.synced
	p.mu.Unlock()

	pushed := 0
	var err error
	for i := range paramTable {
		d := &paramTable[i]
		if d.Target == TargetRestart {
			continue
		}
		if !force && d.Equal(&live, &shadow) {
			continue
		}
		if err = push(d, &live); err != nil {
			err = fmt.Errorf("push %s: %w", d.Name, err)
			break
		}
		d.copyValue(&shadow, &live)
		pushed++
	}

	p.mu.Lock()
	restartSize, restartCount := p.shadow.FieldSize, p.shadow.AgentCount
	p.shadow = shadow
	p.shadow.FieldSize, p.shadow.AgentCount = restartSize, restartCount
	if err == nil && force {
		p.synced = true
	}
	p.mu.Unlock()
	return pushed, err
}

// commitRestart records the restart-only values the resources were built with.
func (p *Params) commitRestart(fieldSize, agentCount int) {
	p.mu.Lock()
	p.shadow.FieldSize = fieldSize
	p.shadow.AgentCount = agentCount
	p.mu.Unlock()
}

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindColour:
		return "colour"
	case KindInt:
		return "int"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}
