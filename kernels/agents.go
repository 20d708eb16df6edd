package kernels

import (
	"math"

	"github.com/pthm-cable/slime/gpu/soft"
)

const (
	tau  = 2 * math.Pi
	dt   = 1.0
	edge = 0.001
)

// Hash is the integer hash the agent kernel uses for its random numbers.
func Hash(s uint32) uint32 {
	s ^= 2747636419
	s *= 2654435769
	s ^= s >> 16
	s *= 2654435769
	s ^= s >> 16
	s *= 2654435769
	return s
}

// Random01 maps Hash(s) onto [0, 1].
func Random01(s uint32) float32 {
	return float32(Hash(s)) / 4294967295.0
}

// AgentSeed returns the per-agent seed for a given frame.
func AgentSeed(id uint32, frame int32) uint32 {
	return Hash(id ^ Hash(uint32(frame)))
}

// agentProgram is the software version of glsl/agents.comp.
//
// Run only reads the image. Each agent's deposits are recorded and applied
// in Resolve in agent order, sensor markers first, so the outcome does not
// depend on how groups are split across workers.
type agentProgram struct{}

type agentUniforms struct {
	size           int
	numAgents      int
	frame          int32
	sensorDistance float32
	sensorAngle    float32
	turnSpeed      float32
	speed          float32
	drawSensors    bool
	wrap           bool
	main           [3]float32
	xColour        [3]float32
	yColour        [3]float32
	sensorColour   [3]float32
}

// deposit is one agent's pending image writes. Cell indices of -1 mean no
// write.
type deposit struct {
	main    int32
	sensors [3]int32
	colour  [3]float32
}

type agentState struct {
	agentUniforms
	img      *soft.Image
	buf      *soft.Buffer
	deposits []deposit
}

func (agentProgram) Prepare(inv *soft.Invocation) {
	img := inv.Image(TrailSlot)
	buf := inv.Buffer(AgentSlot)
	u := agentUniforms{
		size:           min(int(inv.Int(UniformSize)), img.Size()),
		numAgents:      min(int(inv.Int(UniformNumAgents)), buf.Len()),
		frame:          inv.Int(UniformFrame),
		sensorDistance: inv.Float(UniformSensorDistance),
		sensorAngle:    inv.Float(UniformSensorAngle),
		turnSpeed:      inv.Float(UniformTurnSpeed),
		speed:          inv.Float(UniformSpeed),
		drawSensors:    inv.Bool(UniformDrawSensors),
		wrap:           inv.Bool(UniformWrapEdges),
		main:           inv.Vec3(UniformMainColour),
		xColour:        inv.Vec3(UniformXColour),
		yColour:        inv.Vec3(UniformYColour),
		sensorColour:   inv.Vec3(UniformSensorColour),
	}

	deposits, _ := inv.Retained().([]deposit)
	if cap(deposits) < u.numAgents {
		deposits = make([]deposit, u.numAgents)
		inv.Retain(deposits)
	}
	deposits = deposits[:max(u.numAgents, 0)]

	inv.State = &agentState{agentUniforms: u, img: img, buf: buf, deposits: deposits}
}

func (agentProgram) Run(inv *soft.Invocation, first, last int) {
	st := inv.State.(*agentState)
	local := inv.Local[0] * inv.Local[1] * inv.Local[2]
	for g := first; g < last; g++ {
		lo := g * local
		hi := min(lo+local, st.numAgents)
		for id := lo; id < hi; id++ {
			st.update(id)
		}
	}
}

func (agentProgram) Resolve(inv *soft.Invocation) {
	st := inv.State.(*agentState)
	if st.drawSensors {
		marker := [4]float32{st.sensorColour[0], st.sensorColour[1], st.sensorColour[2], 1}
		for i := range st.deposits {
			for _, cell := range st.deposits[i].sensors {
				if cell >= 0 {
					st.store(cell, marker)
				}
			}
		}
	}
	for i := range st.deposits {
		d := &st.deposits[i]
		if d.main >= 0 {
			st.store(d.main, [4]float32{d.colour[0], d.colour[1], d.colour[2], 1})
		}
	}
}

func (st *agentState) store(cell int32, v [4]float32) {
	i := int(cell) * 4
	copy(st.img.Pix[i:i+4], v[:])
}

// cellOf returns the linear cell index of p, or -1 when p falls outside
// the field without wrapping.
func (st *agentState) cellOf(px, py float32) int32 {
	cx := int(math.Floor(float64(px)))
	cy := int(math.Floor(float64(py)))
	if st.wrap {
		cx = ((cx % st.size) + st.size) % st.size
		cy = ((cy % st.size) + st.size) % st.size
	} else if cx < 0 || cy < 0 || cx >= st.size || cy >= st.size {
		return -1
	}
	return int32(cy*st.size + cx)
}

func (st *agentState) sense(cell int32) float32 {
	if cell < 0 {
		return 0
	}
	i := int(cell) * 4
	p := st.img.Pix
	return p[i] + p[i+1] + p[i+2]
}

func (st *agentState) sensorPoint(x, y, heading, offset float32) (float32, float32) {
	s, c := math.Sincos(float64(heading + offset))
	return x + float32(c)*st.sensorDistance, y + float32(s)*st.sensorDistance
}

func (st *agentState) update(id int) {
	rec := st.buf.Data[id*AgentStride : id*AgentStride+AgentStride]
	x, y, heading := rec[0], rec[1], rec[2]
	seed := AgentSeed(uint32(id), st.frame)
	size := float32(st.size)

	lx, ly := st.sensorPoint(x, y, heading, st.sensorAngle)
	fx, fy := st.sensorPoint(x, y, heading, 0)
	rx, ry := st.sensorPoint(x, y, heading, -st.sensorAngle)
	left, forward, right := st.cellOf(lx, ly), st.cellOf(fx, fy), st.cellOf(rx, ry)
	wL, wF, wR := st.sense(left), st.sense(forward), st.sense(right)

	r := Random01(seed)
	maxTurn := st.turnSpeed * dt
	switch {
	case wF > wL && wF > wR:
	case wF < wL && wF < wR:
		heading += (r - 0.5) * 2 * maxTurn
	case wR > wL:
		heading -= r * maxTurn
	case wL > wR:
		heading += r * maxTurn
	}
	heading = wrapAngle(heading)

	s, c := math.Sincos(float64(heading))
	dirX, dirY := float32(c), float32(s)
	px, py := x+dirX*st.speed*dt, y+dirY*st.speed*dt
	if px < 0 || py < 0 || px >= size || py >= size {
		if st.wrap {
			px = min(glslMod(px, size), size-edge)
			py = min(glslMod(py, size), size-edge)
		} else {
			px = min(max(px, 0), size-edge)
			py = min(max(py, 0), size-edge)
			heading = Random01(Hash(seed)) * tau
			if heading >= tau {
				heading = 0
			}
		}
	}
	rec[0], rec[1], rec[2] = px, py, heading

	d := &st.deposits[id]
	d.sensors = [3]int32{-1, -1, -1}
	if st.drawSensors {
		d.sensors = [3]int32{left, forward, right}
	}
	d.main = st.cellOf(px, py)
	ax, ay := float32(math.Abs(float64(dirX))), float32(math.Abs(float64(dirY)))
	for c := range 3 {
		d.colour[c] = st.main[c] + ax*st.xColour[c] + ay*st.yColour[c]
	}
}

// wrapAngle maps h into [0, tau).
func wrapAngle(h float32) float32 {
	h = glslMod(h, tau)
	if h >= tau {
		h = 0
	}
	return h
}

// glslMod is x - y*floor(x/y).
func glslMod(x, y float32) float32 {
	return x - y*float32(math.Floor(float64(x/y)))
}
