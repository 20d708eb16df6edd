package sim

import (
	"math"
	"math/rand"
	"unsafe"

	"github.com/pthm-cable/slime/kernels"
)

// Agent is one record of the agent buffer. The layout matches the std430
// Agent struct of the update kernel: vec2 position, float heading and one
// float of padding, 16 bytes in total. Do not add a vec3-like triple here;
// records must stay a multiple of four scalars.
type Agent struct {
	X, Y    float32
	Heading float32
	Pad     float32
}

// AgentBytes is the size of one agent record on the device.
const AgentBytes = int(unsafe.Sizeof(Agent{}))

// The kernel stride and the Go layout must agree.
var _ [AgentBytes - kernels.AgentStride*4]struct{}
var _ [kernels.AgentStride*4 - AgentBytes]struct{}

const twoPi = 2 * math.Pi

// GenerateAgents returns n agents with positions uniform in [0, size)²
// and headings uniform in [0, 2π).
func GenerateAgents(rng *rand.Rand, n, size int) []Agent {
	agents := make([]Agent, n)
	fs := float32(size)
	for i := range agents {
		agents[i] = Agent{
			X:       below(rng.Float32()*fs, fs),
			Y:       below(rng.Float32()*fs, fs),
			Heading: below(rng.Float32()*twoPi, twoPi),
		}
	}
	return agents
}

// below keeps v under limit when rounding pushed it onto the bound.
func below(v, limit float32) float32 {
	if v >= limit {
		return math.Nextafter32(limit, 0)
	}
	return v
}

// agentWords views agents as the float32 words uploaded to the device.
func agentWords(agents []Agent) []float32 {
	if len(agents) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(agents))), len(agents)*kernels.AgentStride)
}

// agentsFromWords copies device words back into agent records.
func agentsFromWords(words []float32) []Agent {
	agents := make([]Agent, len(words)/kernels.AgentStride)
	copy(agentWords(agents), words)
	return agents
}
