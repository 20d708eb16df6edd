// Package kernels holds the two compute kernels of the simulation: the
// field decay pass and the agent update pass. Each kernel exists as GLSL
// (embedded, or loaded from a shader directory) and as a program for the
// software device with the same interface and semantics.
package kernels

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pthm-cable/slime/gpu"
	"github.com/pthm-cable/slime/gpu/soft"
)

//go:embed glsl/decay.comp
var decayGLSL string

//go:embed glsl/agents.comp
var agentsGLSL string

// Kernel names.
const (
	DecayName  = "decay"
	AgentsName = "agents"
)

// Binding points shared by both kernels.
const (
	TrailSlot = 0 // rgba32f image2D
	AgentSlot = 1 // std430 Agents buffer
)

// Uniforms set by the engine rather than through the parameter store.
const (
	UniformSize      = "size"
	UniformNumAgents = "numAgents"
	UniformFrame     = "frame"
)

// Parameter uniforms. Names match the parameter names.
const (
	UniformSensorDistance = "sensorDistance"
	UniformSensorAngle    = "sensorAngle"
	UniformTurnSpeed      = "turnSpeed"
	UniformSpeed          = "speed"
	UniformDrawSensors    = "drawSensors"
	UniformWrapEdges      = "wrapEdges"
	UniformMainColour     = "mainAgentColour"
	UniformXColour        = "agentXDirectionColour"
	UniformYColour        = "agentYDirectionColour"
	UniformSensorColour   = "sensorColour"
	UniformDiffuse        = "diffuse"
	UniformFade           = "fade"
)

// AgentStride is the number of float32 words in one agent record.
const AgentStride = 4

func init() {
	soft.RegisterProgram(DecayName, decayProgram{})
	soft.RegisterProgram(AgentsName, agentProgram{})
}

// Decay returns the embedded field decay kernel.
func Decay() gpu.Source {
	return gpu.Source{Name: DecayName, Text: decayGLSL}
}

// Agents returns the embedded agent update kernel.
func Agents() gpu.Source {
	return gpu.Source{Name: AgentsName, Text: agentsGLSL}
}

// Load returns both kernels. With an empty dir the embedded sources are
// used, otherwise decay.comp and agents.comp are read from dir.
func Load(dir string) (decay, agents gpu.Source, err error) {
	if dir == "" {
		return Decay(), Agents(), nil
	}
	decay, err = readSource(dir, DecayName)
	if err != nil {
		return gpu.Source{}, gpu.Source{}, err
	}
	agents, err = readSource(dir, AgentsName)
	if err != nil {
		return gpu.Source{}, gpu.Source{}, err
	}
	return decay, agents, nil
}

func readSource(dir, name string) (gpu.Source, error) {
	path := filepath.Join(dir, name+".comp")
	data, err := os.ReadFile(path)
	if err != nil {
		return gpu.Source{}, fmt.Errorf("reading kernel source: %w", err)
	}
	return gpu.Source{Name: name, Text: string(data)}, nil
}
