package sim

import (
	"fmt"
	"math/rand"

	"github.com/pthm-cable/slime/gpu"
	"github.com/pthm-cable/slime/kernels"
)

// resources are the device objects rebuilt as a unit by Setup and Restart.
type resources struct {
	field  gpu.Field
	agents gpu.Buffer
	size   int
	count  int
}

// newResources allocates and clears a field, generates count agents and
// uploads them. On failure nothing stays allocated.
func newResources(dev gpu.Device, rng *rand.Rand, size, count int) (*resources, error) {
	field, err := dev.NewField(size)
	if err != nil {
		return nil, fmt.Errorf("allocating %dx%d trail field: %w", size, size, err)
	}
	if err := field.Clear(); err != nil {
		field.Destroy()
		return nil, fmt.Errorf("clearing trail field: %w", err)
	}

	agents := GenerateAgents(rng, count, size)
	buf, err := dev.NewBuffer(kernels.AgentStride, agentWords(agents))
	if err != nil {
		field.Destroy()
		return nil, fmt.Errorf("allocating buffer for %d agents: %w", count, err)
	}

	return &resources{field: field, agents: buf, size: size, count: count}, nil
}

// bind attaches the resources to both kernels and pushes the uniforms that
// describe them.
func (r *resources) bind(decay, agents gpu.Kernel) error {
	if err := decay.BindImage(kernels.TrailSlot, r.field); err != nil {
		return err
	}
	if err := agents.BindImage(kernels.TrailSlot, r.field); err != nil {
		return err
	}
	if err := agents.BindBuffer(kernels.AgentSlot, r.agents); err != nil {
		return err
	}
	if err := decay.SetInt(kernels.UniformSize, int32(r.size)); err != nil {
		return err
	}
	if err := agents.SetInt(kernels.UniformSize, int32(r.size)); err != nil {
		return err
	}
	return agents.SetInt(kernels.UniformNumAgents, int32(r.count))
}

func (r *resources) destroy() {
	r.agents.Destroy()
	r.field.Destroy()
}

// bytes returns the device memory held by the resources.
func (r *resources) bytes() int64 {
	return gpu.FieldBytes(r.size) + int64(r.count*AgentBytes)
}
