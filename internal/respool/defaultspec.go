package respool

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/qualgent/testorch/internal/core"
)

// DeviceSpec describes one device within an AgentSpec. Its JSON tags make
// AgentSpec/DeviceSpec usable directly as the on-disk pool-spec format read
// by LoadSpec.
type DeviceSpec struct {
	ID     string      `json:"id"`
	Target core.Target `json:"target"`
}

// AgentSpec describes one agent's device composition for Seed/SeedDefault/LoadSpec.
type AgentSpec struct {
	ID      string       `json:"id"`
	Devices []DeviceSpec `json:"devices"`
}

// SeedDefault populates p with the default pool spec of spec §6.5: five
// agents, fifteen devices, in the exact insertion order the spec lists
// them (load bearing for deterministic tie-breaks).
func SeedDefault(p *Pool) {
	Seed(p, defaultSpecs())
}

// LoadSpec reads an AgentSpec list from a JSON file at path, in the same
// shape SeedDefault builds in code: a top-level array of
// {"id": "agent-1", "devices": [{"id": "emulator-1", "target": "emulator"}, ...]}.
func LoadSpec(path string) ([]AgentSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading pool spec %s: %v", core.ErrInternal, path, err)
	}

	var specs []AgentSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("%w: parsing pool spec %s: %v", core.ErrInternal, path, err)
	}
	return specs, nil
}

func defaultSpecs() []AgentSpec {
	return []AgentSpec{
		{ID: "agent-1", Devices: []DeviceSpec{device(core.TargetEmulator, 1), device(core.TargetDevice, 1)}},
		{ID: "agent-2", Devices: []DeviceSpec{device(core.TargetEmulator, 2), device(core.TargetDevice, 2), device(core.TargetBrowserstack, 1), device(core.TargetBrowserstack, 2)}},
		{ID: "agent-3", Devices: []DeviceSpec{device(core.TargetEmulator, 3), device(core.TargetDevice, 3), device(core.TargetBrowserstack, 3)}},
		{ID: "agent-4", Devices: []DeviceSpec{device(core.TargetEmulator, 4), device(core.TargetDevice, 4)}},
		{ID: "agent-5", Devices: []DeviceSpec{device(core.TargetEmulator, 5), device(core.TargetDevice, 5), device(core.TargetBrowserstack, 4), device(core.TargetBrowserstack, 5)}},
	}
}

func device(target core.Target, index int) DeviceSpec {
	return DeviceSpec{ID: fmt.Sprintf("%s-%d", target, index), Target: target}
}

// Seed populates p from specs, in order.
func Seed(p *Pool, specs []AgentSpec) {
	for _, spec := range specs {
		agent := &core.Agent{ID: spec.ID, Status: core.AgentOnline}
		for _, d := range spec.Devices {
			agent.Devices = append(agent.Devices, &core.Device{
				ID:      d.ID,
				Target:  d.Target,
				Status:  core.DeviceAvailable,
				AgentID: spec.ID,
			})
		}
		p.AddAgent(agent)
	}
}
