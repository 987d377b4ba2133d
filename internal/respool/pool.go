// Package respool implements the in-memory, process-local registry of
// agents and devices the Scheduler assigns jobs against (spec §4.3).
// ResourcePool state is never persisted: a restart resets all agents and
// devices to their configured composition, which is why startup recovery
// (spec §4.6) demotes every scheduled/running job back to queued.
package respool

import (
	"fmt"
	"sync"

	"github.com/qualgent/testorch/internal/core"
)

// Pool is the mutable agent/device registry. It is mutated only by the
// Scheduler's single tick goroutine, but the mutex guards the read APIs
// (Devices, Stats) that may be called concurrently from Queue callers.
type Pool struct {
	mu     sync.Mutex
	agents []*core.Agent
}

// New creates an empty pool; use Seed or AddAgent to populate it.
func New() *Pool {
	return &Pool{}
}

// AddAgent registers agent in insertion order. Insertion order is load
// bearing: FindAvailable ties break on it for reproducibility.
func (p *Pool) AddAgent(agent *core.Agent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	agent.RecomputeStatus()
	p.agents = append(p.agents, agent)
}

// FindAvailable returns the first online agent with an available device of
// the given target, scanning in agent insertion order then device
// insertion order, per spec §4.3.
func (p *Pool) FindAvailable(target core.Target) (*core.Agent, *core.Device, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, agent := range p.agents {
		if agent.Status == core.AgentOffline {
			continue
		}
		for _, device := range agent.Devices {
			if device.Target == target && device.Status == core.DeviceAvailable {
				return agent, device, true
			}
		}
	}
	return nil, nil, false
}

// Acquire marks device busy and recomputes its owning agent's status.
func (p *Pool) Acquire(deviceID string, jobs []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	agent, device := p.find(deviceID)
	if device == nil {
		return fmt.Errorf("%w: device %s not found", core.ErrInternal, deviceID)
	}
	device.Status = core.DeviceBusy
	device.CurrentJobs = jobs
	agent.RecomputeStatus()
	return nil
}

// Release marks device available, clears its current jobs, and recomputes
// its owning agent's status.
func (p *Pool) Release(deviceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	agent, device := p.find(deviceID)
	if device == nil {
		return fmt.Errorf("%w: device %s not found", core.ErrInternal, deviceID)
	}
	device.Status = core.DeviceAvailable
	device.CurrentJobs = nil
	agent.RecomputeStatus()
	return nil
}

func (p *Pool) find(deviceID string) (*core.Agent, *core.Device) {
	for _, agent := range p.agents {
		for _, device := range agent.Devices {
			if device.ID == deviceID {
				return agent, device
			}
		}
	}
	return nil, nil
}

// Devices returns a flat snapshot of every device, for the devices() read API.
func (p *Pool) Devices() []core.DeviceView {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []core.DeviceView
	for _, agent := range p.agents {
		for _, device := range agent.Devices {
			jobs := append([]string(nil), device.CurrentJobs...)
			out = append(out, core.DeviceView{
				ID:          device.ID,
				Type:        device.Target,
				Status:      device.Status,
				Target:      device.Target,
				AgentID:     agent.ID,
				CurrentJobs: jobs,
			})
		}
	}
	return out
}

// Stats returns the agent and device counts backing stats().scheduler.
func (p *Pool) Stats() (agents int, devices int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	agents = len(p.agents)
	for _, a := range p.agents {
		devices += len(a.Devices)
	}
	return agents, devices
}
