package respool_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qualgent/testorch/internal/core"
	"github.com/qualgent/testorch/internal/respool"
)

func TestSeedDefault_Composition(t *testing.T) {
	p := respool.New()
	respool.SeedDefault(p)

	agents, devices := p.Stats()
	assert.Equal(t, 5, agents)
	assert.Equal(t, 15, devices)
}

func TestFindAvailable_TieBreaksOnInsertionOrder(t *testing.T) {
	p := respool.New()
	respool.SeedDefault(p)

	agent, device, ok := p.FindAvailable(core.TargetEmulator)
	require.True(t, ok)
	assert.Equal(t, "agent-1", agent.ID)
	assert.Equal(t, "emulator-1", device.ID)
}

func TestAcquireRelease_RecomputesAgentStatus(t *testing.T) {
	p := respool.New()
	respool.SeedDefault(p)

	_, device, ok := p.FindAvailable(core.TargetEmulator)
	require.True(t, ok)
	require.NoError(t, p.Acquire(device.ID, []string{"job_1"}))

	devices := p.Devices()
	var found core.DeviceView
	for _, d := range devices {
		if d.ID == device.ID {
			found = d
		}
	}
	assert.Equal(t, core.DeviceBusy, found.Status)
	assert.Equal(t, []string{"job_1"}, found.CurrentJobs)

	require.NoError(t, p.Release(device.ID))
	devices = p.Devices()
	for _, d := range devices {
		if d.ID == device.ID {
			found = d
		}
	}
	assert.Equal(t, core.DeviceAvailable, found.Status)
	assert.Empty(t, found.CurrentJobs)
}

func TestFindAvailable_NoneForExhaustedTarget(t *testing.T) {
	p := respool.New()
	respool.SeedDefault(p)

	// Saturate all five browserstack devices.
	for {
		_, device, ok := p.FindAvailable(core.TargetBrowserstack)
		if !ok {
			break
		}
		require.NoError(t, p.Acquire(device.ID, nil))
	}

	_, _, ok := p.FindAvailable(core.TargetBrowserstack)
	assert.False(t, ok)

	// Emulators remain untouched.
	_, _, ok = p.FindAvailable(core.TargetEmulator)
	assert.True(t, ok)
}

func TestLoadSpec_ReadsAgentsFromJSONFile(t *testing.T) {
	specs := []respool.AgentSpec{
		{ID: "custom-1", Devices: []respool.DeviceSpec{{ID: "emulator-1", Target: core.TargetEmulator}}},
	}
	data, err := json.Marshal(specs)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "pool.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := respool.LoadSpec(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "custom-1", loaded[0].ID)

	p := respool.New()
	respool.Seed(p, loaded)

	agents, devices := p.Stats()
	assert.Equal(t, 1, agents)
	assert.Equal(t, 1, devices)
}

func TestLoadSpec_MissingFileIsInternalError(t *testing.T) {
	_, err := respool.LoadSpec(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.ErrorIs(t, err, core.ErrInternal)
}
