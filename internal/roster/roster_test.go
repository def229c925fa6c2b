package roster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRoster = `
agents:
  - id: a1
    name: Ada
    skills:
      Technical: 0.9
      Legal: 0.1
  - id: a2
    name: Ben
    max_capacity: 3
    current_capacity: 1
    skills:
      Billing: 0.7
`

func TestParse(t *testing.T) {
	agents, err := Parse([]byte(sampleRoster), 5)
	require.NoError(t, err)
	require.Len(t, agents, 2)

	assert.Equal(t, "a1", agents[0].ID)
	assert.Equal(t, 5, agents[0].MaxCapacity)
	assert.Equal(t, 5, agents[0].CurrentCapacity)
	assert.Equal(t, 0.9, agents[0].Skill(types.CategoryTechnical))

	assert.Equal(t, 3, agents[1].MaxCapacity)
	assert.Equal(t, 1, agents[1].CurrentCapacity)
	assert.Equal(t, 0.0, agents[1].Skill(types.CategoryTechnical))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "agents: []"},
		{"missing id", "agents:\n  - name: x\n"},
		{"duplicate id", "agents:\n  - id: a\n  - id: a\n"},
		{"unknown category", "agents:\n  - id: a\n    skills:\n      Sales: 0.5\n"},
		{"bad yaml", "agents: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), 5)
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRoster), 0o644))

	agents, err := Load(path, 4)
	require.NoError(t, err)
	assert.Len(t, agents, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), 4)
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	agents := Default(5)

	require.Len(t, agents, 6)
	assert.Equal(t, "Alice", agents[0].Name)
	assert.Equal(t, "Frank", agents[5].Name)
	for _, a := range agents {
		assert.Equal(t, 5, a.MaxCapacity)
		assert.Equal(t, 5, a.CurrentCapacity)
	}
	assert.Equal(t, 0.9, agents[4].Skill(types.CategoryLegal))
}
