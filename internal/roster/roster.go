// Package roster loads the initial set of agents.
package roster

import (
	"fmt"
	"os"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"gopkg.in/yaml.v3"
)

// File is the on-disk roster layout
type File struct {
	Agents []Entry `yaml:"agents"`
}

// Entry describes one agent. Omitted capacities fall back to the default
// maximum, and a new agent starts with all of its capacity free.
type Entry struct {
	ID              string             `yaml:"id"`
	Name            string             `yaml:"name"`
	Skills          map[string]float64 `yaml:"skills"`
	MaxCapacity     *int               `yaml:"max_capacity"`
	CurrentCapacity *int               `yaml:"current_capacity"`
}

// Load reads a YAML roster from path
func Load(path string, defaultMaxCapacity int) ([]types.Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster %s: %w", path, err)
	}
	return Parse(data, defaultMaxCapacity)
}

// Parse decodes a YAML roster
func Parse(data []byte, defaultMaxCapacity int) ([]types.Agent, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	if len(f.Agents) == 0 {
		return nil, fmt.Errorf("roster has no agents")
	}

	agents := make([]types.Agent, 0, len(f.Agents))
	seen := make(map[string]bool, len(f.Agents))
	for i, e := range f.Agents {
		if e.ID == "" {
			return nil, fmt.Errorf("roster entry %d: id is required", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("roster entry %d: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true

		skills := make(map[types.Category]float64, len(e.Skills))
		for name, v := range e.Skills {
			c := types.Category(name)
			if !c.Valid() {
				return nil, fmt.Errorf("roster entry %q: unknown category %q", e.ID, name)
			}
			skills[c] = v
		}

		maxCap := defaultMaxCapacity
		if e.MaxCapacity != nil {
			maxCap = *e.MaxCapacity
		}
		current := maxCap
		if e.CurrentCapacity != nil {
			current = *e.CurrentCapacity
		}

		agents = append(agents, types.Agent{
			ID:              e.ID,
			Name:            e.Name,
			Skills:          skills,
			CurrentCapacity: current,
			MaxCapacity:     maxCap,
		})
	}
	return agents, nil
}

// Default returns the built-in sample agents, each with maxCapacity free slots
func Default(maxCapacity int) []types.Agent {
	sample := []struct {
		id, name                  string
		technical, billing, legal float64
	}{
		{"agent_1", "Alice", 0.9, 0.1, 0.0},
		{"agent_2", "Bob", 0.8, 0.2, 0.0},
		{"agent_3", "Carol", 0.1, 0.9, 0.0},
		{"agent_4", "Dave", 0.0, 0.8, 0.2},
		{"agent_5", "Eve", 0.0, 0.1, 0.9},
		{"agent_6", "Frank", 0.5, 0.3, 0.2},
	}

	agents := make([]types.Agent, 0, len(sample))
	for _, s := range sample {
		agents = append(agents, types.Agent{
			ID:   s.id,
			Name: s.name,
			Skills: map[types.Category]float64{
				types.CategoryTechnical: s.technical,
				types.CategoryBilling:   s.billing,
				types.CategoryLegal:     s.legal,
			},
			CurrentCapacity: maxCapacity,
			MaxCapacity:     maxCapacity,
		})
	}
	return agents
}
