package backlog

import "github.com/dennisdiepolder/monti/orchestrator/internal/types"

// QueueConfig holds the service level target of one category queue
type QueueConfig struct {
	Category  types.Category
	SLTarget  int // target percentage (e.g., 80)
	SLSeconds int // threshold in seconds (e.g., 60)
}

// DefaultQueueConfigs returns an 80/60 target for every category
func DefaultQueueConfigs() map[types.Category]QueueConfig {
	configs := make(map[types.Category]QueueConfig, len(types.AllCategories))
	for _, c := range types.AllCategories {
		configs[c] = QueueConfig{
			Category:  c,
			SLTarget:  80,
			SLSeconds: 60,
		}
	}
	return configs
}
