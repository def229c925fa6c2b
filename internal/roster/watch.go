package roster

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Registry is the agent registry a reload is applied to
type Registry interface {
	Agent(agentID string) (types.Agent, bool)
	AddAgent(a types.Agent) error
}

// Watcher reapplies the roster file whenever it changes on disk
type Watcher struct {
	path       string
	defaultMax int
	registry   Registry
	watcher    *fsnotify.Watcher
	logger     zerolog.Logger
}

// NewWatcher watches the directory holding path, so editors that replace the
// file instead of writing it in place are noticed too.
func NewWatcher(path string, defaultMaxCapacity int, registry Registry, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	return &Watcher{
		path:       path,
		defaultMax: defaultMaxCapacity,
		registry:   registry,
		watcher:    fw,
		logger:     logger.With().Str("component", "roster").Logger(),
	}, nil
}

// Start handles file events until ctx is done
func (w *Watcher) Start(ctx context.Context) {
	defer w.watcher.Close()
	w.logger.Info().Str("path", w.path).Msg("watching roster")

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if n, err := w.Reload(); err != nil {
				w.logger.Error().Err(err).Msg("roster reload failed, keeping current agents")
			} else {
				w.logger.Info().Int("agents", n).Msg("roster reloaded")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("roster watcher error")
		}
	}
}

// Reload applies the roster file and returns how many agents it holds.
// Agents missing from the file are kept.
func (w *Watcher) Reload() (int, error) {
	agents, err := Load(w.path, w.defaultMax)
	if err != nil {
		return 0, err
	}
	for _, a := range agents {
		if err := w.registry.AddAgent(Merge(w.registry, a)); err != nil {
			return 0, err
		}
	}
	return len(agents), nil
}

// Merge carries the in-flight load of a known agent over to its new
// definition, so a reload never hands out slots that are already taken.
func Merge(registry Registry, next types.Agent) types.Agent {
	prev, ok := registry.Agent(next.ID)
	if !ok {
		return next
	}
	used := prev.MaxCapacity - prev.CurrentCapacity
	next.CurrentCapacity = next.MaxCapacity - used
	if next.CurrentCapacity < 0 {
		next.CurrentCapacity = 0
	}
	return next
}
