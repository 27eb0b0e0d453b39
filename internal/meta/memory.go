package meta

import (
	"context"
	"slices"
	"sync"

	"git.home.luguber.info/inful/tocbuilder/internal/util/sets"
)

// Memory is an in-process Store.
type Memory struct {
	mu         sync.RWMutex
	sources    map[string]string
	restricted map[string][]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sources:    make(map[string]string),
		restricted: make(map[string][]string),
	}
}

func (m *Memory) RecordSourcePath(_ context.Context, target, origin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[target] = origin
	return nil
}

func (m *Memory) RecordRestrictedAccess(_ context.Context, file string, access []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restricted[file] = appendUnique(m.restricted[file], access)
	return nil
}

func (m *Memory) SourcePath(_ context.Context, file string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	origin, ok := m.sources[file]
	return origin, ok, nil
}

func (m *Memory) RestrictedAccess(_ context.Context, file string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.restricted[file]), nil
}

func (m *Memory) Files(_ context.Context) ([]FileMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := sets.New[string]()
	for p := range m.sources {
		paths.Add(p)
	}
	for p := range m.restricted {
		paths.Add(p)
	}
	out := make([]FileMeta, 0, len(paths))
	for _, p := range sets.Sorted(paths) {
		out = append(out, FileMeta{
			Path:             p,
			SourcePath:       m.sources[p],
			RestrictedAccess: slices.Clone(m.restricted[p]),
		})
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
