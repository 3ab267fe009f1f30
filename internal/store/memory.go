package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
)

// MemoryStore is a process-local Store used by tests and --store memory.
type MemoryStore struct {
	mu      sync.RWMutex
	runs    []model.Run
	domains map[string]model.DomainState
	now     func() time.Time
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		domains: make(map[string]model.DomainState),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) LoadRuns(context.Context) ([]model.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Run, len(m.runs))
	copy(out, m.runs)
	return out, nil
}

func (m *MemoryStore) SaveRuns(_ context.Context, runs []model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = make([]model.Run, len(runs))
	copy(m.runs, runs)
	return nil
}

func (m *MemoryStore) GetDomainState(_ context.Context, key string) (*model.DomainState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.domains[key]
	if !ok {
		return nil, nil
	}
	st.Visited = append([]string(nil), st.Visited...)
	return &st, nil
}

func (m *MemoryStore) update(key string, fn func(*model.DomainState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.domains[key]
	st.Key = key
	fn(&st)
	st.UpdatedAt = m.now()
	m.domains[key] = st
}

func (m *MemoryStore) RecordSuccess(_ context.Context, key string, pagesFetched int) error {
	m.update(key, func(st *model.DomainState) {
		at := m.now()
		st.LastSuccess = &at
		st.PagesFetched = pagesFetched
	})
	return nil
}

func (m *MemoryStore) RecordFailure(_ context.Context, key, message string) error {
	m.update(key, func(st *model.DomainState) {
		st.LastFailure = &model.FailureRecord{Message: message, At: m.now()}
	})
	return nil
}

func (m *MemoryStore) AppendVisited(_ context.Context, key string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	m.update(key, func(st *model.DomainState) {
		st.Visited = mergeVisited(st.Visited, urls)
	})
	return nil
}

func (m *MemoryStore) ClearDomain(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.domains, key)
	return nil
}

func (m *MemoryStore) ListDomainStates(context.Context) ([]model.DomainState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.DomainState, 0, len(m.domains))
	for _, st := range m.domains {
		st.Visited = append([]string(nil), st.Visited...)
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
