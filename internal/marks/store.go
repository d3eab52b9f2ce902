package marks

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps marks in process; used for tests and the memory mode.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[Key]Entry{}, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, k Key) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[k]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return clone(e), nil
}

func (m *MemoryStore) Upsert(_ context.Context, entries []Entry) (UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res UpsertResult
	ts := m.now().Unix()
	for _, e := range entries {
		k := e.Key()
		if old, ok := m.entries[k]; ok && old.Submitted {
			res.Locked = append(res.Locked, k)
			continue
		}
		e = clone(e)
		e.Submitted = false
		e.UpdatedAt = ts
		m.entries[k] = e
		res.Saved++
	}
	return res, nil
}

func (m *MemoryStore) List(_ context.Context, f Filter) ([]Entry, error) {
	m.mu.RLock()
	out := make([]Entry, 0)
	for _, e := range m.entries {
		if f.match(e) {
			out = append(out, clone(e))
		}
	}
	m.mu.RUnlock()
	sortEntries(out)
	return out, nil
}

func (m *MemoryStore) Submit(_ context.Context, subjectID string, c Component) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if k.SubjectID != subjectID || k.Component != c || e.Submitted {
			continue
		}
		e.Submitted = true
		m.entries[k] = e
		n++
	}
	return n, nil
}

func clone(e Entry) Entry {
	if e.Values != nil {
		e.Values = append([]float64(nil), e.Values...)
	}
	return e
}

// sortEntries orders by subject, student, component to match the SQL store.
func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		a, b := es[i], es[j]
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		return a.Component < b.Component
	})
}

// MemoryCriteriaStore holds named criteria in process.
type MemoryCriteriaStore struct {
	mu    sync.RWMutex
	items map[string]Criteria
}

func NewMemoryCriteriaStore() *MemoryCriteriaStore {
	return &MemoryCriteriaStore{items: map[string]Criteria{}}
}

func (m *MemoryCriteriaStore) GetCriteria(_ context.Context, name string) (Criteria, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.items[name]; ok {
		return c, nil
	}
	return DefaultCriteria(), nil
}

func (m *MemoryCriteriaStore) PutCriteria(_ context.Context, name string, c Criteria) error {
	m.mu.Lock()
	m.items[name] = c
	m.mu.Unlock()
	return nil
}
