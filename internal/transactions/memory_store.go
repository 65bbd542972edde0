package transactions

import (
	"context"
	"sort"
	"sync"

	"github.com/mbd888/walletguard/internal/pagination"
)

// MemoryStore is an in-memory analysis store for demo/development mode.
type MemoryStore struct {
	records map[string]*Analysis
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Analysis)}
}

func (m *MemoryStore) Create(_ context.Context, a *Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[a.ID] = clone(a)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(a), nil
}

func (m *MemoryStore) List(_ context.Context, limit int, after *pagination.Cursor) ([]*Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Analysis, 0, len(m.records))
	for _, a := range m.records {
		if after.After(a.Timestamp, a.ID) {
			result = append(result, clone(a))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp > result[j].Timestamp
		}
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status Status) (*Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	a.Status = status
	return clone(a), nil
}

func (m *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*Analysis, 0, len(m.records))
	for _, a := range m.records {
		all = append(all, a)
	}
	return ComputeStats(all), nil
}

func clone(a *Analysis) *Analysis {
	cp := *a
	cp.Threats = append([]string(nil), a.Threats...)
	if cp.Threats == nil {
		cp.Threats = []string{}
	}
	if a.ContractAnalysis != nil {
		r := *a.ContractAnalysis
		r.SuspiciousFunctions = append([]string{}, a.ContractAnalysis.SuspiciousFunctions...)
		r.RiskIndicators = append([]string{}, a.ContractAnalysis.RiskIndicators...)
		cp.ContractAnalysis = &r
	}
	return &cp
}

var _ Store = (*MemoryStore)(nil)
