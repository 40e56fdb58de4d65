package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// Store accumulates per-period usage counters.
type Store interface {
	Get(ctx context.Context, tenantID uuid.UUID, metric subscription.Metric) (int64, error)
	All(ctx context.Context, tenantID uuid.UUID) ([]Record, error)
	Increment(ctx context.Context, tenantID uuid.UUID, metric subscription.Metric, delta int64) (int64, error)
	// Reset zeroes every counter of the tenant and starts a new period.
	Reset(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) error
}

type memoryTenant struct {
	periodStart time.Time
	values      map[subscription.Metric]int64
}

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*memoryTenant
}

// NewMemoryStore creates an empty in-memory usage store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[uuid.UUID]*memoryTenant)}
}

func (s *MemoryStore) Get(_ context.Context, tenantID uuid.UUID, metric subscription.Metric) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tenants[tenantID]; ok {
		return t.values[metric], nil
	}
	return 0, nil
}

func (s *MemoryStore) All(_ context.Context, tenantID uuid.UUID) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, nil
	}
	out := make([]Record, 0, len(t.values))
	for m, v := range t.values {
		out = append(out, Record{TenantID: tenantID, Metric: m, Value: v, PeriodStart: t.periodStart})
	}
	return out, nil
}

func (s *MemoryStore) Increment(_ context.Context, tenantID uuid.UUID, metric subscription.Metric, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[tenantID]
	if !ok {
		t = &memoryTenant{values: make(map[subscription.Metric]int64)}
		s.tenants[tenantID] = t
	}
	t.values[metric] += delta
	return t.values[metric], nil
}

func (s *MemoryStore) Reset(_ context.Context, tenantID uuid.UUID, periodStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tenants[tenantID] = &memoryTenant{
		periodStart: periodStart,
		values:      make(map[subscription.Metric]int64),
	}
	return nil
}
