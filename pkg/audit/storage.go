package audit

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Storage persists audit entries. Implementations must be append-only.
type Storage interface {
	Append(ctx context.Context, entries ...Entry) error
	Query(ctx context.Context, criteria Criteria) ([]Entry, error)
}

// Criteria selects audit entries. Zero fields match everything.
type Criteria struct {
	SubscriptionID uuid.UUID
	TenantID       uuid.UUID
	Actions        []string
	Since          time.Time
	Until          time.Time
	Limit          int
}

// Match reports whether the entry satisfies the criteria, ignoring Limit.
func (c Criteria) Match(e Entry) bool {
	if c.SubscriptionID != uuid.Nil && e.SubscriptionID != c.SubscriptionID {
		return false
	}
	if c.TenantID != uuid.Nil && e.TenantID != c.TenantID {
		return false
	}
	if len(c.Actions) > 0 && !slices.Contains(c.Actions, e.Action) {
		return false
	}
	if !c.Since.IsZero() && e.CreatedAt.Before(c.Since) {
		return false
	}
	if !c.Until.IsZero() && !e.CreatedAt.Before(c.Until) {
		return false
	}
	return true
}

// MemoryStorage keeps entries in process memory, in insertion order.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Append(_ context.Context, entries ...Entry) error {
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *MemoryStorage) Query(_ context.Context, criteria Criteria) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.entries {
		if !criteria.Match(e) {
			continue
		}
		out = append(out, e)
		if criteria.Limit > 0 && len(out) == criteria.Limit {
			break
		}
	}
	return out, nil
}
