package subscription

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/audit"
)

// MemoryStore is an in-process Store for tests and single-node setups.
// Apply runs under one mutex, so every change is atomic.
type MemoryStore struct {
	mu            sync.RWMutex
	subscriptions map[uuid.UUID]Subscription
	attempts      map[uuid.UUID][]PaymentAttempt
	credits       map[uuid.UUID][]Credit
	audit         *audit.MemoryStorage
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[uuid.UUID]Subscription),
		attempts:      make(map[uuid.UUID][]PaymentAttempt),
		credits:       make(map[uuid.UUID][]Credit),
		audit:         audit.NewMemoryStorage(),
	}
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return Subscription{}, ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

func (s *MemoryStore) GetByTenant(_ context.Context, tenantID uuid.UUID) (Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.liveForTenant(tenantID); ok {
		return sub.Clone(), nil
	}
	return Subscription{}, ErrSubscriptionNotFound
}

func (s *MemoryStore) Apply(ctx context.Context, change Change) error {
	for i := range change.Audit {
		if err := change.Audit[i].Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sub := change.Subscription
	current, exists := s.subscriptions[sub.ID]

	switch {
	case change.Create:
		if exists {
			return ErrDuplicateSubscription
		}
		if _, live := s.liveForTenant(sub.TenantID); live && !sub.Status.Terminal() {
			return ErrDuplicateSubscription
		}
	case !exists:
		return ErrSubscriptionNotFound
	case current.Version != change.ExpectedVersion:
		return ErrConcurrentUpdate
	}

	s.subscriptions[sub.ID] = sub.Clone()
	s.attempts[sub.ID] = append(s.attempts[sub.ID], change.Attempts...)
	s.credits[sub.ID] = append(s.credits[sub.ID], change.NewCredits...)

	if len(change.ConsumedCredits) > 0 {
		usedAt := sub.UpdatedAt
		for i, c := range s.credits[sub.ID] {
			if slices.Contains(change.ConsumedCredits, c.ID) {
				s.credits[sub.ID][i].UsedAt = timePtr(usedAt)
			}
		}
	}

	if len(change.Audit) > 0 {
		// Entries were validated above, Append cannot fail.
		_ = s.audit.Append(ctx, change.Audit...)
	}
	return nil
}

func (s *MemoryStore) ListDue(_ context.Context, filter DueFilter) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Subscription
	for _, sub := range s.subscriptions {
		if filter.After != uuid.Nil && bytes.Compare(sub.ID[:], filter.After[:]) <= 0 {
			continue
		}
		if filter.Matches(sub) {
			out = append(out, sub.Clone())
		}
	}

	slices.SortFunc(out, func(a, b Subscription) int { return bytes.Compare(a.ID[:], b.ID[:]) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Attempts(_ context.Context, subscriptionID uuid.UUID) ([]PaymentAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.attempts[subscriptionID]), nil
}

func (s *MemoryStore) Credits(_ context.Context, subscriptionID uuid.UUID, now time.Time) ([]Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Credit
	for _, c := range s.credits[subscriptionID] {
		if c.Usable(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) AuditTrail(ctx context.Context, criteria audit.Criteria) ([]audit.Entry, error) {
	return s.audit.Query(ctx, criteria)
}

// liveForTenant must be called with s.mu held.
func (s *MemoryStore) liveForTenant(tenantID uuid.UUID) (Subscription, bool) {
	for _, sub := range s.subscriptions {
		if sub.TenantID == tenantID && !sub.Status.Terminal() {
			return sub, true
		}
	}
	return Subscription{}, false
}
