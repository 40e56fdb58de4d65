package catalog

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// Catalog is an in-memory plan catalog. It implements subscription.PlanCatalog.
// Plans are copied in and out, so callers cannot mutate the catalog by accident.
type Catalog struct {
	mu    sync.RWMutex
	plans map[string]subscription.Plan
}

// New validates the plans and returns a catalog holding copies of them.
func New(plans ...subscription.Plan) (*Catalog, error) {
	c := &Catalog{plans: make(map[string]subscription.Plan, len(plans))}
	for _, p := range plans {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePlan, p.ID)
		}
		c.plans[p.ID] = clonePlan(p)
	}
	return c, nil
}

// Plan returns the plan with the given ID or subscription.ErrPlanNotFound.
func (c *Catalog) Plan(_ context.Context, id string) (subscription.Plan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.plans[id]
	if !ok {
		return subscription.Plan{}, fmt.Errorf("%w: %q", subscription.ErrPlanNotFound, id)
	}
	return clonePlan(p), nil
}

// List returns every plan ordered by ID.
func (c *Catalog) List(_ context.Context) []subscription.Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]subscription.Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, clonePlan(p))
	}
	slices.SortFunc(out, func(a, b subscription.Plan) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Put adds or replaces a plan, e.g. to discontinue it.
func (c *Catalog) Put(p subscription.Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.plans[p.ID] = clonePlan(p)
	c.mu.Unlock()
	return nil
}

// Replace swaps the whole plan set atomically, e.g. after reloading a file.
func (c *Catalog) Replace(plans ...subscription.Plan) error {
	next, err := New(plans...)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.plans = next.plans
	c.mu.Unlock()
	return nil
}

func clonePlan(p subscription.Plan) subscription.Plan {
	p.Limits = maps.Clone(p.Limits)
	p.Overage = maps.Clone(p.Overage)
	p.Regions = slices.Clone(p.Regions)
	return p
}
