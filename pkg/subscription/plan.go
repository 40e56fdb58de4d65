package subscription

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Plan describes a subscription plan, its price and its metered limits.
type Plan struct {
	ID                 string                 `yaml:"id"`
	Name               string                 `yaml:"name"`
	Price              Money                  `yaml:"price"`
	Interval           BillingInterval        `yaml:"interval"`
	Limits             map[Metric]Limit       `yaml:"limits,omitempty"`  // missing metric means unlimited
	Overage            map[Metric]OverageRate `yaml:"overage,omitempty"` // metrics billed beyond the included quantity
	IsActive           bool                   `yaml:"active"`
	Discontinued       bool                   `yaml:"discontinued"`
	RequiresCompliance bool                   `yaml:"requires_compliance"`
	GracePeriodDays    int                    `yaml:"grace_period_days"`
	Regions            []string               `yaml:"regions,omitempty"` // empty allows every region
	TrialDays          int                    `yaml:"trial_days"`
}

// Available reports whether new subscriptions or plan changes may target the plan.
func (p Plan) Available() bool {
	return p.IsActive && !p.Discontinued
}

// AllowsRegion reports whether tenants from region may subscribe.
func (p Plan) AllowsRegion(region string) bool {
	if len(p.Regions) == 0 {
		return true
	}
	return slices.ContainsFunc(p.Regions, func(r string) bool { return strings.EqualFold(r, region) })
}

// LimitFor returns the limit of metric, unlimited when the plan does not define one.
func (p Plan) LimitFor(m Metric) Limit {
	if l, ok := p.Limits[m]; ok {
		return l
	}
	return Limit{Soft: Unlimited, Hard: Unlimited}
}

// Validate checks the plan definition.
func (p Plan) Validate() error {
	var errs []error
	if p.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if !p.Interval.Valid() {
		errs = append(errs, fmt.Errorf("unknown interval %q", p.Interval))
	}
	if p.Price.Amount < 0 {
		errs = append(errs, errors.New("price must not be negative"))
	}
	if p.GracePeriodDays < 0 || p.TrialDays < 0 {
		errs = append(errs, errors.New("grace and trial days must not be negative"))
	}
	for m, l := range p.Limits {
		if l.Soft != Unlimited && l.Hard != Unlimited && l.Soft > l.Hard {
			errs = append(errs, fmt.Errorf("soft limit of %s exceeds hard limit", m))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: plan %q: %w", ErrInvalidPlan, p.ID, errors.Join(errs...))
	}
	return nil
}
