package breaker

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Registry owns one breaker per external dependency.
// It is built once at startup and passed explicitly to the components that need it.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	opts     []Option
}

// NewRegistry creates an empty registry. The options are applied to every
// breaker registered afterwards.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		opts:     opts,
	}
}

// NewDefaultRegistry creates a registry with the identity and payment
// dependencies registered from cfg.
func NewDefaultRegistry(cfg RegistryConfig, opts ...Option) *Registry {
	r := NewRegistry(opts...)
	r.Register(IdentityService, cfg.Identity)
	r.Register(PaymentService, cfg.Payment)
	return r
}

// Register creates a breaker for name, replacing any existing one.
func (r *Registry) Register(name string, cfg Config, opts ...Option) *Breaker {
	b := New(name, cfg, append(slices.Clone(r.opts), opts...)...)

	r.mu.Lock()
	r.breakers[name] = b
	r.mu.Unlock()

	return b
}

// Get returns the breaker registered for name.
func (r *Registry) Get(name string) (*Breaker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.breakers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDependency, name)
	}
	return b, nil
}

// MustGet is like Get but panics for unregistered names.
func (r *Registry) MustGet(name string) *Breaker {
	b, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return b
}

// Call runs op through the breaker registered for name.
func (r *Registry) Call(ctx context.Context, name string, op func(ctx context.Context) error) error {
	b, err := r.Get(name)
	if err != nil {
		return err
	}
	return b.Call(ctx, op)
}

// Names returns the registered dependency names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// States returns a snapshot of every registered breaker keyed by name.
func (r *Registry) States() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[string]Stats, len(r.breakers))
	for name, b := range r.breakers {
		states[name] = b.Stats()
	}
	return states
}

// Reset closes the breaker registered for name.
func (r *Registry) Reset(name string) error {
	b, err := r.Get(name)
	if err != nil {
		return err
	}
	b.Reset()
	return nil
}

// ResetAll closes every registered breaker.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.breakers {
		b.Reset()
	}
}
