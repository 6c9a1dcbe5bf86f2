package policy

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/drblury/routeflow/internal/rules"
)

var ErrPolicyNotFound = errors.New("policy: not found")

// Registry holds the active policies by name. Policies are immutable, so
// readers keep a consistent view even while Replace swaps the set.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]*rules.Policy
}

func NewRegistry(policies ...*rules.Policy) *Registry {
	r := &Registry{policies: make(map[string]*rules.Policy, len(policies))}
	for _, p := range policies {
		r.policies[p.Name()] = p
	}
	return r
}

// Register adds p, replacing any policy with the same name.
func (r *Registry) Register(p *rules.Policy) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.Name()] = p
}

// Replace swaps the whole set in one step.
func (r *Registry) Replace(policies []*rules.Policy) {
	next := make(map[string]*rules.Policy, len(policies))
	for _, p := range policies {
		next[p.Name()] = p
	}
	r.mu.Lock()
	r.policies = next
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (*rules.Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[name]
	return p, ok
}

// Names returns the registered policy names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.policies)
}

// Chain resolves names into a chain evaluated in the given order.
func (r *Registry) Chain(names ...string) (rules.Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain := make(rules.Chain, 0, len(names))
	for _, name := range names {
		p, ok := r.policies[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrPolicyNotFound, name)
		}
		chain = append(chain, p)
	}
	return chain, nil
}

// Evaluate runs the named policy against ctx.
func (r *Registry) Evaluate(name string, ctx rules.Context) (rules.Result, error) {
	p, ok := r.Get(name)
	if !ok {
		return rules.Result{Policy: name}, fmt.Errorf("%w: %q", ErrPolicyNotFound, name)
	}
	return p.Evaluate(ctx)
}
