package rules

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Result describes one evaluation. Rule names are listed in evaluation order.
type Result struct {
	Policy  string
	Fired   []string
	Skipped []string
	Failed  []string
}

// Changed reports whether any rule ran its action.
func (r Result) Changed() bool {
	return len(r.Fired) > 0
}

func (r *Result) merge(other Result) {
	r.Fired = append(r.Fired, other.Fired...)
	r.Skipped = append(r.Skipped, other.Skipped...)
	r.Failed = append(r.Failed, other.Failed...)
}

// Policy is a named, immutable, ordered set of rules.
type Policy struct {
	name  string
	rules []Rule
}

// NewPolicy validates rules and orders them by descending priority. Rules with
// equal priority keep their declaration order. An empty rule list is allowed.
func NewPolicy(name string, rules ...Rule) (*Policy, error) {
	if name == "" {
		return nil, ErrPolicyNameRequired
	}

	seen := make(map[string]struct{}, len(rules))
	ordered := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("policy %q: %w", name, err)
		}
		if _, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("policy %q: duplicate rule %q", name, r.Name)
		}
		seen[r.Name] = struct{}{}
		ordered = append(ordered, r)
	}

	slices.SortStableFunc(ordered, func(a, b Rule) int {
		return cmp.Compare(b.Priority, a.Priority)
	})

	return &Policy{name: name, rules: ordered}, nil
}

// MustPolicy is NewPolicy for statically declared policies. It panics on error.
func MustPolicy(name string, rules ...Rule) *Policy {
	p, err := NewPolicy(name, rules...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Policy) Name() string { return p.name }

func (p *Policy) Len() int { return len(p.rules) }

// Rules returns the rules in evaluation order.
func (p *Policy) Rules() []Rule {
	return slices.Clone(p.rules)
}

// Evaluate applies every rule in order to ctx. A failing rule is recorded in
// Result.Failed and its action's writes are discarded; the remaining rules
// still run.
// The returned error joins one *RuleError per failed rule.
func (p *Policy) Evaluate(ctx Context) (Result, error) {
	res := Result{Policy: p.name}
	if ctx == nil {
		return res, ErrContextRequired
	}

	var errs []error
	for _, r := range p.rules {
		fired, err := r.apply(ctx)
		switch {
		case err != nil:
			res.Failed = append(res.Failed, r.Name)
			errs = append(errs, &RuleError{Policy: p.name, Rule: r.Name, Err: err})
		case fired:
			res.Fired = append(res.Fired, r.Name)
		default:
			res.Skipped = append(res.Skipped, r.Name)
		}
	}
	return res, errors.Join(errs...)
}

// Chain evaluates several policies in order against the same context, so later
// policies observe writes made by earlier ones.
type Chain []*Policy

func (c Chain) Evaluate(ctx Context) (Result, error) {
	var (
		res  Result
		errs []error
	)
	names := make([]string, 0, len(c))
	for _, p := range c {
		if p == nil {
			continue
		}
		names = append(names, p.name)
		r, err := p.Evaluate(ctx)
		res.merge(r)
		if err != nil {
			errs = append(errs, err)
		}
	}
	res.Policy = strings.Join(names, ",")
	return res, errors.Join(errs...)
}
