package rules

// Rule is a guarded assignment. A nil When always holds.
type Rule struct {
	Name     string
	Priority int
	When     Predicate
	Then     Action
}

func (r Rule) validate() error {
	if r.Name == "" {
		return ErrRuleNameRequired
	}
	if r.Then == nil {
		return ErrActionRequired
	}
	return nil
}

// apply evaluates the guard and runs the action when it holds. The action
// writes to a staging layer that reaches ctx only when it succeeds.
func (r Rule) apply(ctx Context) (fired bool, err error) {
	if r.When != nil {
		ok, err := r.When(ctx)
		if err != nil || !ok {
			return false, err
		}
	}
	staged := newStagedContext(ctx)
	if err := r.Then(staged); err != nil {
		return false, err
	}
	if err := staged.commit(); err != nil {
		return false, err
	}
	return true, nil
}

// RuleBuilder assembles a Rule fluently:
//
//	rule, err := rules.NewRule("default-process-name").
//		When(rules.Unset("tracking.ProcessName")).
//		Then(rules.Set("tracking.ProcessName", "Check")).
//		Build()
type RuleBuilder struct {
	rule    Rule
	actions []Action
}

func NewRule(name string) *RuleBuilder {
	return &RuleBuilder{rule: Rule{Name: name}}
}

func (b *RuleBuilder) Priority(p int) *RuleBuilder {
	b.rule.Priority = p
	return b
}

// When sets the guard. Calling it again replaces the previous guard.
func (b *RuleBuilder) When(p Predicate) *RuleBuilder {
	b.rule.When = p
	return b
}

// Then appends an action. Multiple actions run in call order.
func (b *RuleBuilder) Then(a Action) *RuleBuilder {
	if a != nil {
		b.actions = append(b.actions, a)
	}
	return b
}

func (b *RuleBuilder) Build() (Rule, error) {
	r := b.rule
	switch len(b.actions) {
	case 0:
	case 1:
		r.Then = b.actions[0]
	default:
		r.Then = Sequence(b.actions...)
	}
	if err := r.validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// MustBuild is Build for statically declared rules. It panics on error.
func (b *RuleBuilder) MustBuild() Rule {
	r, err := b.Build()
	if err != nil {
		panic(err)
	}
	return r
}
