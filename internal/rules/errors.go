package rules

import (
	"errors"
	"fmt"
)

var (
	ErrTypeMismatch       = errors.New("rules: stored value has an incompatible type")
	ErrRuleNameRequired   = errors.New("rules: rule name is required")
	ErrActionRequired     = errors.New("rules: rule action is required")
	ErrPolicyNameRequired = errors.New("rules: policy name is required")
	ErrContextRequired    = errors.New("rules: context is required")
)

// TypeMismatchError reports a key whose stored value cannot be used as the
// type a predicate or action expected.
type TypeMismatchError struct {
	Key  string
	Want string
	Got  any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("rules: key %q holds %T, want %s", e.Key, e.Got, e.Want)
}

// Is lets errors.Is match ErrTypeMismatch.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// RuleError attributes a failure to the rule that produced it.
type RuleError struct {
	Policy string
	Rule   string
	Err    error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rules: policy %q rule %q: %v", e.Policy, e.Rule, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}
