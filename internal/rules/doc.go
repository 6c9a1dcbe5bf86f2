// Package rules evaluates ordered policies of guarded assignments against a
// mutable message context.
//
// A Rule pairs a Predicate with an Action. A Policy fixes its rule list at
// construction and evaluates every rule in order against one Context: when
// the predicate holds against the current state of the context the action
// runs, so later rules observe earlier writes. Evaluation never stops early.
// A rule whose predicate or action fails is recorded as failed and the
// remaining rules still run; all failures are joined into the returned error.
//
// Policies hold no per-message state and may be shared between goroutines.
// Each message must use its own Context.
package rules
