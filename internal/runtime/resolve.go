package runtime

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/drblury/routeflow/internal/policy"
	"github.com/drblury/routeflow/internal/rules"
	metadatapkg "github.com/drblury/routeflow/internal/runtime/metadata"
)

const (
	outcomeChanged   = "changed"
	outcomeUnchanged = "unchanged"
	outcomeFailed    = "failed"
)

type resolveMetrics struct {
	fired       *prometheus.CounterVec
	failed      *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	poisoned    *prometheus.CounterVec
}

func newResolveMetrics(reg prometheus.Registerer) (*resolveMetrics, error) {
	m := &resolveMetrics{
		fired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routeflow",
			Name:      "rules_fired_total",
			Help:      "Rules whose action ran, by policy and rule.",
		}, []string{"policy", "rule"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routeflow",
			Name:      "rules_failed_total",
			Help:      "Rules whose predicate or action returned an error, by policy and rule.",
		}, []string{"policy", "rule"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routeflow",
			Name:      "resolutions_total",
			Help:      "Policy evaluations against message metadata, by outcome.",
		}, []string{"policy", "outcome"}),
		poisoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routeflow",
			Name:      "poisoned_messages_total",
			Help:      "Messages forwarded to the poison queue, by poison queue topic.",
		}, []string{"topic"}),
	}

	var err error
	if m.fired, err = registerCounterVec(reg, m.fired); err != nil {
		return nil, err
	}
	if m.failed, err = registerCounterVec(reg, m.failed); err != nil {
		return nil, err
	}
	if m.resolutions, err = registerCounterVec(reg, m.resolutions); err != nil {
		return nil, err
	}
	if m.poisoned, err = registerCounterVec(reg, m.poisoned); err != nil {
		return nil, err
	}
	return m, nil
}

// registerCounterVec registers c, reusing the existing collector when several
// services share one registerer.
func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func (m *resolveMetrics) observe(res rules.Result, err error) {
	if m == nil {
		return
	}
	for _, rule := range res.Fired {
		m.fired.WithLabelValues(res.Policy, rule).Inc()
	}
	for _, rule := range res.Failed {
		m.failed.WithLabelValues(res.Policy, rule).Inc()
	}
	outcome := outcomeUnchanged
	switch {
	case err != nil:
		outcome = outcomeFailed
	case res.Changed():
		outcome = outcomeChanged
	}
	m.resolutions.WithLabelValues(res.Policy, outcome).Inc()
}

func (m *resolveMetrics) observePoisoned(topic string) {
	if m == nil {
		return
	}
	m.poisoned.WithLabelValues(topic).Inc()
}

// ResolveMiddleware evaluates the named policies against the metadata of every
// handled message before the handler runs. Without names it applies the
// configured default policies and is skipped when there are none. A failed
// resolution is returned as *UnprocessableEventError.
func ResolveMiddleware(policyNames ...string) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "resolve",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			names := policyNames
			if len(names) == 0 {
				names = s.Conf.DefaultPolicies
			}
			if len(names) == 0 {
				return nil, nil
			}
			names = append([]string(nil), names...)
			return func(h message.HandlerFunc) message.HandlerFunc {
				return func(msg *message.Message) ([]*message.Message, error) {
					if _, err := s.Resolve(msg, names...); err != nil {
						return nil, err
					}
					return h(msg)
				}
			}, nil
		},
	}
}

// Resolve evaluates the named policies, in order, against the metadata of
// msg and writes the results back into it. Policies are looked up on every
// call so reloaded documents apply to the next message. Each policy records
// its own metrics; the returned Result aggregates all of them.
func (s *Service) Resolve(msg *message.Message, policyNames ...string) (rules.Result, error) {
	start := time.Now()
	_, span := otel.Tracer(tracerName).Start(msg.Context(), "ResolveMetadata")
	defer span.End()

	mdCtx := metadatapkg.MessageContext(msg)

	var (
		total rules.Result
		errs  []error
	)
	for _, name := range policyNames {
		p, ok := s.policies.Get(name)
		if !ok {
			res := rules.Result{Policy: name}
			err := fmt.Errorf("%w: %q", policy.ErrPolicyNotFound, name)
			s.metrics.observe(res, err)
			errs = append(errs, err)
			continue
		}
		res, err := p.Evaluate(mdCtx)
		s.metrics.observe(res, err)
		total.Fired = append(total.Fired, res.Fired...)
		total.Skipped = append(total.Skipped, res.Skipped...)
		total.Failed = append(total.Failed, res.Failed...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	total.Policy = strings.Join(policyNames, ",")
	err := errors.Join(errs...)

	span.SetAttributes(
		attribute.StringSlice("routeflow.policies", policyNames),
		attribute.StringSlice("routeflow.rules.fired", total.Fired),
		attribute.Int("routeflow.rules.failed", len(total.Failed)),
	)

	rc := ResolutionContext{
		Context:     msg.Context(),
		MessageUUID: msg.UUID,
		Policies:    policyNames,
		Result:      total,
		Metadata:    metadatapkg.FromWatermill(msg.Metadata),
		Duration:    time.Since(start),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "metadata resolution failed")
		s.hooks.failed(rc, err)
		return total, NewUnprocessableEventError(msg, err)
	}
	s.hooks.resolved(rc)
	return total, nil
}
