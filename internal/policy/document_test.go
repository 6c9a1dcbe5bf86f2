package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/routeflow/internal/rules"
)

const routingYAML = `
policies:
  - name: routing
    rules:
      - name: classify-orders
        priority: 20
        when:
          all:
            - {key: transport.Topic, op: prefix, value: orders.}
            - not: {key: route.Destination, op: set}
        then:
          - {op: set, key: route.Destination, value: order-processing}
      - name: express
        priority: 10
        when:
          any:
            - {key: order.Tier, op: one_of, values: [gold, platinum]}
            - {key: order.Id, op: matches, value: "^EXP-"}
        then:
          - {op: set, key: route.Priority, value: high}
          - {op: copy, key: tracking.Source, from: transport.Topic}
      - name: strip-debug
        then:
          - {op: delete, key: debug.Trace}
`

func TestParseYAML(t *testing.T) {
	policies, err := Parse([]byte(routingYAML), FormatYAML)
	require.NoError(t, err)
	require.Len(t, policies, 1)

	p := policies[0]
	assert.Equal(t, "routing", p.Name())
	assert.Equal(t, 3, p.Len())

	ctx := rules.MapContext{
		"transport.Topic": "orders.created",
		"order.Tier":      "gold",
		"debug.Trace":     "on",
	}
	res, err := p.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"classify-orders", "express", "strip-debug"}, res.Fired)
	assert.Equal(t, rules.MapContext{
		"transport.Topic":   "orders.created",
		"order.Tier":        "gold",
		"route.Destination": "order-processing",
		"route.Priority":    "high",
		"tracking.Source":   "orders.created",
	}, ctx)
}

func TestParseYAMLRespectsExistingDestination(t *testing.T) {
	policies, err := Parse([]byte(routingYAML), FormatYAML)
	require.NoError(t, err)

	ctx := rules.MapContext{
		"transport.Topic":   "orders.created",
		"route.Destination": "manual",
		"order.Id":          "EXP-1",
	}
	res, err := policies[0].Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "manual", ctx["route.Destination"])
	assert.Equal(t, "high", ctx["route.Priority"])
	assert.Equal(t, []string{"classify-orders"}, res.Skipped)
}

func TestParseJSON(t *testing.T) {
	doc := `{"policies":[{"name":"defaults","rules":[
		{"name":"process","when":{"key":"tracking.ProcessName","op":"unset"},
		 "then":[{"op":"set","key":"tracking.ProcessName","value":"Check"}]},
		{"name":"route","when":{"key":"tracking.ProcessName","op":"not_equals","value":"Deliver"},
		 "then":[{"op":"default","key":"route.Destination","value":"audit"}]}
	]}]}`

	policies, err := Parse([]byte(doc), FormatJSON)
	require.NoError(t, err)
	require.Len(t, policies, 1)

	ctx := rules.MapContext{}
	_, err = policies[0].Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Check", ctx["tracking.ProcessName"])
	assert.Equal(t, "audit", ctx["route.Destination"])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		format Format
		target error
	}{
		{"bad yaml", "policies: [", FormatYAML, nil},
		{"bad json", "{", FormatJSON, nil},
		{"unknown format", "", Format("toml"), ErrUnknownFormat},
		{"unknown condition", `policies: [{name: p, rules: [{name: r, when: {key: k, op: nope}, then: [{op: set, key: k, value: v}]}]}]`, FormatYAML, ErrUnknownCondition},
		{"unknown action", `policies: [{name: p, rules: [{name: r, then: [{op: nope, key: k}]}]}]`, FormatYAML, ErrUnknownAction},
		{"missing action", `policies: [{name: p, rules: [{name: r}]}]`, FormatYAML, rules.ErrActionRequired},
		{"missing policy name", `policies: [{rules: []}]`, FormatYAML, rules.ErrPolicyNameRequired},
		{"duplicate policy", `policies: [{name: p}, {name: p}]`, FormatYAML, ErrDuplicatePolicy},
		{"bad regexp", `policies: [{name: p, rules: [{name: r, when: {key: k, op: matches, value: "("}, then: [{op: delete, key: k}]}]}]`, FormatYAML, nil},
		{"copy without from", `policies: [{name: p, rules: [{name: r, then: [{op: copy, key: k}]}]}]`, FormatYAML, nil},
		{"condition without key", `policies: [{name: p, rules: [{name: r, when: {op: unset}, then: [{op: delete, key: k}]}]}]`, FormatYAML, nil},
		{"action without key", `policies: [{name: p, rules: [{name: r, then: [{op: delete}]}]}]`, FormatYAML, nil},
		{"unknown yaml rule key", `policies: [{name: p, rules: [{name: r, whne: {key: k, op: unset}, then: [{op: set, key: k, value: v}]}]}]`, FormatYAML, nil},
		{"unknown json rule key", `{"policies":[{"name":"p","rules":[{"name":"r","whne":{"key":"k","op":"unset"},"then":[{"op":"set","key":"k","value":"v"}]}]}]}`, FormatJSON, nil},
		{"empty condition", `policies: [{name: p, rules: [{name: r, when: {}, then: [{op: delete, key: k}]}]}]`, FormatYAML, ErrInvalidCondition},
		{"group mixed with leaf", `policies: [{name: p, rules: [{name: r, when: {key: k, op: unset, all: [{key: j, op: set}]}, then: [{op: delete, key: k}]}]}]`, FormatYAML, ErrInvalidCondition},
		{"two groups", `policies: [{name: p, rules: [{name: r, when: {all: [], any: []}, then: [{op: delete, key: k}]}]}]`, FormatYAML, ErrInvalidCondition},
		{"nested mixed condition", `policies: [{name: p, rules: [{name: r, when: {not: {key: k, op: set, any: []}}, then: [{op: delete, key: k}]}]}]`, FormatYAML, ErrInvalidCondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), tt.format)
			require.Error(t, err)
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target), "got %v", err)
			}
		})
	}
}

func TestParseEmptyGroups(t *testing.T) {
	doc := `
policies:
  - name: groups
    rules:
      - name: vacuous-all
        when: {all: []}
        then:
          - {op: set, key: all.fired, value: "yes"}
      - name: vacuous-any
        when: {any: []}
        then:
          - {op: set, key: any.fired, value: "yes"}
`
	policies, err := Parse([]byte(doc), FormatYAML)
	require.NoError(t, err)
	require.Len(t, policies, 1)

	ctx := rules.MapContext{}
	res, err := policies[0].Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"vacuous-all"}, res.Fired)
	assert.Equal(t, []string{"vacuous-any"}, res.Skipped)
	assert.Equal(t, rules.MapContext{"all.fired": "yes"}, ctx)
}

func TestParseEmptyYAMLDocument(t *testing.T) {
	policies, err := Parse(nil, FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, policies)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, DetectFormat("rules/routing.JSON"))
	assert.Equal(t, FormatYAML, DetectFormat("rules/routing.yml"))
	assert.Equal(t, FormatYAML, DetectFormat("rules/routing"))
}
