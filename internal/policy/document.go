package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/drblury/routeflow/internal/rules"
	jsoncodec "github.com/drblury/routeflow/internal/runtime/jsoncodec"
)

// Format selects the document decoder.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var (
	ErrUnknownFormat    = errors.New("policy: unknown document format")
	ErrUnknownCondition = errors.New("policy: unknown condition op")
	ErrUnknownAction    = errors.New("policy: unknown action op")
	ErrDuplicatePolicy  = errors.New("policy: duplicate policy name")
	ErrInvalidCondition = errors.New("policy: invalid condition")
)

// Document is the on-disk representation of one or more policies.
type Document struct {
	Policies []PolicySpec `yaml:"policies" json:"policies"`
}

type PolicySpec struct {
	Name  string     `yaml:"name" json:"name"`
	Rules []RuleSpec `yaml:"rules" json:"rules"`
}

type RuleSpec struct {
	Name     string         `yaml:"name" json:"name"`
	Priority int            `yaml:"priority,omitempty" json:"priority,omitempty"`
	When     *ConditionSpec `yaml:"when,omitempty" json:"when,omitempty"`
	Then     []ActionSpec   `yaml:"then" json:"then"`
}

// ConditionSpec is either a leaf (Key + Op) or a group (All, Any or Not).
type ConditionSpec struct {
	Key    string          `yaml:"key,omitempty" json:"key,omitempty"`
	Op     string          `yaml:"op,omitempty" json:"op,omitempty"`
	Value  string          `yaml:"value,omitempty" json:"value,omitempty"`
	Values []string        `yaml:"values,omitempty" json:"values,omitempty"`
	All    []ConditionSpec `yaml:"all,omitempty" json:"all,omitempty"`
	Any    []ConditionSpec `yaml:"any,omitempty" json:"any,omitempty"`
	Not    *ConditionSpec  `yaml:"not,omitempty" json:"not,omitempty"`
}

type ActionSpec struct {
	Op    string `yaml:"op" json:"op"`
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
	From  string `yaml:"from,omitempty" json:"from,omitempty"`
}

// DetectFormat picks a format from a file extension, defaulting to YAML.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Decode reads a document without compiling it. Unknown keys are rejected so
// a misspelled "when" cannot turn a guarded rule into an unconditional one.
func Decode(data []byte, format Format) (Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return Document{}, fmt.Errorf("policy: decode yaml: %w", err)
		}
	case FormatJSON:
		if err := jsoncodec.UnmarshalStrict(data, &doc); err != nil {
			return Document{}, fmt.Errorf("policy: decode json: %w", err)
		}
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return doc, nil
}

// Parse decodes and compiles every policy in data.
func Parse(data []byte, format Format) ([]*rules.Policy, error) {
	doc, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	return doc.Compile()
}

// Compile builds the policies declared by the document.
func (d Document) Compile() ([]*rules.Policy, error) {
	out := make([]*rules.Policy, 0, len(d.Policies))
	seen := make(map[string]struct{}, len(d.Policies))
	for _, spec := range d.Policies {
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePolicy, spec.Name)
		}
		seen[spec.Name] = struct{}{}

		p, err := spec.Compile()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s PolicySpec) Compile() (*rules.Policy, error) {
	compiled := make([]rules.Rule, 0, len(s.Rules))
	for _, rs := range s.Rules {
		r, err := rs.compile()
		if err != nil {
			return nil, fmt.Errorf("policy %q rule %q: %w", s.Name, rs.Name, err)
		}
		compiled = append(compiled, r)
	}
	return rules.NewPolicy(s.Name, compiled...)
}

func (s RuleSpec) compile() (rules.Rule, error) {
	b := rules.NewRule(s.Name).Priority(s.Priority)
	if s.When != nil {
		p, err := s.When.compile()
		if err != nil {
			return rules.Rule{}, err
		}
		b.When(p)
	}
	for _, as := range s.Then {
		a, err := as.compile()
		if err != nil {
			return rules.Rule{}, err
		}
		b.Then(a)
	}
	return b.Build()
}

// compile builds the predicate. A condition is exactly one of a leaf, an all
// group, an any group or a not. Empty groups follow rules.All and rules.Any.
func (c ConditionSpec) compile() (rules.Predicate, error) {
	if err := c.checkShape(); err != nil {
		return nil, err
	}
	switch {
	case c.All != nil:
		ps, err := compileConditions(c.All)
		if err != nil {
			return nil, err
		}
		return rules.All(ps...), nil
	case c.Any != nil:
		ps, err := compileConditions(c.Any)
		if err != nil {
			return nil, err
		}
		return rules.Any(ps...), nil
	case c.Not != nil:
		p, err := c.Not.compile()
		if err != nil {
			return nil, err
		}
		return rules.Not(p), nil
	}

	if c.Key == "" {
		return nil, fmt.Errorf("%w: key is required", ErrInvalidCondition)
	}
	switch c.Op {
	case "unset":
		return rules.Unset(c.Key), nil
	case "set":
		return rules.IsSet(c.Key), nil
	case "equals":
		return rules.Equals(c.Key, c.Value), nil
	case "not_equals":
		return rules.Not(rules.Equals(c.Key, c.Value)), nil
	case "one_of":
		return rules.OneOf(c.Key, c.Values...), nil
	case "prefix":
		return rules.HasPrefix(c.Key, c.Value), nil
	case "matches":
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return nil, fmt.Errorf("condition on %q: %w", c.Key, err)
		}
		return rules.Matches(c.Key, re), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCondition, c.Op)
	}
}

func (c ConditionSpec) checkShape() error {
	var kinds []string
	if c.Key != "" || c.Op != "" || c.Value != "" || c.Values != nil {
		kinds = append(kinds, "key/op")
	}
	if c.All != nil {
		kinds = append(kinds, "all")
	}
	if c.Any != nil {
		kinds = append(kinds, "any")
	}
	if c.Not != nil {
		kinds = append(kinds, "not")
	}
	switch len(kinds) {
	case 0:
		return fmt.Errorf("%w: empty condition", ErrInvalidCondition)
	case 1:
		return nil
	default:
		return fmt.Errorf("%w: combines %s", ErrInvalidCondition, strings.Join(kinds, ", "))
	}
}

func compileConditions(specs []ConditionSpec) ([]rules.Predicate, error) {
	ps := make([]rules.Predicate, 0, len(specs))
	for _, s := range specs {
		p, err := s.compile()
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, nil
}

func (a ActionSpec) compile() (rules.Action, error) {
	if a.Key == "" {
		return nil, errors.New("action key is required")
	}
	switch a.Op {
	case "set":
		return rules.Set(a.Key, a.Value), nil
	case "default":
		return rules.SetDefault(a.Key, a.Value), nil
	case "copy":
		if a.From == "" {
			return nil, errors.New("copy action requires from")
		}
		return rules.Copy(a.Key, a.From), nil
	case "delete":
		return rules.Delete(a.Key), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, a.Op)
	}
}
