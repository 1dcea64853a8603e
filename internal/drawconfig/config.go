package drawconfig

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"raffle/internal/constants"
	apperrors "raffle/pkg/errors"
)

// Spec is the serialised draw configuration as it appears in YAML or JSON
// files and API request bodies.
type Spec struct {
	EventID     string              `yaml:"event_id,omitempty" json:"event_id,omitempty"`
	UniqueKey   string              `yaml:"unique_key" json:"unique_key"`
	Eligibility []Predicate         `yaml:"eligibility,omitempty" json:"eligibility,omitempty"`
	Weights     map[string]RuleSpec `yaml:"weights,omitempty" json:"weights,omitempty"`
	Defaults    *Defaults           `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Epsilon     float64             `yaml:"epsilon,omitempty" json:"epsilon,omitempty"`
	SQL         string              `yaml:"sql,omitempty" json:"sql,omitempty"`
}

// AttributeRule binds a parsed rule to the attribute it reads.
type AttributeRule struct {
	Attribute string
	Rule      WeightRule
}

// DrawConfig is a validated, immutable configuration. Rules are ordered by
// attribute name so weight products are computed in a fixed order.
type DrawConfig struct {
	EventID     string
	UniqueKey   string
	Eligibility []Predicate
	Rules       []AttributeRule
	Defaults    Defaults
	Epsilon     float64
	SQL         string
}

// Compile validates spec and parses every weight rule. The first problem
// found is returned as a ConfigurationError.
func Compile(spec Spec) (*DrawConfig, error) {
	uniqueKey := strings.TrimSpace(spec.UniqueKey)
	if uniqueKey == "" {
		return nil, apperrors.ErrConfiguration.WithMessage("unique_key is required")
	}

	defaults := DefaultDefaults()
	if spec.Defaults != nil {
		defaults = *spec.Defaults
	}
	if err := checkFactor("defaults", "categorical", defaults.Categorical); err != nil {
		return nil, err
	}
	if err := checkFactor("defaults", "bucket", defaults.Bucket); err != nil {
		return nil, err
	}

	epsilon := spec.Epsilon
	if epsilon == 0 {
		epsilon = constants.DefaultEpsilon
	}
	if epsilon < 0 || math.IsNaN(epsilon) || math.IsInf(epsilon, 0) {
		return nil, apperrors.ErrConfiguration.WithMessage("epsilon must be a positive finite number, got %v", spec.Epsilon)
	}

	preds := make([]Predicate, len(spec.Eligibility))
	for i, p := range spec.Eligibility {
		if _, err := p.CEL(); err != nil {
			return nil, err
		}
		preds[i] = p
	}

	attrs := make([]string, 0, len(spec.Weights))
	for attr := range spec.Weights {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	rules := make([]AttributeRule, 0, len(attrs))
	for _, attr := range attrs {
		rule, err := ParseRule(attr, spec.Weights[attr], defaults)
		if err != nil {
			return nil, err
		}
		rules = append(rules, AttributeRule{Attribute: attr, Rule: rule})
	}

	eventID := strings.TrimSpace(spec.EventID)
	if eventID == "" {
		eventID = constants.DefaultEventID
	}

	return &DrawConfig{
		EventID:     eventID,
		UniqueKey:   uniqueKey,
		Eligibility: preds,
		Rules:       rules,
		Defaults:    defaults,
		Epsilon:     epsilon,
		SQL:         spec.SQL,
	}, nil
}

// Spec renders the compiled configuration back to its serialised form with
// every default resolved. Audit records store this.
func (c *DrawConfig) Spec() Spec {
	weights := make(map[string]RuleSpec, len(c.Rules))
	for _, r := range c.Rules {
		weights[r.Attribute] = ruleToSpec(r.Rule)
	}
	defaults := c.Defaults
	return Spec{
		EventID:     c.EventID,
		UniqueKey:   c.UniqueKey,
		Eligibility: append([]Predicate(nil), c.Eligibility...),
		Weights:     weights,
		Defaults:    &defaults,
		Epsilon:     c.Epsilon,
		SQL:         c.SQL,
	}
}

// Parse decodes YAML (a JSON document is valid YAML) and compiles it.
// Unknown keys are rejected so typos do not silently disable a rule.
func Parse(data []byte) (*DrawConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var spec Spec
	if err := dec.Decode(&spec); err != nil {
		return nil, apperrors.ErrConfiguration.WithCause(err).WithMessage("failed to parse draw config: %v", err)
	}
	return Compile(spec)
}

func Load(path string) (*DrawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read draw config %s: %w", path, err)
	}
	return Parse(data)
}

// Builder accumulates a configuration programmatically. It is owned by one
// caller; Build returns an independent snapshot each time.
type Builder struct {
	spec Spec
}

func NewBuilder(uniqueKey string) *Builder {
	return &Builder{spec: Spec{UniqueKey: uniqueKey, Weights: map[string]RuleSpec{}}}
}

func (b *Builder) EventID(id string) *Builder {
	b.spec.EventID = id
	return b
}

func (b *Builder) AddPredicate(p Predicate) *Builder {
	b.spec.Eligibility = append(b.spec.Eligibility, p)
	return b
}

// SetWeightRule replaces any rule already set for attr.
func (b *Builder) SetWeightRule(attr string, spec RuleSpec) *Builder {
	b.spec.Weights[attr] = spec
	return b
}

func (b *Builder) SetDefaults(d Defaults) *Builder {
	b.spec.Defaults = &d
	return b
}

func (b *Builder) SetEpsilon(eps float64) *Builder {
	b.spec.Epsilon = eps
	return b
}

func (b *Builder) SetSQL(sql string) *Builder {
	b.spec.SQL = sql
	return b
}

func (b *Builder) Build() (*DrawConfig, error) {
	return Compile(copySpec(b.spec))
}

func copySpec(s Spec) Spec {
	out := s
	out.Eligibility = append([]Predicate(nil), s.Eligibility...)
	out.Weights = make(map[string]RuleSpec, len(s.Weights))
	for k, v := range s.Weights {
		rs := RuleSpec{Type: v.Type}
		if v.Mapping != nil {
			rs.Mapping = make(map[string]float64, len(v.Mapping))
			for mk, mv := range v.Mapping {
				rs.Mapping[mk] = mv
			}
		}
		for _, bk := range v.Buckets {
			rs.Buckets = append(rs.Buckets, append([]float64(nil), bk...))
		}
		if v.Default != nil {
			d := *v.Default
			rs.Default = &d
		}
		out.Weights[k] = rs
	}
	if s.Defaults != nil {
		d := *s.Defaults
		out.Defaults = &d
	}
	return out
}
