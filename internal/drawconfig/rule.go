package drawconfig

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"raffle/internal/population"
	apperrors "raffle/pkg/errors"
)

type RuleKind string

const (
	KindCategorical RuleKind = "categorical"
	KindBucket      RuleKind = "bucket"
)

// WeightRule turns one attribute value into a multiplicative factor. The
// two implementations are Categorical and Bucket.
type WeightRule interface {
	Kind() RuleKind
	Factor(value any) float64
}

// Categorical looks the value's canonical string form up in Mapping.
type Categorical struct {
	Mapping map[string]float64
	Default float64
}

func (Categorical) Kind() RuleKind { return KindCategorical }

func (c Categorical) Factor(value any) float64 {
	if value == nil {
		return c.Default
	}
	if f, ok := c.Mapping[population.Canonical(value)]; ok {
		return f
	}
	return c.Default
}

type Range struct {
	Low    float64
	High   float64
	Factor float64
}

func (r Range) contains(v float64) bool {
	return v >= r.Low && v <= r.High
}

// Bucket matches a numeric value against closed ranges. When ranges overlap
// the last matching one in configuration order wins.
type Bucket struct {
	Ranges  []Range
	Default float64
}

func (Bucket) Kind() RuleKind { return KindBucket }

func (b Bucket) Factor(value any) float64 {
	v, ok := population.Numeric(value)
	if !ok || math.IsNaN(v) {
		return b.Default
	}
	for i := len(b.Ranges) - 1; i >= 0; i-- {
		if b.Ranges[i].contains(v) {
			return b.Ranges[i].Factor
		}
	}
	return b.Default
}

// RuleSpec is the serialised rule: {type, mapping | buckets, default}.
// Buckets are [low, high, factor] triples.
type RuleSpec struct {
	Type    string             `yaml:"type" json:"type"`
	Mapping map[string]float64 `yaml:"mapping,omitempty" json:"mapping,omitempty"`
	Buckets [][]float64        `yaml:"buckets,omitempty" json:"buckets,omitempty"`
	Default *float64           `yaml:"default,omitempty" json:"default,omitempty"`
}

// Defaults are the per-kind factors for values no rule entry matches.
type Defaults struct {
	Categorical float64 `yaml:"categorical" json:"categorical"`
	Bucket      float64 `yaml:"bucket" json:"bucket"`
}

func DefaultDefaults() Defaults {
	return Defaults{Categorical: 1.0, Bucket: 1.0}
}

// UnmarshalYAML fills only the kinds present in the document; the rest keep
// their DefaultDefaults value.
func (d *Defaults) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: defaults must be a mapping", node.Line)
	}
	for i := 0; i < len(node.Content); i += 2 {
		switch key := node.Content[i].Value; key {
		case "categorical", "bucket":
		default:
			return fmt.Errorf("line %d: field %s not found in defaults", node.Content[i].Line, key)
		}
	}
	type plain Defaults
	v := plain(DefaultDefaults())
	if err := node.Decode(&v); err != nil {
		return err
	}
	*d = Defaults(v)
	return nil
}

func (d *Defaults) UnmarshalJSON(data []byte) error {
	type plain Defaults
	v := plain(DefaultDefaults())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*d = Defaults(v)
	return nil
}

// ParseRule validates spec and returns the matching WeightRule. It never
// panics and has no side effects.
func ParseRule(attr string, spec RuleSpec, defaults Defaults) (WeightRule, error) {
	kind := RuleKind(strings.ToLower(strings.TrimSpace(spec.Type)))
	if kind == "" {
		kind = KindCategorical
	}

	switch kind {
	case KindCategorical:
		def := defaults.Categorical
		if spec.Default != nil {
			def = *spec.Default
		}
		if err := checkFactor(attr, "default", def); err != nil {
			return nil, err
		}
		if len(spec.Buckets) > 0 {
			return nil, ruleError(attr, "categorical rule must not define buckets")
		}
		if len(spec.Mapping) == 0 {
			return nil, ruleError(attr, "categorical rule needs a non-empty mapping")
		}
		mapping := make(map[string]float64, len(spec.Mapping))
		for k, f := range spec.Mapping {
			if err := checkFactor(attr, fmt.Sprintf("mapping[%q]", k), f); err != nil {
				return nil, err
			}
			mapping[k] = f
		}
		return Categorical{Mapping: mapping, Default: def}, nil

	case KindBucket:
		def := defaults.Bucket
		if spec.Default != nil {
			def = *spec.Default
		}
		if err := checkFactor(attr, "default", def); err != nil {
			return nil, err
		}
		if len(spec.Mapping) > 0 {
			return nil, ruleError(attr, "bucket rule must not define a mapping")
		}
		if len(spec.Buckets) == 0 {
			return nil, ruleError(attr, "bucket rule needs at least one [low, high, factor] range")
		}
		ranges := make([]Range, 0, len(spec.Buckets))
		for i, b := range spec.Buckets {
			if len(b) != 3 {
				return nil, ruleError(attr, fmt.Sprintf("bucket %d must be [low, high, factor], got %d values", i, len(b)))
			}
			r := Range{Low: b[0], High: b[1], Factor: b[2]}
			if math.IsNaN(r.Low) || math.IsNaN(r.High) {
				return nil, ruleError(attr, fmt.Sprintf("bucket %d has a NaN bound", i))
			}
			if r.Low > r.High {
				return nil, ruleError(attr, fmt.Sprintf("bucket %d has low %v > high %v", i, r.Low, r.High))
			}
			if err := checkFactor(attr, fmt.Sprintf("bucket %d factor", i), r.Factor); err != nil {
				return nil, err
			}
			ranges = append(ranges, r)
		}
		return Bucket{Ranges: ranges, Default: def}, nil

	default:
		return nil, ruleError(attr, fmt.Sprintf("unknown rule type %q (supported: categorical, bucket)", spec.Type))
	}
}

// Negative factors are accepted here; a negative product is reported per
// row by the weighting engine.
func checkFactor(attr, what string, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ruleError(attr, fmt.Sprintf("%s must be finite, got %v", what, f))
	}
	return nil
}

func ruleError(attr, msg string) error {
	return apperrors.ErrConfiguration.
		WithMessage("weight rule %q: %s", attr, msg).
		WithDetail("attribute", attr)
}

// ruleToSpec is the inverse of ParseRule, used for audit records.
func ruleToSpec(rule WeightRule) RuleSpec {
	switch r := rule.(type) {
	case Categorical:
		def := r.Default
		return RuleSpec{Type: string(KindCategorical), Mapping: r.Mapping, Default: &def}
	case Bucket:
		def := r.Default
		buckets := make([][]float64, len(r.Ranges))
		for i, rg := range r.Ranges {
			buckets[i] = []float64{rg.Low, rg.High, rg.Factor}
		}
		return RuleSpec{Type: string(KindBucket), Buckets: buckets, Default: &def}
	default:
		return RuleSpec{}
	}
}
