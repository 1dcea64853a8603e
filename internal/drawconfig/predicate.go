package drawconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"raffle/internal/population"
	apperrors "raffle/pkg/errors"
)

// Predicate is one eligibility condition. Either Expr holds a CEL boolean
// expression, or Field/Op/Value describe a structured filter that is
// rendered to CEL. In files and request bodies a bare string is an Expr.
type Predicate struct {
	Expr  string `yaml:"expr,omitempty" json:"expr,omitempty"`
	Field string `yaml:"field,omitempty" json:"field,omitempty"`
	Op    string `yaml:"op,omitempty" json:"op,omitempty"`
	Value any    `yaml:"value,omitempty" json:"value,omitempty"`
}

func Expr(expr string) Predicate {
	return Predicate{Expr: expr}
}

func Filter(field, op string, value any) Predicate {
	return Predicate{Field: field, Op: op, Value: value}
}

func (p Predicate) IsStructured() bool {
	return p.Expr == "" && p.Field != ""
}

// String is the human-readable form used in error messages and logs.
func (p Predicate) String() string {
	if p.IsStructured() {
		return fmt.Sprintf("%s %s %v", p.Field, p.Op, p.Value)
	}
	return p.Expr
}

// MarshalJSON writes expressions as bare strings. HTML escaping is off so
// audit artifacts show "age >= 20" rather than "age \u003e= 20".
func (p Predicate) MarshalJSON() ([]byte, error) {
	type plain Predicate
	var v any = plain(p)
	if !p.IsStructured() {
		v = p.Expr
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (p *Predicate) UnmarshalJSON(data []byte) error {
	var expr string
	if err := json.Unmarshal(data, &expr); err == nil {
		*p = Predicate{Expr: expr}
		return nil
	}
	type plain Predicate
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*p = Predicate(out)
	return nil
}

func (p *Predicate) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*p = Predicate{Expr: node.Value}
		return nil
	}
	type plain Predicate
	var out plain
	if err := node.Decode(&out); err != nil {
		return err
	}
	*p = Predicate(out)
	return nil
}

var celOps = map[string]string{
	"=":  "==",
	"==": "==",
	"!=": "!=",
	">":  ">",
	">=": ">=",
	"<":  "<",
	"<=": "<=",
}

// CEL returns the expression to compile. Structured filters reference the
// attribute through the row map so any column name works.
func (p Predicate) CEL() (string, error) {
	if !p.IsStructured() {
		expr := strings.TrimSpace(p.Expr)
		if expr == "" {
			return "", p.errorf("empty predicate")
		}
		return expr, nil
	}

	ref := "row[" + strconv.Quote(p.Field) + "]"
	op := strings.ToUpper(strings.TrimSpace(p.Op))

	if cmp, ok := celOps[op]; ok {
		lit, err := celLiteral(p.Value)
		if err != nil {
			return "", p.errorf("%v", err)
		}
		return fmt.Sprintf("%s %s %s", ref, cmp, lit), nil
	}

	switch op {
	case "IN":
		values, ok := p.Value.([]any)
		if !ok || len(values) == 0 {
			return "", p.errorf("IN needs a non-empty list value")
		}
		lits := make([]string, len(values))
		for i, v := range values {
			lit, err := celLiteral(v)
			if err != nil {
				return "", p.errorf("%v", err)
			}
			lits[i] = lit
		}
		return fmt.Sprintf("%s in [%s]", ref, strings.Join(lits, ", ")), nil

	case "BETWEEN":
		values, ok := p.Value.([]any)
		if !ok || len(values) != 2 {
			return "", p.errorf("BETWEEN needs a [low, high] value")
		}
		lo, err := celLiteral(values[0])
		if err != nil {
			return "", p.errorf("%v", err)
		}
		hi, err := celLiteral(values[1])
		if err != nil {
			return "", p.errorf("%v", err)
		}
		return fmt.Sprintf("(%s >= %s && %s <= %s)", ref, lo, ref, hi), nil

	default:
		return "", p.errorf("invalid operator %q (supported: =, !=, >, >=, <, <=, IN, BETWEEN)", p.Op)
	}
}

func (p Predicate) errorf(format string, args ...any) error {
	return apperrors.ErrConfiguration.
		WithMessage("eligibility predicate %q: %s", p.String(), fmt.Sprintf(format, args...)).
		WithDetail("predicate", p.String())
}

func celLiteral(v any) (string, error) {
	nv, err := population.Normalize(v)
	if err != nil {
		return "", err
	}
	switch x := nv.(type) {
	case nil:
		return "null", nil
	case string:
		return strconv.Quote(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", fmt.Errorf("value must be finite, got %v", x)
		}
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s, nil
	default:
		return "", fmt.Errorf("unsupported value %v", v)
	}
}
