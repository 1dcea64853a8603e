package cel

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/cel-go/cel"
	celast "github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
)

// RowVariable is always declared and holds every attribute of the row, so
// columns that are not valid identifiers stay reachable as row["name"].
const RowVariable = "row"

var identifier = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*$`)

// Evaluator compiles boolean predicates against one population schema.
type Evaluator struct {
	env     *cel.Env
	idents  []string
	columns map[string]struct{}
}

type Program struct {
	expr    string
	program cel.Program
	idents  []string
	refs    []string
	opaque  bool
}

func NewEvaluator(columns []string) (*Evaluator, error) {
	opts := []cel.EnvOption{
		cel.Variable(RowVariable, cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	}

	idents := make([]string, 0, len(columns))
	cols := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		cols[c] = struct{}{}
		if c == RowVariable || !IsIdentifier(c) {
			continue
		}
		opts = append(opts, cel.Variable(c, cel.DynType))
		idents = append(idents, c)
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env, idents: idents, columns: cols}, nil
}

func IsIdentifier(name string) bool {
	return identifier.MatchString(name)
}

func (e *Evaluator) HasColumn(name string) bool {
	_, ok := e.columns[name]
	return ok
}

// CompilePredicate type-checks expression. Undeclared identifiers fail here;
// a dyn result is accepted and checked on every evaluation.
func (e *Evaluator) CompilePredicate(expression string) (*Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("filter expression must return bool, got %v", out)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	refs, opaque := references(ast.NativeRep().Expr(), e.columns)
	return &Program{expr: expression, program: program, idents: e.idents, refs: refs, opaque: opaque}, nil
}

// references lists the columns expr reads, either as a bare identifier or as
// row["name"] / row.name. opaque is set when row is used in any other way,
// e.g. with a computed key, so the read set cannot be known statically.
func references(expr celast.Expr, columns map[string]struct{}) ([]string, bool) {
	seen := map[string]struct{}{}
	var refs []string
	add := func(name string) {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			refs = append(refs, name)
		}
	}

	rowUses, rowResolved := 0, 0
	celast.PreOrderVisit(expr, celast.NewExprVisitor(func(e celast.Expr) {
		switch e.Kind() {
		case celast.IdentKind:
			name := e.AsIdent()
			if name == RowVariable {
				rowUses++
			} else if _, ok := columns[name]; ok {
				add(name)
			}
		case celast.SelectKind:
			sel := e.AsSelect()
			if isRow(sel.Operand()) {
				rowResolved++
				add(sel.FieldName())
			}
		case celast.CallKind:
			call := e.AsCall()
			if call.FunctionName() != operators.Index && call.FunctionName() != operators.OptIndex {
				return
			}
			args := call.Args()
			if len(args) != 2 || !isRow(args[0]) || args[1].Kind() != celast.LiteralKind {
				return
			}
			if key, ok := args[1].AsLiteral().Value().(string); ok {
				rowResolved++
				add(key)
			}
		}
	}))
	return refs, rowUses > rowResolved
}

func isRow(e celast.Expr) bool {
	return e.Kind() == celast.IdentKind && e.AsIdent() == RowVariable
}

// References returns the columns the predicate reads. When complete is false
// the predicate indexes row dynamically and may read any column.
func (p *Program) References() (columns []string, complete bool) {
	return p.refs, !p.opaque
}

func (p *Program) Expression() string {
	return p.expr
}

// Evaluate runs the predicate against one row. Columns the row lacks are
// bound to null.
func (p *Program) Evaluate(ctx context.Context, attrs map[string]any) (bool, error) {
	vars := make(map[string]any, len(p.idents)+1)
	vars[RowVariable] = attrs
	for _, name := range p.idents {
		vars[name] = attrs[name]
	}

	result, _, err := p.program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}
