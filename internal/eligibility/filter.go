package eligibility

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"raffle/internal/drawconfig"
	"raffle/internal/logger"
	"raffle/internal/population"
	"raffle/pkg/cel"
	apperrors "raffle/pkg/errors"
	"raffle/pkg/metrics"
	"raffle/pkg/tracing"
)

// Result reports how many rows reached and passed one predicate.
type Result struct {
	Index     int    `json:"index"`
	Predicate string `json:"predicate"`
	Evaluated int    `json:"evaluated"`
	Passed    int    `json:"passed"`
	Missing   int    `json:"missing"`
}

type Filter struct {
	logger logger.Logger
}

func NewFilter(log logger.Logger) *Filter {
	return &Filter{logger: log}
}

type compiled struct {
	index     int
	predicate drawconfig.Predicate
	program   *cel.Program
}

// Apply keeps the rows satisfying every predicate, evaluated in order with
// per-row short-circuiting. A predicate that does not compile against the
// table's columns, or fails on a complete row, aborts with a
// ConfigurationError. A row lacking an attribute the predicate needs does
// not match.
func (f *Filter) Apply(ctx context.Context, table *population.Table, predicates []drawconfig.Predicate) (*population.Table, []Result, error) {
	ctx, span := tracing.Start(ctx, "eligibility.apply",
		attribute.Int("eligibility.predicates", len(predicates)),
		attribute.Int("eligibility.rows", table.Len()),
	)
	defer span.End()

	if len(predicates) == 0 {
		return table, nil, nil
	}

	start := time.Now()

	programs, err := f.compile(table, predicates)
	if err != nil {
		tracing.Fail(span, err)
		return nil, nil, err
	}

	results := make([]Result, len(programs))
	for i, c := range programs {
		results[i] = Result{Index: c.index, Predicate: c.predicate.String()}
	}

	kept := make([]population.Row, 0, table.Len())
	missing := 0
	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		ok, err := f.evaluateRow(ctx, table, row, programs, results)
		if err != nil {
			tracing.Fail(span, err)
			return nil, nil, err
		}
		if ok {
			kept = append(kept, row)
		}
	}
	for _, r := range results {
		missing += r.Missing
	}

	passed := len(kept)
	metrics.AddEligibilityRows("passed", passed)
	metrics.AddEligibilityRows("missing", missing)
	metrics.AddEligibilityRows("filtered", table.Len()-passed-missing)
	metrics.ObserveStageDuration("eligibility", time.Since(start))

	f.logger.DebugwCtx(ctx, "Eligibility applied",
		"rows", table.Len(),
		"eligible", passed,
		"missing", missing,
	)

	return table.WithRows(kept), results, nil
}

func (f *Filter) compile(table *population.Table, predicates []drawconfig.Predicate) ([]compiled, error) {
	evaluator, err := cel.NewEvaluator(table.Columns)
	if err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}

	out := make([]compiled, 0, len(predicates))
	for i, p := range predicates {
		if p.IsStructured() && !evaluator.HasColumn(p.Field) {
			return nil, predicateError(i, p, fmt.Errorf("unknown attribute %q", p.Field))
		}

		expr, err := p.CEL()
		if err != nil {
			return nil, predicateError(i, p, err)
		}

		program, err := evaluator.CompilePredicate(expr)
		if err != nil {
			return nil, predicateError(i, p, err)
		}
		out = append(out, compiled{index: i, predicate: p, program: program})
	}
	return out, nil
}

func (f *Filter) evaluateRow(ctx context.Context, table *population.Table, row population.Row, programs []compiled, results []Result) (bool, error) {
	for i, c := range programs {
		results[i].Evaluated++

		ok, err := c.program.Evaluate(ctx, row.Attrs)
		if err != nil {
			if lacksInputs(table, row, c.program) {
				results[i].Missing++
				f.logger.DebugwCtx(ctx, "Predicate skipped row with missing attributes",
					"predicate_index", c.index,
					"row_id", row.ID,
					"error", err,
				)
				return false, nil
			}
			return false, predicateError(c.index, c.predicate, err).WithDetail("row_id", row.ID)
		}
		if !ok {
			return false, nil
		}
		results[i].Passed++
	}
	return true, nil
}

// lacksInputs reports whether row has no value for an attribute the
// predicate reads. Only then is an evaluation failure put down to the row
// rather than the predicate.
func lacksInputs(table *population.Table, row population.Row, program *cel.Program) bool {
	columns, complete := program.References()
	if !complete {
		columns = table.Columns
	}
	for _, col := range columns {
		if v, ok := row.Attrs[col]; !ok || v == nil {
			return true
		}
	}
	return false
}

func predicateError(index int, p drawconfig.Predicate, cause error) *apperrors.Error {
	return apperrors.ErrConfiguration.
		WithCause(cause).
		WithMessage("eligibility predicate %d (%s) cannot be evaluated", index, p.String()).
		WithDetail("predicate_index", index).
		WithDetail("predicate", p.String())
}
