package weighting

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"raffle/internal/drawconfig"
	"raffle/internal/logger"
	"raffle/internal/population"
	apperrors "raffle/pkg/errors"
	"raffle/pkg/metrics"
	"raffle/pkg/tracing"
)

// Weighted is the population with one weight per row, aligned by index.
type Weighted struct {
	IDs     []string
	Weights []float64
	Rows    []population.Row
	Clamped int
}

type Engine struct {
	logger logger.Logger
}

func NewEngine(log logger.Logger) *Engine {
	return &Engine{logger: log}
}

// Compute multiplies every applicable rule factor into a per-row weight that
// starts at 1.0. Products that are zero or below epsilon are raised to
// epsilon; weighting never removes a row.
func (e *Engine) Compute(ctx context.Context, table *population.Table, rules []drawconfig.AttributeRule, epsilon float64) (*Weighted, error) {
	ctx, span := tracing.Start(ctx, "weighting.compute")
	defer span.End()

	start := time.Now()

	active := make([]drawconfig.AttributeRule, 0, len(rules))
	for _, r := range rules {
		if !table.HasColumn(r.Attribute) {
			e.logger.DebugwCtx(ctx, "Skipping weight rule for absent attribute",
				"attribute", r.Attribute,
				"kind", r.Rule.Kind(),
			)
			continue
		}
		if r.Rule.Kind() == drawconfig.KindBucket {
			if err := checkNumericColumn(table, r.Attribute); err != nil {
				tracing.Fail(span, err)
				return nil, err
			}
		}
		active = append(active, r)
	}

	out := &Weighted{
		IDs:     make([]string, table.Len()),
		Weights: make([]float64, table.Len()),
		Rows:    table.Rows,
	}

	for i, row := range table.Rows {
		w := 1.0
		for _, r := range active {
			w *= r.Rule.Factor(row.Attrs[r.Attribute])
		}

		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			err := apperrors.ErrInvalidWeight.
				WithMessage("row %q has weight %v after applying rules", row.ID, w).
				WithDetail("row_id", row.ID)
			tracing.Fail(span, err)
			return nil, err
		}
		if w < epsilon {
			w = epsilon
			out.Clamped++
		}

		out.IDs[i] = row.ID
		out.Weights[i] = w
	}

	span.SetAttributes(
		attribute.Int("weighting.rules", len(active)),
		attribute.Int("weighting.clamped", out.Clamped),
	)
	metrics.AddWeightsClamped(out.Clamped)
	metrics.ObserveStageDuration("weighting", time.Since(start))

	return out, nil
}

// checkNumericColumn rejects a bucket rule over a column holding non-numeric
// values. Nulls are fine and take the rule default.
func checkNumericColumn(table *population.Table, attr string) error {
	for _, row := range table.Rows {
		v := row.Attrs[attr]
		if v == nil {
			continue
		}
		if _, ok := population.Numeric(v); !ok {
			return apperrors.ErrConfiguration.
				WithMessage("bucket rule on %q needs numeric values, row %q has %q", attr, row.ID, population.Canonical(v)).
				WithDetail("attribute", attr).
				WithDetail("row_id", row.ID)
		}
	}
	return nil
}

// Total is the sum of all weights.
func (w *Weighted) Total() float64 {
	var sum float64
	for _, x := range w.Weights {
		sum += x
	}
	return sum
}
