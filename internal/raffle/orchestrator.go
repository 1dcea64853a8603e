package raffle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"raffle/internal/audit"
	"raffle/internal/drawconfig"
	"raffle/internal/eligibility"
	"raffle/internal/logger"
	"raffle/internal/population"
	"raffle/internal/sampler"
	"raffle/internal/weighting"
	apperrors "raffle/pkg/errors"
	"raffle/pkg/logging"
	"raffle/pkg/metrics"
	"raffle/pkg/models"
	"raffle/pkg/tracing"
)

// Notifier is told about every audited draw.
type Notifier interface {
	NotifyDrawCompleted(ctx context.Context, event models.DrawCompletedEvent) error
}

// Result is the outcome of one draw. Winners hold the full rows in draw
// order.
type Result struct {
	EventID       string               `json:"event_id"`
	DrawID        string               `json:"draw_id"`
	Winners       []population.Row     `json:"winners"`
	WinnerIDs     []string             `json:"winner_ids"`
	Eligible      int                  `json:"eligible"`
	Clamped       int                  `json:"clamped"`
	Eligibility   []eligibility.Result `json:"eligibility,omitempty"`
	SnapshotHash  string               `json:"snapshot_hash"`
	Seed          *int64               `json:"seed"`
	Timestamp     int64                `json:"ts"`
	AuditLocation string               `json:"audit_location,omitempty"`
	Audited       bool                 `json:"audited"`
	State         State                `json:"state"`
}

type Option func(*Orchestrator)

func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithMaxWinners caps the winner count a caller may request; 0 means no cap.
func WithMaxWinners(n int) Option {
	return func(o *Orchestrator) { o.maxWinners = n }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator runs the draw pipeline. It keeps no per-draw state, so one
// instance serves concurrent draws.
type Orchestrator struct {
	filter     *eligibility.Filter
	engine     *weighting.Engine
	store      audit.Store
	notifier   Notifier
	maxWinners int
	now        func() time.Time
	logger     logger.Logger
}

func New(store audit.Store, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		filter: eligibility.NewFilter(log),
		engine: weighting.NewEngine(log),
		store:  store,
		now:    time.Now,
		logger: log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type run struct {
	state State
}

// Run draws nWinners unique rows from table under cfg.
//
// Any failure before the audit write returns no result and leaves no audit
// record. When only the audit write fails, the drawn result is returned
// together with an AuditPersistenceError and Audited is false.
func (o *Orchestrator) Run(ctx context.Context, table *population.Table, cfg *drawconfig.DrawConfig, nWinners int, entropy sampler.Entropy) (res *Result, err error) {
	drawID := uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r, nil)
			res = nil
			o.logger.ErrorwCtx(ctx, "Panic recovered during draw", "error", err)
			metrics.IncDraw("failed")
		}
	}()

	if cfg == nil {
		return nil, apperrors.ErrConfiguration.WithMessage("draw configuration is required")
	}
	if table == nil {
		return nil, apperrors.ErrValidation.WithMessage("population is required")
	}

	ctx = logging.WithEventID(ctx, cfg.EventID)
	ctx = logging.WithDrawID(ctx, drawID)

	ctx, span := tracing.Start(ctx, "raffle.run",
		attribute.String("raffle.event_id", cfg.EventID),
		attribute.String("raffle.draw_id", drawID),
		attribute.Int("raffle.population", table.Len()),
		attribute.Int("raffle.requested_winners", nWinners),
		attribute.String("raffle.entropy", entropy.String()),
	)
	defer span.End()

	start := time.Now()
	res, err = o.run(ctx, table, cfg, nWinners, entropy, drawID)
	metrics.ObserveStageDuration("total", time.Since(start))

	switch {
	case err == nil:
		metrics.IncDraw("success")
	case res != nil:
		tracing.Fail(span, err)
		metrics.IncDraw("unaudited")
	default:
		tracing.Fail(span, err)
		metrics.IncDraw("failed")
		o.logger.WarnwCtx(ctx, "Draw aborted", "error", err)
	}
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, table *population.Table, cfg *drawconfig.DrawConfig, nWinners int, entropy sampler.Entropy, drawID string) (*Result, error) {
	r := &run{state: StateIdle}

	if nWinners < 0 {
		return nil, apperrors.ErrValidation.
			WithMessage("winner count must not be negative, got %d", nWinners)
	}
	if o.maxWinners > 0 && nWinners > o.maxWinners {
		return nil, apperrors.ErrValidation.
			WithMessage("winner count %d exceeds the limit of %d", nWinners, o.maxWinners).
			WithDetail("max_winners", o.maxWinners)
	}

	keyed, err := table.KeyedBy(cfg.UniqueKey)
	if err != nil {
		return nil, err
	}

	eligible, results, err := o.filter.Apply(ctx, keyed, cfg.Eligibility)
	if err != nil {
		return nil, err
	}
	r.advance(StateEligibilityApplied)

	candidates := eligible.Dedupe()

	weighted, err := o.engine.Compute(ctx, candidates, cfg.Rules, cfg.Epsilon)
	if err != nil {
		return nil, err
	}
	r.advance(StateWeightsComputed)

	sampleStart := time.Now()
	picked, err := sampler.DrawIndices(weighted.Weights, nWinners, entropy)
	if err != nil {
		return nil, err
	}
	metrics.ObserveStageDuration("sampling", time.Since(sampleStart))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.advance(StateWinnersDrawn)

	res := &Result{
		EventID:      cfg.EventID,
		DrawID:       drawID,
		Winners:      make([]population.Row, len(picked)),
		WinnerIDs:    make([]string, len(picked)),
		Eligible:     candidates.Len(),
		Clamped:      weighted.Clamped,
		Eligibility:  results,
		SnapshotHash: audit.SnapshotHash(weighted.IDs),
		Seed:         entropy.SeedPtr(),
		Timestamp:    o.now().Unix(),
		State:        r.state,
	}
	for i, j := range picked {
		res.Winners[i] = weighted.Rows[j]
		res.WinnerIDs[i] = weighted.IDs[j]
	}
	metrics.ObserveDrawSize(res.Eligible, len(picked))

	rec := audit.Record{
		DrawID:         drawID,
		EventID:        cfg.EventID,
		Seed:           res.Seed,
		Config:         cfg.Spec(),
		SQL:            cfg.SQL,
		SnapshotHash:   res.SnapshotHash,
		Timestamp:      res.Timestamp,
		CandidateCount: res.Eligible,
		WinnerIDs:      res.WinnerIDs,
	}

	location, err := o.store.Append(ctx, rec)
	if err != nil {
		if !apperrors.IsAuditPersistence(err) {
			err = apperrors.ErrAuditPersistence.WithCause(err).WithDetail("backend", o.store.Name())
		}
		o.logger.ErrorwCtx(ctx, "Draw completed without an audit record",
			"winners", len(picked),
			"snapshot_hash", res.SnapshotHash,
			"error", err,
		)
		return res, err
	}
	r.advance(StateAudited)
	res.State = r.state
	res.Audited = true
	res.AuditLocation = location

	o.logger.InfowCtx(ctx, "Draw completed",
		"population", table.Len(),
		"eligible", res.Eligible,
		"winners", len(picked),
		"clamped", res.Clamped,
		"entropy", entropy.String(),
		"audit_location", location,
	)

	o.notify(ctx, res)
	return res, nil
}

func (o *Orchestrator) notify(ctx context.Context, res *Result) {
	if o.notifier == nil {
		return
	}

	event := models.DrawCompletedEvent{
		EventID:        res.EventID,
		DrawID:         res.DrawID,
		WinnerIDs:      res.WinnerIDs,
		CandidateCount: res.Eligible,
		SnapshotHash:   res.SnapshotHash,
		Seed:           res.Seed,
		AuditLocation:  res.AuditLocation,
		Timestamp:      res.Timestamp,
	}
	if err := o.notifier.NotifyDrawCompleted(ctx, event); err != nil {
		o.logger.WarnwCtx(ctx, "Failed to publish draw event", "error", err)
	}
}

// CandidateIDs replays the stages before sampling and returns the ids a draw
// over table would hash. Used to check an audit record against a population.
func (o *Orchestrator) CandidateIDs(ctx context.Context, table *population.Table, cfg *drawconfig.DrawConfig) ([]string, error) {
	if cfg == nil || table == nil {
		return nil, apperrors.ErrValidation.WithMessage("population and configuration are required")
	}

	keyed, err := table.KeyedBy(cfg.UniqueKey)
	if err != nil {
		return nil, err
	}
	eligible, _, err := o.filter.Apply(ctx, keyed, cfg.Eligibility)
	if err != nil {
		return nil, err
	}
	return eligible.Dedupe().IDs(), nil
}
