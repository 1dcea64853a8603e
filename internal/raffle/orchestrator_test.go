package raffle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raffle/internal/audit"
	"raffle/internal/drawconfig"
	"raffle/internal/logger"
	"raffle/internal/population"
	"raffle/internal/sampler"
	apperrors "raffle/pkg/errors"
	"raffle/pkg/models"
)

type memoryStore struct {
	mu      sync.Mutex
	records []audit.Record
	err     error
}

func (m *memoryStore) Name() string { return "memory" }

func (m *memoryStore) Append(_ context.Context, rec audit.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.records = append(m.records, rec)
	return fmt.Sprintf("memory:%d", len(m.records)), nil
}

func (m *memoryStore) List(context.Context, string, int) ([]audit.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Record(nil), m.records...), nil
}

type recordingNotifier struct {
	events []models.DrawCompletedEvent
	err    error
}

func (n *recordingNotifier) NotifyDrawCompleted(_ context.Context, event models.DrawCompletedEvent) error {
	n.events = append(n.events, event)
	return n.err
}

func genderPopulation(t *testing.T) *population.Table {
	t.Helper()
	records := make([]map[string]any, 1000)
	for i := range records {
		gender := "남성"
		if i < 700 {
			gender = "여성"
		}
		records[i] = map[string]any{"고객ID": i + 1, "성별": gender, "age": 20 + i%40}
	}
	table, err := population.FromRecords(records, "고객ID")
	require.NoError(t, err)
	return table
}

func genderConfig(t *testing.T) *drawconfig.DrawConfig {
	t.Helper()
	cfg, err := drawconfig.NewBuilder("고객ID").
		EventID("spring").
		SetWeightRule("성별", drawconfig.RuleSpec{
			Type:    "categorical",
			Mapping: map[string]float64{"여성": 1.2, "남성": 1.0},
		}).
		SetSQL("SELECT * FROM customers").
		Build()
	require.NoError(t, err)
	return cfg
}

func smallTable(t *testing.T) *population.Table {
	t.Helper()
	table, err := population.FromRecords([]map[string]any{
		{"id": "a", "age": 25, "tier": "gold"},
		{"id": "b", "age": 31, "tier": "silver"},
		{"id": "c", "age": 17, "tier": "gold"},
		{"id": "d", "age": 44, "tier": "bronze"},
		{"id": "e", "age": 52, "tier": "silver"},
	}, "id")
	require.NoError(t, err)
	return table
}

func fixedClock() time.Time {
	return time.Unix(1700000000, 0)
}

func femaleShare(winners []population.Row) float64 {
	female := 0
	for _, w := range winners {
		if w.Attrs["성별"] == "여성" {
			female++
		}
	}
	return float64(female) / float64(len(winners))
}

func TestRun_GenderScenario(t *testing.T) {
	table := genderPopulation(t)
	cfg := genderConfig(t)
	store := &memoryStore{}
	o := New(store, logger.NopLogger())

	res, err := o.Run(context.Background(), table, cfg, 200, sampler.Seeded(123))
	require.NoError(t, err)
	require.Len(t, res.Winners, 200)
	share := femaleShare(res.Winners)
	assert.Greater(t, share, 0.70)
	assert.Less(t, share, 0.80)

	// The expected share under sequential sampling is about 0.735.
	var total float64
	for seed := int64(100); seed < 150; seed++ {
		res, err := o.Run(context.Background(), table, cfg, 200, sampler.Seeded(seed))
		require.NoError(t, err)
		total += femaleShare(res.Winners)
	}
	mean := total / 50
	assert.Greater(t, mean, 0.70)
	assert.Less(t, mean, 0.80)
}

func TestRun_HappyPath(t *testing.T) {
	store := &memoryStore{}
	o := New(store, logger.NopLogger(), WithClock(fixedClock))

	cfg, err := drawconfig.NewBuilder("id").
		EventID("weekly").
		AddPredicate(drawconfig.Expr("age >= 20")).
		SetWeightRule("tier", drawconfig.RuleSpec{Type: "categorical", Mapping: map[string]float64{"gold": 3}}).
		Build()
	require.NoError(t, err)

	res, err := o.Run(context.Background(), smallTable(t), cfg, 2, sampler.Seeded(42))
	require.NoError(t, err)

	assert.Equal(t, StateAudited, res.State)
	assert.True(t, res.Audited)
	assert.Equal(t, "memory:1", res.AuditLocation)
	assert.Equal(t, 4, res.Eligible)
	assert.Len(t, res.WinnerIDs, 2)
	assert.NotContains(t, res.WinnerIDs, "c", "ineligible rows are never drawn")
	assert.Equal(t, audit.SnapshotHash([]string{"a", "b", "d", "e"}), res.SnapshotHash)
	require.NotNil(t, res.Seed)
	assert.Equal(t, int64(42), *res.Seed)

	require.Len(t, store.records, 1)
	rec := store.records[0]
	assert.Equal(t, res.DrawID, rec.DrawID)
	assert.Equal(t, "weekly", rec.EventID)
	assert.Equal(t, int64(1700000000), rec.Timestamp)
	assert.Equal(t, 4, rec.CandidateCount)
	assert.Equal(t, res.WinnerIDs, rec.WinnerIDs)
	assert.Equal(t, "id", rec.Config.UniqueKey)
	assert.NoError(t, audit.Verify(rec, []string{"e", "d", "b", "a"}))

	for i, id := range res.WinnerIDs {
		assert.Equal(t, id, res.Winners[i].ID)
	}
}

func TestRun_DeterministicAndAppendOnly(t *testing.T) {
	store := &memoryStore{}
	o := New(store, logger.NopLogger())
	cfg, err := drawconfig.NewBuilder("id").Build()
	require.NoError(t, err)

	first, err := o.Run(context.Background(), smallTable(t), cfg, 3, sampler.Seeded(42))
	require.NoError(t, err)
	second, err := o.Run(context.Background(), smallTable(t), cfg, 3, sampler.Seeded(42))
	require.NoError(t, err)

	assert.Equal(t, first.WinnerIDs, second.WinnerIDs)
	assert.Equal(t, first.SnapshotHash, second.SnapshotHash)
	assert.NotEqual(t, first.DrawID, second.DrawID)
	assert.Len(t, store.records, 2, "every run writes a fresh record")
}

func TestRun_KExceedsPopulation(t *testing.T) {
	o := New(&memoryStore{}, logger.NopLogger())
	cfg, err := drawconfig.NewBuilder("id").Build()
	require.NoError(t, err)

	res, err := o.Run(context.Background(), smallTable(t), cfg, 50, sampler.Seeded(1))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, res.WinnerIDs)
}

func TestRun_ZeroWinners(t *testing.T) {
	store := &memoryStore{}
	o := New(store, logger.NopLogger())
	cfg, err := drawconfig.NewBuilder("id").Build()
	require.NoError(t, err)

	res, err := o.Run(context.Background(), smallTable(t), cfg, 0, sampler.Seeded(1))
	require.NoError(t, err)
	assert.Empty(t, res.WinnerIDs)
	assert.True(t, res.Audited)
}

func TestRun_NoEligibleRows(t *testing.T) {
	o := New(&memoryStore{}, logger.NopLogger())
	cfg, err := drawconfig.NewBuilder("id").AddPredicate(drawconfig.Expr("age > 100")).Build()
	require.NoError(t, err)

	res, err := o.Run(context.Background(), smallTable(t), cfg, 3, sampler.Seeded(1))
	require.NoError(t, err)
	assert.Empty(t, res.WinnerIDs)
	assert.Equal(t, 0, res.Eligible)
	assert.Equal(t, audit.SnapshotHash(nil), res.SnapshotHash)
}

func TestRun_DedupeKeepsLastOccurrence(t *testing.T) {
	table, err := population.FromRecords([]map[string]any{
		{"id": "a", "tier": "silver"},
		{"id": "b", "tier": "silver"},
		{"id": "a", "tier": "gold"},
	}, "id")
	require.NoError(t, err)

	o := New(&memoryStore{}, logger.NopLogger())
	cfg, err := drawconfig.NewBuilder("id").Build()
	require.NoError(t, err)

	res, err := o.Run(context.Background(), table, cfg, 5, sampler.Seeded(3))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Eligible)
	assert.ElementsMatch(t, []string{"a", "b"}, res.WinnerIDs)
	for _, w := range res.Winners {
		if w.ID == "a" {
			assert.Equal(t, "gold", w.Attrs["tier"])
		}
	}
}

func TestRun_RekeysPopulation(t *testing.T) {
	o := New(&memoryStore{}, logger.NopLogger())
	cfg, err := drawconfig.NewBuilder("tier").Build()
	require.NoError(t, err)

	res, err := o.Run(context.Background(), smallTable(t), cfg, 10, sampler.Seeded(3))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gold", "silver", "bronze"}, res.WinnerIDs)
}

func TestRun_StageFailuresLeaveNoAuditRecord(t *testing.T) {
	huge := map[string]float64{"gold": 1e300, "silver": 1e300, "bronze": 1e300}

	tests := []struct {
		name    string
		build   func() (*drawconfig.DrawConfig, error)
		winners int
		check   func(error) bool
	}{
		{
			name:    "unique key missing",
			build:   drawconfig.NewBuilder("customer_no").Build,
			winners: 1,
			check:   apperrors.IsUniqueKeyMissing,
		},
		{
			name:    "predicate on unknown attribute",
			build:   drawconfig.NewBuilder("id").AddPredicate(drawconfig.Expr("score > 1")).Build,
			winners: 1,
			check:   apperrors.IsConfiguration,
		},
		{
			name:    "non-bool predicate",
			build:   drawconfig.NewBuilder("id").AddPredicate(drawconfig.Expr("age + 1")).Build,
			winners: 1,
			check:   apperrors.IsConfiguration,
		},
		{
			name: "overflowing weight",
			build: drawconfig.NewBuilder("id").
				SetWeightRule("tier", drawconfig.RuleSpec{Type: "categorical", Mapping: huge}).
				SetWeightRule("age", drawconfig.RuleSpec{Type: "bucket", Buckets: [][]float64{{0, 100, 1e300}}}).
				Build,
			winners: 1,
			check:   apperrors.IsInvalidWeight,
		},
		{
			name:    "negative winner count",
			build:   drawconfig.NewBuilder("id").Build,
			winners: -1,
			check:   apperrors.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			o := New(audit.NewFileStore(dir), logger.NopLogger())

			cfg, err := tt.build()
			require.NoError(t, err)

			res, err := o.Run(context.Background(), smallTable(t), cfg, tt.winners, sampler.Seeded(1))
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, tt.check(err), "got %v", err)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestRun_MaxWinners(t *testing.T) {
	store := &memoryStore{}
	o := New(store, logger.NopLogger(), WithMaxWinners(2))
	cfg, err := drawconfig.NewBuilder("id").Build()
	require.NoError(t, err)

	_, err = o.Run(context.Background(), smallTable(t), cfg, 3, sampler.Seeded(1))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, store.records)
}

func TestRun_CancelledContext(t *testing.T) {
	store := &memoryStore{}
	o := New(store, logger.NopLogger())
	cfg, err := drawconfig.NewBuilder("id").AddPredicate(drawconfig.Expr("age > 0")).Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = o.Run(ctx, smallTable(t), cfg, 1, sampler.Seeded(1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.records)
}

func TestRun_AuditFailureReturnsUnauditedWinners(t *testing.T) {
	store := &memoryStore{err: errors.New("disk full")}
	notifier := &recordingNotifier{}
	o := New(store, logger.NopLogger(), WithNotifier(notifier))
	cfg, err := drawconfig.NewBuilder("id").Build()
	require.NoError(t, err)

	res, err := o.Run(context.Background(), smallTable(t), cfg, 2, sampler.Seeded(9))
	require.Error(t, err)
	assert.True(t, apperrors.IsAuditPersistence(err))

	require.NotNil(t, res)
	assert.False(t, res.Audited)
	assert.Equal(t, StateWinnersDrawn, res.State)
	assert.Len(t, res.WinnerIDs, 2)
	assert.Empty(t, res.AuditLocation)
	assert.Empty(t, notifier.events, "unaudited draws are not announced")
}

func TestRun_NotifierFailureIsBestEffort(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("broker down")}
	o := New(&memoryStore{}, logger.NopLogger(), WithNotifier(notifier))
	cfg, err := drawconfig.NewBuilder("id").EventID("weekly").Build()
	require.NoError(t, err)

	res, err := o.Run(context.Background(), smallTable(t), cfg, 2, sampler.Unpredictable())
	require.NoError(t, err)
	assert.True(t, res.Audited)
	assert.Nil(t, res.Seed)

	require.Len(t, notifier.events, 1)
	event := notifier.events[0]
	assert.Equal(t, "weekly", event.EventID)
	assert.Equal(t, res.DrawID, event.DrawID)
	assert.Equal(t, res.WinnerIDs, event.WinnerIDs)
	assert.Equal(t, "memory:1", event.AuditLocation)
}

func TestRun_NilInputs(t *testing.T) {
	o := New(&memoryStore{}, logger.NopLogger())

	_, err := o.Run(context.Background(), smallTable(t), nil, 1, sampler.Seeded(1))
	assert.True(t, apperrors.IsConfiguration(err))

	cfg, err := drawconfig.NewBuilder("id").Build()
	require.NoError(t, err)
	_, err = o.Run(context.Background(), nil, cfg, 1, sampler.Seeded(1))
	assert.True(t, apperrors.IsValidation(err))
}

func TestResult_JSON(t *testing.T) {
	res := Result{State: StateAudited, WinnerIDs: []string{"a"}}
	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"audited"`)
	assert.Contains(t, string(data), `"seed":null`)
}

func TestState(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "winners_drawn", StateWinnersDrawn.String())
	assert.Equal(t, "state(9)", State(9).String())

	var s State
	require.NoError(t, s.UnmarshalText([]byte("winners_drawn")))
	assert.Equal(t, StateWinnersDrawn, s)
	assert.Error(t, s.UnmarshalText([]byte("done")))

	r := &run{}
	r.advance(StateEligibilityApplied)
	assert.Panics(t, func() { r.advance(StateWinnersDrawn) })
}

func TestCandidateIDs_VerifiesRecord(t *testing.T) {
	store := &memoryStore{}
	o := New(store, logger.NopLogger())
	cfg, err := drawconfig.NewBuilder("id").AddPredicate(drawconfig.Expr("age >= 20")).Build()
	require.NoError(t, err)

	_, err = o.Run(context.Background(), smallTable(t), cfg, 1, sampler.Seeded(5))
	require.NoError(t, err)
	rec := store.records[0]

	replayed, err := drawconfig.Compile(rec.Config)
	require.NoError(t, err)
	ids, err := o.CandidateIDs(context.Background(), smallTable(t), replayed)
	require.NoError(t, err)
	assert.NoError(t, audit.Verify(rec, ids))

	tampered := smallTable(t)
	tampered = tampered.WithRows(tampered.Rows[1:])
	ids, err = o.CandidateIDs(context.Background(), tampered, replayed)
	require.NoError(t, err)
	err = audit.Verify(rec, ids)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = o.CandidateIDs(context.Background(), nil, replayed)
	assert.Error(t, err)
}
