package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "raffle/pkg/errors"
)

func TestDraw_UniqueAndLength(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	weights := []float64{1, 5, 0.2, 3, 3, 1e-12, 7, 2}

	for k := 0; k <= len(ids)+2; k++ {
		for seed := int64(0); seed < 20; seed++ {
			got, err := Draw(ids, weights, k, Seeded(seed))
			require.NoError(t, err)

			assert.Len(t, got, min(k, len(ids)))
			seen := make(map[string]bool, len(got))
			for _, id := range got {
				assert.False(t, seen[id], "duplicate winner %s (k=%d seed=%d)", id, k, seed)
				seen[id] = true
			}
		}
	}
}

func TestDraw_Deterministic(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	weights := []float64{1, 2, 3, 4, 5}

	first, err := Draw(ids, weights, 3, Seeded(42))
	require.NoError(t, err)
	require.Len(t, first, 3)

	for i := 0; i < 10; i++ {
		again, err := Draw(ids, weights, 3, Seeded(42))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDraw_KZeroAndKAboveN(t *testing.T) {
	ids := []string{"a", "b", "c"}
	weights := []float64{1, 1, 1}

	got, err := Draw(ids, weights, 0, Seeded(1))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Draw(ids, weights, -3, Seeded(1))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Draw(ids, weights, 10, Seeded(1))
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, got)

	got, err = Draw(nil, nil, 5, Seeded(1))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDraw_Errors(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		weights []float64
		check   func(error) bool
	}{
		{
			name:    "length mismatch",
			ids:     []string{"a", "b"},
			weights: []float64{1},
			check:   apperrors.IsConfiguration,
		},
		{
			name:    "negative weight",
			ids:     []string{"a", "b"},
			weights: []float64{1, -0.5},
			check:   apperrors.IsInvalidWeight,
		},
		{
			name:    "NaN weight",
			ids:     []string{"a"},
			weights: []float64{math.NaN()},
			check:   apperrors.IsInvalidWeight,
		},
		{
			name:    "infinite weight",
			ids:     []string{"a"},
			weights: []float64{math.Inf(1)},
			check:   apperrors.IsInvalidWeight,
		},
		{
			name:    "all zero",
			ids:     []string{"a", "b"},
			weights: []float64{0, 0},
			check:   apperrors.IsNoPositiveWeight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Draw(tt.ids, tt.weights, 1, Seeded(7))
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}
}

func TestDraw_ZeroWeightsOnlyAfterPositives(t *testing.T) {
	ids := []string{"z1", "p", "z2"}
	weights := []float64{0, 1, 0}

	for seed := int64(0); seed < 50; seed++ {
		got, err := Draw(ids, weights, 1, Seeded(seed))
		require.NoError(t, err)
		assert.Equal(t, []string{"p"}, got)

		got, err = Draw(ids, weights, 3, Seeded(seed))
		require.NoError(t, err)
		assert.Equal(t, "p", got[0])
		assert.ElementsMatch(t, ids, got)
	}
}

func TestDraw_FirstPickProportional(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	weights := []float64{1, 2, 3, 4}
	const runs = 20000

	counts := make(map[string]int)
	for seed := int64(0); seed < runs; seed++ {
		got, err := Draw(ids, weights, 1, Seeded(seed))
		require.NoError(t, err)
		counts[got[0]]++
	}

	for i, id := range ids {
		assert.InDelta(t, weights[i]/10, float64(counts[id])/runs, 0.015, "id %s", id)
	}
}

func TestDraw_SequentialWithoutReplacement(t *testing.T) {
	// P(a in two winners) = 0.1 + 0.1*(1/9) + 0.8*(1/2)
	ids := []string{"a", "b", "c"}
	weights := []float64{1, 1, 8}
	const runs = 20000

	hits := 0
	for seed := int64(0); seed < runs; seed++ {
		got, err := Draw(ids, weights, 2, Seeded(seed))
		require.NoError(t, err)
		for _, id := range got {
			if id == "a" {
				hits++
			}
		}
	}

	want := 0.1 + 0.1/9 + 0.4
	assert.InDelta(t, want, float64(hits)/runs, 0.015)
}

func TestDraw_WeightMonotonicity(t *testing.T) {
	ids := []string{"light", "heavy"}
	const runs = 5000

	heavy := 0
	for seed := int64(0); seed < runs; seed++ {
		got, err := Draw(ids, []float64{1, 3}, 1, Seeded(seed))
		require.NoError(t, err)
		if got[0] == "heavy" {
			heavy++
		}
	}

	assert.Greater(t, heavy, runs/2)
	assert.InDelta(t, 0.75, float64(heavy)/runs, 0.03)
}

func TestDraw_HugeWeightsStayFinite(t *testing.T) {
	ids := []string{"a", "b", "c"}
	weights := []float64{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64 / 2}

	got, err := Draw(ids, weights, 3, Seeded(3))
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, got)
}

func TestUnpredictable(t *testing.T) {
	e := Unpredictable()
	_, seeded := e.Seed()
	assert.False(t, seeded)
	assert.Nil(t, e.SeedPtr())

	got, err := Draw([]string{"a", "b", "c"}, []float64{1, 1, 1}, 2, e)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.NotEqual(t, got[0], got[1])
}

func TestSeeded(t *testing.T) {
	e := Seeded(123)
	seed, ok := e.Seed()
	assert.True(t, ok)
	assert.Equal(t, int64(123), seed)
	require.NotNil(t, e.SeedPtr())
	assert.Equal(t, int64(123), *e.SeedPtr())
}

func TestExpandSeed(t *testing.T) {
	hi, lo := expandSeed(0)
	assert.Equal(t, uint64(0xe220a8397b1dcdaf), hi, "first SplitMix64 output for state 0")
	assert.Equal(t, uint64(0x6e789e6aa1b965f4), lo)

	hi1, lo1 := expandSeed(1)
	assert.NotEqual(t, hi, hi1)
	assert.NotEqual(t, lo, lo1, "neighbouring seeds differ in both state words")
}

func TestFenwick(t *testing.T) {
	f := newFenwick([]float64{1, 2, 0, 3, 4})

	assert.Equal(t, 10.0, f.total())
	assert.Equal(t, 3.0, f.prefix(2))

	assert.Equal(t, 0, f.find(0))
	assert.Equal(t, 0, f.find(0.99))
	assert.Equal(t, 1, f.find(1))
	assert.Equal(t, 3, f.find(3), "zero-weight slot is skipped")
	assert.Equal(t, 4, f.find(9.5))
	assert.Equal(t, 5, f.find(10))

	f.add(3, -3)
	assert.Equal(t, 7.0, f.total())
	assert.Equal(t, 4, f.find(3))
}
