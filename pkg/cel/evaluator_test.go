package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"age", "region", "is_employee", "성별", "row"}

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator(columns)
	require.NoError(t, err)
	assert.NotNil(t, eval)
	assert.True(t, eval.HasColumn("성별"))
	assert.False(t, eval.HasColumn("tier"))
}

func TestCompilePredicate(t *testing.T) {
	eval, err := NewEvaluator(columns)
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{
			name: "identifier comparison",
			expr: `age >= 20`,
		},
		{
			name: "row map access for non-identifier column",
			expr: `row["성별"] == "여성"`,
		},
		{
			name: "in list",
			expr: `region in ["서울", "경기"]`,
		},
		{
			name: "dyn result accepted at compile time",
			expr: `row["is_employee"]`,
		},
		{
			name:      "unknown identifier",
			expr:      `tier == "gold"`,
			wantError: true,
		},
		{
			name:      "non-bool expression",
			expr:      `"constant"`,
			wantError: true,
		},
		{
			name:      "invalid syntax",
			expr:      `age >=`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := eval.CompilePredicate(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expr, prog.Expression())
		})
	}
}

func TestEvaluate(t *testing.T) {
	eval, err := NewEvaluator(columns)
	require.NoError(t, err)

	row := map[string]any{
		"age":         int64(34),
		"region":      "서울",
		"is_employee": false,
		"성별":          "여성",
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "int against int", expr: `age >= 20`, want: true},
		{name: "int against double", expr: `age < 34.5`, want: true},
		{name: "string equality", expr: `region == "부산"`, want: false},
		{name: "bool", expr: `!is_employee`, want: true},
		{name: "unicode column through row", expr: `row["성별"] == "여성"`, want: true},
		{name: "conjunction", expr: `age >= 20 && age <= 39 && region in ["서울"]`, want: true},
		{name: "key presence", expr: `"tier" in row`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := eval.CompilePredicate(tt.expr)
			require.NoError(t, err)

			got, err := prog.Evaluate(context.Background(), row)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	eval, err := NewEvaluator(columns)
	require.NoError(t, err)

	t.Run("non-bool dyn result", func(t *testing.T) {
		prog, err := eval.CompilePredicate(`row["region"]`)
		require.NoError(t, err)

		_, err = prog.Evaluate(context.Background(), map[string]any{"region": "서울"})
		assert.Error(t, err)
	})

	t.Run("missing map key", func(t *testing.T) {
		prog, err := eval.CompilePredicate(`row["region"] == "서울"`)
		require.NoError(t, err)

		_, err = prog.Evaluate(context.Background(), map[string]any{"age": int64(1)})
		assert.Error(t, err)
	})

	t.Run("null operand", func(t *testing.T) {
		prog, err := eval.CompilePredicate(`age > 10`)
		require.NoError(t, err)

		_, err = prog.Evaluate(context.Background(), map[string]any{"region": "서울"})
		assert.Error(t, err)
	})
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("age"))
	assert.True(t, IsIdentifier("_private1"))
	assert.False(t, IsIdentifier("1st"))
	assert.False(t, IsIdentifier("성별"))
	assert.False(t, IsIdentifier("user-id"))
}

func TestProgramReferences(t *testing.T) {
	eval, err := NewEvaluator([]string{"age", "region", "성별"})
	require.NoError(t, err)

	tests := []struct {
		expr     string
		want     []string
		complete bool
	}{
		{expr: `age > 20`, want: []string{"age"}, complete: true},
		{expr: `age > 20 && region == "서울"`, want: []string{"age", "region"}, complete: true},
		{expr: `row["성별"] == "F"`, want: []string{"성별"}, complete: true},
		{expr: `row.region == "서울" || age < 10`, want: []string{"region", "age"}, complete: true},
		{expr: `row[region] == "x"`, want: []string{"region"}, complete: false},
		{expr: `true`, want: nil, complete: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			prog, err := eval.CompilePredicate(tt.expr)
			require.NoError(t, err)
			got, complete := prog.References()
			assert.ElementsMatch(t, tt.want, got)
			assert.Equal(t, tt.complete, complete)
		})
	}
}
