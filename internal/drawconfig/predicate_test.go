package drawconfig

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	apperrors "raffle/pkg/errors"
)

func TestPredicateCEL(t *testing.T) {
	tests := []struct {
		name      string
		predicate Predicate
		want      string
	}{
		{name: "expression passes through", predicate: Expr(" age >= 20 "), want: "age >= 20"},
		{name: "equals", predicate: Filter("성별", "=", "여성"), want: `row["성별"] == "여성"`},
		{name: "double equals", predicate: Filter("vip", "==", true), want: `row["vip"] == true`},
		{name: "not equals", predicate: Filter("region", "!=", "부산"), want: `row["region"] != "부산"`},
		{name: "greater", predicate: Filter("age", ">", 19), want: `row["age"] > 19`},
		{name: "greater or equal float", predicate: Filter("score", ">=", 2.5), want: `row["score"] >= 2.5`},
		{name: "less integral float", predicate: Filter("age", "<", 40.0), want: `row["age"] < 40`},
		{name: "less or equal", predicate: Filter("age", "<=", int64(39)), want: `row["age"] <= 39`},
		{name: "in", predicate: Filter("region", "in", []any{"서울", "경기"}), want: `row["region"] in ["서울", "경기"]`},
		{name: "between", predicate: Filter("age", "BETWEEN", []any{20, 39}), want: `(row["age"] >= 20 && row["age"] <= 39)`},
		{name: "quotes escaped", predicate: Filter(`a"b`, "=", `x"y`), want: `row["a\"b"] == "x\"y"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.predicate.CEL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredicateCEL_Errors(t *testing.T) {
	tests := []struct {
		name      string
		predicate Predicate
	}{
		{name: "empty", predicate: Expr("")},
		{name: "unknown operator", predicate: Filter("age", "LIKE", "2%")},
		{name: "in without list", predicate: Filter("region", "IN", "서울")},
		{name: "in with empty list", predicate: Filter("region", "IN", []any{})},
		{name: "between with one bound", predicate: Filter("age", "BETWEEN", []any{1})},
		{name: "unsupported value", predicate: Filter("age", "=", map[string]any{"x": 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.predicate.CEL()
			require.Error(t, err)
			assert.True(t, apperrors.IsConfiguration(err))
		})
	}
}

func TestPredicateUnmarshal(t *testing.T) {
	var fromYAML []Predicate
	require.NoError(t, yaml.Unmarshal([]byte("- age >= 20\n- {field: age, op: BETWEEN, value: [20, 29]}\n"), &fromYAML))
	require.Len(t, fromYAML, 2)
	assert.Equal(t, Expr("age >= 20"), fromYAML[0])
	assert.Equal(t, "BETWEEN", fromYAML[1].Op)
	assert.Equal(t, []any{20, 29}, fromYAML[1].Value)

	var fromJSON []Predicate
	require.NoError(t, json.Unmarshal([]byte(`["age >= 20", {"field": "age", "op": ">", "value": 3}]`), &fromJSON))
	require.Len(t, fromJSON, 2)
	assert.Equal(t, Expr("age >= 20"), fromJSON[0])
	assert.Equal(t, 3.0, fromJSON[1].Value)

	got, err := fromJSON[1].CEL()
	require.NoError(t, err)
	assert.Equal(t, `row["age"] > 3`, got)
}

func TestPredicateString(t *testing.T) {
	assert.Equal(t, "age >= 20", Expr("age >= 20").String())
	assert.Equal(t, "age BETWEEN [20 29]", Filter("age", "BETWEEN", []any{20, 29}).String())
}
