package drawconfig

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raffle/internal/constants"
	apperrors "raffle/pkg/errors"
)

const sampleYAML = `
event_id: spring-2025
unique_key: 고객ID
eligibility:
  - age >= 20
  - field: 지역
    op: IN
    value: [서울, 경기]
weights:
  성별:
    type: categorical
    mapping: {여성: 1.2, 남성: 1.0}
  age:
    type: bucket
    buckets:
      - [20, 29, 1.5]
      - [27, 27, 2.0]
    default: 0.8
defaults:
  categorical: 1.0
  bucket: 1.0
sql: SELECT * FROM customers
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "spring-2025", cfg.EventID)
	assert.Equal(t, "고객ID", cfg.UniqueKey)
	assert.Equal(t, constants.DefaultEpsilon, cfg.Epsilon)
	assert.Equal(t, "SELECT * FROM customers", cfg.SQL)

	require.Len(t, cfg.Eligibility, 2)
	assert.Equal(t, "age >= 20", cfg.Eligibility[0].Expr)
	assert.Equal(t, "지역", cfg.Eligibility[1].Field)

	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, "age", cfg.Rules[0].Attribute, "rules are ordered by attribute")
	assert.Equal(t, "성별", cfg.Rules[1].Attribute)

	age := cfg.Rules[0].Rule.(Bucket)
	assert.Equal(t, 2.0, age.Factor(int64(27)))
	assert.Equal(t, 1.5, age.Factor(int64(25)))
	assert.Equal(t, 0.8, age.Factor(int64(40)))

	gender := cfg.Rules[1].Rule.(Categorical)
	assert.Equal(t, 1.2, gender.Factor("여성"), "non-ASCII keys keep their case and form")
}

func TestParse_JSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"unique_key": "id", "eligibility": ["vip == true"], "weights": {"Tier": {"mapping": {"Gold": 3}}}}`))
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultEventID, cfg.EventID)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "Tier", cfg.Rules[0].Attribute)
	assert.Equal(t, KindCategorical, cfg.Rules[0].Rule.Kind())
	assert.Equal(t, 3.0, cfg.Rules[0].Rule.Factor("Gold"))
	assert.Equal(t, 1.0, cfg.Rules[0].Rule.Factor("gold"))
}

func TestParse_LaterBucketOverridesEarlier(t *testing.T) {
	cfg, err := Parse([]byte("unique_key: id\nweights:\n  age:\n    type: bucket\n    buckets: [[20, 29, 1.0], [25, 35, 2.0]]\n"))
	require.NoError(t, err)

	age := cfg.Rules[0].Rule
	assert.Equal(t, 2.0, age.Factor(int64(27)))
	assert.Equal(t, 2.0, age.Factor(int64(25)))
	assert.Equal(t, 1.0, age.Factor(int64(24)))
	assert.Equal(t, 2.0, age.Factor(int64(35)))
	assert.Equal(t, 1.0, age.Factor(int64(36)))
}

func TestParse_PartialDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
unique_key: id
weights:
  age: {type: bucket, buckets: [[20, 29, 3.0]]}
  tier: {mapping: {gold: 2.0}}
defaults:
  categorical: 2.0
`))
	require.NoError(t, err)
	assert.Equal(t, Defaults{Categorical: 2.0, Bucket: 1.0}, cfg.Defaults)

	age := cfg.Rules[0].Rule
	assert.Equal(t, 3.0, age.Factor(int64(25)))
	assert.Equal(t, 1.0, age.Factor(int64(50)), "omitted bucket default stays 1.0")
	assert.Equal(t, 2.0, cfg.Rules[1].Rule.Factor("silver"))

	cfg, err = Parse([]byte("unique_key: id\ndefaults: {bucket: 0.5}\nweights: {tier: {mapping: {gold: 2.0}}}"))
	require.NoError(t, err)
	assert.Equal(t, Defaults{Categorical: 1.0, Bucket: 0.5}, cfg.Defaults)
	assert.Equal(t, 1.0, cfg.Rules[0].Rule.Factor("silver"))
}

func TestDefaults_UnmarshalJSONKeepsOmittedKinds(t *testing.T) {
	var spec Spec
	require.NoError(t, json.Unmarshal([]byte(`{"unique_key": "id", "defaults": {"bucket": 0.5}}`), &spec))
	require.NotNil(t, spec.Defaults)
	assert.Equal(t, Defaults{Categorical: 1.0, Bucket: 0.5}, *spec.Defaults)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing unique key", doc: `weights: {}`},
		{name: "unknown field", doc: "unique_key: id\nweigths: {}"},
		{name: "bad yaml", doc: "unique_key: [id"},
		{name: "empty mapping", doc: "unique_key: id\nweights: {a: {type: categorical, mapping: {}}}"},
		{name: "empty buckets", doc: "unique_key: id\nweights: {a: {type: bucket}}"},
		{name: "short bucket", doc: "unique_key: id\nweights: {a: {type: bucket, buckets: [[1, 2]]}}"},
		{name: "inverted bucket", doc: "unique_key: id\nweights: {a: {type: bucket, buckets: [[5, 1, 2]]}}"},
		{name: "unknown rule type", doc: "unique_key: id\nweights: {a: {type: linear, mapping: {x: 1}}}"},
		{name: "mapping on bucket", doc: "unique_key: id\nweights: {a: {type: bucket, mapping: {x: 1}, buckets: [[0, 1, 1]]}}"},
		{name: "invalid operator", doc: "unique_key: id\neligibility: [{field: a, op: LIKE, value: x}]"},
		{name: "empty predicate", doc: "unique_key: id\neligibility: ['  ']"},
		{name: "negative epsilon", doc: "unique_key: id\nepsilon: -1"},
		{name: "unknown defaults kind", doc: "unique_key: id\ndefaults: {categorcal: 2.0}"},
		{name: "scalar defaults", doc: "unique_key: id\ndefaults: 2.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, apperrors.IsConfiguration(err), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draw.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "spring-2025", cfg.EventID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSpec_ResolvesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	spec := cfg.Spec()
	require.NotNil(t, spec.Defaults)
	require.NotNil(t, spec.Weights["성별"].Default)
	assert.Equal(t, 1.0, *spec.Weights["성별"].Default)
	assert.Equal(t, 0.8, *spec.Weights["age"].Default)
	assert.Equal(t, [][]float64{{20, 29, 1.5}, {27, 27, 2.0}}, spec.Weights["age"].Buckets)

	again, err := Compile(spec)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestSpec_JSONRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	data, err := json.Marshal(cfg.Spec())
	require.NoError(t, err)
	assert.Contains(t, string(data), `{"field":"지역","op":"IN","value":["서울","경기"]}`)

	var back Spec
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, cfg.Eligibility[0], back.Eligibility[0])
	assert.Equal(t, "지역", back.Eligibility[1].Field)
}

func TestBuilder(t *testing.T) {
	b := NewBuilder("user_id").
		EventID("weekly").
		AddPredicate(Expr(`age >= 20`)).
		SetWeightRule("tier", RuleSpec{Type: "categorical", Mapping: map[string]float64{"gold": 3}})

	first, err := b.Build()
	require.NoError(t, err)

	b.AddPredicate(Filter("region", "=", "서울")).
		SetWeightRule("tier", RuleSpec{Type: "categorical", Mapping: map[string]float64{"gold": 5}}).
		SetDefaults(Defaults{Categorical: 0.5, Bucket: 1}).
		SetEpsilon(1e-6).
		SetSQL("SELECT 1")

	second, err := b.Build()
	require.NoError(t, err)

	assert.Len(t, first.Eligibility, 1, "earlier snapshot is unaffected")
	assert.Equal(t, 3.0, first.Rules[0].Rule.Factor("gold"))
	assert.Equal(t, 1.0, first.Rules[0].Rule.Factor("silver"))

	assert.Len(t, second.Eligibility, 2)
	assert.Equal(t, 5.0, second.Rules[0].Rule.Factor("gold"))
	assert.Equal(t, 0.5, second.Rules[0].Rule.Factor("silver"))
	assert.Equal(t, 1e-6, second.Epsilon)
	assert.Equal(t, "SELECT 1", second.SQL)
}

func TestBuilder_InvalidRule(t *testing.T) {
	_, err := NewBuilder("id").
		SetWeightRule("age", RuleSpec{Type: "bucket", Buckets: [][]float64{{0, 10, math.NaN()}}}).
		Build()
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}
