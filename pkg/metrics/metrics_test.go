package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))

	IncDraw("success")
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "raffle_draws_total")
}

func TestHelpers(t *testing.T) {
	before := testutil.ToFloat64(WeightsClampedTotal)
	AddWeightsClamped(0)
	AddWeightsClamped(3)
	assert.Equal(t, before+3, testutil.ToFloat64(WeightsClampedTotal))

	ObserveCircuitBreakerRequest("audit-postgres", "closed", false)
	assert.GreaterOrEqual(t, testutil.ToFloat64(CircuitBreakerFailures.WithLabelValues("audit-postgres")), 1.0)

	SetCircuitBreakerState("audit-postgres", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(CircuitBreakerState.WithLabelValues("audit-postgres")))

	assert.Equal(t, 1.5, ms(1500*time.Microsecond))
}
