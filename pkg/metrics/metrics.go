package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "raffle"

var msBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// Draw pipeline.
var (
	DrawsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "draws_total",
		Help:      "Draws by outcome: success, unaudited or failed.",
	}, []string{"status"})

	DrawStageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "draw_stage_duration_ms",
		Help:      "Duration of each draw pipeline stage in milliseconds.",
		Buckets:   msBuckets,
	}, []string{"stage"})

	DrawCandidates = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "draw_candidates",
		Help:      "Eligible candidates per draw.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
	})

	DrawWinners = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "draw_winners",
		Help:      "Winners per draw.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})

	EligibilityRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "eligibility",
		Name:      "rows_total",
		Help:      "Rows seen by eligibility predicates: passed, filtered or missing.",
	}, []string{"result"})

	WeightsClampedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "weighting",
		Name:      "clamped_total",
		Help:      "Row weights raised to the epsilon floor.",
	})
)

// Audit stores.
var (
	AuditWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "writes_total",
		Help:      "Audit record writes by backend and status.",
	}, []string{"backend", "status"})

	AuditWriteDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "write_duration_ms",
		Help:      "Duration of audit record writes in milliseconds.",
		Buckets:   msBuckets,
	}, []string{"backend"})

	DatabaseQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "queries_total",
		Help:      "Audit database queries by operation and status.",
	}, []string{"service", "database", "operation", "status"})

	DatabaseQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "query_duration_ms",
		Help:      "Duration of audit database queries in milliseconds.",
		Buckets:   msBuckets,
	}, []string{"service", "database", "operation"})

	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Breaker state: 0 closed, 1 half-open, 2 open.",
	}, []string{"name"})

	CircuitBreakerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "circuit_breaker",
		Name:      "requests_total",
		Help:      "Calls made through a breaker, by breaker state after the call.",
	}, []string{"name", "state"})

	CircuitBreakerFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Failed calls made through a breaker.",
	}, []string{"name"})
)

// Draw event publishing.
var (
	RetryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broker",
		Name:      "retry_attempts_total",
		Help:      "Publish attempts that failed and were retried.",
	}, []string{"service", "topic"})

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "kafka",
		Name:      "messages_written_total",
		Help:      "Messages written to Kafka.",
	}, []string{"service", "topic"})

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "kafka",
		Name:      "message_size_bytes",
		Help:      "Size of Kafka messages in bytes.",
		Buckets:   prometheus.ExponentialBuckets(100, 5, 8),
	}, []string{"service", "topic", "direction"})

	KafkaWriteDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "kafka",
		Name:      "write_duration_ms",
		Help:      "Duration of Kafka writes in milliseconds.",
		Buckets:   msBuckets,
	}, []string{"service", "topic"})
)

var RateLimitRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "api",
	Name:      "rate_limit_requests_total",
	Help:      "API requests checked against the rate limit, by decision.",
}, []string{"status"})

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		DrawsTotal, DrawStageDuration, DrawCandidates, DrawWinners, EligibilityRowsTotal, WeightsClampedTotal,
		AuditWritesTotal, AuditWriteDuration, DatabaseQueriesTotal, DatabaseQueryDuration,
		CircuitBreakerState, CircuitBreakerRequests, CircuitBreakerFailures,
		RetryAttemptsTotal, KafkaMessagesWrittenTotal, KafkaMessageSizeBytes, KafkaWriteDuration,
		RateLimitRequestsTotal,
	}
}

// Register adds every collector to reg. Collectors already registered there
// are skipped, so a second call is harmless.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func IncDraw(status string) {
	DrawsTotal.WithLabelValues(status).Inc()
}

func ObserveStageDuration(stage string, d time.Duration) {
	DrawStageDuration.WithLabelValues(stage).Observe(ms(d))
}

func ObserveDrawSize(candidates, winners int) {
	DrawCandidates.Observe(float64(candidates))
	DrawWinners.Observe(float64(winners))
}

func AddEligibilityRows(result string, n int) {
	if n > 0 {
		EligibilityRowsTotal.WithLabelValues(result).Add(float64(n))
	}
}

func AddWeightsClamped(n int) {
	if n > 0 {
		WeightsClampedTotal.Add(float64(n))
	}
}

func IncAuditWrite(backend, status string) {
	AuditWritesTotal.WithLabelValues(backend, status).Inc()
}

func ObserveAuditWriteDuration(backend string, d time.Duration) {
	AuditWriteDuration.WithLabelValues(backend).Observe(ms(d))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, d time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(ms(d))
}

// SetCircuitBreakerState takes the numeric gobreaker state.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func ObserveCircuitBreakerRequest(name, state string, ok bool) {
	CircuitBreakerRequests.WithLabelValues(name, state).Inc()
	if !ok {
		CircuitBreakerFailures.WithLabelValues(name).Inc()
	}
}

func IncRetryAttempt(service, topic string) {
	RetryAttemptsTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func ObserveKafkaWriteDuration(service, topic string, d time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(ms(d))
}

func IncRateLimit(status string) {
	RateLimitRequestsTotal.WithLabelValues(status).Inc()
}
