package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeCompleted    = "completed"
	OutcomeFailed       = "failed"
	OutcomeRequeued     = "requeued"
	OutcomeNonRetryable = "non_retryable"
)

// GenerationMetrics captures queue and generator health signals.
type GenerationMetrics struct {
	claims           *prometheus.CounterVec
	itemOutcomes     *prometheus.CounterVec
	staleReclaims    prometheus.Counter
	batchFinalized   *prometheus.CounterVec
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	validationFails  *prometheus.CounterVec
	queueDepth       prometheus.Gauge
}

var (
	generationOnce sync.Once
	generation     *GenerationMetrics
)

// Generation returns the process-wide generation metrics, registering them
// on first use.
func Generation() *GenerationMetrics {
	generationOnce.Do(func() {
		generation = newGenerationMetrics(prometheus.DefaultRegisterer)
	})
	return generation
}

func newGenerationMetrics(reg prometheus.Registerer) *GenerationMetrics {
	m := &GenerationMetrics{
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "generation_queue_claims_total",
			Help: "Queue entry claims by strategy (sweep or targeted).",
		}, []string{"strategy"}),
		itemOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "generation_item_outcomes_total",
			Help: "Executed queue entries by outcome.",
		}, []string{"outcome"}),
		staleReclaims: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "generation_stale_lock_reclaims_total",
			Help: "Processing entries reset to pending after lock timeout.",
		}),
		batchFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "generation_batches_finalized_total",
			Help: "Batches transitioned to a terminal status.",
		}, []string{"status"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "generation_provider_calls_total",
			Help: "Completion provider calls by result.",
		}, []string{"provider", "result"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "generation_provider_duration_seconds",
			Help:    "Completion provider call latency.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"provider"}),
		validationFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "generation_validation_failures_total",
			Help: "Candidate outputs rejected by the validator.",
		}, []string{"format"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "generation_queue_pending_entries",
			Help: "Pending queue entries at last sweep.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.claims, m.itemOutcomes, m.staleReclaims, m.batchFinalized,
		m.providerCalls, m.providerDuration, m.validationFails, m.queueDepth,
	} {
		if err := reg.Register(c); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				_ = already
				continue
			}
		}
	}

	return m
}

func (m *GenerationMetrics) IncClaim(strategy string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(strategy).Inc()
}

func (m *GenerationMetrics) IncItemOutcome(outcome string) {
	if m == nil {
		return
	}
	m.itemOutcomes.WithLabelValues(outcome).Inc()
}

func (m *GenerationMetrics) AddStaleReclaims(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.staleReclaims.Add(float64(n))
}

func (m *GenerationMetrics) IncBatchFinalized(status string) {
	if m == nil {
		return
	}
	m.batchFinalized.WithLabelValues(strings.ToLower(status)).Inc()
}

func (m *GenerationMetrics) ObserveProviderCall(provider, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, result).Inc()
	m.providerDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *GenerationMetrics) IncValidationFailure(format string) {
	if m == nil {
		return
	}
	if format == "" {
		format = "unknown"
	}
	m.validationFails.WithLabelValues(format).Inc()
}

func (m *GenerationMetrics) SetQueueDepth(depth int64) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}
