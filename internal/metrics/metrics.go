package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the assessment engine.
type Metrics struct {
	// Session lifecycle
	SessionsStarted   prometheus.Counter
	SessionsStartFail *prometheus.CounterVec
	SessionsFinished  *prometheus.CounterVec
	SessionsActive    prometheus.Gauge

	// Proctoring
	ViolationsTotal      *prometheus.CounterVec
	SessionsFlagged      prometheus.Counter
	DetectionErrorsTotal *prometheus.CounterVec
	ClassifyDuration     prometheus.Histogram

	// Question provider
	QuestionCacheHits   prometheus.Counter
	QuestionCacheMisses prometheus.Counter
	GenerationFailures  prometheus.Counter
	DroppedCandidates   prometheus.Counter

	// Persistence
	FinalizeFailures prometheus.Counter
	FinalizeDuration prometheus.Histogram
}

// NewMetrics creates and registers the metrics once per process.
//
// All metrics are prefixed with "assessment_".
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "assessment_sessions_started_total",
				Help: "Total number of test sessions started",
			}),
			SessionsStartFail: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "assessment_sessions_start_failures_total",
					Help: "Total number of rejected session starts",
				},
				[]string{"reason"}, // "generation", "resource", "validation"
			),
			SessionsFinished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "assessment_sessions_finished_total",
					Help: "Total number of sessions that left the in-progress state",
				},
				[]string{"outcome"}, // "submitted", "timeout", "abandoned"
			),
			SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "assessment_sessions_active",
				Help: "Number of sessions currently held in memory",
			}),

			ViolationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "assessment_violations_total",
					Help: "Total number of proctoring violations",
				},
				[]string{"kind"},
			),
			SessionsFlagged: promauto.NewCounter(prometheus.CounterOpts{
				Name: "assessment_sessions_flagged_total",
				Help: "Total number of sessions whose tally reached the flag threshold",
			}),
			DetectionErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "assessment_detection_errors_total",
					Help: "Total number of frame read or classification failures",
				},
				[]string{"stage"}, // "read", "classify"
			),
			ClassifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "assessment_classify_duration_seconds",
				Help:    "Duration of frame classification in seconds",
				Buckets: prometheus.DefBuckets,
			}),

			QuestionCacheHits: promauto.NewCounter(prometheus.CounterOpts{
				Name: "assessment_question_cache_hits_total",
				Help: "Total number of question cache hits",
			}),
			QuestionCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
				Name: "assessment_question_cache_misses_total",
				Help: "Total number of question cache misses",
			}),
			GenerationFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "assessment_generation_failures_total",
				Help: "Total number of question generations that produced no valid candidate",
			}),
			DroppedCandidates: promauto.NewCounter(prometheus.CounterOpts{
				Name: "assessment_dropped_candidates_total",
				Help: "Total number of invalid generated question candidates",
			}),

			FinalizeFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "assessment_finalize_failures_total",
				Help: "Total number of failed result transactions",
			}),
			FinalizeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "assessment_finalize_duration_seconds",
				Help:    "Duration of the result transaction in seconds",
				Buckets: prometheus.DefBuckets,
			}),
		}
	})

	return globalMetrics
}
