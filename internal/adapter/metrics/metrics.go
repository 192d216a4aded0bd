package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// APIMetrics holds Prometheus metrics for the question API service.
type APIMetrics struct {
	MutationsTotal *prometheus.CounterVec
	TagCacheHits   prometheus.Counter
	TagCacheMisses prometheus.Counter
	RateLimited    prometheus.Counter
}

// NewAPIMetrics initializes and registers the API metrics.
func NewAPIMetrics() *APIMetrics {
	return &APIMetrics{
		MutationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "question_service",
			Subsystem: "api",
			Name:      "mutations_total",
			Help:      "Total number of question mutations by operation and status.",
		}, []string{"op", "status"}), // op: create, update, delete; status: ok, rejected, error
		TagCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "question_service",
			Subsystem: "api",
			Name:      "tag_cache_hits_total",
			Help:      "Total number of tag catalog cache hits.",
		}),
		TagCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "question_service",
			Subsystem: "api",
			Name:      "tag_cache_misses_total",
			Help:      "Total number of tag catalog cache misses.",
		}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "question_service",
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		}),
	}
}

// RelayMetrics holds Prometheus metrics for the outbox relay.
type RelayMetrics struct {
	PublishedTotal  prometheus.Counter
	PublishFailures prometheus.Counter
	PoisonRows      prometheus.Counter
	BacklogGauge    prometheus.Gauge
}

// NewRelayMetrics initializes and registers the relay metrics.
func NewRelayMetrics() *RelayMetrics {
	return &RelayMetrics{
		PublishedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "question_service",
			Subsystem: "relay",
			Name:      "published_total",
			Help:      "Total number of outbox events published to the stream.",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "question_service",
			Subsystem: "relay",
			Name:      "publish_failures_total",
			Help:      "Total number of publish attempts that exhausted retries. These rows remain unpublished and require operator attention.",
		}),
		PoisonRows: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "question_service",
			Subsystem: "relay",
			Name:      "poison_rows_total",
			Help:      "Total number of outbox rows that failed to decode and were dead-lettered.",
		}),
		BacklogGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "question_service",
			Subsystem: "relay",
			Name:      "backlog_gauge",
			Help:      "Number of unpublished outbox rows seen in the last relay pass.",
		}),
	}
}

// ProjectorMetrics holds Prometheus metrics for the tag-usage projector.
type ProjectorMetrics struct {
	EventsTotal     *prometheus.CounterVec
	UnderflowClamps prometheus.Counter
	DeltasApplied   prometheus.Counter
}

// NewProjectorMetrics initializes and registers the projector metrics.
func NewProjectorMetrics() *ProjectorMetrics {
	return &ProjectorMetrics{
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "question_service",
			Subsystem: "projector",
			Name:      "events_total",
			Help:      "Total number of consumed events by outcome.",
		}, []string{"outcome"}), // outcome: applied, duplicate, dead_letter, error
		UnderflowClamps: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "question_service",
			Subsystem: "projector",
			Name:      "underflow_clamps_total",
			Help:      "Total number of counter decrements clamped at zero and flagged for reconciliation.",
		}),
		DeltasApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "question_service",
			Subsystem: "projector",
			Name:      "deltas_applied_total",
			Help:      "Total number of per-tag deltas applied to the counter store.",
		}),
	}
}
