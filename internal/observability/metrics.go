package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts queue and worker activity.
type Metrics struct {
	IngestJobsProcessed *prometheus.CounterVec
	IngestJobsDropped   *prometheus.CounterVec
	OutgoingEnqueued    *prometheus.CounterVec
	SendAttempts        *prometheus.CounterVec
	SendRequeues        *prometheus.CounterVec
	NotificationsMuted  prometheus.Counter
	DuplicatesIgnored   prometheus.Counter
	IngestDuration      prometheus.Histogram
}

// NewMetrics registers bridge metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IngestJobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_ingest_jobs_processed_total",
			Help: "Incoming jobs fully processed, by resolution path",
		}, []string{"path"}),
		IngestJobsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_ingest_jobs_dropped_total",
			Help: "Incoming jobs dropped, by reason",
		}, []string{"reason"}),
		OutgoingEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_outgoing_enqueued_total",
			Help: "Outgoing jobs enqueued, by origin",
		}, []string{"origin"}),
		SendAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_send_attempts_total",
			Help: "Outbound send attempts, by result",
		}, []string{"result"}),
		SendRequeues: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_send_requeues_total",
			Help: "Outgoing jobs pushed back onto the queue, by reason",
		}, []string{"reason"}),
		NotificationsMuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_notifications_muted_total",
			Help: "Confirmations suppressed by a live cooldown marker",
		}),
		DuplicatesIgnored: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_duplicates_ignored_total",
			Help: "Inbound events dropped by the dedupe marker",
		}),
		IngestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_ingest_duration_seconds",
			Help:    "Time taken to process one incoming job",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
