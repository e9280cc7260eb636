package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tripshare"

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Ledger instruments bundle evaluation. A nil *Ledger records nothing.
type Ledger struct {
	committed  prometheus.Counter
	rejected   *prometheus.CounterVec
	duplicates prometheus.Counter
	evaluation prometheus.Histogram
	round      prometheus.Gauge
}

func NewLedger(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "bundles_committed_total",
			Help: "Bundles committed to the ledger.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "bundles_rejected_total",
			Help: "Bundles rejected by the ledger, by error category.",
		}, []string{"category"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "bundles_duplicate_total",
			Help: "Resubmitted bundles answered with an existing receipt.",
		}),
		evaluation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "bundle_evaluation_seconds",
			Help:    "Time spent evaluating and committing a bundle.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		round: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "round",
			Help: "Current logical round.",
		}),
	}
	reg.MustRegister(m.committed, m.rejected, m.duplicates, m.evaluation, m.round)
	return m
}

func (m *Ledger) BundleCommitted(d time.Duration) {
	if m == nil {
		return
	}
	m.committed.Inc()
	m.evaluation.Observe(d.Seconds())
}

func (m *Ledger) BundleRejected(category string, d time.Duration) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(category).Inc()
	m.evaluation.Observe(d.Seconds())
}

func (m *Ledger) BundleDuplicate() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

func (m *Ledger) RoundAdvanced(round uint64) {
	if m == nil {
		return
	}
	m.round.Set(float64(round))
}

// Orchestrator instruments bundle submissions per booking method.
type Orchestrator struct {
	submissions *prometheus.CounterVec
	retries     *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

func NewOrchestrator(reg prometheus.Registerer) *Orchestrator {
	m := &Orchestrator{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orchestrator", Name: "submissions_total",
			Help: "Bundle submissions by method and outcome.",
		}, []string{"method", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orchestrator", Name: "submission_retries_total",
			Help: "Resubmissions after confirming non-commitment.",
		}, []string{"method"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "orchestrator", Name: "submission_seconds",
			Help:    "Time from first submission to confirmed outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(m.submissions, m.retries, m.latency)
	return m
}

func (m *Orchestrator) Submitted(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Orchestrator) Retried(method string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(method).Inc()
}

// Kafka instruments producer and consumer middleware.
type Kafka struct {
	published *prometheus.CounterVec
	consumed  *prometheus.CounterVec
	publish   *prometheus.HistogramVec
	consume   *prometheus.HistogramVec
}

func NewKafka(reg prometheus.Registerer) *Kafka {
	m := &Kafka{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "kafka", Name: "messages_published_total",
			Help: "Messages published by topic and outcome.",
		}, []string{"topic", "outcome"}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "kafka", Name: "messages_consumed_total",
			Help: "Messages consumed by topic and outcome.",
		}, []string{"topic", "outcome"}),
		publish: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "kafka", Name: "publish_seconds",
			Help: "Publish duration.", Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
		consume: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "kafka", Name: "consume_seconds",
			Help: "Handler duration.", Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
	reg.MustRegister(m.published, m.consumed, m.publish, m.consume)
	return m
}

func (m *Kafka) Published(topic string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(topic, outcome(err)).Inc()
	m.publish.WithLabelValues(topic).Observe(d.Seconds())
}

func (m *Kafka) Consumed(topic string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.consumed.WithLabelValues(topic, outcome(err)).Inc()
	m.consume.WithLabelValues(topic).Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
