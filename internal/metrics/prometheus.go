package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector 基于 Prometheus 的 Collector 实现，首次记录时注册
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	attempts    prometheus.Counter
	outcomes    *prometheus.CounterVec
	duration    prometheus.Histogram
	active      prometheus.Gauge
	staleSweeps prometheus.Counter
	backupBytes prometheus.Histogram
	notices     *prometheus.CounterVec
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus reg 为 nil 时使用 prometheus.DefaultRegisterer，namespace 默认 golf_scheduler
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "golf_scheduler"
	}
	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.attempts = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "regeneration",
			Name:      "attempts_total",
			Help:      "Total regeneration attempts including retries.",
		})
		p.outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "regeneration",
			Name:      "outcomes_total",
			Help:      "Regeneration outcomes by result and error category.",
		}, []string{"outcome", "category"})
		p.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "regeneration",
			Name:      "duration_seconds",
			Help:      "Wall time of a regeneration including backoff.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		})
		p.active = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "regeneration",
			Name:      "active",
			Help:      "Weeks currently locked for regeneration.",
		})
		p.staleSweeps = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "regeneration",
			Name:      "stale_forced_total",
			Help:      "Regenerations force-failed by the staleness sweep.",
		})
		p.backupBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "backup",
			Name:      "size_bytes",
			Help:      "Size of schedule backups in bytes.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8), // 256B .. 4MiB
		})

		p.notices = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "notification",
			Name:      "published_total",
			Help:      "Notifications published to operators by level.",
		}, []string{"level"})

		p.reg.MustRegister(p.attempts)
		p.reg.MustRegister(p.outcomes)
		p.reg.MustRegister(p.duration)
		p.reg.MustRegister(p.active)
		p.reg.MustRegister(p.staleSweeps)
		p.reg.MustRegister(p.backupBytes)
		p.reg.MustRegister(p.notices)
	})
}

func (p *PrometheusCollector) RecordRegenerationAttempt() {
	p.ensureRegistered()
	p.attempts.Inc()
}

func (p *PrometheusCollector) RecordRegenerationOutcome(outcome, category string) {
	p.ensureRegistered()
	if category == "" {
		category = "none"
	}
	p.outcomes.WithLabelValues(outcome, category).Inc()
}

func (p *PrometheusCollector) ObserveRegenerationDuration(seconds float64) {
	p.ensureRegistered()
	p.duration.Observe(seconds)
}

func (p *PrometheusCollector) SetActiveRegenerations(n int) {
	p.ensureRegistered()
	p.active.Set(float64(n))
}

func (p *PrometheusCollector) RecordStaleSweep(n int) {
	p.ensureRegistered()
	p.staleSweeps.Add(float64(n))
}

func (p *PrometheusCollector) RecordBackup(bytes int64) {
	p.ensureRegistered()
	p.backupBytes.Observe(float64(bytes))
}

func (p *PrometheusCollector) RecordNotification(level string) {
	p.ensureRegistered()
	p.notices.WithLabelValues(level).Inc()
}
