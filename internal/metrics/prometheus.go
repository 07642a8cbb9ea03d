package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder reports filesystem instrumentation through a
// prometheus.Registerer. One instance should back one filesystem; a host
// embedding several filesystem instances should give each its own
// registry or constant-label set to keep series distinct.
type PrometheusRecorder struct {
	quotaUsed      prometheus.Gauge
	quotaMax       prometheus.Gauge
	nodeCount      prometheus.Gauge
	promotions     prometheus.Counter
	lockWaitSecond prometheus.Histogram
}

// NewPrometheusRecorder creates and registers the memfs metric family on
// reg, with constantLabels applied to every series (e.g. to distinguish
// multiple filesystem instances sharing one registry).
func NewPrometheusRecorder(reg prometheus.Registerer, constantLabels prometheus.Labels) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		quotaUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "memfs_quota_used_bytes",
			Help:        "Bytes currently reserved against the filesystem quota.",
			ConstLabels: constantLabels,
		}),
		quotaMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "memfs_quota_max_bytes",
			Help:        "Configured maximum byte quota for the filesystem.",
			ConstLabels: constantLabels,
		}),
		nodeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "memfs_node_count",
			Help:        "Number of live directory and file nodes.",
			ConstLabels: constantLabels,
		}),
		promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "memfs_promotions_total",
			Help:        "Number of sequential-to-random-access storage promotions.",
			ConstLabels: constantLabels,
		}),
		lockWaitSecond: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "memfs_lock_wait_seconds",
			Help:        "Time spent waiting to acquire a per-file lock.",
			ConstLabels: constantLabels,
			Buckets:     prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{
		r.quotaUsed, r.quotaMax, r.nodeCount, r.promotions, r.lockWaitSecond,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) SetQuota(used, max int64) {
	r.quotaUsed.Set(float64(used))
	r.quotaMax.Set(float64(max))
}

func (r *PrometheusRecorder) SetNodeCount(count int) {
	r.nodeCount.Set(float64(count))
}

func (r *PrometheusRecorder) IncPromotions() {
	r.promotions.Inc()
}

func (r *PrometheusRecorder) ObserveLockWait(d time.Duration) {
	r.lockWaitSecond.Observe(d.Seconds())
}

var _ Recorder = (*PrometheusRecorder)(nil)
