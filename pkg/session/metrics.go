package session

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/pf2/pkg/util"
)

type metrics struct {
	started   prometheus.Counter
	collected prometheus.Counter
	dropped   prometheus.Counter
	duration  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		started: util.RegisterOrGet(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pf2_session_started_total",
			Help: "Number of profiling sessions started.",
		})),
		collected: util.RegisterOrGet(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pf2_samples_collected_total",
			Help: "Number of samples recorded by stopped sessions.",
		})),
		dropped: util.RegisterOrGet(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pf2_samples_dropped_total",
			Help: "Number of captures attempted but discarded by stopped sessions.",
		})),
		duration: util.RegisterOrGet(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pf2_session_duration_seconds",
			Help:    "Duration of profiling sessions.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		})),
	}
}
