package behavior

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var analysisCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "steward_behavior_analysis_total",
	Help: "Number of user behavior analyses, by resulting trust level (or 'degraded')",
}, []string{"result"})

var analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "steward_behavior_analysis_duration_seconds",
	Help:    "Duration of successful user behavior analyses",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
})
