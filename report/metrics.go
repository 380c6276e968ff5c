package report

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var reportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "steward_reports_generated",
	Help: "Number of moderation reports generated, by outcome",
}, []string{"outcome"})

var reportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "steward_report_duration_seconds",
	Help:    "Time to run the moderation report queries",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
})
