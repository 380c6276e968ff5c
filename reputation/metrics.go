package reputation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pointsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "steward_reputation_points",
	Help: "Absolute reputation points applied, split into gained and lost",
}, []string{"direction"})

var penaltyCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "steward_reputation_penalties",
	Help: "Number of automatic penalties applied",
}, []string{"violation"})

var badgesAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "steward_badges_awarded",
	Help: "Number of new badges awarded",
}, []string{"badge"})

var scoreLookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "steward_reputation_lookup_duration_seconds",
	Help:    "Duration of uncached reputation score lookups",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
})
