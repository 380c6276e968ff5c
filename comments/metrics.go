package comments

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cascadeDeleted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "steward_comments_cascade_deleted",
	Help: "Number of comments removed by cascading deletes",
})
