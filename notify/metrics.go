package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notificationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "steward_notifications",
	Help: "Number of notification deliveries, by event kind and outcome",
}, []string{"kind", "result"})
