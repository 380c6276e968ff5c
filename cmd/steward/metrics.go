package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsLimited = promauto.NewCounter(prometheus.CounterOpts{
	Name: "steward_requests_limited_total",
	Help: "Number of API requests rejected by the per-caller rate limit",
})

var sweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "steward_sweep_runs_total",
	Help: "Number of periodic maintenance runs, by task and outcome",
}, []string{"task", "outcome"})
