package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var submissionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "steward_submissions",
	Help: "Number of content submissions, by kind and outcome",
}, []string{"kind", "outcome"})

var decisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "steward_auto_moderation_decisions",
	Help: "Number of automatic moderation decisions, by kind and status",
}, []string{"kind", "status"})

var decisionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "steward_auto_moderation_duration_seconds",
	Help:    "Time to analyze and persist an automatic moderation decision",
	Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
})

var manualDecisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "steward_manual_moderation_decisions",
	Help: "Number of moderator decisions, by status",
}, []string{"status"})

var reportCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "steward_content_reports",
	Help: "Number of user reports against content",
})

var escalationCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "steward_report_escalations",
	Help: "Number of items forced to FLAGGED by reports",
})

var accountFlagCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "steward_account_flags",
	Help: "Number of new account flags set",
}, []string{"flag"})

var interactionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "steward_interactions",
	Help: "Number of likes, dislikes, helpful marks and follows",
}, []string{"type"})

var deletionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "steward_deletions",
	Help: "Number of content items deleted, by kind",
}, []string{"kind"})

var cleanupRemoved = promauto.NewCounter(prometheus.CounterOpts{
	Name: "steward_cleanup_removed",
	Help: "Number of items purged by the rejected-content sweep",
})

var panicCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "steward_engine_panics",
	Help: "Number of recovered panics in engine entry points",
}, []string{"op"})
