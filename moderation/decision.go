package moderation

import (
	"github.com/forumkit/steward/moderation/analyzer"
	"github.com/forumkit/steward/reputation"
	"github.com/forumkit/steward/store"
)

const (
	ReasonInappropriate        = "Contains inappropriate content"
	ReasonSpam                 = "Flagged as potential spam"
	ReasonManualReview         = "Requires manual review"
	ReasonAutoModerationFailed = "Auto-moderation failed"
)

type Decision struct {
	Status store.Status `json:"status"`
	Reason string       `json:"reason,omitempty"`
}

// Maps an analysis to a moderation decision. First match wins: inappropriate content is rejected even when it is also spam.
func Decide(a analyzer.Analysis, rules analyzer.Ruleset) Decision {
	switch {
	case a.IsInappropriate:
		return Decision{Status: store.StatusRejected, Reason: ReasonInappropriate}
	case a.IsSpam:
		return Decision{Status: store.StatusFlagged, Reason: ReasonSpam}
	case a.SpamScore >= rules.ReviewThreshold:
		return Decision{Status: store.StatusPending, Reason: ReasonManualReview}
	default:
		return Decision{Status: store.StatusApproved}
	}
}

// The author penalty owed for this decision, if any.
func (d Decision) Penalty() (reputation.Violation, bool) {
	switch d.Status {
	case store.StatusRejected:
		return reputation.ViolationInappropriate, true
	case store.StatusFlagged:
		return reputation.ViolationSpam, true
	}
	return "", false
}
