// Fire-and-forget delivery of moderation and reputation events to pluggable notifiers.
package notify

import (
	"context"
	"fmt"
	"time"
)

type Kind string

const (
	KindContentModerated Kind = "content_moderated"
	KindContentReported  Kind = "content_reported"
	KindContentDeleted   Kind = "content_deleted"
	KindPenaltyApplied   Kind = "penalty_applied"
	KindBadgeAwarded     Kind = "badge_awarded"
	KindAccountFlagged   Kind = "account_flagged"
)

type Event struct {
	Kind      Kind      `json:"kind"`
	UserID    int64     `json:"userId"`
	ContentID string    `json:"contentId,omitempty"`
	Status    string    `json:"status,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Badge     string    `json:"badge,omitempty"`
	Points    int64     `json:"points,omitempty"`
	Flags     []string  `json:"flags,omitempty"`
	Time      time.Time `json:"time"`
}

// One-line human-readable summary, used in chat messages.
func (e Event) Text() string {
	switch e.Kind {
	case KindContentModerated:
		msg := fmt.Sprintf("content %s by user %d is %s", e.ContentID, e.UserID, e.Status)
		if e.Reason != "" {
			msg += ": " + e.Reason
		}
		return msg
	case KindContentReported:
		return fmt.Sprintf("content %s by user %d was reported and is now %s", e.ContentID, e.UserID, e.Status)
	case KindContentDeleted:
		return fmt.Sprintf("content %s by user %d was deleted", e.ContentID, e.UserID)
	case KindPenaltyApplied:
		return fmt.Sprintf("user %d penalized %d points (%s)", e.UserID, e.Points, e.Reason)
	case KindBadgeAwarded:
		return fmt.Sprintf("user %d earned the %q badge", e.UserID, e.Badge)
	case KindAccountFlagged:
		return fmt.Sprintf("user %d flagged: %v", e.UserID, e.Flags)
	}
	return fmt.Sprintf("%s event for user %d", e.Kind, e.UserID)
}

// Interface for a type that can deliver notifications.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}
