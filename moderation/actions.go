package moderation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/forumkit/steward/moderation/countstore"
	"github.com/forumkit/steward/notify"
	"github.com/forumkit/steward/reputation"
	"github.com/forumkit/steward/store"
)

type ReportOutcome struct {
	Item *store.ContentItem `json:"item"`
	// True when this report moved the item into FLAGGED.
	Escalated bool `json:"escalated"`
	// Distinct users who have reported the item so far.
	Reporters int `json:"reporters"`
}

// Records a report against any item. Once the report count reaches the threshold the item is FLAGGED, whatever its current state; further reports keep counting.
func (e *Engine) ReportContent(ctx context.Context, actor Actor, contentID string) (out *ReportOutcome, err error) {
	defer e.recoverPanic("report-content", &err)

	if err := actor.validate(); err != nil {
		return nil, err
	}
	before, err := e.Content.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	item, err := e.Content.ReportContent(ctx, contentID, e.Config.ReportThreshold)
	if err != nil {
		return nil, fmt.Errorf("reporting %s: %w", contentID, err)
	}
	out = &ReportOutcome{
		Item:      item,
		Escalated: before.ModerationStatus != store.StatusFlagged && item.ModerationStatus == store.StatusFlagged,
	}
	reportCount.Inc()

	reporter := strconv.FormatInt(actor.UserID, 10)
	if err := e.Counters.IncrementDistinct(ctx, CounterReporters, contentID, reporter); err != nil {
		e.Logger.Warn("failed to count reporter", "content", contentID, "err", err)
	} else if n, err := e.Counters.GetCountDistinct(ctx, CounterReporters, contentID, countstore.PeriodTotal); err == nil {
		out.Reporters = n
	}

	if out.Escalated {
		escalationCount.Inc()
		e.Logger.Info("content escalated by reports", "content", contentID, "reports", item.ReportCount, "previous", before.ModerationStatus)
		if err := e.Flags.Add(ctx, contentID, []string{FlagReported}); err != nil {
			e.Logger.Warn("failed to record content flags", "content", contentID, "err", err)
		}
		if before.ModerationStatus == store.StatusRejected {
			// back under review, so it counts toward author statistics again
			if _, err := e.Reputation.UpdateStatistics(ctx, item.AuthorID, map[store.UserField]int64{statisticFor(item.Kind): 1}); err != nil {
				e.Logger.Error("failed to update author statistics", "user", item.AuthorID, "err", err)
			}
		}
		e.Notify.Dispatch(notify.Event{
			Kind:      notify.KindContentReported,
			UserID:    item.AuthorID,
			ContentID: item.ID,
			Status:    string(item.ModerationStatus),
		})
	}
	return out, nil
}

// Manual moderation: a moderator resolves a PENDING or FLAGGED item to APPROVED or REJECTED.
func (e *Engine) Moderate(ctx context.Context, actor Actor, contentID string, status store.Status, reason string) (item *store.ContentItem, err error) {
	defer e.recoverPanic("moderate", &err)

	if !actor.IsModerator() {
		return nil, fmt.Errorf("%w: moderating content requires the moderator role", ErrForbidden)
	}
	if status != store.StatusApproved && status != store.StatusRejected {
		return nil, invalid("status", "must be %s or %s, got %q", store.StatusApproved, store.StatusRejected, status)
	}
	item, err = e.Content.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if item.ModerationStatus != store.StatusPending && item.ModerationStatus != store.StatusFlagged {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, contentID, item.ModerationStatus)
	}
	if err := e.Content.UpdateModeration(ctx, contentID, status, reason); err != nil {
		return nil, fmt.Errorf("updating %s: %w", contentID, err)
	}
	previous := item.ModerationStatus
	item.ModerationStatus = status
	item.ModerationReason = reason
	item.IsModerated = true

	logger := e.Logger.With("content", contentID, "moderator", actor.UserID, "author", item.AuthorID)
	if status == store.StatusRejected {
		if _, err := e.Reputation.ApplyAutoPenalty(ctx, item.AuthorID, reputation.ViolationRuleViolation); err != nil {
			logger.Error("failed to apply rule violation penalty", "err", err)
		}
		// rejected items do not count toward author statistics
		if _, err := e.Reputation.UpdateStatistics(ctx, item.AuthorID, map[store.UserField]int64{statisticFor(item.Kind): -1}); err != nil {
			logger.Error("failed to update author statistics", "err", err)
		}
	}

	manualDecisionCount.WithLabelValues(string(status)).Inc()
	logger.Info("content moderated", "from", previous, "to", status, "reason", reason)
	e.Notify.Dispatch(notify.Event{
		Kind:      notify.KindContentModerated,
		UserID:    item.AuthorID,
		ContentID: item.ID,
		Status:    string(status),
		Reason:    reason,
	})
	return item, nil
}

func statisticFor(kind store.Kind) store.UserField {
	if kind == store.KindComment {
		return store.FieldCommentsCount
	}
	return store.FieldPostsCount
}

// Likes an item. The author gains points and likesReceived; the actor gains likesGiven. Users cannot like their own content.
func (e *Engine) Like(ctx context.Context, actor Actor, contentID string) (item *store.ContentItem, err error) {
	defer e.recoverPanic("like", &err)

	if err := actor.validate(); err != nil {
		return nil, err
	}
	item, err = e.Content.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if item.AuthorID == actor.UserID {
		return nil, invalid("content", "cannot like your own %s", item.Kind)
	}
	if err := e.Content.IncrementContent(ctx, contentID, store.CounterLikes, 1); err != nil {
		return nil, fmt.Errorf("liking %s: %w", contentID, err)
	}
	item.LikeCount++

	action := reputation.ActionPostLiked
	if item.Kind == store.KindComment {
		action = reputation.ActionCommentLiked
	}
	if _, err := e.Reputation.UpdateStatistics(ctx, item.AuthorID, map[store.UserField]int64{store.FieldLikesReceived: 1}); err != nil {
		e.Logger.Error("failed to update author statistics", "user", item.AuthorID, "err", err)
	}
	if _, err := e.Reputation.AddReputation(ctx, item.AuthorID, action); err != nil {
		e.Logger.Error("failed to award like points", "user", item.AuthorID, "err", err)
	}
	if _, err := e.Reputation.UpdateStatistics(ctx, actor.UserID, map[store.UserField]int64{store.FieldLikesGiven: 1}); err != nil {
		e.Logger.Error("failed to update liker statistics", "user", actor.UserID, "err", err)
	}
	interactionCount.WithLabelValues("like").Inc()
	return item, nil
}

// Dislikes only move the item's counter.
func (e *Engine) Dislike(ctx context.Context, actor Actor, contentID string) (item *store.ContentItem, err error) {
	defer e.recoverPanic("dislike", &err)

	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := e.Content.IncrementContent(ctx, contentID, store.CounterDislikes, 1); err != nil {
		return nil, err
	}
	interactionCount.WithLabelValues("dislike").Inc()
	return e.Content.GetContent(ctx, contentID)
}

// Marks a comment as a helpful answer. Only the post author or a moderator may do so, and never on their own comment.
func (e *Engine) MarkHelpful(ctx context.Context, actor Actor, commentID string) (change *reputation.Change, err error) {
	defer e.recoverPanic("mark-helpful", &err)

	if err := actor.validate(); err != nil {
		return nil, err
	}
	comment, err := e.Content.GetContent(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.Kind != store.KindComment {
		return nil, invalid("content", "only comments can be marked helpful")
	}
	if comment.AuthorID == actor.UserID {
		return nil, invalid("content", "cannot mark your own comment helpful")
	}
	post, err := e.Content.GetContent(ctx, comment.PostID)
	if err != nil {
		return nil, err
	}
	if !actor.canModify(post.AuthorID) {
		return nil, fmt.Errorf("%w: only the post author can mark answers helpful", ErrForbidden)
	}

	if _, err := e.Reputation.UpdateStatistics(ctx, comment.AuthorID, map[store.UserField]int64{store.FieldHelpfulAnswers: 1}); err != nil {
		return nil, err
	}
	change, err = e.Reputation.AddReputation(ctx, comment.AuthorID, reputation.ActionHelpfulAnswer)
	if err != nil {
		return nil, err
	}
	interactionCount.WithLabelValues("helpful").Inc()
	return change, nil
}

// Records that the actor followed another user.
func (e *Engine) RecordFollow(ctx context.Context, actor Actor, followeeID int64) (change *reputation.Change, err error) {
	defer e.recoverPanic("follow", &err)

	if err := actor.validate(); err != nil {
		return nil, err
	}
	if followeeID <= 0 {
		return nil, invalid("user", "missing or non-positive user id")
	}
	if followeeID == actor.UserID {
		return nil, invalid("user", "cannot follow yourself")
	}
	if _, err := e.Reputation.UpdateStatistics(ctx, followeeID, map[store.UserField]int64{store.FieldFollowers: 1}); err != nil {
		return nil, err
	}
	change, err = e.Reputation.AddReputation(ctx, followeeID, reputation.ActionFollowed)
	if err != nil {
		return nil, err
	}
	interactionCount.WithLabelValues("follow").Inc()
	return change, nil
}

// Locks or unlocks a post against new comments.
func (e *Engine) SetLocked(ctx context.Context, actor Actor, postID string, locked bool) (err error) {
	defer e.recoverPanic("set-locked", &err)

	if !actor.IsModerator() {
		return fmt.Errorf("%w: locking posts requires the moderator role", ErrForbidden)
	}
	if err := e.Content.SetLocked(ctx, postID, locked); err != nil {
		return err
	}
	e.Logger.Info("post lock changed", "post", postID, "locked", locked, "moderator", actor.UserID)
	return nil
}
