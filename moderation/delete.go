package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forumkit/steward/comments"
	"github.com/forumkit/steward/notify"
	"github.com/forumkit/steward/reputation"
	"github.com/forumkit/steward/store"
)

type Deletion struct {
	ID string `json:"id"`
	// Comments removed along with the target.
	CommentsRemoved int `json:"commentsRemoved"`
}

// Deletes a post and every comment under it. Authors may delete their own posts; moderators may delete any, which costs the author points.
func (e *Engine) DeletePost(ctx context.Context, actor Actor, postID string) (d *Deletion, err error) {
	defer e.recoverPanic("delete-post", &err)

	if err := actor.validate(); err != nil {
		return nil, err
	}
	post, err := e.Content.GetContent(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Kind != store.KindPost {
		return nil, fmt.Errorf("%w: %s", comments.ErrNotPost, postID)
	}
	if !actor.canModify(post.AuthorID) {
		return nil, fmt.Errorf("%w: cannot delete another user's post", ErrForbidden)
	}

	d, err = e.removePost(ctx, post)
	if err != nil {
		return nil, err
	}
	if actor.UserID != post.AuthorID {
		if _, err := e.Reputation.AddReputation(ctx, post.AuthorID, reputation.ActionPostDeletedByModerator); err != nil {
			e.Logger.Error("failed to apply moderator deletion penalty", "user", post.AuthorID, "err", err)
		}
	}
	e.Logger.Info("post deleted", "post", postID, "by", actor.UserID, "comments", d.CommentsRemoved)
	return d, nil
}

// Deletes a comment and all of its replies. Returns the number of comments removed.
func (e *Engine) DeleteComment(ctx context.Context, actor Actor, commentID string) (n int, err error) {
	defer e.recoverPanic("delete-comment", &err)

	if err := actor.validate(); err != nil {
		return 0, err
	}
	comment, err := e.Content.GetContent(ctx, commentID)
	if err != nil {
		return 0, err
	}
	if comment.Kind != store.KindComment {
		return 0, fmt.Errorf("%w: %s", comments.ErrNotComment, commentID)
	}
	if !actor.canModify(comment.AuthorID) {
		return 0, fmt.Errorf("%w: cannot delete another user's comment", ErrForbidden)
	}

	r, err := e.Comments.Delete(ctx, commentID)
	if err != nil {
		return 0, err
	}
	e.afterCommentRemoval(ctx, r)
	e.Logger.Info("comment deleted", "comment", commentID, "by", actor.UserID, "removed", r.Count)
	return r.Count, nil
}

// removes comments and the post itself, then settles author statistics
func (e *Engine) removePost(ctx context.Context, post *store.ContentItem) (*Deletion, error) {
	r, err := e.Comments.DeleteThread(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	e.afterCommentRemoval(ctx, r)

	if err := e.Content.DeleteContent(ctx, post.ID); err != nil {
		return nil, fmt.Errorf("deleting post %s: %w", post.ID, err)
	}
	deletionCount.WithLabelValues(string(store.KindPost)).Inc()
	e.forget(ctx, post)
	if post.ModerationStatus != store.StatusRejected {
		if _, err := e.Reputation.UpdateStatistics(ctx, post.AuthorID, map[store.UserField]int64{store.FieldPostsCount: -1}); err != nil {
			e.Logger.Error("failed to update author statistics", "user", post.AuthorID, "err", err)
		}
	}
	return &Deletion{ID: post.ID, CommentsRemoved: len(r.Removed)}, nil
}

func (e *Engine) afterCommentRemoval(ctx context.Context, r *comments.Removal) {
	for _, c := range r.Removed {
		e.forget(ctx, &c)
	}
	deletionCount.WithLabelValues(string(store.KindComment)).Add(float64(len(r.Removed)))
	for author, n := range r.CountedByAuthor() {
		if _, err := e.Reputation.UpdateStatistics(ctx, author, map[store.UserField]int64{store.FieldCommentsCount: -n}); err != nil {
			e.Logger.Error("failed to update author statistics", "user", author, "err", err)
		}
	}
	if len(r.Failed) > 0 {
		e.Logger.Error("inconsistent state: comments left behind by cascade", "post", r.PostID, "failed", r.Failed)
	}
}

// drops per-item flags and announces the deletion
func (e *Engine) forget(ctx context.Context, item *store.ContentItem) {
	if flags, err := e.Flags.Get(ctx, item.ID); err == nil && len(flags) > 0 {
		if err := e.Flags.Remove(ctx, item.ID, flags); err != nil {
			e.Logger.Warn("failed to clear content flags", "content", item.ID, "err", err)
		}
	}
	e.Notify.Dispatch(notify.Event{
		Kind:      notify.KindContentDeleted,
		UserID:    item.AuthorID,
		ContentID: item.ID,
	})
}

// Permanently purges REJECTED items last updated more than maxAge ago, along with any comments beneath them. Returns the number of items removed, cascades included.
func (e *Engine) CleanupRejected(ctx context.Context, maxAge time.Duration) (removed int, err error) {
	defer e.recoverPanic("cleanup-rejected", &err)

	if maxAge <= 0 {
		maxAge = e.Config.RejectedMaxAge
	}
	batch := e.Config.CleanupBatchSize
	if batch <= 0 {
		batch = 500
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	logger := e.Logger.With("op", "cleanup-rejected", "cutoff", cutoff)

	for {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		items, err := e.Content.ListRejectedBefore(ctx, cutoff, batch)
		if err != nil {
			return removed, fmt.Errorf("listing rejected content: %w", err)
		}
		progress := 0
		for i := range items {
			n, err := e.purge(ctx, &items[i])
			if errors.Is(err, store.ErrNotFound) {
				// already gone with an ancestor purged earlier in this batch
				progress++
				continue
			}
			if err != nil {
				logger.Error("failed to purge rejected item", "content", items[i].ID, "err", err)
				continue
			}
			progress++
			removed += n
		}
		if len(items) < batch || progress == 0 {
			break
		}
	}
	cleanupRemoved.Add(float64(removed))
	logger.Info("cleanup finished", "removed", removed)
	return removed, nil
}

func (e *Engine) purge(ctx context.Context, item *store.ContentItem) (int, error) {
	if item.Kind == store.KindPost {
		d, err := e.removePost(ctx, item)
		if err != nil {
			return 0, err
		}
		return d.CommentsRemoved + 1, nil
	}
	r, err := e.Comments.Delete(ctx, item.ID)
	if err != nil {
		return 0, err
	}
	e.afterCommentRemoval(ctx, r)
	return len(r.Removed), nil
}
