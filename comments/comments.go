// Threaded comments under posts: depth-bounded creation gated by the post lock, and cascading deletion.
package comments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/forumkit/steward/store"
)

// Top-level comments are depth 0.
const DefaultMaxDepth = 5

var (
	ErrDepthLimit     = errors.New("comment depth limit exceeded")
	ErrLocked         = errors.New("post is locked")
	ErrParentMismatch = errors.New("parent comment belongs to a different post")
	ErrNotPost        = errors.New("target is not a post")
	ErrNotComment     = errors.New("target is not a comment")
)

type Tree struct {
	Store    store.ContentStore
	MaxDepth int
	Logger   *slog.Logger
}

func NewTree(cs store.ContentStore, logger *slog.Logger) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tree{
		Store:    cs,
		MaxDepth: DefaultMaxDepth,
		Logger:   logger.With("component", "comments"),
	}
}

// Validates placement and persists a PENDING comment. A nil parentID attaches the comment directly to the post.
func (t *Tree) CreateComment(ctx context.Context, postID string, authorID int64, body string, parentID *string) (*store.ContentItem, error) {
	post, err := t.Store.GetContent(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", postID, err)
	}
	if post.Kind != store.KindPost {
		return nil, fmt.Errorf("%w: %s", ErrNotPost, postID)
	}
	if post.IsLocked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, postID)
	}

	depth := 0
	if parentID != nil {
		parent, err := t.Store.GetContent(ctx, *parentID)
		if err != nil {
			return nil, fmt.Errorf("parent comment %s: %w", *parentID, err)
		}
		if parent.Kind != store.KindComment || parent.PostID != postID {
			return nil, fmt.Errorf("%w: %s", ErrParentMismatch, *parentID)
		}
		depth = parent.Depth + 1
		if depth > t.MaxDepth {
			return nil, fmt.Errorf("%w: replying to %s would reach depth %d (max %d)", ErrDepthLimit, *parentID, depth, t.MaxDepth)
		}
	}

	item := &store.ContentItem{
		Kind:             store.KindComment,
		AuthorID:         authorID,
		PostID:           postID,
		ParentID:         parentID,
		Depth:            depth,
		Body:             body,
		ModerationStatus: store.StatusPending,
	}
	if err := t.Store.CreateContent(ctx, item); err != nil {
		return nil, fmt.Errorf("saving comment: %w", err)
	}
	if err := t.Store.IncrementContent(ctx, postID, store.CounterComments, 1); err != nil {
		t.Logger.Error("comment created but post counter not updated", "post", postID, "comment", item.ID, "err", err)
	}
	return item, nil
}

// Result of a cascading delete.
type Removal struct {
	PostID string
	// Nodes targeted, counted before any deletion.
	Count int
	// Comments actually deleted, children first.
	Removed []store.ContentItem
	// IDs whose deletion failed and were left behind.
	Failed []string
}

// Deletes the comment and all its descendants, children before parents, then decrements the post counter once by the total.
//
// Failures partway are logged and skipped, leaving orphans behind; the cascade is not transactional.
func (t *Tree) Delete(ctx context.Context, commentID string) (*Removal, error) {
	root, err := t.Store.GetContent(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("comment %s: %w", commentID, err)
	}
	if root.Kind != store.KindComment {
		return nil, fmt.Errorf("%w: %s", ErrNotComment, commentID)
	}

	all, err := t.Store.ListPostComments(ctx, root.PostID)
	if err != nil {
		return nil, fmt.Errorf("listing thread for %s: %w", commentID, err)
	}
	children := make(map[string][]store.ContentItem)
	for _, c := range all {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		}
	}

	// explicit worklist; pre-order, so reversing it puts every child before its parent
	nodes := []store.ContentItem{*root}
	stack := []string{root.ID}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range children[cur] {
			nodes = append(nodes, c)
			stack = append(stack, c.ID)
		}
	}
	slices.Reverse(nodes)
	return t.remove(ctx, root.PostID, nodes), nil
}

// Convenience wrapper returning only the number of removed nodes.
func (t *Tree) DeleteComment(ctx context.Context, commentID string) (int, error) {
	r, err := t.Delete(ctx, commentID)
	if err != nil {
		return 0, err
	}
	return r.Count, nil
}

// Deletes every comment under a post, deepest first. The post itself and its counter are left to the caller.
func (t *Tree) DeleteThread(ctx context.Context, postID string) (*Removal, error) {
	all, err := t.Store.ListPostComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("listing thread for %s: %w", postID, err)
	}
	slices.SortStableFunc(all, func(a, b store.ContentItem) int {
		return b.Depth - a.Depth
	})
	r := &Removal{PostID: postID, Count: len(all)}
	t.deleteAll(ctx, r, all)
	return r, nil
}

func (t *Tree) remove(ctx context.Context, postID string, nodes []store.ContentItem) *Removal {
	r := &Removal{PostID: postID, Count: len(nodes)}
	t.deleteAll(ctx, r, nodes)
	if err := t.Store.IncrementContent(ctx, postID, store.CounterComments, -int64(r.Count)); err != nil && !errors.Is(err, store.ErrNotFound) {
		t.Logger.Error("inconsistent state: comments deleted but post counter not updated", "post", postID, "removed", r.Count, "err", err)
	}
	return r
}

func (t *Tree) deleteAll(ctx context.Context, r *Removal, nodes []store.ContentItem) {
	for _, n := range nodes {
		err := t.Store.DeleteContent(ctx, n.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			r.Failed = append(r.Failed, n.ID)
			t.Logger.Error("inconsistent state: cascade delete failed, continuing", "post", r.PostID, "comment", n.ID, "err", err)
			continue
		}
		if err == nil {
			r.Removed = append(r.Removed, n)
		}
	}
	cascadeDeleted.Add(float64(len(r.Removed)))
}

// Removed comments per author, skipping rejected ones, which never counted toward author statistics.
func (r *Removal) CountedByAuthor() map[int64]int64 {
	out := map[int64]int64{}
	for _, c := range r.Removed {
		if c.ModerationStatus == store.StatusRejected {
			continue
		}
		out[c.AuthorID]++
	}
	return out
}
