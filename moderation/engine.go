package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rivo/uniseg"

	"github.com/forumkit/steward/comments"
	"github.com/forumkit/steward/moderation/analyzer"
	"github.com/forumkit/steward/moderation/behavior"
	"github.com/forumkit/steward/moderation/countstore"
	"github.com/forumkit/steward/moderation/flagstore"
	"github.com/forumkit/steward/moderation/helpers"
	"github.com/forumkit/steward/notify"
	"github.com/forumkit/steward/reputation"
	"github.com/forumkit/steward/store"
)

// Account flags, stored in the flag store under AccountKey.
const (
	FlagSpamming         = "spamming"
	FlagDuplicateContent = "duplicate-content"
	FlagReported         = "reported"
)

// Per-author counter of body hashes, keyed "<author>/<hash>".
const CounterBodyHash = "author-body-hash"

// Per-item distinct reporter counter.
const CounterReporters = "content-reporters"

// Ties the analyzers, the reputation ledger and the comment tree to content persistence.
//
// All fields except Notify are required; see NewTestEngine for a fully wired in-memory instance.
type Engine struct {
	Content    store.ContentStore
	Analyzer   *analyzer.Analyzer
	Behavior   *behavior.Analyzer
	Reputation *reputation.Engine
	Comments   *comments.Tree
	Counters   countstore.CountStore
	Flags      flagstore.FlagStore
	Notify     *notify.Dispatcher
	Config     Config
	Logger     *slog.Logger
}

// Flag store key for account-level flags.
func AccountKey(userID int64) string {
	return "account/" + strconv.FormatInt(userID, 10)
}

// Result of a successful submission. The item may still have been rejected or flagged.
type Submission struct {
	Item       *store.ContentItem `json:"item"`
	Decision   Decision           `json:"decision"`
	Analysis   analyzer.Analysis  `json:"analysis"`
	Behavior   behavior.Report    `json:"behavior"`
	Reputation *reputation.Change `json:"reputation,omitempty"`
}

// similar to an HTTP server, we want to recover any panics from rule execution
func (e *Engine) recoverPanic(op string, err *error) {
	if r := recover(); r != nil {
		panicCount.WithLabelValues(op).Inc()
		e.Logger.Error("moderation engine exception", "op", op, "err", r)
		*err = fmt.Errorf("%s: internal error", op)
	}
}

func graphemeLength(s string) int {
	n := 0
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		n++
	}
	return n
}

func (e *Engine) validateText(field, text string, required bool, limit int) error {
	if strings.TrimSpace(text) == "" {
		if required {
			return invalid(field, "must not be empty")
		}
		return nil
	}
	if limit > 0 && graphemeLength(text) > limit {
		return invalid(field, "longer than %d characters", limit)
	}
	return nil
}

// Creates a post from the actor, moderates it and applies the resulting reputation effects.
func (e *Engine) SubmitPost(ctx context.Context, actor Actor, title, body string) (sub *Submission, err error) {
	defer e.recoverPanic("submit-post", &err)

	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := e.validateText("title", title, true, e.Config.MaxTitleLength); err != nil {
		return nil, err
	}
	if err := e.validateText("body", body, true, e.Config.MaxBodyLength); err != nil {
		return nil, err
	}

	report, err := e.gate(ctx, actor.UserID, store.KindPost)
	if err != nil {
		return nil, err
	}

	item := &store.ContentItem{
		Kind:             store.KindPost,
		AuthorID:         actor.UserID,
		Title:            strings.TrimSpace(title),
		Body:             body,
		ModerationStatus: store.StatusPending,
	}
	if err := e.Content.CreateContent(ctx, item); err != nil {
		return nil, fmt.Errorf("saving post: %w", err)
	}
	return e.finishSubmission(ctx, item, report), nil
}

// Creates a comment on postID, optionally as a reply to parentID, then moderates it like a post.
func (e *Engine) SubmitComment(ctx context.Context, actor Actor, postID, body string, parentID *string) (sub *Submission, err error) {
	defer e.recoverPanic("submit-comment", &err)

	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := e.validateText("body", body, true, e.Config.MaxBodyLength); err != nil {
		return nil, err
	}
	if parentID != nil && *parentID == "" {
		parentID = nil
	}

	report, err := e.gate(ctx, actor.UserID, store.KindComment)
	if err != nil {
		return nil, err
	}

	item, err := e.Comments.CreateComment(ctx, postID, actor.UserID, body, parentID)
	if err != nil {
		return nil, err
	}
	return e.finishSubmission(ctx, item, report), nil
}

// behavioural checks run before anything is stored
func (e *Engine) gate(ctx context.Context, userID int64, kind store.Kind) (behavior.Report, error) {
	report := e.Behavior.AnalyzeUserBehavior(ctx, userID)
	if report.IsSpamming {
		e.flagAccount(ctx, userID, FlagSpamming)
	}
	if !report.RateLimit {
		return report, nil
	}

	submissionCount.WithLabelValues(string(kind), "rate-limited").Inc()
	e.Logger.Info("rejecting submission: rate limited", "user", userID, "kind", kind, "recentPosts", report.RecentPosts, "recentComments", report.RecentComments)
	if _, err := e.Reputation.ApplyAutoPenalty(ctx, userID, reputation.ViolationExcessivePosting); err != nil {
		e.Logger.Error("failed to apply rate limit penalty", "user", userID, "err", err)
	}
	return report, fmt.Errorf("%w: user %d", ErrRateLimited, userID)
}

func (e *Engine) finishSubmission(ctx context.Context, item *store.ContentItem, report behavior.Report) *Submission {
	decision, analysis := e.autoModerate(ctx, item)
	sub := &Submission{
		Item:     item,
		Decision: decision,
		Analysis: analysis,
		Behavior: report,
	}
	logger := e.Logger.With("content", item.ID, "kind", item.Kind, "author", item.AuthorID)

	if violation, ok := decision.Penalty(); ok {
		if _, err := e.Reputation.ApplyAutoPenalty(ctx, item.AuthorID, violation); err != nil {
			logger.Error("failed to apply moderation penalty", "violation", violation, "err", err)
		}
	}

	if decision.Status != store.StatusRejected {
		field, action := store.FieldPostsCount, reputation.ActionPostCreated
		if item.Kind == store.KindComment {
			field, action = store.FieldCommentsCount, reputation.ActionCommentCreated
		}
		if _, err := e.Reputation.UpdateStatistics(ctx, item.AuthorID, map[store.UserField]int64{field: 1}); err != nil {
			logger.Error("failed to update author statistics", "err", err)
		}
		change, err := e.Reputation.AddReputation(ctx, item.AuthorID, action)
		if err != nil {
			logger.Error("failed to award creation points", "err", err)
		} else {
			sub.Reputation = change
		}
	}

	e.recordSubmission(ctx, item)
	submissionCount.WithLabelValues(string(item.Kind), string(decision.Status)).Inc()
	logger.Info("content submitted", "status", decision.Status, "reason", decision.Reason, "score", analysis.SpamScore)
	e.Notify.Dispatch(notify.Event{
		Kind:      notify.KindContentModerated,
		UserID:    item.AuthorID,
		ContentID: item.ID,
		Status:    string(decision.Status),
		Reason:    decision.Reason,
		Flags:     analysis.Flags,
	})
	return sub
}

// Analyzes the item, persists the decision and records analysis flags. If the decision cannot be persisted the item is reported as PENDING for manual review.
func (e *Engine) AutoModerate(ctx context.Context, item *store.ContentItem) (d Decision, err error) {
	defer e.recoverPanic("auto-moderate", &err)
	d, _ = e.autoModerate(ctx, item)
	return d, nil
}

func (e *Engine) autoModerate(ctx context.Context, item *store.ContentItem) (Decision, analyzer.Analysis) {
	start := time.Now()
	analysis := e.Analyzer.Analyze(item.Title, item.Body)
	d := Decide(analysis, e.Analyzer.Ruleset())

	if err := e.Content.UpdateModeration(ctx, item.ID, d.Status, d.Reason); err != nil {
		e.Logger.Error("failed to persist moderation decision", "content", item.ID, "status", d.Status, "err", err)
		decisionCount.WithLabelValues(string(item.Kind), "failed").Inc()
		d = Decision{Status: store.StatusPending, Reason: ReasonAutoModerationFailed}
		item.ModerationStatus = d.Status
		item.ModerationReason = d.Reason
		return d, analysis
	}
	item.ModerationStatus = d.Status
	item.ModerationReason = d.Reason
	item.IsModerated = true
	decisionCount.WithLabelValues(string(item.Kind), string(d.Status)).Inc()
	decisionDuration.Observe(time.Since(start).Seconds())

	if len(analysis.Flags) > 0 {
		if err := e.Flags.Add(ctx, item.ID, analysis.Flags); err != nil {
			e.Logger.Warn("failed to record content flags", "content", item.ID, "err", err)
		}
	}
	return d, analysis
}

// updates calendar counters and the duplicate-text signal; failures only cost signal quality
func (e *Engine) recordSubmission(ctx context.Context, item *store.ContentItem) {
	author := strconv.FormatInt(item.AuthorID, 10)
	counter := behavior.CounterPosts
	if item.Kind == store.KindComment {
		counter = behavior.CounterComments
	}
	if err := e.Counters.Increment(ctx, counter, author); err != nil {
		e.Logger.Warn("failed to increment submission counter", "author", item.AuthorID, "err", err)
	}

	normalized := strings.ToLower(strings.Join(strings.Fields(item.Body), " "))
	key := author + "/" + helpers.HashOfString(normalized)
	if err := e.Counters.Increment(ctx, CounterBodyHash, key); err != nil {
		e.Logger.Warn("failed to increment body hash counter", "author", item.AuthorID, "err", err)
		return
	}
	n, err := e.Counters.GetCount(ctx, CounterBodyHash, key, countstore.PeriodDay)
	if err != nil {
		e.Logger.Warn("failed to read body hash counter", "author", item.AuthorID, "err", err)
		return
	}
	if e.Config.DuplicateThreshold > 0 && n >= e.Config.DuplicateThreshold {
		e.flagAccount(ctx, item.AuthorID, FlagDuplicateContent)
	}
}

// adds an account flag, notifying only the first time it is set
func (e *Engine) flagAccount(ctx context.Context, userID int64, flag string) {
	key := AccountKey(userID)
	existing, err := e.Flags.Get(ctx, key)
	if err != nil {
		e.Logger.Warn("failed to read account flags", "user", userID, "err", err)
		return
	}
	if slices.Contains(existing, flag) {
		return
	}
	if err := e.Flags.Add(ctx, key, []string{flag}); err != nil {
		e.Logger.Warn("failed to flag account", "user", userID, "flag", flag, "err", err)
		return
	}
	accountFlagCount.WithLabelValues(flag).Inc()
	e.Logger.Info("flagged account", "user", userID, "flag", flag)
	e.Notify.Dispatch(notify.Event{
		Kind:   notify.KindAccountFlagged,
		UserID: userID,
		Flags:  []string{flag},
	})
}

// Analysis flags recorded against a content item.
func (e *Engine) ContentFlags(ctx context.Context, contentID string) ([]string, error) {
	if _, err := e.Content.GetContent(ctx, contentID); err != nil {
		return nil, err
	}
	return e.Flags.Get(ctx, contentID)
}

func (e *Engine) AccountFlags(ctx context.Context, userID int64) ([]string, error) {
	return e.Flags.Get(ctx, AccountKey(userID))
}
