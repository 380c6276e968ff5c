// Read-only moderation summaries over a time window.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forumkit/steward/store"
)

type StatusCounts struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Flagged  int64 `json:"flagged"`
}

func statusCountsOf(m map[store.Status]int64) StatusCounts {
	return StatusCounts{
		Pending:  m[store.StatusPending],
		Approved: m[store.StatusApproved],
		Rejected: m[store.StatusRejected],
		Flagged:  m[store.StatusFlagged],
	}
}

func (c StatusCounts) Total() int64 {
	return c.Pending + c.Approved + c.Rejected + c.Flagged
}

type Report struct {
	Start              time.Time    `json:"start"`
	End                time.Time    `json:"end"`
	Posts              StatusCounts `json:"posts"`
	Comments           StatusCounts `json:"comments"`
	NewUsers           int64        `json:"newUsers"`
	LowReputationUsers int64        `json:"lowReputationUsers"`
	// Set when a query failed; every count is then zero.
	Degraded bool `json:"degraded,omitempty"`
}

type Generator struct {
	Content store.ContentStore
	Users   store.UserStore
	Logger  *slog.Logger
	// Bounds the whole set of queries. Zero means no extra deadline.
	Timeout time.Duration
}

func NewGenerator(cs store.ContentStore, us store.UserStore, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		Content: cs,
		Users:   us,
		Logger:  logger.With("component", "report"),
		Timeout: 10 * time.Second,
	}
}

// Summarizes content created in [start, end) and users created or active in that range. Store failures produce a degraded, zeroed report rather than an error.
func (g *Generator) Generate(ctx context.Context, start, end time.Time) Report {
	start, end = start.UTC(), end.UTC()
	out := Report{Start: start, End: end}
	if !end.After(start) {
		return out
	}

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	timer := time.Now()
	var posts, comments map[store.Status]int64
	var users *store.UserRangeCounts

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		posts, err = g.Content.CountByStatus(egctx, store.KindPost, start, end)
		if err != nil {
			return fmt.Errorf("counting posts: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		comments, err = g.Content.CountByStatus(egctx, store.KindComment, start, end)
		if err != nil {
			return fmt.Errorf("counting comments: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		users, err = g.Users.CountUsersInRange(egctx, start, end)
		if err != nil {
			return fmt.Errorf("counting users: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		g.Logger.Error("moderation report degraded", "start", start, "end", end, "err", err)
		reportsGenerated.WithLabelValues("degraded").Inc()
		return Report{Start: start, End: end, Degraded: true}
	}

	out.Posts = statusCountsOf(posts)
	out.Comments = statusCountsOf(comments)
	out.NewUsers = users.NewUsers
	out.LowReputationUsers = users.LowReputationUsers
	reportsGenerated.WithLabelValues("ok").Inc()
	reportDuration.Observe(time.Since(timer).Seconds())
	return out
}
