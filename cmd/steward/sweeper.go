package main

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

type SweeperConfig struct {
	CleanupInterval time.Duration
	RejectedMaxAge  time.Duration
	ReportInterval  time.Duration
}

// Runs periodic cleanup and reporting until the context is cancelled. A zero interval disables that task.
func (srv *Server) RunSweeper(ctx context.Context, config SweeperConfig) error {
	g, ctx := errgroup.WithContext(ctx)
	if config.CleanupInterval > 0 {
		g.Go(func() error {
			return every(ctx, config.CleanupInterval, func() {
				srv.sweepRejected(ctx, config.RejectedMaxAge)
			})
		})
	}
	if config.ReportInterval > 0 {
		g.Go(func() error {
			return every(ctx, config.ReportInterval, func() {
				srv.logReport(ctx, config.ReportInterval)
			})
		})
	}
	return g.Wait()
}

func every(ctx context.Context, interval time.Duration, fn func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn()
		}
	}
}

func (srv *Server) sweepRejected(ctx context.Context, maxAge time.Duration) {
	n, err := srv.engine.CleanupRejected(ctx, maxAge)
	if err != nil {
		sweepRuns.WithLabelValues("cleanup", "error").Inc()
		srv.logger.Error("rejected content cleanup failed", "err", err, "removed", n)
		return
	}
	sweepRuns.WithLabelValues("cleanup", "ok").Inc()
	if n > 0 {
		srv.logger.Info("purged rejected content", "removed", n, "maxAge", maxAge)
	}
}

// Logs a summary covering the interval which just ended.
func (srv *Server) logReport(ctx context.Context, interval time.Duration) {
	end := time.Now().UTC()
	rep := srv.reports.Generate(ctx, end.Add(-interval), end)
	outcome := "ok"
	if rep.Degraded {
		outcome = "degraded"
	}
	sweepRuns.WithLabelValues("report", outcome).Inc()
	srv.logger.Info("moderation summary",
		"start", rep.Start,
		"end", rep.End,
		"posts", rep.Posts.Total(),
		"postsFlagged", rep.Posts.Flagged,
		"postsRejected", rep.Posts.Rejected,
		"comments", rep.Comments.Total(),
		"commentsFlagged", rep.Comments.Flagged,
		"commentsRejected", rep.Comments.Rejected,
		"newUsers", rep.NewUsers,
		"lowReputationUsers", rep.LowReputationUsers,
		"degraded", rep.Degraded,
	)
}
