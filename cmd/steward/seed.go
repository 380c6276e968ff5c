package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/forumkit/steward/moderation"
	"github.com/forumkit/steward/store"

	"github.com/brianvoe/gofakeit/v6"
	cli "github.com/urfave/cli/v2"
)

var seedCmd = &cli.Command{
	Name:  "seed",
	Usage: "populate the database with synthetic users, posts and comment threads",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "users",
			Value: 20,
		},
		&cli.IntFlag{
			Name:  "posts-per-user",
			Value: 3,
		},
		&cli.IntFlag{
			Name:  "comments-per-post",
			Value: 5,
		},
		&cli.Float64Flag{
			Name:  "spam-fraction",
			Usage: "fraction of submissions padded with promotional phrases",
			Value: 0.1,
		},
		&cli.Int64Flag{
			Name:  "random-seed",
			Usage: "seed for the fake data generator; zero picks one at random",
		},
	},
	Action: func(cctx *cli.Context) error {
		logger, err := configLogger(cctx)
		if err != nil {
			return err
		}
		if s := cctx.Int64("random-seed"); s != 0 {
			gofakeit.Seed(s)
		}
		srv, err := openServer(cctx, configServer(cctx, logger))
		if err != nil {
			return err
		}
		defer srv.Close()

		sd := seeder{
			engine:          srv.engine,
			logger:          logger,
			postsPerUser:    cctx.Int("posts-per-user"),
			commentsPerPost: cctx.Int("comments-per-post"),
			spamFraction:    cctx.Float64("spam-fraction"),
		}
		stats, err := sd.run(cctx.Context, cctx.Int("users"))
		if err != nil {
			return err
		}
		fmt.Printf("created %d posts and %d comments (%d rejected, %d rate limited)\n", stats.posts, stats.comments, stats.rejected, stats.limited)
		return nil
	},
}

type seeder struct {
	engine          *moderation.Engine
	logger          *slog.Logger
	postsPerUser    int
	commentsPerPost int
	spamFraction    float64
}

type seedStats struct {
	posts    int
	comments int
	rejected int
	limited  int
}

func (sd *seeder) text() string {
	body := gofakeit.Paragraph(1, gofakeit.Number(1, 4), gofakeit.Number(6, 16), " ")
	if gofakeit.Float64() < sd.spamFraction {
		phrases := sd.engine.Analyzer.Ruleset().SpamPhrases
		extra := make([]string, 0, 3)
		for range 3 {
			extra = append(extra, gofakeit.RandomString(phrases))
		}
		body = body + " " + strings.Join(extra, "! ") + "!"
	}
	return body
}

// Submits through the engine so every item is moderated and scored like real traffic.
func (sd *seeder) run(ctx context.Context, users int) (seedStats, error) {
	var stats seedStats
	if users <= 0 {
		return stats, nil
	}
	record := func(sub *moderation.Submission, err error) (string, error) {
		switch {
		case errors.Is(err, moderation.ErrRateLimited):
			stats.limited++
			return "", nil
		case err != nil:
			return "", err
		}
		if sub.Item.ModerationStatus == store.StatusRejected {
			stats.rejected++
		}
		return sub.Item.ID, nil
	}

	var postIDs []string
	for u := 1; u <= users; u++ {
		actor := moderation.Actor{UserID: int64(u), Role: moderation.RoleUser}
		for range sd.postsPerUser {
			id, err := record(sd.engine.SubmitPost(ctx, actor, gofakeit.Sentence(gofakeit.Number(3, 10)), sd.text()))
			if err != nil {
				return stats, fmt.Errorf("seeding post for user %d: %w", u, err)
			}
			if id != "" {
				stats.posts++
				postIDs = append(postIDs, id)
			}
		}
	}

	for _, postID := range postIDs {
		var thread []string
		for range sd.commentsPerPost {
			actor := moderation.Actor{UserID: int64(gofakeit.Number(1, users)), Role: moderation.RoleUser}
			var parent *string
			if len(thread) > 0 && gofakeit.Bool() {
				p := gofakeit.RandomString(thread)
				parent = &p
			}
			id, err := record(sd.engine.SubmitComment(ctx, actor, postID, sd.text(), parent))
			if errors.Is(err, moderation.ErrDepthLimit) {
				continue
			}
			if err != nil {
				return stats, fmt.Errorf("seeding comment on %s: %w", postID, err)
			}
			if id != "" {
				stats.comments++
				thread = append(thread, id)
			}
		}
	}
	sd.logger.Info("seeded content", "users", users, "posts", stats.posts, "comments", stats.comments)
	return stats, nil
}
