package moderation

import (
	"log/slog"
	"time"

	"github.com/forumkit/steward/comments"
	"github.com/forumkit/steward/moderation/analyzer"
	"github.com/forumkit/steward/moderation/behavior"
	"github.com/forumkit/steward/moderation/cachestore"
	"github.com/forumkit/steward/moderation/countstore"
	"github.com/forumkit/steward/moderation/flagstore"
	"github.com/forumkit/steward/reputation"
	"github.com/forumkit/steward/store"
)

// Engine wired to an in-memory sqlite store and in-memory auxiliary stores. The store is returned for direct inspection and must be closed by the caller.
func NewTestEngine() (*Engine, *store.GormStore, error) {
	st, err := store.NewTestStore()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.Default()

	rep := reputation.NewEngine(st, reputation.DefaultConfig(), logger)
	rep.Cache = cachestore.NewMemCacheStore(100, time.Minute)

	eng := &Engine{
		Content:    st,
		Analyzer:   analyzer.New(analyzer.DefaultRuleset()),
		Behavior:   behavior.NewAnalyzer(behavior.NewStoreActivitySource(st), rep, behavior.DefaultConfig(), logger),
		Reputation: rep,
		Comments:   comments.NewTree(st, logger),
		Counters:   countstore.NewMemCountStore(),
		Flags:      flagstore.NewMemFlagStore(),
		Config:     DefaultConfig(),
		Logger:     logger,
	}
	return eng, st, nil
}
