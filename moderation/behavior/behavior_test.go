package behavior

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/forumkit/steward/moderation/countstore"
	"github.com/forumkit/steward/store"
)

type fixedReputation int64

func (f fixedReputation) ReputationScore(ctx context.Context, userID int64) (int64, error) {
	return int64(f), nil
}

type failingSource struct{}

func (failingSource) Activity(ctx context.Context, userID int64) (Activity, error) {
	return Activity{}, errors.New("database unavailable")
}

func (failingSource) ReputationScore(ctx context.Context, userID int64) (int64, error) {
	return 0, errors.New("database unavailable")
}

type stalledSource struct{}

func (stalledSource) Activity(ctx context.Context, userID int64) (Activity, error) {
	<-ctx.Done()
	return Activity{}, ctx.Err()
}

type fixedActivity Activity

func (f fixedActivity) Activity(ctx context.Context, userID int64) (Activity, error) {
	return Activity(f), nil
}

func TestClassifyTrust(t *testing.T) {
	assert := assert.New(t)
	cfg := DefaultConfig()

	fixtures := []struct {
		score int64
		level TrustLevel
	}{
		{score: -1, level: TrustLow},
		{score: 0, level: TrustNormal},
		{score: 100, level: TrustNormal},
		{score: 101, level: TrustHigh},
		{score: 500, level: TrustHigh},
		{score: 501, level: TrustTrusted},
		{score: 600, level: TrustTrusted},
	}
	for _, fix := range fixtures {
		assert.Equal(fix.level, cfg.ClassifyTrust(fix.score), "score %d", fix.score)
	}
}

func TestRateLimitFromStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s, err := store.NewTestStore()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	now := time.Now().UTC()
	for i := 0; i < 6; i++ {
		assert.NoError(s.CreateContent(ctx, &store.ContentItem{
			Kind:             store.KindPost,
			AuthorID:         1,
			Body:             "post",
			ModerationStatus: store.StatusApproved,
			CreatedAt:        now.Add(-time.Duration(i+1) * time.Minute),
		}))
	}
	// outside the recent window, inside the daily one
	assert.NoError(s.CreateContent(ctx, &store.ContentItem{
		Kind:             store.KindComment,
		AuthorID:         1,
		PostID:           "p",
		ModerationStatus: store.StatusApproved,
		CreatedAt:        now.Add(-3 * time.Hour),
	}))

	a := NewAnalyzer(NewStoreActivitySource(s), &StoreReputationSource{Users: s}, DefaultConfig(), nil)
	rep := a.AnalyzeUserBehavior(ctx, 1)
	assert.False(rep.Degraded)
	assert.True(rep.RateLimit)
	assert.False(rep.IsSpamming)
	assert.Equal(int64(6), rep.RecentPosts)
	assert.Equal(int64(0), rep.RecentComments)
	assert.Equal(int64(6), rep.DailyPosts)
	assert.Equal(int64(1), rep.DailyComments)
	assert.Equal(TrustNormal, rep.TrustLevel)
	assert.Equal([]string{FlagPostingTooFast}, rep.Flags)

	rep = a.AnalyzeUserBehavior(ctx, 2)
	assert.False(rep.RateLimit)
	assert.Empty(rep.Flags)
}

func TestSpammingAndTrust(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	a := NewAnalyzer(fixedActivity{DailyComments: 51}, fixedReputation(-5), DefaultConfig(), nil)
	rep := a.AnalyzeUserBehavior(ctx, 1)
	assert.True(rep.IsSpamming)
	assert.False(rep.RateLimit)
	assert.Equal(TrustLow, rep.TrustLevel)
	assert.Equal([]string{FlagDailyVolume, FlagLowTrust}, rep.Flags)

	a = NewAnalyzer(fixedActivity{RecentComments: 10, DailyPosts: 20}, fixedReputation(600), DefaultConfig(), nil)
	rep = a.AnalyzeUserBehavior(ctx, 1)
	assert.False(rep.IsSpamming)
	assert.False(rep.RateLimit)
	assert.Equal(TrustTrusted, rep.TrustLevel)
}

func TestSafeDefaultOnFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	a := NewAnalyzer(failingSource{}, fixedReputation(600), DefaultConfig(), nil)
	rep := a.AnalyzeUserBehavior(ctx, 1)
	assert.Equal(SafeDefault(), rep)
	assert.False(rep.IsSpamming)
	assert.False(rep.RateLimit)
	assert.Equal(TrustNormal, rep.TrustLevel)
	assert.Empty(rep.Flags)

	a = NewAnalyzer(fixedActivity{RecentPosts: 9}, failingSource{}, DefaultConfig(), nil)
	assert.Equal(SafeDefault(), a.AnalyzeUserBehavior(ctx, 1))
}

func TestSafeDefaultOnTimeout(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	a := NewAnalyzer(stalledSource{}, fixedReputation(0), cfg, nil)

	start := time.Now()
	rep := a.AnalyzeUserBehavior(context.Background(), 1)
	assert.Equal(SafeDefault(), rep)
	assert.Less(time.Since(start), time.Second)
}

func TestCounterActivitySource(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := countstore.NewMemCountStore()
	for i := 0; i < 6; i++ {
		assert.NoError(cs.Increment(ctx, CounterPosts, "7"))
	}
	assert.NoError(cs.Increment(ctx, CounterComments, "7"))

	src := &CounterActivitySource{Counters: cs}
	act, err := src.Activity(ctx, 7)
	assert.NoError(err)
	assert.Equal(Activity{RecentPosts: 6, RecentComments: 1, DailyPosts: 6, DailyComments: 1}, act)

	a := NewAnalyzer(src, fixedReputation(0), DefaultConfig(), nil)
	assert.True(a.AnalyzeUserBehavior(ctx, 7).RateLimit)
}
