package reputation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/forumkit/steward/moderation/cachestore"
	"github.com/forumkit/steward/store"
)

func testEngine(t *testing.T) *Engine {
	s, err := store.NewTestStore()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return NewEngine(s, DefaultConfig(), nil)
}

func TestAddReputation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := testEngine(t)

	c, err := eng.AddReputation(ctx, 1, ActionPostCreated)
	assert.NoError(err)
	assert.Equal(store.Created, c.Lookup)
	assert.Equal(int64(5), c.Points)
	assert.Equal(int64(5), c.User.ReputationScore)
	assert.Empty(c.NewBadges)

	c, err = eng.AddReputation(ctx, 1, ActionHelpfulAnswer)
	assert.NoError(err)
	assert.Equal(store.Found, c.Lookup)
	assert.Equal(int64(15), c.User.ReputationScore)

	c, err = eng.AddReputation(ctx, 1, ActionPostDeletedByModerator)
	assert.NoError(err)
	assert.Equal(int64(5), c.User.ReputationScore)

	_, err = eng.AddReputation(ctx, 1, Action("teleported"))
	assert.ErrorIs(err, ErrUnknownAction)
}

func TestApplyAutoPenalty(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := testEngine(t)

	// a record is created with the penalty as its starting score
	c, err := eng.ApplyAutoPenalty(ctx, 9, ViolationInappropriate)
	assert.NoError(err)
	assert.Equal(store.Created, c.Lookup)
	assert.Equal(int64(-15), c.User.ReputationScore)
	assert.Equal(int64(0), c.User.DisplayScore())

	fixtures := []struct {
		violation Violation
		score     int64
	}{
		{ViolationSpam, -25},
		{ViolationExcessivePosting, -30},
		{ViolationRuleViolation, -38},
	}
	for _, fix := range fixtures {
		c, err = eng.ApplyAutoPenalty(ctx, 9, fix.violation)
		assert.NoError(err)
		assert.Equal(fix.score, c.User.ReputationScore)
	}

	_, err = eng.ApplyAutoPenalty(ctx, 9, Violation("jaywalking"))
	assert.ErrorIs(err, ErrUnknownViolation)
}

func TestBadgeIdempotence(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := testEngine(t)

	c, err := eng.UpdateStatistics(ctx, 1, map[store.UserField]int64{store.FieldPostsCount: 1})
	assert.NoError(err)
	assert.Equal([]string{"Newcomer"}, c.NewBadges)
	assert.Equal(int64(25), c.User.ReputationScore)
	assert.Equal([]string{"Newcomer"}, c.User.Badges)

	c, err = eng.UpdateStatistics(ctx, 1, map[store.UserField]int64{store.FieldPostsCount: 1})
	assert.NoError(err)
	assert.Empty(c.NewBadges)
	assert.Equal(int64(25), c.User.ReputationScore)

	badges, err := eng.CheckAndAwardBadges(ctx, 1)
	assert.NoError(err)
	assert.Empty(badges)

	// awarding directly through the store is a no-op too
	ok, err := eng.Users.AwardBadge(ctx, 1, "Newcomer", 25)
	assert.NoError(err)
	assert.False(ok)

	u, err := eng.Users.GetUser(ctx, 1)
	assert.NoError(err)
	assert.Equal([]string{"Newcomer"}, u.Badges)
	assert.Equal(int64(25), u.ReputationScore)
}

func TestBadgeOrderAndNoRecursion(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := testEngine(t)

	c, err := eng.UpdateStatistics(ctx, 2, map[store.UserField]int64{store.FieldPostsCount: 10})
	assert.NoError(err)
	assert.Equal([]string{"Newcomer", "Contributor"}, c.NewBadges)
	assert.Equal(int64(50), c.User.ReputationScore)

	// the Newcomer bonus lifts the score past 500, but Expert waits for the next evaluation
	_, err = eng.AddPoints(ctx, 3, 480)
	assert.NoError(err)
	c, err = eng.UpdateStatistics(ctx, 3, map[store.UserField]int64{store.FieldPostsCount: 1})
	assert.NoError(err)
	assert.Equal([]string{"Newcomer"}, c.NewBadges)
	assert.Equal(int64(505), c.User.ReputationScore)

	badges, err := eng.CheckAndAwardBadges(ctx, 3)
	assert.NoError(err)
	assert.Equal([]string{"Expert"}, badges)
	u, err := eng.GetRecord(ctx, 3)
	assert.NoError(err)
	assert.Equal(int64(530), u.ReputationScore)
	assert.Equal([]string{"Newcomer", "Expert"}, u.Badges)
}

func TestUpdateStatisticsValidation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := testEngine(t)

	_, err := eng.UpdateStatistics(ctx, 1, map[store.UserField]int64{store.UserField("karma"): 1})
	assert.ErrorIs(err, ErrUnknownStatistic)
	_, err = eng.UpdateStatistics(ctx, 1, map[store.UserField]int64{store.FieldReputation: 100})
	assert.ErrorIs(err, ErrUnknownStatistic)

	c, err := eng.UpdateStatistics(ctx, 1, map[store.UserField]int64{store.FieldLikesReceived: 50, store.FieldFollowers: 25})
	assert.NoError(err)
	assert.Equal([]string{"Helpful", "Popular"}, c.NewBadges)
}

func TestDefaultBadgePredicates(t *testing.T) {
	assert := assert.New(t)

	earned := func(s Stats) []string {
		var out []string
		for _, b := range DefaultBadges() {
			if b.Earned(s) {
				out = append(out, b.Name)
			}
		}
		return out
	}
	assert.Nil(earned(Stats{}))
	assert.Equal([]string{"Newcomer"}, earned(Stats{Posts: 9}))
	assert.Equal([]string{"Mentor"}, earned(Stats{HelpfulAnswers: 100}))
	assert.Equal([]string{"Expert", "Community Leader"}, earned(Stats{Score: 1000}))
	assert.Equal([]string{"Expert"}, earned(Stats{Score: 999}))
}

func TestReputationScoreCache(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := testEngine(t)
	eng.Cache = cachestore.NewMemCacheStore(100, time.Minute)

	score, err := eng.ReputationScore(ctx, 4)
	assert.NoError(err)
	assert.Equal(int64(0), score)

	v, err := eng.Cache.Get(ctx, CacheName, "4")
	assert.NoError(err)
	assert.Equal("0", v)

	// changes purge the cached value
	_, err = eng.AddPoints(ctx, 4, 120)
	assert.NoError(err)
	v, err = eng.Cache.Get(ctx, CacheName, "4")
	assert.NoError(err)
	assert.Equal("", v)

	score, err = eng.ReputationScore(ctx, 4)
	assert.NoError(err)
	assert.Equal(int64(120), score)
}
