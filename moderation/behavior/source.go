package behavior

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/forumkit/steward/moderation/countstore"
	"github.com/forumkit/steward/store"
)

// Counter names under which submissions are recorded, keyed by author ID.
const (
	CounterPosts    = "author-posts"
	CounterComments = "author-comments"
)

// Submission counts for one author over the recent (hour) and daily windows.
type Activity struct {
	RecentPosts    int64 `json:"recentPosts"`
	RecentComments int64 `json:"recentComments"`
	DailyPosts     int64 `json:"dailyPosts"`
	DailyComments  int64 `json:"dailyComments"`
}

type ActivitySource interface {
	Activity(ctx context.Context, userID int64) (Activity, error)
}

type ReputationSource interface {
	ReputationScore(ctx context.Context, userID int64) (int64, error)
}

// Rolling windows computed from the content store. Authoritative, but costs four count queries.
type StoreActivitySource struct {
	Store        store.ContentStore
	RecentWindow time.Duration
	DailyWindow  time.Duration
	// Overridable clock for tests.
	Now func() time.Time
}

func NewStoreActivitySource(cs store.ContentStore) *StoreActivitySource {
	return &StoreActivitySource{
		Store:        cs,
		RecentWindow: time.Hour,
		DailyWindow:  24 * time.Hour,
		Now:          time.Now,
	}
}

func (s *StoreActivitySource) Activity(ctx context.Context, userID int64) (Activity, error) {
	var out Activity
	var err error
	now := s.Now().UTC()
	recent := now.Add(-s.RecentWindow)
	daily := now.Add(-s.DailyWindow)

	if out.RecentPosts, err = s.Store.CountByAuthorSince(ctx, userID, store.KindPost, recent); err != nil {
		return Activity{}, err
	}
	if out.RecentComments, err = s.Store.CountByAuthorSince(ctx, userID, store.KindComment, recent); err != nil {
		return Activity{}, err
	}
	if out.DailyPosts, err = s.Store.CountByAuthorSince(ctx, userID, store.KindPost, daily); err != nil {
		return Activity{}, err
	}
	if out.DailyComments, err = s.Store.CountByAuthorSince(ctx, userID, store.KindComment, daily); err != nil {
		return Activity{}, err
	}
	return out, nil
}

// Calendar hour and day buckets from a CountStore. Cheap, but resets at UTC boundaries instead of rolling.
type CounterActivitySource struct {
	Counters countstore.CountStore
}

func (s *CounterActivitySource) Activity(ctx context.Context, userID int64) (Activity, error) {
	var out Activity
	key := strconv.FormatInt(userID, 10)
	fetch := []struct {
		dst    *int64
		name   string
		period string
	}{
		{&out.RecentPosts, CounterPosts, countstore.PeriodHour},
		{&out.RecentComments, CounterComments, countstore.PeriodHour},
		{&out.DailyPosts, CounterPosts, countstore.PeriodDay},
		{&out.DailyComments, CounterComments, countstore.PeriodDay},
	}
	for _, f := range fetch {
		c, err := s.Counters.GetCount(ctx, f.name, key, f.period)
		if err != nil {
			return Activity{}, err
		}
		*f.dst = int64(c)
	}
	return out, nil
}

// Reads scores straight from the user store; users without a record score zero.
type StoreReputationSource struct {
	Users store.UserStore
}

func (s *StoreReputationSource) ReputationScore(ctx context.Context, userID int64) (int64, error) {
	u, err := s.Users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return u.ReputationScore, nil
}
