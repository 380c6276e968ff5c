package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/forumkit/steward/store"
)

func TestGenerate(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, err := store.NewTestStore()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	now := time.Now().UTC()
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)

	items := []store.ContentItem{
		{Kind: store.KindPost, AuthorID: 1, ModerationStatus: store.StatusApproved},
		{Kind: store.KindPost, AuthorID: 1, ModerationStatus: store.StatusApproved},
		{Kind: store.KindPost, AuthorID: 2, ModerationStatus: store.StatusFlagged},
		{Kind: store.KindComment, AuthorID: 2, ModerationStatus: store.StatusRejected},
		// outside the window
		{Kind: store.KindPost, AuthorID: 1, ModerationStatus: store.StatusPending, CreatedAt: now.Add(-48 * time.Hour)},
	}
	for i := range items {
		assert.NoError(s.CreateContent(ctx, &items[i]))
	}

	_, err = s.IncrementUser(ctx, 1, map[store.UserField]int64{store.FieldReputation: 10})
	assert.NoError(err)
	_, err = s.IncrementUser(ctx, 2, map[store.UserField]int64{store.FieldReputation: -10})
	assert.NoError(err)

	g := NewGenerator(s, s, nil)
	r := g.Generate(ctx, start, end)
	assert.False(r.Degraded)
	assert.Equal(StatusCounts{Approved: 2, Flagged: 1}, r.Posts)
	assert.Equal(StatusCounts{Rejected: 1}, r.Comments)
	assert.Equal(int64(3), r.Posts.Total())
	assert.Equal(int64(2), r.NewUsers)
	assert.Equal(int64(1), r.LowReputationUsers)

	empty := g.Generate(ctx, end, start)
	assert.False(empty.Degraded)
	assert.Equal(int64(0), empty.Posts.Total())
}

type failingUsers struct {
	store.UserStore
}

func (failingUsers) CountUsersInRange(ctx context.Context, start, end time.Time) (*store.UserRangeCounts, error) {
	return nil, errors.New("connection reset")
}

func TestGenerateDegraded(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, err := store.NewTestStore()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	assert.NoError(s.CreateContent(ctx, &store.ContentItem{Kind: store.KindPost, AuthorID: 1, ModerationStatus: store.StatusApproved}))

	g := NewGenerator(s, failingUsers{s}, nil)
	now := time.Now()
	r := g.Generate(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	assert.True(r.Degraded)
	assert.Equal(StatusCounts{}, r.Posts)
	assert.Equal(int64(0), r.NewUsers)
}
