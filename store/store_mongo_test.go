package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMongoStoreBasics(t *testing.T) {
	t.Skip("live test, need mongodb running locally")
	assert := assert.New(t)
	ctx := context.Background()

	s, err := NewMongoStore(ctx, "mongodb://localhost:27017", "steward_test")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	post := &ContentItem{Kind: KindPost, AuthorID: 1, Body: "body", ModerationStatus: StatusPending}
	assert.NoError(s.CreateContent(ctx, post))
	for i := 0; i < 3; i++ {
		_, err = s.ReportContent(ctx, post.ID, 3)
		assert.NoError(err)
	}
	got, err := s.GetContent(ctx, post.ID)
	assert.NoError(err)
	assert.Equal(StatusFlagged, got.ModerationStatus)
	assert.Equal(int64(3), got.ReportCount)

	ok, err := s.AwardBadge(ctx, 99, "Newcomer", 25)
	assert.NoError(err)
	assert.True(ok)
	ok, err = s.AwardBadge(ctx, 99, "Newcomer", 25)
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(s.DeleteContent(ctx, post.ID))
}
