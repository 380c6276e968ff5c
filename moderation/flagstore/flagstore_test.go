package flagstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
)

func testFlagStoreBasics(t *testing.T, fs FlagStore) {
	assert := assert.New(t)
	ctx := context.Background()

	l, err := fs.Get(ctx, "account/1")
	assert.NoError(err)
	assert.Empty(l)

	assert.NoError(fs.Add(ctx, "account/1", []string{"spamming", "duplicate-content"}))
	assert.NoError(fs.Add(ctx, "account/1", []string{"spamming", "low-trust"}))
	l, err = fs.Get(ctx, "account/1")
	assert.NoError(err)
	assert.Equal([]string{"duplicate-content", "low-trust", "spamming"}, l)

	assert.NoError(fs.Remove(ctx, "account/1", []string{"spamming", "low-trust", "absent"}))
	l, err = fs.Get(ctx, "account/1")
	assert.NoError(err)
	assert.Equal([]string{"duplicate-content"}, l)

	assert.NoError(fs.Remove(ctx, "account/1", []string{"duplicate-content"}))
	l, err = fs.Get(ctx, "account/1")
	assert.NoError(err)
	assert.Empty(l)
}

func TestMemFlagStoreBasics(t *testing.T) {
	testFlagStoreBasics(t, NewMemFlagStore())
}

func TestRedisFlagStoreBasics(t *testing.T) {
	mr := miniredis.RunT(t)
	fs, err := NewRedisFlagStore("redis://" + mr.Addr() + "/0")
	if err != nil {
		t.Fatal(err)
	}
	testFlagStoreBasics(t, fs)
}
