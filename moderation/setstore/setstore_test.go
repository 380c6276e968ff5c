package setstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemSetStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ss := NewMemSetStore()
	assert.NoError(ss.LoadJSON(strings.NewReader(`{"spam-phrases": ["free money", "act now"], "empty": []}`)))

	ok, err := ss.InSet(ctx, "spam-phrases", "act now")
	assert.NoError(err)
	assert.True(ok)
	ok, err = ss.InSet(ctx, "spam-phrases", "hello")
	assert.NoError(err)
	assert.False(ok)
	ok, err = ss.InSet(ctx, "missing", "act now")
	assert.NoError(err)
	assert.False(ok)

	l, found, err := ss.Members(ctx, "spam-phrases")
	assert.NoError(err)
	assert.True(found)
	assert.Equal([]string{"act now", "free money"}, l)

	l, found, err = ss.Members(ctx, "empty")
	assert.NoError(err)
	assert.True(found)
	assert.Empty(l)

	_, found, err = ss.Members(ctx, "missing")
	assert.NoError(err)
	assert.False(found)

	assert.Error(ss.LoadJSON(strings.NewReader(`["not", "an", "object"]`)))
}

func TestMemSetStoreFromFile(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := filepath.Join(t.TempDir(), "rules.json")
	assert.NoError(os.WriteFile(p, []byte(`{"inappropriate-phrases": ["scam"]}`), 0644))

	ss := NewMemSetStore()
	assert.NoError(ss.LoadFromFileJSON(p))
	ok, err := ss.InSet(ctx, "inappropriate-phrases", "scam")
	assert.NoError(err)
	assert.True(ok)

	assert.Error(ss.LoadFromFileJSON(filepath.Join(t.TempDir(), "missing.json")))
}
