package analyzer

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forumkit/steward/moderation/setstore"
)

func TestAnalyzeScenarios(t *testing.T) {
	assert := assert.New(t)
	a := New(DefaultRuleset())

	res := a.Analyze("", "Buy now and get rich quick! Click here!")
	assert.True(res.IsSpam)
	assert.False(res.IsInappropriate)
	assert.GreaterOrEqual(res.SpamScore, 25)
	assert.Equal(30, res.SpamScore)
	assert.Equal([]string{"buy now", "click here", "get rich quick"}, res.MatchedSpamPhrases)
	assert.Contains(res.Flags, FlagSpamPhrases)

	res = a.Analyze("", "This is a scam and fraud scheme")
	assert.True(res.IsInappropriate)
	assert.False(res.IsSpam)
	assert.Equal([]string{"scam", "fraud"}, res.MatchedInappropriatePhrases)

	res = a.Analyze("Gardening", "I planted tomatoes and basil this weekend, and they are doing well.")
	assert.False(res.IsSpam)
	assert.False(res.IsInappropriate)
	assert.False(res.HasLinks)
	assert.False(res.HasContactInfo)
	assert.Equal(0, res.SpamScore)
	assert.Empty(res.Flags)
	assert.Empty(res.Suggestions)
}

func TestAnalyzeDeterministic(t *testing.T) {
	assert := assert.New(t)
	a := New(DefaultRuleset())

	title := "HUGE DEAL"
	body := "Click here https://a.test https://b.test https://c.test or mail deals@example.com"
	first := a.Analyze(title, body)
	second := a.Analyze(title, body)
	assert.Equal(first, second)
	assert.Equal(first, Analyze(DefaultRuleset(), title, body))
}

func TestAnalyzeCaseInsensitive(t *testing.T) {
	assert := assert.New(t)
	a := New(DefaultRuleset())

	res := a.Analyze("FREE MONEY", "")
	assert.Equal([]string{"free money"}, res.MatchedSpamPhrases)
}

func TestAnalyzeObfuscatedPhrases(t *testing.T) {
	assert := assert.New(t)
	a := New(DefaultRuleset())

	res := a.Analyze("", "f.r.e.e m.o.n.e.y for everyone")
	assert.Equal([]string{"free money"}, res.MatchedSpamPhrases)
	assert.Equal(10, res.SpamScore)

	// a phrase found both ways still scores once
	res = a.Analyze("free money", "f-r-e-e m-o-n-e-y")
	assert.Equal([]string{"free money"}, res.MatchedSpamPhrases)
	assert.Equal(10, res.SpamScore)

	res = a.Analyze("", "total f_r_a_u_d, p.h.i.s.h.i.n.g")
	assert.True(res.IsInappropriate)
	assert.Equal([]string{"fraud", "phishing"}, res.MatchedInappropriatePhrases)
}

func TestAnalyzeLinks(t *testing.T) {
	assert := assert.New(t)
	a := New(DefaultRuleset())

	// at the threshold: flagged as having links, no score
	res := a.Analyze("", "see https://a.test and www.b.test")
	assert.True(res.HasLinks)
	assert.Equal(0, res.SpamScore)
	assert.Equal([]string{"a.test", "b.test"}, res.LinkDomains)

	// over the threshold: every link counts
	res = a.Analyze("", "see https://a.test and www.b.test and http://c.test")
	assert.Equal(15, res.SpamScore)
	assert.Contains(res.Flags, FlagLinks)

	// links in the title are not counted
	res = a.Analyze("https://a.test https://b.test https://c.test", "body")
	assert.False(res.HasLinks)
	assert.Equal(0, res.SpamScore)
}

func TestAnalyzeContactInfo(t *testing.T) {
	assert := assert.New(t)
	a := New(DefaultRuleset())

	res := a.Analyze("call me", "at 555-123-4567 or write to me@example.com")
	assert.True(res.HasContactInfo)
	assert.Equal(30, res.SpamScore)
	assert.True(res.IsSpam)
}

func TestAnalyzeCapsAndRepetition(t *testing.T) {
	assert := assert.New(t)
	a := New(DefaultRuleset())

	// short shouting is tolerated
	res := a.Analyze("", "WOW NICE")
	assert.Equal(0, res.SpamScore)

	res = a.Analyze("", "THIS IS THE BEST THING EVER")
	assert.Equal(10, res.SpamScore)
	assert.Contains(res.Flags, FlagCaps)

	res = a.Analyze("", strings.Repeat("great ", 11))
	assert.Equal(15, res.SpamScore)
	assert.Contains(res.Flags, FlagRepetition)

	// ten words is not enough to count as repetitive
	res = a.Analyze("", strings.Repeat("great ", 10))
	assert.Equal(0, res.SpamScore)
}

func TestSpamThresholdBoundary(t *testing.T) {
	assert := assert.New(t)

	rs := DefaultRuleset()
	rs.SpamPhrases = []string{"alpha", "beta"}
	rs.SpamKeywordWeight = 12

	res := Analyze(rs, "", "alpha and beta")
	assert.Equal(24, res.SpamScore)
	assert.False(res.IsSpam)

	rs.SpamKeywordWeight = 25
	res = Analyze(rs, "", "just alpha")
	assert.Equal(25, res.SpamScore)
	assert.True(res.IsSpam)

	// default weights reach exactly 25 with one email plus shouting
	res = Analyze(DefaultRuleset(), "", "CONTACT ME RIGHT AWAY AT ME@EXAMPLE.COM")
	assert.Equal(25, res.SpamScore)
	assert.True(res.IsSpam)
}

func TestDistinctPhrasesScoreOnce(t *testing.T) {
	assert := assert.New(t)
	a := New(DefaultRuleset())

	res := a.Analyze("", "buy now buy now buy now")
	assert.Equal(10, res.SpamScore)
}

func TestEmptyPhraseLists(t *testing.T) {
	assert := assert.New(t)

	rs := DefaultRuleset()
	rs.SpamPhrases = nil
	rs.InappropriatePhrases = []string{" ", ""}
	res := Analyze(rs, "", "buy now, this is a scam")
	assert.Equal(0, res.SpamScore)
	assert.False(res.IsInappropriate)
}

func TestAnalyzerConcurrent(t *testing.T) {
	a := New(DefaultRuleset())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				res := a.Analyze("", "Buy now and get rich quick! Click here!")
				assert.Equal(t, 30, res.SpamScore)
			}
		}()
	}
	wg.Wait()
}

func TestRulesetFromSets(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ss := setstore.NewMemSetStore()
	ss.Put(SpamPhrasesSet, []string{"special offer"})

	rs, err := RulesetFromSets(ctx, ss, DefaultRuleset())
	assert.NoError(err)
	assert.Equal([]string{"special offer"}, rs.SpamPhrases)
	assert.Equal(DefaultRuleset().InappropriatePhrases, rs.InappropriatePhrases)

	res := Analyze(rs, "", "buy now, special offer")
	assert.Equal([]string{"special offer"}, res.MatchedSpamPhrases)
}
