package analyzer

import (
	"context"
	"slices"

	"github.com/forumkit/steward/moderation/setstore"
)

// Set names consulted by RulesetFromSets.
const (
	SpamPhrasesSet          = "spam-phrases"
	InappropriatePhrasesSet = "inappropriate-phrases"
)

// Scoring tables and thresholds for content analysis. Treat as an immutable value once handed to New.
type Ruleset struct {
	// Promotional phrases. Each distinct phrase present adds SpamKeywordWeight.
	SpamPhrases []string
	// Fraud and abuse phrases. Any match marks the content inappropriate without scoring.
	InappropriatePhrases []string

	SpamKeywordWeight int

	// Links in the body beyond LinkThreshold add LinkWeight for every link, not just the excess.
	LinkThreshold int
	LinkWeight    int

	// Added once per email address or phone number.
	ContactWeight int

	CapsRatio     float64
	CapsMinLength int
	CapsWeight    int

	RepetitionRatio    float64
	RepetitionMinWords int
	RepetitionWeight   int

	// Score at or above which content counts as spam.
	SpamThreshold int
	// Score at or above which non-spam content is held for manual review.
	ReviewThreshold int
}

func DefaultRuleset() Ruleset {
	return Ruleset{
		SpamPhrases: []string{
			"buy now",
			"click here",
			"free money",
			"get rich quick",
			"limited time offer",
			"act now",
			"make money fast",
			"earn money from home",
			"100% free",
			"risk free",
			"no credit check",
			"double your money",
		},
		InappropriatePhrases: []string{
			"scam",
			"fraud",
			"phishing",
			"ponzi",
			"pyramid scheme",
			"money laundering",
			"stolen credit card",
			"fake id",
		},
		SpamKeywordWeight:  10,
		LinkThreshold:      2,
		LinkWeight:         5,
		ContactWeight:      15,
		CapsRatio:          0.3,
		CapsMinLength:      20,
		CapsWeight:         10,
		RepetitionRatio:    0.5,
		RepetitionMinWords: 10,
		RepetitionWeight:   15,
		SpamThreshold:      25,
		ReviewThreshold:    15,
	}
}

// Copy of base with phrase lists replaced by any matching sets in ss. Sets which are absent leave the base list untouched.
func RulesetFromSets(ctx context.Context, ss setstore.SetStore, base Ruleset) (Ruleset, error) {
	out := base
	out.SpamPhrases = slices.Clone(base.SpamPhrases)
	out.InappropriatePhrases = slices.Clone(base.InappropriatePhrases)

	spam, ok, err := ss.Members(ctx, SpamPhrasesSet)
	if err != nil {
		return base, err
	}
	if ok {
		out.SpamPhrases = spam
	}
	bad, ok, err := ss.Members(ctx, InappropriatePhrasesSet)
	if err != nil {
		return base, err
	}
	if ok {
		out.InappropriatePhrases = bad
	}
	return out, nil
}
