// Deterministic, rule-based scoring of post and comment text.
//
// Analysis is a pure function of the text and a Ruleset: no I/O and no randomness, so identical inputs always yield identical results.
package analyzer

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"

	"github.com/forumkit/steward/moderation/helpers"
	"github.com/forumkit/steward/moderation/keyword"
)

const (
	FlagSpamPhrases   = "contains promotional phrases"
	FlagInappropriate = "contains inappropriate language"
	FlagLinks         = "excessive links"
	FlagContactInfo   = "contains contact information"
	FlagCaps          = "excessive capitalization"
	FlagRepetition    = "repetitive content"
)

type Analysis struct {
	IsSpam          bool `json:"isSpam"`
	IsInappropriate bool `json:"isInappropriate"`
	HasLinks        bool `json:"hasLinks"`
	HasContactInfo  bool `json:"hasContactInfo"`
	SpamScore       int  `json:"spamScore"`

	Flags       []string `json:"flags"`
	Suggestions []string `json:"suggestions"`

	MatchedSpamPhrases          []string `json:"matchedSpamPhrases,omitempty"`
	MatchedInappropriatePhrases []string `json:"matchedInappropriatePhrases,omitempty"`
	LinkDomains                 []string `json:"linkDomains,omitempty"`
}

// phrase list compiled to automatons over the case-folded and the slugified form; Match mutates matcher state so calls are serialized
type phraseMatcher struct {
	mu      sync.Mutex
	phrases []string
	m       *ahocorasick.Matcher
	slugs   *ahocorasick.Matcher
	// slug automaton index to the phrases sharing that slug
	slugOwners [][]int
}

func newPhraseMatcher(phrases []string) *phraseMatcher {
	var lower []string
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lower = append(lower, p)
		}
	}
	lower = helpers.DedupeStrings(lower)
	pm := &phraseMatcher{phrases: lower}
	if len(lower) == 0 {
		return pm
	}
	pm.m = ahocorasick.NewStringMatcher(lower)

	var slugs []string
	bySlug := map[string]int{}
	for i, p := range lower {
		s := keyword.Slugify(p)
		if s == "" {
			continue
		}
		j, ok := bySlug[s]
		if !ok {
			j = len(slugs)
			bySlug[s] = j
			slugs = append(slugs, s)
			pm.slugOwners = append(pm.slugOwners, nil)
		}
		pm.slugOwners[j] = append(pm.slugOwners[j], i)
	}
	if len(slugs) > 0 {
		pm.slugs = ahocorasick.NewStringMatcher(slugs)
	}
	return pm
}

// distinct phrases found in already case-folded text or its slug, in dictionary order
func (pm *phraseMatcher) match(folded, slug string) []string {
	if pm.m == nil {
		return nil
	}
	pm.mu.Lock()
	hits := pm.m.Match([]byte(folded))
	var slugHits []int
	if pm.slugs != nil && slug != "" {
		slugHits = pm.slugs.Match([]byte(slug))
	}
	pm.mu.Unlock()

	seen := make(map[int]bool, len(hits)+len(slugHits))
	for _, h := range hits {
		seen[h] = true
	}
	for _, h := range slugHits {
		for _, i := range pm.slugOwners[h] {
			seen[i] = true
		}
	}
	var out []string
	for i, p := range pm.phrases {
		if seen[i] {
			out = append(out, p)
		}
	}
	return out
}

// A Ruleset with its phrase lists compiled. Safe for concurrent use.
type Analyzer struct {
	rules         Ruleset
	spam          *phraseMatcher
	inappropriate *phraseMatcher
}

func New(rules Ruleset) *Analyzer {
	return &Analyzer{
		rules:         rules,
		spam:          newPhraseMatcher(rules.SpamPhrases),
		inappropriate: newPhraseMatcher(rules.InappropriatePhrases),
	}
}

func (a *Analyzer) Ruleset() Ruleset {
	return a.rules
}

// Convenience wrapper compiling rules on every call. Long-lived callers should hold an Analyzer.
func Analyze(rules Ruleset, title, body string) Analysis {
	return New(rules).Analyze(title, body)
}

func combinedText(title, body string) string {
	if title == "" {
		return body
	}
	return title + " " + body
}

func capsRatio(text string) (float64, int) {
	length := utf8.RuneCountInString(text)
	if length == 0 {
		return 0, 0
	}
	upper := 0
	for _, r := range text {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(length), length
}

func (a *Analyzer) Analyze(title, body string) Analysis {
	rs := a.rules
	text := combinedText(title, body)
	folded := strings.ToLower(text)
	// catches phrases spelled out with separators, like "f.r.e.e m.o.n.e.y"
	slug := keyword.Slugify(text)

	out := Analysis{
		Flags:       []string{},
		Suggestions: []string{},
	}

	if phrases := a.spam.match(folded, slug); len(phrases) > 0 {
		out.MatchedSpamPhrases = phrases
		out.SpamScore += rs.SpamKeywordWeight * len(phrases)
		out.Flags = append(out.Flags, FlagSpamPhrases)
		out.Suggestions = append(out.Suggestions, "Remove promotional language")
	}

	if phrases := a.inappropriate.match(folded, slug); len(phrases) > 0 {
		out.MatchedInappropriatePhrases = phrases
		out.IsInappropriate = true
		out.Flags = append(out.Flags, FlagInappropriate)
		out.Suggestions = append(out.Suggestions, "Keep the discussion respectful and lawful")
	}

	links := helpers.ExtractLinks(body)
	out.HasLinks = len(links) > 0
	if out.HasLinks {
		out.LinkDomains = helpers.LinkDomains(links)
	}
	if len(links) > rs.LinkThreshold {
		out.SpamScore += rs.LinkWeight * len(links)
		out.Flags = append(out.Flags, FlagLinks)
		out.Suggestions = append(out.Suggestions, "Reduce the number of links")
	}

	contacts := len(helpers.ExtractEmails(text)) + len(helpers.ExtractPhoneNumbers(text))
	if contacts > 0 {
		out.HasContactInfo = true
		out.SpamScore += rs.ContactWeight * contacts
		out.Flags = append(out.Flags, FlagContactInfo)
		out.Suggestions = append(out.Suggestions, "Avoid sharing personal contact information publicly")
	}

	if ratio, length := capsRatio(text); ratio > rs.CapsRatio && length > rs.CapsMinLength {
		out.SpamScore += rs.CapsWeight
		out.Flags = append(out.Flags, FlagCaps)
		out.Suggestions = append(out.Suggestions, "Avoid writing in all caps")
	}

	words := keyword.TokenizeText(text)
	if len(words) > rs.RepetitionMinWords && keyword.RepetitionRatio(words) > rs.RepetitionRatio {
		out.SpamScore += rs.RepetitionWeight
		out.Flags = append(out.Flags, FlagRepetition)
		out.Suggestions = append(out.Suggestions, "Avoid repeating the same words")
	}

	out.IsSpam = out.SpamScore >= rs.SpamThreshold
	return out
}
