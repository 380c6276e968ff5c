package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLinks(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		s   string
		out []string
	}{
		{s: "no links here, just example.com", out: nil},
		{s: "see https://example.com/a?b=c and www.other.org!", out: []string{"https://example.com/a?b=c", "www.other.org!"}},
		{s: "http://a.test http://b.test\nhttp://c.test", out: []string{"http://a.test", "http://b.test", "http://c.test"}},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, ExtractLinks(fix.s))
	}
}

func TestExtractContactInfo(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"someone@example.com"}, ExtractEmails("mail someone@example.com today"))
	assert.Empty(ExtractEmails("at @ symbol alone"))
	assert.Equal([]string{"555-123-4567", "555.123.4567", "5551234567"}, ExtractPhoneNumbers("call 555-123-4567 or 555.123.4567 or 5551234567"))
	assert.Empty(ExtractPhoneNumbers("the year 2024 had 12 months"))
}

func TestLinkDomains(t *testing.T) {
	assert := assert.New(t)

	links := []string{"https://www.Example.com/a", "http://example.com/b#frag", "www.other.org/x", "https://"}
	assert.Equal([]string{"example.com", "other.org"}, LinkDomains(links))
}

func TestHashOfString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(HashOfString("same body"), HashOfString("same body"))
	assert.NotEqual(HashOfString("same body"), HashOfString("other body"))
	assert.Equal(16, len(HashOfString("")))
}

func TestDedupeStrings(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"b", "a"}, DedupeStrings([]string{"b", "a", "b", "a"}))
	assert.Nil(DedupeStrings(nil))
}
