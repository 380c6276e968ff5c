package helpers

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/purell"
	"github.com/spaolacci/murmur3"
)

func DedupeStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}

// Fast, compact hash of a string: murmur3 with the default seed, hex encoded.
func HashOfString(s string) string {
	val := murmur3.Sum64([]byte(s))
	return fmt.Sprintf("%016x", val)
}

var (
	linkRegex  = regexp.MustCompile(`https?://[^\s]+|www\.[^\s]+`)
	emailRegex = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRegex = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
)

// Explicit links: anything starting with a scheme or "www.", up to the next whitespace.
func ExtractLinks(raw string) []string {
	return linkRegex.FindAllString(raw, -1)
}

func ExtractEmails(raw string) []string {
	return emailRegex.FindAllString(raw, -1)
}

// North American style numbers, with optional "-" or "." separators.
func ExtractPhoneNumbers(raw string) []string {
	return phoneRegex.FindAllString(raw, -1)
}

// Aggressive, lossy normalization for comparing links. The result may not be fetchable.
func NormalizeURL(raw string) string {
	if strings.HasPrefix(raw, "www.") {
		raw = "http://" + raw
	}
	clean, err := purell.NormalizeURLString(raw, purell.FlagsUsuallySafeGreedy|purell.FlagRemoveFragment|purell.FlagRemoveWWW|purell.FlagSortQuery)
	if err != nil {
		return raw
	}
	return clean
}

// Distinct hostnames of the given links, in first-seen order. Unparseable links are skipped.
func LinkDomains(links []string) []string {
	var out []string
	for _, l := range links {
		u, err := url.Parse(NormalizeURL(l))
		if err != nil || u.Hostname() == "" {
			continue
		}
		out = append(out, strings.ToLower(u.Hostname()))
	}
	return DedupeStrings(out)
}
