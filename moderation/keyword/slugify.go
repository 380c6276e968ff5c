package keyword

import (
	"strings"
	"unicode"
)

// Lower-cased letters and digits of orig with everything else dropped, so separators used to dodge phrase lists ("f.r.e.e m.o.n.e.y") disappear.
func Slugify(orig string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, orig)
}
