package render

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lowerCaser = cases.Lower(language.Und)

// Slugify derives a URL-safe slug: accents folded away (NFD decomposition
// with combining marks dropped), lowercased, with runs of anything
// non-alphanumeric collapsed to single hyphens.
func Slugify(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	hyphen := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark from the decomposition
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if hyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			hyphen = false
			b.WriteString(lowerCaser.String(string(r)))
		default:
			hyphen = true
		}
	}
	return b.String()
}
