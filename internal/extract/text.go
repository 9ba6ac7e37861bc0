package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// The whitespace class used throughout extraction. It matches the set a
// browser's script engine treats as whitespace, so non-breaking and other
// Unicode spaces collapse like ordinary ones.
const spaceClass = `[\t\n\v\f\r\p{Zs}\x{2028}\x{2029}\x{feff}]`

var (
	spaceRun   = regexp.MustCompile(spaceClass + `+`)
	blankLines = regexp.MustCompile(`\n` + spaceClass + `+\n`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
)

func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', '\u2028', '\u2029', '\ufeff':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func trimSpace(s string) string {
	return strings.TrimFunc(s, isSpace)
}

func collapseSpaces(s string) string {
	return spaceRun.ReplaceAllString(s, " ")
}

// Normalize folds whitespace-only lines into paragraph breaks, caps runs of
// blank lines at one and trims the result. Normalize(Normalize(s)) ==
// Normalize(s) for every s.
func Normalize(s string) string {
	for {
		next := normalizeOnce(s)
		if next == s {
			return next
		}
		s = next
	}
}

func normalizeOnce(s string) string {
	s = blankLines.ReplaceAllString(s, "\n\n")
	s = newlineRun.ReplaceAllString(s, "\n\n")
	return trimSpace(s)
}
