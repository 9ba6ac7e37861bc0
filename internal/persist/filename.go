package persist

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cat-wiki/docwatcher/internal/hash/sha256"
)

// File name suffixes.
const (
	TextExt     = ".txt"
	MetadataExt = ".metadata.json"
)

// MaxBaseLen bounds the base name in bytes. Longer names are truncated and
// suffixed with a digest of the URL.
const MaxBaseLen = 200

const digestLen = 16

var schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://`)

// BaseName maps a URL to the extension-less name shared by its text and
// metadata files. It is deterministic and never contains characters that are
// illegal in file names.
func BaseName(rawURL string) string {
	trimmed := schemePrefix.ReplaceAllString(strings.TrimSpace(rawURL), "")

	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		switch {
		case r == '.':
			b.WriteByte('-')
		case illegal(r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	base := b.String()
	if base == "" {
		return sha256.Prefix(rawURL, digestLen)
	}
	if len(base) > MaxBaseLen {
		base = truncate(base, MaxBaseLen-digestLen-1) + "_" + sha256.Prefix(rawURL, digestLen)
	}
	return base
}

// FileName returns the text file name for rawURL.
func FileName(rawURL string) string {
	return BaseName(rawURL) + TextExt
}

// MetadataName returns the metadata file name for rawURL.
func MetadataName(rawURL string) string {
	return BaseName(rawURL) + MetadataExt
}

func illegal(r rune) bool {
	switch r {
	case '<', '>', ':', '"', '/', '\\', '|', '?', '*', utf8.RuneError:
		return true
	}
	return unicode.IsControl(r) || unicode.IsSpace(r)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
