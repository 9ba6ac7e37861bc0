package persist

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{url: "https://example.com/terms", want: "example-com_terms.txt"},
		{url: "http://docs.github.com/en/site-policy/", want: "docs-github-com_en_site-policy_.txt"},
		{url: "https://a.com/tos?lang=en&v=2", want: "a-com_tos_lang=en&v=2.txt"},
		{url: "https://host:8080/a b", want: "host_8080_a_b.txt"},
		{url: "HTTPS://Example.com/x", want: "Example-com_x.txt"},
		{url: "ftp://files.example/terms.pdf", want: "files-example_terms-pdf.txt"},
		{url: "https://a.com/p*|\"<>\\", want: "a-com_p______.txt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileName(tt.url), tt.url)
	}
	assert.Equal(t, "example-com_terms.metadata.json", MetadataName("https://example.com/terms"))
}

func TestFileNameLongURLsStayBounded(t *testing.T) {
	t.Parallel()

	long := "https://example.com/" + strings.Repeat("segment/", 60)
	other := long + "x"

	base := BaseName(long)
	assert.LessOrEqual(t, len(base), MaxBaseLen)
	assert.True(t, utf8.ValidString(base))
	assert.NotEqual(t, base, BaseName(other), "digest suffix must separate long URLs")

	unicodeURL := "https://example.com/" + strings.Repeat("é", 150)
	ub := BaseName(unicodeURL)
	assert.LessOrEqual(t, len(ub), MaxBaseLen)
	assert.True(t, utf8.ValidString(ub))
}

func TestFileNameDeterministicAndLegal(t *testing.T) {
	t.Parallel()

	alphabet := []rune("abcXYZ019.-_/\\:?*\"<>| \t\n%#&=~é日\x00\x7f")
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		n := rng.Intn(300)
		runes := make([]rune, n)
		for j := range runes {
			runes[j] = alphabet[rng.Intn(len(alphabet))]
		}
		raw := "https://" + string(runes)

		name := FileName(raw)
		assert.Equal(t, name, FileName(raw))
		assert.False(t, strings.HasPrefix(name, "https"), name)
		assert.True(t, strings.HasSuffix(name, TextExt))
		stem := strings.TrimSuffix(name, TextExt)
		assert.NotContains(t, stem, ".")
		assert.False(t, strings.ContainsAny(stem, "<>:\"/\\|?* \t\n\x00\x7f"), stem)
		assert.LessOrEqual(t, len(stem), MaxBaseLen)
	}
}

func TestFileNameCollisionCase(t *testing.T) {
	t.Parallel()

	// Distinct URLs can sanitise to the same name.
	assert.Equal(t, FileName("https://a.com/x?y"), FileName("https://a.com/x*y"))
}
