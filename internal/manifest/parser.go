// Package manifest loads the list of document URLs to scrape from a remote
// store and decodes it into a validated, ordered sequence.
package manifest

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Errors returned while loading a manifest. All of them abort a run.
var (
	ErrUnsupportedFormat   = errors.New("unsupported manifest format")
	ErrMalformedManifest   = errors.New("malformed manifest")
	ErrManifestUnavailable = errors.New("manifest unavailable")
)

// Format identifies how a manifest blob is encoded.
type Format string

// Supported manifest formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat maps a declared format or file extension to a Format.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// FormatFromPath derives the format from a manifest path's extension.
func FormatFromPath(p string) (Format, error) {
	return ParseFormat(path.Ext(p))
}

// ParseOptions receives non-fatal findings while parsing.
type ParseOptions struct {
	// OnInvalid is called for each entry that is not an absolute URL.
	OnInvalid func(entry any)
	// OnDuplicate is called for each repeated URL after its first occurrence.
	OnDuplicate func(u string)
}

// Parse decodes raw according to format and returns the valid, de-duplicated
// URLs in their original order. Bad entries are dropped, never fatal.
func Parse(raw []byte, format Format, opts ParseOptions) ([]string, error) {
	var candidates []any
	switch format {
	case FormatJSON:
		data, err := decodeJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrMalformedManifest, err)
		}
		candidates = flatten(data)
	case FormatYAML:
		data, err := decodeYAML(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %v", ErrMalformedManifest, err)
		}
		candidates = flatten(data)
	case FormatText:
		candidates = textLines(string(raw))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return validate(candidates, opts), nil
}

// flatten turns the decoded document into the candidate collection: the
// elements of an array, the values of an object, or the document itself.
// Nested arrays are flattened one level.
func flatten(data any) []any {
	var top []any
	switch v := data.(type) {
	case nil:
		return nil
	case []any:
		top = v
	case mapping:
		top = v
	default:
		top = []any{v}
	}

	out := make([]any, 0, len(top))
	for _, item := range top {
		if nested, ok := item.([]any); ok {
			out = append(out, nested...)
			continue
		}
		out = append(out, item)
	}
	return out
}

func textLines(content string) []any {
	var out []any
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func validate(candidates []any, opts ParseOptions) []string {
	urls := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		s, ok := candidate.(string)
		if !ok || !IsAbsoluteURL(strings.TrimSpace(s)) {
			if opts.OnInvalid != nil {
				opts.OnInvalid(candidate)
			}
			continue
		}
		s = strings.TrimSpace(s)
		if _, dup := seen[s]; dup {
			if opts.OnDuplicate != nil {
				opts.OnDuplicate(s)
			}
			continue
		}
		seen[s] = struct{}{}
		urls = append(urls, s)
	}
	return urls
}

// IsAbsoluteURL reports whether s parses as a URL with both scheme and host.
func IsAbsoluteURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
