package extract

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cat-wiki/docwatcher/internal/dom"
)

// Selector is a single compound CSS selector: an optional tag name followed by
// any number of .class, #id and [attr] / [attr="value"] conditions.
// Combinators are not supported.
type Selector struct {
	raw     string
	tag     string
	id      string
	classes []string
	attrs   []attrCondition
}

type attrCondition struct {
	name     string
	value    string
	hasValue bool
}

// ParseSelector compiles raw into a Selector.
func ParseSelector(raw string) (Selector, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Selector{}, fmt.Errorf("empty selector")
	}
	sel := Selector{raw: s}

	i := 0
	tag, n := readIdent(s[i:])
	sel.tag = strings.ToLower(tag)
	i += n
	if i < len(s) && s[i] == '*' && sel.tag == "" {
		i++
	}

	for i < len(s) {
		switch s[i] {
		case '.':
			name, n := readIdent(s[i+1:])
			if n == 0 {
				return Selector{}, fmt.Errorf("selector %q: empty class name", raw)
			}
			sel.classes = append(sel.classes, name)
			i += 1 + n
		case '#':
			name, n := readIdent(s[i+1:])
			if n == 0 {
				return Selector{}, fmt.Errorf("selector %q: empty id", raw)
			}
			sel.id = name
			i += 1 + n
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return Selector{}, fmt.Errorf("selector %q: unterminated attribute condition", raw)
			}
			cond, err := parseAttrCondition(s[i+1 : i+end])
			if err != nil {
				return Selector{}, fmt.Errorf("selector %q: %w", raw, err)
			}
			sel.attrs = append(sel.attrs, cond)
			i += end + 1
		default:
			return Selector{}, fmt.Errorf("selector %q: unsupported syntax at offset %d", raw, i)
		}
	}
	return sel, nil
}

// String returns the selector as written.
func (s Selector) String() string {
	return s.raw
}

// Matches reports whether n is an element satisfying every condition.
func (s Selector) Matches(n dom.Node) bool {
	if n == nil || n.Kind() != dom.KindElement {
		return false
	}
	if s.tag != "" && n.Tag() != s.tag {
		return false
	}
	if s.id != "" {
		if id, ok := n.Attr("id"); !ok || id != s.id {
			return false
		}
	}
	if len(s.classes) > 0 {
		class, _ := n.Attr("class")
		have := strings.Fields(class)
		for _, want := range s.classes {
			if !slices.Contains(have, want) {
				return false
			}
		}
	}
	for _, cond := range s.attrs {
		value, ok := n.Attr(cond.name)
		if !ok || (cond.hasValue && value != cond.value) {
			return false
		}
	}
	return true
}

func parseAttrCondition(body string) (attrCondition, error) {
	name, value, hasValue := strings.Cut(body, "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return attrCondition{}, fmt.Errorf("empty attribute name")
	}
	cond := attrCondition{name: strings.ToLower(name), hasValue: hasValue}
	if hasValue {
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') {
			if value[len(value)-1] != value[0] {
				return attrCondition{}, fmt.Errorf("unbalanced quotes in %q", body)
			}
			value = value[1 : len(value)-1]
		}
		cond.value = value
	}
	return cond, nil
}

func readIdent(s string) (string, int) {
	n := 0
	for n < len(s) {
		c := s[n]
		if c == '-' || c == '_' || c >= 0x80 ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			n++
			continue
		}
		break
	}
	return s[:n], n
}
