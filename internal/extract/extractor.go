// Package extract turns a rendered page into normalized, structure-preserving
// plain text.
package extract

import (
	"errors"
	"fmt"

	"github.com/cat-wiki/docwatcher/internal/dom"
)

// ErrNoContentFound is returned when the chosen region yields no text.
var ErrNoContentFound = errors.New("no content found")

// BodySelector is recorded when no region selector matched and the pruned
// body was used instead.
const BodySelector = "body"

// DefaultRegionSelectors lists the content regions tried, in priority order.
var DefaultRegionSelectors = []string{
	"main",
	"article",
	".terms",
	"#terms",
	".terms-content",
	".legal-content",
	".tos-content",
	`[role="main"]`,
}

// DefaultExcludedSelectors lists the chrome removed from the body fallback.
var DefaultExcludedSelectors = []string{
	"nav",
	"header",
	"footer",
	".navigation",
	".footer",
	".header",
	"script",
	"style",
	"noscript",
}

// Content is the text pulled from a page and the region it came from.
type Content struct {
	Text     string
	Selector string
}

// Extractor picks a content region and serializes it.
type Extractor struct {
	regions  []Selector
	excluded []Selector
}

// New builds an Extractor. Empty selector lists fall back to the defaults.
func New(regions, excluded []string) (*Extractor, error) {
	if len(regions) == 0 {
		regions = DefaultRegionSelectors
	}
	if len(excluded) == 0 {
		excluded = DefaultExcludedSelectors
	}
	e := &Extractor{}
	for _, raw := range regions {
		sel, err := ParseSelector(raw)
		if err != nil {
			return nil, fmt.Errorf("region selector: %w", err)
		}
		e.regions = append(e.regions, sel)
	}
	for _, raw := range excluded {
		sel, err := ParseSelector(raw)
		if err != nil {
			return nil, fmt.Errorf("excluded selector: %w", err)
		}
		e.excluded = append(e.excluded, sel)
	}
	return e, nil
}

var defaultExtractor = func() *Extractor {
	e, err := New(nil, nil)
	if err != nil {
		panic(err)
	}
	return e
}()

// Extract runs the default Extractor.
func Extract(root dom.Node) (Content, error) {
	return defaultExtractor.Extract(root)
}

// Extract selects the content region under root, serializes and normalizes it.
func (e *Extractor) Extract(root dom.Node) (Content, error) {
	if root == nil {
		return Content{}, ErrNoContentFound
	}
	region, selector := e.selectRegion(root)
	text := Normalize(Serialize(region))
	if text == "" {
		return Content{Selector: selector}, fmt.Errorf("region %q: %w", selector, ErrNoContentFound)
	}
	return Content{Text: text, Selector: selector}, nil
}

// selectRegion returns the first visible region in priority order. For each
// selector only its first match in document order is considered.
func (e *Extractor) selectRegion(root dom.Node) (dom.Node, string) {
	for _, sel := range e.regions {
		match := dom.Find(root, sel.Matches)
		if match != nil && match.Visible() {
			return match, sel.String()
		}
	}

	body := dom.Find(root, func(n dom.Node) bool {
		return n.Kind() == dom.KindElement && n.Tag() == "body"
	})
	if body == nil {
		body = root
	}
	return &pruned{Node: body, excluded: e.excluded}, BodySelector
}

// pruned is a view of a subtree with excluded descendants removed. It leaves
// the underlying tree untouched.
type pruned struct {
	dom.Node
	excluded []Selector
}

func (p *pruned) Children() []dom.Node {
	children := p.Node.Children()
	out := make([]dom.Node, 0, len(children))
	for _, child := range children {
		if child.Kind() != dom.KindElement {
			out = append(out, child)
			continue
		}
		if p.isExcluded(child) {
			continue
		}
		out = append(out, &pruned{Node: child, excluded: p.excluded})
	}
	return out
}

func (p *pruned) isExcluded(n dom.Node) bool {
	for _, sel := range p.excluded {
		if sel.Matches(n) {
			return true
		}
	}
	return false
}
