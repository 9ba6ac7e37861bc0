// Package dom models a rendered page as a small, host-independent tree so that
// text extraction can run without a live browser.
package dom

// Kind classifies a Node.
type Kind int

// Node kinds understood by the extractor. Comments, doctypes and anything else
// a host exposes map to KindOther and contribute no text.
const (
	KindOther Kind = iota
	KindElement
	KindText
)

// Node is the read-only view of a document node that extraction works on.
// Renderers supply adapters from their native DOM handles to this interface.
type Node interface {
	Kind() Kind
	// Tag is the lower-case element name, empty for non-elements.
	Tag() string
	// Text is the raw character data of a text node.
	Text() string
	Attr(name string) (string, bool)
	// Visible reports whether the node is rendered (display, visibility and
	// opacity all permit it). Text nodes are always visible.
	Visible() bool
	Children() []Node
}

// Walk visits n and its descendants in document order until fn returns false.
// It reports whether the walk ran to completion.
func Walk(n Node, fn func(Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, child := range n.Children() {
		if !Walk(child, fn) {
			return false
		}
	}
	return true
}

// Find returns the first node in document order, starting at n itself, for
// which match reports true.
func Find(n Node, match func(Node) bool) Node {
	var found Node
	Walk(n, func(candidate Node) bool {
		if match(candidate) {
			found = candidate
			return false
		}
		return true
	})
	return found
}
