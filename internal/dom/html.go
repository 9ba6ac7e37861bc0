package dom

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Elements a browser never renders, regardless of styling.
var unrenderedTags = map[string]struct{}{
	"head":     {},
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
}

// FromHTML parses markup into a Node rooted at the <html> element. Visibility
// is approximated from the hidden attribute, inline styles and tags that are
// never rendered, since no stylesheet is applied.
func FromHTML(r io.Reader) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	root := doc.Find("html").First()
	if root.Length() == 0 {
		return nil, fmt.Errorf("parse html: document has no root element")
	}
	return &htmlNode{node: root.Nodes[0]}, nil
}

// FromHTMLString is FromHTML for in-memory markup.
func FromHTMLString(markup string) (Node, error) {
	return FromHTML(strings.NewReader(markup))
}

type htmlNode struct {
	node *html.Node
}

func (n *htmlNode) Kind() Kind {
	switch n.node.Type {
	case html.ElementNode:
		return KindElement
	case html.TextNode:
		return KindText
	default:
		return KindOther
	}
}

func (n *htmlNode) Tag() string {
	if n.node.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.node.Data)
}

func (n *htmlNode) Text() string {
	if n.node.Type != html.TextNode {
		return ""
	}
	return n.node.Data
}

func (n *htmlNode) Attr(name string) (string, bool) {
	for _, attr := range n.node.Attr {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, name) {
			return attr.Val, true
		}
	}
	return "", false
}

func (n *htmlNode) Visible() bool {
	if n.node.Type != html.ElementNode {
		return true
	}
	if _, skip := unrenderedTags[n.Tag()]; skip {
		return false
	}
	if _, hidden := n.Attr("hidden"); hidden {
		return false
	}
	style, ok := n.Attr("style")
	if !ok {
		return true
	}
	return inlineStyleVisible(style)
}

func (n *htmlNode) Children() []Node {
	var out []Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		out = append(out, &htmlNode{node: child})
	}
	return out
}

// inlineStyleVisible applies the display/visibility/opacity rules to a style
// attribute. Later declarations win, as in CSS.
func inlineStyleVisible(style string) bool {
	displayed, shown, opaque := true, true, true
	for _, decl := range strings.Split(style, ";") {
		prop, value, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.ToLower(strings.TrimSpace(value))
		value = strings.TrimSpace(strings.TrimSuffix(value, "!important"))
		switch prop {
		case "display":
			displayed = value != "none"
		case "visibility":
			shown = value != "hidden"
		case "opacity":
			opaque = !zeroOpacity(value)
		}
	}
	return displayed && shown && opaque
}

func zeroOpacity(value string) bool {
	value = strings.TrimSuffix(value, "%")
	f, err := strconv.ParseFloat(value, 64)
	return err == nil && f == 0
}
