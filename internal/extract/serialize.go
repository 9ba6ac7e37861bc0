package extract

import (
	"strings"

	"github.com/cat-wiki/docwatcher/internal/dom"
)

// Serialize renders n as plain text that keeps paragraph, heading, list item
// and table row boundaries as newlines and table cells as tabs.
func Serialize(n dom.Node) string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n dom.Node) {
	switch n.Kind() {
	case dom.KindText:
		b.WriteString(collapseSpaces(n.Text()))
	case dom.KindElement:
		writeElement(b, n)
	}
}

func writeElement(b *strings.Builder, n dom.Node) {
	if !n.Visible() {
		return
	}
	switch n.Tag() {
	case "br":
		b.WriteByte('\n')
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "li", "tr":
		b.WriteString(trimSpace(childText(n)))
		b.WriteByte('\n')
	case "td", "th":
		b.WriteString(childText(n))
		b.WriteByte('\t')
	default:
		for _, child := range n.Children() {
			writeNode(b, child)
		}
	}
}

func childText(n dom.Node) string {
	var b strings.Builder
	for _, child := range n.Children() {
		writeNode(&b, child)
	}
	return b.String()
}
