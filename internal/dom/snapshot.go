package dom

// Snapshot is the JSON shape produced by the in-page serialisation script of
// the browser renderer. It is decoded directly from the evaluation result.
type Snapshot struct {
	Type     string            `json:"kind"`
	Name     string            `json:"tag,omitempty"`
	Value    string            `json:"text,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Hidden   bool              `json:"hidden,omitempty"`
	Elements []*Snapshot       `json:"children,omitempty"`
}

// Snapshot kinds emitted by the page script.
const (
	SnapshotElement = "element"
	SnapshotText    = "text"
)

var _ Node = (*Snapshot)(nil)

// Kind implements Node.
func (s *Snapshot) Kind() Kind {
	switch s.Type {
	case SnapshotElement:
		return KindElement
	case SnapshotText:
		return KindText
	default:
		return KindOther
	}
}

// Tag implements Node.
func (s *Snapshot) Tag() string {
	if s.Type != SnapshotElement {
		return ""
	}
	return s.Name
}

// Text implements Node.
func (s *Snapshot) Text() string {
	if s.Type != SnapshotText {
		return ""
	}
	return s.Value
}

// Attr implements Node.
func (s *Snapshot) Attr(name string) (string, bool) {
	v, ok := s.Attrs[name]
	return v, ok
}

// Visible implements Node.
func (s *Snapshot) Visible() bool {
	return !s.Hidden
}

// Children implements Node.
func (s *Snapshot) Children() []Node {
	if len(s.Elements) == 0 {
		return nil
	}
	out := make([]Node, 0, len(s.Elements))
	for _, child := range s.Elements {
		if child != nil {
			out = append(out, child)
		}
	}
	return out
}

// CountNodes returns the number of nodes in the snapshot tree.
func (s *Snapshot) CountNodes() int {
	if s == nil {
		return 0
	}
	total := 1
	for _, child := range s.Elements {
		total += child.CountNodes()
	}
	return total
}
