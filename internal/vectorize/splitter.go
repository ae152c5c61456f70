// Package vectorize implements the batch indexing pipeline: collect
// markdown files, split them on headings into fragments, embed the
// fragments and persist them into the local knowledge index. An optional
// crawler pulls pages from the campus site into markdown first.
package vectorize

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Fragment is one heading-delimited slice of a markdown document.
type Fragment struct {
	// Topic groups fragments into collections. It is the document's
	// first level-1 heading, or the source path when the document has
	// none.
	Topic string

	// Headings is the heading trail above this fragment, outermost
	// first, joined with " > ".
	Headings string

	// Content is the fragment text, heading line included.
	Content string

	// Source is the originating file path or URL.
	Source string
}

// headingTrail tracks the open heading at each level (1..3).
type headingTrail [3]string

func (h *headingTrail) set(level int, title string) {
	h[level-1] = title
	for i := level; i < len(h); i++ {
		h[i] = ""
	}
}

func (h *headingTrail) String() string {
	var parts []string
	for _, t := range *h {
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " > ")
}

// Split cuts a markdown document into fragments at level 1 to 3 headings.
// Text before the first heading becomes a fragment of its own. Headings of
// level 4 and deeper stay inside their parent fragment.
func Split(source string, content []byte) ([]Fragment, error) {
	doc := goldmark.DefaultParser().Parse(text.NewReader(content))

	topic := source
	if first := firstTopLevelHeading(doc, content); first != "" {
		topic = first
	}

	var (
		fragments []Fragment
		trail     headingTrail
		current   strings.Builder
		heading   string
	)

	flush := func() {
		body := strings.TrimSpace(current.String())
		current.Reset()
		if body == "" {
			return
		}
		fragments = append(fragments, Fragment{
			Topic:    topic,
			Headings: heading,
			Content:  body,
			Source:   source,
		})
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok && h.Level <= 3 {
			flush()
			title := headingText(h, content)
			trail.set(h.Level, title)
			heading = trail.String()
			current.WriteString(strings.Repeat("#", h.Level) + " " + title + "\n")
			continue
		}
		current.WriteString(nodeText(node, content))
		current.WriteString("\n")
	}
	flush()

	if len(fragments) == 0 {
		return nil, fmt.Errorf("document %s has no content", source)
	}
	return fragments, nil
}

// firstTopLevelHeading returns the text of the document's first H1.
func firstTopLevelHeading(doc ast.Node, src []byte) string {
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok && h.Level == 1 {
			return headingText(h, src)
		}
	}
	return ""
}

// headingText collects the literal text of a heading's children.
func headingText(h *ast.Heading, src []byte) string {
	var b strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
		}
	}
	return strings.TrimSpace(b.String())
}

// nodeText returns the raw source lines spanned by a block node.
func nodeText(node ast.Node, src []byte) string {
	var b strings.Builder
	lines := node.Lines()
	for i := range lines.Len() {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	// Container blocks (lists, quotes) keep their lines on children.
	if lines.Len() == 0 {
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			b.WriteString(nodeText(c, src))
		}
	}
	return b.String()
}
