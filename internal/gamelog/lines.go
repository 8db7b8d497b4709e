package gamelog

import (
	"fmt"
	"iter"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Line is one row of the in-game log: the body elements between two
// line-break markers.
type Line []*html.Node

// At returns the element at index i, counting from the end when i is
// negative. ok is false when the index is absent.
func (l Line) At(i int) (*html.Node, bool) {
	if i < 0 {
		i += len(l)
	}
	if i < 0 || i >= len(l) {
		return nil, false
	}
	return l[i], true
}

func (l Line) String() string {
	parts := make([]string, len(l))
	for i, n := range l {
		var b strings.Builder
		_ = html.Render(&b, n)
		parts[i] = b.String()
	}
	return strings.Join(parts, " ")
}

// Lines parses the document and splits its body into lines. A frameset
// document has no body and yields no lines; any other document yields at
// least one. The returned sequence walks the parsed tree and can only be
// consumed once.
func Lines(text string) (iter.Seq[Line], error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidHTML
	}
	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHTML, err)
	}
	body := findElement(doc, atom.Body)
	consumed := false
	return func(yield func(Line) bool) {
		if body == nil || consumed {
			return
		}
		consumed = true
		var line Line
		for child := range elementChildren(body) {
			if first := firstElement(child); first != nil && first.DataAtom == atom.Br {
				child.RemoveChild(first)
				if !yield(line) {
					return
				}
				line = Line{child}
				continue
			}
			line = append(line, child)
		}
		yield(line)
	}, nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func elementChildren(n *html.Node) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			if c.Type == html.ElementNode && !yield(c) {
				return
			}
			c = next
		}
	}
}

func firstElement(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// leadingText is the text of n before its first child element.
func leadingText(n *html.Node) (string, bool) {
	var b strings.Builder
	found := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			break
		}
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			found = true
		}
	}
	return b.String(), found
}

// flatText is all text under n, in document order.
func flatText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
