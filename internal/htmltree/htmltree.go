package htmltree

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// MarkerAttr marks elements the bundler created or relocated, so repeated
// runs and downstream tooling can recognize them.
const MarkerAttr = "by-gobundle"

// Parse parses a UTF-8 HTML document.
func Parse(b []byte) (*html.Node, error) {
	return html.Parse(bytes.NewReader(b))
}

// ParseWithContentType decodes b according to the Content-Type header (BOM
// and meta sniffing included) before parsing, so documents served in legacy
// encodings come out as a correct UTF-8 tree.
func ParseWithContentType(b []byte, contentType string) (*html.Node, error) {
	r, err := charset.NewReader(bytes.NewReader(b), contentType)
	if err != nil {
		return nil, err
	}
	return html.Parse(r)
}

// Serialize renders the tree rooted at n.
func Serialize(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// NewElement constructs a detached element node.
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// NewFragment constructs a detached container whose children can later be
// spliced into a document with ReplaceWithChildren. The container itself
// never enters the output tree.
func NewFragment() *html.Node {
	return &html.Node{Type: html.DocumentNode}
}

// NewText constructs a detached text node.
func NewText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// NewComment constructs a detached comment node.
func NewComment(text string) *html.Node {
	return &html.Node{Type: html.CommentNode, Data: text}
}

// HiddenDiv constructs the hidden container that receives relocated markup.
func HiddenDiv() *html.Node {
	return NewElement("div",
		html.Attribute{Key: "hidden"},
		html.Attribute{Key: MarkerAttr})
}

// IsHiddenDiv reports whether n is a container produced by HiddenDiv.
func IsHiddenDiv(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == "div" &&
		HasAttr(n, "hidden") && HasAttr(n, MarkerAttr)
}

// FindFirst returns the first element with the given tag in depth-first
// order, or nil.
func FindFirst(n *html.Node, tag string) *html.Node {
	var res *html.Node
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if res != nil {
			return
		}
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			res = cur
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
			if res != nil {
				return
			}
		}
	}
	dfs(n)
	return res
}

// FindAll returns every node satisfying pred, in depth-first order.
func FindAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if pred(cur) {
			out = append(out, cur)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
		}
	}
	dfs(n)
	return out
}

// Elements returns every element with the given tag, in depth-first order.
func Elements(n *html.Node, tag string) []*html.Node {
	return FindAll(n, func(c *html.Node) bool {
		return c.Type == html.ElementNode && strings.EqualFold(c.Data, tag)
	})
}

// CommentNodes returns every comment node, in depth-first order.
func CommentNodes(n *html.Node) []*html.Node {
	return FindAll(n, func(c *html.Node) bool { return c.Type == html.CommentNode })
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether the named attribute is present, regardless of value.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}

// SetAttr sets or replaces the named attribute.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes the named attribute if present.
func RemoveAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Text returns the concatenated text children of n.
func Text(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// SetText replaces all children of n with a single text node.
func SetText(n *html.Node, text string) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	n.AppendChild(NewText(text))
}

// Detach removes n from its parent, if any, and returns it.
func Detach(n *html.Node) *html.Node {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	return n
}

// Append moves child to the end of parent's child list.
func Append(parent, child *html.Node) {
	parent.AppendChild(Detach(child))
}

// Prepend moves child to the front of parent's child list.
func Prepend(parent, child *html.Node) {
	Detach(child)
	if parent.FirstChild != nil {
		parent.InsertBefore(child, parent.FirstChild)
		return
	}
	parent.AppendChild(child)
}

// InsertBefore moves child into parent immediately before ref. A nil ref
// appends.
func InsertBefore(parent, ref, child *html.Node) {
	Detach(child)
	if ref == nil {
		parent.AppendChild(child)
		return
	}
	parent.InsertBefore(child, ref)
}

// Remove detaches n from the tree.
func Remove(n *html.Node) {
	Detach(n)
}

// RemoveWithTrailingBlank detaches n and, when the node immediately after it
// is whitespace-only text, detaches that too. Serialized output stays free
// of stranded blank lines.
func RemoveWithTrailingBlank(n *html.Node) {
	next := n.NextSibling
	Detach(n)
	if IsBlankText(next) {
		Detach(next)
	}
}

// ReplaceWithChildren substitutes node with the children of container,
// preserving their order, then discards node. RemoveWithTrailingBlank
// semantics apply to the replaced node's trailing whitespace.
func ReplaceWithChildren(node, container *html.Node) {
	parent := node.Parent
	if parent == nil {
		return
	}
	for container.FirstChild != nil {
		c := container.FirstChild
		container.RemoveChild(c)
		parent.InsertBefore(c, node)
	}
	RemoveWithTrailingBlank(node)
}

// IsBlankText reports whether n is a whitespace-only text node.
func IsBlankText(n *html.Node) bool {
	return n != nil && n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}

// InTemplate reports whether n lives inside a <template> element's inert
// content.
func InTemplate(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && strings.EqualFold(p.Data, "template") {
			return true
		}
	}
	return false
}

// HasAncestor reports whether any ancestor of n satisfies pred.
func HasAncestor(n *html.Node, pred func(*html.Node) bool) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if pred(p) {
			return true
		}
	}
	return false
}

// ClosestAncestor returns the nearest ancestor satisfying pred, or nil.
func ClosestAncestor(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if pred(p) {
			return p
		}
	}
	return nil
}
