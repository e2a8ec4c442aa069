package bundler

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hyperifyio/gobundle/internal/htmltree"
)

const licenseMarker = "@license"

// commentMap keys comment nodes by their text, preserving first-insertion
// order. Later duplicates are discarded, never stored.
type commentMap struct {
	order []string
	nodes map[string]*html.Node
}

func newCommentMap() *commentMap {
	return &commentMap{nodes: map[string]*html.Node{}}
}

// set records node under text unless text was already seen.
func (m *commentMap) set(text string, node *html.Node) {
	if _, ok := m.nodes[text]; ok {
		return
	}
	m.order = append(m.order, text)
	m.nodes[text] = node
}

func (m *commentMap) get(text string) *html.Node { return m.nodes[text] }

// keys returns comment texts in first-insertion order.
func (m *commentMap) keys() []string { return m.order }

func isLicenseComment(text string) bool {
	return strings.Contains(text, licenseMarker)
}

// stripAndDedupeComments removes every comment in the document, then
// reinserts one copy of each distinct license comment at the top of <head>
// in first-seen order. Non-license comments are dropped permanently.
func stripAndDedupeComments(root *html.Node) {
	cm := newCommentMap()
	for _, c := range htmltree.CommentNodes(root) {
		cm.set(c.Data, c)
		htmltree.Remove(c)
	}
	head := htmltree.FindFirst(root, "head")
	if head == nil {
		return
	}
	keys := cm.keys()
	// Prepend in reverse so first-seen licenses end up first.
	for i := len(keys) - 1; i >= 0; i-- {
		if !isLicenseComment(keys[i]) {
			continue
		}
		htmltree.Prepend(head, cm.get(keys[i]))
	}
}
