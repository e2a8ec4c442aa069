package bundler

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/hyperifyio/gobundle/internal/analyzer"
	"github.com/hyperifyio/gobundle/internal/htmltree"
	"github.com/hyperifyio/gobundle/internal/pathresolver"
)

// ErrLegacyDialect is returned when a document still uses the legacy
// <polymer-element> dialect, which cannot be flattened.
var ErrLegacyDialect = errors.New("legacy <polymer-element> markup is not supported")

// inlinedSrcAttr marks an inline script that records the external source it
// was inlined from. Flattening normalizes such scripts back to external
// form so the inlining pass treats every external reference uniformly.
const inlinedSrcAttr = "bundler-inlined"

// engine is the recursive flattening core. It consumes an analyzer import
// tree depth-first, pre-order, and merges every resolved import into one
// document.
type engine struct {
	m *matcher
}

// flatten merges tree and all of its resolved imports into tree's own
// document root and returns it. The output script/style order is exactly
// the pre-order traversal of the import graph.
func (e *engine) flatten(tree *analyzer.ImportTree, isRoot bool) (*html.Node, error) {
	doc := tree.Document

	if legacy := htmltree.FindFirst(doc, "polymer-element"); legacy != nil {
		return nil, fmt.Errorf("%s: %w", tree.Href, ErrLegacyDialect)
	}

	normalizeInlinedScripts(doc)

	body := htmltree.FindFirst(doc, "body")
	head := htmltree.FindFirst(doc, "head")

	// Relocation target: hidden container for the root document, transient
	// fragment otherwise. Import side-effects must not visually render.
	var target *html.Node
	if isRoot {
		target = htmltree.HiddenDiv()
		if body != nil {
			htmltree.Prepend(body, target)
		}
	} else {
		target = htmltree.NewFragment()
	}

	if head != nil {
		moveHeadScriptsAndLinks(head, target)
	}
	if !isRoot && body != nil {
		// Reattach relocated head content at the top of the body so the
		// merge step keeps it ahead of the document's own markup.
		for target.LastChild != nil {
			htmltree.Prepend(body, target.LastChild)
		}
	}

	for _, edge := range tree.Imports {
		site := edge.Site
		switch {
		case isDuplicate(edge) || e.m.strippedHref(edge.Href):
			htmltree.RemoveWithTrailingBlank(site)
		case e.m.excludedHref(edge.Href):
			// stays as an unresolved import link
		case htmltree.InTemplate(site):
			// templated markup is inert and never relocated
		case edge.Tree == nil:
			// analyzer declined to resolve it; nothing to merge
		default:
			merged, err := e.flatten(edge.Tree, false)
			if err != nil {
				return nil, err
			}
			pathresolver.ResolvePaths(merged, edge.Tree.Href, tree.Href)
			frag := mergeFragment(merged)
			if isRoot && !insideHiddenContainer(site) {
				wrapper := htmltree.HiddenDiv()
				htmltree.InsertBefore(site.Parent, site, wrapper)
				htmltree.Append(wrapper, site)
			}
			htmltree.ReplaceWithChildren(site, frag)
		}
	}

	if isRoot && target.FirstChild == nil {
		htmltree.Remove(target)
	}
	return doc, nil
}

// normalizeInlinedScripts converts inline scripts that record their
// original external source back to external-reference form.
func normalizeInlinedScripts(doc *html.Node) {
	for _, s := range htmltree.Elements(doc, "script") {
		src := htmltree.Attr(s, inlinedSrcAttr)
		if src == "" {
			continue
		}
		htmltree.RemoveAttr(s, inlinedSrcAttr)
		htmltree.SetAttr(s, "src", src)
		for s.FirstChild != nil {
			s.RemoveChild(s.FirstChild)
		}
	}
}

// moveHeadScriptsAndLinks relocates every <script> and <link> child of head
// into target, order preserved. CSS-convention imports (<link rel="import"
// type="css">) stay where they are; the stylesheet pass owns those.
func moveHeadScriptsAndLinks(head, target *html.Node) {
	var moving []*html.Node
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch {
		case strings.EqualFold(c.Data, "script"):
			moving = append(moving, c)
		case strings.EqualFold(c.Data, "link") && !isCSSImportLink(c):
			moving = append(moving, c)
		}
	}
	for _, n := range moving {
		next := n.NextSibling
		htmltree.Append(target, n)
		if htmltree.IsBlankText(next) {
			htmltree.Remove(next)
		}
	}
}

func isCSSImportLink(n *html.Node) bool {
	return strings.EqualFold(htmltree.Attr(n, "rel"), "import") &&
		strings.EqualFold(htmltree.Attr(n, "type"), "css")
}

// mergeFragment collapses a flattened document into the fragment that
// replaces its import site: carried-forward license comments first, then
// head children, then body children. License comments that live outside
// head and body would otherwise be lost when those wrappers are discarded.
func mergeFragment(doc *html.Node) *html.Node {
	frag := htmltree.NewFragment()
	for _, c := range strandedLicenseComments(doc) {
		htmltree.Append(frag, c)
	}
	if head := htmltree.FindFirst(doc, "head"); head != nil {
		for head.FirstChild != nil {
			htmltree.Append(frag, head.FirstChild)
		}
	}
	if body := htmltree.FindFirst(doc, "body"); body != nil {
		for body.FirstChild != nil {
			htmltree.Append(frag, body.FirstChild)
		}
	}
	return frag
}

// strandedLicenseComments collects license comments sitting at the top
// level of the document or directly under <html>, detached.
func strandedLicenseComments(doc *html.Node) []*html.Node {
	var out []*html.Node
	collect := func(parent *html.Node) {
		c := parent.FirstChild
		for c != nil {
			next := c.NextSibling
			if c.Type == html.CommentNode && isLicenseComment(c.Data) {
				out = append(out, htmltree.Detach(c))
			}
			c = next
		}
	}
	collect(doc)
	if root := htmltree.FindFirst(doc, "html"); root != nil {
		collect(root)
	}
	return out
}

// insideHiddenContainer reports whether n is already a descendant of a
// bundler-made hidden container.
func insideHiddenContainer(n *html.Node) bool {
	return htmltree.HasAncestor(n, htmltree.IsHiddenDiv)
}
