package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/hyperifyio/gobundle/internal/fetch"
	"github.com/hyperifyio/gobundle/internal/htmltree"
	"github.com/hyperifyio/gobundle/internal/pathresolver"
)

// ImportTree describes one resolved document and its direct import edges in
// document order. The analyzer owns the parsed documents; the bundler
// consumes each tree exactly once, top-down.
type ImportTree struct {
	Href     string
	Document *html.Node
	Imports  []*ImportEdge
}

// ImportEdge is one reference from a document to another document to be
// merged. An empty Href marks a previously resolved duplicate: the target
// was already flattened elsewhere in the graph and must not be included
// again. Tree is nil for duplicate and excluded edges. Site is the live
// <link rel="import"> element inside the parent document.
type ImportEdge struct {
	Href string
	Tree *ImportTree
	Site *html.Node
}

// Analyzer builds import trees by fetching and parsing documents through
// the loader. Excluded, when set, stops recursion into matching hrefs; the
// edge keeps its href so the bundler can apply its own policy.
type Analyzer struct {
	Loader   *fetch.Client
	Excluded func(href string) bool
}

// MetadataTree fetches rootURL and every transitively imported document,
// returning the ordered import tree. Each distinct href is resolved once;
// later sightings become duplicate edges, which also terminates import
// cycles.
func (a *Analyzer) MetadataTree(ctx context.Context, rootURL string) (*ImportTree, error) {
	seen := map[string]bool{}
	return a.load(ctx, rootURL, seen)
}

// MetadataTreeFromDocument builds the import tree for an already-parsed
// root document, letting the caller mutate the root (for example to
// prepend extra import links) before analysis.
func (a *Analyzer) MetadataTreeFromDocument(ctx context.Context, href string, doc *html.Node) (*ImportTree, error) {
	seen := map[string]bool{href: true}
	return a.fromDocument(ctx, href, doc, seen)
}

func (a *Analyzer) load(ctx context.Context, href string, seen map[string]bool) (*ImportTree, error) {
	seen[href] = true
	log.Debug().Str("url", href).Msg("loading document")

	body, ct, err := a.Loader.Get(ctx, href)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", href, err)
	}
	doc, err := htmltree.ParseWithContentType(body, ct)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", href, err)
	}
	return a.fromDocument(ctx, href, doc, seen)
}

func (a *Analyzer) fromDocument(ctx context.Context, href string, doc *html.Node, seen map[string]bool) (*ImportTree, error) {
	tree := &ImportTree{Href: href, Document: doc}
	for _, link := range importLinks(doc) {
		raw := htmltree.Attr(link, "href")
		if raw == "" {
			continue
		}
		abs, err := pathresolver.Resolve(href, raw)
		if err != nil {
			return nil, fmt.Errorf("resolve %q against %s: %w", raw, href, err)
		}
		edge := &ImportEdge{Site: link}
		switch {
		case seen[abs]:
			// duplicate: leave Href empty
		case a.Excluded != nil && a.Excluded(abs):
			edge.Href = abs
		default:
			edge.Href = abs
			sub, err := a.load(ctx, abs, seen)
			if err != nil {
				return nil, err
			}
			edge.Tree = sub
		}
		tree.Imports = append(tree.Imports, edge)
	}
	return tree, nil
}

// GetDependencies returns the transitive import hrefs reachable from url,
// in first-seen depth-first order, excluding url itself.
func (a *Analyzer) GetDependencies(ctx context.Context, url string) ([]string, error) {
	tree, err := a.MetadataTree(ctx, url)
	if err != nil {
		return nil, err
	}
	var deps []string
	var walk func(t *ImportTree)
	walk = func(t *ImportTree) {
		for _, e := range t.Imports {
			if e.Href == "" {
				continue
			}
			deps = append(deps, e.Href)
			if e.Tree != nil {
				walk(e.Tree)
			}
		}
	}
	walk(tree)
	return deps, nil
}

// importLinks returns every <link rel="import"> under doc in document
// order, skipping the CSS-import styling convention which is not a
// document import.
func importLinks(doc *html.Node) []*html.Node {
	return htmltree.FindAll(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || !strings.EqualFold(n.Data, "link") {
			return false
		}
		if !strings.EqualFold(htmltree.Attr(n, "rel"), "import") {
			return false
		}
		return !strings.EqualFold(htmltree.Attr(n, "type"), "css")
	})
}
