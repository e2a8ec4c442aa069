package bundler

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/hyperifyio/gobundle/internal/analyzer"
	"github.com/hyperifyio/gobundle/internal/fetch"
	"github.com/hyperifyio/gobundle/internal/htmltree"
	"github.com/hyperifyio/gobundle/internal/pathresolver"
)

// Bundler flattens a tree of imported HTML documents into one
// self-contained document. Stage order is fixed: flatten, inline scripts,
// inline stylesheets, strip comments, serialize; a stage failure aborts the
// run with no partial output.
type Bundler struct {
	cfg Config
	// loader serves every document and resource fetch of the run.
	loader *fetch.Client
	// depLoader backs the implicit-strip dependency scan. It ignores
	// excludes by construction and, depending on configuration, redirects.
	depLoader *fetch.Client
}

// New assembles a bundler around the given loaders. depLoader may be nil,
// in which case loader also serves the implicit-strip scan.
func New(cfg Config, loader, depLoader *fetch.Client) *Bundler {
	if depLoader == nil {
		depLoader = loader
	}
	return &Bundler{cfg: cfg, loader: loader, depLoader: depLoader}
}

// Process bundles the document at target and returns the serialized result.
func (b *Bundler) Process(ctx context.Context, target string) (string, error) {
	stripExcludes := b.cfg.StripExcludes
	if b.cfg.ImplicitStrip {
		extra, err := b.implicitStripExcludes(ctx, target)
		if err != nil {
			return "", err
		}
		stripExcludes = append(append([]string{}, stripExcludes...), extra...)
	}

	m, err := newMatcher(b.cfg.Excludes, stripExcludes)
	if err != nil {
		return "", err
	}

	body, ct, err := b.loader.Get(ctx, target)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", target, err)
	}
	root, err := htmltree.ParseWithContentType(body, ct)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", target, err)
	}

	b.prependAddedImports(root, target)

	a := &analyzer.Analyzer{Loader: b.loader, Excluded: m.excludedHref}
	tree, err := a.MetadataTreeFromDocument(ctx, target, root)
	if err != nil {
		return "", err
	}

	log.Debug().Str("target", target).Msg("flattening")
	e := &engine{m: m}
	doc, err := e.flatten(tree, true)
	if err != nil {
		return "", err
	}

	in := &inliner{loader: b.loader, m: m}
	if b.cfg.InlineScripts {
		log.Debug().Msg("inlining scripts")
		if err := in.inlineScripts(ctx, doc, target); err != nil {
			return "", err
		}
	}
	if b.cfg.InlineCSS {
		log.Debug().Msg("inlining stylesheets")
		if err := in.inlineCSS(ctx, doc, target); err != nil {
			return "", err
		}
	}
	// Charset meta goes in before comment stripping so promoted license
	// comments land above it, at the very top of head.
	ensureCharsetMeta(doc)

	if b.cfg.StripComments {
		log.Debug().Msg("stripping comments")
		stripAndDedupeComments(doc)
	}

	return htmltree.Serialize(doc)
}

// implicitStripExcludes computes the transitive dependencies of each
// excluded document so they can be stripped rather than left dangling.
// Only excludes naming a concrete document take part; pattern-style
// excludes have nothing to scan.
func (b *Bundler) implicitStripExcludes(ctx context.Context, target string) ([]string, error) {
	var out []string
	scan := &analyzer.Analyzer{Loader: b.depLoader}
	for _, excl := range b.cfg.Excludes {
		if !isConcreteDocument(excl) {
			continue
		}
		abs, err := pathresolver.Resolve(target, excl)
		if err != nil {
			return nil, fmt.Errorf("implicit strip for %s: %w", excl, err)
		}
		deps, err := scan.GetDependencies(ctx, abs)
		if err != nil {
			return nil, fmt.Errorf("implicit strip for %s: %w", excl, err)
		}
		for _, d := range deps {
			out = append(out, regexp.QuoteMeta(d))
		}
	}
	return out, nil
}

// isConcreteDocument reports whether an exclude names one document rather
// than a pattern. Excludes are regexp fragments, so anything carrying a
// metacharacter beyond the ubiquitous "." describes a family of hrefs and
// has no single dependency tree to scan.
func isConcreteDocument(excl string) bool {
	return strings.HasSuffix(excl, ".html") && !strings.ContainsAny(excl, `\^$*+?()[]{}|`)
}

// prependAddedImports inserts configured extra imports as links at the top
// of the root document's head, preserving their given order.
func (b *Bundler) prependAddedImports(root *html.Node, target string) {
	if len(b.cfg.AddedImports) == 0 {
		return
	}
	head := htmltree.FindFirst(root, "head")
	if head == nil {
		return
	}
	for i := len(b.cfg.AddedImports) - 1; i >= 0; i-- {
		link := htmltree.NewElement("link",
			html.Attribute{Key: "rel", Val: "import"},
			html.Attribute{Key: "href", Val: b.cfg.AddedImports[i]})
		htmltree.Prepend(head, link)
	}
}

// ensureCharsetMeta guarantees exactly one <meta charset="UTF-8"> in
// <head>, ahead of everything but later-promoted license comments.
func ensureCharsetMeta(doc *html.Node) {
	head := htmltree.FindFirst(doc, "head")
	if head == nil {
		return
	}
	for _, meta := range htmltree.Elements(head, "meta") {
		if htmltree.Attr(meta, "charset") != "" {
			return
		}
	}
	htmltree.Prepend(head, htmltree.NewElement("meta",
		html.Attribute{Key: "charset", Val: "UTF-8"}))
}
