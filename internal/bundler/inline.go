package bundler

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/gobundle/internal/fetch"
	"github.com/hyperifyio/gobundle/internal/htmltree"
	"github.com/hyperifyio/gobundle/internal/pathresolver"
)

// inliner replaces external resource references with their fetched content.
// Fetches within one pass run concurrently and the pass completes only once
// every fetch settles; one failed fetch fails the pass.
type inliner struct {
	loader *fetch.Client
	m      *matcher
}

type inlineJob struct {
	node *html.Node
	url  string
	body []byte
}

// inlineScripts rewrites every non-excluded script[src] under root into an
// inline script holding the fetched body. An empty fetched body leaves the
// reference external.
func (in *inliner) inlineScripts(ctx context.Context, root *html.Node, baseHref string) error {
	gq := goquery.NewDocumentFromNode(root)
	var jobs []*inlineJob
	gq.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		src, _ := s.Attr("src")
		abs, err := pathresolver.Resolve(baseHref, src)
		if err != nil {
			return
		}
		if in.m.excludedHref(src) || in.m.excludedHref(abs) {
			return
		}
		jobs = append(jobs, &inlineJob{node: n, url: abs})
	})

	if err := in.fetchAll(ctx, jobs, "script"); err != nil {
		return err
	}

	for _, j := range jobs {
		if len(j.body) == 0 {
			continue
		}
		htmltree.RemoveAttr(j.node, "src")
		htmltree.SetText(j.node, escapeScript(string(j.body)))
	}
	return nil
}

// inlineCSS rewrites every non-excluded stylesheet link under root. Plain
// stylesheet links are replaced in place by a <style> element. CSS-import
// links (the component styling convention) are instead relocated into the
// nearest enclosing dom-module's template content, because downstream
// tooling only recognizes styles inside that slot.
func (in *inliner) inlineCSS(ctx context.Context, root *html.Node, baseHref string) error {
	gq := goquery.NewDocumentFromNode(root)
	var jobs []*inlineJob
	gq.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		if !isStylesheetLink(n) && !isCSSImportLink(n) {
			return
		}
		href, _ := s.Attr("href")
		abs, err := pathresolver.Resolve(baseHref, href)
		if err != nil {
			return
		}
		if in.m.excludedHref(href) || in.m.excludedHref(abs) {
			return
		}
		jobs = append(jobs, &inlineJob{node: n, url: abs})
	})

	if err := in.fetchAll(ctx, jobs, "stylesheet"); err != nil {
		return err
	}

	for _, j := range jobs {
		if len(j.body) == 0 {
			continue
		}
		content := pathresolver.RewriteCSSURLs(string(j.body), j.url, baseHref)
		if media := htmltree.Attr(j.node, "media"); media != "" {
			content = "@media " + media + " {\n" + content + "\n}"
		}
		style := htmltree.NewElement("style")
		htmltree.SetText(style, content)

		if isCSSImportLink(j.node) {
			relocateModuleStyle(j.node, style)
			continue
		}
		htmltree.InsertBefore(j.node.Parent, j.node, style)
		htmltree.RemoveWithTrailingBlank(j.node)
	}
	return nil
}

// fetchAll loads every job body concurrently and joins. All fetches must
// settle; the first error aborts the pass.
func (in *inliner) fetchAll(ctx context.Context, jobs []*inlineJob, kind string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			body, _, err := in.loader.Get(ctx, j.url)
			if err != nil {
				return fmt.Errorf("inline %s %s: %w", kind, j.url, err)
			}
			if len(body) == 0 {
				log.Debug().Str("url", j.url).Msg("empty body, leaving reference external")
			}
			j.body = body
			return nil
		})
	}
	return g.Wait()
}

// relocateModuleStyle moves the inlined style into the nearest enclosing
// dom-module's template, creating the template when absent, and drops the
// link. Without an enclosing module the style replaces the link in place.
func relocateModuleStyle(link, style *html.Node) {
	module := htmltree.ClosestAncestor(link, func(n *html.Node) bool {
		return n.Type == html.ElementNode && strings.EqualFold(n.Data, "dom-module")
	})
	if module == nil {
		htmltree.InsertBefore(link.Parent, link, style)
		htmltree.RemoveWithTrailingBlank(link)
		return
	}
	tmpl := htmltree.FindFirst(module, "template")
	if tmpl == nil {
		tmpl = htmltree.NewElement("template")
		htmltree.Append(module, tmpl)
	}
	htmltree.Prepend(tmpl, style)
	htmltree.RemoveWithTrailingBlank(link)
}

func isStylesheetLink(n *html.Node) bool {
	return strings.EqualFold(htmltree.Attr(n, "rel"), "stylesheet")
}

// escapeScript keeps an inlined body from terminating its own script tag.
func escapeScript(s string) string {
	return strings.ReplaceAll(s, "</script", `<\/script`)
}
