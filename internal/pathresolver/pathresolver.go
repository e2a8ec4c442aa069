package pathresolver

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/hyperifyio/gobundle/internal/htmltree"
)

// Attributes that carry URLs and must be rebased when a document moves to a
// new base href.
var urlAttrs = []string{"href", "src", "action", "poster", "background"}

var (
	cssURLRe    = regexp.MustCompile(`url\(\s*['"]?([^)'"]+?)['"]?\s*\)`)
	cssImportRe = regexp.MustCompile(`@import\s+(['"])([^'"]+)(['"])`)
)

// Resolve joins ref against base per RFC 3986.
func Resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// Rewritable reports whether ref is the kind of reference that moves with
// its document. Absolute URLs, fragments, data/javascript/mailto URIs and
// binding expressions stay as written.
func Rewritable(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return false
	}
	lower := strings.ToLower(ref)
	for _, p := range []string{"data:", "javascript:", "mailto:", "about:"} {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	if strings.Contains(ref, "{{") || strings.Contains(ref, "[[") {
		return false
	}
	if u, err := url.Parse(ref); err != nil || u.IsAbs() {
		return false
	}
	return true
}

// Rebase rewrites a reference that was relative to fromHref so it resolves
// identically relative to toHref. When the two bases do not share an origin
// the absolute form is returned.
func Rebase(ref, fromHref, toHref string) string {
	if !Rewritable(ref) {
		return ref
	}
	abs, err := Resolve(fromHref, ref)
	if err != nil {
		return ref
	}
	return relativize(abs, toHref)
}

// relativize returns abs expressed relative to the directory of base when
// both share scheme and host, otherwise abs unchanged.
func relativize(abs, base string) string {
	au, err := url.Parse(abs)
	if err != nil {
		return abs
	}
	bu, err := url.Parse(base)
	if err != nil {
		return abs
	}
	if au.Scheme != bu.Scheme || au.Host != bu.Host {
		return abs
	}
	baseDir := path.Dir(bu.Path)
	rel, err := relPath(baseDir, au.Path)
	if err != nil {
		return abs
	}
	if au.RawQuery != "" {
		rel += "?" + au.RawQuery
	}
	if au.Fragment != "" {
		rel += "#" + au.Fragment
	}
	return rel
}

// relPath computes a slash-separated relative path from dir to target.
func relPath(dir, target string) (string, error) {
	dirParts := splitClean(dir)
	tgtParts := splitClean(path.Dir(target))
	common := 0
	for common < len(dirParts) && common < len(tgtParts) && dirParts[common] == tgtParts[common] {
		common++
	}
	var out []string
	for i := common; i < len(dirParts); i++ {
		out = append(out, "..")
	}
	out = append(out, tgtParts[common:]...)
	out = append(out, path.Base(target))
	return path.Join(out...), nil
}

func splitClean(p string) []string {
	p = path.Clean(p)
	var out []string
	for _, part := range strings.Split(p, "/") {
		if part != "" && part != "." {
			out = append(out, part)
		}
	}
	return out
}

// ResolvePaths rewrites every URL-bearing attribute, style attribute and
// <style> body under doc from being relative to docHref to being relative
// to importerHref. Called on each document before it is merged into its
// importer so URL correctness never depends on merge order.
func ResolvePaths(doc *html.Node, docHref, importerHref string) {
	if docHref == importerHref {
		return
	}
	nodes := htmltree.FindAll(doc, func(n *html.Node) bool { return n.Type == html.ElementNode })
	for _, n := range nodes {
		for _, key := range urlAttrs {
			if v := htmltree.Attr(n, key); v != "" && Rewritable(v) {
				htmltree.SetAttr(n, key, Rebase(v, docHref, importerHref))
			}
		}
		if v := htmltree.Attr(n, "style"); v != "" {
			htmltree.SetAttr(n, "style", RewriteCSSURLs(v, docHref, importerHref))
		}
		if strings.EqualFold(n.Data, "style") {
			if body := htmltree.Text(n); body != "" {
				htmltree.SetText(n, RewriteCSSURLs(body, docHref, importerHref))
			}
		}
	}
}

// RewriteCSSURLs rewrites url(...) and @import references inside a
// stylesheet that moves from cssHref to docHref.
func RewriteCSSURLs(css, cssHref, docHref string) string {
	css = cssURLRe.ReplaceAllStringFunc(css, func(m string) string {
		sub := cssURLRe.FindStringSubmatch(m)
		if len(sub) != 2 || !Rewritable(sub[1]) {
			return m
		}
		return "url(\"" + Rebase(sub[1], cssHref, docHref) + "\")"
	})
	css = cssImportRe.ReplaceAllStringFunc(css, func(m string) string {
		sub := cssImportRe.FindStringSubmatch(m)
		if len(sub) != 4 || !Rewritable(sub[2]) {
			return m
		}
		return "@import " + sub[1] + Rebase(sub[2], cssHref, docHref) + sub[3]
	})
	return css
}

// PathToURL converts a local filesystem path to a file URL. URLs pass
// through unchanged.
func PathToURL(p string) string {
	if u, err := url.Parse(p); err == nil && u.IsAbs() {
		return p
	}
	return "file://" + path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

// URLToPath converts a file URL back to a filesystem path. Other URLs pass
// through unchanged.
func URLToPath(rawURL string) string {
	if strings.HasPrefix(rawURL, "file://") {
		if u, err := url.Parse(rawURL); err == nil {
			return u.Path
		}
	}
	return rawURL
}
