package bundler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperifyio/gobundle/internal/fetch"
	"github.com/hyperifyio/gobundle/internal/htmltree"
)

func TestInlineScripts(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"x.js": "console.log(1)",
	})
	doc, _ := htmltree.Parse([]byte(`<html><head></head><body>
<script src="x.js"></script>
<script src="https://cdn.test/ext.js"></script>
</body></html>`))

	in := &inliner{loader: &fetch.Client{MaxAttempts: 1}, m: emptyMatcher(t)}
	if err := in.inlineScripts(context.Background(), doc, filepath.Join(dir, "index.html")); err != nil {
		t.Fatalf("inline scripts: %v", err)
	}
	out, _ := htmltree.Serialize(doc)
	if !strings.Contains(out, "<script>console.log(1)</script>") {
		t.Fatalf("local script not inlined: %s", out)
	}
	if !strings.Contains(out, `src="https://cdn.test/ext.js"`) {
		t.Fatalf("remote script must stay external: %s", out)
	}
}

func TestInlineScripts_EmptyBodyLeftExternal(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"empty.js": "",
	})
	doc, _ := htmltree.Parse([]byte(`<html><body><script src="empty.js"></script></body></html>`))

	in := &inliner{loader: &fetch.Client{MaxAttempts: 1}, m: emptyMatcher(t)}
	if err := in.inlineScripts(context.Background(), doc, filepath.Join(dir, "index.html")); err != nil {
		t.Fatalf("inline scripts: %v", err)
	}
	out, _ := htmltree.Serialize(doc)
	if !strings.Contains(out, `src="empty.js"`) {
		t.Fatalf("empty fetch must leave the reference external: %s", out)
	}
}

func TestInlineScripts_FetchErrorFailsStage(t *testing.T) {
	dir := t.TempDir()
	doc, _ := htmltree.Parse([]byte(`<html><body><script src="missing.js"></script></body></html>`))

	in := &inliner{loader: &fetch.Client{MaxAttempts: 1}, m: emptyMatcher(t)}
	if err := in.inlineScripts(context.Background(), doc, filepath.Join(dir, "index.html")); err == nil {
		t.Fatalf("expected stage failure for missing script")
	}
}

func TestInlineScripts_EscapesCloser(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"x.js": `var s = "</script>";`,
	})
	doc, _ := htmltree.Parse([]byte(`<html><body><script src="x.js"></script></body></html>`))

	in := &inliner{loader: &fetch.Client{MaxAttempts: 1}, m: emptyMatcher(t)}
	if err := in.inlineScripts(context.Background(), doc, filepath.Join(dir, "index.html")); err != nil {
		t.Fatalf("inline scripts: %v", err)
	}
	script := htmltree.FindFirst(doc, "script")
	if strings.Contains(htmltree.Text(script), "</script>") {
		t.Fatalf("script closer must be escaped: %q", htmltree.Text(script))
	}
}

func TestInlineScripts_AllFetchesJoin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript")
		_, _ = w.Write([]byte("fetched()"))
	}))
	defer srv.Close()

	// Absolute URLs stay external by policy; the redirect maps a local
	// prefix onto the test server instead.
	in := &inliner{
		loader: &fetch.Client{MaxAttempts: 1, Redirects: []fetch.Redirect{{Prefix: "local/", Replacement: srv.URL + "/"}}},
		m:      emptyMatcher(t),
	}
	doc, _ := htmltree.Parse([]byte(`<html><body>
<script src="local/a.js"></script>
<script src="local/b.js"></script>
</body></html>`))

	if err := in.inlineScripts(context.Background(), doc, "index.html"); err != nil {
		t.Fatalf("inline scripts: %v", err)
	}
	out, _ := htmltree.Serialize(doc)
	if strings.Count(out, "fetched()") != 2 {
		t.Fatalf("both scripts must be inlined: %s", out)
	}
}

func TestInlineCSS_ReplacesLinkWithStyle(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"css/main.css": ".a { background: url('img/bg.png'); }",
	})
	doc, _ := htmltree.Parse([]byte(`<html><head>
<link rel="stylesheet" href="css/main.css" media="screen">
</head><body></body></html>`))

	in := &inliner{loader: &fetch.Client{MaxAttempts: 1}, m: emptyMatcher(t)}
	if err := in.inlineCSS(context.Background(), doc, filepath.Join(dir, "index.html")); err != nil {
		t.Fatalf("inline css: %v", err)
	}
	out, _ := htmltree.Serialize(doc)
	if strings.Contains(out, "<link") {
		t.Fatalf("stylesheet link must be replaced: %s", out)
	}
	if !strings.Contains(out, "@media screen {") {
		t.Fatalf("media attribute must wrap the inlined sheet: %s", out)
	}
	if !strings.Contains(out, `url("css/img/bg.png")`) {
		t.Fatalf("internal css url must be rewritten: %s", out)
	}
}

func TestInlineCSS_ModuleStyleRelocated(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"mod.css": ".x { color: blue; }",
	})
	doc, _ := htmltree.Parse([]byte(`<html><body>
<dom-module id="x-card">
<link rel="import" type="css" href="mod.css">
<template><p>slot</p></template>
</dom-module>
</body></html>`))

	in := &inliner{loader: &fetch.Client{MaxAttempts: 1}, m: emptyMatcher(t)}
	if err := in.inlineCSS(context.Background(), doc, filepath.Join(dir, "index.html")); err != nil {
		t.Fatalf("inline css: %v", err)
	}
	out, _ := htmltree.Serialize(doc)
	if strings.Contains(out, "<link") {
		t.Fatalf("css import link must be removed: %s", out)
	}
	tmpl := htmltree.FindFirst(doc, "template")
	tmplOut, _ := htmltree.Serialize(tmpl)
	if !strings.Contains(tmplOut, ".x { color: blue; }") {
		t.Fatalf("style must land inside the module template: %s", out)
	}
	if strings.Index(tmplOut, "color: blue") > strings.Index(tmplOut, "slot") {
		t.Fatalf("style must be inserted at the top of the template: %s", tmplOut)
	}
}

func TestInlineCSS_ModuleTemplateCreatedOnDemand(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"mod.css": ".y { color: green; }",
	})
	doc, _ := htmltree.Parse([]byte(`<html><body>
<dom-module id="x-plain"><link rel="import" type="css" href="mod.css"></dom-module>
</body></html>`))

	in := &inliner{loader: &fetch.Client{MaxAttempts: 1}, m: emptyMatcher(t)}
	if err := in.inlineCSS(context.Background(), doc, filepath.Join(dir, "index.html")); err != nil {
		t.Fatalf("inline css: %v", err)
	}
	tmpl := htmltree.FindFirst(doc, "template")
	if tmpl == nil {
		t.Fatalf("template must be created on demand")
	}
	tmplOut, _ := htmltree.Serialize(tmpl)
	if !strings.Contains(tmplOut, "color: green") {
		t.Fatalf("style missing from created template: %s", tmplOut)
	}
}

func TestInlineCSS_ExcludedLinkUntouched(t *testing.T) {
	dir := t.TempDir()
	doc, _ := htmltree.Parse([]byte(`<html><head>
<link rel="stylesheet" href="theme/skin.css">
</head><body></body></html>`))

	m, err := newMatcher([]string{"theme/"}, nil)
	if err != nil {
		t.Fatalf("matcher: %v", err)
	}
	in := &inliner{loader: &fetch.Client{MaxAttempts: 1}, m: m}
	if err := in.inlineCSS(context.Background(), doc, filepath.Join(dir, "index.html")); err != nil {
		t.Fatalf("inline css: %v", err)
	}
	out, _ := htmltree.Serialize(doc)
	if !strings.Contains(out, `href="theme/skin.css"`) {
		t.Fatalf("excluded stylesheet must stay external: %s", out)
	}
}
