package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/gobundle/internal/cache"
)

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	c := &Client{UserAgent: "gobundle-test", MaxAttempts: 2, PerRequestTimeout: 2 * time.Second}
	body, ct, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct == "" || string(body) == "" {
		t.Fatalf("expected content type and body")
	}
}

func TestGet_RetryOn5xx(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(502)
			return
		}
		w.Header().Set("Content-Type", "text/javascript")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("console.log(1)"))
	}))
	defer srv.Close()

	c := &Client{UserAgent: "gobundle-test", MaxAttempts: 2, PerRequestTimeout: 2 * time.Second}
	_, _, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
}

func TestGet_Conditional304_UsesCache(t *testing.T) {
	// First return 200 with ETag. Subsequent requests that include If-None-Match should get 304.
	var calls int
	etag := `"abc123"`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "text/css")
		if calls == 1 {
			w.Header().Set("ETag", etag)
			_, _ = w.Write([]byte("body{margin:0}"))
			return
		}
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte("unexpected"))
	}))
	defer srv.Close()

	tmp := t.TempDir()
	c := &Client{UserAgent: "gobundle-test", MaxAttempts: 1, PerRequestTimeout: 2 * time.Second, Cache: &cache.Cache{Dir: tmp}}

	b1, _, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("first get error: %v", err)
	}
	if string(b1) != "body{margin:0}" {
		t.Fatalf("unexpected body1: %q", string(b1))
	}

	b2, _, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("second get error: %v", err)
	}
	if string(b2) != "body{margin:0}" {
		t.Fatalf("expected cached body, got %q", string(b2))
	}
}

func TestGet_LocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "button.html")
	if err := os.WriteFile(path, []byte("<div>button</div>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c := &Client{MaxAttempts: 1}
	body, ct, err := c.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("local get: %v", err)
	}
	if string(body) != "<div>button</div>" {
		t.Fatalf("unexpected body: %q", string(body))
	}
	if !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type: %q", ct)
	}

	// Same file via file:// URL
	body, _, err = c.Get(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("file url get: %v", err)
	}
	if string(body) != "<div>button</div>" {
		t.Fatalf("unexpected file url body: %q", string(body))
	}
}

func TestGet_LocalFileMissing(t *testing.T) {
	c := &Client{MaxAttempts: 1}
	if _, _, err := c.Get(context.Background(), filepath.Join(t.TempDir(), "missing.html")); err == nil {
		t.Fatalf("expected error for missing local file")
	}
}

func TestGet_RedirectPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("redirected"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second,
		Redirects: []Redirect{{Prefix: "http://cdn.test/", Replacement: srv.URL + "/"}}}
	body, _, err := c.Get(context.Background(), "http://cdn.test/lib/widget.html")
	if err != nil {
		t.Fatalf("redirected get: %v", err)
	}
	if string(body) != "redirected" {
		t.Fatalf("unexpected body: %q", string(body))
	}
}

func TestParseRedirect(t *testing.T) {
	r, err := ParseRedirect("http://cdn.test/|/srv/www/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.Prefix != "http://cdn.test/" || r.Replacement != "/srv/www/" {
		t.Fatalf("unexpected redirect: %+v", r)
	}
	if _, err := ParseRedirect("no-separator"); err == nil {
		t.Fatalf("expected error for malformed redirect")
	}
}

func TestGet_RedirectLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/next", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second, RedirectMaxHops: 1}
	_, _, err := c.Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatalf("expected redirect limit error")
	}
}

func TestGet_MaxConcurrent(t *testing.T) {
	var inFlight int32
	var maxObserved int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		curr := atomic.AddInt32(&inFlight, 1)
		for {
			prev := atomic.LoadInt32(&maxObserved)
			if curr > prev {
				if atomic.CompareAndSwapInt32(&maxObserved, prev, curr) {
					break
				}
				continue
			}
			break
		}
		time.Sleep(150 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
		atomic.AddInt32(&inFlight, -1)
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second, MaxConcurrent: 2}

	var wg sync.WaitGroup
	start := make(chan struct{})
	num := 6
	wg.Add(num)
	for i := 0; i < num; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, _, _ = c.Get(context.Background(), srv.URL)
		}()
	}
	close(start)
	wg.Wait()

	if maxObserved > 2 {
		t.Fatalf("expected max concurrency <= 2, got %d", maxObserved)
	}
}
