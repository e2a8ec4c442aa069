package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	apppkg "github.com/hyperifyio/gobundle/internal/app"
)

// Smoke test: ensure main.run bundles a local document with minimal config.
func TestRun_WritesBundledOutput(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, "index.html")
	imported := filepath.Join(dir, "part.html")
	out := filepath.Join(dir, "out.html")
	if err := os.WriteFile(index, []byte(`<html><head><link rel="import" href="part.html"></head><body></body></html>`), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(imported, []byte(`<html><head></head><body><p>merged</p></body></html>`), 0o644); err != nil {
		t.Fatalf("write import: %v", err)
	}
	cfg := apppkg.Config{
		Target:     index,
		OutputPath: out,
	}
	if err := run(cfg); err != nil {
		t.Fatalf("run error: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil || len(b) == 0 {
		t.Fatalf("expected output file, err=%v", err)
	}
	if !strings.Contains(string(b), "merged") {
		t.Fatalf("expected imported content in bundle: %s", string(b))
	}
}

func TestRun_MissingTarget_Error(t *testing.T) {
	if err := run(apppkg.Config{}); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected split: %v", got)
	}
	if splitList("  ") != nil {
		t.Fatalf("blank input must yield nil")
	}
}
