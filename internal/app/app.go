package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gobundle/internal/bundler"
	"github.com/hyperifyio/gobundle/internal/cache"
	"github.com/hyperifyio/gobundle/internal/fetch"
)

// App wires the loader, cache and bundler for one run.
type App struct {
	cfg    Config
	target string
	b      *bundler.Bundler
}

func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	redirects := make([]fetch.Redirect, 0, len(cfg.Redirects))
	for _, s := range cfg.Redirects {
		r, err := fetch.ParseRedirect(s)
		if err != nil {
			return nil, err
		}
		redirects = append(redirects, r)
	}

	var diskCache *cache.Cache
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			_ = cache.ClearDir(cfg.CacheDir)
		}
		if cfg.CacheMaxAge > 0 {
			// Best effort; a stale cache must not fail startup
			_, _ = cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge)
		}
		diskCache = &cache.Cache{Dir: cfg.CacheDir}
	}

	rootDir := ""
	target := cfg.Target
	if cfg.AbsPath != "" {
		abs, err := filepath.Abs(cfg.AbsPath)
		if err != nil {
			return nil, fmt.Errorf("abspath: %w", err)
		}
		rootDir = abs
		target = rootRelativeTarget(target, rootDir)
	}

	newLoader := func(redir []fetch.Redirect) *fetch.Client {
		return &fetch.Client{
			UserAgent:         orDefault(cfg.UserAgent, DefaultUserAgent),
			MaxAttempts:       orDefaultInt(cfg.MaxAttempts, DefaultMaxAttempts),
			PerRequestTimeout: cfg.FetchTimeout,
			MaxConcurrent:     orDefaultInt(cfg.MaxConcurrent, DefaultMaxConcurrent),
			Cache:             diskCache,
			BypassCache:       cfg.BypassCache,
			Redirects:         redir,
			RootDir:           rootDir,
		}
	}
	loader := newLoader(redirects)
	depRedirects := redirects
	if cfg.ImplicitStripIgnoresRedirects {
		depRedirects = nil
	}
	depLoader := newLoader(depRedirects)

	bcfg := bundler.Config{
		Excludes:                      cfg.Excludes,
		StripExcludes:                 cfg.StripExcludes,
		StripComments:                 cfg.StripComments,
		InlineCSS:                     cfg.InlineCSS,
		InlineScripts:                 cfg.InlineScripts,
		AddedImports:                  cfg.AddedImports,
		ImplicitStrip:                 !cfg.NoImplicitStrip,
		ImplicitStripIgnoresRedirects: cfg.ImplicitStripIgnoresRedirects,
	}

	return &App{
		cfg:    cfg,
		target: target,
		b:      bundler.New(bcfg, loader, depLoader),
	}, nil
}

func (a *App) Close() {
	// nothing yet
}

// Run bundles the target and writes the result to the configured output.
func (a *App) Run(ctx context.Context) error {
	log.Info().Str("target", a.target).Msg("bundling")
	out, err := a.b.Process(ctx, a.target)
	if err != nil {
		return err
	}
	if a.cfg.OutputPath == "" || a.cfg.OutputPath == "-" {
		_, err = os.Stdout.WriteString(out)
		return err
	}
	if err := os.WriteFile(a.cfg.OutputPath, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.Info().Str("output", a.cfg.OutputPath).Int("bytes", len(out)).Msg("bundle written")
	return nil
}

// rootRelativeTarget maps a filesystem target under rootDir into the
// root-relative form the loader serves, leaving other targets alone.
func rootRelativeTarget(target, rootDir string) string {
	if strings.Contains(target, "://") {
		return target
	}
	abs := target
	if !filepath.IsAbs(abs) {
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
	}
	if rel, err := filepath.Rel(rootDir, abs); err == nil && !strings.HasPrefix(rel, "..") {
		return "/" + filepath.ToSlash(rel)
	}
	return target
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
