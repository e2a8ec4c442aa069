package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gobundle/internal/app"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		outputPath      string
		absPath         string
		excludes        string
		stripExcludes   string
		stripComments   bool
		inlineScripts   bool
		inlineCSS       bool
		addImports      string
		noImplicitStrip bool
		stripNoRedirect bool
		redirects       string
		configPath      string
		userAgent       string
		maxAttempts     int
		fetchTimeout    time.Duration
		maxConcurrent   int
		cacheDir        string
		cacheMaxAge     time.Duration
		cacheClear      bool
		cacheBypass     bool
		verbose         bool
	)

	flag.StringVar(&outputPath, "output", "", "Path to write the bundled document (default stdout)")
	flag.StringVar(&absPath, "abspath", os.Getenv("GOBUNDLE_ABSPATH"), "Web root for resolving root-relative paths when bundling local files")
	flag.StringVar(&excludes, "exclude", "", "Comma-separated regexps; matching imports stay external")
	flag.StringVar(&stripExcludes, "strip-exclude", "", "Comma-separated regexps; matching imports are removed entirely")
	flag.BoolVar(&stripComments, "strip-comments", false, "Remove HTML comments except the first copy of each @license comment")
	flag.BoolVar(&inlineScripts, "inline-scripts", true, "Inline external script bodies into the bundle")
	flag.BoolVar(&inlineCSS, "inline-css", true, "Inline external stylesheets into the bundle")
	flag.StringVar(&addImports, "add-import", "", "Comma-separated extra import hrefs prepended to the target's head")
	flag.BoolVar(&noImplicitStrip, "no-implicit-strip", false, "Keep the transitive dependencies of excluded documents")
	flag.BoolVar(&stripNoRedirect, "implicit-strip-ignore-redirects", false, "Resolve excluded documents' dependencies without applying redirects")
	flag.StringVar(&redirects, "redirect", "", "Comma-separated prefix|replacement URL mappings")
	flag.StringVar(&configPath, "config", os.Getenv("GOBUNDLE_CONFIG"), "Path to YAML or JSON config file")
	flag.StringVar(&userAgent, "fetch.ua", app.DefaultUserAgent, "Custom User-Agent for remote fetches")
	flag.IntVar(&maxAttempts, "fetch.maxAttempts", app.DefaultMaxAttempts, "Retry attempts per remote fetch")
	flag.DurationVar(&fetchTimeout, "fetch.timeout", app.DefaultFetchTimeout, "Per-request timeout for remote fetches")
	flag.IntVar(&maxConcurrent, "fetch.maxConcurrent", app.DefaultMaxConcurrent, "Maximum concurrent fetches")
	flag.StringVar(&cacheDir, "cache.dir", os.Getenv("GOBUNDLE_CACHE_DIR"), "Cache directory path; empty disables caching")
	flag.DurationVar(&cacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	flag.BoolVar(&cacheClear, "cache.clear", false, "Clear cache directory before run")
	flag.BoolVar(&cacheBypass, "cache.bypass", false, "Skip cache reads; fetched responses are still stored")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg := app.Config{
		Target:                        flag.Arg(0),
		OutputPath:                    outputPath,
		AbsPath:                       absPath,
		Excludes:                      splitList(excludes),
		StripExcludes:                 splitList(stripExcludes),
		StripComments:                 stripComments,
		InlineCSS:                     inlineCSS,
		InlineScripts:                 inlineScripts,
		AddedImports:                  splitList(addImports),
		NoImplicitStrip:               noImplicitStrip,
		ImplicitStripIgnoresRedirects: stripNoRedirect,
		Redirects:                     splitList(redirects),
		UserAgent:                     userAgent,
		MaxAttempts:                   maxAttempts,
		FetchTimeout:                  fetchTimeout,
		MaxConcurrent:                 maxConcurrent,
		CacheDir:                      cacheDir,
		CacheMaxAge:                   cacheMaxAge,
		CacheClear:                    cacheClear,
		BypassCache:                   cacheBypass,
		Verbose:                       verbose,
	}

	if strings.TrimSpace(configPath) != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("config file")
			os.Exit(1)
		}
		app.ApplyFileConfig(&cfg, fc)
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

// splitList parses a comma-separated flag value into a clean slice.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			list = append(list, v)
		}
	}
	return list
}

func run(cfg app.Config) error {
	ctx := context.Background()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	return a.Run(ctx)
}
