package app

import "time"

// Defaults shared between flag registration and file-config merging.
const (
	DefaultUserAgent     = "gobundle/1.0 (+https://github.com/hyperifyio/gobundle)"
	DefaultMaxAttempts   = 3
	DefaultFetchTimeout  = 15 * time.Second
	DefaultMaxConcurrent = 8
)

// Config is the full run configuration, assembled from flags and an
// optional config file, then treated as immutable.
type Config struct {
	// Target is the root document to bundle: a path, file URL, or http(s)
	// URL.
	Target string
	// OutputPath receives the serialized bundle; empty or "-" means stdout.
	OutputPath string

	// AbsPath anchors root-relative references when bundling a local tree.
	AbsPath string

	Excludes      []string
	StripExcludes []string
	StripComments bool
	InlineCSS     bool
	InlineScripts bool
	AddedImports  []string
	// NoImplicitStrip disables the default behavior of stripping excluded
	// documents' transitive dependencies.
	NoImplicitStrip bool
	// ImplicitStripIgnoresRedirects makes the implicit-strip dependency
	// scan bypass redirect mappings as well as excludes.
	ImplicitStripIgnoresRedirects bool
	// Redirects are "prefix|replacement" URL mappings.
	Redirects []string

	UserAgent     string
	MaxAttempts   int
	FetchTimeout  time.Duration
	MaxConcurrent int

	CacheDir    string
	CacheMaxAge time.Duration
	CacheClear  bool
	BypassCache bool

	Verbose bool
}
