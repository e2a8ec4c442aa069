package bundler

// Config carries one run's bundling policy. It is immutable for the
// lifetime of the run; every stage reads it, none writes it.
type Config struct {
	// Excludes are regexp fragments searched against import hrefs. A
	// matching import is left in the output as an unresolved link.
	Excludes []string

	// StripExcludes are regexp fragments marking imports for complete
	// removal rather than mere non-inlining.
	StripExcludes []string

	// StripComments removes all comments from the output, keeping one copy
	// of each distinct @license comment.
	StripComments bool

	// InlineCSS replaces stylesheet links with fetched <style> content.
	InlineCSS bool

	// InlineScripts replaces external script references with fetched bodies.
	InlineScripts bool

	// AddedImports are prepended to the root document as new import links
	// before analysis.
	AddedImports []string

	// ImplicitStrip adds the transitive dependencies of each excluded
	// document to StripExcludes, so exclusion does not leave their
	// dependencies dangling in the output. Enabled by default.
	ImplicitStrip bool

	// ImplicitStripIgnoresRedirects makes the dependency scan behind
	// ImplicitStrip bypass redirect mappings as well as excludes.
	ImplicitStripIgnoresRedirects bool
}
