package bundler

import (
	"fmt"
	"regexp"

	"github.com/hyperifyio/gobundle/internal/analyzer"
)

// externalProtocolRe matches absolute and protocol-relative URLs. Those are
// excluded from inlining by default: remote resources stay external unless
// a redirect maps them locally first.
var externalProtocolRe = regexp.MustCompile(`^(?:https?:)?//`)

// matcher holds the compiled exclusion policy. All predicates are pure
// functions of (href, configuration).
type matcher struct {
	excludes []*regexp.Regexp
	strips   []*regexp.Regexp
}

func newMatcher(excludes, stripExcludes []string) (*matcher, error) {
	m := &matcher{}
	for _, p := range excludes {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("bad exclude pattern %q: %w", p, err)
		}
		m.excludes = append(m.excludes, re)
	}
	for _, p := range stripExcludes {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("bad strip-exclude pattern %q: %w", p, err)
		}
		m.strips = append(m.strips, re)
	}
	return m, nil
}

// excludedHref reports whether href matches the built-in external protocol
// pattern or any user exclusion pattern. Patterns are searched against the
// href, not full-matched.
func (m *matcher) excludedHref(href string) bool {
	if externalProtocolRe.MatchString(href) {
		return true
	}
	for _, re := range m.excludes {
		if re.MatchString(href) {
			return true
		}
	}
	return false
}

// strippedHref reports whether href matches any strip-exclusion pattern.
func (m *matcher) strippedHref(href string) bool {
	for _, re := range m.strips {
		if re.MatchString(href) {
			return true
		}
	}
	return false
}

// isDuplicate reports whether the edge refers to a document already
// flattened elsewhere in the graph.
func isDuplicate(e *analyzer.ImportEdge) bool {
	return e.Href == ""
}
