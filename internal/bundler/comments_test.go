package bundler

import (
	"strings"
	"testing"

	"github.com/hyperifyio/gobundle/internal/htmltree"
)

func TestCommentMap_FirstWins(t *testing.T) {
	m := newCommentMap()
	first := htmltree.NewComment(" a ")
	second := htmltree.NewComment(" a ")
	m.set(" a ", first)
	m.set(" b ", htmltree.NewComment(" b "))
	m.set(" a ", second)

	if got := m.get(" a "); got != first {
		t.Fatalf("later duplicate must not replace first node")
	}
	keys := m.keys()
	if len(keys) != 2 || keys[0] != " a " || keys[1] != " b " {
		t.Fatalf("unexpected key order: %v", keys)
	}
}

func TestStripAndDedupeComments(t *testing.T) {
	doc, err := htmltree.Parse([]byte(`<html><head>
<!-- @license MIT -->
<!-- plain note -->
</head><body>
<!-- @license MIT -->
<!-- @license Apache-2.0 -->
<p>content</p>
</body></html>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	stripAndDedupeComments(doc)

	out, _ := htmltree.Serialize(doc)
	if strings.Count(out, "@license MIT") != 1 {
		t.Fatalf("expected exactly one MIT license comment: %s", out)
	}
	if strings.Contains(out, "plain note") {
		t.Fatalf("non-license comment must be dropped: %s", out)
	}
	// First-seen order: MIT (seen in head) before Apache
	if strings.Index(out, "@license MIT") > strings.Index(out, "@license Apache-2.0") {
		t.Fatalf("license comments out of first-seen order: %s", out)
	}
	head := htmltree.FindFirst(doc, "head")
	headOut, _ := htmltree.Serialize(head)
	if !strings.Contains(headOut, "@license MIT") || !strings.Contains(headOut, "@license Apache-2.0") {
		t.Fatalf("license comments must be promoted into head: %s", headOut)
	}
}
