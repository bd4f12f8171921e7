package manifest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sample = `
pages: ["/legacy", "/old/*"]
root:
  segment: ""
  components: {layout: root-layout}
  slots:
    children:
      - segment: "[...rest]"
        components: {page: catch-page}
      - segment: blog
        components: {layout: blog-layout, loading: blog-loading, page: blog-index}
        slots:
          children:
            - segment: "[slug]"
              components: {page: post-page}
              data: post
            - segment: archive
              components: {page: archive-page}
      - segment: docs
        components: {page: docs-page}
        slots:
          children:
            - segment: "[[...path]]"
              components: {page: docs-path}
    modal:
      - segment: login
        components: {page: login-page}
`

func mustParse(t *testing.T) *Manifest {
	t.Helper()
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return m
}

// chain follows the children slot and returns each segment on the way.
func chain(n *Node) []string {
	var out []string
	for n != nil {
		out = append(out, n.Segment)
		n = n.Child(Children)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMatch(t *testing.T) {
	m := mustParse(t)
	cases := []struct {
		path   string
		chain  []string
		params Params
	}{
		{"/blog", []string{"", "blog", ""}, Params{}},
		{"/blog/archive", []string{"", "blog", "archive", ""}, Params{}},
		{"/blog/hello", []string{"", "blog", "[slug]", ""}, Params{"slug": "hello"}},
		{"/docs", []string{"", "docs", ""}, Params{}},
		{"/docs/a/b", []string{"", "docs", "[[...path]]", ""}, Params{"path": "a/b"}},
		{"/x/y", []string{"", "[...rest]", ""}, Params{"rest": "x/y"}},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			root, params, err := m.Match(tc.path)
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if got := chain(root); !equalStrings(got, tc.chain) {
				t.Fatalf("chain = %q, want %q", got, tc.chain)
			}
			if len(params) != len(tc.params) {
				t.Fatalf("params = %v, want %v", params, tc.params)
			}
			for k, v := range tc.params {
				if params[k] != v {
					t.Fatalf("params[%s] = %q, want %q", k, params[k], v)
				}
			}
			if modal := root.Child("modal"); modal == nil || modal.Segment != "login" || modal.Child(Children) == nil {
				t.Fatalf("modal slot = %#v, want login with page leaf", modal)
			}
		})
	}
}

func TestMatch_NoRoute(t *testing.T) {
	m, err := Parse([]byte(`
root:
  segment: ""
  slots:
    children:
      - segment: blog
        components: {page: blog}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, _, err := m.Match("/nope"); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("err = %v, want ErrNoRoute", err)
	}
	if _, _, err := m.Match("/"); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("root without page: err = %v, want ErrNoRoute", err)
	}
}

func TestMatch_PageLeafKeepsComponents(t *testing.T) {
	root, _, err := mustParse(t).Match("/blog")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	blog := root.Child(Children)
	if blog.Components.Page != "" || blog.Components.Layout != "blog-layout" || !blog.HasLoading() {
		t.Fatalf("blog components = %+v", blog.Components)
	}
	if leaf := blog.Child(Children); leaf.Components.Page != "blog-index" {
		t.Fatalf("page leaf = %+v", leaf.Components)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing root":  `pages: ["/x"]`,
		"bad page path": "pages: [x]\nroot: {segment: \"\"}",
		"bad segment":   "root:\n  segment: \"\"\n  slots:\n    children:\n      - segment: \"[bad\"",
		"slash segment": "root:\n  segment: \"\"\n  slots:\n    children:\n      - segment: a/b",
		"unknown field": "root: {segment: \"\", bogus: 1}",
		"root segment":  "root: {segment: top}",
		"empty slot":    "root:\n  segment: \"\"\n  slots:\n    children: []",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalidManifest) {
				t.Fatalf("err = %v, want ErrInvalidManifest", err)
			}
		})
	}
}

func TestIsPage(t *testing.T) {
	m := mustParse(t)
	for path, want := range map[string]bool{
		"/legacy":   true,
		"/old":      true,
		"/old/page": true,
		"/older":    false,
		"/blog":     false,
	} {
		if got := m.IsPage(path); got != want {
			t.Fatalf("IsPage(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	h := NewHolder(m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := Watch(ctx, path, h, 20*time.Millisecond, logger); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(path, []byte("root: {segment: \"\", components: {page: home}}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for h.Get() == m {
		if time.Now().After(deadline) {
			t.Fatalf("manifest was not reloaded")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if h.Get().Root.Components.Page != "home" {
		t.Fatalf("reloaded root = %+v", h.Get().Root)
	}

	reloaded := h.Get()
	if err := os.WriteFile(path, []byte("root: [broken"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if h.Get() != reloaded {
		t.Fatalf("invalid manifest replaced the previous one")
	}
}
