package router

import (
	"net/url"
	"time"

	"github.com/five82/wayfinder/internal/cache"
	"github.com/five82/wayfinder/internal/routerstate"
	"github.com/five82/wayfinder/internal/segment"
)

// PushRef tells the history layer what to do with the new canonical URL.
type PushRef struct {
	PendingPush bool
	// MPANavigation means the target is not an app route and must be loaded
	// as a full page.
	MPANavigation bool
}

// FocusAndScrollRef tells the renderer whether to apply focus and scroll
// management after the update.
type FocusAndScrollRef struct {
	Apply bool
}

// PrefetchEntry is what a prefetch learned about an href: where the server
// would start rendering and the router state it would patch in.
type PrefetchEntry struct {
	Path      routerstate.SegmentPath
	Segment   segment.Segment
	TreePatch *routerstate.Tree
	FetchedAt time.Time
}

// PrefetchCache maps hrefs to prefetched navigation data.
type PrefetchCache map[string]PrefetchEntry

// Prune drops entries older than ttl and returns how many were removed. A
// non-positive ttl keeps everything.
func (c PrefetchCache) Prune(now time.Time, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	removed := 0
	for href, entry := range c {
		if now.Sub(entry.FetchedAt) > ttl {
			delete(c, href)
			removed++
		}
	}
	return removed
}

// State is the whole client router state. A reducer call returns a new value;
// the Tree and Cache it holds are never modified after being published,
// except for append-only prefetch and lazy layout fills.
type State struct {
	Tree              *routerstate.Tree
	Cache             *cache.Node
	PrefetchCache     PrefetchCache
	PushRef           PushRef
	FocusAndScrollRef FocusAndScrollRef
	CanonicalURL      string
}

// NewState builds the initial state from a first-load response.
func NewState(canonicalURL string, tree *routerstate.Tree, root *cache.Node) State {
	if root == nil {
		root = cache.NewReady(nil)
	}
	return State{
		Tree:          tree,
		Cache:         root,
		PrefetchCache: PrefetchCache{},
		CanonicalURL:  canonicalURL,
	}
}

// Href renders a URL as path, query and fragment, the form used as the
// canonical URL and the prefetch cache key.
func Href(u *url.URL) string {
	href := u.EscapedPath()
	if href == "" {
		href = "/"
	}
	if u.RawQuery != "" {
		href += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		href += "#" + u.EscapedFragment()
	}
	return href
}

// querySearch returns the "?query" part of an href, or "".
func querySearch(href string) string {
	u, err := url.Parse(href)
	if err != nil || u.RawQuery == "" {
		return ""
	}
	return "?" + u.RawQuery
}
