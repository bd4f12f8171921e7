package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/five82/wayfinder/internal/cache"
	"github.com/five82/wayfinder/internal/flight"
	"github.com/five82/wayfinder/internal/routerstate"
	"github.com/five82/wayfinder/internal/segment"
)

type fakeFetcher struct {
	mu    sync.Mutex
	data  flight.Data
	err   error
	calls int
	trees []*routerstate.Tree
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, tree *routerstate.Tree, _ bool) (flight.Data, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.trees = append(f.trees, tree)
	return f.data, f.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newReducer(f *fakeFetcher) *Reducer {
	return &Reducer{
		Fetcher: f,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:     func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
}

var (
	rootSeg = segment.New("")
	blogSeg = segment.New("blog")
	post1   = segment.NewDynamic("slug", "post-1", segment.Dynamic)
	post2   = segment.NewDynamic("slug", "post-2", segment.Dynamic)
)

func children(t *routerstate.Tree) map[string]*routerstate.Tree {
	return map[string]*routerstate.Tree{routerstate.Children: t}
}

// initialState is "/blog/post-1" with everything rendered.
func initialState() State {
	tree := routerstate.New(rootSeg, children(
		routerstate.New(blogSeg, children(routerstate.New(post1, nil))),
	))
	root := cache.NewReady(flight.Payload(`"root"`))
	blog := cache.NewReady(flight.Payload(`"blog"`))
	blog.EnsureSlot(routerstate.Children).Set(post1.Key(), cache.NewReady(flight.Payload(`"post-1"`)))
	root.EnsureSlot(routerstate.Children).Set(blogSeg.Key(), blog)
	return NewState("/blog/post-1", tree, root)
}

func blogPath() routerstate.SegmentPath {
	return routerstate.SegmentPath{
		{Segment: rootSeg, ParallelRouteKey: routerstate.Children},
		{Segment: blogSeg, ParallelRouteKey: routerstate.Children},
	}
}

func rootPath() routerstate.SegmentPath {
	return routerstate.SegmentPath{{Segment: rootSeg, ParallelRouteKey: routerstate.Children}}
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}

func settle(t *testing.T, res Result) {
	t.Helper()
	if res.Pending == nil {
		t.Fatalf("reducer did not suspend")
	}
	select {
	case <-res.Pending.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("pending fetch did not settle")
	}
}

func docsData() flight.Data {
	docs := segment.New("docs")
	return flight.Data{Paths: []flight.DataPath{{
		Path:        rootPath(),
		Segment:     docs,
		TreePatch:   routerstate.New(docs, nil),
		SubTreeData: flight.Payload(`"docs"`),
	}}}
}

func TestNavigate_SuspendsThenCommitsOnce(t *testing.T) {
	f := &fakeFetcher{data: docsData()}
	r := newReducer(f)
	state := initialState()
	action := NewNavigate(mustURL(t, "/docs"), Push, false)

	res, err := r.Reduce(context.Background(), state, action)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if res.State.Tree != state.Tree || res.State.Cache != state.Cache {
		t.Fatalf("suspended reduce changed state")
	}
	settle(t, res)

	res, err = r.Reduce(context.Background(), state, action)
	if err != nil {
		t.Fatalf("Reduce after settle: %v", err)
	}
	if res.Suspended() {
		t.Fatalf("reducer suspended on a settled fetch")
	}
	got := res.State
	if got.CanonicalURL != "/docs" || !got.PushRef.PendingPush || got.PushRef.MPANavigation || !got.FocusAndScrollRef.Apply {
		t.Fatalf("state refs = %+v / %+v / %q", got.PushRef, got.FocusAndScrollRef, got.CanonicalURL)
	}
	if got.Tree.Child(routerstate.Children).Segment.Value != "docs" {
		t.Fatalf("tree outline = %q, want docs under root", routerstate.Outline(got.Tree))
	}
	docs := got.Cache.Lookup(rootPath(), segment.New("docs"))
	if docs == nil || string(docs.SubTreeData) != `"docs"` {
		t.Fatalf("docs cache node = %#v", docs)
	}
	if got.Cache.Slot(routerstate.Children).Get("blog") != state.Cache.Slot(routerstate.Children).Get("blog") {
		t.Fatalf("blog subtree not shared with the previous cache")
	}
	if err := got.Cache.Validate(); err != nil {
		t.Fatalf("root Validate: %v", err)
	}

	again, err := r.Reduce(context.Background(), state, action)
	if err != nil {
		t.Fatalf("replayed Reduce: %v", err)
	}
	if again.State.Tree != got.Tree || again.State.Cache != got.Cache {
		t.Fatalf("replay produced a different tree or cache")
	}
	if n := f.callCount(); n != 1 {
		t.Fatalf("fetch calls = %d, want 1", n)
	}
}

func TestNavigate_PrefetchedSiblingIsSoft(t *testing.T) {
	f := &fakeFetcher{}
	r := newReducer(f)
	state := initialState()

	res, err := r.Reduce(context.Background(), state, Prefetch{URL: mustURL(t, "/docs"), FlightData: docsData()})
	if err != nil {
		t.Fatalf("prefetch: %v", err)
	}
	state = res.State
	if _, ok := state.PrefetchCache["/docs"]; !ok {
		t.Fatalf("prefetch cache = %v, want /docs entry", state.PrefetchCache)
	}
	if state.Cache.Lookup(rootPath(), segment.New("docs")) == nil {
		t.Fatalf("prefetched payload not appended to the cache")
	}

	action := NewNavigate(mustURL(t, "/docs"), Replace, false)
	res, err = r.Reduce(context.Background(), state, action)
	if err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if res.State.Cache != state.Cache || !action.Mutable.UseExistingCache {
		t.Fatalf("soft navigation did not reuse the cache")
	}
	if res.State.PushRef.PendingPush {
		t.Fatalf("replace navigation requested a push")
	}
	if res.State.Tree.Child(routerstate.Children).Segment.Value != "docs" {
		t.Fatalf("tree = %q, want docs", routerstate.Outline(res.State.Tree))
	}
	if f.callCount() != 0 {
		t.Fatalf("soft navigation fetched")
	}
}

func TestNavigate_PrefetchedDynamicChangeIsHard(t *testing.T) {
	r := newReducer(&fakeFetcher{})
	state := initialState()
	data := flight.Data{Paths: []flight.DataPath{{
		Path:        blogPath(),
		Segment:     post2,
		TreePatch:   routerstate.New(post2, nil),
		SubTreeData: flight.Payload(`"post-2"`),
	}}}
	res, err := r.Reduce(context.Background(), state, Prefetch{URL: mustURL(t, "/blog/post-2"), FlightData: data})
	if err != nil {
		t.Fatalf("prefetch: %v", err)
	}
	state = res.State

	action := NewNavigate(mustURL(t, "/blog/post-2"), Push, false)
	res, err = r.Reduce(context.Background(), state, action)
	if err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if res.State.Cache == state.Cache || action.Mutable.UseExistingCache {
		t.Fatalf("dynamic param change navigated softly")
	}
	if res.State.Cache.Lookup(blogPath(), post2) != nil {
		t.Fatalf("target node survived a hard navigation")
	}
	if state.Cache.Lookup(blogPath(), post2) == nil {
		t.Fatalf("hard navigation removed the node from the published cache")
	}
	leaf := routerstate.Lookup(blogPath(), res.State.Tree)
	if leaf == nil || leaf.Segment != post2 {
		t.Fatalf("tree = %q, want post-2 leaf", routerstate.Outline(res.State.Tree))
	}

	again, err := r.Reduce(context.Background(), state, action)
	if err != nil {
		t.Fatalf("navigate again: %v", err)
	}
	if again.State.Cache != res.State.Cache || again.State.Tree != res.State.Tree {
		t.Fatalf("re-invoking the same action recomputed the transition")
	}
}

func TestNavigate_PrefetchedQueryChangeIsHard(t *testing.T) {
	r := newReducer(&fakeFetcher{})
	state := initialState()
	res, _ := r.Reduce(context.Background(), state, Prefetch{URL: mustURL(t, "/docs?tab=api"), FlightData: docsData()})
	state = res.State

	action := NewNavigate(mustURL(t, "/docs?tab=api"), Push, false)
	res, err := r.Reduce(context.Background(), state, action)
	if err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if res.State.Cache == state.Cache {
		t.Fatalf("query change navigated softly")
	}
	if res.State.CanonicalURL != "/docs?tab=api" {
		t.Fatalf("canonical = %q", res.State.CanonicalURL)
	}
}

func TestNavigate_Optimistic(t *testing.T) {
	f := &fakeFetcher{data: docsData()}
	r := newReducer(f)
	state := initialState()
	action := NewNavigate(mustURL(t, "/blog/post-9"), Push, true)

	res, err := r.Reduce(context.Background(), state, action)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if res.Suspended() {
		t.Fatalf("optimistic navigation suspended in the reducer")
	}
	leaf := routerstate.Lookup(blogPath(), res.State.Tree)
	if leaf == nil || leaf.Segment.Value != "post-9" || !leaf.Refresh {
		t.Fatalf("optimistic tree = %q", routerstate.Outline(res.State.Tree))
	}
	node := res.State.Cache.Lookup(blogPath(), segment.New("post-9"))
	if node == nil || node.Status() != cache.DataFetch {
		t.Fatalf("post-9 node = %#v, want in-flight fetch", node)
	}
	if _, err := node.Data.Wait(context.Background()); err != nil {
		t.Fatalf("optimistic fetch: %v", err)
	}
	f.mu.Lock()
	sent := f.trees[0]
	f.mu.Unlock()
	if !routerstate.Equal(sent, res.State.Tree) {
		t.Fatalf("fetch sent %q, want the optimistic tree", routerstate.Outline(sent))
	}
}

func TestNavigate_OptimisticBailsToRootFetch(t *testing.T) {
	f := &fakeFetcher{data: docsData()}
	r := newReducer(f)
	state := NewState("/", routerstate.New(rootSeg, nil), cache.NewReady(nil))

	res, err := r.Reduce(context.Background(), state, NewNavigate(mustURL(t, "/docs"), Push, true))
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if !res.Suspended() {
		t.Fatalf("bailout did not fall back to a suspending fetch")
	}
}

func TestNavigate_MPA(t *testing.T) {
	r := newReducer(&fakeFetcher{data: flight.Data{MPA: "/legacy"}})
	state := initialState()
	action := NewNavigate(mustURL(t, "/legacy"), Push, false)
	res, _ := r.Reduce(context.Background(), state, action)
	settle(t, res)

	res, err := r.Reduce(context.Background(), state, action)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	got := res.State
	if got.CanonicalURL != "/legacy" || !got.PushRef.MPANavigation || !got.PushRef.PendingPush || got.FocusAndScrollRef.Apply {
		t.Fatalf("mpa state = %+v", got)
	}
	if got.Tree != state.Tree || got.Cache != state.Cache {
		t.Fatalf("mpa changed tree or cache")
	}
}

func TestNavigate_SegmentMismatch(t *testing.T) {
	other := segment.New("other")
	data := flight.Data{Paths: []flight.DataPath{{
		Path:      routerstate.SegmentPath{{Segment: other, ParallelRouteKey: routerstate.Children}},
		Segment:   blogSeg,
		TreePatch: routerstate.New(blogSeg, nil),
	}}}
	r := newReducer(&fakeFetcher{data: data})
	state := initialState()
	action := NewNavigate(mustURL(t, "/blog"), Push, false)
	res, _ := r.Reduce(context.Background(), state, action)
	settle(t, res)

	if _, err := r.Reduce(context.Background(), state, action); !errors.Is(err, ErrSegmentMismatch) {
		t.Fatalf("err = %v, want ErrSegmentMismatch", err)
	}
}

func TestNavigate_FetchError(t *testing.T) {
	boom := errors.New("boom")
	r := newReducer(&fakeFetcher{err: boom})
	state := initialState()
	action := NewNavigate(mustURL(t, "/docs"), Push, false)
	res, _ := r.Reduce(context.Background(), state, action)
	settle(t, res)

	if _, err := r.Reduce(context.Background(), state, action); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestServerPatch(t *testing.T) {
	r := newReducer(&fakeFetcher{})
	state := initialState()
	state.PushRef = PushRef{PendingPush: true}
	state.FocusAndScrollRef = FocusAndScrollRef{Apply: true}

	stale := NewServerPatch(docsData(), routerstate.New(rootSeg, nil))
	res, err := r.Reduce(context.Background(), state, stale)
	if err != nil {
		t.Fatalf("stale patch: %v", err)
	}
	if res.State.Tree != state.Tree || res.State.Cache != state.Cache {
		t.Fatalf("stale server patch was applied")
	}

	action := NewServerPatch(docsData(), state.Tree)
	res, err = r.Reduce(context.Background(), state, action)
	if err != nil {
		t.Fatalf("server patch: %v", err)
	}
	got := res.State
	if got.CanonicalURL != state.CanonicalURL || got.PushRef != state.PushRef || got.FocusAndScrollRef != state.FocusAndScrollRef {
		t.Fatalf("server patch changed url or refs: %+v", got)
	}
	if got.Cache.Lookup(rootPath(), segment.New("docs")) == nil {
		t.Fatalf("server patch did not fill the cache")
	}

	replay, err := r.Reduce(context.Background(), state, action)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.State.Tree != got.Tree || replay.State.Cache != got.Cache {
		t.Fatalf("server patch replay recomputed")
	}
}

func TestRestore(t *testing.T) {
	r := newReducer(&fakeFetcher{})
	state := initialState()
	tree := routerstate.New(rootSeg, children(routerstate.New(segment.New("docs"), nil)))
	res, err := r.Reduce(context.Background(), state, Restore{URL: mustURL(t, "/docs#intro"), Tree: tree})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if res.State.Tree != tree || res.State.Cache != state.Cache || res.State.CanonicalURL != "/docs#intro" {
		t.Fatalf("restore state = %+v", res.State)
	}
}

func TestReload(t *testing.T) {
	newTree := routerstate.New(rootSeg, children(routerstate.New(blogSeg, nil)))
	f := &fakeFetcher{data: flight.Data{Paths: []flight.DataPath{{
		Segment:     rootSeg,
		TreePatch:   newTree,
		SubTreeData: flight.Payload(`"root v2"`),
	}}}}
	r := newReducer(f)
	state := initialState()
	action := NewReload()

	res, _ := r.Reduce(context.Background(), state, action)
	settle(t, res)
	res, err := r.Reduce(context.Background(), state, action)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if !routerstate.Equal(res.State.Tree, newTree) || string(res.State.Cache.SubTreeData) != `"root v2"` {
		t.Fatalf("reload state tree=%q root=%s", routerstate.Outline(res.State.Tree), res.State.Cache.SubTreeData)
	}
	if res.State.FocusAndScrollRef.Apply || res.State.CanonicalURL != state.CanonicalURL {
		t.Fatalf("reload refs = %+v url=%q", res.State.FocusAndScrollRef, res.State.CanonicalURL)
	}
	if sent := f.trees[0]; !sent.Refresh {
		t.Fatalf("reload request tree not marked for refetch")
	}
}

func TestReload_PartialResponseKeepsState(t *testing.T) {
	r := newReducer(&fakeFetcher{data: docsData()})
	state := initialState()
	action := NewReload()
	res, _ := r.Reduce(context.Background(), state, action)
	settle(t, res)
	res, err := r.Reduce(context.Background(), state, action)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if res.State.Tree != state.Tree || res.State.Cache != state.Cache {
		t.Fatalf("partial reload response was applied")
	}
}

func TestPrefetch_MPAAndRouterStateOnly(t *testing.T) {
	r := newReducer(&fakeFetcher{})
	state := initialState()

	res, _ := r.Reduce(context.Background(), state, Prefetch{URL: mustURL(t, "/legacy"), FlightData: flight.Data{MPA: "/legacy"}})
	if len(res.State.PrefetchCache) != 0 {
		t.Fatalf("mpa prefetch recorded an entry")
	}

	data := docsData()
	data.Paths[0].SubTreeData = nil
	res, _ = r.Reduce(context.Background(), state, Prefetch{URL: mustURL(t, "/docs"), FlightData: data})
	entry, ok := res.State.PrefetchCache["/docs"]
	if !ok || entry.Segment.Value != "docs" || !entry.FetchedAt.Equal(r.Now()) {
		t.Fatalf("entry = %+v", entry)
	}
	if res.State.Cache.Lookup(rootPath(), segment.New("docs")) != nil {
		t.Fatalf("router-state-only prefetch filled the cache")
	}
}

type bogus struct{}

func (bogus) Kind() string { return "bogus" }

func TestReduce_UnknownAction(t *testing.T) {
	r := newReducer(&fakeFetcher{})
	if _, err := r.Reduce(context.Background(), initialState(), bogus{}); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err = %v, want ErrUnknownAction", err)
	}
}

func TestPrefetchCache_Prune(t *testing.T) {
	now := time.Now()
	c := PrefetchCache{
		"/old":   {FetchedAt: now.Add(-time.Minute)},
		"/fresh": {FetchedAt: now.Add(-time.Second)},
	}
	if removed := c.Prune(now, 30*time.Second); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := c["/fresh"]; !ok {
		t.Fatalf("fresh entry pruned")
	}
	if removed := c.Prune(now, 0); removed != 0 {
		t.Fatalf("zero ttl removed %d entries", removed)
	}
}

func TestHref(t *testing.T) {
	cases := map[string]string{
		"http://x/blog?a=1#top": "/blog?a=1#top",
		"http://x":              "/",
		"/a%20b":                "/a%20b",
	}
	for raw, want := range cases {
		if got := Href(mustURL(t, raw)); got != want {
			t.Fatalf("Href(%q) = %q, want %q", raw, got, want)
		}
	}
}
