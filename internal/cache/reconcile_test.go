package cache

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/five82/wayfinder/internal/flight"
	"github.com/five82/wayfinder/internal/routerstate"
	"github.com/five82/wayfinder/internal/segment"
)

// published builds a shared cache shaped like
//
//	root
//	  @children blog
//	    @children post-1
//	    @children post-2
//	  @children docs
//	  @modal login
func published() *Node {
	root := NewReady(flight.Payload(`"root"`))
	children := root.EnsureSlot(routerstate.Children)
	blog := NewReady(flight.Payload(`"blog"`))
	posts := blog.EnsureSlot(routerstate.Children)
	posts.Set("post-1", NewReady(flight.Payload(`"post-1"`)))
	posts.Set("post-2", NewReady(flight.Payload(`"post-2"`)))
	children.Set("blog", blog)
	children.Set("docs", NewReady(flight.Payload(`"docs"`)))
	root.EnsureSlot("modal").Set("login", NewReady(flight.Payload(`"login"`)))
	return root
}

func hops(pairs ...string) routerstate.SegmentPath {
	var out routerstate.SegmentPath
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, routerstate.Hop{Segment: segment.New(pairs[i]), ParallelRouteKey: pairs[i+1]})
	}
	return out
}

func postPath(payload string) flight.DataPath {
	return flight.DataPath{
		Path:        hops("", routerstate.Children, "blog", routerstate.Children),
		Segment:     segment.New("post-3"),
		TreePatch:   routerstate.New(segment.New("post-3"), nil),
		SubTreeData: flight.Payload(payload),
	}
}

func TestFillWithNewSubTreeData_SharesUntouchedSubtrees(t *testing.T) {
	existing := published()
	newCache := NewRoot()
	AdoptRoot(newCache, existing)
	FillWithNewSubTreeData(newCache, existing, postPath(`"post-3"`))

	got := newCache.Lookup(hops("", routerstate.Children, "blog", routerstate.Children), segment.New("post-3"))
	if got == nil || string(got.SubTreeData) != `"post-3"` {
		t.Fatalf("post-3 node = %#v, want installed payload", got)
	}

	if newCache.Slot("modal") != existing.Slot("modal") {
		t.Fatalf("modal slot was copied, want shared")
	}
	newChildren := newCache.Slot(routerstate.Children)
	oldChildren := existing.Slot(routerstate.Children)
	if newChildren == oldChildren {
		t.Fatalf("children slot on touched path was shared, want copy")
	}
	if newChildren.Get("docs") != oldChildren.Get("docs") {
		t.Fatalf("docs node was copied, want shared")
	}
	newBlog, oldBlog := newChildren.Get("blog"), oldChildren.Get("blog")
	if newBlog == oldBlog {
		t.Fatalf("blog node on touched path was shared, want copy")
	}
	if newBlog.Slot(routerstate.Children).Get("post-1") != oldBlog.Slot(routerstate.Children).Get("post-1") {
		t.Fatalf("post-1 node was copied, want shared")
	}

	if oldBlog.Slot(routerstate.Children).Get("post-3") != nil {
		t.Fatalf("existing cache was mutated")
	}
	if string(newCache.SubTreeData) != `"root"` {
		t.Fatalf("root payload = %s, want adopted payload", newCache.SubTreeData)
	}
}

func TestFillWithNewSubTreeData_ReplacesBorrowedLeaf(t *testing.T) {
	existing := published()
	newCache := NewRoot()
	AdoptRoot(newCache, existing)

	dp := flight.DataPath{
		Path:        hops("", routerstate.Children),
		Segment:     segment.New("blog"),
		TreePatch:   routerstate.New(segment.New("blog"), map[string]*routerstate.Tree{routerstate.Children: routerstate.New(segment.New("post-2"), nil)}),
		SubTreeData: flight.Payload(`"blog v2"`),
	}
	FillWithNewSubTreeData(newCache, existing, dp)

	blog := newCache.Slot(routerstate.Children).Get("blog")
	if string(blog.SubTreeData) != `"blog v2"` {
		t.Fatalf("blog payload = %s, want blog v2", blog.SubTreeData)
	}
	posts := blog.Slot(routerstate.Children)
	if posts.Get("post-2") != nil {
		t.Fatalf("post-2 survived, want it dropped by the tree patch")
	}
	if posts.Get("post-1") == nil {
		t.Fatalf("post-1 was dropped, want it kept")
	}
	if err := blog.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestFillWithNewSubTreeData_MissingSlotLeavesCacheAlone(t *testing.T) {
	existing := published()
	newCache := NewRoot()
	dp := flight.DataPath{
		Path:        hops("", "sidebar"),
		Segment:     segment.New("nav"),
		TreePatch:   routerstate.New(segment.New("nav"), nil),
		SubTreeData: flight.Payload(`"nav"`),
	}
	FillWithNewSubTreeData(newCache, existing, dp)
	if newCache.Slot("sidebar") != nil {
		t.Fatalf("sidebar slot created, want bailout")
	}
}

func TestFillWithNewSubTreeData_Root(t *testing.T) {
	existing := published()
	newCache := NewRoot()
	AdoptRoot(newCache, existing)
	FillWithNewSubTreeData(newCache, existing, flight.DataPath{
		Segment:     segment.New(""),
		TreePatch:   routerstate.New(segment.New(""), map[string]*routerstate.Tree{routerstate.Children: routerstate.New(segment.New("docs"), nil)}),
		SubTreeData: flight.Payload(`"root v2"`),
	})
	if string(newCache.SubTreeData) != `"root v2"` {
		t.Fatalf("root payload = %s, want root v2", newCache.SubTreeData)
	}
	if newCache.Slot(routerstate.Children).Get("docs") != nil {
		t.Fatalf("docs survived a root render that named it")
	}
	if existing.Slot(routerstate.Children).Get("docs") == nil {
		t.Fatalf("existing docs removed")
	}
}

func TestInvalidateBelowSegmentPath(t *testing.T) {
	existing := published()
	newCache := NewRoot()
	AdoptRoot(newCache, existing)
	InvalidateBelowSegmentPath(newCache, existing, hops("", routerstate.Children, "blog", routerstate.Children), segment.New("post-1"))

	if newCache.Lookup(hops("", routerstate.Children, "blog", routerstate.Children), segment.New("post-1")) != nil {
		t.Fatalf("post-1 still cached in new cache")
	}
	if newCache.Lookup(hops("", routerstate.Children, "blog", routerstate.Children), segment.New("post-2")) == nil {
		t.Fatalf("post-2 removed, want only the addressed node gone")
	}
	if existing.Lookup(hops("", routerstate.Children, "blog", routerstate.Children), segment.New("post-1")) == nil {
		t.Fatalf("existing cache was mutated")
	}
}

func TestInvalidateByRouterState(t *testing.T) {
	existing := published()
	newCache := NewRoot()
	rs := routerstate.New(segment.New(""), map[string]*routerstate.Tree{
		routerstate.Children: routerstate.New(segment.New("docs"), nil),
	})
	InvalidateByRouterState(newCache, existing, rs)

	children := newCache.Slot(routerstate.Children)
	if children == nil {
		t.Fatalf("children slot missing from new cache")
	}
	if children.Get("docs") != nil {
		t.Fatalf("docs still cached in new cache")
	}
	if children.Get("blog") != existing.Slot(routerstate.Children).Get("blog") {
		t.Fatalf("blog node was copied or dropped, want shared")
	}
	if newCache.Slot("modal") != nil {
		t.Fatalf("modal slot touched, want only slots named by the router state")
	}
	if existing.Slot(routerstate.Children).Get("docs") == nil {
		t.Fatalf("existing cache was mutated")
	}
}

func TestInvalidateByRouterState_SkipsNilChildren(t *testing.T) {
	existing := published()
	newCache := NewRoot()
	rs := routerstate.New(segment.New(""), map[string]*routerstate.Tree{routerstate.Children: nil})
	InvalidateByRouterState(newCache, existing, rs)

	if newCache.Slot(routerstate.Children) != nil {
		t.Fatalf("children slot touched for a nil router state child")
	}
}

func TestFillWithPrefetchedSubTreeData_IsAppendOnly(t *testing.T) {
	existing := published()
	post1 := existing.Lookup(hops("", routerstate.Children, "blog", routerstate.Children), segment.New("post-1"))

	FillWithPrefetchedSubTreeData(existing, postPath(`"post-3"`))
	dp := postPath(`"replaced"`)
	dp.Segment = segment.New("post-1")
	FillWithPrefetchedSubTreeData(existing, dp)

	posts := existing.Lookup(hops("", routerstate.Children), segment.New("blog")).Slot(routerstate.Children)
	if got := posts.Get("post-3"); got == nil || string(got.SubTreeData) != `"post-3"` {
		t.Fatalf("post-3 = %#v, want prefetched payload", got)
	}
	if posts.Get("post-1") != post1 || string(post1.SubTreeData) != `"post-1"` {
		t.Fatalf("post-1 was replaced by a prefetch")
	}
}

func TestFillWithDataProperty_StartsOneFetch(t *testing.T) {
	existing := published()
	newCache := NewRoot()
	var started atomic.Int32
	start := func() *Fetch {
		started.Add(1)
		return Resolved(flight.Data{}, nil)
	}

	for i := 0; i < 3; i++ {
		if bail := FillWithDataProperty(newCache, existing, []string{"blog", "post-9", ""}, start); bail {
			t.Fatalf("FillWithDataProperty bailed on a cached path")
		}
	}
	if got := started.Load(); got != 1 {
		t.Fatalf("fetches started = %d, want 1", got)
	}
	node := newCache.Lookup(hops("", routerstate.Children, "blog", routerstate.Children), segment.New("post-9"))
	if node == nil || node.Status() != DataFetch {
		t.Fatalf("post-9 node = %#v, want a fetching node", node)
	}
}

func TestFillWithDataProperty_BailsWithoutSlot(t *testing.T) {
	existing := NewReady(nil)
	start := func() *Fetch {
		t.Fatalf("fetch started on bailout")
		return nil
	}
	if bail := FillWithDataProperty(NewRoot(), existing, []string{"blog", ""}, start); !bail {
		t.Fatalf("FillWithDataProperty = false, want bail")
	}
}

func TestNodeStatusAndValidate(t *testing.T) {
	n := NewReady(nil)
	if n.Status() != LazyInitialized {
		t.Fatalf("status = %v, want lazy", n.Status())
	}
	n.SubTreeData = flight.Payload(`1`)
	if n.Status() != Ready {
		t.Fatalf("status = %v, want ready", n.Status())
	}
	n.Data = Resolved(flight.Data{}, nil)
	if err := n.Validate(); err != ErrBothDataAndSubTree {
		t.Fatalf("Validate = %v, want ErrBothDataAndSubTree", err)
	}
}

func TestFetch_ReadAndWait(t *testing.T) {
	release := make(chan struct{})
	f := StartFetch(context.Background(), func(context.Context) (flight.Data, error) {
		<-release
		return flight.Data{MPA: "/x"}, nil
	})
	if _, err := f.Read(); err != ErrPending {
		t.Fatalf("Read before settle = %v, want ErrPending", err)
	}
	close(release)
	data, err := f.Wait(context.Background())
	if err != nil || data.MPA != "/x" {
		t.Fatalf("Wait = (%#v, %v), want MPA /x", data, err)
	}
	if !f.Ready() {
		t.Fatalf("Ready = false after Wait")
	}
}

func TestOutline(t *testing.T) {
	lines := Outline(published())
	if len(lines) != 6 {
		t.Fatalf("outline = %q, want 6 lines", lines)
	}
	if lines[1] != "  @children blog ready" {
		t.Fatalf("line 1 = %q", lines[1])
	}
}
