package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/five82/wayfinder/internal/cache"
	"github.com/five82/wayfinder/internal/flight"
	"github.com/five82/wayfinder/internal/routerstate"
)

var (
	// ErrSegmentMismatch means the server answered for a path that does not
	// exist in the client's tree. The client and server have diverged.
	ErrSegmentMismatch = errors.New("segment mismatch")
	// ErrUnknownAction is returned for actions the reducer does not handle.
	ErrUnknownAction = errors.New("unknown action")
	// ErrNoFlightData is returned when a response carried no data paths.
	ErrNoFlightData = errors.New("empty flight data")
)

// Result is the outcome of one reducer invocation. When Pending is set the
// reducer needs that fetch to settle; the caller waits for it and invokes
// the reducer again with the same action. State is then the unchanged input.
type Result struct {
	State   State
	Pending *cache.Fetch
}

// Suspended reports whether the reducer is waiting on a fetch.
func (r Result) Suspended() bool {
	return r.Pending != nil
}

// Reducer applies router actions to a State.
type Reducer struct {
	Fetcher flight.Fetcher
	Logger  *slog.Logger
	// Now is used to timestamp prefetch entries; defaults to time.Now.
	Now func() time.Time
}

// Reduce applies action to state. ctx bounds the fetches the reducer starts;
// optimistic fetches are attached to cache nodes and outlive the call, so
// callers pass a context that lives as long as the router.
func (r *Reducer) Reduce(ctx context.Context, state State, action Action) (Result, error) {
	switch a := action.(type) {
	case Navigate:
		return r.navigate(ctx, state, a)
	case ServerPatch:
		return r.serverPatch(state, a)
	case Restore:
		return done(restore(state, a)), nil
	case Reload:
		return r.reload(ctx, state, a)
	case Prefetch:
		return done(r.prefetch(state, a)), nil
	default:
		return Result{State: state}, fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}
}

func done(s State) Result {
	return Result{State: s}
}

func (r *Reducer) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Reducer) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Reducer) start(ctx context.Context, href string, tree *routerstate.Tree) *cache.Fetch {
	return cache.StartFetch(ctx, func(ctx context.Context) (flight.Data, error) {
		return r.Fetcher.Fetch(ctx, href, tree, false)
	})
}

// navigated is the state after a navigation commits.
func navigated(state State, href string, pendingPush bool, tree *routerstate.Tree, root *cache.Node) State {
	return State{
		Tree:              tree,
		Cache:             root,
		PrefetchCache:     state.PrefetchCache,
		PushRef:           PushRef{PendingPush: pendingPush},
		FocusAndScrollRef: FocusAndScrollRef{Apply: true},
		CanonicalURL:      href,
	}
}

// mpa is the state for a target the app router cannot render.
func mpa(state State, target string) State {
	return State{
		Tree:              state.Tree,
		Cache:             state.Cache,
		PrefetchCache:     state.PrefetchCache,
		PushRef:           PushRef{PendingPush: true, MPANavigation: true},
		FocusAndScrollRef: FocusAndScrollRef{Apply: false},
		CanonicalURL:      target,
	}
}

func firstPath(data flight.Data, logger *slog.Logger) (flight.DataPath, error) {
	dp, ok := data.First()
	if !ok {
		return flight.DataPath{}, ErrNoFlightData
	}
	if len(data.Paths) > 1 {
		logger.Debug("ignoring extra flight data paths", "count", len(data.Paths))
	}
	return dp, nil
}

func (r *Reducer) navigate(ctx context.Context, state State, a Navigate) (Result, error) {
	href := Href(a.URL)
	pendingPush := a.NavigateType == Push
	m := a.Mutable
	log := r.logger().With("action", a.Kind(), "href", href)

	if m.PatchedTree != nil && routerstate.Equal(m.PreviousTree, state.Tree) {
		root := a.Cache
		if m.UseExistingCache {
			root = state.Cache
		}
		return done(navigated(state, href, pendingPush, m.PatchedTree, root)), nil
	}

	if entry, ok := state.PrefetchCache[href]; ok {
		if newTree, ok := routerstate.ApplyPatch(entry.Path, state.Tree, entry.TreePatch); ok {
			m.PreviousTree = state.Tree
			m.PatchedTree = newTree

			hard := querySearch(href) != querySearch(state.CanonicalURL) ||
				routerstate.ShouldHardNavigate(entry.Path, state.Tree, entry.TreePatch)
			root := state.Cache
			if hard {
				cache.AdoptRoot(a.Cache, state.Cache)
				cache.InvalidateBelowSegmentPath(a.Cache, state.Cache, entry.Path, entry.Segment)
				root = a.Cache
			} else {
				m.UseExistingCache = true
			}
			log.Debug("navigating from prefetch", "hard", hard)
			return done(navigated(state, href, pendingPush, newTree, root)), nil
		}
	}

	if a.ForceOptimisticNavigation {
		segments := append(strings.Split(a.URL.Path, "/"), "")
		optimistic := routerstate.CreateOptimisticTree(segments, state.Tree, false)

		cache.AdoptRoot(a.Cache, state.Cache)
		bail := cache.FillWithDataProperty(a.Cache, state.Cache, segments[1:], func() *cache.Fetch {
			return r.start(ctx, href, optimistic)
		})
		if !bail {
			m.PreviousTree = state.Tree
			m.PatchedTree = optimistic
			log.Debug("navigating optimistically")
			return done(navigated(state, href, pendingPush, optimistic, a.Cache)), nil
		}
		log.Debug("optimistic navigation bailed out")
	}

	fetch := a.Cache.EnsureFetch(func() *cache.Fetch {
		return r.start(ctx, href, state.Tree)
	})
	data, err := fetch.Read()
	if errors.Is(err, cache.ErrPending) {
		return Result{State: state, Pending: fetch}, nil
	}
	if err != nil {
		return Result{State: state}, fmt.Errorf("navigate %s: %w", href, err)
	}
	if data.IsMPA() {
		log.Info("navigation leaves the app router", "target", data.MPA)
		return done(mpa(state, data.MPA)), nil
	}

	a.Cache.Data = nil
	dp, err := firstPath(data, log)
	if err != nil {
		return Result{State: state}, fmt.Errorf("navigate %s: %w", href, err)
	}
	newTree, ok := routerstate.ApplyPatch(dp.Path, state.Tree, dp.TreePatch)
	if !ok {
		return Result{State: state}, fmt.Errorf("navigate %s at %s: %w", href, dp.Path, ErrSegmentMismatch)
	}
	m.PreviousTree = state.Tree
	m.PatchedTree = newTree

	cache.AdoptRoot(a.Cache, state.Cache)
	cache.FillWithNewSubTreeData(a.Cache, state.Cache, dp)
	return done(navigated(state, href, pendingPush, newTree, a.Cache)), nil
}

// patched is the state after a server patch. Only the tree and cache change.
func patched(state State, tree *routerstate.Tree, root *cache.Node) State {
	next := state
	next.Tree = tree
	next.Cache = root
	return next
}

func (r *Reducer) serverPatch(state State, a ServerPatch) (Result, error) {
	log := r.logger().With("action", a.Kind())
	if !routerstate.Equal(a.PreviousTree, state.Tree) {
		log.Info("dropping stale server patch")
		return done(state), nil
	}

	m := a.Mutable
	if m.PatchedTree != nil {
		return done(patched(state, m.PatchedTree, a.Cache)), nil
	}

	if a.FlightData.IsMPA() {
		log.Info("server patch leaves the app router", "target", a.FlightData.MPA)
		return done(mpa(state, a.FlightData.MPA)), nil
	}

	dp, err := firstPath(a.FlightData, log)
	if err != nil {
		return Result{State: state}, fmt.Errorf("server patch: %w", err)
	}
	newTree, ok := routerstate.ApplyPatch(dp.Path, state.Tree, dp.TreePatch)
	if !ok {
		return Result{State: state}, fmt.Errorf("server patch at %s: %w", dp.Path, ErrSegmentMismatch)
	}
	m.PatchedTree = newTree

	cache.AdoptRoot(a.Cache, state.Cache)
	cache.FillWithNewSubTreeData(a.Cache, state.Cache, dp)
	return done(patched(state, newTree, a.Cache)), nil
}

func restore(state State, a Restore) State {
	next := state
	next.CanonicalURL = Href(a.URL)
	next.Tree = a.Tree
	return next
}

func (r *Reducer) reload(ctx context.Context, state State, a Reload) (Result, error) {
	href := state.CanonicalURL
	m := a.Mutable
	log := r.logger().With("action", a.Kind(), "href", href)

	if m.PatchedTree != nil && routerstate.Equal(m.PreviousTree, state.Tree) {
		next := state
		next.Tree = m.PatchedTree
		next.Cache = a.Cache
		next.FocusAndScrollRef = FocusAndScrollRef{Apply: true}
		return done(next), nil
	}

	fetch := a.Cache.EnsureFetch(func() *cache.Fetch {
		refetch := *state.Tree
		refetch.Refresh = true
		return r.start(ctx, href, &refetch)
	})
	data, err := fetch.Read()
	if errors.Is(err, cache.ErrPending) {
		return Result{State: state, Pending: fetch}, nil
	}
	if err != nil {
		return Result{State: state}, fmt.Errorf("reload %s: %w", href, err)
	}
	if data.IsMPA() {
		return done(mpa(state, data.MPA)), nil
	}

	a.Cache.Data = nil
	dp, err := firstPath(data, log)
	if err != nil {
		return Result{State: state}, fmt.Errorf("reload %s: %w", href, err)
	}
	if !dp.IsRoot() {
		log.Warn("reload returned a partial render, keeping current state", "path", dp.Path.String())
		return done(state), nil
	}
	newTree, ok := routerstate.ApplyPatch(nil, state.Tree, dp.TreePatch)
	if !ok {
		return Result{State: state}, fmt.Errorf("reload %s: %w", href, ErrSegmentMismatch)
	}
	m.PreviousTree = state.Tree
	m.PatchedTree = newTree
	a.Cache.SubTreeData = dp.SubTreeData

	next := state
	next.Tree = newTree
	next.Cache = a.Cache
	next.CanonicalURL = href
	next.FocusAndScrollRef = FocusAndScrollRef{Apply: false}
	return done(next), nil
}

func (r *Reducer) prefetch(state State, a Prefetch) State {
	if a.FlightData.IsMPA() {
		return state
	}
	dp, ok := a.FlightData.First()
	if !ok {
		return state
	}
	href := Href(a.URL)
	if dp.SubTreeData != nil {
		cache.FillWithPrefetchedSubTreeData(state.Cache, dp)
	}
	if state.PrefetchCache == nil {
		state.PrefetchCache = PrefetchCache{}
	}
	state.PrefetchCache[href] = PrefetchEntry{
		Path:      dp.Path,
		Segment:   dp.Segment,
		TreePatch: dp.TreePatch,
		FetchedAt: r.now(),
	}
	r.logger().Debug("prefetched", "href", href, "payload", dp.SubTreeData != nil)
	return state
}
