package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/five82/wayfinder/internal/cache"
	"github.com/five82/wayfinder/internal/flight"
	"github.com/five82/wayfinder/internal/layout"
	"github.com/five82/wayfinder/internal/router"
	"github.com/five82/wayfinder/internal/routerstate"
	"github.com/five82/wayfinder/internal/state"
)

// ErrNoHistory is returned by Back and Forward at either end of history.
var ErrNoHistory = errors.New("no history entry")

// Transport is what the router needs from the Flight client.
type Transport interface {
	flight.Fetcher
	FetchBootstrap(ctx context.Context, href string) (flight.Bootstrap, error)
}

// Ensure the HTTP client satisfies Transport at compile time.
var _ Transport = (*flight.Client)(nil)

// Boot performs a first load of href and returns the initial router state.
// A target outside the app router is an error since there is nothing to
// route yet.
func Boot(ctx context.Context, t Transport, href string) (router.State, error) {
	boot, err := t.FetchBootstrap(ctx, href)
	if err != nil {
		return router.State{}, err
	}
	if boot.FlightData.IsMPA() {
		return router.State{}, fmt.Errorf("%s is not served by the app router", boot.FlightData.MPA)
	}
	return stateFromBootstrap(boot), nil
}

func stateFromBootstrap(boot flight.Bootstrap) router.State {
	var root *cache.Node
	if dp, ok := boot.FlightData.First(); ok {
		root = cache.NewReady(dp.SubTreeData)
	}
	return router.NewState(boot.CanonicalURL, boot.Tree, root)
}

// Router is the imperative API over the store: the operations a link or a
// key binding triggers.
type Router struct {
	ctx       context.Context
	store     *state.Store
	transport Transport
	prefetch  *PrefetchWorker
	logger    *slog.Logger
}

// NewRouter returns a router. ctx bounds the lazy fetches started while
// resolving layouts. prefetch may be nil, in which case Prefetch runs
// inline.
func NewRouter(ctx context.Context, store *state.Store, transport Transport, prefetch *PrefetchWorker, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{ctx: ctx, store: store, transport: transport, prefetch: prefetch, logger: logger}
}

// Store exposes the underlying store for readers.
func (r *Router) Store() *state.Store {
	return r.store
}

// Push navigates to href and adds a history entry.
func (r *Router) Push(ctx context.Context, href string) error {
	return r.Navigate(ctx, href, router.Push, false)
}

// Replace navigates to href in place of the current history entry.
func (r *Router) Replace(ctx context.Context, href string) error {
	return r.Navigate(ctx, href, router.Replace, false)
}

// Navigate dispatches a navigation. forceOptimistic lets the reducer render
// the target from cache before the server answers.
func (r *Router) Navigate(ctx context.Context, href string, typ router.NavigateType, forceOptimistic bool) error {
	u, err := r.resolve(href)
	if err != nil {
		return err
	}
	st, err := r.store.Dispatch(ctx, router.NewNavigate(u, typ, forceOptimistic))
	if err != nil {
		return err
	}
	return r.follow(ctx, st)
}

// Refresh refetches the current page from the root.
func (r *Router) Refresh(ctx context.Context) error {
	st, err := r.store.Dispatch(ctx, router.NewReload())
	if err != nil {
		return err
	}
	return r.follow(ctx, st)
}

// Prefetch warms the cache for href in the background.
func (r *Router) Prefetch(ctx context.Context, href string) error {
	if r.prefetch != nil {
		if !r.prefetch.Enqueue(href) {
			r.logger.Debug("prefetch queue full, dropping", "href", href)
		}
		return nil
	}
	return prefetchOnce(ctx, r.store, r.transport, href, 0, time.Now, r.logger)
}

// Back restores the previous history entry.
func (r *Router) Back(ctx context.Context) error {
	restore, ok := r.store.Back()
	if !ok {
		return ErrNoHistory
	}
	_, err := r.store.Dispatch(ctx, restore)
	return err
}

// Forward restores the next history entry.
func (r *Router) Forward(ctx context.Context) error {
	restore, ok := r.store.Forward()
	if !ok {
		return ErrNoHistory
	}
	_, err := r.store.Dispatch(ctx, restore)
	return err
}

// Render resolves every layout router of the current state. Lazy fetches it
// starts are bound to the router's context.
func (r *Router) Render() layout.Page {
	var page layout.Page
	r.store.Render(func(st router.State) {
		page = layout.ResolvePage(st, r.startLazy)
	})
	return page
}

// Settle acts on what Render could not finish: a hard navigation is loaded,
// a bubbled server patch is dispatched, otherwise pending lazy fetches are
// awaited. Callers render again afterwards.
func (r *Router) Settle(ctx context.Context, page layout.Page) error {
	if page.HardNavigate != "" {
		return r.load(ctx, page.HardNavigate, true)
	}
	if page.Patch != nil {
		st, err := r.store.Dispatch(ctx, *page.Patch)
		if err != nil {
			return err
		}
		return r.follow(ctx, st)
	}
	for _, f := range page.Pending {
		if _, err := f.Wait(ctx); errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return nil
}

func (r *Router) startLazy(href string, tree *routerstate.Tree) *cache.Fetch {
	return cache.StartFetch(r.ctx, func(ctx context.Context) (flight.Data, error) {
		return r.transport.Fetch(ctx, href, tree, false)
	})
}

// follow completes a committed navigation that left the app router by doing
// a full load of the target, like a browser assigning location.
func (r *Router) follow(ctx context.Context, st router.State) error {
	if !st.PushRef.MPANavigation {
		return nil
	}
	return r.load(ctx, st.CanonicalURL, false)
}

func (r *Router) load(ctx context.Context, href string, push bool) error {
	boot, err := r.transport.FetchBootstrap(ctx, href)
	if err != nil {
		r.store.Fail(err)
		return fmt.Errorf("load %s: %w", href, err)
	}
	if boot.FlightData.IsMPA() {
		r.logger.Info("target is outside the app router", "href", boot.FlightData.MPA)
		return nil
	}
	next := stateFromBootstrap(boot)
	next.PushRef.PendingPush = push
	r.store.Reset(next)
	r.logger.Info("loaded document", "href", boot.CanonicalURL)
	return nil
}

// resolve parses href relative to the current canonical URL.
func (r *Router) resolve(href string) (*url.URL, error) {
	return resolveHref(r.store.Snapshot().Router.CanonicalURL, href)
}

func resolveHref(current, href string) (*url.URL, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("parse href %q: %w", href, err)
	}
	base, err := url.Parse(current)
	if err != nil || current == "" {
		base = &url.URL{Path: "/"}
	}
	return base.ResolveReference(ref), nil
}
