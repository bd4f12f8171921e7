package router

import (
	"net/url"

	"github.com/five82/wayfinder/internal/cache"
	"github.com/five82/wayfinder/internal/flight"
	"github.com/five82/wayfinder/internal/routerstate"
)

// Action is one of Navigate, ServerPatch, Restore, Reload or Prefetch.
type Action interface {
	Kind() string
}

// Mutable records what a reducer invocation already computed for an action.
// Re-invoking the reducer with the same action replays it instead of
// recomputing, which keeps repeated invocations free of side effects.
type Mutable struct {
	PreviousTree     *routerstate.Tree
	PatchedTree      *routerstate.Tree
	UseExistingCache bool
}

// NavigateType selects whether a navigation pushes or replaces history.
type NavigateType int

const (
	Push NavigateType = iota
	Replace
)

func (t NavigateType) String() string {
	if t == Replace {
		return "replace"
	}
	return "push"
}

// Navigate moves to URL. The action's Cache is the new cache root under
// construction and must be reused when the action is dispatched again.
type Navigate struct {
	URL                       *url.URL
	NavigateType              NavigateType
	ForceOptimisticNavigation bool
	Cache                     *cache.Node
	Mutable                   *Mutable
}

// NewNavigate returns a navigate action with a fresh cache root.
func NewNavigate(u *url.URL, typ NavigateType, forceOptimistic bool) Navigate {
	return Navigate{
		URL:                       u,
		NavigateType:              typ,
		ForceOptimisticNavigation: forceOptimistic,
		Cache:                     cache.NewRoot(),
		Mutable:                   &Mutable{},
	}
}

func (Navigate) Kind() string { return "navigate" }

// ServerPatch applies Flight data that a layout router could not consume
// directly. PreviousTree is the tree the data was requested against.
type ServerPatch struct {
	FlightData   flight.Data
	PreviousTree *routerstate.Tree
	Cache        *cache.Node
	Mutable      *Mutable
}

// NewServerPatch returns a server-patch action with a fresh cache root.
func NewServerPatch(data flight.Data, previousTree *routerstate.Tree) ServerPatch {
	return ServerPatch{
		FlightData:   data,
		PreviousTree: previousTree,
		Cache:        cache.NewRoot(),
		Mutable:      &Mutable{},
	}
}

func (ServerPatch) Kind() string { return "server-patch" }

// Restore adopts a router tree recorded in history.
type Restore struct {
	URL  *url.URL
	Tree *routerstate.Tree
}

func (Restore) Kind() string { return "restore" }

// Reload refetches the whole page for the current canonical URL.
type Reload struct {
	Cache   *cache.Node
	Mutable *Mutable
}

// NewReload returns a reload action with a fresh cache root.
func NewReload() Reload {
	return Reload{Cache: cache.NewRoot(), Mutable: &Mutable{}}
}

func (Reload) Kind() string { return "reload" }

// Prefetch records Flight data fetched ahead of a navigation.
type Prefetch struct {
	URL        *url.URL
	FlightData flight.Data
}

func (Prefetch) Kind() string { return "prefetch" }
