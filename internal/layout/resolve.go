package layout

import (
	"errors"
	"fmt"

	"github.com/five82/wayfinder/internal/cache"
	"github.com/five82/wayfinder/internal/flight"
	"github.com/five82/wayfinder/internal/router"
	"github.com/five82/wayfinder/internal/routerstate"
	"github.com/five82/wayfinder/internal/segment"
)

// Kind is what a layout router does with its slot.
type Kind int

const (
	// Render means the child node holds output to render.
	Render Kind = iota
	// Suspend means the child is waiting on data.
	Suspend
	// ServerPatch means a lazy fetch returned data for a different part of
	// the tree; the outcome's Patch must be dispatched.
	ServerPatch
	// HardNavigate means the target is outside the app router.
	HardNavigate
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case Suspend:
		return "suspend"
	case ServerPatch:
		return "server-patch"
	case HardNavigate:
		return "hard-navigate"
	default:
		return "unknown"
	}
}

// StartFunc starts a lazy fetch of href with the given router tree.
type StartFunc func(href string, tree *routerstate.Tree) *cache.Fetch

// Input describes one layout router: the slot it renders under a parent
// segment and everything it needs to find or fetch the child.
type Input struct {
	Slot string
	// SegmentPath addresses the parent and ends with (parent segment, Slot).
	SegmentPath routerstate.SegmentPath
	// Tree is the parent's router state; FullTree is the whole tree.
	Tree     *routerstate.Tree
	FullTree *routerstate.Tree
	// Parent is the parent's cache node.
	Parent *cache.Node
	// ChildPayload is the child as rendered by the server along with the
	// parent, if any; ChildSegment is the segment it renders.
	ChildPayload flight.Payload
	ChildSegment segment.Segment
	URL          string
	Start        StartFunc
}

// Outcome is the result of resolving one slot.
type Outcome struct {
	Kind    Kind
	Segment segment.Segment
	Node    *cache.Node
	// Pending is set for Suspend when a fetch is in flight. A Suspend with no
	// fetch waits for a server patch elsewhere in the tree.
	Pending *cache.Fetch
	Patch   router.ServerPatch
	Target  string
}

// Resolve finds the cache node for the child in in.Slot, installing the
// server-provided child or starting a lazy fetch when it is missing. It
// mutates the published cache and must run under the state write lock.
func Resolve(in Input) (Outcome, error) {
	childNodes := in.Parent.EnsureSlot(in.Slot)

	seg := in.ChildSegment
	if child := in.Tree.Child(in.Slot); child != nil {
		seg = child.Segment
	}
	key := seg.Key()
	node := childNodes.Get(key)

	if node == nil && in.ChildPayload != nil && in.ChildSegment.Key() == key {
		node = cache.NewReady(in.ChildPayload)
		childNodes.Set(key, node)
	}

	if node == nil {
		if in.Start == nil {
			return Outcome{}, errors.New("layout: no fetcher for lazy fetch")
		}
		refetch := routerstate.WithRefetch(in.SegmentPath, in.FullTree)
		node = cache.NewFetching(in.Start(in.URL, refetch))
		childNodes.Set(key, node)
	}

	if err := node.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("layout %s: %w", in.SegmentPath, err)
	}

	if node.Data != nil {
		data, err := node.Data.Read()
		if errors.Is(err, cache.ErrPending) {
			return Outcome{Kind: Suspend, Segment: seg, Node: node, Pending: node.Data}, nil
		}
		if err != nil {
			childNodes.Delete(key)
			return Outcome{}, fmt.Errorf("layout %s: fetch %s: %w", in.SegmentPath, key, err)
		}
		if data.IsMPA() {
			return Outcome{Kind: HardNavigate, Segment: seg, Target: in.URL}, nil
		}

		if dp, ok := data.First(); ok && len(data.Paths) == 1 && dp.Path.Equal(in.SegmentPath) {
			node.Data = nil
			node.SubTreeData = dp.SubTreeData
			node.ParallelRoutes = map[string]*cache.SegmentMap{}
		} else {
			node.Data = nil
			return Outcome{
				Kind:    ServerPatch,
				Segment: seg,
				Patch:   router.NewServerPatch(data, in.FullTree),
			}, nil
		}
	}

	if node.SubTreeData == nil {
		return Outcome{Kind: Suspend, Segment: seg, Node: node}, nil
	}
	return Outcome{Kind: Render, Segment: seg, Node: node}, nil
}
