package layout

import (
	"github.com/five82/wayfinder/internal/cache"
	"github.com/five82/wayfinder/internal/flight"
	"github.com/five82/wayfinder/internal/router"
	"github.com/five82/wayfinder/internal/routerstate"
	"github.com/five82/wayfinder/internal/segment"
)

// Frame is one rendered segment of the page.
type Frame struct {
	Slot     string
	Segment  segment.Segment
	Kind     Kind
	Payload  flight.Payload
	Children []Frame
}

// Page is the outcome of resolving every layout router for a state.
type Page struct {
	Root Frame
	// Pending holds the fetches that suspended frames wait on.
	Pending []*cache.Fetch
	// Patch is the first server patch a layout router bubbled up.
	Patch *router.ServerPatch
	// HardNavigate is set when a lazy fetch left the app router.
	HardNavigate string
	// Errors collects per-slot failures; the rest of the page still resolves.
	Errors []error
}

// ResolvePage resolves the whole tree of state, slot by slot, starting lazy
// fetches through start. It must run under the state write lock.
func ResolvePage(state router.State, start StartFunc) Page {
	var page Page
	page.Root = Frame{
		Segment: state.Tree.Segment,
		Kind:    Render,
		Payload: state.Cache.SubTreeData,
	}
	resolveChildren(&page, &page.Root, state, nil, state.Tree, state.Cache, start)
	return page
}

func resolveChildren(page *Page, frame *Frame, state router.State, path routerstate.SegmentPath, tree *routerstate.Tree, node *cache.Node, start StartFunc) {
	for _, slot := range tree.SlotKeys() {
		in := Input{
			Slot:        slot,
			SegmentPath: path.Append(tree.Segment, slot),
			Tree:        tree,
			FullTree:    state.Tree,
			Parent:      node,
			URL:         state.CanonicalURL,
			Start:       start,
		}
		if seg, child, ok := flight.ChildPayload(frame.Payload, slot); ok {
			in.ChildSegment = seg
			in.ChildPayload = child
		}

		out, err := Resolve(in)
		if err != nil {
			page.Errors = append(page.Errors, err)
			continue
		}
		child := Frame{Slot: slot, Segment: out.Segment, Kind: out.Kind}
		switch out.Kind {
		case Render:
			child.Payload = out.Node.SubTreeData
			resolveChildren(page, &child, state, in.SegmentPath, tree.Child(slot), out.Node, start)
		case Suspend:
			if out.Pending != nil {
				page.Pending = append(page.Pending, out.Pending)
			}
		case ServerPatch:
			if page.Patch == nil {
				patch := out.Patch
				page.Patch = &patch
			}
		case HardNavigate:
			if page.HardNavigate == "" {
				page.HardNavigate = out.Target
			}
		}
		frame.Children = append(frame.Children, child)
	}
}
