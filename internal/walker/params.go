package walker

import (
	"maps"

	"github.com/five82/wayfinder/internal/manifest"
	"github.com/five82/wayfinder/internal/routerstate"
	"github.com/five82/wayfinder/internal/segment"
)

// Params are the dynamic values visible to a segment.
type Params = manifest.Params

// DynamicParam resolves a directory name against the request's path params.
// ok is false for static directories and for a required param that has no
// value. An optional catch-all without a value resolves to an empty value.
func DynamicParam(dir string, params Params) (seg segment.Segment, ok bool) {
	param, kind, dynamic := segment.ParseParam(dir)
	if !dynamic {
		return segment.Segment{}, false
	}
	value, has := params[param]
	if !has || value == "" {
		if kind == segment.OptionalCatchAll {
			return segment.NewDynamic(param, "", kind), true
		}
		return segment.Segment{}, false
	}
	return segment.NewDynamic(param, value, kind), true
}

// resolve returns the tree segment for n and the params its subtree sees.
func resolve(n *manifest.Node, pathParams, parentParams Params) (segment.Segment, Params) {
	seg, ok := DynamicParam(n.Segment, pathParams)
	if !ok {
		return segment.New(n.Segment), parentParams
	}
	if seg.Value == "" {
		return seg, parentParams
	}
	current := maps.Clone(parentParams)
	if current == nil {
		current = Params{}
	}
	current[seg.Param] = seg.Value
	return seg, current
}

// RouterState builds the router tree for a matched manifest subtree.
func RouterState(n *manifest.Node, params Params) *routerstate.Tree {
	seg, ok := DynamicParam(n.Segment, params)
	if !ok {
		seg = segment.New(n.Segment)
	}
	t := routerstate.New(seg, nil)
	for _, key := range n.SlotKeys() {
		if child := n.Child(key); child != nil {
			t.ParallelRoutes[key] = RouterState(child, params)
		}
	}
	return t
}
