package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/five82/wayfinder/internal/segment"
)

// Params are the dynamic values matched from a URL path. Catch-all values
// are joined with "/"; an unmatched optional catch-all has no entry.
type Params map[string]string

// Match selects, for every slot, the branch that serves pathname and returns
// a pruned tree holding exactly one branch per slot. The children slot
// follows the URL; other slots keep their first branch. A directory with a
// page component that ends the path gets a page leaf with an empty segment.
func (m *Manifest) Match(pathname string) (*Node, Params, error) {
	params := Params{}
	root, ok := matchNode(m.Root, splitPath(pathname), params)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoRoute, pathname)
	}
	return root, params, nil
}

func splitPath(pathname string) []string {
	var parts []string
	for _, p := range strings.Split(pathname, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// matchNode returns a pruned copy of n for the URL parts left after n's own
// segment was consumed.
func matchNode(n *Node, rest []string, params Params) (*Node, bool) {
	out := &Node{Segment: n.Segment, Components: n.Components, Data: n.Data, Slots: map[string][]*Node{}}
	// The page only renders through its leaf.
	out.Components.Page = ""

	for key, alts := range n.Slots {
		if key == Children || len(alts) == 0 {
			continue
		}
		out.Slots[key] = []*Node{defaultBranch(alts[0])}
	}

	if len(rest) == 0 && n.Components.Page != "" {
		out.Slots[Children] = []*Node{{Segment: "", Components: Components{Page: n.Components.Page}}}
		return out, true
	}

	for _, alt := range byPrecedence(n.Slots[Children]) {
		child, ok := matchBranch(alt, rest, params)
		if ok {
			out.Slots[Children] = []*Node{child}
			return out, true
		}
	}
	return nil, false
}

func matchBranch(n *Node, rest []string, params Params) (*Node, bool) {
	param, kind, dynamic := n.Param()
	if !dynamic {
		if n.Segment == "" {
			// Route groups consume nothing.
			return matchNode(n, rest, params)
		}
		if len(rest) == 0 || rest[0] != n.Segment {
			return nil, false
		}
		return matchNode(n, rest[1:], params)
	}

	switch kind {
	case segment.Dynamic:
		if len(rest) == 0 {
			return nil, false
		}
		prev, had := params[param]
		params[param] = rest[0]
		if out, ok := matchNode(n, rest[1:], params); ok {
			return out, true
		}
		restoreParam(params, param, prev, had)
		return nil, false
	case segment.CatchAll, segment.OptionalCatchAll:
		if len(rest) == 0 {
			if kind == segment.CatchAll {
				return nil, false
			}
			return matchNode(n, nil, params)
		}
		prev, had := params[param]
		params[param] = strings.Join(rest, "/")
		if out, ok := matchNode(n, nil, params); ok {
			return out, true
		}
		restoreParam(params, param, prev, had)
		return nil, false
	}
	return nil, false
}

func restoreParam(params Params, key, prev string, had bool) {
	if had {
		params[key] = prev
		return
	}
	delete(params, key)
}

// defaultBranch prunes a non-children slot by always taking the first branch.
func defaultBranch(n *Node) *Node {
	out := &Node{Segment: n.Segment, Components: n.Components, Data: n.Data, Slots: map[string][]*Node{}}
	out.Components.Page = ""
	for key, alts := range n.Slots {
		if len(alts) > 0 {
			out.Slots[key] = []*Node{defaultBranch(alts[0])}
		}
	}
	if n.Components.Page != "" && len(out.Slots[Children]) == 0 {
		out.Slots[Children] = []*Node{{Segment: "", Components: Components{Page: n.Components.Page}}}
	}
	return out
}

// byPrecedence orders branches static, dynamic, catch-all, optional
// catch-all, keeping manifest order within a class.
func byPrecedence(alts []*Node) []*Node {
	rank := func(n *Node) int {
		_, kind, dynamic := n.Param()
		if !dynamic {
			return 0
		}
		switch kind {
		case segment.Dynamic:
			return 1
		case segment.CatchAll:
			return 2
		default:
			return 3
		}
	}
	out := append([]*Node(nil), alts...)
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}
