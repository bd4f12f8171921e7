package routerstate

import (
	"fmt"
	"strings"

	"github.com/five82/wayfinder/internal/segment"
)

// Hop is one (segment, parallel route key) step from a node to its child.
type Hop struct {
	Segment          segment.Segment
	ParallelRouteKey string
}

// SegmentPath addresses a node from the root. An empty path addresses the
// root itself.
type SegmentPath []Hop

// String renders the path as seg/key/seg/key for logs.
func (p SegmentPath) String() string {
	parts := make([]string, 0, len(p)*2)
	for _, hop := range p {
		parts = append(parts, hop.Segment.String(), hop.ParallelRouteKey)
	}
	return strings.Join(parts, "/")
}

// Equal reports whether two paths have identical hops.
func (p SegmentPath) Equal(other SegmentPath) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Append returns a new path with hop added; p is never modified.
func (p SegmentPath) Append(seg segment.Segment, key string) SegmentPath {
	out := make(SegmentPath, len(p), len(p)+1)
	copy(out, p)
	return append(out, Hop{Segment: seg, ParallelRouteKey: key})
}

// ApplyPatch returns a tree with patch installed at path. Only the nodes on
// the path are reallocated; untouched slots are shared with tree. The second
// result is false when a hop does not match the tree (segment mismatch).
func ApplyPatch(path SegmentPath, tree, patch *Tree) (*Tree, bool) {
	if len(path) == 0 {
		if patch == nil {
			return nil, false
		}
		root := *patch
		return &root, true
	}

	hop := path[0]
	if tree == nil || !segment.Match(hop.Segment, tree.Segment) {
		return nil, false
	}

	child := patch
	if len(path) > 1 {
		var ok bool
		child, ok = ApplyPatch(path[1:], tree.ParallelRoutes[hop.ParallelRouteKey], patch)
		if !ok {
			return nil, false
		}
	}

	routes := make(map[string]*Tree, len(tree.ParallelRoutes)+1)
	for k, v := range tree.ParallelRoutes {
		routes[k] = v
	}
	routes[hop.ParallelRouteKey] = child
	return &Tree{Segment: hop.Segment, ParallelRoutes: routes}, true
}

// Lookup returns the node addressed by path, or nil when a hop does not match.
func Lookup(path SegmentPath, tree *Tree) *Tree {
	for _, hop := range path {
		if tree == nil || !segment.Match(hop.Segment, tree.Segment) {
			return nil
		}
		tree = tree.ParallelRoutes[hop.ParallelRouteKey]
	}
	return tree
}

// ShouldHardNavigate reports whether a dynamic segment along path changed
// value compared to tree. The patch's own segment is compared against the
// node currently in the final slot.
func ShouldHardNavigate(path SegmentPath, tree, patch *Tree) bool {
	for _, hop := range path {
		if tree == nil {
			return false
		}
		if hop.Segment.IsDynamic() && !segment.Match(hop.Segment, tree.Segment) {
			return true
		}
		tree = tree.ParallelRoutes[hop.ParallelRouteKey]
	}
	if patch == nil || tree == nil {
		return false
	}
	return patch.Segment.IsDynamic() && !segment.Match(patch.Segment, tree.Segment)
}

// CreateOptimisticTree builds a children-only tree from URL path segments,
// reusing slots of existing while the leading segment still matches. The
// first node that diverges is marked for refetch; nodes below it are not,
// since the server renders the whole subtree from that point.
func CreateOptimisticTree(segments []string, existing *Tree, parentRefetch bool) *Tree {
	if len(segments) == 0 {
		return existing
	}
	seg := segment.New(segments[0])
	matches := existing != nil && segment.Match(existing.Segment, seg)
	refetchHere := !matches

	routes := map[string]*Tree{}
	if matches {
		for k, v := range existing.ParallelRoutes {
			routes[k] = v
		}
	}

	if len(segments) > 1 {
		var next *Tree
		if matches {
			next = existing.ParallelRoutes[Children]
		}
		routes[Children] = CreateOptimisticTree(segments[1:], next, parentRefetch || refetchHere)
	}

	tree := &Tree{Segment: seg, ParallelRoutes: routes}
	if !parentRefetch && refetchHere {
		tree.Refresh = true
	}
	return tree
}

// WithRefetch copies tree along path and marks the node in the last hop's
// slot with Refresh, so the server starts rendering there. The tree is
// returned unchanged when path does not fit it.
func WithRefetch(path SegmentPath, tree *Tree) *Tree {
	if len(path) == 0 || tree == nil {
		return tree
	}
	hop := path[0]
	if !segment.Match(hop.Segment, tree.Segment) {
		return tree
	}
	child, ok := tree.ParallelRoutes[hop.ParallelRouteKey]
	if !ok || child == nil {
		return tree
	}

	var replaced *Tree
	if len(path) == 1 {
		marked := *child
		marked.Refresh = true
		replaced = &marked
	} else {
		replaced = WithRefetch(path[1:], child)
	}

	out := &Tree{Segment: tree.Segment}
	out.ParallelRoutes = tree.shallow().ParallelRoutes
	out.ParallelRoutes[hop.ParallelRouteKey] = replaced
	return out
}

// Outline renders the tree as indented lines, one per node.
func Outline(t *Tree) []string {
	var lines []string
	var walk func(node *Tree, slot string, depth int)
	walk = func(node *Tree, slot string, depth int) {
		if node == nil {
			return
		}
		label := node.Segment.String()
		if label == "" {
			label = `""`
		}
		line := strings.Repeat("  ", depth)
		if slot != "" {
			line += fmt.Sprintf("@%s ", slot)
		}
		line += label
		if node.Refresh {
			line += " (refetch)"
		}
		lines = append(lines, line)
		for _, key := range node.SlotKeys() {
			walk(node.ParallelRoutes[key], key, depth+1)
		}
	}
	walk(t, "", 0)
	return lines
}
