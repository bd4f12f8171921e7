package cache

import (
	"github.com/five82/wayfinder/internal/flight"
	"github.com/five82/wayfinder/internal/routerstate"
	"github.com/five82/wayfinder/internal/segment"
)

// step addresses one child: the slot key in the parent and the child's segment.
type step struct {
	key     string
	segment segment.Segment
}

// steps converts a router path (which starts at the root segment) and the
// segment rendered at its end into parent-to-child steps below the root.
func steps(path routerstate.SegmentPath, leaf segment.Segment) []step {
	out := make([]step, len(path))
	for i, hop := range path {
		next := leaf
		if i+1 < len(path) {
			next = path[i+1].Segment
		}
		out[i] = step{key: hop.ParallelRouteKey, segment: next}
	}
	return out
}

// AdoptRoot shares existing's root-level slots and output with a fresh
// transition root so untouched subtrees keep their identity.
func AdoptRoot(newCache, existing *Node) {
	if existing == nil {
		return
	}
	if newCache.SubTreeData == nil && newCache.Data == nil {
		newCache.SubTreeData = existing.SubTreeData
	}
	for key, m := range existing.ParallelRoutes {
		if _, ok := newCache.ParallelRoutes[key]; !ok {
			newCache.ParallelRoutes[key] = m
		}
	}
}

// slotFor returns newCache's segment map for key, cloning existingMap into
// newCache's ownership when newCache does not own one yet.
func slotFor(newCache *Node, key string, existingMap *SegmentMap) *SegmentMap {
	m := newCache.ParallelRoutes[key]
	if m == nil || !m.ownedBy(newCache.owner) {
		m = existingMap.cloneFor(newCache.owner)
		newCache.ParallelRoutes[key] = m
	}
	return m
}

// claim returns child cloned into owner's ownership when it is borrowed.
func claim(m *SegmentMap, key string, child *Node, owner uint64) *Node {
	if child.ownedBy(owner) {
		return child
	}
	child = child.cloneFor(owner)
	m.nodes[key] = child
	return child
}

// FillWithNewSubTreeData installs dp's rendered output into newCache, copying
// every node on the way down that newCache does not own yet. Siblings of the
// installed node that the tree patch names are dropped so they refetch.
func FillWithNewSubTreeData(newCache, existing *Node, dp flight.DataPath) {
	if dp.IsRoot() {
		newCache.SubTreeData = dp.SubTreeData
		newCache.Data = nil
		InvalidateByRouterState(newCache, existing, dp.TreePatch)
		return
	}
	fillNew(newCache, existing, steps(dp.Path, dp.Segment), dp)
}

func fillNew(newCache, existing *Node, path []step, dp flight.DataPath) {
	st := path[0]
	existingMap := existing.Slot(st.key)
	if existingMap == nil {
		return
	}
	childMap := slotFor(newCache, st.key, existingMap)
	key := st.segment.Key()
	existingChild := existingMap.Get(key)
	child := childMap.Get(key)

	if len(path) == 1 {
		if child == nil || child.Data == nil || !child.ownedBy(newCache.owner) {
			fresh := &Node{
				SubTreeData:    dp.SubTreeData,
				ParallelRoutes: map[string]*SegmentMap{},
				owner:          newCache.owner,
			}
			if existingChild != nil {
				for k, m := range existingChild.ParallelRoutes {
					fresh.ParallelRoutes[k] = m
				}
				InvalidateByRouterState(fresh, existingChild, dp.TreePatch)
			}
			childMap.nodes[key] = fresh
		}
		return
	}

	if child == nil || existingChild == nil {
		return
	}
	child = claim(childMap, key, child, newCache.owner)
	fillNew(child, existingChild, path[1:], dp)
}

// InvalidateByRouterState drops, for every slot in rs, the cached child whose
// segment rs names. Only one level is touched.
func InvalidateByRouterState(newCache, existing *Node, rs *routerstate.Tree) {
	if rs == nil || existing == nil {
		return
	}
	for key, child := range rs.ParallelRoutes {
		existingMap := existing.Slot(key)
		if child == nil || existingMap == nil {
			continue
		}
		m := existingMap.cloneFor(newCache.owner)
		delete(m.nodes, child.Segment.Key())
		newCache.ParallelRoutes[key] = m
	}
}

// InvalidateBelowSegmentPath removes the node addressed by path and leaf from
// newCache so the layout router refetches it.
func InvalidateBelowSegmentPath(newCache, existing *Node, path routerstate.SegmentPath, leaf segment.Segment) {
	if len(path) == 0 {
		return
	}
	invalidateBelow(newCache, existing, steps(path, leaf))
}

func invalidateBelow(newCache, existing *Node, path []step) {
	st := path[0]
	existingMap := existing.Slot(st.key)
	if existingMap == nil {
		return
	}
	childMap := slotFor(newCache, st.key, existingMap)
	key := st.segment.Key()

	if len(path) == 1 {
		delete(childMap.nodes, key)
		return
	}

	existingChild := existingMap.Get(key)
	child := childMap.Get(key)
	if child == nil || existingChild == nil {
		return
	}
	child = claim(childMap, key, child, newCache.owner)
	invalidateBelow(child, existingChild, path[1:])
}

// FillWithPrefetchedSubTreeData adds dp's output to existing in place. It only
// inserts nodes that are missing and never replaces or removes one.
func FillWithPrefetchedSubTreeData(existing *Node, dp flight.DataPath) {
	if dp.IsRoot() {
		return
	}
	node := existing
	path := steps(dp.Path, dp.Segment)
	for i, st := range path {
		m := node.Slot(st.key)
		if m == nil {
			return
		}
		key := st.segment.Key()
		child := m.Get(key)
		if i == len(path)-1 {
			if child == nil {
				m.nodes[key] = NewReady(dp.SubTreeData)
			}
			return
		}
		if child == nil {
			return
		}
		node = child
	}
}

// FillWithDataProperty walks newCache along the children slot following
// segments and attaches a fetch to the first node it has to create. It returns
// true when existing lacks a slot along the way and the caller should give up
// on the optimistic tree.
func FillWithDataProperty(newCache, existing *Node, segments []string, start FetchFunc) bool {
	if len(segments) == 0 {
		return false
	}
	existingMap := existing.Slot(routerstate.Children)
	if existingMap == nil {
		return true
	}
	childMap := slotFor(newCache, routerstate.Children, existingMap)
	key := segments[0]
	existingChild := existingMap.Get(key)
	child := childMap.Get(key)

	if len(segments) == 1 {
		if child == nil || child.Data == nil || !child.ownedBy(newCache.owner) {
			childMap.nodes[key] = &Node{
				Data:           start(),
				ParallelRoutes: map[string]*SegmentMap{},
				owner:          newCache.owner,
			}
		}
		return false
	}

	if child == nil || existingChild == nil {
		if child == nil {
			childMap.nodes[key] = &Node{
				Data:           start(),
				ParallelRoutes: map[string]*SegmentMap{},
				owner:          newCache.owner,
			}
		}
		return false
	}

	child = claim(childMap, key, child, newCache.owner)
	return FillWithDataProperty(child, existingChild, segments[1:], start)
}
