package cache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/five82/wayfinder/internal/flight"
	"github.com/five82/wayfinder/internal/routerstate"
	"github.com/five82/wayfinder/internal/segment"
)

// ErrBothDataAndSubTree reports a node holding an in-flight fetch and
// rendered output at the same time.
var ErrBothDataAndSubTree = errors.New("cache node has both data and subTreeData")

// Status is the lifecycle stage of a node.
type Status int

const (
	LazyInitialized Status = iota
	DataFetch
	Ready
)

func (s Status) String() string {
	switch s {
	case LazyInitialized:
		return "lazy"
	case DataFetch:
		return "fetching"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// shared is the owner of nodes that belong to no transition. Nodes created by
// prefetches, lazy layout fills and bootstraps carry it, so every transition
// treats them as borrowed.
const shared uint64 = 0

var owners atomic.Uint64

// Node holds render artifacts for one segment plus its child slots.
type Node struct {
	Data           *Fetch
	SubTreeData    flight.Payload
	ParallelRoutes map[string]*SegmentMap

	// owner is the transition allowed to mutate this node in place.
	owner uint64
}

// SegmentMap maps segment keys to the cached node for each segment shown in
// one parallel route slot.
type SegmentMap struct {
	nodes map[string]*Node
	owner uint64
}

// NewRoot returns an empty node owned by a new transition. Nodes cloned into
// it while reconciling inherit that ownership.
func NewRoot() *Node {
	return &Node{ParallelRoutes: map[string]*SegmentMap{}, owner: owners.Add(1)}
}

// NewReady returns a shared node holding rendered output.
func NewReady(payload flight.Payload) *Node {
	return &Node{SubTreeData: payload, ParallelRoutes: map[string]*SegmentMap{}, owner: shared}
}

// NewFetching returns a shared node holding an in-flight fetch.
func NewFetching(f *Fetch) *Node {
	return &Node{Data: f, ParallelRoutes: map[string]*SegmentMap{}, owner: shared}
}

// Status reports whether the node is lazily initialised, fetching or ready.
func (n *Node) Status() Status {
	switch {
	case n.Data != nil:
		return DataFetch
	case n.SubTreeData != nil:
		return Ready
	default:
		return LazyInitialized
	}
}

// Validate checks the data/subTreeData exclusivity invariant.
func (n *Node) Validate() error {
	if n.Data != nil && n.SubTreeData != nil {
		return ErrBothDataAndSubTree
	}
	return nil
}

// Slot returns the segment map for a parallel route key, or nil.
func (n *Node) Slot(key string) *SegmentMap {
	if n == nil {
		return nil
	}
	return n.ParallelRoutes[key]
}

// EnsureSlot returns the segment map for key, creating an empty one.
func (n *Node) EnsureSlot(key string) *SegmentMap {
	if m := n.ParallelRoutes[key]; m != nil {
		return m
	}
	if n.ParallelRoutes == nil {
		n.ParallelRoutes = map[string]*SegmentMap{}
	}
	m := &SegmentMap{nodes: map[string]*Node{}, owner: n.owner}
	n.ParallelRoutes[key] = m
	return m
}

// Child looks up the node for seg in slot key.
func (n *Node) Child(key string, seg segment.Segment) *Node {
	return n.Slot(key).Get(seg.Key())
}

// Lookup follows path and leaf from n. It returns nil on the first miss.
func (n *Node) Lookup(path routerstate.SegmentPath, leaf segment.Segment) *Node {
	node := n
	for _, st := range steps(path, leaf) {
		node = node.Child(st.key, st.segment)
		if node == nil {
			return nil
		}
	}
	return node
}

// EnsureFetch assigns Data from start only when no fetch is in flight, so
// repeated attempts share one fetch.
func (n *Node) EnsureFetch(start FetchFunc) *Fetch {
	if n.Data == nil {
		n.Data = start()
	}
	return n.Data
}

// SlotKeys returns the node's slot keys, children first.
func (n *Node) SlotKeys() []string {
	keys := make([]string, 0, len(n.ParallelRoutes))
	for k := range n.ParallelRoutes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == routerstate.Children || keys[j] == routerstate.Children {
			return keys[i] == routerstate.Children && keys[j] != routerstate.Children
		}
		return keys[i] < keys[j]
	})
	return keys
}

// ownedBy reports whether the transition holding owner may mutate n in place.
func (n *Node) ownedBy(owner uint64) bool {
	return n.owner != shared && n.owner == owner
}

func (m *SegmentMap) ownedBy(owner uint64) bool {
	return m.owner != shared && m.owner == owner
}

func (n *Node) cloneFor(owner uint64) *Node {
	dup := &Node{
		Data:           n.Data,
		SubTreeData:    n.SubTreeData,
		ParallelRoutes: make(map[string]*SegmentMap, len(n.ParallelRoutes)),
		owner:          owner,
	}
	for k, m := range n.ParallelRoutes {
		dup.ParallelRoutes[k] = m
	}
	return dup
}

// Get returns the node stored for a segment key.
func (m *SegmentMap) Get(key string) *Node {
	if m == nil {
		return nil
	}
	return m.nodes[key]
}

// Set stores node under key. Callers must hold the state lock; published
// maps are only extended this way by the layout router and prefetches.
func (m *SegmentMap) Set(key string, node *Node) {
	m.nodes[key] = node
}

// Delete removes the node stored for key.
func (m *SegmentMap) Delete(key string) {
	delete(m.nodes, key)
}

// Len returns the number of cached segments.
func (m *SegmentMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.nodes)
}

// Keys returns the cached segment keys in sorted order.
func (m *SegmentMap) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m.nodes))
	for k := range m.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *SegmentMap) cloneFor(owner uint64) *SegmentMap {
	dup := &SegmentMap{nodes: make(map[string]*Node, len(m.nodes)+1), owner: owner}
	for k, v := range m.nodes {
		dup.nodes[k] = v
	}
	return dup
}

// Outline renders the cache as indented lines with node status.
func Outline(root *Node) []string {
	if root == nil {
		return nil
	}
	lines := []string{fmt.Sprintf("<root> %s", root.Status())}
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		for _, slot := range n.SlotKeys() {
			m := n.ParallelRoutes[slot]
			for _, key := range m.Keys() {
				child := m.Get(key)
				label := key
				if label == "" {
					label = `""`
				}
				lines = append(lines, fmt.Sprintf("%s@%s %s %s", strings.Repeat("  ", depth), slot, label, child.Status()))
				walk(child, depth+1)
			}
		}
	}
	walk(root, 1)
	return lines
}
