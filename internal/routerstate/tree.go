package routerstate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/five82/wayfinder/internal/segment"
)

// Children is the primary parallel route slot.
const Children = "children"

const refetchMarker = "refetch"

// Tree is one node of the router state. It is written into history entries
// and sent to the server, so it only holds serialisable values.
type Tree struct {
	Segment        segment.Segment
	ParallelRoutes map[string]*Tree
	URL            string
	// Refresh marks the node as a hard refetch origin.
	Refresh bool
}

// New builds a node with the given slots.
func New(seg segment.Segment, routes map[string]*Tree) *Tree {
	if routes == nil {
		routes = map[string]*Tree{}
	}
	return &Tree{Segment: seg, ParallelRoutes: routes}
}

// Child returns the node in the given slot, or nil.
func (t *Tree) Child(key string) *Tree {
	if t == nil {
		return nil
	}
	return t.ParallelRoutes[key]
}

// SlotKeys returns the parallel route keys in a stable order with
// "children" first.
func (t *Tree) SlotKeys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.ParallelRoutes))
	for k := range t.ParallelRoutes {
		keys = append(keys, k)
	}
	sortSlotKeys(keys)
	return keys
}

func sortSlotKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == Children || keys[j] == Children {
			return keys[i] == Children && keys[j] != Children
		}
		return keys[i] < keys[j]
	})
}

// Clone returns a deep copy.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	dup := &Tree{
		Segment:        t.Segment,
		URL:            t.URL,
		Refresh:        t.Refresh,
		ParallelRoutes: make(map[string]*Tree, len(t.ParallelRoutes)),
	}
	for k, child := range t.ParallelRoutes {
		dup.ParallelRoutes[k] = child.Clone()
	}
	return dup
}

// shallow copies the node header and its slot map but shares the children.
func (t *Tree) shallow() *Tree {
	dup := *t
	dup.ParallelRoutes = make(map[string]*Tree, len(t.ParallelRoutes)+1)
	for k, child := range t.ParallelRoutes {
		dup.ParallelRoutes[k] = child
	}
	return &dup
}

// Equal reports deep equality, including url and refresh markers.
func Equal(a, b *Tree) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Segment != b.Segment || a.URL != b.URL || a.Refresh != b.Refresh {
		return false
	}
	if len(a.ParallelRoutes) != len(b.ParallelRoutes) {
		return false
	}
	for k, child := range a.ParallelRoutes {
		other, ok := b.ParallelRoutes[k]
		if !ok || !Equal(child, other) {
			return false
		}
	}
	return true
}

// MarshalJSON writes [segment, {slot: tree}, url?, "refetch"?].
func (t *Tree) MarshalJSON() ([]byte, error) {
	routes := t.ParallelRoutes
	if routes == nil {
		routes = map[string]*Tree{}
	}
	parts := []any{t.Segment, routes}
	switch {
	case t.Refresh:
		var url any
		if t.URL != "" {
			url = t.URL
		}
		parts = append(parts, url, refetchMarker)
	case t.URL != "":
		parts = append(parts, t.URL)
	}
	return json.Marshal(parts)
}

// UnmarshalJSON reads the array form written by MarshalJSON.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("decode router state: %w", err)
	}
	if len(parts) < 2 || len(parts) > 4 {
		return fmt.Errorf("decode router state: want 2-4 elements, got %d", len(parts))
	}
	var decoded Tree
	if err := json.Unmarshal(parts[0], &decoded.Segment); err != nil {
		return err
	}
	if err := json.Unmarshal(parts[1], &decoded.ParallelRoutes); err != nil {
		return fmt.Errorf("decode parallel routes: %w", err)
	}
	if decoded.ParallelRoutes == nil {
		decoded.ParallelRoutes = map[string]*Tree{}
	}
	for key, child := range decoded.ParallelRoutes {
		if child == nil {
			return fmt.Errorf("decode parallel routes: slot %q is null", key)
		}
	}
	if len(parts) >= 3 && !isNull(parts[2]) {
		if err := json.Unmarshal(parts[2], &decoded.URL); err != nil {
			return fmt.Errorf("decode url: %w", err)
		}
	}
	if len(parts) == 4 && !isNull(parts[3]) {
		var marker string
		if err := json.Unmarshal(parts[3], &marker); err != nil {
			return fmt.Errorf("decode refresh marker: %w", err)
		}
		decoded.Refresh = marker == refetchMarker
	}
	*t = decoded
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
