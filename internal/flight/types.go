package flight

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/five82/wayfinder/internal/routerstate"
	"github.com/five82/wayfinder/internal/segment"
)

// Payload is rendered subtree output. It is opaque to the router; nil means
// the server sent router state only.
type Payload []byte

// MarshalJSON writes the payload verbatim, or null when empty.
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	if !json.Valid(p) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return p, nil
}

// UnmarshalJSON keeps the raw bytes; null decodes to a nil payload.
func (p *Payload) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*p = nil
		return nil
	}
	*p = append(Payload(nil), data...)
	return nil
}

// DataPath is one round of server output: the path to the node being
// rendered, its segment, the router state patch for it and the rendered
// subtree.
type DataPath struct {
	Path        routerstate.SegmentPath
	Segment     segment.Segment
	TreePatch   *routerstate.Tree
	SubTreeData Payload
}

// IsRoot reports whether the server rendered from the root of the tree.
func (p DataPath) IsRoot() bool {
	return len(p.Path) == 0
}

// MarshalJSON writes [seg, key, ..., segment, treePatch, subTreeData].
func (p DataPath) MarshalJSON() ([]byte, error) {
	parts := make([]any, 0, len(p.Path)*2+3)
	for _, hop := range p.Path {
		parts = append(parts, hop.Segment, hop.ParallelRouteKey)
	}
	parts = append(parts, p.Segment, p.TreePatch, p.SubTreeData)
	return json.Marshal(parts)
}

// UnmarshalJSON reads the positional form written by MarshalJSON.
func (p *DataPath) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("decode flight data path: %w", err)
	}
	n := len(parts)
	if n < 3 || (n-3)%2 != 0 {
		return fmt.Errorf("decode flight data path: unexpected length %d", n)
	}

	var decoded DataPath
	for i := 0; i < n-3; i += 2 {
		var hop routerstate.Hop
		if err := json.Unmarshal(parts[i], &hop.Segment); err != nil {
			return err
		}
		if err := json.Unmarshal(parts[i+1], &hop.ParallelRouteKey); err != nil {
			return fmt.Errorf("decode parallel route key: %w", err)
		}
		decoded.Path = append(decoded.Path, hop)
	}
	if err := json.Unmarshal(parts[n-3], &decoded.Segment); err != nil {
		return err
	}
	if !isNull(parts[n-2]) {
		decoded.TreePatch = &routerstate.Tree{}
		if err := json.Unmarshal(parts[n-2], decoded.TreePatch); err != nil {
			return err
		}
	}
	if !isNull(parts[n-1]) {
		decoded.SubTreeData = append(Payload(nil), parts[n-1]...)
	}
	*p = decoded
	return nil
}

// Data is a complete Flight response. When MPA is non-empty the target is
// not served by the app router and the client must load it as a full page.
type Data struct {
	Paths []DataPath
	MPA   string
}

// IsMPA reports whether the response is the non-SPA string form.
func (d Data) IsMPA() bool {
	return d.MPA != ""
}

// First returns the first data path. Responses currently carry one.
func (d Data) First() (DataPath, bool) {
	if len(d.Paths) == 0 {
		return DataPath{}, false
	}
	return d.Paths[0], true
}

// MarshalJSON writes a string for MPA responses and an array otherwise.
func (d Data) MarshalJSON() ([]byte, error) {
	if d.IsMPA() {
		return json.Marshal(d.MPA)
	}
	paths := d.Paths
	if paths == nil {
		paths = []DataPath{}
	}
	return json.Marshal(paths)
}

// UnmarshalJSON accepts both response forms.
func (d *Data) UnmarshalJSON(data []byte) error {
	var target string
	if err := json.Unmarshal(data, &target); err == nil {
		*d = Data{MPA: target}
		return nil
	}
	var paths []DataPath
	if err := json.Unmarshal(data, &paths); err != nil {
		return fmt.Errorf("decode flight data: %w", err)
	}
	*d = Data{Paths: paths}
	return nil
}

func isNull(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}
