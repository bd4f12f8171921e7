package flight

import (
	"encoding/json"
	"fmt"

	"github.com/five82/wayfinder/internal/segment"
)

// Descriptor is the rendered form of one segment produced by the default
// server renderer: the component references that apply to it, its resolved
// params, loader data and the rendered children per slot. A nil slot payload
// means the child was not rendered (below a refetch point or cut off by a
// loading boundary during a prefetch).
type Descriptor struct {
	Segment  segment.Segment    `json:"segment"`
	Layout   string             `json:"layout,omitempty"`
	Template string             `json:"template,omitempty"`
	Page     string             `json:"page,omitempty"`
	Loading  string             `json:"loading,omitempty"`
	Error    string             `json:"error,omitempty"`
	Params   map[string]string  `json:"params,omitempty"`
	Search   string             `json:"search,omitempty"`
	Data     json.RawMessage    `json:"data,omitempty"`
	Slots    map[string]Payload `json:"slots,omitempty"`
}

// Payload encodes d for use as subtree data.
func (d Descriptor) Payload() (Payload, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}
	return Payload(raw), nil
}

// DecodeDescriptor parses a payload produced by the default renderer.
func DecodeDescriptor(p Payload) (Descriptor, error) {
	var d Descriptor
	if len(p) == 0 {
		return d, fmt.Errorf("decode descriptor: empty payload")
	}
	if err := json.Unmarshal(p, &d); err != nil {
		return d, fmt.Errorf("decode descriptor: %w", err)
	}
	return d, nil
}

// ChildPayload returns the rendered child in slot and the segment it renders.
// ok is false when the parent is not a descriptor or the slot is empty.
func ChildPayload(parent Payload, slot string) (seg segment.Segment, child Payload, ok bool) {
	if len(parent) == 0 {
		return segment.Segment{}, nil, false
	}
	d, err := DecodeDescriptor(parent)
	if err != nil {
		return segment.Segment{}, nil, false
	}
	child = d.Slots[slot]
	if len(child) == 0 {
		return segment.Segment{}, nil, false
	}
	cd, err := DecodeDescriptor(child)
	if err != nil {
		return segment.Segment{}, nil, false
	}
	return cd.Segment, child, true
}
