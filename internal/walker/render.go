package walker

import (
	"context"
	"encoding/json"

	"github.com/five82/wayfinder/internal/flight"
	"github.com/five82/wayfinder/internal/manifest"
	"github.com/five82/wayfinder/internal/routerstate"
	"github.com/five82/wayfinder/internal/segment"
)

// Segment is everything a renderer needs for one segment once its slots have
// been rendered.
type Segment struct {
	Node    *manifest.Node
	Segment segment.Segment
	Path    routerstate.SegmentPath
	Params  Params
	// Search is the query string, set for page segments only.
	Search string
	Data   json.RawMessage
	// Slots hold the rendered children. A nil payload is a child that was
	// not rendered.
	Slots map[string]flight.Payload
}

// IsPage reports whether the segment renders a page component.
func (s Segment) IsPage() bool {
	return s.Node.Components.Page != ""
}

// Renderer turns one segment into subtree data.
type Renderer interface {
	RenderSegment(ctx context.Context, s Segment) (flight.Payload, error)
}

// DescriptorRenderer encodes segments as flight.Descriptor values.
type DescriptorRenderer struct{}

// RenderSegment implements Renderer.
func (DescriptorRenderer) RenderSegment(_ context.Context, s Segment) (flight.Payload, error) {
	c := s.Node.Components
	d := flight.Descriptor{
		Segment:  s.Segment,
		Layout:   c.Layout,
		Template: c.Template,
		Page:     c.Page,
		Loading:  c.Loading,
		Error:    c.Error,
		Data:     s.Data,
		Slots:    s.Slots,
	}
	if len(s.Params) > 0 {
		d.Params = s.Params
	}
	if s.IsPage() {
		d.Search = s.Search
	}
	return d.Payload()
}
