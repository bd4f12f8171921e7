package walker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/five82/wayfinder/internal/flight"
	"github.com/five82/wayfinder/internal/manifest"
	"github.com/five82/wayfinder/internal/routerstate"
	"github.com/five82/wayfinder/internal/segment"
)

var tracer = otel.Tracer("wayfinder.walker")

var (
	// ErrUnknownLoader is returned by Registry for an unregistered name.
	ErrUnknownLoader = errors.New("unknown data loader")
	// ErrNoRenderPoint is returned when no segment of the tree needs rendering.
	ErrNoRenderPoint = errors.New("no render point")
)

// Request describes the navigation being answered.
type Request struct {
	Pathname string
	Search   string
	// Params are the path params produced by manifest matching.
	Params Params
	// Prefetch limits rendering to what is above the nearest loading boundary.
	Prefetch bool
}

// Options configure a Walker.
type Options struct {
	Renderer Renderer
	Loader   DataLoader
	Logger   *slog.Logger
}

// Walker answers one Flight request. It is not reused across requests: data
// loads are deduplicated for the lifetime of the walker.
type Walker struct {
	req      Request
	renderer Renderer
	data     *dataCache
	logger   *slog.Logger
}

// New returns a walker for req.
func New(req Request, opts Options) *Walker {
	if opts.Renderer == nil {
		opts.Renderer = DescriptorRenderer{}
	}
	if opts.Loader == nil {
		opts.Loader = EchoLoader
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if req.Params == nil {
		req.Params = Params{}
	}
	return &Walker{
		req:      req,
		renderer: opts.Renderer,
		data:     newDataCache(opts.Loader),
		logger:   opts.Logger,
	}
}

// FlightData walks root against the client's router state and returns the
// response for it.
func (w *Walker) FlightData(ctx context.Context, root *manifest.Node, rs *routerstate.Tree) (flight.Data, error) {
	dp, ok, err := w.Walk(ctx, root, Params{}, rs, false)
	if err != nil {
		return flight.Data{}, err
	}
	if !ok {
		return flight.Data{}, ErrNoRenderPoint
	}
	return flight.Data{Paths: []flight.DataPath{dp}}, nil
}

// Walk finds the segment where rendering has to start and renders the
// subtree below it. Rendering starts at a segment when the client sent no
// router state for it, when the client's segment differs, when the segment
// has no parallel routes, or when the client marked it for refetch, and no
// segment above already started. The bool is false when nothing below node
// needed rendering.
func (w *Walker) Walk(ctx context.Context, node *manifest.Node, parentParams Params, rs *routerstate.Tree, parentRendered bool) (flight.DataPath, bool, error) {
	return w.walk(ctx, node, parentParams, rs, parentRendered, nil)
}

func (w *Walker) walk(ctx context.Context, n *manifest.Node, parentParams Params, rs *routerstate.Tree, parentRendered bool, path routerstate.SegmentPath) (flight.DataPath, bool, error) {
	seg, params := resolve(n, w.req.Params, parentParams)
	keys := n.SlotKeys()

	renderHere := rs == nil ||
		!segment.Match(seg, rs.Segment) ||
		len(keys) == 0 ||
		rs.Refresh

	if !parentRendered && renderHere {
		dp := flight.DataPath{
			Path:      path,
			Segment:   seg,
			TreePatch: RouterState(n, w.req.Params),
		}
		w.logger.Debug("render start",
			"path", path.String(),
			"segment", seg.String(),
			"prefetch", w.req.Prefetch,
		)
		if w.req.Prefetch && !n.HasLoading() {
			return dp, true, nil
		}
		payload, err := w.renderTree(ctx, n, path, parentParams)
		if err != nil {
			return flight.DataPath{}, false, err
		}
		dp.SubTreeData = payload
		return dp, true, nil
	}

	for _, key := range keys {
		child := n.Child(key)
		if child == nil {
			continue
		}
		dp, ok, err := w.walk(ctx, child, params, rs.Child(key), parentRendered || renderHere, path.Append(seg, key))
		if err != nil {
			return flight.DataPath{}, false, err
		}
		if ok {
			return dp, true, nil
		}
	}
	return flight.DataPath{}, false, nil
}

// Render renders the whole matched tree from root. It serves first loads.
func (w *Walker) Render(ctx context.Context, root *manifest.Node) (flight.DataPath, error) {
	seg, _ := resolve(root, w.req.Params, Params{})
	payload, err := w.renderTree(ctx, root, nil, Params{})
	if err != nil {
		return flight.DataPath{}, err
	}
	return flight.DataPath{
		Segment:     seg,
		TreePatch:   RouterState(root, w.req.Params),
		SubTreeData: payload,
	}, nil
}

// renderTree renders n and everything below it. Data loads and slots run
// concurrently. During a prefetch a loading boundary leaves its children
// unrendered.
func (w *Walker) renderTree(ctx context.Context, n *manifest.Node, path routerstate.SegmentPath, parentParams Params) (flight.Payload, error) {
	seg, params := resolve(n, w.req.Params, parentParams)
	key := dataKey(path, seg)

	ctx, span := tracer.Start(ctx, "walker.renderSegment",
		trace.WithAttributes(
			attribute.String("wayfinder.segment_path", key),
			attribute.Bool("wayfinder.prefetch", w.req.Prefetch),
		),
	)
	defer span.End()

	var (
		mu    sync.Mutex
		data  json.RawMessage
		slots = make(map[string]flight.Payload, len(n.Slots))
	)
	g, gctx := errgroup.WithContext(ctx)

	if n.Data != "" {
		req := LoadRequest{
			Name:     n.Data,
			Key:      key,
			Params:   params,
			Pathname: w.req.Pathname,
			Search:   w.req.Search,
		}
		g.Go(func() error {
			d, err := w.data.load(gctx, req)
			if err != nil {
				return err
			}
			mu.Lock()
			data = d
			mu.Unlock()
			return nil
		})
	}

	for _, slot := range n.SlotKeys() {
		slot := slot
		child := n.Child(slot)
		if child == nil {
			continue
		}
		if w.req.Prefetch && n.HasLoading() {
			slots[slot] = nil
			continue
		}
		g.Go(func() error {
			p, err := w.renderTree(gctx, child, path.Append(seg, slot), params)
			if err != nil {
				return err
			}
			mu.Lock()
			slots[slot] = p
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	payload, err := w.renderer.RenderSegment(ctx, Segment{
		Node:    n,
		Segment: seg,
		Path:    path,
		Params:  params,
		Search:  w.req.Search,
		Data:    data,
		Slots:   slots,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return payload, nil
}

func dataKey(path routerstate.SegmentPath, seg segment.Segment) string {
	if len(path) == 0 {
		return seg.String()
	}
	return path.String() + "/" + seg.String()
}
