package walker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// LoadRequest identifies one segment's data load.
type LoadRequest struct {
	// Name is the loader named by the manifest's data field.
	Name string
	// Key is the segment path of the segment being rendered.
	Key string
	// Params are the params visible to the segment.
	Params   Params
	Pathname string
	Search   string
}

// DataLoader produces the data a segment renders with.
type DataLoader interface {
	Load(ctx context.Context, req LoadRequest) (json.RawMessage, error)
}

// LoaderFunc adapts a function to DataLoader.
type LoaderFunc func(ctx context.Context, req LoadRequest) (json.RawMessage, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, req LoadRequest) (json.RawMessage, error) {
	return f(ctx, req)
}

// Registry dispatches loads by name.
type Registry map[string]DataLoader

// Load runs the loader registered under req.Name.
func (r Registry) Load(ctx context.Context, req LoadRequest) (json.RawMessage, error) {
	l, ok := r[req.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLoader, req.Name)
	}
	return l.Load(ctx, req)
}

// EchoLoader returns the request itself. wayfinderd serves it for every
// loader name when no registry is configured.
var EchoLoader = LoaderFunc(func(_ context.Context, req LoadRequest) (json.RawMessage, error) {
	raw, err := json.Marshal(struct {
		Loader   string `json:"loader"`
		Key      string `json:"key"`
		Params   Params `json:"params,omitempty"`
		Pathname string `json:"pathname,omitempty"`
		Search   string `json:"search,omitempty"`
	}{req.Name, req.Key, req.Params, req.Pathname, req.Search})
	if err != nil {
		return nil, fmt.Errorf("encode echo data: %w", err)
	}
	return raw, nil
})

// dataCache runs each load at most once per request. Concurrent callers for
// the same key share one call; later callers get the stored result.
type dataCache struct {
	loader DataLoader
	group  singleflight.Group

	mu   sync.Mutex
	done map[string]loadResult
}

type loadResult struct {
	data json.RawMessage
	err  error
}

func newDataCache(loader DataLoader) *dataCache {
	return &dataCache{loader: loader, done: make(map[string]loadResult)}
}

func (c *dataCache) load(ctx context.Context, req LoadRequest) (json.RawMessage, error) {
	c.mu.Lock()
	if r, ok := c.done[req.Key]; ok {
		c.mu.Unlock()
		return r.data, r.err
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(req.Key, func() (any, error) {
		data, err := c.loader.Load(ctx, req)
		c.mu.Lock()
		c.done[req.Key] = loadResult{data: data, err: err}
		c.mu.Unlock()
		return data, err
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}
