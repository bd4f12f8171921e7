package flight

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/five82/wayfinder/internal/routerstate"
)

// Fetcher retrieves Flight data for a target href given the router state
// the client currently shows. It is implemented by *Client.
type Fetcher interface {
	Fetch(ctx context.Context, href string, tree *routerstate.Tree, prefetch bool) (Data, error)
}

// Ensure Client implements Fetcher at compile time.
var _ Fetcher = (*Client)(nil)

// Bootstrap is the first-load response: the full tree and a render from the
// root.
type Bootstrap struct {
	CanonicalURL string            `json:"canonicalUrl"`
	Tree         *routerstate.Tree `json:"tree"`
	FlightData   Data              `json:"flightData"`
}

// Client talks to a Flight server over HTTP.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	group     singleflight.Group
}

const (
	defaultServerURL = "127.0.0.1:7878"
	defaultUserAgent = "wayfinder/0.1"
	requestTimeout   = 10 * time.Second
)

// NewClient builds a Client for the given server address (host:port or URL).
func NewClient(serverURL string) (*Client, error) {
	base, err := parseBaseURL(serverURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// BaseURL returns the server origin requests are resolved against.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Fetch requests Flight data for href. Identical concurrent requests share
// one round trip.
func (c *Client) Fetch(ctx context.Context, href string, tree *routerstate.Tree, prefetch bool) (Data, error) {
	if c == nil {
		return Data{}, fmt.Errorf("client is nil")
	}
	header, err := EncodeTreeHeader(tree)
	if err != nil {
		return Data{}, err
	}
	key := fmt.Sprintf("%s|%s|%t", href, header, prefetch)
	result, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetch(ctx, href, header, prefetch)
	})
	if err != nil {
		return Data{}, err
	}
	return result.(Data), nil
}

// FetchBootstrap loads the initial tree and root render for href.
func (c *Client) FetchBootstrap(ctx context.Context, href string) (Bootstrap, error) {
	if c == nil {
		return Bootstrap{}, fmt.Errorf("client is nil")
	}
	req, err := c.newRequest(ctx, href)
	if err != nil {
		return Bootstrap{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Bootstrap{}, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return Bootstrap{}, fmt.Errorf("bootstrap %s returned status %d", href, resp.StatusCode)
	}
	var payload Bootstrap
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Bootstrap{}, fmt.Errorf("decode response: %w", err)
	}
	return payload, nil
}

func (c *Client) fetch(ctx context.Context, href, treeHeader string, prefetch bool) (Data, error) {
	req, err := c.newRequest(ctx, href)
	if err != nil {
		return Data{}, err
	}
	req.Header.Set(HeaderRSC, "1")
	if treeHeader != "" {
		req.Header.Set(HeaderRouterStateTree, treeHeader)
	}
	if prefetch {
		req.Header.Set(HeaderRouterPrefetch, "1")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Data{}, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return Data{}, fmt.Errorf("flight %s returned status %d", href, resp.StatusCode)
	}
	return Decode(resp.Body)
}

func (c *Client) newRequest(ctx context.Context, href string) (*http.Request, error) {
	rel, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("parse href %q: %w", href, err)
	}
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func parseBaseURL(serverURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(serverURL)
	if trimmed == "" {
		trimmed = defaultServerURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", serverURL, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
