// Package flight carries router data between the Flight server and the
// client-side router.
//
// # Wire format
//
// A response is either a JSON array of data paths or a bare JSON string. The
// string form tells the client the target is not served by the app router
// and must be loaded as a full page.
//
// A data path is positional:
//
//	[seg0, key0, seg1, key1, ..., segment, treePatch, subTreeData]
//
// The leading (segment, key) pairs address the parent of the node the server
// started rendering at, segment is that node's segment, treePatch is its
// router state and subTreeData the rendered output (null when only router
// state was sent, e.g. a prefetch with no loading boundary).
//
// # Requests
//
// Flight requests are plain GETs for the target URL with three headers:
//
//   - RSC: marks the request as a Flight request
//   - Next-Router-State-Tree: URL-encoded JSON of the client's router state
//   - Next-Router-Prefetch: set for prefetches
//
// Without RSC the server answers with a Bootstrap document for first loads.
//
// # Client
//
// Client wraps net/http with a request timeout and collapses identical
// concurrent fetches (same href, tree and prefetch flag) into a single round
// trip with singleflight. It implements Fetcher, which is what the router
// depends on.
package flight
