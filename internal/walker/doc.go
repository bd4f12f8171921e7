// Package walker answers Flight requests from a matched route manifest.
//
// Walk compares the matched tree with the router state the client sent and
// renders from the first segment the client does not already hold. Rendering
// descends through every slot in parallel, loading each segment's data once
// per request. During a prefetch the descent stops at the first loading
// boundary; when the starting segment has none, only router state is sent.
package walker
