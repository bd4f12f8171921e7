// Package routerstate holds the router state tree that client and server
// agree on, and the pure functions that patch and compare it.
//
// The tree is written into history entries and sent to the server on every
// Flight request, so it only contains serialisable values. Its JSON form is
// the positional array [segment, {slot: tree}, url?, "refetch"?].
//
// All functions here are pure: inputs are never modified, and patched trees
// share every untouched slot with the tree they were derived from.
package routerstate
