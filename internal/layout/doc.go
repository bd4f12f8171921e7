// Package layout resolves the cache node each layout router renders.
//
// A layout router sits in one parallel route slot of a segment. Resolve
// either finds the child in the cache, installs the child the server already
// rendered with the parent, or starts a lazy fetch for it with a router tree
// marked for refetch at the child. A settled lazy fetch is applied in place
// when it answers for exactly this slot; otherwise it is handed back as a
// router.ServerPatch for the caller to dispatch.
package layout
