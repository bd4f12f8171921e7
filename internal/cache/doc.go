// Package cache holds the client-side cache tree of rendered segments and the
// reconciler that derives a new tree from an existing one.
//
// Reconciliation never mutates a published tree. Each transition starts from
// NewRoot and copies the nodes it touches; untouched subtrees are shared by
// pointer. Ownership is tracked with a per-transition token so a node is only
// modified in place by the transition that created it. Prefetches and the
// layout router are the exception: they append missing nodes to the
// published tree while holding the state lock.
package cache
