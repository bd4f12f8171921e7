// Package state owns the published router state for the wayfinder client.
//
// # Overview
//
// Store is the single serialization point between everything that changes
// router state (navigation commands from the UI, the prefetch worker, layout
// resolution that bubbles server patches) and everything that reads it (the
// UI refresh loop).
//
// # Dispatch
//
// Dispatch holds the write lock around each reducer invocation. When the
// reducer reports a pending fetch the lock is dropped, Dispatch waits for
// the fetch (or its own context), then invokes the reducer again with the
// same action:
//
//	Dispatch(action)
//	  lock → Reduce → Pending? ──yes──> unlock → wait fetch ─┐
//	     ↑                                                   │
//	     └───────────────────────────────────────────────────┘
//	  no → commit → history.record → unlock
//
// The action carries its own memo (router.Mutable) and its in-flight fetch
// on its cache root, so the second invocation neither refetches nor patches
// twice. Another dispatch may commit while one is waiting; the reducer then
// sees a different tree and recomputes against it.
//
// # Reading the cache
//
// The cache tree is shared between snapshots and is extended in place by
// prefetches and by lazy layout fills. Snapshot is safe for the scalar
// fields and the router tree; walk the cache inside View (read lock) or
// Render (write lock, for code that installs nodes).
//
// # History
//
// Every commit is fed to an in-memory History: PendingPush appends an entry
// and truncates forward entries, anything else replaces the current entry.
// Back and Forward return router.Restore actions for the caller to
// dispatch. Entries for targets outside the app router are skipped.
//
// # Errors
//
// A failed dispatch keeps the previous state and records the error with a
// consecutive failure count, which the UI uses to show an offline banner.
package state
