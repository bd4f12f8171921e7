// Package app is the composition root of the wayfinder client.
//
// # Overview
//
// Run wires configuration, the Flight client, the reducer store, the
// prefetch worker and the UI together:
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()         Read config.toml
//	       ├─────> prefs.Load()          Theme and start URL
//	       ├─────> flight.NewClient()    HTTP transport
//	       ├─────> Boot()                First document load
//	       ├─────> state.NewStore()      Reducer queue
//	       ├─────> PrefetchWorker.Start  Background prefetches
//	       └─────> ui.Run()              TUI (blocks)
//
// # Router
//
// Router is the imperative surface over the store: Push, Replace,
// Refresh, Prefetch, Back and Forward. Render resolves every layout
// router of the current state; Settle then acts on what rendering could
// not finish by itself:
//
//   - a lazy fetch that left the app router triggers a full document load
//   - a server patch bubbled up by a layout router is dispatched
//   - otherwise it waits for the pending lazy fetches
//
// A navigation the reducer resolves as a multi-page navigation commits an
// external history entry; the router follows it with a bootstrap load of
// the target, which replaces the state wholesale.
//
// # Prefetching
//
// Prefetch requests go through a bounded queue drained at a fixed rate
// (golang.org/x/time/rate). Entries younger than the configured TTL are
// not fetched again and a ticker prunes older ones. Consecutive failures
// back off exponentially up to 30 seconds.
//
// # Error Handling
//
// Configuration, preference, log file and boot failures are returned from
// Run. Failures after boot are recorded on the store (state.Snapshot's
// LastError) and logged, and the UI keeps running.
package app
