// Package router implements the client-side navigation reducer.
//
// The reducer is a pure function of (State, Action) except for two things:
// it starts fetches, and it records what it computed in the action's Mutable
// so a re-invocation with the same action replays the result instead of
// fetching or patching again. When a fetch it needs is still in flight the
// reducer returns a Result with Pending set; the caller waits for the fetch
// and calls Reduce again with the same action.
package router
