// Package segment models route path components and decides when two of them
// address the same router-state node.
//
// A segment is either static ("blog") or a dynamic parameter triple
// (param, value, kind). Two segments match when both are static and equal,
// or both are dynamic with equal values. The parameter name and kind are
// ignored so that client and server encodings of the same value reconcile.
package segment
