// Package server is the HTTP front of wayfinderd.
//
// Requests carrying the RSC header are answered with Flight data rendered
// from the first segment the client's router state does not hold; other
// requests get a bootstrap document with the full tree for a first load.
// Paths listed as pages in the manifest are answered with their own URL so
// the client leaves the app router. /healthz and /metrics are served
// alongside.
package server
