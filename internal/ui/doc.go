// Package ui implements the wayfinder terminal explorer on Bubble Tea.
//
// # Views
//
//   - Page: the frames every layout router resolved for the current state,
//     with their kind (render, suspend, server-patch, hard-navigate) and a
//     summary of the rendered descriptor
//   - Tree: the router state tree beside the cache tree, and the prefetch
//     cache with entry ages
//   - History: the session history, current entry marked, external entries
//     highlighted
//   - Logs: the tail of the client log file, formatted from slog JSON
//
// # Render Loop
//
// A tick (default one second) asks the Navigator to render. Rendering can
// leave work behind: suspended frames waiting on lazy fetches, a server
// patch one of them bubbled up, or a target outside the app router. When it
// does, the model hands the page to Navigator.Settle off the update loop
// and renders again once it returns. A page is settled at most once per
// store sequence unless some of its fetches are still in flight, so a
// failed fetch does not spin the loop.
//
// Router actions (push, replace, prefetch, refresh, back, forward) run as
// commands with a timeout; their outcome is shown in the header.
//
// # Themes
//
// Nightfox, Kanagawa and Slate are available; T cycles them and saves the
// choice to the preferences file. Unknown names fall back to Nightfox.
package ui
