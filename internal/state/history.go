package state

import (
	"net/url"
	"slices"

	"github.com/five82/wayfinder/internal/router"
	"github.com/five82/wayfinder/internal/routerstate"
)

// Entry is one history record.
type Entry struct {
	URL  string
	Tree *routerstate.Tree
	// External marks a target outside the app router (MPA navigation).
	External bool
}

// History is an in-memory session history fed from committed states.
type History struct {
	entries []Entry
	index   int
}

// record applies state's PushRef: a pending push adds an entry and drops any
// forward entries, otherwise the current entry is replaced. PendingPush is
// cleared on state so a later commit that keeps the same refs replaces.
func (h *History) record(state *router.State) {
	entry := Entry{
		URL:      state.CanonicalURL,
		Tree:     state.Tree,
		External: state.PushRef.MPANavigation,
	}
	if len(h.entries) == 0 {
		h.entries = []Entry{entry}
		h.index = 0
		state.PushRef.PendingPush = false
		return
	}
	if state.PushRef.PendingPush {
		h.entries = append(h.entries[:h.index+1], entry)
		h.index = len(h.entries) - 1
		state.PushRef.PendingPush = false
		return
	}
	h.entries[h.index] = entry
}

func (h *History) back() (router.Restore, bool) {
	for i := h.index - 1; i >= 0; i-- {
		if h.entries[i].External || h.entries[i].Tree == nil {
			continue
		}
		return h.moveTo(i)
	}
	return router.Restore{}, false
}

func (h *History) forward() (router.Restore, bool) {
	for i := h.index + 1; i < len(h.entries); i++ {
		if h.entries[i].External || h.entries[i].Tree == nil {
			continue
		}
		return h.moveTo(i)
	}
	return router.Restore{}, false
}

func (h *History) moveTo(i int) (router.Restore, bool) {
	u, err := url.Parse(h.entries[i].URL)
	if err != nil {
		return router.Restore{}, false
	}
	h.index = i
	return router.Restore{URL: u, Tree: h.entries[i].Tree}, true
}

func (h *History) list() ([]Entry, int) {
	return slices.Clone(h.entries), h.index
}
