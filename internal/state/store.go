package state

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/five82/wayfinder/internal/router"
)

// Reducer is the part of router.Reducer the store depends on.
type Reducer interface {
	Reduce(ctx context.Context, state router.State, action router.Action) (router.Result, error)
}

// Snapshot represents the latest router state available to the UI.
type Snapshot struct {
	Router              router.State
	Seq                 uint64 // number of committed updates
	LastAction          string
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive failed dispatches
	InFlight            int // dispatches waiting on a fetch
}

// IsOffline returns true when dispatches have failed repeatedly.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store serializes reducer invocations and owns the published router state.
type Store struct {
	mu       sync.RWMutex
	ctx      context.Context
	reducer  Reducer
	history  *History
	snapshot Snapshot
}

// NewStore returns a store holding initial. ctx bounds every fetch the
// reducer starts and should live as long as the router.
func NewStore(ctx context.Context, reducer Reducer, initial router.State) *Store {
	s := &Store{ctx: ctx, reducer: reducer, history: &History{}}
	s.snapshot.Router = initial
	s.snapshot.LastUpdated = time.Now()
	s.history.record(&s.snapshot.Router)
	return s
}

// Dispatch runs action through the reducer and commits the result. When the
// reducer suspends, the lock is released while the fetch settles and the
// reducer is invoked again with the same action.
func (s *Store) Dispatch(ctx context.Context, action router.Action) (router.State, error) {
	for {
		s.mu.Lock()
		res, err := s.reducer.Reduce(s.ctx, s.snapshot.Router, action)
		if err != nil {
			s.snapshot.LastError = err
			s.snapshot.LastUpdated = time.Now()
			s.snapshot.ConsecutiveFailures++
			current := s.snapshot.Router
			s.mu.Unlock()
			return current, fmt.Errorf("%s: %w", action.Kind(), err)
		}
		if !res.Suspended() {
			s.commit(action, res.State)
			committed := s.snapshot.Router
			s.mu.Unlock()
			return committed, nil
		}
		s.snapshot.InFlight++
		s.mu.Unlock()

		select {
		case <-res.Pending.Done():
			s.leave()
		case <-ctx.Done():
			s.leave()
			return s.Snapshot().Router, ctx.Err()
		}
	}
}

func (s *Store) leave() {
	s.mu.Lock()
	s.snapshot.InFlight--
	s.mu.Unlock()
}

// commit must be called with the write lock held.
func (s *Store) commit(action router.Action, next router.State) {
	s.snapshot.Router = next
	s.history.record(&s.snapshot.Router)
	s.snapshot.Seq++
	s.snapshot.LastAction = action.Kind()
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Reset replaces the router state wholesale, e.g. after a full page load.
func (s *Store) Reset(next router.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Router = next
	s.history.record(&s.snapshot.Router)
	s.snapshot.Seq++
	s.snapshot.LastAction = "load"
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
}

// Fail records an error from outside the reducer, such as a failed prefetch.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.LastError = err
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures++
}

// Snapshot returns a copy of the current snapshot. The cache tree is shared;
// walk it only inside View or Render.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Router.PrefetchCache = maps.Clone(s.snapshot.Router.PrefetchCache)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

// View calls fn with the current state under the read lock.
func (s *Store) View(fn func(router.State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.snapshot.Router)
}

// Render calls fn with the current state under the write lock. Layout
// resolution uses it because it may install nodes into the published cache.
func (s *Store) Render(fn func(router.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.snapshot.Router)
}

// PrunePrefetches drops prefetch entries older than ttl.
func (s *Store) PrunePrefetches(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Router.PrefetchCache.Prune(now, ttl)
}

// Back returns the restore action for the previous history entry.
func (s *Store) Back() (router.Restore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.back()
}

// Forward returns the restore action for the next history entry.
func (s *Store) Forward() (router.Restore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.forward()
}

// History returns a copy of the history entries and the current index.
func (s *Store) History() ([]Entry, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.list()
}
