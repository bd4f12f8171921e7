package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/five82/wayfinder/internal/flight"
	"github.com/five82/wayfinder/internal/router"
	"github.com/five82/wayfinder/internal/state"
)

const (
	defaultPrefetchRate = 5
	defaultPrefetchTTL  = 30 * time.Second
	prefetchQueueSize   = 64
	baseBackoff         = time.Second
	maxBackoff          = 30 * time.Second
)

// PrefetchWorker fetches prefetch targets in the background at a bounded
// rate and evicts entries older than the TTL.
type PrefetchWorker struct {
	store   *state.Store
	fetcher flight.Fetcher
	limiter *rate.Limiter
	ttl     time.Duration
	queue   chan string
	logger  *slog.Logger
	now     func() time.Time
}

// NewPrefetchWorker builds a worker. perSecond and ttl fall back to defaults
// when not positive.
func NewPrefetchWorker(store *state.Store, fetcher flight.Fetcher, perSecond float64, ttl time.Duration, logger *slog.Logger) *PrefetchWorker {
	if perSecond <= 0 {
		perSecond = defaultPrefetchRate
	}
	if ttl <= 0 {
		ttl = defaultPrefetchTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PrefetchWorker{
		store:   store,
		fetcher: fetcher,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		ttl:     ttl,
		queue:   make(chan string, prefetchQueueSize),
		logger:  logger,
		now:     time.Now,
	}
}

// Enqueue schedules href. It never blocks and reports false when the queue
// is full.
func (w *PrefetchWorker) Enqueue(href string) bool {
	select {
	case w.queue <- href:
		return true
	default:
		return false
	}
}

// Start launches the worker goroutine. It returns immediately.
func (w *PrefetchWorker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.ttl / 2)
		defer ticker.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := w.store.PrunePrefetches(w.now(), w.ttl); n > 0 {
					w.logger.Debug("pruned prefetch entries", "count", n)
				}
			case href := <-w.queue:
				if err := w.limiter.Wait(ctx); err != nil {
					return
				}
				if err := prefetchOnce(ctx, w.store, w.fetcher, href, w.ttl, w.now, w.logger); err != nil {
					failures++
					backoff := calculateBackoff(failures, baseBackoff)
					w.logger.Warn("prefetch failed", "href", href, "error", err, "failures", failures, "backoff", backoff)
					select {
					case <-ctx.Done():
						return
					case <-time.After(backoff):
					}
					continue
				}
				failures = 0
			}
		}
	}()
}

// prefetchOnce fetches href with the prefetch header and dispatches the
// result. Entries younger than ttl, measured with now, are not fetched
// again; a zero ttl always fetches.
func prefetchOnce(ctx context.Context, store *state.Store, fetcher flight.Fetcher, href string, ttl time.Duration, now func() time.Time, logger *slog.Logger) error {
	snap := store.Snapshot()
	u, err := resolveHref(snap.Router.CanonicalURL, href)
	if err != nil {
		return err
	}
	key := router.Href(u)
	if entry, ok := snap.Router.PrefetchCache[key]; ok && ttl > 0 && now().Sub(entry.FetchedAt) < ttl {
		logger.Debug("prefetch still fresh", "href", key)
		return nil
	}

	data, err := fetcher.Fetch(ctx, key, snap.Router.Tree, true)
	if err != nil {
		store.Fail(err)
		return err
	}
	_, err = store.Dispatch(ctx, router.Prefetch{URL: u, FlightData: data})
	return err
}

// calculateBackoff doubles base per consecutive failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
