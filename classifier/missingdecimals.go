package classifier

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mev-core/brontes/bronerr"
	"github.com/mev-core/brontes/common"
)

// DecimalsFetcher performs the actual on-chain lookup (an eth_call to the
// ERC-20 decimals() selector against the trace provider), grounded on
// original_source/crates/brontes-core/src/missing_decimals.rs's
// MissingDecimals future, which drives exactly this query against a
// Provider and caches the result on success.
type DecimalsFetcher interface {
	FetchDecimals(ctx context.Context, addr common.Address) (uint8, error)
}

// MissingDecimalsFiller is the background task that resolves best-effort
// decimals fills (spec.md §4.3). Unlike the original's per-address
// FuturesUnordered, it is driven by an errgroup-bounded worker pool over
// a buffered channel — the same concurrency idiom the teacher repo uses
// for its trace/snapshot fan-out (golang.org/x/sync/errgroup, a teacher
// direct dependency) — and caches resolved decimals in an LRU so repeat
// lookups for the same token across blocks are free.
type MissingDecimalsFiller struct {
	fetcher DecimalsFetcher
	cache   *lru.Cache[common.Address, uint8]
	pending chan common.Address
	log     *zap.Logger

	mu   sync.Mutex
	seen map[common.Address]bool
}

// NewMissingDecimalsFiller builds a filler with a queueSize-buffered
// pending channel and a cacheSize-entry decimals cache. It starts no
// goroutines and does not read workers: Run starts the draining workers,
// and they exit on context cancellation or once Close has been called and
// the queue is drained.
func NewMissingDecimalsFiller(fetcher DecimalsFetcher, cacheSize, queueSize, workers int, log *zap.Logger) (*MissingDecimalsFiller, error) {
	cache, err := lru.New[common.Address, uint8](cacheSize)
	if err != nil {
		return nil, bronerr.Fatal("classifier.missing_decimals_cache", err)
	}
	f := &MissingDecimalsFiller{
		fetcher: fetcher,
		cache:   cache,
		pending: make(chan common.Address, queueSize),
		log:     log,
		seen:    make(map[common.Address]bool),
	}
	return f, nil
}

// CachedDecimals reports a previously-resolved decimals value, letting
// Classify skip the best-effort 18 fallback on a second frame touching the
// same token within the cache's retention.
func (f *MissingDecimalsFiller) CachedDecimals(addr common.Address) (uint8, bool) {
	return f.cache.Get(addr)
}

// Defer enqueues addr for async resolution, deduplicating so the same
// address within one filler's lifetime is only fetched once.
func (f *MissingDecimalsFiller) Defer(addr common.Address) {
	f.mu.Lock()
	if f.seen[addr] {
		f.mu.Unlock()
		return
	}
	f.seen[addr] = true
	f.mu.Unlock()

	select {
	case f.pending <- addr:
	default:
		if f.log != nil {
			f.log.Warn("missing decimals queue full, dropping", zap.String("address", addr.String()))
		}
		f.mu.Lock()
		delete(f.seen, addr)
		f.mu.Unlock()
	}
}

// Run drains the pending queue with `workers` concurrent fetchers until
// ctx is canceled or the channel is closed by the caller.
func (f *MissingDecimalsFiller) Run(ctx context.Context, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case addr, ok := <-f.pending:
					if !ok {
						return nil
					}
					f.resolve(ctx, addr)
				}
			}
		})
	}
	return g.Wait()
}

func (f *MissingDecimalsFiller) resolve(ctx context.Context, addr common.Address) {
	dec, err := f.fetcher.FetchDecimals(ctx, addr)
	if err != nil {
		if f.log != nil {
			f.log.Warn("decimals fetch failed", zap.String("address", addr.String()), zap.Error(err))
		}
		f.mu.Lock()
		delete(f.seen, addr)
		f.mu.Unlock()
		return
	}
	f.cache.Add(addr, dec)
}

// Close signals no more addresses will be deferred; Run's workers exit
// once the queue drains.
func (f *MissingDecimalsFiller) Close() { close(f.pending) }
