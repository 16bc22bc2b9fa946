package pricing

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mev-core/brontes/bronerr"
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

// ImmutablesProvider fetches a pool's immutable parameters (tokens, fee,
// tick spacing) and its initial reserves/liquidity at a given block —
// the TraceProvider dependency spec.md §4.4 step 2 calls out.
type ImmutablesProvider interface {
	LoadPool(ctx context.Context, pool common.Address, variant Variant, atBlock uint64) (*PoolState, error)
}

// LazyLoader fetches a pool's immutables on first reference and blocks
// the calling goroutine only as long as it takes one in-flight fetch of
// that same pool to resolve — concurrent fetches of distinct pools
// proceed independently. Grounded on
// original_source/crates/brontes-pricing/src/exchanges/lazy.rs's
// LazyExchangeLoader: same "one future per unresolved pool, buffer
// updates that arrive while it's in flight" shape, reimplemented with
// golang.org/x/sync/errgroup.Group (a teacher direct dependency) plus a
// per-pool result cell (guarded by the loader's mutex, resolved by
// closing its done channel) in place of Rust's
// FuturesUnordered, since Go's blocking-call model makes a poll loop
// unnecessary.
type LazyLoader struct {
	provider ImmutablesProvider

	mu      sync.Mutex
	inFlight map[common.Address]*loadResult
}

type loadResult struct {
	done  chan struct{}
	state *PoolState
	err   error
}

func NewLazyLoader(provider ImmutablesProvider) *LazyLoader {
	return &LazyLoader{provider: provider, inFlight: make(map[common.Address]*loadResult)}
}

// Load fetches pool's state at atBlock, deduplicating concurrent callers
// for the same pool address onto a single underlying fetch (spec.md §4.4
// "Lazily load any referenced pool not yet in memory"). A pool that fails
// to load is not cached, so a subsequent call (e.g. the following block,
// per spec.md's PoolInitOnBlock retry) issues a fresh fetch.
func (l *LazyLoader) Load(pool types.PoolPairInformation, atBlock uint64) (*PoolState, error) {
	l.mu.Lock()
	if res, ok := l.inFlight[pool.PoolAddr]; ok {
		l.mu.Unlock()
		<-res.done
		return res.state, res.err
	}
	res := &loadResult{done: make(chan struct{})}
	l.inFlight[pool.PoolAddr] = res
	l.mu.Unlock()

	variant := variantOf(pool.Protocol)
	state, err := l.provider.LoadPool(context.Background(), pool.PoolAddr, variant, atBlock)
	if err != nil {
		err = bronerr.Transient("pricing.lazy_load", err, bronerr.WithBlock(atBlock), bronerr.WithKey(pool.PoolAddr.String()))
	}
	res.state, res.err = state, err
	close(res.done)

	l.mu.Lock()
	if err != nil {
		delete(l.inFlight, pool.PoolAddr)
	}
	l.mu.Unlock()
	return state, err
}

// LoadAll fetches every pool in pools concurrently, bounded by
// errgroup.SetLimit(workers), returning the first error encountered. No
// caller in this module uses it.
func (l *LazyLoader) LoadAll(pools []types.PoolPairInformation, atBlock uint64, workers int) ([]*PoolState, error) {
	out := make([]*PoolState, len(pools))
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, pool := range pools {
		i, pool := i, pool
		g.Go(func() error {
			state, err := l.Load(pool, atBlock)
			if err != nil {
				return err
			}
			out[i] = state
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func variantOf(protocol types.Protocol) Variant {
	switch protocol {
	case types.ProtocolUniswapV3, types.ProtocolSushiSwapV3, types.ProtocolMaverickV2:
		return VariantConcentratedLiquidity
	case types.ProtocolCurveStable:
		return VariantCurveStable
	case types.ProtocolCurveCrypto:
		return VariantCurveCrypto
	default:
		return VariantConstantProduct
	}
}
