package pricing

import (
	"math/big"

	"go.uber.org/zap"

	"github.com/mev-core/brontes/classifier"
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

// Graph is the undirected multigraph of pools PricingGraph maintains
// across blocks: vertices are tokens, edges are pools (spec.md §4.4
// "State"). One Graph instance is shared across the life of the process;
// ProcessBlock drains one block's worth of DexPriceMsg events per call.
type Graph struct {
	pools        map[common.Address]*PoolState
	edgesByToken map[common.Address][]common.Address
	lazy         *LazyLoader
	log          *zap.Logger
}

func NewGraph(lazy *LazyLoader, log *zap.Logger) *Graph {
	return &Graph{
		pools:        make(map[common.Address]*PoolState),
		edgesByToken: make(map[common.Address][]common.Address),
		lazy:         lazy,
		log:          log,
	}
}

// AddPool registers a newly-discovered or newly-loaded pool as a graph
// edge between its two tokens.
func (g *Graph) AddPool(state *PoolState) {
	g.pools[state.Info.PoolAddr] = state
	g.edgesByToken[state.Info.Token0] = append(g.edgesByToken[state.Info.Token0], state.Info.PoolAddr)
	g.edgesByToken[state.Info.Token1] = append(g.edgesByToken[state.Info.Token1], state.Info.PoolAddr)
}

func (g *Graph) Pool(addr common.Address) (*PoolState, bool) {
	p, ok := g.pools[addr]
	return p, ok
}

// PoolFetchError records a pool that failed to load at the requested
// block — it excludes that pool from the block's quotes but does not
// abort the block (spec.md §4.4 "persistent failure yields a
// PoolFetchError that excludes that pool from the block's quotes").
type PoolFetchError struct {
	Pool        common.Address
	BlockNumber uint64
	Err         error
}

func (e PoolFetchError) Error() string { return e.Err.Error() }

// ProcessBlock applies msgs (already ordered by trace_index, per spec.md
// §4.4 step 3) to the graph, lazily loading any pool not yet resident, and
// returns the block's DexQuotes once every message has been applied
// (spec.md §4.4 steps 2-5).
//
// pairsOfInterest selects which (base, quote) pairs get a materialized
// subgraph/TWAP entry in the result; pools touched outside that set still
// update graph state but contribute no DexQuotes row of their own.
func (g *Graph) ProcessBlock(
	blockNumber uint64,
	txCount int,
	msgs []classifier.DexPriceMsg,
	pairsOfInterest []types.Pair,
	maxHops int,
) (*types.DexQuotes, []PoolFetchError) {
	quotes := types.NewDexQuotes(blockNumber, txCount)
	var failures []PoolFetchError

	for _, msg := range msgs {
		state, ok := g.pools[msg.Pool.PoolAddr]
		if !ok {
			loaded, err := g.lazy.Load(msg.Pool, blockNumber)
			if err != nil {
				failures = append(failures, PoolFetchError{Pool: msg.Pool.PoolAddr, BlockNumber: blockNumber, Err: err})
				continue
			}
			state = loaded
			g.AddPool(state)
		}
		g.applyOne(state, msg, quotes)
	}

	for _, pair := range pairsOfInterest {
		bracket, ok := g.priceSubgraph(pair, maxHops)
		if !ok {
			continue
		}
		for txIndex := 0; txIndex < txCount; txIndex++ {
			if _, already := quotes.Get(txIndex, pair); !already {
				quotes.Set(txIndex, pair, bracket)
			}
		}
	}
	return quotes, failures
}

func (g *Graph) applyOne(state *PoolState, msg classifier.DexPriceMsg, quotes *types.DexQuotes) {
	// For concentrated-liquidity pools PoolState.Update does not apply the
	// swap delta, so their bracket reports the same price before and after
	// the swap. Only PoolState.SetSqrtPrice moves such a pool's price, and
	// nothing in this module calls it (brontes-pricing's UniswapV3Pool
	// reads sqrtPriceX96 from the pool's Swap event, which this
	// Action-normalized pipeline does not carry past the classifier).
	delta, ok := swapDelta(state.Info, msg.Action)
	if !ok {
		return
	}
	bracket, err := state.Update(delta)
	if err != nil {
		if g.log != nil {
			g.log.Warn("pool update failed", zap.String("pool", state.Info.PoolAddr.String()), zap.Error(err))
		}
		return
	}

	pair := state.Info.Pair()
	if pair.Token0 != pair.Ordered().Token0 {
		bracket = types.PriceBracket{PreState: invert(bracket.PreState), PostState: invert(bracket.PostState)}
	}
	quotes.Set(int(msg.TxIndex), pair, bracket)
}

// priceSubgraph materializes pair's bounded-hop subgraph over the graph's
// current (post-update) pool states and composes it into one liquidity-
// weighted price (spec.md §4.4 step 4: "materialize a subgraph of
// shortest paths up to a bounded hop count and compose per-edge prices
// along paths; aggregate by TWAP-over-paths weighted by liquidity").
// A pair of interest that was never itself a directly-updated edge this
// block only has one snapshot available — the graph as it stands after
// every buffered update has been applied — so PreState and PostState
// report the same composed price; only a direct pool edge (applyOne)
// brackets a genuine before/after.
func (g *Graph) priceSubgraph(pair types.Pair, maxHops int) (types.PriceBracket, bool) {
	edges := BuildSubgraph(g, pair, maxHops)
	if len(edges) == 0 {
		return types.PriceBracket{}, false
	}
	price, ok := ComposeTWAP(g, edges, pair)
	if !ok {
		return types.PriceBracket{}, false
	}
	return types.PriceBracket{PreState: price, PostState: price}, true
}

func invert(r *big.Rat) *big.Rat {
	if r == nil || r.Sign() == 0 {
		return r
	}
	return new(big.Rat).Inv(r)
}

// swapDelta converts a Swap/SwapWithFee/Mint/Burn action's decimals-scaled
// TokenAmounts back into raw signed per-token-0/1 reserve deltas, since
// the classifier only ever emits Rational (already /10^decimals) amounts
// (spec.md §4.3 contract) while PoolState tracks raw on-chain reserves.
func swapDelta(pool types.PoolPairInformation, a types.Action) (Delta, bool) {
	switch act := a.(type) {
	case *types.SwapAction:
		return tokenInOutDelta(pool, act.TokenIn, act.TokenOut), true
	case *types.SwapWithFeeAction:
		return tokenInOutDelta(pool, act.TokenIn, act.TokenOut), true
	case *types.MintAction:
		return tokensInDelta(pool, act.AmountsIn), true
	case *types.BurnAction:
		d := tokensInDelta(pool, act.AmountsOut)
		return negate(d), true
	default:
		return Delta{}, false
	}
}

func tokenInOutDelta(pool types.PoolPairInformation, in, out types.TokenAmount) Delta {
	inRaw := rawFromScaled(in)
	outRaw := rawFromScaled(out)
	d := Delta{Token0: big.NewInt(0), Token1: big.NewInt(0)}
	if in.Token.Address == pool.Token0 {
		d.Token0 = inRaw
	} else {
		d.Token1 = inRaw
	}
	if out.Token.Address == pool.Token0 {
		d.Token0 = new(big.Int).Sub(d.Token0, outRaw)
	} else {
		d.Token1 = new(big.Int).Sub(d.Token1, outRaw)
	}
	return d
}

func tokensInDelta(pool types.PoolPairInformation, amounts []types.TokenAmount) Delta {
	d := Delta{Token0: big.NewInt(0), Token1: big.NewInt(0)}
	for _, amt := range amounts {
		raw := rawFromScaled(amt)
		if amt.Token.Address == pool.Token0 {
			d.Token0 = new(big.Int).Add(d.Token0, raw)
		} else if amt.Token.Address == pool.Token1 {
			d.Token1 = new(big.Int).Add(d.Token1, raw)
		}
	}
	return d
}

func negate(d Delta) Delta {
	return Delta{Token0: new(big.Int).Neg(d.Token0), Token1: new(big.Int).Neg(d.Token1)}
}

// rawFromScaled inverts ScaleRaw: raw = amount * 10^decimals, the
// integer part (a scaled Rational built by ScaleRaw always divides
// evenly).
func rawFromScaled(amt types.TokenAmount) *big.Int {
	if amt.Amount == nil {
		return big.NewInt(0)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(amt.Token.Decimals)), nil)
	num := new(big.Int).Mul(amt.Amount.Num(), scale)
	return new(big.Int).Div(num, amt.Amount.Denom())
}
