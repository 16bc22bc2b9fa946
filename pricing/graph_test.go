package pricing

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mev-core/brontes/classifier"
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

// TestProcessBlockBracketsDirectSwapPrePostState checks spec.md §4.4 step
// 3: applying one swap to a known pool produces a PriceBracket whose
// PreState is the reserve ratio before the swap and PostState the ratio
// after, keyed under the pair's canonical Ordered() form.
func TestProcessBlockBracketsDirectSwapPrePostState(t *testing.T) {
	weth := common.Address{0x01}
	usdc := common.Address{0x02}
	poolAddr := common.Address{0xAA}

	g := NewGraph(nil, nil)
	g.AddPool(constantProductPool(poolAddr, weth, usdc, 100, 200))

	// Decimals 0 keeps the Rational swap amounts numerically identical to
	// PoolState's raw uint256 reserve units, so the expected post-swap
	// reserves below are plain integer arithmetic.
	tokenWETH := types.TokenInfo{Address: weth, Symbol: "WETH", Decimals: 0}
	tokenUSDC := types.TokenInfo{Address: usdc, Symbol: "USDC", Decimals: 0}

	swap := &types.SwapAction{
		ActionHeader: types.ActionHeader{Kind: types.ActionSwap, Pool: poolAddr},
		TokenIn:      types.TokenAmount{Token: tokenWETH, Amount: big.NewRat(10, 1)},
		TokenOut:     types.TokenAmount{Token: tokenUSDC, Amount: big.NewRat(18, 1)},
	}

	msgs := []classifier.DexPriceMsg{{
		TraceIndex: 0,
		TxIndex:    0,
		Pool:       types.PoolPairInformation{PoolAddr: poolAddr, Token0: weth, Token1: usdc},
		Action:     swap,
	}}

	quotes, failures := g.ProcessBlock(1, 1, msgs, nil, 3)
	require.Empty(t, failures)

	pair := types.Pair{Token0: weth, Token1: usdc}.Ordered()
	bracket, ok := quotes.Get(0, pair)
	require.True(t, ok)

	// pre-state: 200/100 = 2 USDC per WETH.
	require.Equal(t, 0, bracket.PreState.Cmp(big.NewRat(2, 1)))
	// post-state: reserves became (110, 182) -> 182/110.
	require.Equal(t, 0, bracket.PostState.Cmp(big.NewRat(182, 110)))

	pool, ok := g.Pool(poolAddr)
	require.True(t, ok)
	require.Equal(t, uint64(110), pool.Reserve0.Uint64())
	require.Equal(t, uint64(182), pool.Reserve1.Uint64())
}

// TestProcessBlockFillsOnlyPairsOfInterestWithSubgraphQuotes checks
// ProcessBlock's second phase (spec.md §4.4 step 4): with no direct
// DexPriceMsg for the block, every txIndex still gets a subgraph-composed
// bracket for each requested pair of interest.
func TestProcessBlockFillsOnlyPairsOfInterestWithSubgraphQuotes(t *testing.T) {
	a := common.Address{0x01}
	b := common.Address{0x02}
	c := common.Address{0x03}

	g := NewGraph(nil, nil)
	g.AddPool(constantProductPool(common.Address{0xD1}, a, b, 10, 20))
	g.AddPool(constantProductPool(common.Address{0xD2}, b, c, 10, 5))

	pairOfInterest := types.Pair{Token0: a, Token1: c}
	quotes, failures := g.ProcessBlock(1, 2, nil, []types.Pair{pairOfInterest}, 3)
	require.Empty(t, failures)

	for tx := 0; tx < 2; tx++ {
		bracket, ok := quotes.Get(tx, pairOfInterest.Ordered())
		require.True(t, ok)
		require.Equal(t, 0, bracket.PreState.Cmp(bracket.PostState))
	}
}
