package pricing

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

func constantProductPool(poolAddr, token0, token1 common.Address, reserve0, reserve1 uint64) *PoolState {
	return &PoolState{
		Info: types.PoolPairInformation{
			PoolAddr: poolAddr,
			Protocol: types.ProtocolUniswapV2,
			Token0:   token0,
			Token1:   token1,
		},
		Variant:  VariantConstantProduct,
		Reserve0: uint256.NewInt(reserve0),
		Reserve1: uint256.NewInt(reserve1),
	}
}

// TestThreeHopSubgraphComposesLegPrices is spec.md §8 end-to-end scenario
// 4: with pools (A/B), (B/C), (C/D) all initialized, a quote request for
// (A,D) composes to the product of the three legs' prices.
func TestThreeHopSubgraphComposesLegPrices(t *testing.T) {
	a := common.Address{0x01}
	b := common.Address{0x02}
	c := common.Address{0x03}
	d := common.Address{0x04}

	g := NewGraph(nil, nil)
	// A/B: 2 B per A.
	g.AddPool(constantProductPool(common.Address{0xA1}, a, b, 100, 200))
	// B/C: 3 C per B.
	g.AddPool(constantProductPool(common.Address{0xA2}, b, c, 100, 300))
	// C/D: 0.5 D per C.
	g.AddPool(constantProductPool(common.Address{0xA3}, c, d, 100, 50))

	pair := types.Pair{Token0: a, Token1: d}
	edges := BuildSubgraph(g, pair, 3)
	require.NotEmpty(t, edges)

	composed, ok := ComposeTWAP(g, edges, pair)
	require.True(t, ok)

	ab, _ := g.pools[common.Address{0xA1}].quote()
	bc, _ := g.pools[common.Address{0xA2}].quote()
	cd, _ := g.pools[common.Address{0xA3}].quote()
	expected := new(big.Rat).Mul(new(big.Rat).Mul(ab, bc), cd)

	require.Equal(t, 0, expected.Cmp(composed), "expected %s got %s", expected.RatString(), composed.RatString())

	// matches either intermediate ordering by .ordered(): requesting the
	// flipped (D,A) pair canonicalizes to the same ordered (A,D) form and
	// composes to the identical price.
	flipped := types.Pair{Token0: d, Token1: a}
	flippedEdges := BuildSubgraph(g, flipped, 3)
	flippedComposed, ok := ComposeTWAP(g, flippedEdges, flipped)
	require.True(t, ok)
	require.Equal(t, 0, flippedComposed.Cmp(composed))
}

// TestPriceSubgraphBracketsBothStatesWithComposedPrice exercises
// Graph.priceSubgraph (the method ProcessBlock calls for every pair of
// interest) directly, confirming it returns a non-nil bracket once the
// subgraph resolves and that both sides of the bracket agree with
// ComposeTWAP over the same edges.
func TestPriceSubgraphBracketsBothStatesWithComposedPrice(t *testing.T) {
	a := common.Address{0x01}
	b := common.Address{0x02}
	c := common.Address{0x03}

	g := NewGraph(nil, nil)
	g.AddPool(constantProductPool(common.Address{0xB1}, a, b, 10, 20))
	g.AddPool(constantProductPool(common.Address{0xB2}, b, c, 10, 40))

	pair := types.Pair{Token0: a, Token1: c}
	bracket, ok := g.priceSubgraph(pair, 2)
	require.True(t, ok)
	require.NotNil(t, bracket.PreState)
	require.NotNil(t, bracket.PostState)
	require.Equal(t, 0, bracket.PreState.Cmp(bracket.PostState))

	edges := BuildSubgraph(g, pair, 2)
	want, ok := ComposeTWAP(g, edges, pair)
	require.True(t, ok)
	require.Equal(t, 0, want.Cmp(bracket.PostState))
}

// TestPriceSubgraphMissingPairReturnsNotOK confirms a pair with no
// connecting edges in the graph is reported as absent rather than a
// zero-value bracket, so ProcessBlock skips it instead of emitting a
// bogus DexQuotes row.
func TestPriceSubgraphMissingPairReturnsNotOK(t *testing.T) {
	g := NewGraph(nil, nil)
	g.AddPool(constantProductPool(common.Address{0xC1}, common.Address{0x01}, common.Address{0x02}, 1, 1))

	pair := types.Pair{Token0: common.Address{0x09}, Token1: common.Address{0x0A}}
	_, ok := g.priceSubgraph(pair, 3)
	require.False(t, ok)
}
