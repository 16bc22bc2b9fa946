package inspect

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/tree"
	"github.com/mev-core/brontes/types"
)

func rat(n int64) *big.Rat { return big.NewRat(n, 1) }

func tokenAmt(addr common.Address, n int64) types.TokenAmount {
	return types.TokenAmount{Token: types.TokenInfo{Address: addr, Decimals: 18}, Amount: rat(n)}
}

func swap(pool, from common.Address, txHash common.Hash, in, out types.TokenAmount) *types.SwapAction {
	return &types.SwapAction{
		ActionHeader: types.ActionHeader{Kind: types.ActionSwap, From: from, Pool: pool, TxHash: txHash},
		TokenIn:      in, TokenOut: out,
	}
}

func h(n byte) common.Hash {
	var v common.Hash
	v[0] = n
	return v
}
func addr(n byte) common.Address {
	var v common.Address
	v[0] = n
	return v
}

func TestAtomicArbInspectorFlagsProfitableCycle(t *testing.T) {
	pool := addr(0xAA)
	attacker := addr(0x01)
	weth := addr(0x10)
	usdc := addr(0x11)
	txHash := h(1)

	builder := tree.NewBuilder(types.BlockHeader{BlockNumber: 1}, 1)
	builder.StartRoot(txHash, 0, attacker, attacker, swap(pool, attacker, txHash, tokenAmt(weth, 1), tokenAmt(usdc, 100)))
	builder.InsertAction(attacker, pool, swap(pool, attacker, txHash, tokenAmt(usdc, 100), tokenAmt(weth, 2)))
	bt := builder.Freeze()

	insp := NewAtomicArbInspector()
	bundles, err := insp.Inspect(context.Background(), bt, &types.Metadata{})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	arb, ok := bundles[0].Data.(types.AtomicArbData)
	require.True(t, ok)
	require.Equal(t, types.AtomicArbCrossPair, arb.ArbType)
}

func TestSandwichInspectorFlagsFrontVictimBack(t *testing.T) {
	pool := addr(0xAA)
	attacker := addr(0x01)
	victim := addr(0x02)
	tokenA := addr(0x10)
	tokenB := addr(0x11)

	builder := tree.NewBuilder(types.BlockHeader{BlockNumber: 1}, 3)
	builder.StartRoot(h(1), 0, attacker, attacker, swap(pool, attacker, h(1), tokenAmt(tokenA, 10), tokenAmt(tokenB, 100)))
	builder.StartRoot(h(2), 1, victim, victim, swap(pool, victim, h(2), tokenAmt(tokenA, 5), tokenAmt(tokenB, 40)))
	builder.StartRoot(h(3), 2, attacker, attacker, swap(pool, attacker, h(3), tokenAmt(tokenB, 100), tokenAmt(tokenA, 11)))
	bt := builder.Freeze()

	insp := NewSandwichInspector()
	bundles, err := insp.Inspect(context.Background(), bt, &types.Metadata{})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	sand, ok := bundles[0].Data.(types.SandwichData)
	require.True(t, ok)
	require.Equal(t, h(1), sand.Frontrun)
	require.Equal(t, h(3), sand.Backrun)
	require.Equal(t, []common.Hash{h(2)}, sand.Victims)
}

func TestJitLiquidityInspectorFlagsMintSwapBurn(t *testing.T) {
	pool := addr(0xAA)
	jitter := addr(0x01)
	trader := addr(0x02)
	tokenA := addr(0x10)
	tokenB := addr(0x11)

	mint := &types.MintAction{ActionHeader: types.ActionHeader{Kind: types.ActionMint, From: jitter, Pool: pool, TxHash: h(1)}}
	burn := &types.BurnAction{ActionHeader: types.ActionHeader{Kind: types.ActionBurn, From: jitter, Pool: pool, TxHash: h(3)}}

	builder := tree.NewBuilder(types.BlockHeader{BlockNumber: 1}, 3)
	builder.StartRoot(h(1), 0, jitter, jitter, mint)
	builder.StartRoot(h(2), 1, trader, trader, swap(pool, trader, h(2), tokenAmt(tokenA, 5), tokenAmt(tokenB, 40)))
	builder.StartRoot(h(3), 2, jitter, jitter, burn)
	bt := builder.Freeze()

	insp := NewJitLiquidityInspector()
	bundles, err := insp.Inspect(context.Background(), bt, &types.Metadata{})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	jit, ok := bundles[0].Data.(types.JitLiquidityData)
	require.True(t, ok)
	require.Equal(t, h(1), jit.MintTx)
	require.Equal(t, h(3), jit.BurnTx)
	require.Equal(t, []common.Hash{h(2)}, jit.Victims)
}

func TestLiquidationInspectorFlagsLiquidationAction(t *testing.T) {
	liquidator := addr(0x01)
	debtor := addr(0x02)
	pool := addr(0xAA)

	liq := &types.LiquidationAction{
		ActionHeader:    types.ActionHeader{Kind: types.ActionLiquidation, From: liquidator, Pool: pool, TxHash: h(1)},
		Liquidator:      liquidator,
		Debtor:          debtor,
		DebtAsset:       tokenAmt(addr(0x10), 100),
		CollateralAsset: tokenAmt(addr(0x11), 120),
	}
	builder := tree.NewBuilder(types.BlockHeader{BlockNumber: 1}, 1)
	builder.StartRoot(h(1), 0, liquidator, liquidator, liq)
	bt := builder.Freeze()

	insp := NewLiquidationInspector()
	bundles, err := insp.Inspect(context.Background(), bt, &types.Metadata{})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	require.Equal(t, types.MevLiquidation, bundles[0].Header.MevType)
}

func TestSearcherTxInspectorFlagsMultiSwapTx(t *testing.T) {
	pool := addr(0xAA)
	sender := addr(0x01)
	tokenA := addr(0x10)
	tokenB := addr(0x11)
	tokenC := addr(0x12)

	builder := tree.NewBuilder(types.BlockHeader{BlockNumber: 1}, 1)
	builder.StartRoot(h(1), 0, sender, sender, swap(pool, sender, h(1), tokenAmt(tokenA, 10), tokenAmt(tokenB, 20)))
	builder.InsertAction(sender, pool, swap(pool, sender, h(1), tokenAmt(tokenB, 20), tokenAmt(tokenC, 5)))
	bt := builder.Freeze()

	insp := NewSearcherTxInspector()
	bundles, err := insp.Inspect(context.Background(), bt, &types.Metadata{})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
}

// TestSearcherTxInspectorFindsSwapsNestedBelowUnclassifiedHead drives a
// real inspector through a call tree shaped like an actual trace: the
// root frame is the EOA's call into a router (Unclassified, never itself
// a swap), which calls into an aggregator (also Unclassified), which
// calls into two pools directly. Both swaps sit two levels below a
// non-matching head, so this only passes if Collect descends past
// non-matching nodes instead of stopping at the head.
func TestSearcherTxInspectorFindsSwapsNestedBelowUnclassifiedHead(t *testing.T) {
	eoa := addr(0x01)
	router := addr(0x02)
	aggregator := addr(0x03)
	pool1 := addr(0xAA)
	pool2 := addr(0xAB)
	tokenA := addr(0x10)
	tokenB := addr(0x11)
	tokenC := addr(0x12)
	txHash := h(1)

	builder := tree.NewBuilder(types.BlockHeader{BlockNumber: 1}, 1)
	builder.StartRoot(txHash, 0, eoa, router, &types.UnclassifiedAction{})
	builder.InsertAction(router, aggregator, &types.UnclassifiedAction{})
	builder.InsertAction(aggregator, pool1, swap(pool1, aggregator, txHash, tokenAmt(tokenA, 10), tokenAmt(tokenB, 20)))
	builder.InsertAction(aggregator, pool2, swap(pool2, aggregator, txHash, tokenAmt(tokenB, 20), tokenAmt(tokenC, 5)))
	bt := builder.Freeze()

	insp := NewSearcherTxInspector()
	bundles, err := insp.Inspect(context.Background(), bt, &types.Metadata{})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	data, ok := bundles[0].Data.(types.SearcherTxData)
	require.True(t, ok)
	require.Len(t, data.Actions, 2)
	require.Equal(t, eoa, bundles[0].Header.Eoa)
}

func TestCexDexInspectorFlagsDivergentQuote(t *testing.T) {
	sender := addr(0x01)
	pool := addr(0xAA)
	token0 := addr(0x10)
	token1 := addr(0x11)
	RegisterStablecoin(token1)

	builder := tree.NewBuilder(types.BlockHeader{BlockNumber: 1}, 1)
	builder.StartRoot(h(1), 0, sender, sender, swap(pool, sender, h(1), tokenAmt(token0, 1), tokenAmt(token1, 2000)))
	bt := builder.Freeze()

	quotes := types.NewCexPriceMap()
	quotes.Append(cexVenue, types.Pair{Token0: token0, Token1: token1}, types.CexQuote{BestBid: rat(1000), BestAsk: rat(1000)})

	insp := NewCexDexInspector()
	bundles, err := insp.Inspect(context.Background(), bt, &types.Metadata{CexQuotes: quotes})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	require.Equal(t, types.MevCexDexArbitrage, bundles[0].Header.MevType)
}
