package inspect

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

type fixedInspector struct {
	mevType types.MevType
	bundles []types.Bundle
}

func (f fixedInspector) MevType() types.MevType { return f.mevType }
func (f fixedInspector) Inspect(context.Context, *types.BlockTree, *types.Metadata) ([]types.Bundle, error) {
	return f.bundles, nil
}

func hash(b byte) common.Hash {
	var h common.Hash
	h[0] = b
	return h
}

func TestComposerDropsSubordinateByPrecedence(t *testing.T) {
	tx := hash(1)
	unknown := types.Bundle{
		Header: types.BundleHeader{TxHash: tx, MevType: types.MevUnknown, ProfitUsd: decimal.NewFromInt(5)},
		Data:   types.SearcherTxData{},
	}
	atomic := types.Bundle{
		Header: types.BundleHeader{TxHash: tx, MevType: types.MevAtomicArb, ProfitUsd: decimal.NewFromInt(10)},
		Data:   types.AtomicArbData{ArbType: types.AtomicArbLongTail},
	}

	c, err := NewComposer(
		fixedInspector{mevType: types.MevUnknown, bundles: []types.Bundle{unknown}},
		fixedInspector{mevType: types.MevAtomicArb, bundles: []types.Bundle{atomic}},
	)
	require.NoError(t, err)

	tree := &types.BlockTree{Header: types.BlockHeader{BlockNumber: 1}}
	block, bundles, err := c.Run(context.Background(), tree, &types.Metadata{})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	require.Equal(t, types.MevAtomicArb, bundles[0].Header.MevType)
	require.Equal(t, 1, block.NumberMevBundles)
}

func TestComposerKeepsTriangleAtomicArbAgainstCexDexTrades(t *testing.T) {
	tx := hash(2)
	cexDex := types.Bundle{
		Header: types.BundleHeader{TxHash: tx, MevType: types.MevCexDexTrades, ProfitUsd: decimal.NewFromInt(100), Fund: 7},
		Data:   types.CexDexData{TradesBased: true},
	}
	triangle := types.Bundle{
		Header: types.BundleHeader{TxHash: tx, MevType: types.MevAtomicArb, ProfitUsd: decimal.NewFromInt(1)},
		Data:   types.AtomicArbData{ArbType: types.AtomicArbTriangle},
	}

	c, err := NewComposer(
		fixedInspector{mevType: types.MevCexDexTrades, bundles: []types.Bundle{cexDex}},
		fixedInspector{mevType: types.MevAtomicArb, bundles: []types.Bundle{triangle}},
	)
	require.NoError(t, err)

	tree := &types.BlockTree{Header: types.BlockHeader{BlockNumber: 1}}
	_, bundles, err := c.Run(context.Background(), tree, &types.Metadata{})
	require.NoError(t, err)
	require.Len(t, bundles, 2)
}

func TestComposerMergesSandwichAndJitSharingVictims(t *testing.T) {
	victim := hash(3)
	sandwich := types.Bundle{
		Header: types.BundleHeader{TxHash: hash(4), MevType: types.MevSandwich},
		Data:   types.SandwichData{Frontrun: hash(5), Victims: []common.Hash{victim}, Backrun: hash(6)},
	}
	jit := types.Bundle{
		Header: types.BundleHeader{TxHash: hash(7), MevType: types.MevJitLiquidity},
		Data:   types.JitLiquidityData{MintTx: hash(8), Victims: []common.Hash{victim}, BurnTx: hash(9)},
	}

	c, err := NewComposer(
		fixedInspector{mevType: types.MevSandwich, bundles: []types.Bundle{sandwich}},
		fixedInspector{mevType: types.MevJitLiquidity, bundles: []types.Bundle{jit}},
	)
	require.NoError(t, err)

	tree := &types.BlockTree{Header: types.BlockHeader{BlockNumber: 1}}
	_, bundles, err := c.Run(context.Background(), tree, &types.Metadata{})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	require.Equal(t, types.MevJitSandwich, bundles[0].Header.MevType)
	merged, ok := bundles[0].Data.(types.JitLiquidityData)
	require.True(t, ok)
	require.NotNil(t, merged.Sandwich)
}
