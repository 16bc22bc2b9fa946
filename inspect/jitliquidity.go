package inspect

import (
	"context"
	"sort"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/tree"
	"github.com/mev-core/brontes/types"
)

type liquidityLeg struct {
	txHash  common.Hash
	txIndex uint32
	from    common.Address
	isMint  bool
}

// JitLiquidityInspector detects mint-swap(s)-burn brackets within one
// block on the same pool by the same address — grounded on
// original_source/crates/brontes-inspect/src/jit/mod.rs's "JIT liquidity
// straddles one or more victim swaps in the same pool" shape.
type JitLiquidityInspector struct{}

func NewJitLiquidityInspector() *JitLiquidityInspector { return &JitLiquidityInspector{} }

func (*JitLiquidityInspector) MevType() types.MevType { return types.MevJitLiquidity }

func mintBurnPoolAddr(a types.Action) common.Address {
	switch m := a.(type) {
	case *types.MintAction:
		return m.Pool
	case *types.BurnAction:
		return m.Pool
	default:
		return common.Address{}
	}
}

func (*JitLiquidityInspector) Inspect(_ context.Context, bt *types.BlockTree, meta *types.Metadata) ([]types.Bundle, error) {
	mintBurn := tree.CollectAll(bt, types.NewTreeSearchBuilder(types.IsMintOrBurn))
	swaps := tree.CollectAll(bt, types.NewTreeSearchBuilder(types.IsSwap))

	byPoolLiquidity := make(map[common.Address][]liquidityLeg)
	byPoolSwaps := make(map[common.Address][]sandwichLeg)
	for _, root := range bt.Roots {
		for _, a := range mintBurn[root.TxHash] {
			pool := mintBurnPoolAddr(a)
			byPoolLiquidity[pool] = append(byPoolLiquidity[pool], liquidityLeg{
				txHash: root.TxHash, txIndex: root.TxIndex, from: a.GetFrom(), isMint: a.GetKind() == types.ActionMint,
			})
		}
		for _, a := range swaps[root.TxHash] {
			in, out, ok := swapLegs(a)
			if !ok {
				continue
			}
			pool := swapPoolAddr(a)
			byPoolSwaps[pool] = append(byPoolSwaps[pool], sandwichLeg{
				txHash: root.TxHash, txIndex: root.TxIndex, eoa: root.MsgSender, in: in.Token.Address, out: out.Token.Address,
			})
		}
	}

	var bundles []types.Bundle
	for pool, legs := range byPoolLiquidity {
		sort.Slice(legs, func(i, j int) bool { return legs[i].txIndex < legs[j].txIndex })
		for i := 0; i < len(legs); i++ {
			if !legs[i].isMint {
				continue
			}
			for j := i + 1; j < len(legs); j++ {
				if legs[j].isMint || legs[j].from != legs[i].from {
					continue
				}
				var victims []common.Hash
				seen := make(map[common.Hash]bool)
				for _, s := range byPoolSwaps[pool] {
					if s.txIndex <= legs[i].txIndex || s.txIndex >= legs[j].txIndex {
						continue
					}
					if s.eoa == legs[i].from || seen[s.txHash] {
						continue
					}
					seen[s.txHash] = true
					victims = append(victims, s.txHash)
				}
				if len(victims) == 0 {
					continue
				}
				bundles = append(bundles, types.Bundle{
					Header: types.BundleHeader{
						BlockNumber: bt.Header.BlockNumber, TxHash: legs[i].txHash, TxIndex: legs[i].txIndex,
						Eoa: legs[i].from, MevType: types.MevJitLiquidity,
					},
					Data: types.JitLiquidityData{MintTx: legs[i].txHash, Victims: victims, BurnTx: legs[j].txHash},
				})
				break
			}
		}
	}
	_ = meta
	return bundles, nil
}
