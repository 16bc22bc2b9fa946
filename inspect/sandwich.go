package inspect

import (
	"context"
	"sort"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/tree"
	"github.com/mev-core/brontes/types"
)

// sandwichLeg is one swap touching a pool, reduced to the fields the
// sandwich pattern match needs.
type sandwichLeg struct {
	txHash  common.Hash
	txIndex uint32
	eoa     common.Address
	in, out common.Address
}

// SandwichInspector detects the classic front-run/victim(s)/back-run
// pattern: the same EOA swaps a pool in one direction, one or more other
// transactions swap the same pool, then the same EOA swaps back in the
// opposite direction — grounded on
// original_source/crates/brontes-inspect/src/sandwich/mod.rs's
// pool-keyed "bracket of same-sender opposing swaps" shape. Each front-run
// leg is paired with the first later opposing leg by the same EOA on that
// pool that has another EOA's swap in between, so one pool can yield
// several brackets; overlapping brackets are not partitioned recursively
// as in the original.
type SandwichInspector struct{}

func NewSandwichInspector() *SandwichInspector { return &SandwichInspector{} }

func (*SandwichInspector) MevType() types.MevType { return types.MevSandwich }

func (*SandwichInspector) Inspect(_ context.Context, bt *types.BlockTree, meta *types.Metadata) ([]types.Bundle, error) {
	byTx := tree.CollectAll(bt, types.NewTreeSearchBuilder(types.IsSwap))

	byPool := make(map[common.Address][]sandwichLeg)
	for _, root := range bt.Roots {
		for _, a := range byTx[root.TxHash] {
			in, out, ok := swapLegs(a)
			if !ok {
				continue
			}
			poolAddr := swapPoolAddr(a)
			byPool[poolAddr] = append(byPool[poolAddr], sandwichLeg{
				txHash: root.TxHash, txIndex: root.TxIndex, eoa: root.MsgSender,
				in: in.Token.Address, out: out.Token.Address,
			})
		}
	}

	var bundles []types.Bundle
	for _, legs := range byPool {
		sort.Slice(legs, func(i, j int) bool { return legs[i].txIndex < legs[j].txIndex })
		for i := 0; i < len(legs); i++ {
			for j := i + 2; j < len(legs); j++ {
				front, back := legs[i], legs[j]
				if front.eoa != back.eoa || front.eoa.IsZero() {
					continue
				}
				if front.in != back.out || front.out != back.in {
					continue
				}
				var victims []common.Hash
				seen := make(map[common.Hash]bool)
				for k := i + 1; k < j; k++ {
					if legs[k].eoa == front.eoa {
						continue
					}
					if !seen[legs[k].txHash] {
						seen[legs[k].txHash] = true
						victims = append(victims, legs[k].txHash)
					}
				}
				if len(victims) == 0 {
					continue
				}
				bundles = append(bundles, types.Bundle{
					Header: types.BundleHeader{
						BlockNumber: bt.Header.BlockNumber, TxHash: front.txHash, TxIndex: front.txIndex,
						Eoa: front.eoa, MevType: types.MevSandwich,
					},
					Data: types.SandwichData{Frontrun: front.txHash, Victims: victims, Backrun: back.txHash},
				})
				break
			}
		}
	}
	_ = meta
	return bundles, nil
}

// swapPoolAddr reads the Pool field every swap Action variant carries via
// its embedded ActionHeader.
func swapPoolAddr(a types.Action) common.Address {
	switch s := a.(type) {
	case *types.SwapAction:
		return s.Pool
	case *types.SwapWithFeeAction:
		return s.Pool
	default:
		return common.Address{}
	}
}
