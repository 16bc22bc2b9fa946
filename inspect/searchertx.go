package inspect

import (
	"context"

	"github.com/mev-core/brontes/tree"
	"github.com/mev-core/brontes/types"
)

// SearcherTxInspector is the fallback detector (spec.md §3 "SearcherTxData
// is the fallback bucket"): any transaction with two or more swaps in one
// call tree is flagged for operator review, regardless of whether it nets
// an on-chain profit this module can price. Every other Inspector
// outranks it in the precedence lattice (lattice.go), so when a more
// specific Inspector flags the same transaction its SearcherTx bundle is
// dropped from the final Bundle list. MevBlock's possible_mev_txes is
// filled from every Inspector's bundles before that dedup step.
type SearcherTxInspector struct{}

func NewSearcherTxInspector() *SearcherTxInspector { return &SearcherTxInspector{} }

func (*SearcherTxInspector) MevType() types.MevType { return types.MevSearcherTx }

func (*SearcherTxInspector) Inspect(_ context.Context, bt *types.BlockTree, meta *types.Metadata) ([]types.Bundle, error) {
	byTx := tree.CollectAll(bt, types.NewTreeSearchBuilder(types.IsSwap))

	var bundles []types.Bundle
	for _, root := range bt.Roots {
		actions := byTx[root.TxHash]
		if len(actions) < 2 {
			continue
		}
		bundles = append(bundles, types.Bundle{
			Header: types.BundleHeader{
				BlockNumber: bt.Header.BlockNumber, TxHash: root.TxHash, TxIndex: root.TxIndex,
				Eoa: root.MsgSender, MevType: types.MevSearcherTx,
			},
			Data: types.SearcherTxData{Actions: actions},
		})
	}
	_ = meta
	return bundles, nil
}
