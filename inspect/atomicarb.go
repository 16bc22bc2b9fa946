package inspect

import (
	"context"
	"math/big"

	"github.com/mev-core/brontes/tree"
	"github.com/mev-core/brontes/types"
)

// AtomicArbInspector flags single-transaction swap cycles that return to
// their starting token with a strictly positive balance, grounded on
// original_source/crates/brontes-inspect/src/atomic_arb/mod.rs's
// "first swap's token_in == last swap's token_out, profitably" detection,
// simplified to a single linear cycle per tx: only the first and last
// collected swaps are compared, and branching call trees (which the
// original also handles) are not analysed separately.
type AtomicArbInspector struct{}

func NewAtomicArbInspector() *AtomicArbInspector { return &AtomicArbInspector{} }

func (*AtomicArbInspector) MevType() types.MevType { return types.MevAtomicArb }

func swapLegs(a types.Action) (in, out types.TokenAmount, ok bool) {
	switch s := a.(type) {
	case *types.SwapAction:
		return s.TokenIn, s.TokenOut, true
	case *types.SwapWithFeeAction:
		return s.TokenIn, s.TokenOut, true
	default:
		return types.TokenAmount{}, types.TokenAmount{}, false
	}
}

func (*AtomicArbInspector) Inspect(_ context.Context, bt *types.BlockTree, meta *types.Metadata) ([]types.Bundle, error) {
	byTx := tree.CollectAll(bt, types.NewTreeSearchBuilder(types.IsSwap))

	var bundles []types.Bundle
	for _, root := range bt.Roots {
		actions := byTx[root.TxHash]
		if len(actions) < 2 {
			continue
		}
		firstIn, _, ok := swapLegs(actions[0])
		if !ok {
			continue
		}
		_, lastOut, ok := swapLegs(actions[len(actions)-1])
		if !ok {
			continue
		}
		if firstIn.Token.Address != lastOut.Token.Address {
			continue
		}
		profitAmount := new(big.Rat).Sub(lastOut.Amount, firstIn.Amount)
		if profitAmount.Sign() <= 0 {
			continue
		}

		swaps := make([]types.SwapAction, 0, len(actions))
		for _, a := range actions {
			in, out, ok := swapLegs(a)
			if !ok {
				continue
			}
			swaps = append(swaps, types.SwapAction{ActionHeader: types.ActionHeader{TraceIndex: a.GetTraceIndex(), From: a.GetFrom(), Protocol: a.GetProtocol()}, TokenIn: in, TokenOut: out})
		}

		arbType := types.AtomicArbLongTail
		switch len(swaps) {
		case 2:
			arbType = types.AtomicArbCrossPair
		case 3:
			arbType = types.AtomicArbTriangle
		}

		profitUsd, _ := usdValue(types.TokenAmount{Token: lastOut.Token, Amount: profitAmount})

		bundles = append(bundles, types.Bundle{
			Header: types.BundleHeader{
				BlockNumber: bt.Header.BlockNumber, TxHash: root.TxHash, TxIndex: root.TxIndex,
				Eoa: root.MsgSender, MevType: types.MevAtomicArb, ProfitUsd: profitUsd,
			},
			Data: types.AtomicArbData{Swaps: swaps, ArbType: arbType},
		})
	}
	_ = meta
	return bundles, nil
}
