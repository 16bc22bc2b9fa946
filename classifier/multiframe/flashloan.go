// Package multiframe builds the tree.Registry of MultiCallFrameClassifier
// entries the BlockPipeline applies after classification (spec.md §4.2
// rewriting), grounded on
// original_source/crates/brontes-classifier/src/multi_frame_classification/flash_loan/*.rs.
package multiframe

import (
	"github.com/mev-core/brontes/tree"
	"github.com/mev-core/brontes/types"
)

// FlashLoan builds the flash-loan repayment-folding rule for protocol: the
// Rust source keys one classifier per (Protocol, FlashLoan) pair with a
// near-identical parse_fn across Aave/Balancer/Dodo/Bancor; this folds
// them into one parameterized constructor rather than one struct per
// protocol, matching Go's preference for a value over a type per variant
// where the variants differ only in data.
func FlashLoan(protocol types.Protocol) tree.MultiCallFrameClassifier {
	return tree.MultiCallFrameClassifier{
		Protocol: protocol,
		Action:   tree.MultiFrameFlashLoan,
		Matches: func(a types.Action) bool {
			return a.GetKind() == types.ActionFlashLoan && a.GetProtocol() == protocol
		},
		Parse: parseFlashLoan,
	}
}

// parseFlashLoan absorbs repayment transfers into the flash loan's
// Repayments field and folds any non-repayment child (swaps, other
// transfers, eth transfers) into ChildActions, mirroring balancer.rs's
// parse_fn: a Transfer only counts as repayment if its amount covers the
// matching borrowed asset and it is sent to the pool.
func parseFlashLoan(this types.Action, children []*types.Node) (types.Action, []int) {
	fl, ok := this.(*types.FlashLoanAction)
	if !ok {
		return this, nil
	}
	var prune []int
	var repayments []types.TransferAction
	var childActions []types.Action

	for i, c := range children {
		switch a := c.Data.(type) {
		case *types.SwapAction, *types.SwapWithFeeAction, *types.EthTransferAction:
			childActions = append(childActions, c.Data)
			prune = append(prune, i)
		case *types.TransferAction:
			if isRepayment(fl, a) {
				repayments = append(repayments, *a)
			} else {
				childActions = append(childActions, c.Data)
			}
			prune = append(prune, i)
		default:
			// Unrecognized child kind under a flash loan: leave it in
			// place rather than pruning, matching the Rust parse_fn's
			// "unknown call" branch which skips without pruning.
		}
	}

	fl.Repayments = repayments
	fl.ChildActions = childActions
	return fl, prune
}

func isRepayment(fl *types.FlashLoanAction, t *types.TransferAction) bool {
	if t.To != fl.Pool {
		return false
	}
	for _, asset := range fl.Assets {
		if asset.Token.Address == t.Token.Token.Address {
			return t.Token.Amount.Cmp(asset.Amount) >= 0
		}
	}
	return false
}
