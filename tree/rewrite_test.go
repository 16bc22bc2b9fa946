package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

func TestApplyFoldsRepaymentIntoFlashLoanAndPrunes(t *testing.T) {
	b := NewBuilder(types.BlockHeader{BlockNumber: 1}, 1)
	root := addr(1)
	flashLoanHdr := types.ActionHeader{Kind: types.ActionFlashLoan, Protocol: types.ProtocolAaveV3}
	b.StartRoot(common.Hash{}, 0, root, root, &types.FlashLoanAction{ActionHeader: flashLoanHdr})

	repayTo := addr(9)
	b.InsertAction(root, addr(2), &types.TransferAction{
		ActionHeader: types.ActionHeader{Kind: types.ActionTransfer},
		To:           repayTo,
	})
	b.InsertAction(root, addr(3), unclassified(7))
	frozen := b.Freeze()

	reg := Registry{{
		Protocol: types.ProtocolAaveV3,
		Action:   MultiFrameFlashLoan,
		Matches: func(a types.Action) bool {
			return a.GetKind() == types.ActionFlashLoan
		},
		Parse: func(this types.Action, children []*types.Node) (types.Action, []int) {
			fl := this.(*types.FlashLoanAction)
			var repayments []types.TransferAction
			var prune []int
			for i, c := range children {
				if tr, ok := c.Data.(*types.TransferAction); ok {
					repayments = append(repayments, *tr)
					prune = append(prune, i)
				}
			}
			fl.Repayments = repayments
			return fl, prune
		},
	}}

	Apply(frozen, reg)

	head := frozen.Roots[0].Head
	require.Len(t, head.Children, 1, "the transfer child should have been pruned")
	fl := head.Data.(*types.FlashLoanAction)
	require.Len(t, fl.Repayments, 1)
	assert.Equal(t, repayTo, fl.Repayments[0].To)
	assert.Len(t, head.Subactions, 2, "subactions must be recomputed after pruning")
}

func TestApplyWithNoPruneIndicesIsValid(t *testing.T) {
	b := NewBuilder(types.BlockHeader{BlockNumber: 1}, 1)
	root := addr(1)
	b.StartRoot(common.Hash{}, 0, root, root, &types.FlashLoanAction{
		ActionHeader: types.ActionHeader{Kind: types.ActionFlashLoan},
	})
	b.InsertAction(root, addr(2), unclassified(1))
	frozen := b.Freeze()

	reg := Registry{{
		Matches: func(a types.Action) bool { return a.GetKind() == types.ActionFlashLoan },
		Parse: func(this types.Action, children []*types.Node) (types.Action, []int) {
			return this, nil
		},
	}}

	assert.NotPanics(t, func() { Apply(frozen, reg) })
	assert.Len(t, frozen.Roots[0].Head.Children, 1)
}

func TestApplyPanicsOnDuplicatePruneIndex(t *testing.T) {
	b := NewBuilder(types.BlockHeader{BlockNumber: 1}, 1)
	root := addr(1)
	b.StartRoot(common.Hash{}, 0, root, root, unclassified(0))
	b.InsertAction(root, addr(2), unclassified(1))
	frozen := b.Freeze()

	reg := Registry{{
		Matches: func(types.Action) bool { return true },
		Parse: func(this types.Action, children []*types.Node) (types.Action, []int) {
			return this, []int{0, 0}
		},
	}}

	assert.Panics(t, func() { Apply(frozen, reg) })
}
