package multiframe

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

// TestFlashLoanFoldsRepaymentAndPrunes is spec.md §8 end-to-end scenario 3
// almost verbatim: an AaveV2 flashLoan(receiver, [0xWETH], [1e18], modes,
// onBehalf) whose only child frame is a Transfer of 1e18 WETH from
// receiver back to the pool. After folding, the FlashLoan's Repayments
// contains exactly that Transfer and the child is pruned from the tree.
func TestFlashLoanFoldsRepaymentAndPrunes(t *testing.T) {
	pool := common.Address{0xAA}
	receiver := common.Address{0xBB}
	weth := types.TokenInfo{Address: common.Address{0xEE}, Symbol: "WETH", Decimals: 18}
	oneEth := new(big.Rat).SetInt64(1)

	rule := FlashLoan(types.ProtocolAaveV2)
	require.Equal(t, types.ProtocolAaveV2, rule.Protocol)

	flashLoan := &types.FlashLoanAction{
		ActionHeader: types.ActionHeader{
			Kind:     types.ActionFlashLoan,
			Protocol: types.ProtocolAaveV2,
			Pool:     pool,
			From:     receiver,
		},
		Assets: []types.TokenAmount{{Token: weth, Amount: oneEth}},
	}
	require.True(t, rule.Matches(flashLoan))

	repayment := &types.TransferAction{
		ActionHeader: types.ActionHeader{
			Kind: types.ActionTransfer,
			From: receiver,
			Pool: pool,
		},
		Token: types.TokenAmount{Token: weth, Amount: oneEth},
		To:    pool,
	}
	children := []*types.Node{{Address: receiver, Data: repayment}}

	updated, prune := rule.Parse(flashLoan, children)

	fl, ok := updated.(*types.FlashLoanAction)
	require.True(t, ok)
	require.Equal(t, []int{0}, prune)
	require.Len(t, fl.Repayments, 1)
	require.Equal(t, *repayment, fl.Repayments[0])
	require.Empty(t, fl.ChildActions)
}

// TestFlashLoanDoesNotFoldUnderRepaidTransfer checks the "amount covers the
// borrowed asset" guard in isRepayment: a Transfer back to the pool for
// less than the borrowed amount is not a valid repayment and is instead
// folded into ChildActions; like every recognized child, it is still
// pruned from the tree.
func TestFlashLoanDoesNotFoldUnderRepaidTransfer(t *testing.T) {
	pool := common.Address{0xAA}
	receiver := common.Address{0xBB}
	weth := types.TokenInfo{Address: common.Address{0xEE}, Symbol: "WETH", Decimals: 18}
	borrowed := new(big.Rat).SetInt64(2)
	partial := new(big.Rat).SetInt64(1)

	rule := FlashLoan(types.ProtocolAaveV2)
	flashLoan := &types.FlashLoanAction{
		ActionHeader: types.ActionHeader{Kind: types.ActionFlashLoan, Protocol: types.ProtocolAaveV2, Pool: pool, From: receiver},
		Assets:       []types.TokenAmount{{Token: weth, Amount: borrowed}},
	}
	underpaid := &types.TransferAction{
		ActionHeader: types.ActionHeader{Kind: types.ActionTransfer, From: receiver, Pool: pool},
		Token:        types.TokenAmount{Token: weth, Amount: partial},
		To:           pool,
	}
	children := []*types.Node{{Address: receiver, Data: underpaid}}

	updated, prune := rule.Parse(flashLoan, children)
	fl := updated.(*types.FlashLoanAction)

	require.Equal(t, []int{0}, prune)
	require.Empty(t, fl.Repayments)
	require.Len(t, fl.ChildActions, 1)
}
