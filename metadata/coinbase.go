package metadata

import (
	"math/big"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

// TreeCoinbaseAnalyzer recovers proposer_mev_reward/proposer_fee_recipient
// from on-chain data when no relay record exists (spec.md §4.8 step 4
// "falling back to on-chain coinbase transfer analysis if missing").
// Grounded on original_source/crates/brontes-inspect/src/builder_profit.rs's
// `coinbase_transfers = tx_roots.iter().filter_map(|root|
// root.gas_details.coinbase_transfer).sum()`: every root's GasDetails
// already records whether it paid a direct coinbase tip; this walks each
// such root's subactions for the matching EthTransferAction to recover the
// recipient address, then tallies by recipient since every tip in a block
// goes to the same proposer.
type TreeCoinbaseAnalyzer struct{}

func NewTreeCoinbaseAnalyzer() *TreeCoinbaseAnalyzer { return &TreeCoinbaseAnalyzer{} }

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func (TreeCoinbaseAnalyzer) CoinbaseTransferTotal(tree *types.BlockTree) (common.U256, common.Address, bool) {
	votes := make(map[common.Address]int)
	totals := make(map[common.Address]*big.Int)

	for _, root := range tree.Roots {
		if root.GasDetails.CoinbaseTransfer == nil || root.Head == nil {
			continue
		}
		addr, wei, ok := largestEthTransfer(root.Head.Subactions)
		if !ok {
			continue
		}
		votes[addr]++
		if cur, ok := totals[addr]; ok {
			totals[addr] = new(big.Int).Add(cur, wei)
		} else {
			totals[addr] = wei
		}
	}

	var best common.Address
	bestVotes := -1
	for addr, v := range votes {
		if v > bestVotes || (v == bestVotes && totals[addr].Cmp(totals[best]) > 0) {
			best, bestVotes = addr, v
		}
	}
	if bestVotes < 0 {
		return common.U256{}, common.Address{}, false
	}

	reward := new(common.U256)
	if _, overflow := reward.SetFromBig(totals[best]); overflow {
		reward.Clear()
	}
	return *reward, best, true
}

// largestEthTransfer finds the EthTransferAction with the greatest amount
// among actions, the direct tip being the dominant ETH movement in a root
// that recorded a non-nil coinbase transfer.
func largestEthTransfer(actions []types.Action) (common.Address, *big.Int, bool) {
	var (
		bestAddr common.Address
		bestWei  *big.Int
		found    bool
	)
	for _, a := range actions {
		eth, ok := a.(*types.EthTransferAction)
		if !ok || eth.Amount == nil {
			continue
		}
		wei := new(big.Int).Mul(eth.Amount.Num(), weiPerEther)
		wei.Quo(wei, eth.Amount.Denom())
		if !found || wei.Cmp(bestWei) > 0 {
			bestAddr, bestWei, found = eth.To, wei, true
		}
	}
	return bestAddr, bestWei, found
}
