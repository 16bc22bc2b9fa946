package types

import (
	"github.com/shopspring/decimal"

	"github.com/mev-core/brontes/common"
)

// MevBlock is the per-block summary InspectorComposer produces alongside
// the Bundle list (spec.md §2 step 7, §4.6 "ComposerResults {
// block_details: MevBlock, mev_details: Vec<Bundle>, possible_mev_txes }").
type MevBlock struct {
	BlockNumber          uint64
	BlockHash            common.Hash
	BlockTimestamp       uint64
	ProposerFeeRecipient *common.Address
	ProposerMevRewardUsd decimal.Decimal
	BuilderAddress       *common.Address

	TotalBribeUsd     decimal.Decimal
	TotalMevProfitUsd decimal.Decimal
	NumberMevBundles  int

	// PossibleMevTxes is every tx hash at least one Inspector flagged
	// before dedup, kept for operator review even when no Bundle survived
	// the precedence lattice (spec.md §4.6 "possible_mev_txes").
	PossibleMevTxes []common.Hash
}
