package types

import "github.com/mev-core/brontes/common"

// Metadata is the per-block join of chain, relay, and CEX data MetadataJoin
// assembles (spec.md §3). Fields are optional where the upstream source may
// not have reported them for a given block.
type Metadata struct {
	BlockNum       uint64
	BlockHash      common.Hash
	BlockTimestamp uint64

	// RelayTimestamp and P2PTimestamp are nil when no relay bid or p2p
	// propagation record exists for this block (e.g. a self-built block).
	RelayTimestamp *uint64
	P2PTimestamp   *uint64

	ProposerFeeRecipient *common.Address
	ProposerMevReward    *common.U256

	PrivateTxHashes []common.Hash

	// DexQuotes is nil until PricingGraph has priced this block.
	DexQuotes *DexQuotes
	CexQuotes *CexPriceMap
	CexTrades *CexTradeMap

	BuilderInfo *BuilderInfo
}

// BuilderInfo identifies the block builder when known, per spec.md §3.
type BuilderInfo struct {
	Address common.Address
	Name    string
}

// IsPrivate reports whether txHash was not seen in the public mempool
// before inclusion (spec.md §4.8 "private order flow" join key).
func (m *Metadata) IsPrivate(txHash common.Hash) bool {
	for _, h := range m.PrivateTxHashes {
		if h == txHash {
			return true
		}
	}
	return false
}

// Priced reports whether PricingGraph has populated DexQuotes for this
// block yet; MetadataJoin blocks bundle assembly until this is true
// (spec.md §4.8 step 2).
func (m *Metadata) Priced() bool { return m.DexQuotes != nil }
