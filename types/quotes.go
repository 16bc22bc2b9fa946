package types

import "math/big"

// PriceBracket brackets a transaction's effect on a pair's price: the
// quote immediately before the trace executed and immediately after
// (spec.md §3: "pre- and post-state prices bracket the transaction").
type PriceBracket struct {
	PreState  *big.Rat
	PostState *big.Rat
}

// DexQuotes is the per-block mapping produced by PricingGraph: for each
// Pair, the bracketed price at every transaction index that touched it
// (spec.md §3, §4.4 step 5: "Emit (block, DexQuotes) when all buffered
// updates for the block are applied").
type DexQuotes struct {
	BlockNumber uint64
	// ByTx[txIndex][pair.Ordered()] = bracket.
	ByTx []map[Pair]PriceBracket
}

func NewDexQuotes(blockNumber uint64, txCount int) *DexQuotes {
	byTx := make([]map[Pair]PriceBracket, txCount)
	for i := range byTx {
		byTx[i] = make(map[Pair]PriceBracket)
	}
	return &DexQuotes{BlockNumber: blockNumber, ByTx: byTx}
}

// Set records the bracket for pair at txIndex, always keying by the
// pair's canonical ordered form (spec.md §8 "Pair key normalization").
func (q *DexQuotes) Set(txIndex int, pair Pair, bracket PriceBracket) {
	if txIndex < 0 || txIndex >= len(q.ByTx) {
		return
	}
	q.ByTx[txIndex][pair.Ordered()] = bracket
}

func (q *DexQuotes) Get(txIndex int, pair Pair) (PriceBracket, bool) {
	if txIndex < 0 || txIndex >= len(q.ByTx) {
		return PriceBracket{}, false
	}
	b, ok := q.ByTx[txIndex][pair.Ordered()]
	return b, ok
}
