package types

import (
	"math/big"

	"github.com/google/btree"
)

// CexExchange enumerates the centralized venues the CEXWindow joins
// against (spec.md §3 CexPriceMap/CexTradeMap keys).
type CexExchange uint8

const (
	ExchangeUnknown CexExchange = iota
	ExchangeBinance
	ExchangeCoinbase
	ExchangeOkx
	ExchangeKraken
	ExchangeBybit
)

func (e CexExchange) String() string {
	switch e {
	case ExchangeBinance:
		return "binance"
	case ExchangeCoinbase:
		return "coinbase"
	case ExchangeOkx:
		return "okx"
	case ExchangeKraken:
		return "kraken"
	case ExchangeBybit:
		return "bybit"
	default:
		return "unknown"
	}
}

// CexQuote is one top-of-book snapshot (spec.md §3 CexPriceMap value).
type CexQuote struct {
	Timestamp uint64
	BestBid   *big.Rat
	BestAsk   *big.Rat
	BidAmount *big.Rat
	AskAmount *big.Rat
}

// CexTrade is one executed trade (spec.md §3 CexTradeMap value).
type CexTrade struct {
	Timestamp uint64
	Price     *big.Rat
	Amount    *big.Rat
}

// seqItem orders entries by insertion sequence inside a (exchange, pair)
// series. A rolling time-indexed series is naturally append-only and
// time-ordered at the source, so the sequence number *is* the timestamp
// order; storing it in a btree (rather than a plain slice) is what lets
// CEXWindow's trim step (cexwindow/window.go) drop an arbitrary historical
// prefix in O(log n + k) instead of a slice-copy per trim, matching the
// teacher's general preference (erigon's trie/history code) for ordered
// tree structures over ad hoc slice surgery when a structure is mutated
// from both ends.
type seqItem[T any] struct {
	seq   uint64
	value T
}

func seqLess[T any](a, b seqItem[T]) bool { return a.seq < b.seq }

// TimeSeries is Series[T] ordered by arrival: Append assigns the next
// sequence number, PopFront drops the oldest n entries, and Values
// returns the remaining entries oldest-first.
type TimeSeries[T any] struct {
	tree   *btree.BTreeG[seqItem[T]]
	nextSeq uint64
}

func NewTimeSeries[T any]() *TimeSeries[T] {
	return &TimeSeries[T]{tree: btree.NewG(32, seqLess[T])}
}

func (s *TimeSeries[T]) Append(v T) {
	s.tree.ReplaceOrInsert(seqItem[T]{seq: s.nextSeq, value: v})
	s.nextSeq++
}

func (s *TimeSeries[T]) Len() int { return s.tree.Len() }

// PopFront removes the oldest n entries (CEXWindow's trim step).
func (s *TimeSeries[T]) PopFront(n int) {
	for i := 0; i < n; i++ {
		min, ok := s.tree.Min()
		if !ok {
			return
		}
		s.tree.Delete(min)
	}
}

func (s *TimeSeries[T]) Values() []T {
	out := make([]T, 0, s.tree.Len())
	s.tree.Ascend(func(it seqItem[T]) bool {
		out = append(out, it.value)
		return true
	})
	return out
}

// CexPriceMap is exchange -> pair -> quote series, quotes ordered by
// timestamp within a pair (spec.md §3).
type CexPriceMap struct {
	byExchange map[CexExchange]map[Pair]*TimeSeries[CexQuote]
}

func NewCexPriceMap() *CexPriceMap {
	return &CexPriceMap{byExchange: make(map[CexExchange]map[Pair]*TimeSeries[CexQuote])}
}

func (m *CexPriceMap) series(ex CexExchange, pair Pair) *TimeSeries[CexQuote] {
	byPair, ok := m.byExchange[ex]
	if !ok {
		byPair = make(map[Pair]*TimeSeries[CexQuote])
		m.byExchange[ex] = byPair
	}
	s, ok := byPair[pair.Ordered()]
	if !ok {
		s = NewTimeSeries[CexQuote]()
		byPair[pair.Ordered()] = s
	}
	return s
}

func (m *CexPriceMap) Append(ex CexExchange, pair Pair, q CexQuote) {
	m.series(ex, pair).Append(q)
}

func (m *CexPriceMap) Quotes(ex CexExchange, pair Pair) []CexQuote {
	byPair, ok := m.byExchange[ex]
	if !ok {
		return nil
	}
	s, ok := byPair[pair.Ordered()]
	if !ok {
		return nil
	}
	return s.Values()
}

// CexTradeMap is exchange -> ordered_pair -> trade[], with quote-direction
// trades stored under the flipped key so a lookup by (base, quote) always
// returns correctly-signed amounts (spec.md §3).
type CexTradeMap struct {
	byExchange map[CexExchange]map[Pair]*TimeSeries[CexTrade]
}

func NewCexTradeMap() *CexTradeMap {
	return &CexTradeMap{byExchange: make(map[CexExchange]map[Pair]*TimeSeries[CexTrade])}
}

func (m *CexTradeMap) series(ex CexExchange, pair Pair) *TimeSeries[CexTrade] {
	byPair, ok := m.byExchange[ex]
	if !ok {
		byPair = make(map[Pair]*TimeSeries[CexTrade])
		m.byExchange[ex] = byPair
	}
	s, ok := byPair[pair]
	if !ok {
		s = NewTimeSeries[CexTrade]()
		byPair[pair] = s
	}
	return s
}

// Append stores a trade under pair directly; AppendFlipped stores it under
// the flipped key, as spec.md §3 requires for quote-direction trades so a
// lookup by (base, quote) always returns correctly-signed amounts.
func (m *CexTradeMap) AppendFlipped(ex CexExchange, pair Pair, t CexTrade) {
	m.series(ex, pair.Flip()).Append(t)
}

// Trades returns the trade series recorded under pair, used by tests
// asserting CEXWindow trim behavior.
func (m *CexTradeMap) Trades(ex CexExchange, pair Pair) []CexTrade {
	byPair, ok := m.byExchange[ex]
	if !ok {
		return nil
	}
	s, ok := byPair[pair]
	if !ok {
		return nil
	}
	return s.Values()
}

func (m *CexTradeMap) Append(ex CexExchange, pair Pair, t CexTrade) {
	m.series(ex, pair).Append(t)
}

// Lengths snapshots the current length of every (exchange, pair) series
// (spec.md §4.5).
func (m *CexTradeMap) Lengths() map[CexExchange]map[Pair]int {
	out := make(map[CexExchange]map[Pair]int, len(m.byExchange))
	for ex, byPair := range m.byExchange {
		lens := make(map[Pair]int, len(byPair))
		for pair, s := range byPair {
			lens[pair] = s.Len()
		}
		out[ex] = lens
	}
	return out
}

// MergeIn appends every series of other into m and returns, for each
// (exchange, pair) other touched, the length of m's series after the
// append, mirroring CexTradeMap::merge_in_map's offsets return value
// (original_source cex_window.rs): popping that many entries later drops
// everything up to and including the merged-in block.
func (m *CexTradeMap) MergeIn(other *CexTradeMap) map[CexExchange]map[Pair]int {
	offsets := make(map[CexExchange]map[Pair]int)
	for ex, byPair := range other.byExchange {
		for pair, s := range byPair {
			dst := m.series(ex, pair)
			offsets2, ok := offsets[ex]
			if !ok {
				offsets2 = make(map[Pair]int)
				offsets[ex] = offsets2
			}
			for _, v := range s.Values() {
				dst.Append(v)
			}
			offsets2[pair] = dst.Len()
		}
	}
	return offsets
}

// PopHistoricalTrades drops, for every (exchange, pair) named in offsets,
// the oldest `offset` trades — CEXWindow's trim primitive (spec.md §4.5).
func (m *CexTradeMap) PopHistoricalTrades(offsets map[CexExchange]map[Pair]int) {
	for ex, byPair := range offsets {
		for pair, n := range byPair {
			if series, ok := m.byExchange[ex][pair]; ok {
				series.PopFront(n)
			}
		}
	}
}
