// Package cexwindow maintains the rolling window of CEX trade/quote data
// a pricing run keeps resident: each new block's trades are merged into a
// single global map, and once enough blocks have scrolled past the
// window's lookahead, the oldest per-(exchange, pair) entries are trimmed
// back out. Grounded directly on
// original_source/crates/bin/src/executors/shared/cex_window.rs.
package cexwindow

import (
	"sync"

	"github.com/mev-core/brontes/types"
)

// loadedBlock is one entry of the Rust offset_list: the block number it
// was merged at, plus the per-(exchange, pair) length the global map had
// *after* that block's trades were appended — i.e. the trim boundary that
// drops that block's contribution and everything older.
type loadedBlock struct {
	block   uint64
	offsets map[types.CexExchange]map[types.Pair]int
}

// Window is CexWindow: a rolling, mutex-guarded view over a CexTradeMap
// (spec.md §4.5). One Window is shared read-write across the pricing
// goroutines that consume CEX data for a block range.
type Window struct {
	mu sync.RWMutex

	offsetList []loadedBlock
	globalMap  *types.CexTradeMap

	lastEndBlockLoaded uint64
	firstBlockLoaded   uint64
	windowSizeSeconds  int
}

// New constructs an unloaded Window; Init must be called before any
// NewBlock call (IsLoaded reports false until then).
func New(windowSizeSeconds int) *Window {
	return &Window{
		globalMap:         types.NewCexTradeMap(),
		windowSizeSeconds: windowSizeSeconds,
	}
}

// Init seeds the window from an ordered initial batch of per-block trade
// maps — "used to get the initialized range going. Assumes maps are
// ordered" (cex_window.rs). Panics on an empty batch, matching the
// original's `.expect("No cex maps for Cex Window")`: callers always have
// at least one block queued before Init is reachable.
func (w *Window) Init(maps []BlockTrades) {
	if len(maps) == 0 {
		panic("cexwindow: Init called with no blocks")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.firstBlockLoaded = maps[0].Block
	w.lastEndBlockLoaded = maps[len(maps)-1].Block

	for _, m := range maps {
		offsets := w.globalMap.MergeIn(m.Trades)
		w.offsetList = append(w.offsetList, loadedBlock{block: m.Block, offsets: offsets})
	}
}

// BlockTrades is one block's worth of freshly-fetched CEX trades, the
// input to Init/NewBlock.
type BlockTrades struct {
	Block  uint64
	Trades *types.CexTradeMap
}

func (w *Window) LastEndBlockLoaded() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastEndBlockLoaded
}

func (w *Window) WindowLookaheadSeconds() int { return w.windowSizeSeconds }

func (w *Window) SetLastBlock(block uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastEndBlockLoaded = block
}

// IsLoaded reports whether Init has run — callers use this to decide
// between a full re-Init and an incremental NewBlock (cex_window.rs
// "lets us know if the window is loaded with the necessary data").
func (w *Window) IsLoaded() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastEndBlockLoaded != 0
}

// NewBlock merges newMap's trades into the global map under block, then
// trims every loaded block strictly older than activeBlock: their
// recorded offsets become the new trim boundary for the surviving data,
// folding multiple trims into a single PopHistoricalTrades call the same
// way cex_window.rs accumulates offsets before a single pop_historical_trades.
func (w *Window) NewBlock(block uint64, newMap *types.CexTradeMap, activeBlock uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	offsets := w.globalMap.MergeIn(newMap)
	w.offsetList = append(w.offsetList, loadedBlock{block: block, offsets: offsets})
	w.lastEndBlockLoaded = block

	accumulated := make(map[types.CexExchange]map[types.Pair]int)
	blocksToRemove := 0
	for _, lb := range w.offsetList {
		if lb.block >= activeBlock {
			break
		}
		blocksToRemove++
		for ex, pairs := range lb.offsets {
			dst, ok := accumulated[ex]
			if !ok {
				dst = make(map[types.Pair]int)
				accumulated[ex] = dst
			}
			for pair, offset := range pairs {
				// and_modify(|e| *e = offset).or_insert(offset): the latest
				// (i.e. largest, since blocks are processed oldest-first)
				// offset for this (ex, pair) always wins.
				dst[pair] = offset
			}
		}
	}

	w.offsetList = w.offsetList[blocksToRemove:]

	if len(accumulated) > 0 {
		w.globalMap.PopHistoricalTrades(accumulated)
		// Surviving offsets are absolute lengths; shift them past the
		// popped prefix so a later trim pops the right count.
		for _, lb := range w.offsetList {
			for ex, pairs := range lb.offsets {
				for pair := range pairs {
					pairs[pair] -= accumulated[ex][pair]
				}
			}
		}
		if len(w.offsetList) > 0 {
			w.firstBlockLoaded = w.offsetList[0].block
		}
	}
}

// WithTrades calls fn with the live trade map while holding the window's
// read lock, so NewBlock cannot mutate the map while fn runs.
func (w *Window) WithTrades(fn func(*types.CexTradeMap)) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn(w.globalMap)
}

func (w *Window) FirstBlockLoaded() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.firstBlockLoaded
}
