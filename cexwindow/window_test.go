package cexwindow

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

func addr(b byte) common.Address {
	var a common.Address
	a[0] = b
	return a
}

func tradeMap(ex types.CexExchange, pair types.Pair, n int) *types.CexTradeMap {
	m := types.NewCexTradeMap()
	for i := 0; i < n; i++ {
		m.Append(ex, pair, types.CexTrade{
			Timestamp: uint64(i),
			Price:     big.NewRat(1, 1),
			Amount:    big.NewRat(1, 1),
		})
	}
	return m
}

func TestWindowInitLoadsOrderedBatch(t *testing.T) {
	pair := types.Pair{Token0: addr(1), Token1: addr(2)}
	w := New(60)
	require.False(t, w.IsLoaded())

	w.Init([]BlockTrades{
		{Block: 10, Trades: tradeMap(types.ExchangeBinance, pair, 2)},
		{Block: 11, Trades: tradeMap(types.ExchangeBinance, pair, 3)},
	})

	require.True(t, w.IsLoaded())
	require.Equal(t, uint64(11), w.LastEndBlockLoaded())
	require.Equal(t, uint64(10), w.FirstBlockLoaded())

	var total int
	w.WithTrades(func(m *types.CexTradeMap) {
		total = len(m.Trades(types.ExchangeBinance, pair))
	})
	require.Equal(t, 5, total)
}

func TestWindowNewBlockTrimsBlocksOlderThanActive(t *testing.T) {
	pair := types.Pair{Token0: addr(1), Token1: addr(2)}
	w := New(60)
	w.Init([]BlockTrades{
		{Block: 10, Trades: tradeMap(types.ExchangeBinance, pair, 2)},
		{Block: 11, Trades: tradeMap(types.ExchangeBinance, pair, 3)},
	})

	// activeBlock = 11 trims everything strictly before block 11, i.e.
	// block 10's 2 trades get popped from the front.
	w.NewBlock(12, tradeMap(types.ExchangeBinance, pair, 1), 11)

	var remaining int
	w.WithTrades(func(m *types.CexTradeMap) {
		remaining = len(m.Trades(types.ExchangeBinance, pair))
	})
	// 2 (block 10, trimmed) removed from 2+3+1=6 leaves 4.
	require.Equal(t, 4, remaining)
	require.Equal(t, uint64(12), w.LastEndBlockLoaded())
	require.Equal(t, uint64(11), w.FirstBlockLoaded())
}
