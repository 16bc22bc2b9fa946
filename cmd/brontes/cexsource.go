package main

import (
	"context"
	"math/big"

	"github.com/mev-core/brontes/cexwindow"
	"github.com/mev-core/brontes/clickhouse"
	"github.com/mev-core/brontes/types"
)

// exchangeByName resolves a ClickHouse venue string to its CexExchange
// constant; an unrecognized venue is dropped rather than erroring the
// whole block's fetch, since one malformed row in a large trade table
// should never abort pricing.
var exchangeByName = map[string]types.CexExchange{
	"binance":  types.ExchangeBinance,
	"coinbase": types.ExchangeCoinbase,
	"okx":      types.ExchangeOkx,
	"kraken":   types.ExchangeKraken,
	"bybit":    types.ExchangeBybit,
}

// fetchBlockTrades pulls every CEX trade ClickHouse has recorded within
// the window's lookahead of block's timestamp and folds them into a
// cexwindow.BlockTrades, the unit Window.Init/NewBlock consume. Grounded
// on original_source/crates/bin/src/executors/shared/cex_window.rs's own
// "pull one block's worth of trades, merge into the window" driving loop,
// reworked onto a ClickHouse query in place of the original's local
// trade-database reader.
func fetchBlockTrades(ctx context.Context, ch *clickhouse.Handle, block, blockTimestamp uint64, lookaheadSeconds int) (cexwindow.BlockTrades, error) {
	rows, err := ch.CexTradesForBlock(ctx, blockTimestamp, lookaheadSeconds)
	if err != nil {
		return cexwindow.BlockTrades{}, err
	}

	trades := types.NewCexTradeMap()
	for _, row := range rows {
		ex, ok := exchangeByName[row.Exchange]
		if !ok {
			continue
		}
		price, ok := new(big.Rat).SetString(row.Price)
		if !ok {
			continue
		}
		amount, ok := new(big.Rat).SetString(row.Amount)
		if !ok {
			continue
		}
		pair := types.Pair{Token0: row.Token0, Token1: row.Token1}
		trades.Append(ex, pair, types.CexTrade{Timestamp: row.Timestamp, Price: price, Amount: amount})
	}
	return cexwindow.BlockTrades{Block: block, Trades: trades}, nil
}
