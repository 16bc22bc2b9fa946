package inspect

import (
	"context"
	"math/big"

	"github.com/mev-core/brontes/tree"
	"github.com/mev-core/brontes/types"
)

// cexDexDivergenceThreshold is the minimum relative gap between a swap's
// implied price and the CEX mid quote (or most recent CEX trade price)
// before CexDexInspector flags it — a swap within this band is ordinary
// price noise, not an arbitrage signal.
var cexDexDivergenceThreshold = big.NewRat(3, 1000) // 0.3%

// cexVenue is the single exchange this Inspector checks: only Binance
// quotes and trades are consulted, grounded on
// original_source/crates/brontes-inspect/src/cex_dex/mod.rs's primary
// exchange being Binance for USD-stable pairs. Other CexExchange venues
// in the window are not scanned.
const cexVenue = types.ExchangeBinance

// CexDexInspector flags DEX swaps whose implied price diverges from a
// CEX quote (MevCexDexArbitrage) or a recent CEX trade (MevCexDexTrades,
// preferred when both are available — spec.md §9 "trades anchor the
// counterfactual price more tightly than a snapshot quote").
type CexDexInspector struct{}

func NewCexDexInspector() *CexDexInspector { return &CexDexInspector{} }

func (*CexDexInspector) MevType() types.MevType { return types.MevCexDexArbitrage }

func (*CexDexInspector) Inspect(_ context.Context, bt *types.BlockTree, meta *types.Metadata) ([]types.Bundle, error) {
	if meta == nil || (meta.CexQuotes == nil && meta.CexTrades == nil) {
		return nil, nil
	}
	byTx := tree.CollectAll(bt, types.NewTreeSearchBuilder(types.IsSwap))

	var bundles []types.Bundle
	for _, root := range bt.Roots {
		for _, a := range byTx[root.TxHash] {
			in, out, ok := swapLegs(a)
			if !ok {
				continue
			}
			pair := types.Pair{Token0: in.Token.Address, Token1: out.Token.Address}
			ordered := pair.Ordered()
			token0IsIn := ordered.Token0 == in.Token.Address

			dexPrice := dexPriceToken1PerToken0(in, out, token0IsIn)
			if dexPrice == nil {
				continue
			}

			if trades := meta.CexTrades; trades != nil {
				if ts := trades.Trades(cexVenue, ordered); len(ts) > 0 {
					cex := ts[len(ts)-1].Price
					if bundle := cexDexBundle(bt.Header.BlockNumber, root, a, in, out, token0IsIn, dexPrice, cex, true); bundle != nil {
						bundles = append(bundles, *bundle)
						continue
					}
				}
			}
			if quotes := meta.CexQuotes; quotes != nil {
				if qs := quotes.Quotes(cexVenue, ordered); len(qs) > 0 {
					q := qs[len(qs)-1]
					if q.BestBid != nil && q.BestAsk != nil {
						mid := new(big.Rat).Quo(new(big.Rat).Add(q.BestBid, q.BestAsk), big.NewRat(2, 1))
						if bundle := cexDexBundle(bt.Header.BlockNumber, root, a, in, out, token0IsIn, dexPrice, mid, false); bundle != nil {
							bundles = append(bundles, *bundle)
						}
					}
				}
			}
		}
	}
	return bundles, nil
}

func dexPriceToken1PerToken0(in, out types.TokenAmount, token0IsIn bool) *big.Rat {
	if token0IsIn {
		if in.Amount.Sign() == 0 {
			return nil
		}
		return new(big.Rat).Quo(out.Amount, in.Amount)
	}
	if out.Amount.Sign() == 0 {
		return nil
	}
	return new(big.Rat).Quo(in.Amount, out.Amount)
}

func cexDexBundle(blockNumber uint64, root *types.Root, a types.Action, in, out types.TokenAmount, token0IsIn bool, dexPrice, cexPrice *big.Rat, tradesBased bool) *types.Bundle {
	diff := new(big.Rat).Sub(dexPrice, cexPrice)
	rel := new(big.Rat).Abs(new(big.Rat).Quo(diff, cexPrice))
	if rel.Cmp(cexDexDivergenceThreshold) < 0 {
		return nil
	}

	// edge, expressed in token1 units: how much more/less token1 the swap
	// moved than the CEX-implied rate would predict.
	var edge *big.Rat
	var token1 types.TokenAmount
	if token0IsIn {
		expected := new(big.Rat).Mul(in.Amount, cexPrice)
		edge = new(big.Rat).Sub(out.Amount, expected)
		token1 = out
	} else {
		expected := new(big.Rat).Mul(out.Amount, cexPrice)
		edge = new(big.Rat).Sub(expected, in.Amount)
		token1 = in
	}
	edge.Abs(edge)

	swap, ok := a.(*types.SwapAction)
	if !ok {
		s, ok2 := a.(*types.SwapWithFeeAction)
		if !ok2 {
			return nil
		}
		swap = &types.SwapAction{ActionHeader: s.ActionHeader, TokenIn: s.TokenIn, TokenOut: s.TokenOut}
	}

	profitUsd, _ := usdValue(types.TokenAmount{Token: token1.Token, Amount: edge})

	mevType := types.MevCexDexArbitrage
	if tradesBased {
		mevType = types.MevCexDexTrades
	}

	return &types.Bundle{
		Header: types.BundleHeader{
			BlockNumber: blockNumber, TxHash: root.TxHash, TxIndex: root.TxIndex,
			Eoa: root.MsgSender, MevType: mevType, ProfitUsd: profitUsd,
		},
		Data: types.CexDexData{DexSwap: *swap, TradesBased: tradesBased},
	}
}
