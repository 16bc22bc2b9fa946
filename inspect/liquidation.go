package inspect

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mev-core/brontes/tree"
	"github.com/mev-core/brontes/types"
)

// LiquidationInspector flags every transaction whose tree contains at
// least one LiquidationAction, grounded on
// original_source/crates/brontes-inspect/src/liquidations/mod.rs's
// single-pass "collect every Liquidation action per tx" shape (no
// cross-tx correlation needed: a liquidation is self-contained within the
// liquidator's transaction).
type LiquidationInspector struct{}

func NewLiquidationInspector() *LiquidationInspector { return &LiquidationInspector{} }

func (*LiquidationInspector) MevType() types.MevType { return types.MevLiquidation }

func (*LiquidationInspector) Inspect(_ context.Context, bt *types.BlockTree, meta *types.Metadata) ([]types.Bundle, error) {
	byTx := tree.CollectAll(bt, types.NewTreeSearchBuilder(types.IsLiquidation))

	var bundles []types.Bundle
	for _, root := range bt.Roots {
		actions := byTx[root.TxHash]
		if len(actions) == 0 {
			continue
		}
		liquidations := make([]types.LiquidationAction, 0, len(actions))
		var profit decimal.Decimal
		var profits []types.TokenProfits
		for _, a := range actions {
			liq, ok := a.(*types.LiquidationAction)
			if !ok {
				continue
			}
			liquidations = append(liquidations, *liq)
			if seized, ok := usdValue(liq.CollateralAsset); ok {
				if repaid, ok := usdValue(liq.DebtAsset); ok {
					profit = profit.Add(seized.Sub(repaid))
					profits = append(profits, types.TokenProfits{
						Token: liq.CollateralAsset.Token, AmountIn: repaid, AmountOut: seized,
						ProfitUsd: seized.Sub(repaid),
					})
				}
			}
		}
		if len(liquidations) == 0 {
			continue
		}
		bundles = append(bundles, types.Bundle{
			Header: types.BundleHeader{
				BlockNumber: bt.Header.BlockNumber, TxHash: root.TxHash, TxIndex: root.TxIndex,
				Eoa: root.MsgSender, MevType: types.MevLiquidation, ProfitUsd: profit, TokenProfits: profits,
			},
			Data: types.LiquidationData{Liquidations: liquidations},
		})
	}
	_ = meta
	return bundles, nil
}
