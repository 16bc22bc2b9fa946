package classifier

import (
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

// aaveV3LiquidationCall decodes Aave V3 Pool.liquidationCall(address
// collateralAsset, address debtAsset, address user, uint256
// debtToCover, bool receiveAToken) (selector 0x00a718a9) into a
// LiquidationAction. The repaid/seized amounts are read off the
// LiquidationCall event rather than calldata, since debtToCover is a
// caller-supplied ceiling, not the amount actually repaid.
type aaveV3LiquidationCall struct{}

// NewAaveV3Liquidation builds the ActionClassifier for Aave V3's
// liquidationCall entry point.
func NewAaveV3Liquidation() ActionClassifier { return aaveV3LiquidationCall{} }

func (aaveV3LiquidationCall) Protocol() types.Protocol { return types.ProtocolAaveV3 }
func (aaveV3LiquidationCall) Selector() Selector       { return Selector{0x00, 0xa7, 0x18, 0xa9} }

// aaveLiquidationCallTopic0 is keccak256("LiquidationCall(address,address,address,uint256,uint256,address,bool)").
var aaveLiquidationCallTopic0 = [32]byte{
	0xe4, 0x13, 0xa3, 0x21, 0xe8, 0x68, 0x1d, 0x83,
	0x1f, 0x4d, 0xbc, 0xcb, 0xca, 0x79, 0x0d, 0x29,
	0x52, 0xb5, 0x6f, 0x97, 0x79, 0x08, 0xe4, 0x5b,
	0xe3, 0x73, 0x35, 0x53, 0x3e, 0x00, 0x52, 0x86,
}

func (aaveV3LiquidationCall) Decode(frame Frame, deps Deps) (types.Action, *DexPriceMsg, error) {
	log, ok := findLog(frame.Logs, frame.To, aaveLiquidationCallTopic0)
	if !ok || len(log.Topics) < 3 {
		return unclassified(frame), nil, nil
	}

	collateralAsset := common.BytesToAddress(log.Topics[1][12:])
	debtAsset := common.BytesToAddress(log.Topics[2][12:])

	debtRepaid := u256FromWord(word32(log.Data, 0))
	collateralSeized := u256FromWord(word32(log.Data, 1))
	liquidator := common.BytesToAddress(word32(log.Data, 2))

	debtor := debtorFromInput(frame.Input)

	debtToken := tokenOrBestEffort(deps.Tokens, debtAsset)
	collateralToken := tokenOrBestEffort(deps.Tokens, collateralAsset)

	action := &types.LiquidationAction{
		ActionHeader: types.ActionHeader{
			Kind: types.ActionLiquidation, Protocol: types.ProtocolAaveV3,
			TraceIndex: frame.TraceIndex, From: frame.From, Pool: frame.To, TxHash: frame.TxHash,
		},
		Liquidator:      liquidator,
		Debtor:          debtor,
		DebtAsset:       types.TokenAmount{Token: debtToken, Amount: types.ScaleRaw(debtRepaid, debtToken.Decimals)},
		CollateralAsset: types.TokenAmount{Token: collateralToken, Amount: types.ScaleRaw(collateralSeized, collateralToken.Decimals)},
	}
	return action, nil, nil
}

// debtorFromInput reads the `user` parameter (3rd word after the
// selector) straight from calldata — the liquidated account isn't
// reported in the event, only in the call.
func debtorFromInput(input []byte) common.Address {
	if len(input) < 4+3*32 {
		return common.Address{}
	}
	return common.BytesToAddress(input[4+2*32 : 4+3*32])
}
