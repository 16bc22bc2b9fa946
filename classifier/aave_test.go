package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

func TestAaveV3LiquidationDecodesFromEventAndCalldata(t *testing.T) {
	pool := common.Address{0xA0}
	collateralAsset := common.Address{0x01}
	debtAsset := common.Address{0x02}
	debtor := common.Address{0x03}
	liquidator := common.Address{0x04}

	tokens := &fakeTokens{known: map[common.Address]types.TokenInfo{
		collateralAsset: {Address: collateralAsset, Decimals: 18},
		debtAsset:        {Address: debtAsset, Decimals: 6},
	}}

	var data []byte
	data = append(data, word(u64(1_000_000))...) // debt repaid
	data = append(data, word(nil)...)             // collateral seized
	liqWord := make([]byte, 32)
	copy(liqWord[12:], liquidator[:])
	data = append(data, liqWord...)

	input := make([]byte, 4+3*32)
	copy(input[0:4], []byte{0x00, 0xa7, 0x18, 0xa9})
	copy(input[4+3*32-20:4+3*32], debtor[:])

	c := New(Deps{Tokens: tokens, Pools: stubPools{}}, nil)
	c.Register(NewAaveV3Liquidation())

	action, msg, err := c.Classify(types.ProtocolAaveV3, Frame{
		To:    pool,
		Input: input,
		Logs: []Log{{
			Address: pool,
			Topics:  [][32]byte{aaveLiquidationCallTopic0, addrTopic(collateralAsset), addrTopic(debtAsset)},
			Data:    data,
		}},
	})
	require.NoError(t, err)
	require.Nil(t, msg)

	liq, ok := action.(*types.LiquidationAction)
	require.True(t, ok)
	require.Equal(t, debtor, liq.Debtor)
	require.Equal(t, liquidator, liq.Liquidator)
	require.Equal(t, debtAsset, liq.DebtAsset.Token.Address)
	require.Equal(t, collateralAsset, liq.CollateralAsset.Token.Address)
}
