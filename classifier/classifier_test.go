package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

type fakeTokens struct {
	known map[common.Address]types.TokenInfo
}

func (f *fakeTokens) TokenInfo(addr common.Address) (types.TokenInfo, bool) {
	t, ok := f.known[addr]
	return t, ok
}

type fakePools struct{}

func (fakePools) PoolInfo(common.Address) (types.PoolPairInformation, bool) { return types.PoolPairInformation{}, false }

func TestClassifyFallsBackToEthTransfer(t *testing.T) {
	tokens := &fakeTokens{known: map[common.Address]types.TokenInfo{}}
	c := New(Deps{Tokens: tokens, Pools: fakePools{}}, nil)

	v := common.NewU256(1_000_000_000_000_000_000)
	action, msg, err := c.Classify(types.ProtocolUnknown, Frame{Value: v, To: common.Address{0x02}})
	require.NoError(t, err)
	assert.Nil(t, msg)
	eth, ok := action.(*types.EthTransferAction)
	require.True(t, ok)
	assert.Equal(t, common.Address{0x02}, eth.To)
}

func TestClassifyFallsBackToUnclassified(t *testing.T) {
	tokens := &fakeTokens{known: map[common.Address]types.TokenInfo{}}
	c := New(Deps{Tokens: tokens, Pools: fakePools{}}, nil)

	action, msg, err := c.Classify(types.ProtocolUnknown, Frame{Input: []byte{0xde, 0xad, 0xbe, 0xef}})
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Equal(t, types.ActionUnclassified, action.GetKind())
}

type stubActionClassifier struct{}

func (stubActionClassifier) Protocol() types.Protocol { return types.ProtocolUniswapV2 }
func (stubActionClassifier) Selector() Selector       { return Selector{0x02, 0x2c, 0x0d, 0x9f} }
func (stubActionClassifier) Decode(frame Frame, deps Deps) (types.Action, *DexPriceMsg, error) {
	return &types.SwapAction{ActionHeader: types.ActionHeader{Kind: types.ActionSwap, Protocol: types.ProtocolUniswapV2}},
		&DexPriceMsg{TraceIndex: frame.TraceIndex}, nil
}

func TestClassifyDispatchesRegisteredSelector(t *testing.T) {
	tokens := &fakeTokens{known: map[common.Address]types.TokenInfo{}}
	c := New(Deps{Tokens: tokens, Pools: fakePools{}}, nil)
	c.Register(stubActionClassifier{})

	action, msg, err := c.Classify(types.ProtocolUniswapV2, Frame{Input: []byte{0x02, 0x2c, 0x0d, 0x9f, 0x00}})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, types.ActionSwap, action.GetKind())
}

func TestTokenInfoOrDeferredReturnsBestEffortDecimals(t *testing.T) {
	tokens := &fakeTokens{known: map[common.Address]types.TokenInfo{}}
	c := New(Deps{Tokens: tokens, Pools: fakePools{}}, nil)

	info := c.TokenInfoOrDeferred(common.Address{0x09})
	assert.EqualValues(t, 18, info.Decimals)
}
