package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

func word(n *uint64) []byte {
	b := make([]byte, 32)
	if n != nil {
		v := *n
		for i := 31; i >= 24 && v > 0; i-- {
			b[i] = byte(v)
			v >>= 8
		}
	}
	return b
}

func u64(v uint64) *uint64 { return &v }

func TestUniswapV2SwapDecodesFromEventLog(t *testing.T) {
	pool := common.Address{0xAA}
	token0 := common.Address{0x01}
	token1 := common.Address{0x02}

	tokens := &fakeTokens{known: map[common.Address]types.TokenInfo{
		token0: {Address: token0, Decimals: 18},
		token1: {Address: token1, Decimals: 6},
	}}
	pools := stubPools{info: types.PoolPairInformation{PoolAddr: pool, Protocol: types.ProtocolUniswapV2, Token0: token0, Token1: token1}}

	var data []byte
	data = append(data, word(u64(1_000_000_000_000_000_000))...) // amount0In
	data = append(data, word(nil)...)                             // amount1In
	data = append(data, word(nil)...)                             // amount0Out
	data = append(data, word(u64(2_000_000))...)                  // amount1Out

	frame := Frame{
		To: pool,
		Logs: []Log{{
			Address: pool,
			Topics:  [][32]byte{uniswapV2SwapTopic0, {}, {}},
			Data:    data,
		}},
	}

	c := New(Deps{Tokens: tokens, Pools: pools}, nil)
	c.Register(NewUniswapV2Swap())

	action, msg, err := c.Classify(types.ProtocolUniswapV2, Frame{To: pool, Input: []byte{0x02, 0x2c, 0x0d, 0x9f}, Logs: frame.Logs})
	require.NoError(t, err)
	require.NotNil(t, msg)
	swap, ok := action.(*types.SwapAction)
	require.True(t, ok)
	require.Equal(t, token0, swap.TokenIn.Token.Address)
	require.Equal(t, token1, swap.TokenOut.Token.Address)
}

type stubPools struct{ info types.PoolPairInformation }

func (s stubPools) PoolInfo(addr common.Address) (types.PoolPairInformation, bool) {
	if addr == s.info.PoolAddr {
		return s.info, true
	}
	return types.PoolPairInformation{}, false
}

func TestUniswapV2DiscoveryDecodesPairCreated(t *testing.T) {
	factory := common.Address{0xFE}
	token0 := common.Address{0x01}
	token1 := common.Address{0x02}
	pair := common.Address{0xAA}

	data := make([]byte, 32)
	copy(data[12:], pair[:])

	log := Log{
		Address: factory,
		Topics:  [][32]byte{pairCreatedTopic0, addrTopic(token0), addrTopic(token1)},
		Data:    data,
	}

	d := NewUniswapV2Discovery(factory)
	require.True(t, d.Matches(log))

	action, err := d.Decode(Frame{}, log)
	require.NoError(t, err)
	require.Equal(t, token0, action.Token0.Address)
	require.Equal(t, token1, action.Token1.Address)
	require.Equal(t, pair, action.Pool)
}

func addrTopic(a common.Address) [32]byte {
	var t [32]byte
	copy(t[12:], a[:])
	return t
}

func TestUniswapV3SwapDecodesSignedAmounts(t *testing.T) {
	pool := common.Address{0xBB}
	token0 := common.Address{0x03}
	token1 := common.Address{0x04}

	tokens := &fakeTokens{known: map[common.Address]types.TokenInfo{
		token0: {Address: token0, Decimals: 18},
		token1: {Address: token1, Decimals: 18},
	}}
	pools := stubPools{info: types.PoolPairInformation{PoolAddr: pool, Protocol: types.ProtocolUniswapV3, Token0: token0, Token1: token1}}

	amount0 := word(u64(5_000_000_000_000_000_000)) // pool received token0 (positive)
	amount1 := negWord(3_000_000_000_000_000_000)    // pool paid token1 (negative)

	var data []byte
	data = append(data, amount0...)
	data = append(data, amount1...)

	c := New(Deps{Tokens: tokens, Pools: pools}, nil)
	c.Register(NewUniswapV3Swap())

	action, _, err := c.Classify(types.ProtocolUniswapV3, Frame{
		To:    pool,
		Input: []byte{0x12, 0x8a, 0xcb, 0x08},
		Logs: []Log{{
			Address: pool,
			Topics:  [][32]byte{uniswapV3SwapTopic0, {}, {}},
			Data:    data,
		}},
	})
	require.NoError(t, err)
	swap, ok := action.(*types.SwapAction)
	require.True(t, ok)
	require.Equal(t, token0, swap.TokenIn.Token.Address)
	require.Equal(t, token1, swap.TokenOut.Token.Address)
}

// negWord encodes -v as a 32-byte two's-complement big-endian word.
func negWord(v uint64) []byte {
	b := word(u64(v))
	for i := range b {
		b[i] = ^b[i]
	}
	// add 1
	for i := len(b) - 1; i >= 0; i-- {
		b[i]++
		if b[i] != 0 {
			break
		}
	}
	return b
}
