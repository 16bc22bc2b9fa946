package classifier

import (
	"math/big"

	"github.com/mev-core/brontes/bronerr"
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

// uniswapV2SwapTopic0 is keccak256("Swap(address,uint256,uint256,uint256,uint256,address)").
var uniswapV2SwapTopic0 = [32]byte{
	0xd7, 0x8a, 0xd9, 0x5f, 0xa4, 0x6c, 0x99, 0x4b,
	0x65, 0x51, 0xd0, 0xda, 0x85, 0xfc, 0x27, 0x5f,
	0xe6, 0x13, 0xce, 0x37, 0x65, 0x7f, 0xb8, 0xd5,
	0xe3, 0xd1, 0x30, 0x84, 0x01, 0x59, 0xd8, 0x22,
}

// uniswapV3SwapTopic0 is keccak256("Swap(address,address,int256,int256,uint160,uint128,int24)").
var uniswapV3SwapTopic0 = [32]byte{
	0xc4, 0x20, 0x79, 0xf9, 0x4a, 0x63, 0x50, 0xd7,
	0xe6, 0x23, 0x5f, 0x29, 0x17, 0x49, 0x24, 0xf9,
	0x28, 0xcc, 0x2a, 0xc8, 0x18, 0xeb, 0x64, 0xfe,
	0xd8, 0x00, 0x4e, 0x11, 0x5f, 0xbc, 0xca, 0x67,
}

// pairCreatedTopic0 is keccak256("PairCreated(address,address,address,uint256)").
var pairCreatedTopic0 = [32]byte{
	0x0d, 0x36, 0x48, 0xbd, 0x0f, 0x6b, 0xa8, 0x01,
	0x34, 0xa3, 0x3b, 0xa9, 0x27, 0x5a, 0xc5, 0x85,
	0xd9, 0xd3, 0x15, 0xf0, 0xad, 0x83, 0x55, 0xcd,
	0xde, 0xfd, 0xe3, 0x1a, 0xfa, 0x28, 0xd0, 0xe9,
}

// word32 slices out the n-th 32-byte ABI word of a log/calldata body
// (offset already past any selector the caller stripped).
func word32(data []byte, n int) []byte {
	start := n * 32
	if start+32 > len(data) {
		return make([]byte, 32)
	}
	return data[start : start+32]
}

func u256FromWord(b []byte) *common.U256 {
	return new(common.U256).SetBytes(b)
}

// int256FromWord interprets a 32-byte big-endian two's-complement word as
// a signed integer, the shape Uniswap V3's Swap event reports amount0/
// amount1 in (negative means the pool paid that token out).
func int256FromWord(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8))
		v.Sub(v, mod)
	}
	return v
}

func tokenOrBestEffort(tokens TokenInfoProvider, addr common.Address) types.TokenInfo {
	if info, ok := tokens.TokenInfo(addr); ok {
		return info
	}
	return types.TokenInfo{Address: addr, Decimals: bestEffortDecimals}
}

func findLog(logs []Log, addr common.Address, topic0 [32]byte) (Log, bool) {
	for _, l := range logs {
		if l.Address == addr && len(l.Topics) > 0 && l.Topics[0] == topic0 {
			return l, true
		}
	}
	return Log{}, false
}

// uniswapV2Swap decodes a UniswapV2Pair.swap(...) call (selector
// 0x022c0d9f) via its Swap event, since the event is the only place both
// In and Out legs appear together (calldata only carries the Out amounts
// a router requested).
type uniswapV2Swap struct{}

// NewUniswapV2Swap builds the ActionClassifier for UniswapV2Pair.swap.
func NewUniswapV2Swap() ActionClassifier { return uniswapV2Swap{} }

func (uniswapV2Swap) Protocol() types.Protocol { return types.ProtocolUniswapV2 }
func (uniswapV2Swap) Selector() Selector       { return Selector{0x02, 0x2c, 0x0d, 0x9f} }

func (uniswapV2Swap) Decode(frame Frame, deps Deps) (types.Action, *DexPriceMsg, error) {
	pool, ok := deps.Pools.PoolInfo(frame.To)
	if !ok {
		return unclassified(frame), nil, nil
	}
	log, ok := findLog(frame.Logs, frame.To, uniswapV2SwapTopic0)
	if !ok {
		return nil, nil, bronerr.Decode("classifier.uniswap_v2_swap", errNoSwapLog, bronerr.WithKey(frame.TxHash.String()))
	}

	amount0In := u256FromWord(word32(log.Data, 0))
	amount1In := u256FromWord(word32(log.Data, 1))
	amount0Out := u256FromWord(word32(log.Data, 2))
	amount1Out := u256FromWord(word32(log.Data, 3))

	token0 := tokenOrBestEffort(deps.Tokens, pool.Token0)
	token1 := tokenOrBestEffort(deps.Tokens, pool.Token1)

	var in, out types.TokenAmount
	if !amount0In.IsZero() {
		in = types.TokenAmount{Token: token0, Amount: types.ScaleRaw(amount0In, token0.Decimals)}
		out = types.TokenAmount{Token: token1, Amount: types.ScaleRaw(amount1Out, token1.Decimals)}
	} else {
		in = types.TokenAmount{Token: token1, Amount: types.ScaleRaw(amount1In, token1.Decimals)}
		out = types.TokenAmount{Token: token0, Amount: types.ScaleRaw(amount0Out, token0.Decimals)}
	}

	action := &types.SwapAction{
		ActionHeader: types.ActionHeader{
			Kind: types.ActionSwap, Protocol: types.ProtocolUniswapV2,
			TraceIndex: frame.TraceIndex, From: frame.From, Pool: frame.To, TxHash: frame.TxHash,
		},
		TokenIn:  in,
		TokenOut: out,
	}
	msg := &DexPriceMsg{TraceIndex: frame.TraceIndex, TxIndex: frame.TxIndex, Pool: pool, Action: action}
	return action, msg, nil
}

// uniswapV3Swap decodes UniswapV3Pool.swap(...) (selector 0x128acb08) via
// its Swap event's signed amount0/amount1 legs.
type uniswapV3Swap struct{}

// NewUniswapV3Swap builds the ActionClassifier for UniswapV3Pool.swap.
func NewUniswapV3Swap() ActionClassifier { return uniswapV3Swap{} }

func (uniswapV3Swap) Protocol() types.Protocol { return types.ProtocolUniswapV3 }
func (uniswapV3Swap) Selector() Selector       { return Selector{0x12, 0x8a, 0xcb, 0x08} }

func (uniswapV3Swap) Decode(frame Frame, deps Deps) (types.Action, *DexPriceMsg, error) {
	pool, ok := deps.Pools.PoolInfo(frame.To)
	if !ok {
		return unclassified(frame), nil, nil
	}
	log, ok := findLog(frame.Logs, frame.To, uniswapV3SwapTopic0)
	if !ok {
		return nil, nil, bronerr.Decode("classifier.uniswap_v3_swap", errNoSwapLog, bronerr.WithKey(frame.TxHash.String()))
	}

	amount0 := int256FromWord(word32(log.Data, 0))
	amount1 := int256FromWord(word32(log.Data, 1))

	token0 := tokenOrBestEffort(deps.Tokens, pool.Token0)
	token1 := tokenOrBestEffort(deps.Tokens, pool.Token1)

	var in, out types.TokenAmount
	if amount0.Sign() > 0 {
		in = types.TokenAmount{Token: token0, Amount: new(big.Rat).SetFrac(amount0, pow10(token0.Decimals))}
		out = types.TokenAmount{Token: token1, Amount: new(big.Rat).SetFrac(new(big.Int).Neg(amount1), pow10(token1.Decimals))}
	} else {
		in = types.TokenAmount{Token: token1, Amount: new(big.Rat).SetFrac(amount1, pow10(token1.Decimals))}
		out = types.TokenAmount{Token: token0, Amount: new(big.Rat).SetFrac(new(big.Int).Neg(amount0), pow10(token0.Decimals))}
	}

	action := &types.SwapAction{
		ActionHeader: types.ActionHeader{
			Kind: types.ActionSwap, Protocol: types.ProtocolUniswapV3,
			TraceIndex: frame.TraceIndex, From: frame.From, Pool: frame.To, TxHash: frame.TxHash,
		},
		TokenIn:  in,
		TokenOut: out,
	}
	msg := &DexPriceMsg{TraceIndex: frame.TraceIndex, TxIndex: frame.TxIndex, Pool: pool, Action: action}
	return action, msg, nil
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

func unclassified(frame Frame) types.Action {
	return &types.UnclassifiedAction{
		ActionHeader: types.ActionHeader{Kind: types.ActionUnclassified, TraceIndex: frame.TraceIndex, From: frame.From, TxHash: frame.TxHash},
		Selector:     selectorOf(frame.Input),
		CallData:     frame.Input,
	}
}

// uniswapV2PairDiscovery recognizes UniswapV2Factory's PairCreated event,
// registering the new pool's pair for later PoolInfoProvider lookups
// (spec.md §4.3 step 2).
type uniswapV2PairDiscovery struct {
	factory common.Address
}

// NewUniswapV2Discovery builds a DiscoveryClassifier for factory, the
// canonical UniswapV2Factory address on the target chain (injected at
// wiring time rather than hardcoded, since forks and L2 deployments use
// different addresses for the same ABI).
func NewUniswapV2Discovery(factory common.Address) DiscoveryClassifier {
	return uniswapV2PairDiscovery{factory: factory}
}

func (d uniswapV2PairDiscovery) Factory() common.Address { return d.factory }

func (d uniswapV2PairDiscovery) Matches(log Log) bool {
	return log.Address == d.factory && len(log.Topics) == 3 && log.Topics[0] == pairCreatedTopic0
}

func (d uniswapV2PairDiscovery) Decode(frame Frame, log Log) (types.NewPoolAction, error) {
	token0 := common.BytesToAddress(log.Topics[1][12:])
	token1 := common.BytesToAddress(log.Topics[2][12:])
	pairAddr := common.BytesToAddress(word32(log.Data, 0))

	return types.NewPoolAction{
		ActionHeader: types.ActionHeader{
			Kind: types.ActionNewPool, Protocol: types.ProtocolUniswapV2,
			TraceIndex: frame.TraceIndex, From: frame.From, Pool: pairAddr, TxHash: frame.TxHash,
		},
		Token0: types.TokenInfo{Address: token0, Decimals: bestEffortDecimals},
		Token1: types.TokenInfo{Address: token1, Decimals: bestEffortDecimals},
	}, nil
}

var errNoSwapLog = swapLogMissing("classifier: swap call frame carried no matching Swap event log")

type swapLogMissing string

func (e swapLogMissing) Error() string { return string(e) }
