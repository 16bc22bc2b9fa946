// The brontes binary wires every package's interfaces together against a
// live TraceProvider, Store and (optionally) ClickHouse, and exposes the
// result as a urfave/cli/v2 app (spec.md §6.3). Grounded on erigon's
// cmd/erigon's main.go + wiring pattern: one file per subcommand group,
// with each subcommand's Action constructing the dependencies it needs
// from the resolved config.
package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/mev-core/brontes/classifier"
	"github.com/mev-core/brontes/clickhouse"
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/metadata"
	"github.com/mev-core/brontes/pricing"
	"github.com/mev-core/brontes/provider"
	"github.com/mev-core/brontes/store"
	"github.com/mev-core/brontes/types"
)

// storeTokenInfo implements classifier.TokenInfoProvider over Store's
// TokenDecimals table, a fresh ROTx per lookup since Classify is called
// once per frame from several pipeline goroutines concurrently.
type storeTokenInfo struct{ db *store.Store }

func (t storeTokenInfo) TokenInfo(addr common.Address) (types.TokenInfo, bool) {
	tx, err := t.db.ROTx(context.Background())
	if err != nil {
		return types.TokenInfo{}, false
	}
	defer tx.Rollback()
	row, ok, err := store.NewReader(tx).TokenDecimals(addr)
	if err != nil || !ok {
		return types.TokenInfo{}, false
	}
	return types.TokenInfo{Address: addr, Symbol: row.Symbol, Decimals: row.Decimals}, true
}

// storePoolInfo implements classifier.PoolInfoProvider over Store's
// AddressToProtocolInfo table.
type storePoolInfo struct{ db *store.Store }

func (p storePoolInfo) PoolInfo(addr common.Address) (types.PoolPairInformation, bool) {
	tx, err := p.db.ROTx(context.Background())
	if err != nil {
		return types.PoolPairInformation{}, false
	}
	defer tx.Rollback()
	row, ok, err := store.NewReader(tx).ProtocolInfo(addr)
	if err != nil || !ok {
		return types.PoolPairInformation{}, false
	}
	return row.Pool, true
}

var _ classifier.TokenInfoProvider = storeTokenInfo{}
var _ classifier.PoolInfoProvider = storePoolInfo{}

// rpcDecimalsFetcher implements classifier.DecimalsFetcher via the ERC-20
// decimals() selector over TraceProvider.EthCall, grounded directly on
// original_source/crates/brontes-core/src/missing_decimals.rs's own
// eth_call-based fetch.
type rpcDecimalsFetcher struct{ p provider.TraceProvider }

var decimalsSelector = []byte{0x31, 0x3c, 0xe5, 0x67}

func (f rpcDecimalsFetcher) FetchDecimals(ctx context.Context, addr common.Address) (uint8, error) {
	out, err := f.p.EthCall(ctx, provider.CallRequest{To: addr, Data: decimalsSelector}, nil, nil)
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("wiring: empty decimals() response for %s", addr)
	}
	return out[len(out)-1], nil
}

var _ classifier.DecimalsFetcher = rpcDecimalsFetcher{}

// rpcImmutablesProvider implements pricing.ImmutablesProvider: it resolves
// a pool's token pair from Store (already known from discovery, since
// LazyLoader.Load is only ever called against a pool a DexPriceMsg named)
// then reads the protocol-appropriate immutable/reserve selectors over
// EthCall. Grounded on original_source/crates/brontes-pricing/src/exchanges'
// per-protocol PoolManager::load structs, reworked onto raw ABI selectors
// since this module carries no contract-binding generator the way
// abigen-based teacher code would.
type rpcImmutablesProvider struct {
	rpc provider.TraceProvider
	db  *store.Store
}

var (
	selectorGetReserves = []byte{0x09, 0x02, 0xf1, 0xac} // getReserves()
	selectorSlot0       = []byte{0x38, 0x50, 0xc7, 0xbd} // slot0()
	selectorLiquidity   = []byte{0x1a, 0x68, 0x65, 0x02} // liquidity()
	selectorBalances0   = append([]byte{0x49, 0x03, 0xb0, 0xd1}, leftPad32(big.NewInt(0))...) // balances(uint256=0)
	selectorBalances1   = append([]byte{0x49, 0x03, 0xb0, 0xd1}, leftPad32(big.NewInt(1))...)
)

func leftPad32(v *big.Int) []byte {
	b := v.Bytes()
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func (l rpcImmutablesProvider) LoadPool(ctx context.Context, pool common.Address, variant pricing.Variant, atBlock uint64) (*pricing.PoolState, error) {
	info, ok := storePoolInfo{db: l.db}.PoolInfo(pool)
	if !ok {
		return nil, fmt.Errorf("wiring: load_pool: no discovered pair for %s", pool)
	}

	state := &pricing.PoolState{
		Info:    info,
		Variant: variant,
	}

	switch variant {
	case pricing.VariantConcentratedLiquidity:
		slot0, err := l.rpc.EthCall(ctx, provider.CallRequest{To: pool, Data: selectorSlot0}, &atBlock, nil)
		if err != nil {
			return nil, err
		}
		if len(slot0) < 64 {
			return nil, fmt.Errorf("wiring: load_pool: short slot0() response for %s", pool)
		}
		state.SqrtPriceX96 = new(uint256.Int).SetBytes(slot0[:32])
		state.CurrentTick = int32(new(big.Int).SetBytes(slot0[32:64]).Int64())
		liq, err := l.rpc.EthCall(ctx, provider.CallRequest{To: pool, Data: selectorLiquidity}, &atBlock, nil)
		if err != nil {
			return nil, err
		}
		state.Liquidity = new(uint256.Int).SetBytes(liq)
		state.Ticks = make(map[int32]pricing.TickInfo)
	case pricing.VariantCurveStable, pricing.VariantCurveCrypto:
		b0, err := l.rpc.EthCall(ctx, provider.CallRequest{To: pool, Data: selectorBalances0}, &atBlock, nil)
		if err != nil {
			return nil, err
		}
		b1, err := l.rpc.EthCall(ctx, provider.CallRequest{To: pool, Data: selectorBalances1}, &atBlock, nil)
		if err != nil {
			return nil, err
		}
		state.Balances = []*uint256.Int{new(uint256.Int).SetBytes(b0), new(uint256.Int).SetBytes(b1)}
		state.A = uint256.NewInt(0)
		state.Gamma = uint256.NewInt(0)
	default: // VariantConstantProduct
		reserves, err := l.rpc.EthCall(ctx, provider.CallRequest{To: pool, Data: selectorGetReserves}, &atBlock, nil)
		if err != nil {
			return nil, err
		}
		if len(reserves) < 64 {
			return nil, fmt.Errorf("wiring: load_pool: short getReserves() response for %s", pool)
		}
		state.Reserve0 = new(uint256.Int).SetBytes(reserves[:32])
		state.Reserve1 = new(uint256.Int).SetBytes(reserves[32:64])
	}
	return state, nil
}

var _ pricing.ImmutablesProvider = rpcImmutablesProvider{}

// relaySourceAdapter implements metadata.RelaySource over a ClickHouse
// handle, converting the decimal-string reward ClickHouse stores into the
// common.U256 RelayRecord carries.
type relaySourceAdapter struct{ ch *clickhouse.Handle }

func (r relaySourceAdapter) RelayRecord(ctx context.Context, block uint64) (metadata.RelayRecord, bool, error) {
	bid, ok, err := r.ch.RelayBid(ctx, block)
	if err != nil || !ok {
		return metadata.RelayRecord{}, ok, err
	}
	reward := new(uint256.Int)
	if err := reward.SetFromDecimal(bid.ProposerMevRewardWei); err != nil {
		return metadata.RelayRecord{}, false, fmt.Errorf("wiring: relay_record: bad reward %q: %w", bid.ProposerMevRewardWei, err)
	}
	return metadata.RelayRecord{
		ProposerFeeRecipient: bid.ProposerFeeRecipient,
		ProposerMevReward:    *reward,
		P2PTimestamp:         bid.P2PTimestamp,
	}, true, nil
}

var _ metadata.RelaySource = relaySourceAdapter{}
