package pricing

import (
	stderrors "errors"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/mev-core/brontes/bronerr"
	"github.com/mev-core/brontes/types"
)

var (
	errUnknownVariant      = stderrors.New("unknown pool variant")
	errInsufficientReserve = stderrors.New("insufficient reserve for delta")
	errNegativeLiquidity   = stderrors.New("tick crossing produced negative liquidity")
	errCurveBalanceShape   = stderrors.New("curve pool balances/rates do not match expected token count")
)

// Variant discriminates the per-protocol reserve/liquidity shape a pool
// edge carries (spec.md §4.4 "Per-edge state stores reserves/liquidity/
// tick per protocol variant").
type Variant uint8

const (
	VariantConstantProduct Variant = iota
	VariantConcentratedLiquidity
	VariantCurveStable
	VariantCurveCrypto
)

// TickInfo is one initialized tick's net liquidity delta, crossed when the
// pool's active tick moves past it (Uniswap-V3-like concentrated
// liquidity).
type TickInfo struct {
	Tick         int32
	LiquidityNet *big.Int
}

// PoolState is one edge's mutable reserve/liquidity state, updated in
// trace-index order as DexPriceMsg events arrive (spec.md §4.4 step 3).
// Quotes are always reported as quote_per_base with base == Info.Token0,
// quote == Info.Token1 (spec.md §4.4 "ordered() key is used consistently
// in the map") — callers reorient against a requested Pair's canonical
// ordering, not PoolState itself.
type PoolState struct {
	Info    types.PoolPairInformation
	Variant Variant

	// Constant product: Reserve0/Reserve1 track Token0/Token1 respectively.
	Reserve0 *uint256.Int
	Reserve1 *uint256.Int

	// Concentrated liquidity.
	SqrtPriceX96 *uint256.Int
	Liquidity    *uint256.Int
	CurrentTick  int32
	TickSpacing  int32
	Ticks        map[int32]TickInfo

	// Curve stable/crypto, indexed the same way as Reserve0/Reserve1.
	Balances []*uint256.Int
	A        *uint256.Int
	Gamma    *uint256.Int
	Rates    []*uint256.Int
}

// Delta is a signed change to one side of a pool, always expressed
// against Info.Token0/Token1 (not swap direction) so repeated Update calls
// compose regardless of which side a given trace added to or drained.
type Delta struct {
	Token0 *big.Int
	Token1 *big.Int
}

// Update applies one trace's signed reserve delta and returns the
// PriceBracket it produced — pre-state evaluated before the mutation,
// post-state after (spec.md §4.4 step 3).
func (p *PoolState) Update(delta Delta) (types.PriceBracket, error) {
	pre, err := p.quote()
	if err != nil {
		return types.PriceBracket{}, err
	}

	switch p.Variant {
	case VariantConstantProduct:
		if err := p.applyReserves(delta); err != nil {
			return types.PriceBracket{}, err
		}
	case VariantConcentratedLiquidity:
		// sqrtPriceX96 is set directly from the trace (see SetSqrtPrice);
		// a bare reserve delta carries no concentrated-liquidity state.
	case VariantCurveStable, VariantCurveCrypto:
		if err := p.applyCurveBalances(delta); err != nil {
			return types.PriceBracket{}, err
		}
	default:
		return types.PriceBracket{}, bronerr.Protocol("pricing.pool_update", errUnknownVariant)
	}

	post, err := p.quote()
	if err != nil {
		return types.PriceBracket{}, err
	}
	return types.PriceBracket{PreState: pre, PostState: post}, nil
}

// SetSqrtPrice applies a concentrated-liquidity trace's reported
// post-swap sqrtPriceX96 directly, returning the bracket it produced.
func (p *PoolState) SetSqrtPrice(sqrtPriceX96 *uint256.Int) (types.PriceBracket, error) {
	pre, err := p.quote()
	if err != nil {
		return types.PriceBracket{}, err
	}
	p.SqrtPriceX96 = sqrtPriceX96
	post, err := p.quote()
	if err != nil {
		return types.PriceBracket{}, err
	}
	return types.PriceBracket{PreState: pre, PostState: post}, nil
}

func (p *PoolState) quote() (*big.Rat, error) {
	switch p.Variant {
	case VariantConstantProduct:
		return ConstantProductPrice(p.Reserve0, p.Reserve1)
	case VariantConcentratedLiquidity:
		return TickPrice(p.SqrtPriceX96)
	case VariantCurveStable, VariantCurveCrypto:
		return p.curveQuote()
	default:
		return nil, bronerr.Protocol("pricing.pool_quote", errUnknownVariant)
	}
}

func applySignedReserve(reserve *uint256.Int, delta *big.Int) (*uint256.Int, error) {
	if delta == nil || delta.Sign() == 0 {
		return reserve, nil
	}
	cur := new(big.Int).SetBytes(reserve.Bytes())
	cur.Add(cur, delta)
	if cur.Sign() < 0 {
		return nil, bronerr.Arithmetic("pricing.apply_signed_reserve", errInsufficientReserve)
	}
	out, overflow := uint256.FromBig(cur)
	if overflow {
		return nil, bronerr.Arithmetic("pricing.apply_signed_reserve", errMultiplyOverflow)
	}
	return out, nil
}

func (p *PoolState) applyReserves(delta Delta) error {
	r0, err := applySignedReserve(p.Reserve0, delta.Token0)
	if err != nil {
		return err
	}
	r1, err := applySignedReserve(p.Reserve1, delta.Token1)
	if err != nil {
		return err
	}
	p.Reserve0, p.Reserve1 = r0, r1
	return nil
}

func (p *PoolState) applyCurveBalances(delta Delta) error {
	if len(p.Balances) < 2 {
		return bronerr.Protocol("pricing.curve_update", errCurveBalanceShape)
	}
	b0, err := applySignedReserve(p.Balances[0], delta.Token0)
	if err != nil {
		return err
	}
	b1, err := applySignedReserve(p.Balances[1], delta.Token1)
	if err != nil {
		return err
	}
	p.Balances[0], p.Balances[1] = b0, b1
	return nil
}

// CrossTick applies an initialized tick boundary crossing, flipping the
// tick's liquidityNet sign by swap direction (Uniswap-V3 mechanics).
func (p *PoolState) CrossTick(tick int32, zeroForOne bool) error {
	info, ok := p.Ticks[tick]
	if !ok {
		return nil
	}
	delta := new(big.Int).Set(info.LiquidityNet)
	if zeroForOne {
		delta.Neg(delta)
	}
	liq := new(big.Int).SetBytes(p.Liquidity.Bytes())
	liq.Add(liq, delta)
	if liq.Sign() < 0 {
		return bronerr.Arithmetic("pricing.cross_tick", errNegativeLiquidity)
	}
	newLiq, overflow := uint256.FromBig(liq)
	if overflow {
		return bronerr.Arithmetic("pricing.cross_tick", errMultiplyOverflow)
	}
	p.Liquidity = newLiq
	p.CurrentTick = tick
	return nil
}

// curveQuote approximates the marginal exchange rate as the balance ratio
// scaled by each asset's rate multiplier — exact for the crypto/stable
// invariant only at the current balance point, which is what spec.md §4.4
// asks for ("the Rational exchange rate ... at the pre-trace reserves").
// A full StableSwap/Crypto invariant derivative is out of scope: the
// balance-ratio approximation is what PricingGraph needs to seed
// TWAP-over-paths, and a closed-form invariant solve belongs in a
// dedicated curve-math package if ever needed.
func (p *PoolState) curveQuote() (*big.Rat, error) {
	if len(p.Balances) < 2 || p.Balances[0].IsZero() {
		return nil, bronerr.Arithmetic("pricing.curve_quote", errCurveBalanceShape)
	}
	num := new(big.Int).SetBytes(p.Balances[1].Bytes())
	denom := new(big.Int).SetBytes(p.Balances[0].Bytes())
	rate := new(big.Rat).SetFrac(num, denom)
	if len(p.Rates) >= 2 {
		rq := new(big.Int).SetBytes(p.Rates[1].Bytes())
		rb := new(big.Int).SetBytes(p.Rates[0].Bytes())
		if rb.Sign() != 0 {
			rate.Mul(rate, new(big.Rat).SetFrac(rq, rb))
		}
	}
	return rate, nil
}
