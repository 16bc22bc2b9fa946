// Package pricing implements PricingGraph: the per-block pool multigraph,
// lazy pool loading, subgraph path pricing, and TWAP-over-paths
// aggregation (spec.md §4.4).
package pricing

import (
	stderrors "errors"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/mev-core/brontes/bronerr"
)

var (
	errDivideByZero    = stderrors.New("divide by zero")
	errMultiplyOverflow = stderrors.New("multiply overflow")
	errAddOverflow      = stderrors.New("add overflow")
	errEmptyReserve     = stderrors.New("empty reserve")
	errZeroSqrtPrice    = stderrors.New("zero sqrt price")
)

// CheckedMulDiv computes x*y/denom over uint256, returning the Arithmetic
// error kind on overflow or division by zero (spec.md §7: arithmetic
// overflow and divide-by-zero are Arithmetic-kind errors, never silently
// wrapped or truncated). Grounded on consensus/misc/eip4844.go's
// FakeExponential, which checks MulOverflow at every step rather than
// letting uint256 wrap silently.
func CheckedMulDiv(x, y, denom *uint256.Int) (*uint256.Int, error) {
	if denom.IsZero() {
		return nil, bronerr.Arithmetic("pricing.checked_mul_div", errDivideByZero)
	}
	product := new(uint256.Int)
	if _, overflow := product.MulOverflow(x, y); overflow {
		return nil, bronerr.Arithmetic("pricing.checked_mul_div", errMultiplyOverflow)
	}
	return new(uint256.Int).Div(product, denom), nil
}

// CheckedAdd is AddOverflow wrapped in the Arithmetic error kind.
func CheckedAdd(x, y *uint256.Int) (*uint256.Int, error) {
	out := new(uint256.Int)
	if _, overflow := out.AddOverflow(x, y); overflow {
		return nil, bronerr.Arithmetic("pricing.checked_add", errAddOverflow)
	}
	return out, nil
}

// ConstantProductPrice returns quote_per_base for a Uniswap-V2-like pool
// with reserves (reserveBase, reserveQuote): reserveQuote / reserveBase,
// exact (math/big.Rat — see DESIGN.md for why big.Rat and not
// shopspring/decimal holds exchange rates).
func ConstantProductPrice(reserveBase, reserveQuote *uint256.Int) (*big.Rat, error) {
	if reserveBase.IsZero() {
		return nil, bronerr.Arithmetic("pricing.constant_product_price", errEmptyReserve)
	}
	num := new(big.Int).SetBytes(reserveQuote.Bytes())
	denom := new(big.Int).SetBytes(reserveBase.Bytes())
	return new(big.Rat).SetFrac(num, denom), nil
}

// TickPrice returns quote_per_base for a Uniswap-V3-like pool from its
// sqrtPriceX96, following the standard (sqrtPriceX96/2^96)^2 relation.
func TickPrice(sqrtPriceX96 *uint256.Int) (*big.Rat, error) {
	if sqrtPriceX96.IsZero() {
		return nil, bronerr.Arithmetic("pricing.tick_price", errZeroSqrtPrice)
	}
	sqrtP := new(big.Int).SetBytes(sqrtPriceX96.Bytes())
	q96 := new(big.Int).Lsh(big.NewInt(1), 96)
	num := new(big.Int).Mul(sqrtP, sqrtP)
	denom := new(big.Int).Mul(q96, q96)
	return new(big.Rat).SetFrac(num, denom), nil
}
