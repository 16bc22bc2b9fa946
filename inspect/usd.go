package inspect

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

// stablecoins is the fixed set of tokens this module treats as $1 of
// value without consulting an external USD price feed — the same
// simplification brontes-inspect's test fixtures use for profit
// estimation (original_source crates/brontes-inspect/src/test_utils.rs
// hardcodes a handful of "pricing" tokens). Metadata carries no USD price
// feed, so Inspectors report zero profit for any token pair that never
// touches one of these addresses.
var stablecoins = map[common.Address]bool{}

// RegisterStablecoin adds addr to the fixed-$1 set. cmd/brontes registers
// no addresses, so outside tests the set is empty and usdValue reports
// false for every token.
func RegisterStablecoin(addr common.Address) { stablecoins[addr] = true }

// ratToDecimal converts an exact big.Rat into the nearest decimal.Decimal
// at 18 fractional digits — enough precision for USD profit reporting
// without carrying math/big.Rat through the Bundle/TokenProfits types
// that the rest of the module (and the persisted store rows) use
// shopspring/decimal for.
func ratToDecimal(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	f := new(big.Float).SetRat(r)
	d, _ := decimal.NewFromString(f.Text('f', 18))
	return d
}

// usdValue reports amt's value in USD, using the fixed stablecoin set as
// a $1 numeraire. Returns (zero, false) when the token isn't in that set.
func usdValue(amt types.TokenAmount) (decimal.Decimal, bool) {
	if !stablecoins[amt.Token.Address] {
		return decimal.Zero, false
	}
	return ratToDecimal(amt.Amount), true
}
