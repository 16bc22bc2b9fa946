package types

import "github.com/mev-core/brontes/common"

// Pair is an unordered pair of token addresses. Ordered() gives the
// canonical lexicographic form used as the map key everywhere a price or
// quote is indexed by pair (spec.md §3, §9 GLOSSARY "Pair (ordered)").
//
// Open Question resolution (SPEC_FULL.md §6): Ordered() is the only
// equality that matters for map-key purposes, so Pair{A,B} == Pair{B,A}
// under Ordered() is intentional, not a bug.
type Pair struct {
	Token0 common.Address
	Token1 common.Address
}

// IsZero is the sentinel-invalid check: a Pair with both tokens zero never
// denotes a real market.
func (p Pair) IsZero() bool { return p.Token0.IsZero() && p.Token1.IsZero() }

// Ordered returns the canonical (min, max) form by byte-lexicographic
// address order.
func (p Pair) Ordered() Pair {
	if p.Token1.Less(p.Token0) {
		return Pair{Token0: p.Token1, Token1: p.Token0}
	}
	return p
}

// Flip returns the pair with its tokens swapped, used by CexTradeMap to
// store quote-direction trades under the flipped key (spec.md §3).
func (p Pair) Flip() Pair { return Pair{Token0: p.Token1, Token1: p.Token0} }

// Protocol enumerates every known DEX/lending protocol variant. The
// discriminant order is append-only and persisted by numeric value
// (spec.md §3: "Total order stable across versions; persisted by numeric
// discriminant").
type Protocol uint16

const (
	ProtocolUnknown Protocol = iota
	ProtocolUniswapV2
	ProtocolUniswapV3
	ProtocolSushiSwapV2
	ProtocolSushiSwapV3
	ProtocolCurveStable
	ProtocolCurveCrypto
	ProtocolBalancerV2
	ProtocolAaveV2
	ProtocolAaveV3
	ProtocolCompoundV2
	ProtocolMakerPSM
	ProtocolMakerDSSFlash
	ProtocolCowSwap
	ProtocolZeroX
	ProtocolDodo
	ProtocolDolomite
	ProtocolMaverickV2
	ProtocolCamelot
	ProtocolLFJ
	ProtocolUniswapX
	// protocolSentinelMax marks the end of the assigned range; append new
	// protocols above this line, never renumber an existing one.
	protocolSentinelMax
)

var protocolNames = map[Protocol]string{
	ProtocolUnknown:       "unknown",
	ProtocolUniswapV2:     "uniswap_v2",
	ProtocolUniswapV3:     "uniswap_v3",
	ProtocolSushiSwapV2:   "sushiswap_v2",
	ProtocolSushiSwapV3:   "sushiswap_v3",
	ProtocolCurveStable:   "curve_stable",
	ProtocolCurveCrypto:   "curve_crypto",
	ProtocolBalancerV2:    "balancer_v2",
	ProtocolAaveV2:        "aave_v2",
	ProtocolAaveV3:        "aave_v3",
	ProtocolCompoundV2:    "compound_v2",
	ProtocolMakerPSM:      "maker_psm",
	ProtocolMakerDSSFlash: "maker_dss_flash",
	ProtocolCowSwap:       "cowswap",
	ProtocolZeroX:         "zerox",
	ProtocolDodo:          "dodo",
	ProtocolDolomite:      "dolomite",
	ProtocolMaverickV2:    "maverick_v2",
	ProtocolCamelot:       "camelot",
	ProtocolLFJ:           "lfj",
	ProtocolUniswapX:      "uniswap_x",
}

func (p Protocol) String() string {
	if s, ok := protocolNames[p]; ok {
		return s
	}
	return "unknown"
}

// IsAMM reports whether the protocol is a swap-pricing venue PricingGraph
// should track an edge for.
func (p Protocol) IsAMM() bool {
	switch p {
	case ProtocolUniswapV2, ProtocolUniswapV3, ProtocolSushiSwapV2, ProtocolSushiSwapV3,
		ProtocolCurveStable, ProtocolCurveCrypto, ProtocolBalancerV2, ProtocolMaverickV2,
		ProtocolCamelot, ProtocolLFJ, ProtocolDodo:
		return true
	default:
		return false
	}
}

// IsLending reports whether the protocol is a lending/flash-loan venue.
func (p Protocol) IsLending() bool {
	switch p {
	case ProtocolAaveV2, ProtocolAaveV3, ProtocolCompoundV2, ProtocolMakerPSM, ProtocolMakerDSSFlash, ProtocolDolomite:
		return true
	default:
		return false
	}
}
