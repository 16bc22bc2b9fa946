package types

import (
	"github.com/shopspring/decimal"

	"github.com/mev-core/brontes/common"
)

// MevType discriminates BundleData, the classified-strategy sum type
// produced by an Inspector (spec.md §3, §4.6).
type MevType uint8

const (
	MevUnknown MevType = iota
	MevSandwich
	MevJitLiquidity
	MevJitSandwich
	MevCexDexArbitrage
	MevCexDexTrades
	MevAtomicArb
	MevLiquidation
	MevSearcherTx
)

func (t MevType) String() string {
	switch t {
	case MevSandwich:
		return "sandwich"
	case MevJitLiquidity:
		return "jit_liquidity"
	case MevJitSandwich:
		return "jit_sandwich"
	case MevCexDexArbitrage:
		return "cex_dex_arbitrage"
	case MevCexDexTrades:
		return "cex_dex_trades"
	case MevAtomicArb:
		return "atomic_arb"
	case MevLiquidation:
		return "liquidation"
	case MevSearcherTx:
		return "searcher_tx"
	default:
		return "unknown"
	}
}

// TokenProfits is the per-token profit breakdown reported alongside a
// Bundle's aggregate USD profit (spec.md §3).
type TokenProfits struct {
	Token      TokenInfo
	AmountIn   decimal.Decimal
	AmountOut  decimal.Decimal
	ProfitUsd  decimal.Decimal
}

// Fund identifies the known trading entity behind a bundle, when the
// classifier can attribute one. FundUnknown is the zero value: the
// composer's precedence filter treats it as "no attribution" (SPEC_FULL.md
// §6 "AtomicArb vs CexDexTrades precedence polarity").
type Fund uint8

const FundUnknown Fund = iota

// BundleHeader carries the identity and top-line economics every MEV
// bundle reports regardless of strategy (spec.md §3).
type BundleHeader struct {
	BlockNumber uint64
	TxHash      common.Hash
	TxIndex     uint32
	Eoa         common.Address
	MevContract *common.Address
	ProfitUsd   decimal.Decimal
	BribeUsd    decimal.Decimal
	MevType     MevType
	Fund        Fund
	TokenProfits []TokenProfits
}

// BundleData is the strategy-specific sum type (spec.md §3, one variant per
// MevType carrying the evidence an Inspector used to classify it). Sealed
// the same way Action is: an interface plus an unexported marker method.
type BundleData interface {
	GetMevType() MevType
	isBundleData()
}

type SandwichData struct {
	Frontrun  common.Hash
	Victims   []common.Hash
	Backrun   common.Hash
}

func (SandwichData) GetMevType() MevType { return MevSandwich }
func (SandwichData) isBundleData()       {}

// JitLiquidityData covers both plain JIT and the sandwich+JIT composite
// (MevJitSandwich reuses this shape with Sandwich populated).
type JitLiquidityData struct {
	MintTx    common.Hash
	Victims   []common.Hash
	BurnTx    common.Hash
	Sandwich  *SandwichData
}

func (JitLiquidityData) GetMevType() MevType { return MevJitLiquidity }
func (JitLiquidityData) isBundleData()       {}

// CexDexData covers both MevCexDexArbitrage (quote-derived) and
// MevCexDexTrades (trade-derived) variants; Trades is empty for the
// quote-derived case (spec.md §9 Open Question: AtomicArb/CexDexTrades
// precedence, resolved in SPEC_FULL.md §6).
type CexDexData struct {
	DexSwap    SwapAction
	CexQuote   *CexQuote
	Trades     []CexTrade
	TradesBased bool
}

func (d CexDexData) GetMevType() MevType {
	if d.TradesBased {
		return MevCexDexTrades
	}
	return MevCexDexArbitrage
}
func (CexDexData) isBundleData() {}

// AtomicArbType distinguishes the shape of an atomic arbitrage cycle —
// the composer's precedence filter treats Triangle specially (SPEC_FULL.md
// §6 "AtomicArb vs CexDexTrades precedence polarity").
type AtomicArbType uint8

const (
	AtomicArbUnknown AtomicArbType = iota
	AtomicArbTriangle
	AtomicArbLongTail
	AtomicArbCrossPair
)

type AtomicArbData struct {
	Swaps   []SwapAction
	ArbType AtomicArbType
}

func (AtomicArbData) GetMevType() MevType { return MevAtomicArb }
func (AtomicArbData) isBundleData()       {}

type LiquidationData struct {
	Liquidations []LiquidationAction
}

func (LiquidationData) GetMevType() MevType { return MevLiquidation }
func (LiquidationData) isBundleData()       {}

// SearcherTxData is the fallback bucket: a profitable transaction an
// Inspector could not attribute to a known strategy shape.
type SearcherTxData struct {
	Actions []Action
}

func (SearcherTxData) GetMevType() MevType { return MevSearcherTx }
func (SearcherTxData) isBundleData()       {}

// Bundle pairs a header with its strategy evidence (spec.md §3).
type Bundle struct {
	Header BundleHeader
	Data   BundleData
}
