package types

import (
	"math/big"

	"github.com/mev-core/brontes/common"
)

// ActionKind discriminates the Action sum type (spec.md §3, design note
// §9 "Polymorphic action variants": a tagged sum type with an exhaustive
// visitor, rather than an inheritance hierarchy).
type ActionKind uint8

const (
	ActionSwap ActionKind = iota
	ActionSwapWithFee
	ActionMint
	ActionBurn
	ActionCollect
	ActionTransfer
	ActionEthTransfer
	ActionLiquidation
	ActionFlashLoan
	ActionBatch
	ActionAggregator
	ActionNewPool
	ActionUnclassified
)

func (k ActionKind) String() string {
	switch k {
	case ActionSwap:
		return "swap"
	case ActionSwapWithFee:
		return "swap_with_fee"
	case ActionMint:
		return "mint"
	case ActionBurn:
		return "burn"
	case ActionCollect:
		return "collect"
	case ActionTransfer:
		return "transfer"
	case ActionEthTransfer:
		return "eth_transfer"
	case ActionLiquidation:
		return "liquidation"
	case ActionFlashLoan:
		return "flash_loan"
	case ActionBatch:
		return "batch"
	case ActionAggregator:
		return "aggregator"
	case ActionNewPool:
		return "new_pool"
	default:
		return "unclassified"
	}
}

// TokenAmount is a rational amount already scaled by the token's decimals
// (spec.md §3 invariant: "rational amounts are always scaled by the
// token's decimals before storage"). Rational is an exact fraction
// (math/big.Rat, stdlib — see DESIGN.md: the pack's only decimal library,
// shopspring/decimal, is fixed-point and cannot hold an exact ratio).
type TokenAmount struct {
	Token  TokenInfo
	Amount *big.Rat
}

// TokenInfo is TokenInfo(WithAddress) from spec.md §3: immutable once
// discovered.
type TokenInfo struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// ScaleRaw converts a raw on-chain integer amount into a Rational scaled by
// decimals: raw / 10^decimals (spec.md §4.3 contract).
func ScaleRaw(raw *common.U256, decimals uint8) *big.Rat {
	num := new(big.Int).SetBytes(raw.Bytes())
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Rat).SetFrac(num, denom)
}

// ActionHeader carries the fields every Action variant shares (spec.md
// §3: "Each variant carries: protocol, trace_index, from, recipient/pool
// when relevant, tokens with decimals, and rational amounts").
type ActionHeader struct {
	Kind       ActionKind
	Protocol   Protocol
	TraceIndex uint32
	From       common.Address
	Pool       common.Address
	Recipient  common.Address
	TxHash     common.Hash
}

func (h ActionHeader) GetKind() ActionKind         { return h.Kind }
func (h ActionHeader) GetProtocol() Protocol       { return h.Protocol }
func (h ActionHeader) GetTraceIndex() uint32       { return h.TraceIndex }
func (h ActionHeader) GetFrom() common.Address     { return h.From }

// Action is the sum-type interface. Every concrete *Data type embeds
// ActionHeader and implements Action via the embedded accessors plus
// isAction() to seal the set to this package's variants.
type Action interface {
	GetKind() ActionKind
	GetProtocol() Protocol
	GetTraceIndex() uint32
	GetFrom() common.Address
	isAction()
}

type SwapAction struct {
	ActionHeader
	TokenIn  TokenAmount
	TokenOut TokenAmount
}

func (SwapAction) isAction() {}

// SwapWithFeeAction is a Swap that also reports the protocol fee taken,
// kept distinct so inspectors can separate LP fee from swap notional
// (spec.md §3 Action variants).
type SwapWithFeeAction struct {
	ActionHeader
	TokenIn  TokenAmount
	TokenOut TokenAmount
	FeeToken TokenAmount
}

func (SwapWithFeeAction) isAction() {}

type MintAction struct {
	ActionHeader
	AmountsIn []TokenAmount
}

func (MintAction) isAction() {}

type BurnAction struct {
	ActionHeader
	AmountsOut []TokenAmount
}

func (BurnAction) isAction() {}

// CollectAction is JIT/concentrated-liquidity fee collection.
type CollectAction struct {
	ActionHeader
	AmountsCollected []TokenAmount
}

func (CollectAction) isAction() {}

type TransferAction struct {
	ActionHeader
	Token  TokenAmount
	To     common.Address
}

func (TransferAction) isAction() {}

type EthTransferAction struct {
	ActionHeader
	To     common.Address
	Amount *big.Rat
}

func (EthTransferAction) isAction() {}

type LiquidationAction struct {
	ActionHeader
	Liquidator      common.Address
	Debtor          common.Address
	DebtAsset       TokenAmount
	CollateralAsset TokenAmount
}

func (LiquidationAction) isAction() {}

// FlashLoanAction's Repayments field is populated (folded in) by the
// multi-frame rewrite pass described in tree/rewrite.go; before rewrite it
// is empty (spec.md §8 scenario 3).
type FlashLoanAction struct {
	ActionHeader
	Assets      []TokenAmount
	Repayments  []TransferAction
	ChildActions []Action
}

func (FlashLoanAction) isAction() {}

// BatchAction wraps a contract-level batch of sub-swaps (e.g. a router
// executing several hops atomically) that classification chose to keep
// grouped rather than flatten.
type BatchAction struct {
	ActionHeader
	Actions []Action
}

func (BatchAction) isAction() {}

// AggregatorAction is a DEX-aggregator entry point (0x, CowSwap, UniswapX)
// whose child swaps are the true economic events; the aggregator action
// itself records the user-facing amounts.
type AggregatorAction struct {
	ActionHeader
	TokenIn  TokenAmount
	TokenOut TokenAmount
}

func (AggregatorAction) isAction() {}

type NewPoolAction struct {
	ActionHeader
	Token0 TokenInfo
	Token1 TokenInfo
}

func (NewPoolAction) isAction() {}

type UnclassifiedAction struct {
	ActionHeader
	Selector [4]byte
	CallData []byte
}

func (UnclassifiedAction) isAction() {}

// Predicate builders: simple pattern matches over the Kind discriminant,
// per §9's "Predicate builders (is_swap, is_transfer, …) are simple
// pattern-matches" design note.
func IsSwap(a Action) bool {
	return a.GetKind() == ActionSwap || a.GetKind() == ActionSwapWithFee
}
func IsTransfer(a Action) bool {
	return a.GetKind() == ActionTransfer || a.GetKind() == ActionEthTransfer
}
func IsMintOrBurn(a Action) bool {
	return a.GetKind() == ActionMint || a.GetKind() == ActionBurn
}
func IsLiquidation(a Action) bool { return a.GetKind() == ActionLiquidation }
func IsFlashLoan(a Action) bool   { return a.GetKind() == ActionFlashLoan }
func IsNewPool(a Action) bool     { return a.GetKind() == ActionNewPool }
func IsUnclassified(a Action) bool { return a.GetKind() == ActionUnclassified }

// Visit is the exhaustive visitor over the sum type (§9): callers supply a
// handler per variant. A variant whose handler is nil is skipped; Visit
// panics on an Action implementation it has no case for.
type Visitor struct {
	Swap          func(*SwapAction)
	SwapWithFee   func(*SwapWithFeeAction)
	Mint          func(*MintAction)
	Burn          func(*BurnAction)
	Collect       func(*CollectAction)
	Transfer      func(*TransferAction)
	EthTransfer   func(*EthTransferAction)
	Liquidation   func(*LiquidationAction)
	FlashLoan     func(*FlashLoanAction)
	Batch         func(*BatchAction)
	Aggregator    func(*AggregatorAction)
	NewPool       func(*NewPoolAction)
	Unclassified  func(*UnclassifiedAction)
}

func Visit(a Action, v Visitor) {
	switch t := a.(type) {
	case *SwapAction:
		if v.Swap != nil {
			v.Swap(t)
		}
	case *SwapWithFeeAction:
		if v.SwapWithFee != nil {
			v.SwapWithFee(t)
		}
	case *MintAction:
		if v.Mint != nil {
			v.Mint(t)
		}
	case *BurnAction:
		if v.Burn != nil {
			v.Burn(t)
		}
	case *CollectAction:
		if v.Collect != nil {
			v.Collect(t)
		}
	case *TransferAction:
		if v.Transfer != nil {
			v.Transfer(t)
		}
	case *EthTransferAction:
		if v.EthTransfer != nil {
			v.EthTransfer(t)
		}
	case *LiquidationAction:
		if v.Liquidation != nil {
			v.Liquidation(t)
		}
	case *FlashLoanAction:
		if v.FlashLoan != nil {
			v.FlashLoan(t)
		}
	case *BatchAction:
		if v.Batch != nil {
			v.Batch(t)
		}
	case *AggregatorAction:
		if v.Aggregator != nil {
			v.Aggregator(t)
		}
	case *NewPoolAction:
		if v.NewPool != nil {
			v.NewPool(t)
		}
	case *UnclassifiedAction:
		if v.Unclassified != nil {
			v.Unclassified(t)
		}
	default:
		panic("types: Visit called with an unknown Action implementation")
	}
}
