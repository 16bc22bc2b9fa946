// Package classifier turns raw call frames into normalized Actions
// (spec.md §4.3): selector dispatch first, then pool-creation discovery,
// then plain value/ERC-20 transfers, falling back to Unclassified.
package classifier

import (
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

// Frame is one decoded call frame as the trace provider hands it to the
// classifier, prior to any normalization.
type Frame struct {
	TraceIndex uint32
	TxIndex    uint32
	TxHash     common.Hash
	From       common.Address
	To         common.Address
	Value      *common.U256
	Input      []byte
	Logs       []Log
}

// Log is the subset of a decoded event log the classifier reasons about:
// discovery classifiers match on Topics[0] (the event signature) and
// Address; ERC-20 fallback matches the standard Transfer signature.
type Log struct {
	Address common.Address
	Topics  [][32]byte
	Data    []byte
}

// Selector is a 4-byte function selector, the second half of an
// ActionClassifier registry key alongside Protocol.
type Selector [4]byte

// ActionClassifier decodes one (protocol, selector) pair's call data (and
// optionally return data and logs) into a normalized Action (spec.md §4.3
// step 1).
type ActionClassifier interface {
	Protocol() types.Protocol
	Selector() Selector
	Decode(frame Frame, deps Deps) (types.Action, *DexPriceMsg, error)
}

// DiscoveryClassifier recognizes a pool-creation log for one factory
// address and reports the new pool's pair (spec.md §4.3 step 2).
type DiscoveryClassifier interface {
	Factory() common.Address
	// Matches reports whether log is this factory's pool-creation event.
	Matches(log Log) bool
	Decode(frame Frame, log Log) (types.NewPoolAction, error)
}

// erc20TransferTopic0 is keccak256("Transfer(address,address,uint256)"),
// the standard signature the ERC-20 transfer fallback matches on.
var erc20TransferTopic0 = [32]byte{
	0xdd, 0xf2, 0x52, 0xad, 0x1b, 0xe2, 0xc8, 0x9b,
	0x69, 0xc2, 0xb0, 0x68, 0xfc, 0x37, 0x8d, 0xaa,
	0x95, 0x2b, 0xa7, 0xf1, 0x63, 0xc4, 0xa1, 0x16,
	0x28, 0xf5, 0x5a, 0x4d, 0xf5, 0x23, 0xb3, 0xef,
}

// Deps are the lookups a Decode implementation needs that the classifier
// itself doesn't own: token metadata and previously-discovered pools.
type Deps struct {
	Tokens TokenInfoProvider
	Pools  PoolInfoProvider
}

// TokenInfoProvider resolves token metadata; FetchDecimals is allowed to
// be slow or fail, which is exactly why the classifier never calls it
// synchronously on the hot path (see missingdecimals.go).
type TokenInfoProvider interface {
	TokenInfo(addr common.Address) (types.TokenInfo, bool)
}

// PoolInfoProvider resolves a previously-discovered pool's token pair.
type PoolInfoProvider interface {
	PoolInfo(addr common.Address) (types.PoolPairInformation, bool)
}

// DexPriceMsg is the side-stream event PricingGraph consumes, one per
// swap/mint/burn (spec.md §4.3 "a side-stream of DexPriceMsg events").
type DexPriceMsg struct {
	TraceIndex uint32
	TxIndex    uint32
	Pool       types.PoolPairInformation
	Action     types.Action
}

// bestEffortDecimals is emitted when token metadata is missing, per
// spec.md §4.3: "missing decimals trigger a deferred decimals-fill task
// ... and the action is emitted with best-effort decimals = 18".
const bestEffortDecimals = 18

// Classifier dispatches call frames per spec.md §4.3 and posts unresolved
// token addresses to a MissingDecimalsFiller rather than blocking.
type Classifier struct {
	selectors map[protoSelector]ActionClassifier
	discovery []DiscoveryClassifier
	deps      Deps
	missing   *MissingDecimalsFiller
}

type protoSelector struct {
	protocol types.Protocol
	selector Selector
}

func New(deps Deps, missing *MissingDecimalsFiller) *Classifier {
	return &Classifier{
		selectors: make(map[protoSelector]ActionClassifier),
		deps:      deps,
		missing:   missing,
	}
}

// Register adds an ActionClassifier to the selector dispatch table.
func (c *Classifier) Register(ac ActionClassifier) {
	c.selectors[protoSelector{ac.Protocol(), ac.Selector()}] = ac
}

// RegisterDiscovery adds a DiscoveryClassifier to the pool-creation
// discovery list, tried in registration order.
func (c *Classifier) RegisterDiscovery(dc DiscoveryClassifier) {
	c.discovery = append(c.discovery, dc)
}

// TokenInfoOrDeferred resolves addr's decimals, returning the best-effort
// constant and scheduling an async backfill if the lookup misses.
func (c *Classifier) TokenInfoOrDeferred(addr common.Address) types.TokenInfo {
	if info, ok := c.deps.Tokens.TokenInfo(addr); ok {
		return info
	}
	if c.missing != nil {
		if dec, ok := c.missing.CachedDecimals(addr); ok {
			return types.TokenInfo{Address: addr, Decimals: dec}
		}
		c.missing.Defer(addr)
	}
	return types.TokenInfo{Address: addr, Decimals: bestEffortDecimals}
}

// Classify runs the four-step dispatch of spec.md §4.3 against one frame.
func (c *Classifier) Classify(protocol types.Protocol, frame Frame) (types.Action, *DexPriceMsg, error) {
	if ac, ok := c.selectorMatch(protocol, frame); ok {
		return ac.Decode(frame, c.deps)
	}
	if action, ok := c.discoveryMatch(frame); ok {
		return &action, nil, nil
	}
	if action, ok := c.transferFallback(frame); ok {
		return action, nil, nil
	}
	return &types.UnclassifiedAction{
		ActionHeader: types.ActionHeader{
			Kind:       types.ActionUnclassified,
			TraceIndex: frame.TraceIndex,
			From:       frame.From,
			TxHash:     frame.TxHash,
		},
		Selector: selectorOf(frame.Input),
		CallData: frame.Input,
	}, nil, nil
}

func (c *Classifier) selectorMatch(protocol types.Protocol, frame Frame) (ActionClassifier, bool) {
	if len(frame.Input) < 4 {
		return nil, false
	}
	ac, ok := c.selectors[protoSelector{protocol, selectorOf(frame.Input)}]
	return ac, ok
}

func (c *Classifier) discoveryMatch(frame Frame) (types.NewPoolAction, bool) {
	for _, dc := range c.discovery {
		if dc.Factory() != frame.To {
			continue
		}
		for _, log := range frame.Logs {
			if !dc.Matches(log) {
				continue
			}
			if action, err := dc.Decode(frame, log); err == nil {
				return action, true
			}
		}
	}
	return types.NewPoolAction{}, false
}

func (c *Classifier) transferFallback(frame Frame) (types.Action, bool) {
	if len(frame.Input) == 0 && frame.Value != nil && !frame.Value.IsZero() {
		return &types.EthTransferAction{
			ActionHeader: types.ActionHeader{Kind: types.ActionEthTransfer, TraceIndex: frame.TraceIndex, From: frame.From, TxHash: frame.TxHash},
			To:           frame.To,
			Amount:       types.ScaleRaw(frame.Value, 18),
		}, true
	}
	for _, log := range frame.Logs {
		if len(log.Topics) == 3 && log.Topics[0] == erc20TransferTopic0 {
			token := c.TokenInfoOrDeferred(log.Address)
			amount := new(common.U256).SetBytes(log.Data)
			return &types.TransferAction{
				ActionHeader: types.ActionHeader{Kind: types.ActionTransfer, TraceIndex: frame.TraceIndex, From: frame.From, TxHash: frame.TxHash},
				Token:        types.TokenAmount{Token: token, Amount: types.ScaleRaw(amount, token.Decimals)},
				To:           common.BytesToAddress(log.Topics[2][12:]),
			}, true
		}
	}
	return nil, false
}

func selectorOf(input []byte) Selector {
	var s Selector
	if len(input) >= 4 {
		copy(s[:], input[:4])
	}
	return s
}
