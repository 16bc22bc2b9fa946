package types

import "github.com/mev-core/brontes/common"

// PoolPairInformation is immutable once a pool is discovered (spec.md §3).
type PoolPairInformation struct {
	PoolAddr common.Address
	Protocol Protocol
	Token0   common.Address
	Token1   common.Address
}

func (p PoolPairInformation) Pair() Pair {
	return Pair{Token0: p.Token0, Token1: p.Token1}
}

// EdgeDirection states which side of the pool the quote is taken from.
type EdgeDirection uint8

const (
	DirectionZeroToOne EdgeDirection = iota
	DirectionOneToZero
)

// SubGraphEdge is a directed instance of a pool edge annotated with its
// distance to the start (base) and end (quote) token of a requested Pair
// (spec.md §3, §9 GLOSSARY "Subgraph edge"). Used by pricing/subgraph.go's
// BFS path materialization.
type SubGraphEdge struct {
	PoolPairInformation
	Direction      EdgeDirection
	DistanceToStart uint8
	DistanceToEnd   uint8
}
