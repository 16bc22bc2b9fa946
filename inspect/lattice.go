package inspect

import (
	"fmt"

	"github.com/heimdalr/dag"

	"github.com/mev-core/brontes/types"
)

// ComposeFunction merges the child bundles of a composability entry into
// one parent-typed Bundle, e.g. Sandwich+JitLiquidity -> JitSandwich.
// Ported from composer_filters.rs's `ComposeFunction`/`get_compose_fn`.
type ComposeFunction func(children []types.Bundle) types.Bundle

// FilterFn decides, for one (dominant, subordinate) pair sharing a
// transaction, whether the subordinate survives dedup. Returning true
// means "keep the subordinate despite the dominant's precedence" — ported
// from mev_filters.rs's `FilterFn`/`atomic_dedup_fn`. A nil FilterFn always
// drops the subordinate (the common case: the macro's bare `=>` rules).
type FilterFn func(dominant, subordinate types.Bundle) bool

type composabilityEntry struct {
	Parent   types.MevType
	Children []types.MevType
	Compose  ComposeFunction
}

type precedenceEntry struct {
	Dominant     types.MevType
	Subordinates []types.MevType
	Filter       FilterFn
}

// composeSandwichJit merges a Sandwich and a JitLiquidity bundle sharing
// the same victim set into one JitSandwich bundle, mirroring
// compose_sandwich_jit (original_source brontes-inspect). Both inputs are
// expected (exactly one Sandwich, one JitLiquidity); anything else is a
// caller bug and panics rather than silently dropping evidence.
func composeSandwichJit(children []types.Bundle) types.Bundle {
	var sandwich *types.SandwichData
	var jit *types.JitLiquidityData
	var header types.BundleHeader
	for _, b := range children {
		switch d := b.Data.(type) {
		case types.SandwichData:
			sandwich = &d
			header = b.Header
		case types.JitLiquidityData:
			jit = &d
		}
	}
	if sandwich == nil || jit == nil {
		panic("inspect: composeSandwichJit requires one Sandwich and one JitLiquidity bundle")
	}
	merged := *jit
	merged.Sandwich = sandwich
	header.MevType = types.MevJitSandwich
	return types.Bundle{Header: header, Data: merged}
}

// atomicDedupFn is atomic_dedup_fn (mev_filters.rs) ported to the
// narrower Go BundleData set: an AtomicArb survives a CexDexTrades
// dominant when it's a Triangle arb, when the CexDexTrades bundle has no
// fund attribution, or when the CexDexTrades bundle's profit is lower
// than the AtomicArb's (SPEC_FULL.md §6 "AtomicArb vs CexDexTrades
// precedence polarity").
func atomicDedupFn(dominant, subordinate types.Bundle) bool {
	if dominant.Header.MevType != types.MevCexDexTrades {
		return true
	}
	atomic, ok := subordinate.Data.(types.AtomicArbData)
	if !ok {
		return false
	}
	if atomic.ArbType == types.AtomicArbTriangle {
		return true
	}
	if dominant.Header.Fund == types.FundUnknown {
		return true
	}
	if dominant.Header.ProfitUsd.LessThan(subordinate.Header.ProfitUsd) {
		return true
	}
	return false
}

// composabilityTable is MEV_COMPOSABILITY_FILTER (composer_filters.rs),
// ported from its macro-generated static to an explicit literal — Go has
// no declarative-macro facility to generate it (SPEC_FULL.md §4 item 2a).
var composabilityTable = []composabilityEntry{
	{Parent: types.MevJitSandwich, Children: []types.MevType{types.MevSandwich, types.MevJitLiquidity}, Compose: composeSandwichJit},
}

// precedenceTable is MEV_DEDUPLICATION_FILTER (mev_filters.rs), adapted to
// this module's MevType set (no separate CexDexQuotes/JitCexDex variants —
// MevCexDexArbitrage plays the CexDexQuotes role and the JitCexDex rung
// folds into JitSandwich, see types/bundle.go's CexDexData doc comment).
// Only the single CexDexTrades-dominant rule from mev_filters.rs's two
// (CexDexTrades => AtomicArb; AtomicArb => CexDexTrades) macro lines is
// kept: SPEC_FULL.md §6 resolves the polarity question as one directional
// filter ("CexDexTrades wins over AtomicArb unless ...), so the
// unconditional reverse rule (which would have dropped CexDexTrades
// whenever an AtomicArb was dominant) is dropped as redundant with that
// resolution rather than ported verbatim.
var precedenceTable = []precedenceEntry{
	{Dominant: types.MevCexDexTrades, Subordinates: []types.MevType{types.MevAtomicArb}, Filter: atomicDedupFn},
	{Dominant: types.MevCexDexArbitrage, Subordinates: []types.MevType{types.MevUnknown, types.MevSearcherTx}},
	{Dominant: types.MevCexDexTrades, Subordinates: []types.MevType{types.MevUnknown, types.MevSearcherTx}},
	{Dominant: types.MevAtomicArb, Subordinates: []types.MevType{types.MevUnknown, types.MevSearcherTx}},
	{Dominant: types.MevJitLiquidity, Subordinates: []types.MevType{types.MevUnknown, types.MevSearcherTx, types.MevAtomicArb}},
	{Dominant: types.MevLiquidation, Subordinates: []types.MevType{types.MevUnknown, types.MevSearcherTx, types.MevAtomicArb, types.MevCexDexArbitrage, types.MevCexDexTrades}},
	{Dominant: types.MevSandwich, Subordinates: []types.MevType{types.MevUnknown, types.MevSearcherTx, types.MevAtomicArb, types.MevCexDexArbitrage, types.MevCexDexTrades}},
	{Dominant: types.MevJitSandwich, Subordinates: []types.MevType{types.MevUnknown, types.MevSearcherTx, types.MevAtomicArb, types.MevJitLiquidity, types.MevCexDexArbitrage, types.MevCexDexTrades, types.MevSandwich}},
}

func mevTypeVertexID(t types.MevType) string { return fmt.Sprintf("mevtype:%d", t) }

// validatePrecedenceAcyclic registers every dominant/subordinate pair as a
// DAG edge and fails fast if the table describes a precedence cycle (a
// misconfiguration that would otherwise dedup-loop at runtime). Run by
// every NewComposer call.
func validatePrecedenceAcyclic() error {
	d := dag.NewDAG()
	ids := map[types.MevType]string{}
	ensureVertex := func(t types.MevType) string {
		id, ok := ids[t]
		if ok {
			return id
		}
		id = mevTypeVertexID(t)
		ids[t] = id
		_ = d.AddVertexByID(id, t)
		return id
	}
	for _, e := range precedenceTable {
		dom := ensureVertex(e.Dominant)
		for _, sub := range e.Subordinates {
			subID := ensureVertex(sub)
			if err := d.AddEdge(dom, subID); err != nil {
				return fmt.Errorf("inspect: precedence table is cyclic at %v -> %v: %w", e.Dominant, sub, err)
			}
		}
	}
	return nil
}

func findPrecedence(dominant, subordinate types.MevType) (precedenceEntry, bool) {
	for _, e := range precedenceTable {
		if e.Dominant != dominant {
			continue
		}
		for _, s := range e.Subordinates {
			if s == subordinate {
				return e, true
			}
		}
	}
	return precedenceEntry{}, false
}

func findComposability(parent types.MevType) (composabilityEntry, bool) {
	for _, e := range composabilityTable {
		if e.Parent == parent {
			return e, true
		}
	}
	return composabilityEntry{}, false
}
