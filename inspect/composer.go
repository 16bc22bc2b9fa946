package inspect

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

// Composer is InspectorComposer (spec.md §4.6): runs every registered
// Inspector concurrently over the same (tree, metadata), then reconciles
// overlapping detections through the compose/precedence lattice
// (lattice.go) into the final MevBlock + surviving Bundle list.
type Composer struct {
	inspectors []Inspector
}

// NewComposer validates the precedence lattice is acyclic (lattice.go)
// before accepting any inspectors, so a misconfigured table fails at
// wiring time rather than mid-run.
func NewComposer(inspectors ...Inspector) (*Composer, error) {
	if err := validatePrecedenceAcyclic(); err != nil {
		return nil, err
	}
	return &Composer{inspectors: inspectors}, nil
}

// Run executes every Inspector in parallel (spec.md §4.6 "each Inspector
// scans the tree independently"), composes related detections, dedups
// overlapping ones by precedence, and produces the block summary.
func (c *Composer) Run(ctx context.Context, tree *types.BlockTree, meta *types.Metadata) (*types.MevBlock, []types.Bundle, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([][]types.Bundle, len(c.inspectors))
	for i, insp := range c.inspectors {
		i, insp := i, insp
		g.Go(func() error {
			bundles, err := insp.Inspect(gctx, tree, meta)
			if err != nil {
				return err
			}
			results[i] = bundles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var all []types.Bundle
	var possible []common.Hash
	for _, bundles := range results {
		for _, b := range bundles {
			all = append(all, b)
			possible = append(possible, b.Header.TxHash)
		}
	}

	all = composeRelated(all)
	all = dedupByPrecedence(all)

	block := summarize(tree, meta, all, possible)
	return block, all, nil
}

// composeRelated merges a Sandwich and a JitLiquidity bundle that share
// their victim set into one JitSandwich bundle, per composabilityTable.
func composeRelated(bundles []types.Bundle) []types.Bundle {
	entry, ok := findComposability(types.MevJitSandwich)
	if !ok {
		return bundles
	}

	used := make(map[int]bool)
	var out []types.Bundle
	for i, a := range bundles {
		if used[i] || a.Header.MevType != types.MevSandwich {
			continue
		}
		sand, ok := a.Data.(types.SandwichData)
		if !ok {
			continue
		}
		for j, b := range bundles {
			if used[j] || i == j || b.Header.MevType != types.MevJitLiquidity {
				continue
			}
			jit, ok := b.Data.(types.JitLiquidityData)
			if !ok || !sameVictims(sand.Victims, jit.Victims) {
				continue
			}
			merged := entry.Compose([]types.Bundle{a, b})
			out = append(out, merged)
			used[i], used[j] = true, true
			break
		}
	}
	for i, b := range bundles {
		if !used[i] {
			out = append(out, b)
		}
	}
	return out
}

func sameVictims(a, b []common.Hash) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	sa, sb := append([]common.Hash{}, a...), append([]common.Hash{}, b...)
	sort.Slice(sa, func(i, j int) bool { return sa[i].Less(sa[j]) })
	sort.Slice(sb, func(i, j int) bool { return sb[i].Less(sb[j]) })
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// dedupByPrecedence groups bundles by their primary TxHash and, for every
// conflicting pair sharing a transaction, drops the subordinate unless
// its FilterFn says to keep it (mev_filters.rs's atomic_dedup_fn shape).
func dedupByPrecedence(bundles []types.Bundle) []types.Bundle {
	byTx := make(map[common.Hash][]int)
	for i, b := range bundles {
		byTx[b.Header.TxHash] = append(byTx[b.Header.TxHash], i)
	}

	dropped := make(map[int]bool)
	for _, idxs := range byTx {
		if len(idxs) < 2 {
			continue
		}
		for _, i := range idxs {
			for _, j := range idxs {
				if i == j || dropped[i] || dropped[j] {
					continue
				}
				entry, ok := findPrecedence(bundles[i].Header.MevType, bundles[j].Header.MevType)
				if !ok {
					continue
				}
				if entry.Filter != nil && entry.Filter(bundles[i], bundles[j]) {
					continue
				}
				dropped[j] = true
			}
		}
	}

	out := make([]types.Bundle, 0, len(bundles))
	for i, b := range bundles {
		if !dropped[i] {
			out = append(out, b)
		}
	}
	return out
}

func summarize(tree *types.BlockTree, meta *types.Metadata, bundles []types.Bundle, possible []common.Hash) *types.MevBlock {
	block := &types.MevBlock{
		BlockNumber:      tree.Header.BlockNumber,
		BlockHash:        tree.Header.BlockHash,
		BlockTimestamp:   tree.Header.Timestamp,
		NumberMevBundles: len(bundles),
		PossibleMevTxes:  possible,
	}
	if meta != nil {
		block.ProposerFeeRecipient = meta.ProposerFeeRecipient
		if meta.BuilderInfo != nil {
			addr := meta.BuilderInfo.Address
			block.BuilderAddress = &addr
		}
	}
	for _, b := range bundles {
		block.TotalBribeUsd = block.TotalBribeUsd.Add(b.Header.BribeUsd)
		block.TotalMevProfitUsd = block.TotalMevProfitUsd.Add(b.Header.ProfitUsd)
	}
	return block
}
