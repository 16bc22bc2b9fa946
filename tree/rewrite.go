package tree

import (
	"github.com/mev-core/brontes/types"
)

// MultiFrameAction discriminates the rewrite registry key's action half
// (spec.md §4.2 "registered MultiCallFrameClassifier keyed by (Protocol,
// MultiFrameAction)"). Only kinds requiring cross-frame folding appear
// here — most Action variants never participate in a rewrite.
type MultiFrameAction uint8

const (
	MultiFrameFlashLoan MultiFrameAction = iota
	MultiFrameBatch
	MultiFrameAggregator
)

// ParseFn folds child subactions into the parent action and reports which
// child indices to prune (spec.md §4.2: "parse_fn(this_action,
// child_nodes) -> prune_indices"). A nil or empty prune list is valid —
// "classify without rewrite".
type ParseFn func(this types.Action, children []*types.Node) (folded types.Action, pruneIndices []int)

// MultiCallFrameClassifier is one registry entry.
type MultiCallFrameClassifier struct {
	Protocol types.Protocol
	Action   MultiFrameAction
	Matches  func(types.Action) bool
	Parse    ParseFn
}

// Registry is the ordered set of rewrite rules applied to every matching
// node, keyed implicitly by each entry's Matches predicate rather than a
// map, since a node's action determines both Protocol and MultiFrameAction
// at once and a single type switch in Matches expresses that pair more
// directly than a two-level map lookup would.
type Registry []MultiCallFrameClassifier

// Apply rewrites every root of t in place: for each node (processed
// children-first, so a fold can depend on an already-folded descendant),
// every registry entry whose Matches predicate holds against the node's
// action is run in registration order, folding child subactions into the
// node and pruning the reported indices. Ancestor subactions are then
// recomputed bottom-up to restore the frozen invariant (spec.md §4.2
// "Pruning updates ancestor subactions invariants").
//
// Apply panics if a parse_fn reports an out-of-range or duplicate prune
// index — spec.md §4.2 classifies that as a programmer error, not a
// recoverable condition.
func Apply(t *types.BlockTree, reg Registry) {
	for _, root := range t.Roots {
		rewriteNode(root.Head, reg)
		recomputeSubactions(root.Head)
	}
}

func rewriteNode(n *types.Node, reg Registry) {
	for _, c := range n.Children {
		rewriteNode(c, reg)
	}
	for _, rule := range reg {
		if !rule.Matches(n.Data) {
			continue
		}
		folded, prune := rule.Parse(n.Data, n.Children)
		n.Data = folded
		if len(prune) == 0 {
			continue
		}
		n.Children = pruneChildren(n.Children, prune)
	}
}

func pruneChildren(children []*types.Node, indices []int) []*types.Node {
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(children) {
			panic("tree: parse_fn reported an out-of-range prune index")
		}
		if seen[idx] {
			panic("tree: parse_fn reported a duplicate prune index")
		}
		seen[idx] = true
	}
	out := make([]*types.Node, 0, len(children)-len(indices))
	for i, c := range children {
		if !seen[i] {
			out = append(out, c)
		}
	}
	return out
}

func recomputeSubactions(n *types.Node) []types.Action {
	out := []types.Action{n.Data}
	for _, c := range n.Children {
		out = append(out, recomputeSubactions(c)...)
	}
	n.Subactions = out
	n.Frozen = true
	return out
}
