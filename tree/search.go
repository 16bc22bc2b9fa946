package tree

import (
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

// Collect returns, for the root identified by txHash, the ordered list of
// actions whose CollectCurrentNode predicate holds; ChildNodeToCollect
// gates descent into a node's children (spec.md §4.2). Returns nil if no
// root matches txHash.
func Collect(t *types.BlockTree, txHash common.Hash, spec types.TreeSearchBuilder) []types.Action {
	root := t.RootByTxHash(txHash)
	if root == nil {
		return nil
	}
	var out []types.Action
	collectNode(root.Head, spec, &out)
	return out
}

func collectNode(n *types.Node, spec types.TreeSearchBuilder, out *[]types.Action) {
	if spec.CollectCurrentNode(n.Data) {
		*out = append(*out, n.Data)
	}
	if !spec.ChildNodeToCollect(n.Data) {
		return
	}
	for _, c := range n.Children {
		collectNode(c, spec, out)
	}
}

// CollectAll runs Collect over every root and returns the per-tx results
// keyed by tx hash; predicates are evaluated once per node across the
// whole block (spec.md §4.2).
func CollectAll(t *types.BlockTree, spec types.TreeSearchBuilder) map[common.Hash][]types.Action {
	out := make(map[common.Hash][]types.Action, len(t.Roots))
	for _, root := range t.Roots {
		var acts []types.Action
		collectNode(root.Head, spec, &acts)
		out[root.TxHash] = acts
	}
	return out
}
