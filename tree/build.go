// Package tree implements ActionTree: the per-block tree of classified
// Actions, its mutable construction phase, frozen search operations, and
// multi-frame rewrite pass (spec.md §4.2).
package tree

import (
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

// Builder accumulates roots for one block as traces arrive in execution
// order, then hands off a frozen *types.BlockTree to the rest of the
// pipeline. It is not safe for concurrent use; BlockPipeline owns exactly
// one Builder per in-flight block (spec.md §5).
type Builder struct {
	tree *types.BlockTree
}

func NewBuilder(header types.BlockHeader, expectedTxs int) *Builder {
	return &Builder{tree: types.NewBlockTree(header, expectedTxs)}
}

// StartRoot opens a new per-transaction root. Roots must be started in
// tx_index order; InsertAction always targets the most recently started
// root (spec.md §4.2 "cross-tx order is tx_index"). addr is the top-level
// frame's callee (the context subsequent InsertAction calls address
// against, matching InsertAction's own addr convention) — msgSender is
// kept separately on Root and is never itself a node Address, since
// InsertAction always inserts children under frame.To, not frame.From.
func (b *Builder) StartRoot(txHash common.Hash, txIndex uint32, msgSender, addr common.Address, head types.Action) {
	root := &types.Root{
		Head:      &types.Node{Address: addr, Data: head},
		TxHash:    txHash,
		TxIndex:   txIndex,
		MsgSender: msgSender,
	}
	b.tree.InsertRoot(root)
}

// InsertAction places a newly classified frame under the deepest
// right-spine ancestor whose address matches from (spec.md §4.2). addr is
// the contract whose context the frame executes in, used as the new
// node's own Address for subsequent descendant placement.
func (b *Builder) InsertAction(from, addr common.Address, data types.Action) {
	b.tree.InsertNode(from, &types.Node{Address: addr, Data: data})
}

// SetGasDetails records the gas accounting for the current (most recently
// started) root.
func (b *Builder) SetGasDetails(gas types.GasDetails) {
	if len(b.tree.Roots) == 0 {
		return
	}
	b.tree.Roots[len(b.tree.Roots)-1].GasDetails = gas
}

// Freeze finalizes construction: every root's subtree is frozen and
// subactions are materialized depth-first (spec.md §4.2 "When a root is
// completed, its subtree is frozen"). The returned tree must not be
// passed back to InsertAction.
func (b *Builder) Freeze() *types.BlockTree {
	b.tree.Freeze()
	return b.tree
}
