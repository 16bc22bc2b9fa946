package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func unclassified(sel byte) types.Action {
	return &types.UnclassifiedAction{Selector: [4]byte{sel, 0, 0, 0}}
}

func TestBuilderInsertAppendsUnderCallerAddress(t *testing.T) {
	b := NewBuilder(types.BlockHeader{BlockNumber: 1}, 1)
	root := addr(1)
	b.StartRoot(common.Hash{}, 0, root, root, unclassified(0))

	child := addr(2)
	b.InsertAction(root, child, unclassified(1))
	grandchild := addr(3)
	b.InsertAction(child, grandchild, unclassified(2))

	frozen := b.Freeze()
	require.Len(t, frozen.Roots, 1)
	head := frozen.Roots[0].Head
	require.Len(t, head.Children, 1)
	require.Len(t, head.Children[0].Children, 1)
	assert.True(t, head.Frozen)
	assert.Len(t, head.Subactions, 3)
}

func TestBuilderReentrancyFreezesSiblingsAndStartsNewSibling(t *testing.T) {
	b := NewBuilder(types.BlockHeader{BlockNumber: 1}, 1)
	root := addr(1) // X
	mid := addr(2)   // A
	b.StartRoot(common.Hash{}, 0, root, root, unclassified(0))
	// X calls A.
	b.InsertAction(root, mid, unclassified(1))
	// A calls back into X (X -> A -> X): ordinary insertion, from=A does
	// not yet appear twice in A's own open stack.
	b.InsertAction(mid, root, unclassified(2))
	// X, now executing again deep in its own reentered frame, calls out a
	// second time: from=X appears twice in X's current call stack
	// (X -> A -> X), so this is true reentrancy and lands as a new
	// sibling of A directly under the head, freezing A's subtree.
	third := addr(3)
	b.InsertAction(root, third, unclassified(3))

	frozen := b.Freeze()
	head := frozen.Roots[0].Head
	require.Len(t, head.Children, 2, "reentrant call should be a new sibling under the head")
	assert.True(t, head.Children[0].Frozen, "prior sibling must be frozen on reentrancy")
}

func TestCollectFiltersByPredicate(t *testing.T) {
	b := NewBuilder(types.BlockHeader{BlockNumber: 1}, 1)
	root := addr(1)
	swapHdr := types.ActionHeader{Kind: types.ActionSwap}
	b.StartRoot(common.Hash{0xAA}, 0, root, root, &types.SwapAction{ActionHeader: swapHdr})
	b.InsertAction(root, addr(2), unclassified(1))
	frozen := b.Freeze()

	got := Collect(frozen, common.Hash{0xAA}, types.NewTreeSearchBuilder(types.IsSwap))
	require.Len(t, got, 1)
	assert.Equal(t, types.ActionSwap, got[0].GetKind())
}

func TestCollectAllCoversEveryRoot(t *testing.T) {
	b := NewBuilder(types.BlockHeader{BlockNumber: 1}, 2)
	b.StartRoot(common.Hash{0x01}, 0, addr(1), addr(1), unclassified(0))
	b.StartRoot(common.Hash{0x02}, 1, addr(2), addr(2), unclassified(0))
	frozen := b.Freeze()

	all := CollectAll(frozen, types.NewTreeSearchBuilder(func(types.Action) bool { return true }))
	assert.Len(t, all, 2)
}
