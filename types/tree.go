package types

import (
	"github.com/mev-core/brontes/common"
)

// Node is a tree node carrying one classified Action plus its children.
// Grounded on original_source/crates/poirot-types/src/tree.rs's Node<V>:
// same insert-by-right-spine, freeze, get_all_sub_actions shape, adapted to
// Go (children held as a slice of child pointers; no parent pointers).
//
// Invariant: once Frozen, Children is never mutated and Subactions equals
// the depth-first sequence of Data across the subtree (spec.md §3, §8
// "Subactions completeness").
type Node struct {
	Address    common.Address
	Data       Action
	Children   []*Node
	Frozen     bool
	Subactions []Action
}

// Freeze materializes Subactions once and locks Children against further
// mutation. Idempotent: freezing an already-frozen node is a no-op.
func (n *Node) Freeze() {
	if n.Frozen {
		return
	}
	for _, c := range n.Children {
		c.Freeze()
	}
	n.Subactions = n.collectSubactions()
	n.Frozen = true
}

func (n *Node) collectSubactions() []Action {
	if n.Frozen {
		out := make([]Action, len(n.Subactions))
		copy(out, n.Subactions)
		return out
	}
	out := []Action{n.Data}
	for _, c := range n.Children {
		out = append(out, c.collectSubactions()...)
	}
	return out
}

// currentCallStack returns the addresses on n's right spine, deepest node
// first and n itself last.
func (n *Node) currentCallStack() []common.Address {
	if len(n.Children) == 0 {
		return []common.Address{n.Address}
	}
	stack := n.Children[len(n.Children)-1].currentCallStack()
	stack = append(stack, n.Address)
	return stack
}

// Insert places child under the deepest right-spine descendant whose
// address matches `from`, per spec.md §4.2: "the new node becomes a child
// of the deepest right-spine ancestor whose address matches the caller,
// with the constraint that if the same address already appears higher in
// the current call stack (reentrancy), all siblings are frozen and the new
// node starts a new sibling." Returns false if the tree is already frozen.
func (n *Node) Insert(from common.Address, child *Node) bool {
	if n.Frozen {
		return false
	}
	if from == n.Address {
		// n is the highest matching frame. If from also appears deeper on
		// the right spine (reentrancy), the new node still starts a new
		// sibling here; either way the existing siblings are frozen.
		for _, c := range n.Children {
			c.Freeze()
		}
		n.Children = append(n.Children, child)
		return true
	}
	if len(n.Children) == 0 {
		return false
	}
	return n.Children[len(n.Children)-1].Insert(from, child)
}

// Root is a per-transaction root carrying the trace's call tree plus the
// gas/identity fields spec.md §3 assigns to a root.
type Root struct {
	Head       *Node
	TxHash     common.Hash
	TxIndex    uint32
	MsgSender  common.Address
	GasDetails GasDetails
}

func (r *Root) Insert(from common.Address, n *Node) bool {
	return r.Head.Insert(from, n)
}

func (r *Root) Freeze() { r.Head.Freeze() }

// BlockTree is Vec<Root> + Header per spec.md §3. Roots are ordered within
// a block by TxIndex; insertion order == execution order.
type BlockTree struct {
	Roots  []*Root
	Header BlockHeader
	frozen bool
}

type BlockHeader struct {
	BlockNumber uint64
	BlockHash   common.Hash
	Timestamp   uint64
}

func NewBlockTree(header BlockHeader, expectedTxs int) *BlockTree {
	return &BlockTree{Roots: make([]*Root, 0, expectedTxs), Header: header}
}

func (t *BlockTree) InsertRoot(r *Root) { t.Roots = append(t.Roots, r) }

// InsertNode inserts into the most recently inserted root, mirroring
// TimeTree::insert_node's "insert into roots.last_mut()" shape from the
// original source, which relies on per-transaction traces arriving
// contiguously in execution order.
func (t *BlockTree) InsertNode(from common.Address, n *Node) {
	if len(t.Roots) == 0 {
		panic("types: InsertNode called before any root was inserted")
	}
	t.Roots[len(t.Roots)-1].Insert(from, n)
}

// Freeze freezes every root exactly once. Calling Freeze twice is a no-op.
func (t *BlockTree) Freeze() {
	if t.frozen {
		return
	}
	for _, r := range t.Roots {
		r.Freeze()
	}
	t.frozen = true
}

func (t *BlockTree) IsFrozen() bool { return t.frozen }

func (t *BlockTree) RootByTxHash(hash common.Hash) *Root {
	for _, r := range t.Roots {
		if r.TxHash == hash {
			return r
		}
	}
	return nil
}

// TreeSearchBuilder pairs a node-collection predicate with a descent gate,
// per spec.md §4.2: "collect(tx_hash, TreeSearchBuilder) returns ... the
// ordered list of actions whose collect_current_node predicate holds;
// child_node_to_collect gates descent."
type TreeSearchBuilder struct {
	CollectCurrentNode func(Action) bool
	ChildNodeToCollect func(Action) bool
}

// NewTreeSearchBuilder builds the common-case search: collect every node
// matching predicate, but always descend into children regardless of
// whether the current node matches. A head frame is frequently an
// unclassified router/contract call wrapping the matching action several
// levels down, so gating descent on the same narrow predicate used for
// collection would stop at the head and never reach it — see
// original_source/crates/brontes-inspect/src/builder_profit.rs, which
// gates descent on whether the subtree contains a match, never on the
// collect predicate itself.
func NewTreeSearchBuilder(predicate func(Action) bool) TreeSearchBuilder {
	return TreeSearchBuilder{CollectCurrentNode: predicate, ChildNodeToCollect: func(Action) bool { return true }}
}

// GasDetails per spec.md §3: gas_paid = gas_used * effective_gas_price.
type GasDetails struct {
	CoinbaseTransfer   *uint64
	PriorityFee        uint64
	GasUsed             uint64
	EffectiveGasPrice   uint64
}

func (g GasDetails) GasPaid() uint64 {
	paid, overflow := common.SafeMul(g.GasUsed, g.EffectiveGasPrice)
	if overflow {
		return ^uint64(0)
	}
	return paid
}
