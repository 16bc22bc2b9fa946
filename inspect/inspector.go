// Package inspect turns a frozen, priced BlockTree into the set of
// MevBundle detections a block contains: one Inspector per MevType scans
// the tree and metadata independently, InspectorComposer runs them
// concurrently and reconciles overlapping detections through the
// compose/precedence lattice (lattice.go). Grounded on
// original_source/crates/brontes-inspect/src/{composer,*_inspector}.
package inspect

import (
	"context"

	"github.com/mev-core/brontes/types"
)

// Inspector is one MEV-type detector: pure over (tree, metadata), no
// side effects, safe to run concurrently with every other Inspector
// (spec.md §4.6 "each Inspector scans the tree independently").
type Inspector interface {
	// MevType is the strategy this Inspector detects, used to key it into
	// the composability/precedence lattice.
	MevType() types.MevType
	Inspect(ctx context.Context, tree *types.BlockTree, meta *types.Metadata) ([]types.Bundle, error)
}
