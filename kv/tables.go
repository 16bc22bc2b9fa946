// Package kv defines the table registry and the Tx/RwTx/Cursor contract
// the Store (store package) is built on (spec.md §4.1, §6.4 "Persisted
// state"). Adapted from erigon-lib/kv/tables.go: same
// `const names + TableCfg map[string]TableCfgItem` shape, with every
// chain-sync table replaced by the block/address/range keys spec.md §6.4
// names.
package kv

// DBSchemaVersion is bumped whenever a table's key or value layout
// changes incompatibly. It is not written to disk: store/codec.go's value
// header carries only the codec tag and codec version.
var DBSchemaVersion = SchemaVersion{Major: 1, Minor: 0, Patch: 0}

type SchemaVersion struct {
	Major, Minor, Patch uint32
}

// Per-block tables (spec.md §6.4 "Per-block keys"). Key is the 8-byte
// big-endian block number (common.BigEndianBlockKey), except DexPrice
// which is dup-sorted by (block, pair) so walk_range can return every
// pair touched in a block range in key order.
const (
	// BlockInfo: block_num -> Header + relay/p2p timestamps (pre-DEX
	// metadata, spec.md §4.7 "metadata_no_dex(N)").
	BlockInfo = "BlockInfo"

	// TxTraces: block_num -> the block's decoded TxTrace list, cached so a
	// re-run doesn't re-fetch from the TraceProvider.
	TxTraces = "TxTraces"

	// DexPrice: block_num+pair(40 bytes ordered) -> DexQuotes row for that
	// pair (spec.md §8 scenario 6 "Store range query"). DupSort because a
	// block has many pairs.
	DexPrice = "DexPrice"

	// MevBlocks: block_num -> MevBlock + Bundle[] (spec.md §4.7 PERSISTED).
	MevBlocks = "MevBlocks"

	// FailedBlocks: block_num -> failure record (spec.md §4.7 "any failure
	// in COLLECTING or CLASSIFIED aborts that block and records it in a
	// failed_blocks table").
	FailedBlocks = "FailedBlocks"
)

// Address-keyed tables (spec.md §6.4 "Address keys"). Key is the 20-byte
// address for every one of them; SearcherContracts/SearcherEOAs values
// accumulate across blocks (Store callers read-modify-write under rw_tx).
const (
	AddressMeta           = "AddressMeta"
	AddressToProtocolInfo = "AddressToProtocolInfo"
	Builder                = "Builder"
	SearcherEOAs           = "SearcherEOAs"
	SearcherContracts      = "SearcherContracts"
	TokenDecimals          = "TokenDecimals"
)

// InitializedState is the range-keyed table recording which (table,
// block_range) spans have been populated by init_table (spec.md §4.1):
// "A InitializedState table records which (table, block_range) ranges
// have been populated; initialization is idempotent." Key is the table
// name; value is a serialized Roaring bitmap of populated block numbers
// (store/initialized_state.go).
const InitializedState = "InitializedState"

// TableFlags mirror erigon-lib/kv's bit-flag vocabulary; only DupSort is
// meaningful to this module's tables (the key-only flags — ReverseKey,
// IntegerKey — describe erigon's account/storage history shards, which
// this module has no equivalent of).
type TableFlags uint

const (
	Default TableFlags = 0x00
	DupSort TableFlags = 0x04
)

// TableCfgItem is one table's registration: its flags and whether keys
// are fixed-width (so mdbx can use its fast fixed-key-size comparator).
type TableCfgItem struct {
	Flags         TableFlags
	FixedKeySize  int // 0 means variable-length
}

type TableCfg map[string]TableCfgItem

// ChaindataTablesCfg is the registry every Store implementation opens at
// startup (store/store.go's Open). Key sizes follow spec.md §4.1:
// "Keys are fixed-width encodable (addresses = 20 bytes, pairs = 40 bytes
// ordered, block numbers = 8 bytes big-endian)".
var ChaindataTablesCfg = TableCfg{
	BlockInfo:    {Flags: Default, FixedKeySize: 8},
	TxTraces:     {Flags: Default, FixedKeySize: 8},
	DexPrice:     {Flags: DupSort, FixedKeySize: 48},
	MevBlocks:    {Flags: Default, FixedKeySize: 8},
	FailedBlocks: {Flags: Default, FixedKeySize: 8},

	AddressMeta:           {Flags: Default, FixedKeySize: 20},
	AddressToProtocolInfo: {Flags: Default, FixedKeySize: 20},
	Builder:               {Flags: Default, FixedKeySize: 20},
	SearcherEOAs:          {Flags: Default, FixedKeySize: 20},
	SearcherContracts:     {Flags: Default, FixedKeySize: 20},
	TokenDecimals:         {Flags: Default, FixedKeySize: 20},

	InitializedState: {Flags: Default},
}

// Tables returns the registered table names in a stable (sorted) order,
// used by `db table-stats`.
func Tables() []string {
	out := make([]string, 0, len(ChaindataTablesCfg))
	for name := range ChaindataTablesCfg {
		out = append(out, name)
	}
	sortStrings(out)
	return out
}

// sortStrings avoids importing "sort" for one call site with an
// allocation-free insertion sort over the small (a dozen-ish) table list.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
