package store

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/mev-core/brontes/bronerr"
	"github.com/mev-core/brontes/classifier"
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/kv"
	"github.com/mev-core/brontes/types"
)

// Reader wraps a read-only Tx and exposes typed Read<X> getters per
// persisted domain (spec.md §6.4). Grounded on
// core/state/history_reader_v3.go's "wrap a Tx, expose typed Read<X>
// methods, trace debug-print" shape, adapted: account/storage/code
// domains become block_info/dex_price/mev_blocks/address_meta domains.
type Reader struct {
	tx    *ROTx
	trace bool
}

func NewReader(tx *ROTx) *Reader { return &Reader{tx: tx} }

// WithTrace sets the reader's trace flag, mirroring history_reader_v3.go's
// trace flag. No getter consults the flag, so it changes neither what a
// read returns nor what it logs.
func (r *Reader) WithTrace(on bool) *Reader { r.trace = on; return r }

func jsonEncode[V any](v V) ([]byte, error) { return json.Marshal(v) }
func jsonDecode[V any](b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

// blockKey/blockKeyDecode en/decode the 8-byte big-endian block-number key
// every per-block table in kv/tables.go uses.
func blockKey(b uint64) []byte {
	k := common.BigEndianBlockKey(b)
	return k[:]
}
func blockKeyDecode(b []byte) (uint64, error) { return common.BlockKeyToUint64(b) }

func addrKey(a common.Address) []byte  { return a[:] }
func addrKeyDecode(b []byte) (common.Address, error) {
	return common.BytesToAddress(b), nil
}

// BlockInfoRow is metadata_no_dex(N) (spec.md §4.7 "COLLECTING"): the
// block-level facts available before DEX pricing completes.
type BlockInfoRow struct {
	Header               types.BlockHeader
	RelayTimestamp       *uint64
	P2PTimestamp         *uint64
	ProposerFeeRecipient *common.Address
	ProposerMevReward    *common.U256
	PrivateTxHashes      []common.Hash
	BuilderAddress       *common.Address
}

var blockInfoTable = Table[uint64, BlockInfoRow]{
	Name:        kv.BlockInfo,
	EncodeKey:   blockKey,
	DecodeKey:   blockKeyDecode,
	EncodeValue: jsonEncode[BlockInfoRow],
	DecodeValue: jsonDecode[BlockInfoRow],
}

func (r *Reader) BlockInfo(block uint64) (BlockInfoRow, bool, error) {
	return Get(r.tx, blockInfoTable, block)
}

func (w *Writer) PutBlockInfo(block uint64, row BlockInfoRow) error {
	return Put(w.tx, blockInfoTable, block, row)
}

// CachedTrace is one transaction's decoded call frames, cached so a
// re-run of a block doesn't re-fetch from the TraceProvider.
type CachedTrace struct {
	TxHash  common.Hash
	TxIndex uint32
	Frames  []classifier.Frame
}

type TxTracesRow struct {
	Traces []CachedTrace
}

var txTracesTable = Table[uint64, TxTracesRow]{
	Name:        kv.TxTraces,
	EncodeKey:   blockKey,
	DecodeKey:   blockKeyDecode,
	EncodeValue: jsonEncode[TxTracesRow],
	DecodeValue: jsonDecode[TxTracesRow],
}

func (r *Reader) TxTraces(block uint64) (TxTracesRow, bool, error) {
	return Get(r.tx, txTracesTable, block)
}

func (w *Writer) PutTxTraces(block uint64, row TxTracesRow) error {
	return Put(w.tx, txTracesTable, block, row)
}

// DexPriceRow is one (block, pair) row of DexQuotes, persisted so a later
// run can serve PRICED without re-driving PricingGraph (spec.md §4.7
// "on absence (pricing disabled), use cached quotes from Store").
// ByTx[i] is nil where that tx index never touched the pair.
type DexPriceRow struct {
	Pair types.Pair
	ByTx []*types.PriceBracket
}

// dexPriceKey concatenates the 8-byte block with the pair's canonical
// 40-byte ordered form (spec.md §4.1 "pairs = 40 bytes ordered").
func dexPriceKey(k dexPriceK) []byte {
	ordered := k.Pair.Ordered()
	out := make([]byte, 0, 48)
	bk := common.BigEndianBlockKey(k.Block)
	out = append(out, bk[:]...)
	out = append(out, ordered.Token0[:]...)
	out = append(out, ordered.Token1[:]...)
	return out
}

func dexPriceKeyDecode(b []byte) (dexPriceK, error) {
	if len(b) != 48 {
		return dexPriceK{}, bronerr.Decode("store.dex_price_key", errBadDexPriceKey)
	}
	block, err := common.BlockKeyToUint64(b[:8])
	if err != nil {
		return dexPriceK{}, err
	}
	return dexPriceK{
		Block: block,
		Pair:  types.Pair{Token0: common.BytesToAddress(b[8:28]), Token1: common.BytesToAddress(b[28:48])},
	}, nil
}

type dexPriceK struct {
	Block uint64
	Pair  types.Pair
}

var errBadDexPriceKey = jsonKeyErr{"dex_price key must be 48 bytes"}

type jsonKeyErr struct{ s string }

func (e jsonKeyErr) Error() string { return e.s }

var dexPriceTable = Table[dexPriceK, DexPriceRow]{
	Name:        kv.DexPrice,
	EncodeKey:   dexPriceKey,
	DecodeKey:   dexPriceKeyDecode,
	EncodeValue: jsonEncode[DexPriceRow],
	DecodeValue: jsonDecode[DexPriceRow],
}

func (r *Reader) DexPrice(block uint64, pair types.Pair) (DexPriceRow, bool, error) {
	return Get(r.tx, dexPriceTable, dexPriceK{Block: block, Pair: pair})
}

func (w *Writer) PutDexPrice(block uint64, pair types.Pair, row DexPriceRow) error {
	return Put(w.tx, dexPriceTable, dexPriceK{Block: block, Pair: pair}, row)
}

// WalkDexPriceRange answers spec.md §8 scenario 6: "write DexPrice(block,
// pair, v1), (block+1, ..., v2), then walk_range(1000..1002) yields
// exactly [v1, v2] in that order." Range is over the block component only
// — pair is fixed by the caller, since a cross-pair range has no natural
// order.
func (r *Reader) WalkDexPriceRange(pair types.Pair, startBlock, endBlock uint64) ([]DexPriceRow, error) {
	rows, err := WalkRange(r.tx, dexPriceTable, dexPriceK{Block: startBlock, Pair: pair}, dexPriceK{Block: endBlock, Pair: pair})
	if err != nil {
		return nil, err
	}
	out := make([]DexPriceRow, 0, len(rows))
	ordered := pair.Ordered()
	for _, row := range rows {
		if row.Key.Pair != ordered {
			continue
		}
		out = append(out, row.Value)
	}
	return out, nil
}

// MevBlocksRow is the PERSISTED-state output (spec.md §4.7): the block
// summary plus every surviving Bundle.
type MevBlocksRow struct {
	Block   types.MevBlock
	Bundles []types.Bundle
}

var mevBlocksTable = Table[uint64, MevBlocksRow]{
	Name:        kv.MevBlocks,
	EncodeKey:   blockKey,
	DecodeKey:   blockKeyDecode,
	EncodeValue: jsonEncode[MevBlocksRow],
	DecodeValue: jsonDecode[MevBlocksRow],
}

func (r *Reader) MevBlock(block uint64) (MevBlocksRow, bool, error) {
	return Get(r.tx, mevBlocksTable, block)
}

func (w *Writer) PutMevBlock(block uint64, row MevBlocksRow) error {
	return Put(w.tx, mevBlocksTable, block, row)
}

// FailedBlockRow records why a block never reached PERSISTED (spec.md
// §4.7 "failed_blocks table").
type FailedBlockRow struct {
	Stage   string
	Kind    string
	Message string
}

var failedBlocksTable = Table[uint64, FailedBlockRow]{
	Name:        kv.FailedBlocks,
	EncodeKey:   blockKey,
	DecodeKey:   blockKeyDecode,
	EncodeValue: jsonEncode[FailedBlockRow],
	DecodeValue: jsonDecode[FailedBlockRow],
}

func (w *Writer) PutFailedBlock(block uint64, row FailedBlockRow) error {
	return Put(w.tx, failedBlocksTable, block, row)
}

func (r *Reader) FailedBlock(block uint64) (FailedBlockRow, bool, error) {
	return Get(r.tx, failedBlocksTable, block)
}

// AddressMetaRow is free-form operator-supplied labeling for an address
// (contract name, known-EOA tag, ...).
type AddressMetaRow struct {
	Labels     []string
	IsContract bool
}

var addressMetaTable = Table[common.Address, AddressMetaRow]{
	Name:        kv.AddressMeta,
	EncodeKey:   addrKey,
	DecodeKey:   addrKeyDecode,
	EncodeValue: jsonEncode[AddressMetaRow],
	DecodeValue: jsonDecode[AddressMetaRow],
}

func (r *Reader) AddressMeta(addr common.Address) (AddressMetaRow, bool, error) {
	return Get(r.tx, addressMetaTable, addr)
}

func (w *Writer) PutAddressMeta(addr common.Address, row AddressMetaRow) error {
	return Put(w.tx, addressMetaTable, addr, row)
}

// ProtocolInfoRow is Classifier's discovery output: address -> protocol +
// declared pair, needed so a later block's Classify step 1 can resolve
// the address's protocol tag without re-running discovery (spec.md §4.3
// step 2 "persist pool->tokens and address->protocol").
type ProtocolInfoRow struct {
	Protocol types.Protocol
	Pool     types.PoolPairInformation
}

var addressToProtocolTable = Table[common.Address, ProtocolInfoRow]{
	Name:        kv.AddressToProtocolInfo,
	EncodeKey:   addrKey,
	DecodeKey:   addrKeyDecode,
	EncodeValue: jsonEncode[ProtocolInfoRow],
	DecodeValue: jsonDecode[ProtocolInfoRow],
}

func (r *Reader) ProtocolInfo(addr common.Address) (ProtocolInfoRow, bool, error) {
	return Get(r.tx, addressToProtocolTable, addr)
}

func (w *Writer) PutProtocolInfo(addr common.Address, row ProtocolInfoRow) error {
	return Put(w.tx, addressToProtocolTable, addr, row)
}

// BuilderRow is MetadataJoin's builder_info source (spec.md §4.8 step 1).
type BuilderRow struct {
	Name             string
	TotalBlocksBuilt uint64

	// KnownSearcherContracts are contract addresses `analytics
	// vi-builders` has identified as vertically integrated with this
	// builder (spec.md §6.3, SPEC_FULL.md item 6): a searcher whose
	// bundles only ever land in this builder's blocks.
	KnownSearcherContracts []common.Address
}

var builderTable = Table[common.Address, BuilderRow]{
	Name:        kv.Builder,
	EncodeKey:   addrKey,
	DecodeKey:   addrKeyDecode,
	EncodeValue: jsonEncode[BuilderRow],
	DecodeValue: jsonDecode[BuilderRow],
}

func (r *Reader) Builder(addr common.Address) (BuilderRow, bool, error) {
	return Get(r.tx, builderTable, addr)
}

func (w *Writer) PutBuilder(addr common.Address, row BuilderRow) error {
	return Put(w.tx, builderTable, addr, row)
}

// BuilderForUpdate reads addr's current BuilderRow inside w's own
// mutation scope, for read-modify-write callers like `analytics
// vi-builders` that need to append to KnownSearcherContracts.
func (w *Writer) BuilderForUpdate(addr common.Address) (BuilderRow, bool, error) {
	return GetRw(w.tx, builderTable, addr)
}

// SearcherStatsRow aggregates one searcher EOA/contract's activity across
// blocks (spec.md §2 step 7 "searcher/builder stats are updated";
// §6.3 "analytics vi-builders" reads this table).
type SearcherStatsRow struct {
	TotalBundles   uint64
	TotalProfitUsd string // decimal.Decimal.String(), see Writer.AccumulateSearcherStats
	MevTypeCounts  map[types.MevType]uint64
}

var searcherEOATable = Table[common.Address, SearcherStatsRow]{
	Name:        kv.SearcherEOAs,
	EncodeKey:   addrKey,
	DecodeKey:   addrKeyDecode,
	EncodeValue: jsonEncode[SearcherStatsRow],
	DecodeValue: jsonDecode[SearcherStatsRow],
}

var searcherContractTable = Table[common.Address, SearcherStatsRow]{
	Name:        kv.SearcherContracts,
	EncodeKey:   addrKey,
	DecodeKey:   addrKeyDecode,
	EncodeValue: jsonEncode[SearcherStatsRow],
	DecodeValue: jsonDecode[SearcherStatsRow],
}

func (r *Reader) SearcherEOA(addr common.Address) (SearcherStatsRow, bool, error) {
	return Get(r.tx, searcherEOATable, addr)
}

func (r *Reader) SearcherContract(addr common.Address) (SearcherStatsRow, bool, error) {
	return Get(r.tx, searcherContractTable, addr)
}

// AccumulateSearcherStats folds one bundle's profit into addr's running
// total, read-modify-write under the same mutation scope the PERSISTED
// transition writes MevBlock/Bundles in (spec.md §2 step 7 "searcher/
// builder stats are updated"). isContract selects which of
// SearcherEOAs/SearcherContracts the address is tracked under.
func (w *Writer) AccumulateSearcherStats(addr common.Address, isContract bool, mevType types.MevType, profitUsd decimal.Decimal) error {
	table := searcherEOATable
	if isContract {
		table = searcherContractTable
	}
	row, _, err := GetRw(w.tx, table, addr)
	if err != nil {
		return err
	}
	if row.MevTypeCounts == nil {
		row.MevTypeCounts = make(map[types.MevType]uint64)
	}
	row.TotalBundles++
	row.MevTypeCounts[mevType]++
	current, _ := decimal.NewFromString(row.TotalProfitUsd)
	row.TotalProfitUsd = current.Add(profitUsd).String()
	return Put(w.tx, table, addr, row)
}

// TokenDecimalsRow backs try_fetch_token_info's persisted half (spec.md
// §4.3): a hit here means the classifier never needs the missing-decimals
// channel for that token again.
type TokenDecimalsRow struct {
	Symbol   string
	Decimals uint8
}

var tokenDecimalsTable = Table[common.Address, TokenDecimalsRow]{
	Name:        kv.TokenDecimals,
	EncodeKey:   addrKey,
	DecodeKey:   addrKeyDecode,
	EncodeValue: jsonEncode[TokenDecimalsRow],
	DecodeValue: jsonDecode[TokenDecimalsRow],
}

func (r *Reader) TokenDecimals(addr common.Address) (TokenDecimalsRow, bool, error) {
	return Get(r.tx, tokenDecimalsTable, addr)
}

func (w *Writer) PutTokenDecimals(addr common.Address, row TokenDecimalsRow) error {
	return Put(w.tx, tokenDecimalsTable, addr, row)
}

// Writer is the write-side counterpart to Reader, wrapping a mutation
// scope (*RwTx) with the same typed-getter convention.
type Writer struct {
	tx *RwTx
}

func NewWriter(tx *RwTx) *Writer { return &Writer{tx: tx} }

