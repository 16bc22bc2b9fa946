package store

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/mev-core/brontes/bronerr"
	"github.com/mev-core/brontes/kv"
)

// InitializedState tracks which block numbers have been populated for
// each table as a Roaring bitmap (spec.md §4.1: "A InitializedState table
// records which (table, block_range) ranges have been populated;
// initialization is idempotent"). Grounded on erigon's use of
// RoaringBitmap/roaring (a teacher direct dependency) for exactly this
// "is X a member of this sparse range set" problem across its
// AccountsHistory/StorageHistory shards.
var initializedStateTable = Table[string, []byte]{
	Name:        kv.InitializedState,
	EncodeKey:   func(k string) []byte { return []byte(k) },
	DecodeKey:   func(b []byte) (string, error) { return string(b), nil },
	EncodeValue: func(v []byte) ([]byte, error) { return v, nil },
	DecodeValue: func(b []byte) ([]byte, error) { return b, nil },
}

func loadBitmap(tx *RwTx, table string) (*roaring.Bitmap, error) {
	raw, ok, err := GetRw(tx, initializedStateTable, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return roaring.New(), nil
	}
	bm := roaring.New()
	if _, err := bm.FromBuffer(raw); err != nil {
		return nil, bronerr.Decode("store.initialized_state", err, bronerr.WithKey(table))
	}
	return bm, nil
}

func storeBitmap(tx *RwTx, table string, bm *roaring.Bitmap) error {
	buf, err := bm.ToBytes()
	if err != nil {
		return bronerr.Fatal("store.initialized_state", err, bronerr.WithKey(table))
	}
	return Put(tx, initializedStateTable, table, buf)
}

// missingRanges returns the contiguous sub-ranges of [start, end] not yet
// marked initialized for table, merging adjacent missing block numbers
// into as few ranges as possible so InitTable issues one Clickhouse fetch
// per gap rather than one per block.
func missingRanges(tx *RwTx, table string, start, end uint64) ([]blockRange, error) {
	bm, err := loadBitmap(tx, table)
	if err != nil {
		return nil, err
	}
	var out []blockRange
	var runStart uint64
	inRun := false
	for b := start; b <= end; b++ {
		if !bm.Contains(uint32(b)) {
			if !inRun {
				runStart = b
				inRun = true
			}
		} else if inRun {
			out = append(out, blockRange{start: runStart, end: b - 1})
			inRun = false
		}
		if b == ^uint64(0) {
			break // avoid wraparound on a caller passing end == MaxUint64
		}
	}
	if inRun {
		out = append(out, blockRange{start: runStart, end: end})
	}
	return out, nil
}

func markInitialized(tx *RwTx, table string, start, end uint64) error {
	bm, err := loadBitmap(tx, table)
	if err != nil {
		return err
	}
	bm.AddRange(uint64(start), uint64(end)+1)
	return storeBitmap(tx, table, bm)
}

func clearInitializedRange(tx *RwTx, table string) error {
	return storeBitmap(tx, table, roaring.New())
}

// IsInitialized reports whether every block in [start, end] has been
// marked populated for table.
func (s *Store) IsInitialized(tx *ROTx, table string, start, end uint64) (bool, error) {
	raw, ok, err := Get(tx, initializedStateTable, table)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	bm := roaring.New()
	if _, err := bm.FromBuffer(raw); err != nil {
		return false, bronerr.Decode("store.is_initialized", err, bronerr.WithKey(table))
	}
	for b := start; b <= end; b++ {
		if !bm.Contains(uint32(b)) {
			return false, nil
		}
	}
	return true, nil
}
