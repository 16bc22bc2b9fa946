package store

import (
	"bytes"
	"context"

	"github.com/mev-core/brontes/bronerr"
	"github.com/mev-core/brontes/kv"
)

// Table is a typed {Key, Value} description (spec.md §3 "Table"): Name is
// the stable on-disk table, EncodeKey/DecodeKey round-trip the fixed-width
// key, EncodeValue/DecodeValue round-trip the logical (decompressed)
// value. The compressed byte form (ZSTD over EncodeValue's output) is
// never exposed to callers directly.
type Table[K any, V any] struct {
	Name        string
	EncodeKey   func(K) []byte
	DecodeKey   func([]byte) (K, error)
	EncodeValue func(V) ([]byte, error)
	DecodeValue func([]byte) (V, error)
}

// KV is one (key, DecompressedValue) pair, the shape walk_range yields
// (spec.md §4.1).
type KV[K any, V any] struct {
	Key   K
	Value V
}

// Store owns the table files (spec.md §3 "Ownership"). One Store wraps
// one kv.DB for the process lifetime.
type Store struct {
	db kv.DB
}

func Open(path string, readOnly bool) (*Store, error) {
	db, err := kv.Open(path, readOnly)
	if err != nil {
		return nil, bronerr.Fatal("store.open", err, bronerr.WithKey(path))
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// ROTx is a point/range-read snapshot (spec.md §4.1 "ro_tx()").
type ROTx struct{ tx kv.Tx }

func (s *Store) ROTx(ctx context.Context) (*ROTx, error) {
	tx, err := s.db.BeginRo(ctx)
	if err != nil {
		return nil, bronerr.Transient("store.ro_tx", err)
	}
	return &ROTx{tx: tx}, nil
}

func (t *ROTx) Rollback() { t.tx.Rollback() }

// RwTx is a mutation scope (spec.md §4.1 "rw_tx()"): commits or aborts on
// scope end, never leaves a partially-applied batch visible (the atomicity
// is mdbx's, not this layer's — see kv/mdbx.go).
type RwTx struct{ tx kv.RwTx }

func (s *Store) RwTx(ctx context.Context) (*RwTx, error) {
	tx, err := s.db.BeginRw(ctx)
	if err != nil {
		return nil, bronerr.Transient("store.rw_tx", err)
	}
	return &RwTx{tx: tx}, nil
}

func (t *RwTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return bronerr.Fatal("store.commit", err)
	}
	return nil
}

func (t *RwTx) Rollback() { t.tx.Rollback() }

// RawRecord is one undecoded (key, compressed-value) pair, the shape
// `cmd/brontes db table-stats`/`db query` walk over when the caller only
// knows a table's name as a string flag rather than its static Go type
// (spec.md §6.3 "db query --table <T> --key <K | K..K>").
type RawRecord struct{ Key, Value []byte }

// WalkTableRaw walks every key in table (no decoding, no decompression),
// for CLI tooling that reports raw sizes/counts rather than typed rows.
func (t *ROTx) WalkTableRaw(table string) ([]RawRecord, error) {
	cur, err := t.tx.Cursor(table)
	if err != nil {
		return nil, bronerr.Transient("store.walk_table_raw", err, bronerr.WithKey(table))
	}
	defer cur.Close()

	var out []RawRecord
	k, v, err := cur.Seek(nil)
	for ; k != nil; k, v, err = cur.Next() {
		if err != nil {
			return nil, bronerr.Transient("store.walk_table_raw", err, bronerr.WithKey(table))
		}
		out = append(out, RawRecord{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
	}
	if err != nil {
		return nil, bronerr.Transient("store.walk_table_raw", err, bronerr.WithKey(table))
	}
	return out, nil
}

// StatTable reports table's entry count and page occupancy
// (`db table-stats`, spec.md §6.3), independent of any typed Table[K,V]
// description.
func (t *ROTx) StatTable(table string) (kv.TableStat, error) {
	return t.tx.Stat(table)
}

// ClearRawTable empties table entirely (`db clear --table <T>`, spec.md
// §6.3), independent of any typed Table[K,V] description.
func (t *RwTx) ClearRawTable(table string) error {
	if err := t.tx.ClearTable(table); err != nil {
		return bronerr.Fatal("store.clear_raw_table", err, bronerr.WithKey(table))
	}
	return nil
}

// Get reads key from table, decompressing and decoding it. A missing key
// returns (zero, false, nil) — spec.md §4.1 "reads of missing keys return
// an absent value (not an error)".
func Get[K any, V any](tx *ROTx, table Table[K, V], key K) (V, bool, error) {
	return getFrom(tx.tx, table, key)
}

// GetRw is Get over a mutation scope, for read-modify-write callers
// (e.g. accumulating SearcherEOAs stats across a block).
func GetRw[K any, V any](tx *RwTx, table Table[K, V], key K) (V, bool, error) {
	return getFrom(tx.tx, table, key)
}

func getFrom[K any, V any](tx kv.Tx, table Table[K, V], key K) (V, bool, error) {
	var zero V
	raw, err := tx.GetOne(table.Name, table.EncodeKey(key))
	if err != nil {
		return zero, false, bronerr.Transient("store.get", err, bronerr.WithKey(table.Name))
	}
	if raw == nil {
		return zero, false, nil
	}
	decompressed, err := Decompress(raw)
	if err != nil {
		return zero, false, bronerr.Decode("store.get", err, bronerr.WithKey(table.Name))
	}
	v, err := table.DecodeValue(decompressed)
	if err != nil {
		return zero, false, bronerr.Decode("store.get", err, bronerr.WithKey(table.Name))
	}
	return v, true, nil
}

// Put compresses and writes value under key within the mutation scope.
func Put[K any, V any](tx *RwTx, table Table[K, V], key K, value V) error {
	raw, err := table.EncodeValue(value)
	if err != nil {
		return bronerr.Decode("store.put", err, bronerr.WithKey(table.Name))
	}
	if err := tx.tx.Put(table.Name, table.EncodeKey(key), Compress(raw)); err != nil {
		return bronerr.Transient("store.put", err, bronerr.WithKey(table.Name))
	}
	return nil
}

func Delete[K any, V any](tx *RwTx, table Table[K, V], key K) error {
	if err := tx.tx.Delete(table.Name, table.EncodeKey(key)); err != nil {
		return bronerr.Transient("store.delete", err, bronerr.WithKey(table.Name))
	}
	return nil
}

func Clear[K any, V any](tx *RwTx, table Table[K, V]) error {
	if err := tx.tx.ClearTable(table.Name); err != nil {
		return bronerr.Transient("store.clear", err, bronerr.WithKey(table.Name))
	}
	return nil
}

// WalkRange returns every (key, value) pair in [start, end) in key order
// (spec.md §4.1 "walk_range(start..end)", §8 scenario 6). Comparison is
// lexicographic over the encoded key bytes, which matches numeric order
// for the big-endian block-number and ordered-pair keys every table in
// this module uses.
func WalkRange[K any, V any](tx *ROTx, table Table[K, V], start, end K) ([]KV[K, V], error) {
	return walkRange(tx.tx, table, start, end)
}

func walkRange[K any, V any](tx kv.Tx, table Table[K, V], start, end K) ([]KV[K, V], error) {
	cur, err := tx.Cursor(table.Name)
	if err != nil {
		return nil, bronerr.Transient("store.walk_range", err, bronerr.WithKey(table.Name))
	}
	defer cur.Close()

	endKey := table.EncodeKey(end)
	k, v, err := cur.Seek(table.EncodeKey(start))
	if err != nil {
		return nil, bronerr.Transient("store.walk_range", err, bronerr.WithKey(table.Name))
	}

	var out []KV[K, V]
	for k != nil && bytes.Compare(k, endKey) < 0 {
		decompressed, err := Decompress(v)
		if err != nil {
			return nil, bronerr.Decode("store.walk_range", err, bronerr.WithKey(table.Name))
		}
		val, err := table.DecodeValue(decompressed)
		if err != nil {
			return nil, bronerr.Decode("store.walk_range", err, bronerr.WithKey(table.Name))
		}
		key, err := table.DecodeKey(k)
		if err != nil {
			return nil, bronerr.Decode("store.walk_range", err, bronerr.WithKey(table.Name))
		}
		out = append(out, KV[K, V]{Key: key, Value: val})
		k, v, err = cur.Next()
		if err != nil {
			return nil, bronerr.Transient("store.walk_range", err, bronerr.WithKey(table.Name))
		}
	}
	return out, nil
}

// ClickhouseSource is the subset of ClickhouseHandle (clickhouse package)
// init_table needs; declared here rather than imported to avoid a
// store<->clickhouse import cycle (clickhouse.Handle implements this).
type ClickhouseSource interface {
	// FetchRange streams rows for table between [startBlock, endBlock]
	// restricted to protocols (nil means all), returning raw pre-encoded
	// (key, decompressed-value) pairs ready for Compress+Put.
	FetchRange(ctx context.Context, table string, startBlock, endBlock uint64, protocols []uint16) ([]RawRow, error)
}

// RawRow is one Clickhouse-sourced row prior to compression.
type RawRow struct {
	Key   []byte
	Value []byte
}

// InitTable populates table from src over [startBlock, endBlock],
// optionally clearing first (spec.md §4.1 "init_table(table, clear?,
// range?, protocols?) -> populate from ClickhouseHandle, optionally
// clearing first"). Idempotent: already-populated sub-ranges are skipped
// via InitializedState (initialized_state.go).
func (s *Store) InitTable(ctx context.Context, table string, startBlock, endBlock uint64, protocols []uint16, clear bool) error {
	rwTx, err := s.RwTx(ctx)
	if err != nil {
		return err
	}
	defer rwTx.Rollback()

	if clear {
		if err := rwTx.tx.ClearTable(table); err != nil {
			return bronerr.Fatal("store.init_table", err, bronerr.WithKey(table))
		}
		if err := clearInitializedRange(rwTx, table); err != nil {
			return err
		}
	}

	missing, err := missingRanges(rwTx, table, startBlock, endBlock)
	if err != nil {
		return err
	}
	for _, r := range missing {
		rows, err := src(s).FetchRange(ctx, table, r.start, r.end, protocols)
		if err != nil {
			return bronerr.Transient("store.init_table", err, bronerr.WithKey(table), bronerr.WithBlock(r.start))
		}
		for _, row := range rows {
			if err := rwTx.tx.Put(table, row.Key, Compress(row.Value)); err != nil {
				return bronerr.Transient("store.init_table", err, bronerr.WithKey(table))
			}
		}
		if err := markInitialized(rwTx, table, r.start, r.end); err != nil {
			return err
		}
	}
	return rwTx.Commit()
}

// clickhouseSource is set once at process wiring time (cmd/brontes); a
// package-level indirection lets InitTable stay a Store method without
// threading a ClickhouseSource through every call site, mirroring
// erigon's Config-injected-at-startup convention (config/config.go).
var clickhouseSource ClickhouseSource

// SetClickhouseSource wires the ClickhouseHandle InitTable calls against;
// must be called once before any InitTable call.
func SetClickhouseSource(c ClickhouseSource) { clickhouseSource = c }

func src(s *Store) ClickhouseSource {
	if clickhouseSource == nil {
		panic("store: InitTable called before SetClickhouseSource")
	}
	return clickhouseSource
}

type blockRange struct{ start, end uint64 }
