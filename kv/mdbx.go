package kv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/gofrs/flock"
)

// Tx is a read-only snapshot (spec.md §4.1 "ro_tx() -> snapshot for point
// and range reads"). Every method is safe to call concurrently with other
// Tx instances; mdbx gives every open transaction a consistent MVCC
// snapshot for free.
type Tx interface {
	GetOne(table string, key []byte) ([]byte, error)
	Cursor(table string) (Cursor, error)
	Stat(table string) (TableStat, error)
	Rollback()
}

// TableStat is one table's occupancy, the shape `cmd/brontes db
// table-stats` reports per table (spec.md §6.3).
type TableStat struct {
	Entries     uint64
	PageSize    uint32
	Depth       uint32
	LeafPages   uint64
	BranchPages uint64
}

// RwTx additionally allows mutation; spec.md §4.1 "rw_tx() -> mutation
// scope; put/delete/clear per table; commits or aborts on scope end."
type RwTx interface {
	Tx
	Put(table string, key, value []byte) error
	Delete(table string, key []byte) error
	ClearTable(table string) error
	Commit() error
}

// Cursor is a positioned iterator over one table (spec.md §4.1
// "cursor<T>() -> positioned iterator ... supports walk_range(start..end)
// yielding (key, DecompressedValue) pairs in key order").
type Cursor interface {
	Seek(key []byte) (k, v []byte, err error)
	Next() (k, v []byte, err error)
	Close()
}

// DB owns the table files (spec.md §3 "Ownership: the Store owns table
// files"). One DB is opened per process against BRONTES_DB_PATH.
type DB interface {
	BeginRo(ctx context.Context) (Tx, error)
	BeginRw(ctx context.Context) (RwTx, error)
	Close() error
}

// mdbxDB wraps an erigontech/mdbx-go environment. Grounded on erigon-lib's
// kv.Tx/kv.RwTx cursor conventions (inferred from
// core/state/history_reader_v3.go's kv.TemporalTx usage): one *mdbx.Env
// per DB, one *mdbx.DBI per registered table, a single rw_tx at a time
// enforced by mdbx's own writer lock (spec.md §5 "Store: single writer at
// a time per table (via rw_tx); unbounded readers").
type mdbxDB struct {
	env  *mdbx.Env
	dbis map[string]mdbx.DBI
	lock *flock.Flock
}

// Open opens (creating if absent) the mdbx environment rooted at path,
// creating one DBI per ChaindataTablesCfg entry. A file lock
// (gofrs/flock, a teacher direct dependency) guards against two processes
// opening the same store directory for read-write access concurrently,
// since mdbx's own advisory lock is per-OS and brontes processes may run
// in separate containers sharing a mounted volume.
func Open(path string, readOnly bool) (DB, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("kv: create db dir: %w", err)
	}
	lockPath := filepath.Join(path, "LOCK")
	fl := flock.New(lockPath)
	if !readOnly {
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("kv: acquire store lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("kv: store at %s is locked by another process", path)
		}
	}

	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("kv: new env: %w", err)
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(len(ChaindataTablesCfg)+4)); err != nil {
		return nil, fmt.Errorf("kv: set max dbs: %w", err)
	}
	if err := env.SetGeometry(-1, -1, 8<<40, 2<<30, -1, 4096); err != nil {
		return nil, fmt.Errorf("kv: set geometry: %w", err)
	}
	flags := uint(mdbx.NoReadahead | mdbx.Coalesce | mdbx.LifoReclaim)
	if readOnly {
		flags |= mdbx.Readonly
	}
	if err := env.Open(path, flags, 0o644); err != nil {
		return nil, fmt.Errorf("kv: open env at %s: %w", path, err)
	}

	db := &mdbxDB{env: env, dbis: make(map[string]mdbx.DBI), lock: fl}
	if err := db.createDBIs(); err != nil {
		env.Close()
		return nil, err
	}
	return db, nil
}

func (d *mdbxDB) createDBIs() error {
	return d.env.Update(func(txn *mdbx.Txn) error {
		for name, cfg := range ChaindataTablesCfg {
			flags := uint(mdbx.Create)
			if cfg.Flags&DupSort != 0 {
				flags |= mdbx.DupSort
			}
			dbi, err := txn.OpenDBI(name, flags, nil, nil)
			if err != nil {
				return fmt.Errorf("kv: open dbi %s: %w", name, err)
			}
			d.dbis[name] = dbi
		}
		return nil
	})
}

func (d *mdbxDB) dbi(table string) (mdbx.DBI, error) {
	dbi, ok := d.dbis[table]
	if !ok {
		return 0, fmt.Errorf("kv: unregistered table %q", table)
	}
	return dbi, nil
}

func (d *mdbxDB) BeginRo(ctx context.Context) (Tx, error) {
	txn, err := d.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, fmt.Errorf("kv: begin ro tx: %w", err)
	}
	return &mdbxTx{db: d, txn: txn}, nil
}

func (d *mdbxDB) BeginRw(ctx context.Context) (RwTx, error) {
	txn, err := d.env.BeginTxn(nil, 0)
	if err != nil {
		return nil, fmt.Errorf("kv: begin rw tx: %w", err)
	}
	return &mdbxTx{db: d, txn: txn}, nil
}

func (d *mdbxDB) Close() error {
	d.env.Close()
	if d.lock != nil {
		return d.lock.Unlock()
	}
	return nil
}

type mdbxTx struct {
	db  *mdbxDB
	txn *mdbx.Txn
}

// GetOne returns the absent value as (nil, nil), never an error, per
// spec.md §4.1 "reads of missing keys return an absent value (not an
// error)".
func (t *mdbxTx) GetOne(table string, key []byte) ([]byte, error) {
	dbi, err := t.db.dbi(table)
	if err != nil {
		return nil, err
	}
	v, err := t.txn.Get(dbi, key)
	if mdbx.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get %s: %w", table, err)
	}
	return v, nil
}

// Stat reports table's entry count and page occupancy via mdbx's own
// per-DBI statistics, avoiding a full cursor walk just to count rows.
func (t *mdbxTx) Stat(table string) (TableStat, error) {
	dbi, err := t.db.dbi(table)
	if err != nil {
		return TableStat{}, err
	}
	st, err := t.txn.Stat(dbi)
	if err != nil {
		return TableStat{}, fmt.Errorf("kv: stat %s: %w", table, err)
	}
	return TableStat{
		Entries:     st.Entries,
		PageSize:    st.PSize,
		Depth:       st.Depth,
		LeafPages:   st.LeafPages,
		BranchPages: st.BranchPages,
	}, nil
}

func (t *mdbxTx) Cursor(table string) (Cursor, error) {
	dbi, err := t.db.dbi(table)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(dbi)
	if err != nil {
		return nil, fmt.Errorf("kv: open cursor %s: %w", table, err)
	}
	return &mdbxCursor{c: c}, nil
}

func (t *mdbxTx) Put(table string, key, value []byte) error {
	dbi, err := t.db.dbi(table)
	if err != nil {
		return err
	}
	if err := t.txn.Put(dbi, key, value, 0); err != nil {
		return fmt.Errorf("kv: put %s: %w", table, err)
	}
	return nil
}

func (t *mdbxTx) Delete(table string, key []byte) error {
	dbi, err := t.db.dbi(table)
	if err != nil {
		return err
	}
	if err := t.txn.Del(dbi, key, nil); err != nil && !mdbx.IsNotFound(err) {
		return fmt.Errorf("kv: delete %s: %w", table, err)
	}
	return nil
}

func (t *mdbxTx) ClearTable(table string) error {
	dbi, err := t.db.dbi(table)
	if err != nil {
		return err
	}
	if err := t.txn.Drop(dbi, false); err != nil {
		return fmt.Errorf("kv: clear %s: %w", table, err)
	}
	return nil
}

// Commit is atomic by construction: mdbx never makes a partially-applied
// write transaction's puts visible to new readers (spec.md §4.1 "Writes
// within a scope are atomic. A partially written batch is never visible
// to readers.").
func (t *mdbxTx) Commit() error {
	if _, err := t.txn.Commit(); err != nil {
		return fmt.Errorf("kv: commit: %w", err)
	}
	return nil
}

func (t *mdbxTx) Rollback() { t.txn.Abort() }

type mdbxCursor struct {
	c *mdbx.Cursor
}

func (c *mdbxCursor) Seek(key []byte) ([]byte, []byte, error) {
	k, v, err := c.c.Get(key, nil, mdbx.SetRange)
	if mdbx.IsNotFound(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("kv: cursor seek: %w", err)
	}
	return k, v, nil
}

func (c *mdbxCursor) Next() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, mdbx.Next)
	if mdbx.IsNotFound(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("kv: cursor next: %w", err)
	}
	return k, v, nil
}

func (c *mdbxCursor) Close() { c.c.Close() }
