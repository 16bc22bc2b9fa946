package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/mev-core/brontes/clickhouse"
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/kv"
	"github.com/mev-core/brontes/store"
)

func dbCommand() *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "inspect and maintain the Store",
		Subcommands: []*cli.Command{
			dbInitCommand(),
			dbQueryCommand(),
			dbClearCommand(),
			dbTableStatsCommand(),
			dbExportCommand(),
			dbDownloadSnapshotCommand(),
			dbUploadSnapshotCommand(),
		},
	}
}

func openStoreFromFlags(c *cli.Context, readOnly bool) (*store.Store, error) {
	cfg, err := loadAppConfig(c)
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireDBPath(); err != nil {
		return nil, err
	}
	return store.Open(cfg.DBPath, readOnly)
}

func dbInitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "backfill one or more tables from ClickHouse",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "tables", Required: true},
			&cli.Uint64Flag{Name: "start-block", Required: true},
			&cli.Uint64Flag{Name: "end-block", Required: true},
			&cli.BoolFlag{Name: "clear"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadAppConfig(c)
			if err != nil {
				return cli.Exit(err, exitInvalidArgs)
			}
			if err := cfg.RequireDBPath(); err != nil {
				return cli.Exit(err, exitInvalidArgs)
			}
			if !cfg.ClickhouseEnabled() {
				return cli.Exit(fmt.Errorf("db init: CLICKHOUSE_URL is required"), exitInvalidArgs)
			}

			db, err := store.Open(cfg.DBPath, false)
			if err != nil {
				return cli.Exit(err, exitIOFailure)
			}
			defer db.Close()

			ch, err := clickhouse.Open(c.Context, clickhouse.Config{
				Addr: cfg.ClickhouseURL, Database: cfg.ClickhouseDatabase,
				User: cfg.ClickhouseUser, Password: cfg.ClickhousePassword,
			})
			if err != nil {
				return cli.Exit(err, exitProviderFailure)
			}
			defer ch.Close()
			store.SetClickhouseSource(ch)

			start, end := c.Uint64("start-block"), c.Uint64("end-block")
			for _, table := range c.StringSlice("tables") {
				if err := db.InitTable(c.Context, table, start, end, nil, c.Bool("clear")); err != nil {
					return cli.Exit(err, exitIOFailure)
				}
				fmt.Printf("initialized %s [%d, %d]\n", table, start, end)
			}
			return nil
		},
	}
}

func dbClearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "drop every row of one table",
		Flags: []cli.Flag{&cli.StringFlag{Name: "table", Required: true}},
		Action: func(c *cli.Context) error {
			db, err := openStoreFromFlags(c, false)
			if err != nil {
				return cli.Exit(err, exitInvalidArgs)
			}
			defer db.Close()

			tx, err := db.RwTx(c.Context)
			if err != nil {
				return cli.Exit(err, exitIOFailure)
			}
			defer tx.Rollback()
			if err := tx.ClearRawTable(c.String("table")); err != nil {
				return cli.Exit(err, exitIOFailure)
			}
			if err := tx.Commit(); err != nil {
				return cli.Exit(err, exitIOFailure)
			}
			fmt.Println("cleared", c.String("table"))
			return nil
		},
	}
}

func dbTableStatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "table-stats",
		Usage: "print entry count and page occupancy for every table",
		Action: func(c *cli.Context) error {
			db, err := openStoreFromFlags(c, true)
			if err != nil {
				return cli.Exit(err, exitInvalidArgs)
			}
			defer db.Close()

			tx, err := db.ROTx(c.Context)
			if err != nil {
				return cli.Exit(err, exitIOFailure)
			}
			defer tx.Rollback()

			t := table.NewWriter()
			t.AppendHeader(table.Row{"table", "entries", "leaf pages", "branch pages", "depth", "page size"})
			for _, name := range kv.Tables() {
				stat, err := tx.StatTable(name)
				if err != nil {
					return cli.Exit(err, exitIOFailure)
				}
				t.AppendRow(table.Row{
					name, stat.Entries, stat.LeafPages, stat.BranchPages, stat.Depth,
					datasize.ByteSize(uint64(stat.PageSize)).HumanReadable(),
				})
			}
			fmt.Println(t.Render())
			return nil
		},
	}
}

func dbQueryCommand() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "look up one or more rows of a table by key",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "table", Required: true},
			&cli.StringFlag{Name: "key", Required: true, Usage: "block number or K..K block range for block-keyed tables, hex address for address-keyed tables"},
		},
		Action: dbQueryAction,
	}
}

func dbQueryAction(c *cli.Context) error {
	db, err := openStoreFromFlags(c, true)
	if err != nil {
		return cli.Exit(err, exitInvalidArgs)
	}
	defer db.Close()

	tx, err := db.ROTx(c.Context)
	if err != nil {
		return cli.Exit(err, exitIOFailure)
	}
	defer tx.Rollback()
	reader := store.NewReader(tx)

	table := c.String("table")
	lo, hi, isRange, err := parseKeyRange(c.String("key"))
	if err != nil && (table == kv.BlockInfo || table == kv.TxTraces || table == kv.MevBlocks || table == kv.FailedBlocks) {
		return cli.Exit(err, exitInvalidArgs)
	}

	var out []any
	switch c.String("table") {
	case kv.BlockInfo:
		out, err = queryBlockKeyed(lo, hi, isRange, func(b uint64) (any, bool, error) { return reader.BlockInfo(b) })
	case kv.TxTraces:
		out, err = queryBlockKeyed(lo, hi, isRange, func(b uint64) (any, bool, error) { return reader.TxTraces(b) })
	case kv.MevBlocks:
		out, err = queryBlockKeyed(lo, hi, isRange, func(b uint64) (any, bool, error) { return reader.MevBlock(b) })
	case kv.FailedBlocks:
		out, err = queryBlockKeyed(lo, hi, isRange, func(b uint64) (any, bool, error) { return reader.FailedBlock(b) })
	case kv.AddressMeta:
		out, err = queryAddressKeyed(c.String("key"), func(a common.Address) (any, bool, error) { return reader.AddressMeta(a) })
	case kv.AddressToProtocolInfo:
		out, err = queryAddressKeyed(c.String("key"), func(a common.Address) (any, bool, error) { return reader.ProtocolInfo(a) })
	case kv.Builder:
		out, err = queryAddressKeyed(c.String("key"), func(a common.Address) (any, bool, error) { return reader.Builder(a) })
	case kv.SearcherEOAs:
		out, err = queryAddressKeyed(c.String("key"), func(a common.Address) (any, bool, error) { return reader.SearcherEOA(a) })
	case kv.SearcherContracts:
		out, err = queryAddressKeyed(c.String("key"), func(a common.Address) (any, bool, error) { return reader.SearcherContract(a) })
	case kv.TokenDecimals:
		out, err = queryAddressKeyed(c.String("key"), func(a common.Address) (any, bool, error) { return reader.TokenDecimals(a) })
	default:
		return cli.Exit(fmt.Errorf("db query: unsupported table %q", c.String("table")), exitInvalidArgs)
	}
	if err != nil {
		return cli.Exit(err, exitIOFailure)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, row := range out {
		if err := enc.Encode(row); err != nil {
			return cli.Exit(err, exitIOFailure)
		}
	}
	return nil
}

func queryBlockKeyed(lo, hi uint64, isRange bool, fetch func(uint64) (any, bool, error)) ([]any, error) {
	if !isRange {
		hi = lo
	}
	var out []any
	for b := lo; b <= hi; b++ {
		row, ok, err := fetch(b)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func queryAddressKeyed(key string, fetch func(common.Address) (any, bool, error)) ([]any, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(key, "0x"))
	if err != nil || len(raw) != common.AddressLength {
		return nil, fmt.Errorf("db query: %q is not a 20-byte hex address", key)
	}
	row, ok, err := fetch(common.BytesToAddress(raw))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []any{row}, nil
}

// parseKeyRange accepts either a single decimal block number or a
// "K..K" range, returning isRange=false for the single-value form.
func parseKeyRange(s string) (lo, hi uint64, isRange bool, err error) {
	if idx := strings.Index(s, ".."); idx >= 0 {
		lo, err = strconv.ParseUint(s[:idx], 10, 64)
		if err != nil {
			return 0, 0, false, fmt.Errorf("db query: bad range start %q", s)
		}
		hi, err = strconv.ParseUint(s[idx+2:], 10, 64)
		if err != nil {
			return 0, 0, false, fmt.Errorf("db query: bad range end %q", s)
		}
		return lo, hi, true, nil
	}
	lo, err = strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("db query: bad key %q", s)
	}
	return lo, lo, false, nil
}

func dbExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "export persisted MevBlocks to parquet",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: "parquet"},
			&cli.Uint64Flag{Name: "start-block", Required: true},
			&cli.Uint64Flag{Name: "end-block", Required: true},
			&cli.StringFlag{Name: "out", Required: true},
		},
		Action: func(c *cli.Context) error {
			if c.String("format") != "parquet" {
				return cli.Exit(fmt.Errorf("db export: unsupported format %q", c.String("format")), exitInvalidArgs)
			}
			db, err := openStoreFromFlags(c, true)
			if err != nil {
				return cli.Exit(err, exitInvalidArgs)
			}
			defer db.Close()

			tx, err := db.ROTx(c.Context)
			if err != nil {
				return cli.Exit(err, exitIOFailure)
			}
			defer tx.Rollback()

			f, err := os.Create(c.String("out"))
			if err != nil {
				return cli.Exit(err, exitIOFailure)
			}
			defer f.Close()

			if err := db.ExportMevBlocksParquet(tx, c.Uint64("start-block"), c.Uint64("end-block"), f); err != nil {
				return cli.Exit(err, exitIOFailure)
			}
			fmt.Println("exported to", c.String("out"))
			return nil
		},
	}
}

func dbDownloadSnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "download-snapshot",
		Usage: "fetch and extract a store snapshot archive",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Required: true},
			&cli.StringFlag{Name: "snapshot-dir", Required: true},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadAppConfig(c)
			if err != nil {
				return cli.Exit(err, exitInvalidArgs)
			}
			transport := newFileTransport(c.String("snapshot-dir"))
			dbPath := cfg.DBPath
			if v := c.String("db-path"); v != "" {
				dbPath = v
			}
			if dbPath == "" {
				return cli.Exit(fmt.Errorf("db download-snapshot: db path is required"), exitInvalidArgs)
			}
			if err := store.DownloadSnapshot(context.Background(), transport, c.String("key"), dbPath); err != nil {
				return cli.Exit(err, exitIOFailure)
			}
			fmt.Println("downloaded", c.String("key"), "into", dbPath)
			return nil
		},
	}
}

func dbUploadSnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "upload-snapshot",
		Usage: "tar+zstd the store directory and upload it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Required: true},
			&cli.StringFlag{Name: "snapshot-dir", Required: true},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadAppConfig(c)
			if err != nil {
				return cli.Exit(err, exitInvalidArgs)
			}
			if err := cfg.RequireDBPath(); err != nil {
				return cli.Exit(err, exitInvalidArgs)
			}
			transport := newFileTransport(c.String("snapshot-dir"))
			if err := store.UploadSnapshot(context.Background(), cfg.DBPath, transport, c.String("key")); err != nil {
				return cli.Exit(err, exitIOFailure)
			}
			fmt.Println("uploaded", c.String("key"))
			return nil
		},
	}
}
