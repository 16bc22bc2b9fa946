// Package clickhouse is the optional external-data source Store.InitTable
// pulls from: table-shaped queries returning typed rows for
// initialization/backfill, plus a metadata path for block timestamps and
// relay/builder info (spec.md §6.2). Grounded on core/state/history_reader_v3.go's
// "typed reader over a connection" shape, adapted onto a real SQL client
// instead of an embedded KV cursor.
package clickhouse

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/mev-core/brontes/bronerr"
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/store"
)

// Config is the connection shape for CLICKHOUSE_URL/USER/PASS/DATABASE
// (spec.md §6.5).
type Config struct {
	Addr     string
	Database string
	User     string
	Password string
}

// Handle implements store.ClickhouseSource (spec.md §4.1 "init_table...
// populate from ClickhouseHandle") plus the metadata path §6.2 names.
type Handle struct {
	conn clickhouse.Conn
}

func Open(ctx context.Context, cfg Config) (*Handle, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, bronerr.Fatal("clickhouse.open", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, bronerr.Transient("clickhouse.open", err)
	}
	return &Handle{conn: conn}, nil
}

func (h *Handle) Close() error { return h.conn.Close() }

// tableSource names the ClickHouse table + (key, value) column pair
// backing one Store table, registered in sourceTables below.
type tableSource struct {
	chTable   string
	keyCols   []string
	valueCol  string
}

// sourceTables maps the backfillable Store tables (kv/tables.go) to the
// upstream ClickHouse table each is backfilled from. MevBlocks,
// FailedBlocks, SearcherEOAs, SearcherContracts and InitializedState have
// no entry, and FetchRange returns an error for them.
var sourceTables = map[string]tableSource{
	"BlockInfo":             {chTable: "mev_block_info", keyCols: []string{"block_number"}, valueCol: "payload"},
	"TxTraces":              {chTable: "mev_tx_traces", keyCols: []string{"block_number"}, valueCol: "payload"},
	"DexPrice":              {chTable: "mev_dex_price", keyCols: []string{"block_number", "pair"}, valueCol: "payload"},
	"AddressMeta":           {chTable: "mev_address_meta", keyCols: []string{"address"}, valueCol: "payload"},
	"AddressToProtocolInfo": {chTable: "mev_address_protocol", keyCols: []string{"address"}, valueCol: "payload"},
	"Builder":               {chTable: "mev_builder", keyCols: []string{"address"}, valueCol: "payload"},
	"TokenDecimals":         {chTable: "mev_token_decimals", keyCols: []string{"address"}, valueCol: "payload"},
}

// FetchRange implements store.ClickhouseSource: streams every row of
// table whose block_number falls in [startBlock, endBlock], optionally
// restricted to protocols, as raw pre-compression (key, value) pairs.
func (h *Handle) FetchRange(ctx context.Context, table string, startBlock, endBlock uint64, protocols []uint16) ([]store.RawRow, error) {
	src, ok := sourceTables[table]
	if !ok {
		return nil, bronerr.Protocol("clickhouse.fetch_range", fmt.Errorf("no ClickHouse source registered for table %q", table))
	}

	query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE block_number BETWEEN ? AND ?", columnList(src.keyCols), src.valueCol, src.chTable)
	args := []any{startBlock, endBlock}
	if len(protocols) > 0 {
		query += " AND protocol IN ?"
		args = append(args, protocols)
	}

	rows, err := h.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, bronerr.Transient("clickhouse.fetch_range", err, bronerr.WithKey(table))
	}
	defer rows.Close()

	var out []store.RawRow
	for rows.Next() {
		keyParts := make([]any, len(src.keyCols))
		keyPtrs := make([]any, len(src.keyCols))
		for i := range keyParts {
			keyPtrs[i] = &keyParts[i]
		}
		var value []byte
		if err := rows.Scan(append(keyPtrs, &value)...); err != nil {
			return nil, bronerr.Decode("clickhouse.fetch_range", err, bronerr.WithKey(table))
		}
		out = append(out, store.RawRow{Key: encodeKeyParts(keyParts), Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, bronerr.Transient("clickhouse.fetch_range", err, bronerr.WithKey(table))
	}
	return out, nil
}

func columnList(cols []string) string {
	out := cols[0]
	for _, c := range cols[1:] {
		out += ", " + c
	}
	return out
}

// encodeKeyParts concatenates the scanned key columns' byte forms in
// order, matching the fixed-width key encodings store/reader.go's
// Table.EncodeKey funcs expect (big-endian block number, raw 20-byte
// address, or the two concatenated for DexPrice's composite key).
func encodeKeyParts(parts []any) []byte {
	var out []byte
	for _, p := range parts {
		switch v := p.(type) {
		case []byte:
			out = append(out, v...)
		case string:
			out = append(out, []byte(v)...)
		case uint64:
			out = append(out, encodeBigEndianUint64(v)...)
		}
	}
	return out
}

func hexToBytes(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

func encodeBigEndianUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// CexTradeRow is one executed trade as ClickHouse stores it: a venue name,
// a token pair (by address, already resolved upstream), and the
// price/amount/timestamp triple CexTradeMap.Append expects.
type CexTradeRow struct {
	Exchange  string
	Token0    common.Address
	Token1    common.Address
	Timestamp uint64
	Price     string
	Amount    string
}

// CexTradesForBlock returns every trade timestamped within the block's
// [blockTimestamp-lookaheadSeconds, blockTimestamp+lookaheadSeconds] window
// across all venues, the raw input cmd/brontes folds into a
// cexwindow.BlockTrades before merging into the running CEXWindow.
func (h *Handle) CexTradesForBlock(ctx context.Context, blockTimestamp uint64, lookaheadSeconds int) ([]CexTradeRow, error) {
	lo := int64(blockTimestamp) - int64(lookaheadSeconds)
	if lo < 0 {
		lo = 0
	}
	hi := blockTimestamp + uint64(lookaheadSeconds)

	rows, err := h.conn.Query(ctx,
		"SELECT exchange, token0, token1, ts, price, amount FROM mev_cex_trades WHERE ts BETWEEN ? AND ? ORDER BY ts",
		uint64(lo), hi)
	if err != nil {
		return nil, bronerr.Transient("clickhouse.cex_trades", err, bronerr.WithBlock(blockTimestamp))
	}
	defer rows.Close()

	var out []CexTradeRow
	for rows.Next() {
		var (
			exchange, token0, token1 string
			ts                       uint64
			price, amount            string
		)
		if err := rows.Scan(&exchange, &token0, &token1, &ts, &price, &amount); err != nil {
			return nil, bronerr.Decode("clickhouse.cex_trades", err, bronerr.WithBlock(blockTimestamp))
		}
		t0, err := hexToBytes(token0)
		if err != nil {
			return nil, bronerr.Decode("clickhouse.cex_trades", err, bronerr.WithBlock(blockTimestamp))
		}
		t1, err := hexToBytes(token1)
		if err != nil {
			return nil, bronerr.Decode("clickhouse.cex_trades", err, bronerr.WithBlock(blockTimestamp))
		}
		out = append(out, CexTradeRow{
			Exchange:  exchange,
			Token0:    common.BytesToAddress(t0),
			Token1:    common.BytesToAddress(t1),
			Timestamp: ts,
			Price:     price,
			Amount:    amount,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, bronerr.Transient("clickhouse.cex_trades", err, bronerr.WithBlock(blockTimestamp))
	}
	return out, nil
}

// BlockMeta is the "get metadata" path: block timestamps and relay/
// builder info (spec.md §6.2).
type BlockMeta struct {
	BlockNumber   uint64
	Timestamp     uint64
	RelayBuilder  string
}

// Metadata queries the metadata path for a single block. Nothing in this
// module calls it; metadata.Join takes relay data through its
// RelaySource (RelayBid) only.
func (h *Handle) Metadata(ctx context.Context, block uint64) (BlockMeta, bool, error) {
	row := h.conn.QueryRow(ctx, "SELECT block_number, timestamp, relay_builder FROM mev_block_meta WHERE block_number = ?", block)
	var m BlockMeta
	if err := row.Scan(&m.BlockNumber, &m.Timestamp, &m.RelayBuilder); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BlockMeta{}, false, nil
		}
		return BlockMeta{}, false, bronerr.Transient("clickhouse.metadata", err, bronerr.WithBlock(block))
	}
	return m, true, nil
}

// RelayBid is one relay's reported delivered-payload bid for a block, the
// ClickHouse-backed primary source metadata.Join's RelaySource consumes
// (spec.md §4.8 step 4 "proposer_fee_recipient/proposer_mev_reward" from
// the relay record).
type RelayBid struct {
	ProposerFeeRecipient common.Address
	ProposerMevRewardWei string
	P2PTimestamp         uint64
}

// RelayBid queries mev_relay_bids for block's delivered-payload record.
func (h *Handle) RelayBid(ctx context.Context, block uint64) (RelayBid, bool, error) {
	row := h.conn.QueryRow(ctx, "SELECT proposer_fee_recipient, proposer_mev_reward_wei, p2p_timestamp FROM mev_relay_bids WHERE block_number = ?", block)
	var (
		recipient string
		rewardWei string
		rb        RelayBid
	)
	if err := row.Scan(&recipient, &rewardWei, &rb.P2PTimestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RelayBid{}, false, nil
		}
		return RelayBid{}, false, bronerr.Transient("clickhouse.relay_bid", err, bronerr.WithBlock(block))
	}
	addrBytes, err := hexToBytes(recipient)
	if err != nil {
		return RelayBid{}, false, bronerr.Decode("clickhouse.relay_bid", err, bronerr.WithBlock(block))
	}
	rb.ProposerFeeRecipient = common.BytesToAddress(addrBytes)
	rb.ProposerMevRewardWei = rewardWei
	return rb, true, nil
}
