package store

import (
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/mev-core/brontes/bronerr"
)

// mevBlockParquetRow is the flattened, Parquet-friendly projection of
// MevBlocksRow.Block (`db export --format parquet`, spec.md §6.3).
// Grounded on original_source/crates/brontes-database/brontes-db/src/parquet
// (one flat row struct per exported table, tagged columns, written with an
// Arrow/Parquet writer) — reworked onto parquet-go/parquet-go's struct-tag
// writer instead of Arrow, since that's the Parquet library the example
// pack's go.mod pulls in.
type mevBlockParquetRow struct {
	BlockNumber          uint64  `parquet:"block_number"`
	BlockHash            string  `parquet:"block_hash"`
	BlockTimestamp        uint64  `parquet:"block_timestamp"`
	ProposerFeeRecipient string  `parquet:"proposer_fee_recipient,optional"`
	ProposerMevRewardUsd string  `parquet:"proposer_mev_reward_usd"`
	BuilderAddress       string  `parquet:"builder_address,optional"`
	TotalBribeUsd        string  `parquet:"total_bribe_usd"`
	TotalMevProfitUsd    string  `parquet:"total_mev_profit_usd"`
	NumberMevBundles     int64   `parquet:"number_mev_bundles"`
}

// ExportMevBlocksParquet writes every MevBlocksRow in [startBlock,
// endBlock] to w in Parquet format (`db export --format parquet`,
// spec.md §6.3).
func (s *Store) ExportMevBlocksParquet(tx *ROTx, startBlock, endBlock uint64, w io.Writer) error {
	rows, err := WalkRange(tx, mevBlocksTable, startBlock, endBlock+1)
	if err != nil {
		return err
	}

	flat := make([]mevBlockParquetRow, 0, len(rows))
	for _, kv := range rows {
		b := kv.Value.Block
		out := mevBlockParquetRow{
			BlockNumber:       b.BlockNumber,
			BlockHash:         b.BlockHash.String(),
			BlockTimestamp:    b.BlockTimestamp,
			ProposerMevRewardUsd: b.ProposerMevRewardUsd.String(),
			TotalBribeUsd:        b.TotalBribeUsd.String(),
			TotalMevProfitUsd:    b.TotalMevProfitUsd.String(),
			NumberMevBundles:     int64(b.NumberMevBundles),
		}
		if b.ProposerFeeRecipient != nil {
			out.ProposerFeeRecipient = b.ProposerFeeRecipient.String()
		}
		if b.BuilderAddress != nil {
			out.BuilderAddress = b.BuilderAddress.String()
		}
		flat = append(flat, out)
	}

	pw := parquet.NewGenericWriter[mevBlockParquetRow](w)
	if _, err := pw.Write(flat); err != nil {
		return bronerr.Fatal("store.export_parquet", err)
	}
	if err := pw.Close(); err != nil {
		return bronerr.Fatal("store.export_parquet", err)
	}
	return nil
}
