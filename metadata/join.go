// Package metadata assembles the per-block Metadata join: Store-backed
// block/builder facts, the CEXWindow's live trade map (the whole window;
// no quotes, and no cut at the block's timestamp), and relay/builder
// attribution with an on-chain fallback
// (spec.md §4.8). Grounded on core/state/history_reader_v3.go's
// "wrap several sources, expose one typed read" shape, the same pattern
// store/reader.go follows.
package metadata

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/mev-core/brontes/bronerr"
	"github.com/mev-core/brontes/cexwindow"
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/store"
	"github.com/mev-core/brontes/types"
)

// RelayRecord is a relay's reported delivered-payload info for one block,
// the primary source for proposer_fee_recipient/proposer_mev_reward
// (spec.md §4.8 step 4).
type RelayRecord struct {
	ProposerFeeRecipient common.Address
	ProposerMevReward    common.U256
	P2PTimestamp         uint64
}

// RelaySource looks up a block's relay bid record, when one exists.
type RelaySource interface {
	RelayRecord(ctx context.Context, block uint64) (RelayRecord, bool, error)
}

// CoinbaseAnalyzer computes proposer_mev_reward from on-chain coinbase
// transfers when no relay record is available (spec.md §4.8 step 4
// "falling back to on-chain coinbase transfer analysis if missing").
type CoinbaseAnalyzer interface {
	CoinbaseTransferTotal(tree *types.BlockTree) (common.U256, common.Address, bool)
}

// Join is MetadataJoin: one instance per running pipeline, shared
// read-only across blocks being assembled concurrently. Each Assemble
// call opens its own short-lived ROTx against db rather than holding one
// snapshot for the Join's lifetime, the same convention
// pipeline.withReader uses for every other Store read in the FSM.
type Join struct {
	db         *store.Store
	window     *cexwindow.Window
	relay      RelaySource
	coinbase   CoinbaseAnalyzer
	builderTTL *ttlcache.Cache[common.Address, store.BuilderRow]
}

// NewJoin wires a Join against the given Store, CEXWindow and relay
// source. builderTTL caches the builder_info lookup (spec.md §4.8 step 1)
// for ttl, since the same small set of builder addresses recurs across
// nearly every block in a run.
func NewJoin(db *store.Store, window *cexwindow.Window, relay RelaySource, coinbase CoinbaseAnalyzer, ttl time.Duration) *Join {
	cache := ttlcache.New(ttlcache.WithTTL[common.Address, store.BuilderRow](ttl))
	go cache.Start()
	return &Join{db: db, window: window, relay: relay, coinbase: coinbase, builderTTL: cache}
}

func (j *Join) Close() { j.builderTTL.Stop() }

// Assemble builds the immutable Metadata for block, per spec.md §4.8's
// four steps. tree is passed only for the coinbase-transfer fallback and
// is never mutated.
func (j *Join) Assemble(ctx context.Context, block uint64, tree *types.BlockTree) (*types.Metadata, error) {
	tx, err := j.db.ROTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	reader := store.NewReader(tx)

	blockInfo, ok, err := reader.BlockInfo(block)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, bronerr.NotFound("metadata.assemble", bronerr.WithBlock(block))
	}

	meta := &types.Metadata{
		BlockNum:             block,
		BlockHash:            blockInfo.Header.BlockHash,
		BlockTimestamp:       blockInfo.Header.Timestamp,
		RelayTimestamp:       blockInfo.RelayTimestamp,
		P2PTimestamp:         blockInfo.P2PTimestamp,
		ProposerFeeRecipient: blockInfo.ProposerFeeRecipient,
		ProposerMevReward:    blockInfo.ProposerMevReward,
		PrivateTxHashes:      blockInfo.PrivateTxHashes,
	}

	if err := j.attachBuilder(reader, blockInfo, meta); err != nil {
		return nil, err
	}

	j.window.WithTrades(func(trades *types.CexTradeMap) {
		meta.CexTrades = trades
	})

	if err := j.attachProposerReward(ctx, block, tree, meta); err != nil {
		return nil, err
	}

	return meta, nil
}

func (j *Join) attachBuilder(reader *store.Reader, blockInfo store.BlockInfoRow, meta *types.Metadata) error {
	addr := meta.ProposerFeeRecipient
	if addr == nil {
		return nil
	}
	if item := j.builderTTL.Get(*addr); item != nil {
		row := item.Value()
		meta.BuilderInfo = &types.BuilderInfo{Address: *addr, Name: row.Name}
		return nil
	}
	row, ok, err := reader.Builder(*addr)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	j.builderTTL.Set(*addr, row, ttlcache.DefaultTTL)
	meta.BuilderInfo = &types.BuilderInfo{Address: *addr, Name: row.Name}
	return nil
}

// attachProposerReward resolves proposer_fee_recipient/proposer_mev_reward
// from the relay record first, falling back to coinbase-transfer analysis
// only when no relay record exists (spec.md §4.8 step 4).
func (j *Join) attachProposerReward(ctx context.Context, block uint64, tree *types.BlockTree, meta *types.Metadata) error {
	if j.relay != nil {
		rec, ok, err := j.relay.RelayRecord(ctx, block)
		if err != nil {
			return err
		}
		if ok {
			addr := rec.ProposerFeeRecipient
			reward := rec.ProposerMevReward
			meta.ProposerFeeRecipient = &addr
			meta.ProposerMevReward = &reward
			meta.P2PTimestamp = &rec.P2PTimestamp
			return nil
		}
	}
	if j.coinbase != nil && tree != nil {
		if reward, addr, ok := j.coinbase.CoinbaseTransferTotal(tree); ok {
			meta.ProposerFeeRecipient = &addr
			meta.ProposerMevReward = &reward
		}
	}
	return nil
}
