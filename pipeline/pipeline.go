// Package pipeline implements BlockPipeline, the per-block finite-state
// machine spec.md §4.7 describes: IDLE -> COLLECTING -> CLASSIFIED ->
// PRICED -> INSPECTED -> PERSISTED -> DONE. Multiple blocks occupy
// different states concurrently, bounded by MAX_PENDING (spec.md §5
// "an upper bound MAX_PENDING <= small constant (~5)"), using
// golang.org/x/sync/semaphore the way the teacher bounds concurrent
// snapshot downloads. Shutdown is cooperative: Run stops admitting new
// blocks and drains in-flight ones to PERSISTED before returning.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mev-core/brontes/bronerr"
	"github.com/mev-core/brontes/classifier"
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/inspect"
	"github.com/mev-core/brontes/metadata"
	"github.com/mev-core/brontes/pricing"
	"github.com/mev-core/brontes/provider"
	"github.com/mev-core/brontes/store"
	"github.com/mev-core/brontes/telemetry"
	"github.com/mev-core/brontes/tree"
	"github.com/mev-core/brontes/types"
)

// defaultMaxPending is spec.md §5's "small constant (~5)".
const defaultMaxPending = 5

// Stage names line up with telemetry's brontes_block_stage_seconds labels
// and the failed_blocks table's Stage column.
const (
	StageCollecting = "COLLECTING"
	StageClassified = "CLASSIFIED"
	StagePriced     = "PRICED"
	StageInspected  = "INSPECTED"
	StagePersisted  = "PERSISTED"
)

// Config bundles BlockPipeline's dependencies. MaxPending defaults to
// defaultMaxPending when zero. PairsOfInterest/MaxHops are forwarded to
// pricing.Graph.ProcessBlock unchanged (spec.md §4.4).
type Config struct {
	Store      *store.Store
	Classifier *classifier.Classifier
	Rewrites   tree.Registry
	Pricing    *pricing.Graph
	Join       *metadata.Join
	Composer   *inspect.Composer
	Provider   provider.TraceProvider
	Metrics    *telemetry.Metrics
	Log        *zap.Logger

	PairsOfInterest []types.Pair
	MaxHops         int
	MaxPending      int
}

// Pipeline drives one block at a time through the FSM, admitting up to
// MaxPending blocks concurrently (spec.md §4.7, §5).
type Pipeline struct {
	cfg Config
	sem *semaphore.Weighted
}

func New(cfg Config) *Pipeline {
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = defaultMaxPending
	}
	return &Pipeline{cfg: cfg, sem: semaphore.NewWeighted(int64(cfg.MaxPending))}
}

// Run admits blocks from the channel in order, running each through the
// FSM in its own goroutine once a MAX_PENDING slot is free. It returns
// once blocks is closed and every admitted block has reached PERSISTED
// (or failed). A block's own failure is logged and neither aborts the run
// nor appears in Run's error; only a failure to acquire a MAX_PENDING
// slot is collected into the returned error with multierr.
//
// ctx cancellation triggers the cooperative shutdown: Run stops admitting
// new blocks from the channel immediately but still waits for in-flight
// blocks already holding a semaphore slot to drain to PERSISTED.
func (p *Pipeline) Run(ctx context.Context, blocks <-chan uint64) error {
	drainCtx := context.WithoutCancel(ctx)
	g, gctx := errgroup.WithContext(context.Background())
	var errs error

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case block, ok := <-blocks:
			if !ok {
				return multierr.Append(errs, g.Wait())
			}
			if err := p.sem.Acquire(gctx, 1); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			b := block
			g.Go(func() error {
				defer p.sem.Release(1)
				if err := p.processBlock(drainCtx, b); err != nil {
					p.cfg.Log.Warn("block failed", zap.Uint64("block", b), zap.Error(err))
				}
				return nil
			})
		}
	}
}

// processBlock drives one block through every FSM transition in order,
// recording a failed_blocks row and returning early if COLLECTING or
// CLASSIFIED fails (spec.md §4.7 "any failure in COLLECTING or CLASSIFIED
// aborts that block"). An INSPECTED failure is recorded but PERSISTED
// still proceeds with the MevBlock skeleton.
func (p *Pipeline) processBlock(ctx context.Context, block uint64) error {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.PendingBlocks.Inc()
		defer p.cfg.Metrics.PendingBlocks.Dec()
	}

	traces, header, err := p.collect(ctx, block)
	if err != nil {
		return p.fail(ctx, block, StageCollecting, err)
	}

	blockTree, priceMsgs, err := p.classify(header, traces)
	if err != nil {
		return p.fail(ctx, block, StageClassified, err)
	}

	meta, err := p.price(ctx, block, blockTree, priceMsgs, len(traces))
	if err != nil {
		return p.fail(ctx, block, StagePriced, err)
	}

	mevBlock, bundles, inspectErr := p.inspect(ctx, blockTree, meta)
	if inspectErr != nil {
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.FailedBlocks.WithLabelValues(StageInspected).Inc()
		}
		mevBlock = &types.MevBlock{BlockNumber: block, BlockHash: blockTree.Header.BlockHash, BlockTimestamp: blockTree.Header.Timestamp}
		bundles = nil
	}

	if err := p.persist(ctx, block, mevBlock, bundles); err != nil {
		return p.fail(ctx, block, StagePersisted, err)
	}
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.BlocksProcessed.WithLabelValues("persisted").Inc()
	}
	return nil
}

// collect is the IDLE->COLLECTING transition: trace and metadata_no_dex
// (here, just the block hash) are fetched concurrently, with the cached
// trace in Store consulted first so a re-run never re-fetches (spec.md
// §4.7 "launch trace and metadata queries concurrently").
func (p *Pipeline) collect(ctx context.Context, block uint64) ([]provider.TxTrace, types.BlockHeader, error) {
	defer p.observe(StageCollecting, time.Now())

	var traces []provider.TxTrace
	var hash common.Hash

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cached, hit, err := withReader(p, func(r *store.Reader) (store.TxTracesRow, bool, error) {
			return r.TxTraces(block)
		})
		if err != nil {
			return err
		}
		if hit {
			traces = make([]provider.TxTrace, len(cached.Traces))
			for i, t := range cached.Traces {
				traces[i] = provider.TxTrace{TxHash: t.TxHash, TxIndex: t.TxIndex, Frames: t.Frames}
			}
			return nil
		}
		start := time.Now()
		fetched, err := p.cfg.Provider.ReplayBlockTransactions(gctx, block)
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.TraceFetchSeconds.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			return err
		}
		traces = fetched
		return p.withWriter(func(w *store.Writer) error {
			rows := make([]store.CachedTrace, len(fetched))
			for i, t := range fetched {
				rows[i] = store.CachedTrace{TxHash: t.TxHash, TxIndex: t.TxIndex, Frames: t.Frames}
			}
			return w.PutTxTraces(block, store.TxTracesRow{Traces: rows})
		})
	})
	g.Go(func() error {
		h, ok, err := p.cfg.Provider.BlockHashForID(gctx, block)
		if err != nil {
			return err
		}
		if ok {
			hash = h
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, types.BlockHeader{}, err
	}
	return traces, types.BlockHeader{BlockNumber: block, BlockHash: hash}, nil
}

// classify is the COLLECTING->CLASSIFIED transition: every frame of every
// trace is classified in trace_index order, accumulated into a
// tree.Builder, then frozen and rewritten by the registered multi-frame
// classifiers (spec.md §4.2, §4.3).
func (p *Pipeline) classify(header types.BlockHeader, traces []provider.TxTrace) (*types.BlockTree, []classifier.DexPriceMsg, error) {
	defer p.observe(StageClassified, time.Now())

	builder := tree.NewBuilder(header, len(traces))
	var priceMsgs []classifier.DexPriceMsg
	var discoveries []*types.NewPoolAction

	for _, t := range traces {
		if len(t.Frames) == 0 {
			continue
		}
		head := t.Frames[0]
		headAction, headMsg, err := p.classifyFrame(head)
		if err != nil {
			return nil, nil, bronerr.Decode("pipeline.classify", err, bronerr.WithBlock(header.BlockNumber))
		}
		builder.StartRoot(t.TxHash, t.TxIndex, head.From, head.To, headAction)
		if headMsg != nil {
			priceMsgs = append(priceMsgs, *headMsg)
		}
		if np, ok := headAction.(*types.NewPoolAction); ok {
			discoveries = append(discoveries, np)
		}
		for _, frame := range t.Frames[1:] {
			action, msg, err := p.classifyFrame(frame)
			if err != nil {
				return nil, nil, bronerr.Decode("pipeline.classify", err, bronerr.WithBlock(header.BlockNumber))
			}
			builder.InsertAction(frame.From, frame.To, action)
			if msg != nil {
				priceMsgs = append(priceMsgs, *msg)
			}
			if np, ok := action.(*types.NewPoolAction); ok {
				discoveries = append(discoveries, np)
			}
		}
	}

	if len(discoveries) > 0 {
		if err := p.persistDiscoveries(discoveries); err != nil {
			return nil, nil, err
		}
	}

	blockTree := builder.Freeze()
	if len(p.cfg.Rewrites) > 0 {
		tree.Apply(blockTree, p.cfg.Rewrites)
	}
	return blockTree, priceMsgs, nil
}

// persistDiscoveries writes pool->tokens and address->protocol for every
// NewPoolAction classified this block (spec.md §4.3 "persist pool->tokens
// and address->protocol", §2 step 2 "writes discoveries to Store"), so a
// later block's classifyFrame sees the pool's protocol via ProtocolInfo
// instead of re-discovering it from scratch.
func (p *Pipeline) persistDiscoveries(discoveries []*types.NewPoolAction) error {
	return p.withWriter(func(w *store.Writer) error {
		for _, np := range discoveries {
			row := store.ProtocolInfoRow{
				Protocol: np.Protocol,
				Pool: types.PoolPairInformation{
					PoolAddr: np.Pool,
					Protocol: np.Protocol,
					Token0:   np.Token0.Address,
					Token1:   np.Token1.Address,
				},
			}
			if err := w.PutProtocolInfo(np.Pool, row); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Pipeline) classifyFrame(frame classifier.Frame) (types.Action, *classifier.DexPriceMsg, error) {
	protocol := types.ProtocolUnknown
	info, ok, err := withReader(p, func(r *store.Reader) (store.ProtocolInfoRow, bool, error) {
		return r.ProtocolInfo(frame.To)
	})
	if err != nil {
		return nil, nil, err
	}
	if ok {
		protocol = info.Protocol
	}
	return p.cfg.Classifier.Classify(protocol, frame)
}

// price is the CLASSIFIED->PRICED transition: dex price events collected
// during classify are applied to the shared PricingGraph, falling back to
// Store's last-cached quotes for this block when pricing is disabled
// (spec.md §4.7 "on absence (pricing disabled), use cached quotes from
// Store"). The Metadata join (chain/relay/CEX) happens here too, since
// MetadataJoin itself blocks on DexQuotes being populated (spec.md §4.8).
func (p *Pipeline) price(ctx context.Context, block uint64, blockTree *types.BlockTree, msgs []classifier.DexPriceMsg, txCount int) (*types.Metadata, error) {
	defer p.observe(StagePriced, time.Now())

	meta, err := p.cfg.Join.Assemble(ctx, block, blockTree)
	if err != nil {
		return nil, err
	}

	if p.cfg.Pricing != nil {
		quotes, failures := p.cfg.Pricing.ProcessBlock(block, txCount, msgs, p.cfg.PairsOfInterest, p.cfg.MaxHops)
		for _, f := range failures {
			p.cfg.Log.Warn("pool fetch failed", zap.Uint64("block", block), zap.Stringer("pool", f.Pool), zap.Error(f.Err))
		}
		meta.DexQuotes = quotes
	} else {
		cached, err := p.cachedQuotes(block, blockTree, txCount)
		if err != nil {
			return nil, err
		}
		meta.DexQuotes = cached
	}
	return meta, nil
}

// cachedQuotes rebuilds a DexQuotes from Store's persisted dex_price rows
// for every pair touched anywhere in the tree, used when pricing is
// disabled (spec.md §4.7).
func (p *Pipeline) cachedQuotes(block uint64, blockTree *types.BlockTree, txCount int) (*types.DexQuotes, error) {
	quotes := types.NewDexQuotes(block, txCount)
	pairs := map[types.Pair]struct{}{}
	allActions := tree.CollectAll(blockTree, types.NewTreeSearchBuilder(func(a types.Action) bool {
		return a.GetKind() == types.ActionSwap
	}))
	for _, actions := range allActions {
		for _, action := range actions {
			swap := action.(*types.SwapAction)
			pair := types.Pair{Token0: swap.TokenIn.Token.Address, Token1: swap.TokenOut.Token.Address}
			pairs[pair.Ordered()] = struct{}{}
		}
	}
	for pair := range pairs {
		row, ok, err := withReader(p, func(r *store.Reader) (store.DexPriceRow, bool, error) {
			return r.DexPrice(block, pair)
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for txIndex, bracket := range row.ByTx {
			if bracket != nil {
				quotes.Set(txIndex, pair, *bracket)
			}
		}
	}
	return quotes, nil
}

// inspect is the PRICED->INSPECTED transition.
func (p *Pipeline) inspect(ctx context.Context, blockTree *types.BlockTree, meta *types.Metadata) (*types.MevBlock, []types.Bundle, error) {
	defer p.observe(StageInspected, time.Now())
	return p.cfg.Composer.Run(ctx, blockTree, meta)
}

// persist is the INSPECTED->PERSISTED transition: MevBlock, Bundles, and
// searcher/builder stat updates are written in one RwTx (spec.md §4.7
// "write MevBlock + Bundles + searcher/builder stat updates
// transactionally").
func (p *Pipeline) persist(ctx context.Context, block uint64, mevBlock *types.MevBlock, bundles []types.Bundle) error {
	defer p.observe(StagePersisted, time.Now())

	return p.withWriter(func(w *store.Writer) error {
		if err := w.PutMevBlock(block, toMevBlocksRow(mevBlock, bundles)); err != nil {
			return err
		}
		for _, b := range bundles {
			addr := b.Header.Eoa
			isContract := false
			if b.Header.MevContract != nil {
				addr = *b.Header.MevContract
				isContract = true
			}
			if err := w.AccumulateSearcherStats(addr, isContract, b.Header.MevType, b.Header.ProfitUsd); err != nil {
				return err
			}
		}
		return nil
	})
}

func toMevBlocksRow(mevBlock *types.MevBlock, bundles []types.Bundle) store.MevBlocksRow {
	return store.MevBlocksRow{Block: *mevBlock, Bundles: bundles}
}

// fail records block in failed_blocks and returns a wrapped error; it
// never panics, matching spec.md §4.7's "the pipeline never panics on
// classification or inspector errors".
func (p *Pipeline) fail(ctx context.Context, block uint64, stage string, cause error) error {
	kind, _ := bronerr.KindOf(cause)
	writeErr := p.withWriter(func(w *store.Writer) error {
		return w.PutFailedBlock(block, store.FailedBlockRow{
			Stage:   stage,
			Kind:    kind.String(),
			Message: cause.Error(),
		})
	})
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.FailedBlocks.WithLabelValues(stage).Inc()
		p.cfg.Metrics.BlocksProcessed.WithLabelValues("failed").Inc()
	}
	return multierr.Append(fmt.Errorf("block %d failed at %s: %w", block, stage, cause), writeErr)
}

func (p *Pipeline) observe(stage string, start time.Time) {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.ObserveStage(stage, start)
	}
}

// withReader opens a read-only transaction, runs fn, and always rolls
// back: every Store read in the FSM is a point lookup inside its own
// short-lived ROTx rather than one held across the whole block (spec.md
// §4.5 "A reader holding the shared map may keep it through the duration
// of one block's inspection; writers block only during the merge/trim
// step" describes cexwindow specifically, not Store).
func withReader[T any](p *Pipeline, fn func(*store.Reader) (T, bool, error)) (T, bool, error) {
	var zero T
	tx, err := p.cfg.Store.ROTx(context.Background())
	if err != nil {
		return zero, false, err
	}
	defer tx.Rollback()
	return fn(store.NewReader(tx))
}

// withWriter opens a read-write transaction, runs fn, and commits on
// success (spec.md §4.7 "write ... transactionally").
func (p *Pipeline) withWriter(fn func(*store.Writer) error) error {
	tx, err := p.cfg.Store.RwTx(context.Background())
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(store.NewWriter(tx)); err != nil {
		return err
	}
	return tx.Commit()
}
