package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/mev-core/brontes/cexwindow"
	"github.com/mev-core/brontes/classifier"
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/inspect"
	"github.com/mev-core/brontes/metadata"
	"github.com/mev-core/brontes/provider"
	"github.com/mev-core/brontes/provider/providermock"
	"github.com/mev-core/brontes/store"
	"github.com/mev-core/brontes/telemetry"
	"github.com/mev-core/brontes/types"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fakeProvider replays one fixed block's traces, per the TraceProvider
// surface pipeline.collect exercises.
type fakeProvider struct {
	traces []provider.TxTrace
	hash   common.Hash
}

func (f *fakeProvider) BestBlockNumber(context.Context) (uint64, error) { return 0, nil }
func (f *fakeProvider) BlockHashForID(context.Context, uint64) (common.Hash, bool, error) {
	return f.hash, true, nil
}
func (f *fakeProvider) ReplayBlockTransactions(context.Context, uint64) ([]provider.TxTrace, error) {
	return f.traces, nil
}
func (f *fakeProvider) EthCall(context.Context, provider.CallRequest, *uint64, provider.StateOverrides) ([]byte, error) {
	return nil, nil
}
func (f *fakeProvider) GetStorage(context.Context, uint64, common.Address, common.Hash) (common.U256, error) {
	return common.U256{}, nil
}
func (f *fakeProvider) GetBytecode(context.Context, uint64, common.Address) ([]byte, error) {
	return nil, nil
}
func (f *fakeProvider) GetLogs(context.Context, provider.LogFilter) ([]classifier.Log, error) {
	return nil, nil
}

// fixedInspector always returns one bundle flagging the block's single tx.
type fixedInspector struct{ txHash common.Hash }

func (fixedInspector) MevType() types.MevType { return types.MevSearcherTx }
func (f fixedInspector) Inspect(_ context.Context, bt *types.BlockTree, _ *types.Metadata) ([]types.Bundle, error) {
	var eoa common.Address
	if len(bt.Roots) > 0 {
		eoa = bt.Roots[0].MsgSender
	}
	return []types.Bundle{{
		Header: types.BundleHeader{TxHash: f.txHash, Eoa: eoa, MevType: types.MevSearcherTx, ProfitUsd: decimal.NewFromInt(1)},
		Data:   types.SearcherTxData{},
	}}, nil
}

func newTestPipeline(t *testing.T, traces []provider.TxTrace, blockHash common.Hash, txHash common.Hash) (*Pipeline, *store.Store) {
	t.Helper()
	s := openTestStore(t)

	rw, err := s.RwTx(context.Background())
	require.NoError(t, err)
	w := store.NewWriter(rw)
	require.NoError(t, w.PutBlockInfo(1, store.BlockInfoRow{
		Header: types.BlockHeader{BlockNumber: 1, BlockHash: blockHash},
	}))
	require.NoError(t, rw.Commit())

	window := cexwindow.New(60)
	join := metadata.NewJoin(s, window, nil, nil, 0)
	t.Cleanup(join.Close)

	composer, err := inspect.NewComposer(fixedInspector{txHash: txHash})
	require.NoError(t, err)

	deps := classifier.Deps{Tokens: fakeTokens{}, Pools: fakePools{}}
	c := classifier.New(deps, nil)

	metrics, _ := telemetry.New()

	p := New(Config{
		Store:      s,
		Classifier: c,
		Provider:   &fakeProvider{traces: traces, hash: blockHash},
		Join:       join,
		Composer:   composer,
		Metrics:    metrics,
		Log:        zap.NewNop(),
		MaxPending: 2,
	})
	return p, s
}

type fakeTokens struct{}

func (fakeTokens) TokenInfo(common.Address) (types.TokenInfo, bool) { return types.TokenInfo{}, false }

type fakePools struct{}

func (fakePools) PoolInfo(common.Address) (types.PoolPairInformation, bool) {
	return types.PoolPairInformation{}, false
}

func TestPipelinePersistsMevBlockAndSearcherStats(t *testing.T) {
	txHash := common.Hash{0x11}
	blockHash := common.Hash{0x22}
	from := common.Address{0x01}
	to := common.Address{0x02}

	traces := []provider.TxTrace{{
		TxHash:  txHash,
		TxIndex: 0,
		Frames: []classifier.Frame{{
			TraceIndex: 0,
			TxIndex:    0,
			TxHash:     txHash,
			From:       from,
			To:         to,
			Value:      common.NewU256(1),
		}},
	}}

	p, s := newTestPipeline(t, traces, blockHash, txHash)

	blocks := make(chan uint64, 1)
	blocks <- 1
	close(blocks)

	require.NoError(t, p.Run(context.Background(), blocks))

	ro, err := s.ROTx(context.Background())
	require.NoError(t, err)
	defer ro.Rollback()
	r := store.NewReader(ro)

	row, ok, err := r.MevBlock(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, row.Bundles, 1)
	require.Equal(t, types.MevSearcherTx, row.Bundles[0].Header.MevType)
	require.Equal(t, 1, row.Block.NumberMevBundles)

	stats, ok, err := r.SearcherEOA(from)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, stats.TotalBundles)
}

func TestPipelineRecordsFailedBlockOnMissingBlockInfo(t *testing.T) {
	txHash := common.Hash{0x33}
	blockHash := common.Hash{0x44}

	traces := []provider.TxTrace{{TxHash: txHash, TxIndex: 0, Frames: []classifier.Frame{{
		TxHash: txHash, From: common.Address{0x01}, To: common.Address{0x02}, Value: common.NewU256(0),
	}}}}

	p, s := newTestPipeline(t, traces, blockHash, txHash)

	blocks := make(chan uint64, 1)
	// block 2 has no BlockInfo row, so MetadataJoin.Assemble fails and
	// the block should land in failed_blocks at the PRICED stage.
	blocks <- 2
	close(blocks)

	require.NoError(t, p.Run(context.Background(), blocks))

	ro, err := s.ROTx(context.Background())
	require.NoError(t, err)
	defer ro.Rollback()
	r := store.NewReader(ro)

	failed, ok, err := r.FailedBlock(2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StagePriced, failed.Stage)
}

// TestPipelineRecordsFailedBlockOnProviderError scripts a provider double
// (rather than replaying a fixture) to assert the COLLECTING->failed_blocks
// path spec.md §4.7 requires: "any failure in COLLECTING ... aborts that
// block and records it in a failed_blocks table".
func TestPipelineRecordsFailedBlockOnProviderError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockProvider := providermock.NewMockTraceProvider(ctrl)

	blockHash := common.Hash{0x55}
	mockProvider.EXPECT().BlockHashForID(gomock.Any(), uint64(3)).Return(blockHash, true, nil)
	mockProvider.EXPECT().ReplayBlockTransactions(gomock.Any(), uint64(3)).
		Return(nil, errors.New("trace endpoint unavailable"))

	s := openTestStore(t)
	rw, err := s.RwTx(context.Background())
	require.NoError(t, err)
	w := store.NewWriter(rw)
	require.NoError(t, w.PutBlockInfo(3, store.BlockInfoRow{
		Header: types.BlockHeader{BlockNumber: 3, BlockHash: blockHash},
	}))
	require.NoError(t, rw.Commit())

	window := cexwindow.New(60)
	join := metadata.NewJoin(s, window, nil, nil, 0)
	t.Cleanup(join.Close)

	composer, err := inspect.NewComposer(fixedInspector{txHash: common.Hash{0x66}})
	require.NoError(t, err)

	deps := classifier.Deps{Tokens: fakeTokens{}, Pools: fakePools{}}
	metrics, _ := telemetry.New()

	p := New(Config{
		Store:      s,
		Classifier: classifier.New(deps, nil),
		Provider:   mockProvider,
		Join:       join,
		Composer:   composer,
		Metrics:    metrics,
		Log:        zap.NewNop(),
		MaxPending: 2,
	})

	blocks := make(chan uint64, 1)
	blocks <- 3
	close(blocks)
	require.NoError(t, p.Run(context.Background(), blocks))

	ro2, err := s.ROTx(context.Background())
	require.NoError(t, err)
	defer ro2.Rollback()
	failed, ok, err := store.NewReader(ro2).FailedBlock(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StageCollecting, failed.Stage)
}
