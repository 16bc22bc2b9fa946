package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/mev-core/brontes/cexwindow"
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/store"
	"github.com/mev-core/brontes/types"
)

type fakeRelay struct {
	rec RelayRecord
	ok  bool
}

func (f fakeRelay) RelayRecord(context.Context, uint64) (RelayRecord, bool, error) {
	return f.rec, f.ok, nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestJoinPrefersRelayRecordOverCoinbaseFallback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rw, err := s.RwTx(ctx)
	require.NoError(t, err)
	w := store.NewWriter(rw)
	require.NoError(t, w.PutBlockInfo(100, store.BlockInfoRow{
		Header: types.BlockHeader{BlockNumber: 100, Timestamp: 1000},
	}))
	require.NoError(t, rw.Commit())

	window := cexwindow.New(60)
	feeAddr := common.Address{0xAB}
	relay := fakeRelay{
		rec: RelayRecord{ProposerFeeRecipient: feeAddr, ProposerMevReward: *uint256.NewInt(42), P2PTimestamp: 999},
		ok:  true,
	}

	j := NewJoin(s, window, relay, nil, time.Minute)
	defer j.Close()

	meta, err := j.Assemble(ctx, 100, nil)
	require.NoError(t, err)
	require.NotNil(t, meta.ProposerFeeRecipient)
	require.Equal(t, feeAddr, *meta.ProposerFeeRecipient)
	require.NotNil(t, meta.ProposerMevReward)
	require.Equal(t, uint64(42), meta.ProposerMevReward.Uint64())
}

func TestJoinErrorsOnMissingBlockInfo(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	j := NewJoin(s, cexwindow.New(60), nil, nil, time.Minute)
	defer j.Close()

	_, err := j.Assemble(ctx, 999, nil)
	require.Error(t, err)
}
