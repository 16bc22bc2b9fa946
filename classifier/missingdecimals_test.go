package classifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mev-core/brontes/common"
)

type stubFetcher struct {
	decimals uint8
	err      error
	calls    chan common.Address
}

func (s *stubFetcher) FetchDecimals(_ context.Context, addr common.Address) (uint8, error) {
	if s.calls != nil {
		s.calls <- addr
	}
	return s.decimals, s.err
}

func TestMissingDecimalsFillerResolvesDeferredAddress(t *testing.T) {
	calls := make(chan common.Address, 1)
	fetcher := &stubFetcher{decimals: 6, calls: calls}
	filler, err := NewMissingDecimalsFiller(fetcher, 16, 4, 1, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go filler.Run(ctx, 1)

	addr := common.Address{0x42}
	filler.Defer(addr)

	select {
	case got := <-calls:
		assert.Equal(t, addr, got)
	case <-time.After(time.Second):
		t.Fatal("fetcher was never invoked")
	}

	require.Eventually(t, func() bool {
		dec, ok := filler.CachedDecimals(addr)
		return ok && dec == 6
	}, time.Second, 5*time.Millisecond)
}

func TestMissingDecimalsFillerDedupesWithinLifetime(t *testing.T) {
	calls := make(chan common.Address, 4)
	fetcher := &stubFetcher{decimals: 18, calls: calls}
	filler, err := NewMissingDecimalsFiller(fetcher, 16, 4, 1, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go filler.Run(ctx, 1)

	addr := common.Address{0x07}
	filler.Defer(addr)
	<-calls

	require.Eventually(t, func() bool {
		_, ok := filler.CachedDecimals(addr)
		return ok
	}, time.Second, 5*time.Millisecond)

	// Deferring again after resolution is a no-op: seen is never cleared
	// on success, only on failure (so a fetch error allows a future retry).
	filler.Defer(addr)
	select {
	case <-calls:
		t.Fatal("expected no second fetch for an already-resolved address")
	case <-time.After(50 * time.Millisecond):
	}
}
