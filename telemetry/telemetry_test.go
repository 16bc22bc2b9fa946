package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveStageRecordsHistogram(t *testing.T) {
	m, _ := New()
	m.ObserveStage("COLLECTING", time.Now().Add(-10*time.Millisecond))

	count := testutil.CollectAndCount(m.BlockStageSeconds)
	require.Equal(t, 1, count)
}

func TestNewDoesNotPanicOnDoubleConstruction(t *testing.T) {
	require.NotPanics(t, func() {
		New()
		New()
	})
}
