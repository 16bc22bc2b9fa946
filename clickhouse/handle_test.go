package clickhouse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceTablesCoverEveryPersistedTableOrHasNoSource(t *testing.T) {
	// Every entry must have a non-empty ClickHouse table and at least one
	// key column, since FetchRange would otherwise build a malformed query.
	for name, src := range sourceTables {
		require.NotEmptyf(t, src.chTable, "table %s missing chTable", name)
		require.NotEmptyf(t, src.keyCols, "table %s missing keyCols", name)
		require.NotEmptyf(t, src.valueCol, "table %s missing valueCol", name)
	}
}

func TestEncodeBigEndianUint64RoundTripsOrdering(t *testing.T) {
	a := encodeBigEndianUint64(10)
	b := encodeBigEndianUint64(11)
	require.Less(t, string(a), string(b))
}

func TestColumnList(t *testing.T) {
	require.Equal(t, "block_number", columnList([]string{"block_number"}))
	require.Equal(t, "block_number, pair", columnList([]string{"block_number", "pair"}))
}
