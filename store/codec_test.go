package store

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestCompressDecompressRoundTripLaw checks spec.md §8 "Store round-trip"
// at the codec layer directly: for arbitrary byte slices (standing in for
// a Table's already-Marshal'ed value), Decompress(Compress(v)) == v.
func TestCompressDecompressRoundTripLaw(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfN(rapid.Byte(), 0, 4096).Draw(t, "raw")

		compressed := Compress(raw)
		got, err := Decompress(compressed)
		require.NoError(t, err)
		require.Equal(t, raw, got)
	})
}

func TestDecompressRejectsUnknownCodec(t *testing.T) {
	_, err := Decompress([]byte{0xFF, codecVersion, 1, 2, 3})
	require.Error(t, err)
}

func TestDecompressRejectsUnsupportedVersion(t *testing.T) {
	_, err := Decompress([]byte{codecZSTD, 0xFF, 1, 2, 3})
	require.Error(t, err)
}

func TestDecompressRejectsTruncatedHeader(t *testing.T) {
	_, err := Decompress([]byte{codecZSTD})
	require.Error(t, err)
}
