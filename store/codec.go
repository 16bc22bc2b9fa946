// Package store implements the compressed typed KV layer spec.md §4.1
// describes: Table[K,V] descriptions over a kv.DB, ZSTD-compressed
// values, range/point reads via cursors, and init_table population from a
// ClickhouseHandle.
package store

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// codecVersion is the on-disk header's version byte (spec.md §4.1: "an
// implementation MAY pick any codec provided ... the on-disk header
// identifies the codec and version"). Bumping it is safe: Decompress
// switches on the byte it reads, never assumes the current version.
const codecVersion = 1

// codecZSTD is the only codec tag this implementation emits; the header
// still carries it explicitly so a future codec can coexist with values
// written by an older binary.
const codecZSTD = 1

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("store: zstd encoder init: " + err.Error())
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("store: zstd decoder init: " + err.Error())
	}
}

// Compress prepends a 2-byte (codec, version) header to the ZSTD frame of
// raw. Codec implementations are free to choose any serialization for raw
// itself — this module uses encoding/json per Table's Marshal function
// (reader.go's jsonEncode) — zstd only ever sees already-serialized bytes.
func Compress(raw []byte) []byte {
	out := make([]byte, 2, 2+len(raw))
	out[0] = codecZSTD
	out[1] = codecVersion
	return encoder.EncodeAll(raw, out)
}

// Decompress strips and validates the header, returning the original
// serialized bytes. Round-trip law (spec.md §8): for any value v,
// Decompress(Compress(v)) == v once the caller's own Marshal/Unmarshal is
// also round-trip safe.
func Decompress(compressed []byte) ([]byte, error) {
	if len(compressed) < 2 {
		return nil, fmt.Errorf("store: compressed value too short (%d bytes)", len(compressed))
	}
	if compressed[0] != codecZSTD {
		return nil, fmt.Errorf("store: unknown codec tag %d", compressed[0])
	}
	if compressed[1] != codecVersion {
		return nil, fmt.Errorf("store: unsupported codec version %d (have %d)", compressed[1], codecVersion)
	}
	raw, err := decoder.DecodeAll(compressed[2:], nil)
	if err != nil {
		return nil, fmt.Errorf("store: zstd decode: %w", err)
	}
	return raw, nil
}

// encodeUvarintKey encodes v as an unsigned varint key component. No
// table in this package uses it; InitializedState is keyed by table name.
func encodeUvarintKey(v uint64) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, v)
	return buf[:n]
}
