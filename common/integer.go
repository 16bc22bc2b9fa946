// Package common holds the fixed-width identities shared by every package:
// Address, Hash and U256, plus the small integer helpers that operate on
// them.
package common

import (
	"encoding/hex"
	"fmt"
	"math/bits"
	"strconv"

	"github.com/holiman/uint256"
)

const (
	AddressLength = 20
	HashLength    = 32
)

// Address is a 20-byte account/contract identity.
type Address [AddressLength]byte

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) IsZero() bool { return a == Address{} }

// Less gives Address its canonical byte-lexicographic order, used by
// Pair.Ordered() and everywhere a deterministic tie-break is needed.
func (a Address) Less(b Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// Hash is a 32-byte identity (tx hash, block hash, ...).
type Hash [HashLength]byte

func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) IsZero() bool { return h == Hash{} }

// Less gives Hash a canonical byte-lexicographic order, used wherever a
// set of hashes needs deterministic ordering (e.g. composer victim-set
// comparison in inspect/composer.go).
func (h Hash) Less(o Hash) bool {
	for i := range h {
		if h[i] != o[i] {
			return h[i] < o[i]
		}
	}
	return false
}

func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// U256 is the 256-bit unsigned integer used for raw on-chain amounts,
// reserves and prices before they are scaled to a Rational.
type U256 = uint256.Int

func NewU256(v uint64) *U256 { return uint256.NewInt(v) }

// ParseUint64 parses s as an integer in decimal or hexadecimal syntax.
// Leading zeros are accepted. The empty string parses as zero.
func ParseUint64(s string) (uint64, bool) {
	if s == "" {
		return 0, true
	}
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		return v, err == nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return v, err == nil
}

// MustParseUint64 parses s as an integer and panics if the string is invalid.
func MustParseUint64(s string) uint64 {
	v, ok := ParseUint64(s)
	if !ok {
		panic("invalid unsigned 64 bit integer: " + s)
	}
	return v
}

// AbsoluteDifference returns the absolute value of x-y in uint64 format.
func AbsoluteDifference(x, y uint64) uint64 {
	if x > y {
		return x - y
	}
	return y - x
}

// SafeMul returns x*y and whether the multiplication overflowed.
func SafeMul(x, y uint64) (uint64, bool) {
	hi, lo := bits.Mul64(x, y)
	return lo, hi != 0
}

// SafeAdd returns x+y and whether the addition overflowed.
func SafeAdd(x, y uint64) (uint64, bool) {
	sum, carryOut := bits.Add64(x, y, 0)
	return sum, carryOut != 0
}

// CeilDiv divides x by y, rounding up. Returns 0 for y == 0.
func CeilDiv(x, y int) int {
	if y == 0 {
		return 0
	}
	return (x + y - 1) / y
}

// BigEndianBlockKey encodes a block number as the fixed 8-byte big-endian
// key used by every per-block Store table (spec.md §4.1: "block numbers =
// 8 bytes big-endian").
func BigEndianBlockKey(block uint64) [8]byte {
	var k [8]byte
	for i := 0; i < 8; i++ {
		k[7-i] = byte(block >> (8 * i))
	}
	return k
}

func BlockKeyToUint64(k []byte) (uint64, error) {
	if len(k) != 8 {
		return 0, fmt.Errorf("block key must be 8 bytes, got %d", len(k))
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(k[i])
	}
	return v, nil
}
