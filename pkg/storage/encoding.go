// ABOUTME: Order-preserving composite key encoding for the storage layer
// ABOUTME: Thin wrapper over pkg/keycodec's tuple codec

package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/nainya/lexkey/pkg/keycodec"
)

// Value is a single element of a composite key, as encoded by keycodec.
type Value = keycodec.Value

// NewBytesValue creates a BLOB value.
func NewBytesValue(data []byte) Value { return keycodec.BlobValue(data) }

// NewInt64Value creates an INTEGER/NEG_INTEGER value.
func NewInt64Value(i int64) Value { return keycodec.IntValue(i) }

// NewTextValue creates a TEXT value.
func NewTextValue(s string) Value { return keycodec.TextValue(s) }

// EncodeValues encodes a sequence of values as an order-preserving tuple,
// with no namespace prefix.
func EncodeValues(vals []Value) []byte {
	b, err := keycodec.Pack(nil, keycodec.Tuple(vals))
	if err != nil {
		// Every Value constructed through this package's helpers produces a
		// recognized Kind; Pack can only fail on unrecognized kinds.
		panic(fmt.Sprintf("storage: encode values: %v", err))
	}
	return b
}

// DecodeValues decodes a tuple previously written by EncodeValues.
func DecodeValues(data []byte) ([]Value, error) {
	t, _, err := keycodec.Unpack(nil, data)
	if err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	return []Value(t), nil
}

// EncodeKey encodes a composite key: a 4-byte big-endian namespace prefix
// followed by the order-preserving encoded values.
func EncodeKey(prefix uint32, vals []Value) []byte {
	var pfx [4]byte
	binary.BigEndian.PutUint32(pfx[:], prefix)
	b, err := keycodec.Pack(pfx[:], keycodec.Tuple(vals))
	if err != nil {
		panic(fmt.Sprintf("storage: encode key: %v", err))
	}
	return b
}

// Comparison operators for partial-key range scan boundaries.
const (
	CMP_GE = 1 // >=
	CMP_GT = 2 // >
	CMP_LT = 3 // <
	CMP_LE = 4 // <=
)

// EncodeKeyPartial encodes a partial key for range queries. Missing
// trailing columns are encoded as +/- infinity depending on the comparison
// operator: CMP_GT and CMP_LE need an unreachable +infinity suffix so the
// partial key sorts after every key sharing its prefix; CMP_LT and CMP_GE
// use -infinity, which is simply the empty suffix.
func EncodeKeyPartial(prefix uint32, vals []Value, cmp int) []byte {
	out := EncodeKey(prefix, vals)
	if cmp == CMP_GT || cmp == CMP_LE {
		out = append(out, 0xFF)
	}
	return out
}

// ExtractPrefix extracts the namespace prefix from an encoded key.
func ExtractPrefix(key []byte) uint32 {
	if len(key) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(key[:4])
}

// ExtractValues extracts and decodes the values from an encoded key,
// skipping its namespace prefix.
func ExtractValues(key []byte) ([]Value, error) {
	if len(key) < 4 {
		return nil, fmt.Errorf("key too short")
	}
	return DecodeValues(key[4:])
}
