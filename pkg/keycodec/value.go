package keycodec

import (
	"unicode/utf8"

	"github.com/google/uuid"
)

// Kind identifies the runtime variant of a Value, tagged on the wire with
// a single byte. The numeric assignments are frozen for FormatVersion 1
// (spec.md §3): they must be chosen once and never changed, since any two
// kinds K1 < K2 must order correctly by tag byte across mixed tuples.
type Kind byte

const (
	KindNull    Kind = 0x0F
	KindNegInt  Kind = 0x14
	KindInt     Kind = 0x15
	KindBool    Kind = 0x1E
	KindBlob    Kind = 0x28
	KindText    Kind = 0x32
	KindNegTime Kind = 0x3C
	KindTime    Kind = 0x3D
	KindUUID    Kind = 0x5A
	KindSep     Kind = 0x66
)

// Value is the sum type the codec transports: exactly one of its variants
// is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Bool bool
	Int  int64    // INTEGER / NEG_INTEGER payload
	Blob []byte   // BLOB payload
	Text string   // TEXT payload
	Time DateTime // TIME / NEG_TIME payload
	UUID [16]byte // UUID payload
}

// Null returns the NULL element.
func Null() Value { return Value{Kind: KindNull} }

// BoolValue returns a BOOL element.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IntValue returns an INTEGER or NEG_INTEGER element depending on sign.
func IntValue(i int64) Value {
	if i < 0 {
		return Value{Kind: KindNegInt, Int: i}
	}
	return Value{Kind: KindInt, Int: i}
}

// BlobValue returns a BLOB element wrapping raw bytes.
func BlobValue(b []byte) Value { return Value{Kind: KindBlob, Blob: b} }

// TextValue returns a TEXT element wrapping a UTF-8 string.
func TextValue(s string) Value { return Value{Kind: KindText, Text: s} }

// TimeValue returns a TIME or NEG_TIME element depending on the sign of
// the composite scalar the DateTime folds to.
func TimeValue(dt DateTime) Value {
	if composite(dt) < 0 {
		return Value{Kind: KindNegTime, Time: dt}
	}
	return Value{Kind: KindTime, Time: dt}
}

// UUIDValue returns a UUID element from raw 16-byte form.
func UUIDValue(b [16]byte) Value { return Value{Kind: KindUUID, UUID: b} }

// UUIDFromGoogle converts a google/uuid.UUID into a UUID Value.
func UUIDFromGoogle(u uuid.UUID) Value { return UUIDValue([16]byte(u)) }

// Google converts a UUID Value back into a google/uuid.UUID.
func (v Value) Google() uuid.UUID { return uuid.UUID(v.UUID) }

// sep is a SEP-kind Value. Pack writes the KindSep byte directly at tuple
// boundaries inside a list and does not read sep.
var sep = Value{Kind: KindSep}

// EncodeValue writes one tagged element: the kind byte followed by its
// payload (if any). The Value codec is responsible for its own tag; no
// kind byte is written by the caller before delegation.
func EncodeValue(w *Writer, v Value) error {
	w.PutByte(byte(v.Kind))

	switch v.Kind {
	case KindNull, KindSep:
		// No payload.

	case KindBool:
		if v.Bool {
			PutVarint(w, 1)
		} else {
			PutVarint(w, 0)
		}

	case KindNegInt:
		PutVarint(w, uint64(-v.Int))

	case KindInt:
		PutVarint(w, uint64(v.Int))

	case KindBlob:
		PutString(w, v.Blob)

	case KindText:
		PutString(w, []byte(v.Text))

	case KindUUID:
		PutString(w, v.UUID[:])

	case KindNegTime:
		PutVarint(w, uint64(-composite(v.Time)))

	case KindTime:
		PutVarint(w, uint64(composite(v.Time)))

	default:
		return &TypeError{Kind: kindName(v.Kind)}
	}
	return nil
}

// DecodeValue reads one tagged element from r. It returns (Value{}, true,
// nil) when the next byte is SEP so callers can treat SEP as a boundary
// marker rather than a decoded element, matching spec.md §4.7's tuple
// framing ("SEP is not included in the tuple").
func DecodeValue(r *Reader) (v Value, isSep bool, err error) {
	start := r.Pos()
	tag, ok := r.GetByte()
	if !ok {
		return Value{}, false, errTruncated(1, start, 0)
	}

	switch Kind(tag) {
	case KindSep:
		return Value{}, true, nil

	case KindNull:
		return Null(), false, nil

	case KindBool:
		n, err := GetVarint(r)
		if err != nil {
			return Value{}, false, err
		}
		return BoolValue(n != 0), false, nil

	case KindNegInt:
		n, err := GetVarint(r)
		if err != nil {
			return Value{}, false, err
		}
		return Value{Kind: KindNegInt, Int: -int64(n)}, false, nil

	case KindInt:
		n, err := GetVarint(r)
		if err != nil {
			return Value{}, false, err
		}
		return Value{Kind: KindInt, Int: int64(n)}, false, nil

	case KindBlob:
		b, err := GetString(r)
		if err != nil {
			return Value{}, false, err
		}
		return BlobValue(b), false, nil

	case KindText:
		b, err := GetString(r)
		if err != nil {
			return Value{}, false, err
		}
		if !utf8.Valid(b) {
			return Value{}, false, &FormatError{Err: ErrBadUTF8, Position: start}
		}
		return TextValue(string(b)), false, nil

	case KindUUID:
		b, err := GetString(r)
		if err != nil {
			return Value{}, false, err
		}
		if len(b) != 16 {
			return Value{}, false, &FormatError{Err: ErrBadUUID, Position: start}
		}
		var out [16]byte
		copy(out[:], b)
		return UUIDValue(out), false, nil

	case KindNegTime:
		dt, err := GetTime(r, true)
		if err != nil {
			return Value{}, false, err
		}
		return Value{Kind: KindNegTime, Time: dt}, false, nil

	case KindTime:
		dt, err := GetTime(r, false)
		if err != nil {
			return Value{}, false, err
		}
		return Value{Kind: KindTime, Time: dt}, false, nil

	default:
		return Value{}, false, errBadTag(tag, start)
	}
}

func kindName(k Kind) string {
	switch k {
	case KindNull:
		return "null"
	case KindNegInt, KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindBlob:
		return "blob"
	case KindText:
		return "text"
	case KindNegTime, KindTime:
		return "time"
	case KindUUID:
		return "uuid"
	case KindSep:
		return "sep"
	default:
		return "unknown"
	}
}
