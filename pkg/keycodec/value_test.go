// ABOUTME: Tests for the tagged value codec (kind dispatch, roundtrip, ordering)

package keycodec

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindBool:
		return a.Bool == b.Bool
	case KindInt, KindNegInt:
		return a.Int == b.Int
	case KindBlob:
		return bytes.Equal(a.Blob, b.Blob)
	case KindText:
		return a.Text == b.Text
	case KindUUID:
		return a.UUID == b.UUID
	case KindTime, KindNegTime:
		return composite(a.Time) == composite(b.Time)
	default:
		return true
	}
}

func encodeValue(t *testing.T, v Value) []byte {
	t.Helper()
	w := NewWriter(16)
	if err := EncodeValue(w, v); err != nil {
		t.Fatalf("EncodeValue(%+v): %v", v, err)
	}
	return w.Finalize()
}

func TestValueConcreteScenarios(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want []byte
	}{
		{"null", Null(), []byte{0x0F}},
		{"bool-true", BoolValue(true), []byte{0x1E, 0x01}},
		{"empty-text", TextValue(""), []byte{0x32, 0x00}},
		{"int-1", IntValue(1), []byte{0x15, 0x01}},
		{"int-2", IntValue(2), []byte{0x15, 0x02}},
	}
	for _, c := range cases {
		got := encodeValue(t, c.v)
		if !bytes.Equal(got, c.want) {
			t.Errorf("%s: got % x, want % x", c.name, got, c.want)
		}
	}
}

func TestValueRoundTrip(t *testing.T) {
	u := uuid.New()
	cases := []Value{
		Null(),
		BoolValue(true),
		BoolValue(false),
		IntValue(0),
		IntValue(1),
		IntValue(-1),
		IntValue(-1000),
		IntValue(1 << 40),
		BlobValue([]byte{0x00, 0xFF, 0x10}),
		TextValue(""),
		TextValue("hello"),
		TextValue("unicode: é中"),
		UUIDFromGoogle(u),
	}
	for _, v := range cases {
		w := NewWriter(24)
		if err := EncodeValue(w, v); err != nil {
			t.Fatalf("encode %+v: %v", v, err)
		}
		r := NewReader(w.Finalize())
		got, isSep, err := DecodeValue(r)
		if err != nil {
			t.Fatalf("decode %+v: %v", v, err)
		}
		if isSep {
			t.Fatalf("decode %+v: unexpectedly reported SEP", v)
		}
		if !valuesEqual(got, v) {
			t.Errorf("round trip %+v: got %+v", v, got)
		}
		if !r.Done() {
			t.Errorf("round trip %+v: leftover bytes", v)
		}
	}
}

func TestValueSepSentinel(t *testing.T) {
	w := NewWriter(1)
	w.PutByte(byte(KindSep))
	r := NewReader(w.Finalize())
	_, isSep, err := DecodeValue(r)
	if err != nil {
		t.Fatalf("decode sep: %v", err)
	}
	if !isSep {
		t.Fatal("expected isSep=true")
	}
}

func TestValueBadTag(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, _, err := DecodeValue(r)
	if err == nil {
		t.Fatal("expected bad-tag error")
	}
	fe, ok := err.(*FormatError)
	if !ok {
		t.Fatalf("expected *FormatError, got %T", err)
	}
	if fe.Tag != 0x01 {
		t.Errorf("expected offending tag 0x01, got 0x%02x", fe.Tag)
	}
}

func TestValueBadUTF8(t *testing.T) {
	w := NewWriter(8)
	w.PutByte(byte(KindText))
	PutString(w, []byte{0xFF, 0xFE}) // not valid UTF-8
	r := NewReader(w.Finalize())
	_, _, err := DecodeValue(r)
	if err == nil {
		t.Fatal("expected invalid UTF-8 error")
	}
}

func TestValueBadUUIDLength(t *testing.T) {
	w := NewWriter(8)
	w.PutByte(byte(KindUUID))
	PutString(w, []byte{0x01, 0x02, 0x03})
	r := NewReader(w.Finalize())
	_, _, err := DecodeValue(r)
	if err == nil {
		t.Fatal("expected invalid UUID length error")
	}
}

func TestValueUnsupportedTypeOnEncode(t *testing.T) {
	v := Value{Kind: Kind(0x99)}
	w := NewWriter(8)
	err := EncodeValue(w, v)
	if err == nil {
		t.Fatal("expected type error")
	}
	if _, ok := err.(*TypeError); !ok {
		t.Fatalf("expected *TypeError, got %T", err)
	}
}

func TestValueKindOrdering(t *testing.T) {
	// Cross-kind ordering must follow the frozen tag byte assignment:
	// NULL < NEG_INTEGER < INTEGER < BOOL < BLOB < TEXT < NEG_TIME < TIME < UUID < SEP.
	ordered := []Value{
		Null(),
		{Kind: KindNegInt, Int: -5},
		IntValue(5),
		BoolValue(true),
		BlobValue([]byte("x")),
		TextValue("x"),
	}
	for i := 0; i < len(ordered)-1; i++ {
		a, b := encodeValue(t, ordered[i]), encodeValue(t, ordered[i+1])
		if bytes.Compare(a, b) >= 0 {
			t.Errorf("kind %d should sort before kind %d: % x vs % x",
				ordered[i].Kind, ordered[i+1].Kind, a, b)
		}
	}
}

func TestValueNegIntOrderingQuirk(t *testing.T) {
	// Documented quirk (spec.md §4.3): within NEG_INTEGER, -1 sorts BEFORE
	// -2, i.e. reverse of numeric order, because the encoder stores the
	// absolute value without flipping it.
	negOne := encodeValue(t, IntValue(-1))
	negTwo := encodeValue(t, IntValue(-2))
	if bytes.Compare(negOne, negTwo) >= 0 {
		t.Fatalf("expected encode(-1) < encode(-2) under the documented quirk, got % x vs % x", negOne, negTwo)
	}
}
