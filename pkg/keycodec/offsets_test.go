// ABOUTME: Tests for the delta-encoded offset table codec

package keycodec

import (
	"reflect"
	"testing"
)

func TestOffsetsRoundTrip(t *testing.T) {
	cases := [][]uint64{
		{0},
		{0, 10},
		{0, 10, 20, 2000, 2001, 1 << 20},
		{0, 0, 0, 5}, // repeated positions are legal (zero-length spans)
	}
	for _, positions := range cases {
		enc := EncodeOffsets(positions)
		got, n, err := DecodeOffsets(enc)
		if err != nil {
			t.Fatalf("DecodeOffsets(%v): %v", positions, err)
		}
		if n != len(enc) {
			t.Errorf("DecodeOffsets(%v): consumed %d, want %d", positions, n, len(enc))
		}
		if !reflect.DeepEqual(got, positions) {
			t.Errorf("DecodeOffsets(EncodeOffsets(%v)) = %v", positions, got)
		}
	}
}

func TestOffsetsConsumedBytesWithTrailingPayload(t *testing.T) {
	positions := []uint64{0, 5, 9}
	table := EncodeOffsets(positions)
	payload := []byte("trailing payload bytes")
	data := append(append([]byte{}, table...), payload...)

	got, n, err := DecodeOffsets(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, positions) {
		t.Errorf("got %v, want %v", got, positions)
	}
	if !reflect.DeepEqual(data[n:], payload) {
		t.Errorf("expected to locate payload after %d bytes, got %v", n, data[n:])
	}
}

func TestOffsetsPanicsWithoutLeadingZero(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for positions not starting at 0")
		}
	}()
	EncodeOffsets([]uint64{5, 10})
}

func TestOffsetsZeroCount(t *testing.T) {
	enc := EncodeOffsets([]uint64{0})
	if len(enc) != 1 || enc[0] != 0x00 {
		t.Errorf("single-position table should encode as a single zero varint, got % x", enc)
	}
	got, n, err := DecodeOffsets(enc)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(got) != 1 || got[0] != 0 {
		t.Errorf("got %v consumed %d", got, n)
	}
}
