package keycodec

// EncodeOffsets writes a delta-compressed offset table: a varint count
// followed by count varint deltas, the first delta measured from 0. It is
// the inverse of DecodeOffsets and is owned by this module because the
// surrounding storage layer (package storage) both produces and consumes
// these tables, unlike the rest of the codec where only a decoder is
// required (spec.md §4.8, §9).
//
// positions must start with 0 (it is the "absolute-position list" that
// DecodeOffsets itself returns); EncodeOffsets panics otherwise, since
// that indicates the caller built the list wrong, not malformed input.
func EncodeOffsets(positions []uint64) []byte {
	if len(positions) == 0 || positions[0] != 0 {
		panic("keycodec: EncodeOffsets requires a leading 0 position")
	}

	w := NewWriter(4 * len(positions))
	count := uint64(len(positions) - 1)
	PutVarint(w, count)

	for i := uint64(1); i <= count; i++ {
		PutVarint(w, positions[i]-positions[i-1])
	}
	return w.Finalize()
}

// DecodeOffsets decodes a delta-encoded sequence of integer positions,
// per spec.md §4.8: a varint count followed by count varint deltas (the
// first delta measured from 0), into an absolute-position list of
// count+1 entries, [0, d0, d0+d1, ...]. It also returns the number of
// bytes consumed so the caller can locate the payload region that
// follows the table.
func DecodeOffsets(data []byte) ([]uint64, int, error) {
	r := NewReader(data)

	count, err := GetVarint(r)
	if err != nil {
		return nil, 0, err
	}

	positions := make([]uint64, 0, count+1)
	abs := uint64(0)
	positions = append(positions, abs)

	for i := uint64(0); i < count; i++ {
		delta, err := GetVarint(r)
		if err != nil {
			return nil, 0, err
		}
		abs += delta
		positions = append(positions, abs)
	}

	return positions, r.Pos(), nil
}
