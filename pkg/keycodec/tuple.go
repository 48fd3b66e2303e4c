package keycodec

// Tuple is an ordered sequence of Values — the unit spec.md calls a Key.
type Tuple []Value

// KeyList is an ordered sequence of Tuples, packed together on the wire
// separated by a SEP byte.
type KeyList []Tuple

// Tuplize returns x unchanged if it is already a Tuple, or wraps it in a
// one-element Tuple otherwise. It never produces a KeyList: distinguishing
// a list-of-tuples from a scalar/tuple is the caller's job, same as
// spec.md §6 describes for the pack dispatch.
func Tuplize(x interface{}) Tuple {
	switch v := x.(type) {
	case Tuple:
		return v
	case Value:
		return Tuple{v}
	default:
		panic("keycodec: Tuplize requires a Tuple or Value")
	}
}

// encodeTuple writes every element of t in order, with no separator
// between them; the tuple's end is implicit at the end of the encoding.
func encodeTuple(w *Writer, t Tuple) error {
	for _, v := range t {
		if err := EncodeValue(w, v); err != nil {
			return err
		}
	}
	return nil
}

// Pack encodes prefix verbatim followed by x: a Tuple, a KeyList, or a bare
// Value treated as a one-element Tuple (spec.md §4.7).
func Pack(prefix []byte, x interface{}) ([]byte, error) {
	w := NewWriter(len(prefix) + 32)
	w.PutBytes(prefix)

	switch v := x.(type) {
	case KeyList:
		for i, t := range v {
			if i > 0 {
				w.PutByte(byte(KindSep))
			}
			if err := encodeTuple(w, t); err != nil {
				return nil, err
			}
		}
	case Tuple:
		if err := encodeTuple(w, v); err != nil {
			return nil, err
		}
	case Value:
		if err := EncodeValue(w, v); err != nil {
			return nil, err
		}
	default:
		return nil, &TypeError{Kind: "unrecognized pack input"}
	}

	return w.Finalize(), nil
}

// PackInt encodes prefix followed by a bare varint, no kind byte. v must
// be non-negative.
func PackInt(prefix []byte, v uint64) []byte {
	w := NewWriter(len(prefix) + 9)
	w.PutBytes(prefix)
	PutVarint(w, v)
	return w.Finalize()
}

// matchPrefix reports whether data begins with prefix, or an error if data
// is shorter than prefix.
func matchPrefix(prefix, data []byte) (rest []byte, matched bool, err error) {
	if len(data) < len(prefix) {
		return nil, false, &ValueError{PrefixLen: len(prefix), DataLen: len(data)}
	}
	for i := range prefix {
		if data[i] != prefix[i] {
			return nil, false, nil
		}
	}
	return data[len(prefix):], true, nil
}

// Unpack decodes one tuple from bytes after prefix, consuming elements
// until end of input or a SEP byte (SEP itself is not included in the
// result). It returns (nil, false, nil) if bytes does not begin with
// prefix — the "no match" sentinel of spec.md §6 — and a *ValueError if
// bytes is shorter than prefix.
func Unpack(prefix, data []byte) (Tuple, bool, error) {
	rest, ok, err := matchPrefix(prefix, data)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	r := NewReader(rest)
	t, err := decodeOneTuple(r)
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

// decodeOneTuple reads elements until end of input or SEP, which it
// consumes but does not append to the result.
func decodeOneTuple(r *Reader) (Tuple, error) {
	t := make(Tuple, 0, 4)
	for !r.Done() {
		v, isSep, err := DecodeValue(r)
		if err != nil {
			return nil, err
		}
		if isSep {
			break
		}
		t = append(t, v)
	}
	return t, nil
}

// UnpackMany decodes a full KeyList from bytes after prefix: tuples
// separated by SEP, repeated until end of input. It returns (nil, false,
// nil) on prefix mismatch like Unpack.
func UnpackMany(prefix, data []byte) (KeyList, bool, error) {
	rest, ok, err := matchPrefix(prefix, data)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	r := NewReader(rest)
	var list KeyList
	for {
		t, err := decodeOneTuple(r)
		if err != nil {
			return nil, false, err
		}
		list = append(list, t)
		if r.Done() {
			break
		}
	}
	return list, true, nil
}
