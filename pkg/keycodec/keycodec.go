package keycodec

// kindOrder gives the cross-kind comparison order frozen by FormatVersion
// 1: it must agree with the numeric order of the Kind byte values so that
// CompareTuples agrees with bytes.Compare on the corresponding encodings
// (spec.md invariant 3).
func kindOrder(k Kind) int { return int(k) }

// compareValues orders two Values the way their encodings would sort.
// Within NEG_INTEGER, spec.md §4.3 documents that the straightforward
// absolute-value encoding sorts magnitudes in *reverse* numeric order; this
// function replicates that quirk rather than "fixing" it, to stay
// consistent with bytes.Compare on the wire form.
func compareValues(a, b Value) int {
	if a.Kind != b.Kind {
		ao, bo := kindOrder(a.Kind), kindOrder(b.Kind)
		switch {
		case ao < bo:
			return -1
		case ao > bo:
			return 1
		default:
			return 0
		}
	}

	switch a.Kind {
	case KindNull, KindSep:
		return 0

	case KindBool:
		switch {
		case a.Bool == b.Bool:
			return 0
		case !a.Bool:
			return -1
		default:
			return 1
		}

	case KindInt:
		return cmpInt64(a.Int, b.Int)

	case KindNegInt:
		// Reverse of numeric order: larger magnitude (more negative)
		// sorts after smaller magnitude, matching the unfixed encoder.
		return cmpInt64(-a.Int, -b.Int)

	case KindBlob:
		return cmpBytes(a.Blob, b.Blob)

	case KindText:
		return cmpBytes([]byte(a.Text), []byte(b.Text))

	case KindUUID:
		return cmpBytes(a.UUID[:], b.UUID[:])

	case KindTime:
		return cmpInt64(composite(a.Time), composite(b.Time))

	case KindNegTime:
		return cmpInt64(-composite(a.Time), -composite(b.Time))

	default:
		return 0
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// CompareTuples orders two decoded Tuples the way bytes.Compare would
// order their encodings: a shorter tuple is less than any longer tuple it
// is a prefix of; otherwise the first differing element decides order per
// its kind (spec.md §3, "Key" comparison semantics).
func CompareTuples(a, b Tuple) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
