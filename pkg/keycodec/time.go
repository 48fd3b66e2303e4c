package keycodec

import "time"

// DateTime is the narrow adapter interface the time codec depends on,
// keeping it portable across calendar libraries (spec.md §9's "date-time
// library coupling" note). The storage layer and any language binding only
// need to decompose/compose through this struct, never through the stdlib
// time package directly inside the codec.
type DateTime struct {
	Year, Month, Day int
	Hour, Min, Sec   int
	Micro            int  // microseconds within the second, 0..999999
	OffsetSeconds    int  // UTC offset in seconds; only meaningful if HasOffset
	HasOffset        bool // false: fall back to the host's local offset
}

// FromTime decomposes a time.Time into a DateTime, using its own location's
// offset.
func FromTime(t time.Time) DateTime {
	_, offset := t.Zone()
	return DateTime{
		Year: t.Year(), Month: int(t.Month()), Day: t.Day(),
		Hour: t.Hour(), Min: t.Minute(), Sec: t.Second(),
		Micro:         t.Nanosecond() / 1000,
		OffsetSeconds: offset,
		HasOffset:     true,
	}
}

// offsetUnit is 15 minutes, the granularity of the packed offset field.
const offsetUnit = 15 * 60

// composite folds a DateTime into the signed millisecond-with-offset scalar
// described in spec.md §4.5.
func composite(dt DateTime) int64 {
	offsetSeconds := dt.OffsetSeconds
	if !dt.HasOffset {
		_, offsetSeconds = time.Now().Zone()
	}

	ts := time.Date(dt.Year, time.Month(dt.Month), dt.Day, dt.Hour, dt.Min, dt.Sec, 0, time.UTC).Unix()
	ts = ts*1000 + int64(dt.Micro/1000)

	offsetBits := 64 + offsetSeconds/offsetUnit
	if offsetBits < 0 {
		offsetBits = 0
	} else if offsetBits > 127 {
		offsetBits = 127
	}

	return ts<<7 | int64(offsetBits)
}

// decomposite is the inverse of composite.
func decomposite(ts int64) DateTime {
	offsetBits := ts & 0x7F
	millis := ts >> 7

	offsetSeconds := (int(offsetBits) - 64) * offsetUnit

	sec := millis / 1000
	msRemainder := millis % 1000
	if msRemainder < 0 {
		msRemainder += 1000
		sec--
	}

	// composite built ts from the fields as if they were UTC (time.Date(...,
	// time.UTC).Unix()) and stashed the real offset separately, so the
	// inverse must read the fields back in UTC too and attach the offset
	// only as metadata, not apply it to the wall clock.
	t := time.Unix(sec, msRemainder*int64(time.Millisecond)).UTC()
	return DateTime{
		Year: t.Year(), Month: int(t.Month()), Day: t.Day(),
		Hour: t.Hour(), Min: t.Minute(), Sec: t.Second(),
		Micro:         msRemainder * 1000,
		OffsetSeconds: offsetSeconds,
		HasOffset:     true,
	}
}

// PutTime appends the composite time encoding of dt: kind-free, it writes
// only the sign-chosen varint payload. Callers needing the NEG_TIME/TIME
// kind distinction should use the Value codec instead; PutTime is exposed
// directly for callers that already know their sign convention.
func PutTime(w *Writer, dt DateTime) {
	ts := composite(dt)
	if ts < 0 {
		PutVarint(w, uint64(-ts))
	} else {
		PutVarint(w, uint64(ts))
	}
}

// GetTime decodes a composite time payload back into a DateTime. negative
// indicates whether the value was stored under the NEG_TIME kind.
func GetTime(r *Reader, negative bool) (DateTime, error) {
	mag, err := GetVarint(r)
	if err != nil {
		return DateTime{}, err
	}
	ts := int64(mag)
	if negative {
		ts = -ts
	}
	return decomposite(ts), nil
}

// ToTime converts a decoded DateTime back into a time.Time in its fixed
// UTC-offset location. Sub-millisecond precision is always zero: the wire
// format truncates to milliseconds (spec.md §4.5 step 2).
func (dt DateTime) ToTime() time.Time {
	loc := time.FixedZone("", dt.OffsetSeconds)
	return time.Date(dt.Year, time.Month(dt.Month), dt.Day, dt.Hour, dt.Min, dt.Sec, dt.Micro*1000, loc)
}
