package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/nainya/lexkey/pkg/keycodec"
)

// OpType represents the type of WAL operation
type OpType byte

const (
	// OpInsert represents a key-value insertion
	OpInsert OpType = 1

	// OpDelete represents a key deletion
	OpDelete OpType = 2

	// OpCommit represents a transaction commit marker
	OpCommit OpType = 3

	// OpCheckpoint represents a checkpoint marker
	OpCheckpoint OpType = 4
)

const (
	// fixedHeaderSize is the size of the fixed-width portion of an entry.
	// Layout: LSN(8) + TxnID(8) + OpType(1) + Compressed flag(1) + Reserved(6) + Timestamp(8)
	fixedHeaderSize = 32
)

// Entry represents a single WAL entry
type Entry struct {
	LSN       uint64    // Log Sequence Number (monotonically increasing)
	TxnID     uint64    // Transaction ID
	OpType    OpType    // Operation type
	Key       []byte    // Key (for INSERT/DELETE)
	Value     []byte    // Value (for INSERT only)
	Timestamp time.Time // Entry timestamp

	// ValueCompressed marks Value as zstd-compressed (see WAL.Compress).
	// The WAL layer, not Entry itself, is responsible for compressing and
	// decompressing around Encode/DecodeEntry.
	ValueCompressed bool
}

// Encode serializes the entry to bytes with CRC32 checksum.
// Format: [fixed header(32)] [KeyLen varint] [Key] [ValLen varint] [Value] [CRC32(4)]
// KeyLen/ValLen use the same order-preserving varint as pkg/keycodec, which
// keeps small entries (the common case: short primary keys, small values)
// down to one length byte each instead of the fixed 4-byte fields a naive
// binary.LittleEndian header would spend on them.
func (e *Entry) Encode() []byte {
	w := keycodec.NewWriter(fixedHeaderSize + len(e.Key) + len(e.Value) + 20)

	var fixed [fixedHeaderSize]byte
	binary.LittleEndian.PutUint64(fixed[0:8], e.LSN)
	binary.LittleEndian.PutUint64(fixed[8:16], e.TxnID)
	fixed[16] = byte(e.OpType)
	if e.ValueCompressed {
		fixed[17] = 1
	}
	// bytes 18-23 are reserved (padding)
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(e.Timestamp.Unix()))
	w.PutBytes(fixed[:])

	keycodec.PutVarint(w, uint64(len(e.Key)))
	w.PutBytes(e.Key)
	keycodec.PutVarint(w, uint64(len(e.Value)))
	w.PutBytes(e.Value)

	buf := w.Finalize()

	crc := crc32.ChecksumIEEE(buf)
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)
	return append(buf, crcBuf[:]...)
}

// DecodeEntry deserializes a WAL entry from bytes
func DecodeEntry(data []byte) (*Entry, error) {
	if len(data) < fixedHeaderSize+4 {
		return nil, ErrTruncated
	}

	dataLen := len(data)
	storedCRC := binary.LittleEndian.Uint32(data[dataLen-4:])
	computedCRC := crc32.ChecksumIEEE(data[:dataLen-4])
	if storedCRC != computedCRC {
		return nil, ErrCorrupted
	}

	body := data[:dataLen-4]

	entry := &Entry{
		LSN:             binary.LittleEndian.Uint64(body[0:8]),
		TxnID:           binary.LittleEndian.Uint64(body[8:16]),
		OpType:          OpType(body[16]),
		ValueCompressed: body[17] != 0,
	}
	timestamp := binary.LittleEndian.Uint64(body[24:32])
	entry.Timestamp = time.Unix(int64(timestamp), 0)

	r := keycodec.NewReader(body[fixedHeaderSize:])

	keyLen, err := keycodec.GetVarint(r)
	if err != nil {
		return nil, ErrTruncated
	}
	if err := r.Ensure(int(keyLen)); err != nil {
		return nil, ErrTruncated
	}
	if keyLen > 0 {
		entry.Key = append([]byte(nil), r.TakeRaw(int(keyLen))...)
	}

	valLen, err := keycodec.GetVarint(r)
	if err != nil {
		return nil, ErrTruncated
	}
	if err := r.Ensure(int(valLen)); err != nil {
		return nil, ErrTruncated
	}
	if valLen > 0 {
		entry.Value = append([]byte(nil), r.TakeRaw(int(valLen))...)
	}

	return entry, nil
}

// Size returns the encoded size of the entry
func (e *Entry) Size() int {
	return len(e.Encode())
}

// streamVarintLen mirrors pkg/keycodec's varint payload-length table for
// streaming reads from an io.Reader, where the decoder must know how many
// more bytes to pull before it can hand a complete varint to
// keycodec.GetVarint. Must stay in lockstep with PutVarint's encoding.
func streamVarintLen(firstByte byte) int {
	switch {
	case firstByte <= 240:
		return 0
	case firstByte <= 248:
		return 1
	case firstByte == 0xF9:
		return 2
	case firstByte == 0xFA:
		return 3
	case firstByte == 0xFB:
		return 4
	case firstByte == 0xFC:
		return 5
	case firstByte == 0xFD:
		return 6
	case firstByte == 0xFE:
		return 7
	default: // 0xFF
		return 8
	}
}

// readVarintStream reads one order-preserving varint from r, returning both
// its decoded value and the raw bytes consumed (the caller accumulates
// those into the entry buffer for CRC verification).
func readVarintStream(r io.Reader) (raw []byte, v uint64, err error) {
	var fb [1]byte
	if _, err = io.ReadFull(r, fb[:]); err != nil {
		return nil, 0, err
	}
	n := streamVarintLen(fb[0])
	raw = make([]byte, 1+n)
	raw[0] = fb[0]
	if n > 0 {
		if _, err = io.ReadFull(r, raw[1:]); err != nil {
			return nil, 0, err
		}
	}
	v, err = keycodec.GetVarint(keycodec.NewReader(raw))
	return raw, v, err
}

// String returns a human-readable representation of the entry
func (e *Entry) String() string {
	opName := "UNKNOWN"
	switch e.OpType {
	case OpInsert:
		opName = "INSERT"
	case OpDelete:
		opName = "DELETE"
	case OpCommit:
		opName = "COMMIT"
	case OpCheckpoint:
		opName = "CHECKPOINT"
	}
	return fmt.Sprintf("WAL[LSN=%d TxnID=%d Op=%s KeyLen=%d ValLen=%d]",
		e.LSN, e.TxnID, opName, len(e.Key), len(e.Value))
}
