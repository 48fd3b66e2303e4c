// ABOUTME: Transaction support for atomic multi-key operations
// ABOUTME: Buffers Set/Del and commits them as one WAL transaction

package storage

import (
	"bytes"
	"sort"

	"github.com/nainya/lexkey/pkg/wal"
)

// KVTX buffers a sequence of Set/Del operations and commits them as one
// WAL transaction: every buffered operation reaches the log under a
// shared transaction ID before any of them becomes visible in the
// in-memory index, so a crash mid-transaction leaves recovery nothing to
// replay for it.
type KVTX struct {
	db      *KV
	pending []pendingOp
}

// Get retrieves a value within the transaction, checking buffered
// operations (most recent first) before falling back to the committed
// view.
func (tx *KVTX) Get(key []byte) ([]byte, bool) {
	for i := len(tx.pending) - 1; i >= 0; i-- {
		if bytes.Equal(tx.pending[i].key, key) {
			if tx.pending[i].op == wal.OpDelete {
				return nil, false
			}
			return tx.pending[i].val, true
		}
	}
	return tx.db.Get(key)
}

// Set inserts or updates a key-value pair within the transaction.
func (tx *KVTX) Set(key []byte, val []byte) {
	tx.pending = append(tx.pending, pendingOp{
		op:  wal.OpInsert,
		key: append([]byte(nil), key...),
		val: append([]byte(nil), val...),
	})
}

// Del deletes a key within the transaction, reporting whether it was
// present beforehand.
func (tx *KVTX) Del(key []byte) bool {
	_, existed := tx.Get(key)
	tx.pending = append(tx.pending, pendingOp{op: wal.OpDelete, key: append([]byte(nil), key...)})
	return existed
}

// Scan performs a range scan within the transaction, overlaying buffered
// operations (last write per key wins) on top of the committed view so a
// scan sees its own uncommitted writes.
func (tx *KVTX) Scan(start []byte, callback func(key, val []byte) bool) {
	if len(tx.pending) == 0 {
		tx.db.Scan(start, callback)
		return
	}

	overlay := make(map[string]pendingOp, len(tx.pending))
	for _, op := range tx.pending {
		if bytes.Compare(op.key, start) < 0 {
			continue
		}
		overlay[string(op.key)] = op
	}

	keys := make([][]byte, 0, len(overlay))
	tx.db.Scan(start, func(key, _ []byte) bool {
		if _, shadowed := overlay[string(key)]; !shadowed {
			keys = append(keys, append([]byte(nil), key...))
		}
		return true
	})
	for k, op := range overlay {
		if op.op != wal.OpDelete {
			keys = append(keys, []byte(k))
		}
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

	for _, k := range keys {
		if op, ok := overlay[string(k)]; ok {
			if !callback(k, op.val) {
				return
			}
			continue
		}
		if val, ok := tx.db.Get(k); ok {
			if !callback(k, val) {
				return
			}
		}
	}
}

// Commit commits the transaction atomically.
func (tx *KVTX) Commit() error {
	return tx.db.commitOps(tx.pending)
}

// Abort discards the buffered operations without writing anything.
func (tx *KVTX) Abort() {
	tx.pending = nil
}
