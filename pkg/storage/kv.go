// ABOUTME: WAL-durable KV store with an in-memory sorted index
// ABOUTME: Keys are order-preserving keycodec tuples; bytes.Compare is the sort

package storage

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nainya/lexkey/internal/logger"
	"github.com/nainya/lexkey/internal/metrics"
	"github.com/nainya/lexkey/pkg/keycodec"
	"github.com/nainya/lexkey/pkg/wal"
)

// record is one live key-value pair held in the in-memory index.
type record struct {
	key []byte
	val []byte
}

// pendingOp is one operation buffered by a KVTX before commit.
type pendingOp struct {
	op  wal.OpType
	key []byte
	val []byte
}

// KV is a key-value store whose durability comes entirely from a
// write-ahead log: every Set/Del is logged and fsynced before it becomes
// visible, and the live dataset is held sorted in memory. Keys are
// order-preserving keycodec-encoded tuples (see EncodeKey/EncodeValues),
// so the comparator ordering the in-memory index is the literal
// bytes.Compare spec.md's invariant 3 promises callers they can rely on —
// Scan walks tuples in their natural decoded order without decoding a
// single key to do it. Path doubles as the on-disk snapshot file that
// periodic checkpoints write so recovery doesn't replay the log from the
// beginning of time.
type KV struct {
	Path string

	// Log and Metrics are optional instrumentation hooks; nil by default so
	// KV remains usable without a running Prometheus registry or logger.
	Log     *logger.Logger
	Metrics *metrics.Metrics

	mu   sync.RWMutex
	recs []record

	wal          *wal.WAL
	checkpointer *wal.Checkpointer
	nextTxnID    uint64
}

// Open loads the last snapshot (if any), replays the WAL entries written
// since it, and starts background checkpointing.
func (db *KV) Open() error {
	if err := db.loadSnapshot(); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	db.wal = &wal.WAL{Path: db.Path + ".wal", Compress: &wal.CompressionCodec{}}
	if err := db.wal.Open(); err != nil {
		return fmt.Errorf("open wal: %w", err)
	}

	rec := wal.NewRecovery(db.wal)
	if err := rec.Recover(db.replay); err != nil {
		return fmt.Errorf("recover wal: %w", err)
	}

	db.checkpointer = wal.NewCheckpointer(db.wal, db.flushSnapshot)
	db.checkpointer.Log = db.Log
	db.checkpointer.Metrics = db.Metrics
	db.checkpointer.Start()

	if db.Log != nil {
		db.Log.LogStoreOpen(db.Path)
	}
	return nil
}

// replay is the wal.ReplayFunc Recovery drives to rebuild the in-memory
// index from committed WAL entries written after the last snapshot.
func (db *KV) replay(op wal.OpType, key, value []byte) error {
	switch op {
	case wal.OpInsert:
		db.indexSet(key, value)
	case wal.OpDelete:
		db.indexDel(key)
	}
	return nil
}

// Close stops checkpointing, flushes a final snapshot, and closes the WAL.
func (db *KV) Close() error {
	if db.checkpointer != nil {
		db.checkpointer.Stop()
	}
	if err := db.flushSnapshot(); err != nil {
		return err
	}
	if db.Log != nil {
		db.Log.LogStoreClose(db.Path)
	}
	return db.wal.Close()
}

// Get retrieves a value by key.
func (db *KV) Get(key []byte) ([]byte, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	val, ok := db.find(key)
	if db.Metrics != nil {
		status := "hit"
		if !ok {
			status = "miss"
		}
		db.Metrics.DbOperationsTotal.WithLabelValues("get", status).Inc()
	}
	return val, ok
}

// find returns the value for key under a lock already held by the caller.
func (db *KV) find(key []byte) ([]byte, bool) {
	i := db.search(key)
	if i < len(db.recs) && bytes.Equal(db.recs[i].key, key) {
		return db.recs[i].val, true
	}
	return nil, false
}

func (db *KV) search(key []byte) int {
	return sort.Search(len(db.recs), func(i int) bool {
		return bytes.Compare(db.recs[i].key, key) >= 0
	})
}

// Set inserts or updates a key-value pair.
func (db *KV) Set(key []byte, val []byte) error {
	start := time.Now()
	err := db.commitOps([]pendingOp{{op: wal.OpInsert, key: key, val: val}})
	if db.Metrics != nil {
		db.Metrics.RecordDbOperation("set", statusOf(err), time.Since(start))
	}
	if db.Log != nil && err != nil {
		db.Log.LogDbOperation("set", time.Since(start), 1, err)
	}
	return err
}

// Del deletes a key.
func (db *KV) Del(key []byte) (bool, error) {
	start := time.Now()

	db.mu.RLock()
	_, exists := db.find(key)
	db.mu.RUnlock()
	if !exists {
		if db.Metrics != nil {
			db.Metrics.DbOperationsTotal.WithLabelValues("del", "miss").Inc()
		}
		return false, nil
	}

	err := db.commitOps([]pendingOp{{op: wal.OpDelete, key: key}})
	if db.Metrics != nil {
		db.Metrics.RecordDbOperation("del", statusOf(err), time.Since(start))
	}
	if db.Log != nil && err != nil {
		db.Log.LogDbOperation("del", time.Since(start), 1, err)
	}
	return err == nil, err
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Scan performs a range scan starting from the given key in ascending
// byte order, which for keycodec-encoded keys is also tuple order.
func (db *KV) Scan(start []byte, callback func(key, val []byte) bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for i := db.search(start); i < len(db.recs); i++ {
		if !callback(db.recs[i].key, db.recs[i].val) {
			return
		}
	}
}

// Begin starts a new transaction.
func (db *KV) Begin() *KVTX {
	return &KVTX{db: db}
}

// commitOps writes every op to the WAL under one transaction ID, fsyncs,
// then applies them to the in-memory index — nothing becomes visible
// unless it is already durable.
func (db *KV) commitOps(ops []pendingOp) error {
	if len(ops) == 0 {
		return nil
	}

	txnID := atomic.AddUint64(&db.nextTxnID, 1)
	for _, o := range ops {
		entry := wal.Entry{
			LSN:       db.wal.NextLSN(),
			TxnID:     txnID,
			OpType:    o.op,
			Key:       o.key,
			Value:     o.val,
			Timestamp: time.Now(),
		}
		if err := db.wal.Write(entry); err != nil {
			return err
		}
	}

	commit := wal.Entry{LSN: db.wal.NextLSN(), TxnID: txnID, OpType: wal.OpCommit, Timestamp: time.Now()}
	if err := db.wal.Write(commit); err != nil {
		return err
	}
	if err := db.wal.Fsync(); err != nil {
		return err
	}

	db.mu.Lock()
	for _, o := range ops {
		switch o.op {
		case wal.OpInsert:
			db.indexSet(o.key, o.val)
		case wal.OpDelete:
			db.indexDel(o.key)
		}
	}
	db.mu.Unlock()
	return nil
}

// indexSet and indexDel mutate db.recs directly; callers hold db.mu for
// write (commitOps) or run single-threaded during WAL replay (Open).
func (db *KV) indexSet(key, val []byte) {
	i := db.search(key)
	if i < len(db.recs) && bytes.Equal(db.recs[i].key, key) {
		db.recs[i].val = append([]byte(nil), val...)
		return
	}
	db.recs = append(db.recs, record{})
	copy(db.recs[i+1:], db.recs[i:])
	db.recs[i] = record{key: append([]byte(nil), key...), val: append([]byte(nil), val...)}
}

func (db *KV) indexDel(key []byte) {
	i := db.search(key)
	if i < len(db.recs) && bytes.Equal(db.recs[i].key, key) {
		db.recs = append(db.recs[:i], db.recs[i+1:]...)
	}
}

// flushSnapshot is the Checkpointer's flushFn: it serializes the live
// index to Path using the same varint-length-prefixed framing pkg/wal's
// Entry.Encode uses for its Key/Value fields, so a checkpoint truncating
// old WAL segments leaves recovery a snapshot plus a short tail to replay
// instead of the log from the beginning of time.
func (db *KV) flushSnapshot() error {
	db.mu.RLock()
	recs := make([]record, len(db.recs))
	copy(recs, db.recs)
	db.mu.RUnlock()

	w := keycodec.NewWriter(256)
	keycodec.PutVarint(w, uint64(len(recs)))
	for _, r := range recs {
		keycodec.PutVarint(w, uint64(len(r.key)))
		w.PutBytes(r.key)
		keycodec.PutVarint(w, uint64(len(r.val)))
		w.PutBytes(r.val)
	}
	buf := w.Finalize()

	tmp := db.Path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, db.Path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}

	if db.Metrics != nil {
		db.Metrics.UpdateDbStats(int64(len(buf)), int64(len(recs)))
	}
	return nil
}

// loadSnapshot populates db.recs from a prior flushSnapshot, if Path
// exists. A fresh store (no file yet) starts empty.
func (db *KV) loadSnapshot() error {
	data, err := os.ReadFile(db.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	r := keycodec.NewReader(data)
	count, err := keycodec.GetVarint(r)
	if err != nil {
		return fmt.Errorf("decode snapshot count: %w", err)
	}

	recs := make([]record, 0, count)
	for i := uint64(0); i < count; i++ {
		klen, err := keycodec.GetVarint(r)
		if err != nil {
			return fmt.Errorf("decode snapshot key length: %w", err)
		}
		if err := r.Ensure(int(klen)); err != nil {
			return fmt.Errorf("decode snapshot key: %w", err)
		}
		key := append([]byte(nil), r.TakeRaw(int(klen))...)

		vlen, err := keycodec.GetVarint(r)
		if err != nil {
			return fmt.Errorf("decode snapshot value length: %w", err)
		}
		if err := r.Ensure(int(vlen)); err != nil {
			return fmt.Errorf("decode snapshot value: %w", err)
		}
		val := append([]byte(nil), r.TakeRaw(int(vlen))...)

		recs = append(recs, record{key: key, val: val})
	}

	db.recs = recs
	return nil
}
