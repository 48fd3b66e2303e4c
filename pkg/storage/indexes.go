// ABOUTME: Secondary index management for multi-access patterns
// ABOUTME: Index rows live in the same flat keyspace as primary rows

package storage

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/nainya/lexkey/pkg/keycodec"
)

// IndexDef defines a secondary index
type IndexDef struct {
	Name    string   // Index name
	Columns []string // Columns to index (in order)
	Prefix  uint32   // Namespace prefix for this index's keys; derived from
	// Name via xxhash if left zero (see indexPrefix)
}

// indexPrefix derives a deterministic 32-bit namespace prefix from an index
// name, truncating an xxhash/v2 64-bit digest. Collisions between two index
// names registered with the same IndexManager are rejected by AddIndex.
func indexPrefix(name string) uint32 {
	return uint32(xxhash.Sum64String(name))
}

// IndexManager manages multiple secondary indexes. An index has no storage
// of its own: its entries are ordinary rows in the same KV the primary
// data lives in, distinguished only by their namespace prefix (see
// EncodeKey) — the same order-preserving keyspace partitioning the CLI's
// "prefix" flag uses for top-level namespaces.
type IndexManager struct {
	db      *KV
	indexes map[string]*IndexInfo
}

// IndexInfo holds index metadata
type IndexInfo struct {
	Def IndexDef
}

// NewIndexManager creates a new index manager
func NewIndexManager(db *KV) *IndexManager {
	return &IndexManager{
		db:      db,
		indexes: make(map[string]*IndexInfo),
	}
}

// AddIndex registers a new secondary index
func (im *IndexManager) AddIndex(def IndexDef) error {
	if _, exists := im.indexes[def.Name]; exists {
		return fmt.Errorf("index %s already exists", def.Name)
	}

	if def.Prefix == 0 {
		def.Prefix = indexPrefix(def.Name)
	}
	for _, info := range im.indexes {
		if info.Def.Prefix == def.Prefix {
			return fmt.Errorf("index %s: prefix %08x collides with index %s", def.Name, def.Prefix, info.Def.Name)
		}
	}

	im.indexes[def.Name] = &IndexInfo{Def: def}
	return nil
}

// IndexedTx represents a transaction with automatic index maintenance
type IndexedTx struct {
	im *IndexManager
	tx *KVTX
}

// Begin starts a new indexed transaction
func (im *IndexManager) Begin() *IndexedTx {
	return &IndexedTx{
		im: im,
		tx: im.db.Begin(),
	}
}

// Set inserts/updates a record and maintains all indexes
func (itx *IndexedTx) Set(primaryKey []Value, record map[string]Value) error {
	// Encode primary key
	pkBytes := EncodeValues(primaryKey)

	// Check if this is an update or insert
	oldVal, exists := itx.tx.Get(pkBytes)

	// Store the primary record
	recBytes := encodeRecord(record)
	itx.tx.Set(pkBytes, recBytes)

	// Update all secondary indexes
	for _, info := range itx.im.indexes {
		// Extract index key from record
		indexKey := extractIndexKey(record, info.Def.Columns, primaryKey)

		if exists {
			// Delete old index entry
			oldRecord, err := decodeRecord(oldVal)
			if err != nil {
				return err
			}
			oldIndexKey := extractIndexKey(oldRecord, info.Def.Columns, primaryKey)
			itx.tx.Del(EncodeKey(info.Def.Prefix, oldIndexKey))
		}

		// Insert new index entry (value is empty for secondary indexes)
		itx.tx.Set(EncodeKey(info.Def.Prefix, indexKey), []byte{})
	}

	return nil
}

// Get retrieves a record by primary key
func (itx *IndexedTx) Get(primaryKey []Value) (map[string]Value, bool, error) {
	pkBytes := EncodeValues(primaryKey)
	val, ok := itx.tx.Get(pkBytes)
	if !ok {
		return nil, false, nil
	}

	record, err := decodeRecord(val)
	if err != nil {
		return nil, false, err
	}

	return record, true, nil
}

// Del deletes a record and maintains all indexes
func (itx *IndexedTx) Del(primaryKey []Value) (bool, error) {
	pkBytes := EncodeValues(primaryKey)

	// Get old value for index cleanup
	oldVal, exists := itx.tx.Get(pkBytes)
	if !exists {
		return false, nil
	}

	// Delete from primary
	itx.tx.Del(pkBytes)

	// Delete from all secondary indexes
	oldRecord, err := decodeRecord(oldVal)
	if err != nil {
		return false, err
	}

	for _, info := range itx.im.indexes {
		indexKey := extractIndexKey(oldRecord, info.Def.Columns, primaryKey)
		itx.tx.Del(EncodeKey(info.Def.Prefix, indexKey))
	}

	return true, nil
}

// ScanIndex performs a range scan on a secondary index
func (itx *IndexedTx) ScanIndex(indexName string, start []Value, callback func(primaryKey []Value, record map[string]Value) bool) error {
	info, ok := itx.im.indexes[indexName]
	if !ok {
		return fmt.Errorf("index %s not found", indexName)
	}

	startKey := EncodeKey(info.Def.Prefix, start)

	// Scan the shared keyspace starting at this index's first entry,
	// stopping the moment we leave its namespace prefix.
	itx.tx.Scan(startKey, func(indexKey, _ []byte) bool {
		if ExtractPrefix(indexKey) != info.Def.Prefix {
			return false
		}

		vals, err := ExtractValues(indexKey)
		if err != nil {
			return false
		}

		// The last values in the index key are the primary key
		// (secondary indexes include primary key to ensure uniqueness)
		numIndexCols := len(info.Def.Columns)
		if len(vals) < numIndexCols {
			return false
		}

		primaryKey := vals[numIndexCols:]

		// Fetch full record
		pkBytes := EncodeValues(primaryKey)
		recVal, ok := itx.tx.Get(pkBytes)
		if !ok {
			return true // Skip missing records
		}

		record, err := decodeRecord(recVal)
		if err != nil {
			return false
		}

		return callback(primaryKey, record)
	})

	return nil
}

// Commit commits the transaction
func (itx *IndexedTx) Commit() error {
	return itx.tx.Commit()
}

// Abort aborts the transaction
func (itx *IndexedTx) Abort() {
	itx.tx.Abort()
}

// Helper functions

func extractIndexKey(record map[string]Value, columns []string, primaryKey []Value) []Value {
	// Extract index columns from record
	indexVals := make([]Value, 0, len(columns)+len(primaryKey))

	for _, col := range columns {
		if val, ok := record[col]; ok {
			indexVals = append(indexVals, val)
		}
	}

	// Append primary key to ensure uniqueness
	indexVals = append(indexVals, primaryKey...)

	return indexVals
}

func encodeRecord(record map[string]Value) []byte {
	// Simple encoding: count + (name_len + name + value)*
	out := make([]byte, 0, 256)

	// Write number of fields
	out = append(out, byte(len(record)))

	for name, val := range record {
		// Write field name length
		out = append(out, byte(len(name)))
		// Write field name
		out = append(out, []byte(name)...)
		// Write field value (encoded)
		valBytes := EncodeValues([]Value{val})
		out = append(out, valBytes...)
	}

	return out
}

func decodeRecord(data []byte) (map[string]Value, error) {
	if len(data) == 0 {
		return make(map[string]Value), nil
	}

	record := make(map[string]Value)
	pos := 0

	// Read number of fields
	numFields := int(data[pos])
	pos++

	for i := 0; i < numFields; i++ {
		if pos >= len(data) {
			return nil, fmt.Errorf("incomplete record at field %d", i)
		}

		// Read field name length
		nameLen := int(data[pos])
		pos++

		if pos+nameLen > len(data) {
			return nil, fmt.Errorf("incomplete field name at pos %d", pos)
		}

		// Read field name
		name := string(data[pos : pos+nameLen])
		pos += nameLen

		// Read exactly one field value, leaving the next field's header
		r := keycodec.NewReader(data[pos:])
		val, isSep, err := keycodec.DecodeValue(r)
		if err != nil {
			return nil, fmt.Errorf("decode field %s: %w", name, err)
		}
		if isSep {
			return nil, fmt.Errorf("no value for field %s", name)
		}

		record[name] = val
		pos += r.Pos()
	}

	return record, nil
}
