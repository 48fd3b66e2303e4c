package wal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
)

const (
	// MaxLogFileSize is the maximum size of a single WAL file (100MB)
	MaxLogFileSize = 100 << 20

	// MaxLogFiles is the maximum number of log files to keep
	MaxLogFiles = 3

	// WALFilePrefix is not used in WAL file names, which are built from
	// Path's base name (see logFilePath)
	WALFilePrefix = "wal"
)

// WAL represents a Write-Ahead Log
type WAL struct {
	// Path is the base path for WAL files (e.g., "/data/db.wal")
	Path string

	// Compress, when set, zstd-compresses INSERT entry values on write and
	// transparently decompresses them on read. Nil disables compression.
	Compress *CompressionCodec

	// fd is the current log file descriptor
	fd *os.File

	// mu protects concurrent access to WAL
	mu sync.Mutex

	// lsn is the current Log Sequence Number (atomic)
	lsn uint64

	// fileSize is the current log file size
	fileSize int64

	// fileIndex is the current log file index (0, 1, 2, ...)
	fileIndex int

	// closed indicates whether the WAL is closed
	closed bool

	// entryOffsets tracks the byte offset of every entry written in the
	// current file since checkpointBase, relative to checkpointBase so the
	// sequence always starts at 0 as keycodec.EncodeOffsets requires.
	// Consumed and reset by ConsumeOffsetsSinceCheckpoint.
	entryOffsets   []uint64
	checkpointSet  bool
	checkpointBase int64
}

// Open opens or creates the WAL
func (w *WAL) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Find existing WAL files
	files, err := w.findLogFiles()
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	// Open the latest file or create new one
	if len(files) > 0 {
		// Open latest file in append mode
		latestFile := files[len(files)-1]
		fd, err := os.OpenFile(latestFile, os.O_RDWR|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		w.fd = fd

		// Get file size
		stat, err := fd.Stat()
		if err != nil {
			return err
		}
		w.fileSize = stat.Size()

		// Parse file index from name
		_, err = fmt.Sscanf(filepath.Base(latestFile), w.baseName()+".%d", &w.fileIndex)
		if err != nil {
			w.fileIndex = 0
		}

		// Scan for highest LSN
		maxLSN, err := w.scanForHighestLSN(files)
		if err != nil {
			return err
		}
		atomic.StoreUint64(&w.lsn, maxLSN)
	} else {
		// Create first log file
		logPath := w.logFilePath(0)
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return err
		}
		fd, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		w.fd = fd
		w.fileSize = 0
		w.fileIndex = 0
		atomic.StoreUint64(&w.lsn, 0)
	}

	w.closed = false
	return nil
}

// NextLSN returns the next Log Sequence Number
func (w *WAL) NextLSN() uint64 {
	return atomic.AddUint64(&w.lsn, 1)
}

// Write writes an entry to the WAL
func (w *WAL) Write(entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrLogClosed
	}

	if w.Compress != nil && entry.OpType == OpInsert && len(entry.Value) > 0 && !entry.ValueCompressed {
		entry.Value = w.Compress.Compress(entry.Value)
		entry.ValueCompressed = true
	}

	// Encode entry
	data := entry.Encode()

	// Check if rotation is needed
	if w.fileSize+int64(len(data)) > MaxLogFileSize {
		if err := w.rotateNoLock(); err != nil {
			return err
		}
	}

	if !w.checkpointSet {
		w.checkpointBase = w.fileSize
		w.checkpointSet = true
	}
	w.entryOffsets = append(w.entryOffsets, uint64(w.fileSize-w.checkpointBase))

	// Write to log file
	n, err := w.fd.Write(data)
	if err != nil {
		return err
	}

	w.fileSize += int64(n)
	return nil
}

// ConsumeOffsetsSinceCheckpoint returns the byte offsets, relative to the
// first entry written since the previous call, of every entry written
// since then (anchored at 0, as keycodec.EncodeOffsets requires), and
// resets the tracked list for the next checkpoint interval.
func (w *WAL) ConsumeOffsetsSinceCheckpoint() []uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	offsets := w.entryOffsets
	w.entryOffsets = nil
	w.checkpointSet = false
	if len(offsets) == 0 {
		return []uint64{0}
	}
	return offsets
}

// Fsync ensures all written data is persisted to disk
func (w *WAL) Fsync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrLogClosed
	}

	return w.fd.Sync()
}

// Close closes the WAL
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	err := w.fd.Close()
	w.closed = true
	return err
}

// rotateNoLock rotates to a new log file (caller must hold mu)
func (w *WAL) rotateNoLock() error {
	// Fsync current file before closing
	if err := w.fd.Sync(); err != nil {
		return err
	}

	// Close current file
	if err := w.fd.Close(); err != nil {
		return err
	}

	// Open next file
	w.fileIndex++
	logPath := w.logFilePath(w.fileIndex)
	fd, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	w.fd = fd
	w.fileSize = 0

	// Clean old log files (keep last MaxLogFiles)
	return w.cleanOldLogsNoLock()
}

// cleanOldLogsNoLock removes old log files (caller must hold mu)
func (w *WAL) cleanOldLogsNoLock() error {
	files, err := w.findLogFiles()
	if err != nil {
		return err
	}

	// Keep last MaxLogFiles
	if len(files) > MaxLogFiles {
		toRemove := files[:len(files)-MaxLogFiles]
		for _, f := range toRemove {
			os.Remove(f) // Ignore errors
		}
	}

	return nil
}

// baseName returns the base filename for WAL files (e.g., "mydb.db.wal" from "/path/to/mydb.db.wal")
func (w *WAL) baseName() string {
	return filepath.Base(w.Path)
}

// logFilePath returns the path for a log file with the given index
func (w *WAL) logFilePath(index int) string {
	dir := filepath.Dir(w.Path)
	name := fmt.Sprintf("%s.%03d", w.baseName(), index)
	return filepath.Join(dir, name)
}

// findLogFiles returns all WAL files sorted by index
func (w *WAL) findLogFiles() ([]string, error) {
	dir := filepath.Dir(w.Path)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && w.isWALFile(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	// Sort files by index
	sort.Slice(files, func(i, j int) bool {
		var idxI, idxJ int
		pattern := w.baseName() + ".%d"
		fmt.Sscanf(filepath.Base(files[i]), pattern, &idxI)
		fmt.Sscanf(filepath.Base(files[j]), pattern, &idxJ)
		return idxI < idxJ
	})

	return files, nil
}

// isWALFile returns true if the filename is a WAL file for this database
func (w *WAL) isWALFile(name string) bool {
	var index int
	pattern := w.baseName() + ".%d"
	_, err := fmt.Sscanf(name, pattern, &index)
	return err == nil
}

// scanForHighestLSN scans all WAL files and returns the highest LSN
func (w *WAL) scanForHighestLSN(files []string) (uint64, error) {
	var maxLSN uint64

	for _, file := range files {
		fd, err := os.Open(file)
		if err != nil {
			return 0, err
		}

		// Read entries and track max LSN
		for {
			entry, err := w.readEntry(fd)
			if err == io.EOF {
				break
			}
			if err != nil {
				// Skip corrupted entries by seeking forward
				// This prevents infinite loops when corruption occurs
				fd.Seek(1024, io.SeekCurrent)
				continue
			}

			if entry.LSN > maxLSN {
				maxLSN = entry.LSN
			}
		}

		fd.Close()
	}

	return maxLSN, nil
}

// readEntry reads a single entry from the reader. KeyLen/ValLen are
// order-preserving varints (see entry.go), so their width isn't known ahead
// of time: read the fixed header, then the key-length varint, the key
// bytes, the value-length varint, the value bytes, and the CRC trailer,
// accumulating everything into one buffer for DecodeEntry to verify.
func (w *WAL) readEntry(r io.Reader) (*Entry, error) {
	buf := make([]byte, fixedHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	keyLenRaw, keyLen, err := readVarintStream(r)
	if err != nil {
		return nil, err
	}
	buf = append(buf, keyLenRaw...)

	if keyLen > 0 {
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, err
		}
		buf = append(buf, key...)
	}

	valLenRaw, valLen, err := readVarintStream(r)
	if err != nil {
		return nil, err
	}
	buf = append(buf, valLenRaw...)

	if valLen > 0 {
		val := make([]byte, valLen)
		if _, err := io.ReadFull(r, val); err != nil {
			return nil, err
		}
		buf = append(buf, val...)
	}

	crc := make([]byte, 4)
	if _, err := io.ReadFull(r, crc); err != nil {
		return nil, err
	}
	buf = append(buf, crc...)

	entry, err := DecodeEntry(buf)
	if err != nil {
		return nil, err
	}
	if err := w.decompressEntry(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// decompressEntry reverses the compression Write applied, if any.
func (w *WAL) decompressEntry(entry *Entry) error {
	if !entry.ValueCompressed {
		return nil
	}
	if w.Compress == nil {
		return fmt.Errorf("wal: entry %d is compressed but no codec is configured", entry.LSN)
	}
	val, err := w.Compress.Decompress(entry.Value)
	if err != nil {
		return fmt.Errorf("decompress entry %d: %w", entry.LSN, err)
	}
	entry.Value = val
	entry.ValueCompressed = false
	return nil
}
